package backend

import (
	"context"
	"net/http"

	"github.com/gocomet/ride-sdk/internal/domain/ride"
)

// Notifier delivers lifecycle notifications to the backend sink. Calls are
// best-effort, at-most-once; the caller logs failures and moves on.
type Notifier interface {
	Notify(ctx context.Context, kind ride.NotificationKind, payload interface{}) error
}

// HTTPNotifier posts notifications to the backend /v1/notify endpoint
type HTTPNotifier struct {
	client *Client
}

// NewHTTPNotifier creates a notification sink client
func NewHTTPNotifier(client *Client) *HTTPNotifier {
	return &HTTPNotifier{client: client}
}

// Notify posts one notification event
func (n *HTTPNotifier) Notify(ctx context.Context, kind ride.NotificationKind, payload interface{}) error {
	body := map[string]interface{}{
		"kind":    string(kind),
		"payload": payload,
	}
	return n.client.do(ctx, http.MethodPost, "/v1/notify", body, nil)
}
