package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gocomet/ride-sdk/internal/domain/chat"
	apperrors "github.com/gocomet/ride-sdk/pkg/errors"
)

// WireMessage is a chat message as the backend serializes it
type WireMessage struct {
	ID         string    `json:"id"`
	RideID     uuid.UUID `json:"ride_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
	IsRead     bool      `json:"is_read"`
}

// ToMessage converts a wire message into the domain representation.
// Server-confirmed messages are always in the sent state.
func (w WireMessage) ToMessage() chat.Message {
	return chat.Message{
		ID:            chat.MessageID{Server: w.ID},
		RideID:        w.RideID,
		SenderID:      w.SenderID,
		ReceiverID:    w.ReceiverID,
		Text:          w.Text,
		CreatedAt:     w.CreatedAt,
		IsRead:        w.IsRead,
		DeliveryState: chat.DeliverySent,
	}
}

// ChatAPI is the REST client for a ride's chat thread
type ChatAPI struct {
	client *Client
}

// NewChatAPI creates a chat API client
func NewChatAPI(client *Client) *ChatAPI {
	return &ChatAPI{client: client}
}

// Messages fetches the full thread for a ride
func (a *ChatAPI) Messages(ctx context.Context, rideID uuid.UUID) ([]WireMessage, error) {
	var out struct {
		Messages []WireMessage `json:"messages"`
	}
	path := fmt.Sprintf("/v1/rides/%s/messages", rideID)
	if err := a.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Post sends a message and returns the server-confirmed copy. Failures other
// than a 401 are normalized to ErrSendFailed so the sync engine can park the
// message in the failed state.
func (a *ChatAPI) Post(ctx context.Context, rideID uuid.UUID, text string) (*WireMessage, error) {
	var out WireMessage
	path := fmt.Sprintf("/v1/rides/%s/messages", rideID)
	body := map[string]string{"text": text}
	if err := a.client.do(ctx, http.MethodPost, path, body, &out); err != nil {
		if errors.Is(err, apperrors.ErrUnauthenticated) {
			return nil, err
		}
		return nil, apperrors.NewAppError(
			apperrors.ErrSendFailed.Code,
			apperrors.ErrSendFailed.Message,
			apperrors.ErrSendFailed.Status,
			err,
		)
	}
	return &out, nil
}

// MarkRead marks the whole thread as read for the caller
func (a *ChatAPI) MarkRead(ctx context.Context, rideID uuid.UUID) error {
	path := fmt.Sprintf("/v1/rides/%s/read", rideID)
	return a.client.do(ctx, http.MethodPost, path, nil, nil)
}
