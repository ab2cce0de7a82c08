package chat

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryState tracks a locally-originated message through its network send
type DeliveryState string

const (
	DeliveryPending DeliveryState = "pending"
	DeliverySent    DeliveryState = "sent"
	DeliveryFailed  DeliveryState = "failed"
)

// MessageID tags a message as either optimistic (local sequence only) or
// confirmed (server id known). Matching and replacement logic operates on
// this type rather than string-prefix conventions.
type MessageID struct {
	Local  uint64 `json:"local,omitempty"`
	Server string `json:"server,omitempty"`
}

// Confirmed reports whether the server has assigned an id
func (id MessageID) Confirmed() bool {
	return id.Server != ""
}

// Message is one entry in a ride's chat thread
type Message struct {
	ID            MessageID     `json:"id"`
	RideID        uuid.UUID     `json:"ride_id"`
	SenderID      uuid.UUID     `json:"sender_id"`
	ReceiverID    uuid.UUID     `json:"receiver_id"`
	Text          string        `json:"text"`
	CreatedAt     time.Time     `json:"created_at"`
	IsRead        bool          `json:"is_read"`
	DeliveryState DeliveryState `json:"delivery_state"`
}

// NewMessageEvent is a server push announcing a message in the thread
type NewMessageEvent struct {
	Message Message
}

// MessageReadEvent is a server push flipping a read receipt
type MessageReadEvent struct {
	ServerID string
}
