// Package chat keeps a ride's message thread consistent across the initial
// bulk fetch, real-time push events and locally-originated optimistic sends.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gocomet/ride-sdk/internal/backend"
	domain "github.com/gocomet/ride-sdk/internal/domain/chat"
	apperrors "github.com/gocomet/ride-sdk/pkg/errors"
	"github.com/gocomet/ride-sdk/pkg/logger"
)

// API is the REST surface the engine talks to. backend.ChatAPI satisfies it.
type API interface {
	Messages(ctx context.Context, rideID uuid.UUID) ([]backend.WireMessage, error)
	Post(ctx context.Context, rideID uuid.UUID, text string) (*backend.WireMessage, error)
	MarkRead(ctx context.Context, rideID uuid.UUID) error
}

// Engine is the single source of truth for one conversation. The visible
// list stays in append order; replace-in-place substitutions keep position.
type Engine struct {
	mu sync.Mutex

	rideID uuid.UUID
	selfID uuid.UUID
	peerID uuid.UUID

	api    API
	logger *logger.Logger
	clock  func() time.Time

	messages []domain.Message
	localSeq uint64

	// onUnauthenticated fires when any call returns a 401. The owning
	// session handles the actual teardown.
	onUnauthenticated func()
}

// NewEngine creates a sync engine for one ride conversation
func NewEngine(rideID, selfID, peerID uuid.UUID, api API, log *logger.Logger, onUnauthenticated func()) *Engine {
	if onUnauthenticated == nil {
		onUnauthenticated = func() {}
	}
	return &Engine{
		rideID:            rideID,
		selfID:            selfID,
		peerID:            peerID,
		api:               api,
		logger:            log,
		clock:             time.Now,
		onUnauthenticated: onUnauthenticated,
	}
}

// Messages returns a snapshot of the thread in append order
func (e *Engine) Messages() []domain.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// LoadInitial fetches the thread and replaces the local cache. Entries the
// backend serves without an id are dropped as malformed.
func (e *Engine) LoadInitial(ctx context.Context) error {
	wires, err := e.api.Messages(ctx, e.rideID)
	if err != nil {
		return e.escalate(err)
	}

	fresh := make([]domain.Message, 0, len(wires))
	for _, w := range wires {
		if w.ID == "" {
			e.logger.Warn("Dropping malformed message without id",
				logger.String("ride_id", e.rideID.String()),
			)
			continue
		}
		fresh = append(fresh, w.ToMessage())
	}

	e.mu.Lock()
	e.messages = fresh
	e.mu.Unlock()
	return nil
}

// Send appends an optimistic pending message and issues the network send.
// Network failures land on the message itself as a failed delivery state and
// never reach the caller; only a 401 escalates.
func (e *Engine) Send(ctx context.Context, text string) (domain.MessageID, error) {
	e.mu.Lock()
	e.localSeq++
	seq := e.localSeq
	msg := domain.Message{
		ID:            domain.MessageID{Local: seq},
		RideID:        e.rideID,
		SenderID:      e.selfID,
		ReceiverID:    e.peerID,
		Text:          text,
		CreatedAt:     e.clock(),
		DeliveryState: domain.DeliveryPending,
	}
	e.messages = append(e.messages, msg)
	e.mu.Unlock()

	return msg.ID, e.deliver(ctx, seq, text)
}

// Retry re-sends a previously failed message
func (e *Engine) Retry(ctx context.Context, id domain.MessageID) error {
	e.mu.Lock()
	idx := e.indexOfLocal(id.Local)
	if idx < 0 {
		e.mu.Unlock()
		return apperrors.ErrMessageNotFound
	}
	if e.messages[idx].DeliveryState != domain.DeliveryFailed {
		e.mu.Unlock()
		return nil
	}
	e.messages[idx].DeliveryState = domain.DeliveryPending
	text := e.messages[idx].Text
	e.mu.Unlock()

	return e.deliver(ctx, id.Local, text)
}

// deliver runs the POST and reconciles the optimistic entry with the result
func (e *Engine) deliver(ctx context.Context, seq uint64, text string) error {
	wire, err := e.api.Post(ctx, e.rideID, text)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		if idx := e.indexOfLocal(seq); idx >= 0 {
			e.messages[idx].DeliveryState = domain.DeliveryFailed
		}
		if errors.Is(err, apperrors.ErrUnauthenticated) {
			e.onUnauthenticated()
			return apperrors.ErrUnauthenticated
		}
		e.logger.Warn("Message send failed",
			logger.Uint64("local_seq", seq),
			logger.Err(err),
		)
		return nil
	}

	// The realtime echo may have landed first and already replaced the
	// optimistic entry. In that case the HTTP body is a duplicate.
	if e.indexOfServer(wire.ID) >= 0 {
		if idx := e.indexOfLocal(seq); idx >= 0 {
			e.messages = append(e.messages[:idx], e.messages[idx+1:]...)
		}
		return nil
	}

	if idx := e.indexOfLocal(seq); idx >= 0 {
		e.messages = append(e.messages[:idx], e.messages[idx+1:]...)
	}
	e.messages = append(e.messages, wire.ToMessage())
	return nil
}

// OnNewMessage folds a real-time push into the thread. An id match merges in
// place; otherwise a matching optimistic-pending entry is dropped and the
// canonical message appended.
func (e *Engine) OnNewMessage(ev domain.NewMessageEvent) {
	msg := ev.Message
	if !msg.ID.Confirmed() {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if idx := e.indexOfServer(msg.ID.Server); idx >= 0 {
		e.messages[idx].IsRead = msg.IsRead
		e.messages[idx].DeliveryState = domain.DeliverySent
		return
	}

	for i, m := range e.messages {
		if !m.ID.Confirmed() && m.DeliveryState == domain.DeliveryPending &&
			m.SenderID == msg.SenderID && m.Text == msg.Text {
			e.messages = append(e.messages[:i], e.messages[i+1:]...)
			break
		}
	}

	msg.DeliveryState = domain.DeliverySent
	e.messages = append(e.messages, msg)
}

// OnMessageRead flips the read receipt on the matching message only
func (e *Engine) OnMessageRead(ev domain.MessageReadEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx := e.indexOfServer(ev.ServerID); idx >= 0 {
		e.messages[idx].IsRead = true
	}
}

// MarkRead tells the backend the thread was read and reflects it locally on
// messages received from the peer
func (e *Engine) MarkRead(ctx context.Context) error {
	if err := e.api.MarkRead(ctx, e.rideID); err != nil {
		return e.escalate(err)
	}

	e.mu.Lock()
	for i := range e.messages {
		if e.messages[i].SenderID == e.peerID {
			e.messages[i].IsRead = true
		}
	}
	e.mu.Unlock()
	return nil
}

// escalate forwards 401s through the callback and returns the error as-is
func (e *Engine) escalate(err error) error {
	if errors.Is(err, apperrors.ErrUnauthenticated) {
		e.onUnauthenticated()
	}
	return err
}

// indexOfLocal finds an unconfirmed entry by local sequence. Caller holds the lock.
func (e *Engine) indexOfLocal(seq uint64) int {
	if seq == 0 {
		return -1
	}
	for i, m := range e.messages {
		if !m.ID.Confirmed() && m.ID.Local == seq {
			return i
		}
	}
	return -1
}

// indexOfServer finds an entry by server id. Caller holds the lock.
func (e *Engine) indexOfServer(serverID string) int {
	if serverID == "" {
		return -1
	}
	for i, m := range e.messages {
		if m.ID.Server == serverID {
			return i
		}
	}
	return -1
}
