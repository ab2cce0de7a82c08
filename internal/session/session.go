// Package session ties the ride state machine, booking session, chat engine
// and realtime subscription into one explicit per-user aggregate. Nothing
// here is a package-level singleton; lifecycle is scoped to the session.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gocomet/ride-sdk/internal/backend"
	"github.com/gocomet/ride-sdk/internal/domain/chat"
	"github.com/gocomet/ride-sdk/internal/domain/ride"
	"github.com/gocomet/ride-sdk/internal/history"
	bookingsvc "github.com/gocomet/ride-sdk/internal/service/booking"
	chatsvc "github.com/gocomet/ride-sdk/internal/service/chat"
	"github.com/gocomet/ride-sdk/internal/service/pricing"
	"github.com/gocomet/ride-sdk/internal/service/routing"
	apperrors "github.com/gocomet/ride-sdk/pkg/errors"
	"github.com/gocomet/ride-sdk/pkg/logger"
	"github.com/gocomet/ride-sdk/pkg/monitoring"
	"github.com/gocomet/ride-sdk/pkg/realtime"
)

// Options configures a Session
type Options struct {
	RiderID     uuid.UUID
	Resolver    routing.Resolver
	Calculator  *pricing.Calculator
	Notifier    backend.Notifier
	History     history.Store
	ChatAPI     chatsvc.API
	Monitor     *monitoring.NewRelicApp
	Logger      *logger.Logger
	RealtimeURL string
	AuthToken   string

	// OnUnauthenticated fires once when any backend call returns 401.
	// The app reacts by forcing re-authentication; the session only signals.
	OnUnauthenticated func()
}

// Session owns all mutable client-side ride state for one user
type Session struct {
	riderID uuid.UUID
	machine *ride.Machine
	booking *bookingsvc.Session
	store   history.Store
	chatAPI chatsvc.API
	logger  *logger.Logger

	realtimeURL string
	authToken   string

	unauthOnce sync.Once
	onUnauth   func()

	mu       sync.Mutex
	chat     *chatsvc.Engine
	channel  *realtime.Channel
	pumpDone chan struct{}
}

// New creates a session and wires the state machine to its effect executor
func New(opts Options) *Session {
	if opts.OnUnauthenticated == nil {
		opts.OnUnauthenticated = func() {}
	}

	executor := NewExecutor(opts.Notifier, opts.History, opts.Monitor, opts.Logger)
	machine := ride.NewMachine(executor, opts.Logger)

	s := &Session{
		riderID:     opts.RiderID,
		machine:     machine,
		store:       opts.History,
		chatAPI:     opts.ChatAPI,
		logger:      opts.Logger,
		realtimeURL: opts.RealtimeURL,
		authToken:   opts.AuthToken,
		onUnauth:    opts.OnUnauthenticated,
	}
	s.booking = bookingsvc.NewSession(opts.RiderID, opts.Resolver, opts.Calculator, machine, opts.Logger)
	return s
}

// Booking returns the booking session
func (s *Session) Booking() *bookingsvc.Session {
	return s.booking
}

// Rides returns the ride state machine
func (s *Session) Rides() *ride.Machine {
	return s.machine
}

// History lists the user's completed rides
func (s *Session) History(ctx context.Context) ([]ride.Ride, error) {
	return s.store.List(ctx, s.riderID)
}

// OpenChat starts the conversation for the active ride: creates the sync
// engine, loads the thread and subscribes to the realtime channel.
func (s *Session) OpenChat(ctx context.Context, peerID uuid.UUID) (*chatsvc.Engine, error) {
	active := s.machine.Active()
	if active == nil {
		return nil, apperrors.ErrNoActiveRide
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chat != nil {
		return s.chat, nil
	}

	engine := chatsvc.NewEngine(active.ID, s.riderID, peerID, s.chatAPI, s.logger, s.signalUnauthenticated)
	if err := engine.LoadInitial(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s?ride_id=%s", s.realtimeURL, active.ID)
	channel, err := realtime.Dial(ctx, url, s.authToken, s.logger, func(connected bool) {
		s.logger.Info("Realtime channel state changed",
			logger.String("ride_id", active.ID.String()),
			logger.Bool("connected", connected),
		)
	})
	if err != nil {
		if apperrors.IsUnauthenticated(err) {
			s.signalUnauthenticated()
		}
		return nil, err
	}

	s.chat = engine
	s.channel = channel
	s.pumpDone = make(chan struct{})
	go s.pumpEvents(channel, engine, s.pumpDone)
	return engine, nil
}

// LeaveChat unsubscribes the realtime listener and drops the engine.
// Pending sends finish on their own; their completions reconcile against an
// engine no screen observes anymore.
func (s *Session) LeaveChat() {
	s.mu.Lock()
	channel := s.channel
	done := s.pumpDone
	s.chat = nil
	s.channel = nil
	s.pumpDone = nil
	s.mu.Unlock()

	if channel != nil {
		channel.Close()
		<-done
	}
}

// Close tears the session down
func (s *Session) Close() {
	s.LeaveChat()
}

// pumpEvents dispatches realtime pushes into the sync engine until the
// channel closes
func (s *Session) pumpEvents(channel *realtime.Channel, engine *chatsvc.Engine, done chan struct{}) {
	defer close(done)

	for ev := range channel.Events() {
		switch ev.Type {
		case realtime.EventNewMessage:
			var wire backend.WireMessage
			if err := json.Unmarshal(ev.Data, &wire); err != nil {
				s.logger.Warn("Dropping undecodable message event", logger.Err(err))
				continue
			}
			engine.OnNewMessage(chat.NewMessageEvent{Message: wire.ToMessage()})

		case realtime.EventMessageRead:
			var receipt struct {
				MessageID string `json:"message_id"`
			}
			if err := json.Unmarshal(ev.Data, &receipt); err != nil {
				s.logger.Warn("Dropping undecodable read receipt", logger.Err(err))
				continue
			}
			engine.OnMessageRead(chat.MessageReadEvent{ServerID: receipt.MessageID})

		default:
			s.logger.Debug("Ignoring unknown realtime event",
				logger.String("type", ev.Type),
			)
		}
	}
}

// signalUnauthenticated forwards a 401 upward exactly once per session
func (s *Session) signalUnauthenticated() {
	s.unauthOnce.Do(func() {
		s.logger.Warn("Session is no longer authenticated")
		s.onUnauth()
	})
}
