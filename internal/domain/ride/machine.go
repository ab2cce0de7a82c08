package ride

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/gocomet/ride-sdk/pkg/errors"
	"github.com/gocomet/ride-sdk/pkg/logger"
)

// Machine owns the single active-ride slot for a session and serializes all
// lifecycle transitions through the allowed-transition table. Transitions are
// synchronous; only the resulting effects run asynchronously, so a second
// transition can never interleave with one in flight.
type Machine struct {
	mu     sync.Mutex
	active *Ride
	runner Runner
	logger *logger.Logger
	clock  func() time.Time
}

// NewMachine creates a state machine with the given effect runner
func NewMachine(runner Runner, log *logger.Logger) *Machine {
	if runner == nil {
		runner = NopRunner{}
	}
	return &Machine{
		runner: runner,
		logger: log,
		clock:  time.Now,
	}
}

// Active returns a copy of the current non-terminal ride, or nil
func (m *Machine) Active() *Ride {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	cp := *m.active
	return &cp
}

// Request creates the active ride from a confirmed booking draft. At most one
// non-terminal ride may exist per session; a second request is rejected.
func (m *Machine) Request(ctx context.Context, r Ride) (*Ride, error) {
	m.mu.Lock()

	if m.active != nil {
		m.mu.Unlock()
		return nil, apperrors.ErrActiveRideExists
	}

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.Status = StatusPending
	r.CreatedAt = m.clock()
	m.active = &r

	cp := r
	m.mu.Unlock()

	m.logger.Info("Ride requested",
		logger.String("ride_id", cp.ID.String()),
		logger.String("vehicle_type", string(cp.VehicleType)),
		logger.Int64("fare", cp.Fare),
	)

	m.runner.Run(ctx, []Effect{NotifyEffect{Kind: NotifyNewRequest, Ride: cp}})
	return &cp, nil
}

// Accept assigns a driver to the pending ride. A stale or duplicate
// acceptance callback carrying a different ride id is ignored without
// touching the current ride.
func (m *Machine) Accept(ctx context.Context, rideID, driverID uuid.UUID) (*Ride, error) {
	m.mu.Lock()

	if m.active == nil || m.active.ID != rideID {
		m.mu.Unlock()
		m.logger.Warn("Ignoring acceptance for unknown ride",
			logger.String("ride_id", rideID.String()),
			logger.String("driver_id", driverID.String()),
		)
		return nil, nil
	}

	if !CanTransition(m.active.Status, StatusAccepted) {
		cur := m.active.Status
		m.mu.Unlock()
		m.logger.Warn("Rejected ride acceptance",
			logger.String("ride_id", rideID.String()),
			logger.String("status", string(cur)),
		)
		return nil, apperrors.ErrInvalidTransition
	}

	now := m.clock()
	m.active.Status = StatusAccepted
	m.active.DriverID = &driverID
	m.active.AcceptedAt = &now

	cp := *m.active
	m.mu.Unlock()

	m.logger.Info("Ride accepted",
		logger.String("ride_id", cp.ID.String()),
		logger.String("driver_id", driverID.String()),
	)

	m.runner.Run(ctx, []Effect{NotifyEffect{Kind: NotifyRideAccepted, Ride: cp}})
	return &cp, nil
}

// UpdateStatus advances the active ride to the target status. Entering a
// terminal status clears the active slot; completion also emits an archive
// effect carrying an immutable copy stamped with CompletedAt.
func (m *Machine) UpdateStatus(ctx context.Context, target Status) (*Ride, error) {
	m.mu.Lock()

	if m.active == nil {
		m.mu.Unlock()
		return nil, apperrors.ErrNoActiveRide
	}

	if !CanTransition(m.active.Status, target) {
		cur := m.active.Status
		m.mu.Unlock()
		m.logger.Warn("Rejected status transition",
			logger.String("from", string(cur)),
			logger.String("to", string(target)),
		)
		return nil, apperrors.ErrInvalidTransition
	}

	now := m.clock()
	m.active.Status = target
	switch target {
	case StatusStarted:
		m.active.StartedAt = &now
	case StatusCompleted:
		m.active.CompletedAt = &now
	case StatusCancelled:
		m.active.CancelledAt = &now
	}

	cp := *m.active

	effects := []Effect{NotifyEffect{Kind: notifyFor[target], Ride: cp}}
	if target == StatusCompleted {
		effects = append(effects, ArchiveEffect{Ride: cp})
	}
	if target.IsTerminal() {
		m.active = nil
	}
	m.mu.Unlock()

	m.logger.Info("Ride status updated",
		logger.String("ride_id", cp.ID.String()),
		logger.String("status", string(target)),
	)

	m.runner.Run(ctx, effects)
	return &cp, nil
}

// Cancel moves the active ride to cancelled with an optional reason
func (m *Machine) Cancel(ctx context.Context, reason string) (*Ride, error) {
	m.mu.Lock()
	if m.active != nil && CanTransition(m.active.Status, StatusCancelled) {
		m.active.CancellationReason = reason
	}
	m.mu.Unlock()
	return m.UpdateStatus(ctx, StatusCancelled)
}

// SOS emits a panic notification for the active ride without touching state
func (m *Machine) SOS(ctx context.Context) error {
	m.mu.Lock()
	if m.active == nil {
		m.mu.Unlock()
		return apperrors.ErrNoActiveRide
	}
	cp := *m.active
	m.mu.Unlock()

	m.logger.Warn("SOS triggered", logger.String("ride_id", cp.ID.String()))
	m.runner.Run(ctx, []Effect{NotifyEffect{Kind: NotifySOS, Ride: cp}})
	return nil
}
