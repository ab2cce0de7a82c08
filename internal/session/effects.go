package session

import (
	"context"
	"time"

	"github.com/gocomet/ride-sdk/internal/backend"
	"github.com/gocomet/ride-sdk/internal/domain/ride"
	"github.com/gocomet/ride-sdk/internal/history"
	"github.com/gocomet/ride-sdk/pkg/logger"
	"github.com/gocomet/ride-sdk/pkg/monitoring"
)

const effectTimeout = 10 * time.Second

// Executor runs transition effects produced by the state machine. Effects
// are detached from the caller's context: a transition has already landed by
// the time its effects run, and a dying screen must not cancel them.
type Executor struct {
	notifier backend.Notifier
	history  history.Store
	monitor  *monitoring.NewRelicApp
	logger   *logger.Logger
}

// NewExecutor creates an effect executor. A nil monitor disables lifecycle
// recording.
func NewExecutor(notifier backend.Notifier, store history.Store, monitor *monitoring.NewRelicApp, log *logger.Logger) *Executor {
	if monitor == nil {
		monitor = monitoring.Disabled()
	}
	return &Executor{
		notifier: notifier,
		history:  store,
		monitor:  monitor,
		logger:   log,
	}
}

// Run executes the effects asynchronously, best-effort. Failures are logged
// and counted; they never roll anything back.
func (e *Executor) Run(_ context.Context, effects []ride.Effect) {
	if len(effects) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), effectTimeout)
		defer cancel()

		for _, effect := range effects {
			switch ef := effect.(type) {
			case ride.NotifyEffect:
				e.notify(ctx, ef)
			case ride.ArchiveEffect:
				e.archive(ctx, ef)
			}
		}
	}()
}

func (e *Executor) notify(ctx context.Context, ef ride.NotifyEffect) {
	payload := map[string]interface{}{
		"ride_id": ef.Ride.ID.String(),
		"status":  string(ef.Ride.Status),
		"fare":    ef.Ride.Fare,
	}
	if ef.Ride.DriverID != nil {
		payload["driver_id"] = ef.Ride.DriverID.String()
	}

	if err := e.notifier.Notify(ctx, ef.Kind, payload); err != nil {
		e.logger.Warn("Notification delivery failed",
			logger.String("kind", string(ef.Kind)),
			logger.String("ride_id", ef.Ride.ID.String()),
			logger.Err(err),
		)
		e.monitor.RecordNotificationFailure(string(ef.Kind))
		return
	}

	if ef.Kind == ride.NotifyNewRequest {
		e.monitor.RecordRideRequested(ef.Ride.ID.String(), string(ef.Ride.VehicleType), ef.Ride.Fare)
		return
	}
	e.monitor.RecordRideStatus(ef.Ride.ID.String(), string(ef.Ride.Status))
}

func (e *Executor) archive(ctx context.Context, ef ride.ArchiveEffect) {
	if err := e.history.Append(ctx, ef.Ride); err != nil {
		e.logger.Error("Failed to archive completed ride",
			logger.String("ride_id", ef.Ride.ID.String()),
			logger.Err(err),
		)
		return
	}

	e.monitor.RecordRideCompleted(
		ef.Ride.ID.String(),
		ef.Ride.Fare,
		ef.Ride.EstimatedDurationMinutes,
	)
}
