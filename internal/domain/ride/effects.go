package ride

import "context"

// NotificationKind identifies an outbound notification event
type NotificationKind string

const (
	NotifyNewRequest     NotificationKind = "new_request"
	NotifyRideAccepted   NotificationKind = "ride_accepted"
	NotifyDriverArriving NotificationKind = "driver_arriving"
	NotifyTripStarted    NotificationKind = "trip_started"
	NotifyTripCompleted  NotificationKind = "trip_completed"
	NotifyRideCancelled  NotificationKind = "ride_cancelled"
	NotifySOS            NotificationKind = "sos"
)

// notifyFor maps the status a ride just entered to the notification emitted.
// Exactly one notification goes out per transition.
var notifyFor = map[Status]NotificationKind{
	StatusPending:   NotifyNewRequest,
	StatusAccepted:  NotifyRideAccepted,
	StatusOnWay:     NotifyDriverArriving,
	StatusStarted:   NotifyTripStarted,
	StatusCompleted: NotifyTripCompleted,
	StatusCancelled: NotifyRideCancelled,
}

// Effect is a side effect produced by a transition. The machine never runs
// effects itself; a Runner executes them after the state change has landed,
// so a failed notification cannot roll back a transition.
type Effect interface {
	isEffect()
}

// NotifyEffect asks the runner to emit one outbound notification
type NotifyEffect struct {
	Kind NotificationKind
	Ride Ride
}

func (NotifyEffect) isEffect() {}

// ArchiveEffect asks the runner to append a completed ride to history
type ArchiveEffect struct {
	Ride Ride
}

func (ArchiveEffect) isEffect() {}

// Runner executes transition effects asynchronously, fire-and-forget
type Runner interface {
	Run(ctx context.Context, effects []Effect)
}

// NopRunner discards all effects. Used in tests that only care about state.
type NopRunner struct{}

func (NopRunner) Run(context.Context, []Effect) {}
