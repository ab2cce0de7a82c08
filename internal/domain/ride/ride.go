package ride

import (
	"time"

	"github.com/google/uuid"

	"github.com/gocomet/ride-sdk/internal/domain/booking"
	"github.com/gocomet/ride-sdk/internal/domain/geo"
)

// Status represents ride status
type Status string

const (
	StatusNone      Status = "none"
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusOnWay     Status = "on_way"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsValid validates the status
func (s Status) IsValid() bool {
	switch s {
	case StatusNone, StatusPending, StatusAccepted, StatusOnWay,
		StatusStarted, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the status ends the ride lifecycle
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Ride represents one confirmed trip from request through completion or
// cancellation. Status is mutated only through Machine transitions.
type Ride struct {
	ID                       uuid.UUID             `json:"id"`
	RiderID                  uuid.UUID             `json:"rider_id"`
	DriverID                 *uuid.UUID            `json:"driver_id,omitempty"`
	Status                   Status                `json:"status"`
	VehicleType              booking.VehicleType   `json:"vehicle_type"`
	PaymentMethod            booking.PaymentMethod `json:"payment_method"`
	Pickup                   geo.Location          `json:"pickup"`
	Dropoff                  geo.Location          `json:"dropoff"`
	Fare                     int64                 `json:"fare"`
	EstimatedDurationMinutes int                   `json:"estimated_duration_minutes"`
	CreatedAt                time.Time             `json:"created_at"`
	AcceptedAt               *time.Time            `json:"accepted_at,omitempty"`
	StartedAt                *time.Time            `json:"started_at,omitempty"`
	CompletedAt              *time.Time            `json:"completed_at,omitempty"`
	CancelledAt              *time.Time            `json:"cancelled_at,omitempty"`
	CancellationReason       string                `json:"cancellation_reason,omitempty"`
}

// transitions is the exhaustive table of allowed status changes. Anything
// absent here is rejected with ErrInvalidTransition and leaves the ride as-is.
var transitions = map[Status][]Status{
	StatusNone:     {StatusPending},
	StatusPending:  {StatusAccepted, StatusCancelled},
	StatusAccepted: {StatusOnWay, StatusCancelled},
	StatusOnWay:    {StatusStarted, StatusCancelled},
	StatusStarted:  {StatusCompleted},
}

// CanTransition reports whether moving from one status to the next is allowed
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
