// Package booking composes route resolution, fare calculation and rider
// selections into one pending-booking aggregate per session.
package booking

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	domain "github.com/gocomet/ride-sdk/internal/domain/booking"
	"github.com/gocomet/ride-sdk/internal/domain/geo"
	"github.com/gocomet/ride-sdk/internal/domain/ride"
	"github.com/gocomet/ride-sdk/internal/service/pricing"
	"github.com/gocomet/ride-sdk/internal/service/routing"
	apperrors "github.com/gocomet/ride-sdk/pkg/errors"
	"github.com/gocomet/ride-sdk/pkg/logger"
)

// Session holds the mutable pre-confirmation state: endpoints, vehicle,
// payment, promo and the derived booking. Every input change recomputes the
// derived booking as a whole; readers see either the previous fully-formed
// value or the new one, never a mix.
type Session struct {
	mu sync.Mutex

	riderID  uuid.UUID
	resolver routing.Resolver
	calc     *pricing.Calculator
	machine  *ride.Machine
	logger   *logger.Logger

	pickup      *geo.Location
	destination *geo.Location
	vehicle     domain.VehicleType
	payment     domain.PaymentMethod
	promoCode   string

	route   *geo.Route
	derived *domain.Booking

	// routeSeq tags each resolution so an out-of-order completion cannot
	// overwrite a newer result (last write wins).
	routeSeq uint64
}

// NewSession creates a booking session for one rider
func NewSession(riderID uuid.UUID, resolver routing.Resolver, calc *pricing.Calculator, machine *ride.Machine, log *logger.Logger) *Session {
	return &Session{
		riderID:  riderID,
		resolver: resolver,
		calc:     calc,
		machine:  machine,
		logger:   log,
		vehicle:  domain.VehicleEconomy,
		payment:  domain.PaymentCash,
	}
}

// Booking returns a copy of the derived booking, or nil when incomplete
func (s *Session) Booking() *domain.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.derived == nil {
		return nil
	}
	cp := *s.derived
	return &cp
}

// SetPickup updates the pickup endpoint and re-resolves the route
func (s *Session) SetPickup(ctx context.Context, loc geo.Location) error {
	s.mu.Lock()
	s.pickup = &loc
	s.mu.Unlock()
	return s.recomputeRoute(ctx)
}

// SetDestination updates the destination endpoint and re-resolves the route
func (s *Session) SetDestination(ctx context.Context, loc geo.Location) error {
	s.mu.Lock()
	s.destination = &loc
	s.mu.Unlock()
	return s.recomputeRoute(ctx)
}

// SetVehicleType changes the vehicle class and reprices against the current
// route. The route and base fare are untouched.
func (s *Session) SetVehicleType(ctx context.Context, v domain.VehicleType) error {
	s.mu.Lock()
	s.vehicle = v
	s.repriceLocked(ctx)
	s.mu.Unlock()
	return nil
}

// SetPaymentMethod changes how the rider pays
func (s *Session) SetPaymentMethod(ctx context.Context, m domain.PaymentMethod) error {
	s.mu.Lock()
	s.payment = m
	s.repriceLocked(ctx)
	s.mu.Unlock()
	return nil
}

// ApplyPromoCode sets the promo code and reprices. Unknown codes simply
// produce a zero discount.
func (s *Session) ApplyPromoCode(ctx context.Context, code string) error {
	s.mu.Lock()
	s.promoCode = code
	s.repriceLocked(ctx)
	s.mu.Unlock()
	return nil
}

// Confirm converts the derived booking into a requested ride and clears the
// session. Without a derived booking it fails with ErrIncompleteBooking.
func (s *Session) Confirm(ctx context.Context) (*ride.Ride, error) {
	s.mu.Lock()
	if s.derived == nil {
		s.mu.Unlock()
		return nil, apperrors.ErrIncompleteBooking
	}
	draft := *s.derived
	s.mu.Unlock()

	r := ride.Ride{
		RiderID:                  s.riderID,
		VehicleType:              draft.VehicleType,
		PaymentMethod:            draft.PaymentMethod,
		Pickup:                   draft.Pickup,
		Dropoff:                  draft.Destination,
		Fare:                     draft.FinalFare,
		EstimatedDurationMinutes: draft.Route.DurationMinutes(),
	}

	requested, err := s.machine.Request(ctx, r)
	if err != nil {
		return nil, err
	}

	s.Cancel()
	return requested, nil
}

// Cancel clears all session state. Safe to call repeatedly.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pickup = nil
	s.destination = nil
	s.vehicle = domain.VehicleEconomy
	s.payment = domain.PaymentCash
	s.promoCode = ""
	s.route = nil
	s.derived = nil
	s.routeSeq++
}

// recomputeRoute resolves the route for the current endpoint pair and
// rebuilds the derived booking. The resolver call runs without the session
// lock; a stale completion is discarded by sequence check.
func (s *Session) recomputeRoute(ctx context.Context) error {
	s.mu.Lock()
	if s.pickup == nil || s.destination == nil {
		s.route = nil
		s.derived = nil
		s.routeSeq++
		s.mu.Unlock()
		return nil
	}
	s.routeSeq++
	seq := s.routeSeq
	start, end := *s.pickup, *s.destination
	s.mu.Unlock()

	route, err := s.resolver.Resolve(ctx, start, end)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.routeSeq {
		s.logger.Debug("Discarding stale route resolution",
			logger.Uint64("seq", seq),
			logger.Uint64("latest", s.routeSeq),
		)
		return nil
	}

	if err != nil {
		s.route = nil
		s.derived = nil
		if errors.Is(err, apperrors.ErrUnauthenticated) {
			return err
		}
		s.logger.Warn("Route resolution failed", logger.Err(err))
		return apperrors.ErrRouteUnavailable
	}

	s.route = route
	s.repriceLocked(ctx)
	return nil
}

// repriceLocked rebuilds the derived booking from the current route and
// selections. Caller must hold the lock.
func (s *Session) repriceLocked(ctx context.Context) {
	if s.route == nil || s.pickup == nil || s.destination == nil {
		s.derived = nil
		return
	}

	base := s.calc.BaseFare(s.route.DistanceMeters, s.route.DurationSeconds)
	quote := s.calc.FinalFare(ctx, base, s.vehicle, s.promoCode)

	s.derived = &domain.Booking{
		Pickup:        *s.pickup,
		Destination:   *s.destination,
		Route:         s.route,
		BaseFare:      base,
		FinalFare:     quote.Total,
		Discount:      quote.Discount,
		VehicleType:   s.vehicle,
		PaymentMethod: s.payment,
		PromoCode:     s.promoCode,
	}
}
