package booking

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/gocomet/ride-sdk/internal/domain/booking"
	"github.com/gocomet/ride-sdk/internal/domain/geo"
	"github.com/gocomet/ride-sdk/internal/domain/ride"
	"github.com/gocomet/ride-sdk/internal/service/pricing"
	"github.com/gocomet/ride-sdk/internal/service/routing"
	apperrors "github.com/gocomet/ride-sdk/pkg/errors"
	"github.com/gocomet/ride-sdk/pkg/logger"
)

var (
	hamra   = geo.Location{Latitude: 33.8938, Longitude: 35.5018, Address: "Hamra Street"}
	airport = geo.Location{Latitude: 33.8750, Longitude: 35.4444, Address: "Airport Road"}
	museum  = geo.Location{Latitude: 33.8790, Longitude: 35.5146, Address: "National Museum"}
)

// fakeResolver hands back a fixed distance/duration for any endpoint pair
type fakeResolver struct {
	mu              sync.Mutex
	calls           int
	distanceMeters  float64
	durationSeconds float64
	err             error
}

func (f *fakeResolver) Resolve(_ context.Context, start, end geo.Location) (*geo.Route, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &geo.Route{
		ID:              uuid.New(),
		Start:           start,
		End:             end,
		Polyline:        []geo.LatLng{start.LatLng(), end.LatLng()},
		DistanceMeters:  f.distanceMeters,
		DurationSeconds: f.durationSeconds,
	}, nil
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// gatedResolver blocks its first call until released, then behaves like the
// inner resolver. Later calls pass straight through.
type gatedResolver struct {
	inner   *fakeResolver
	started chan struct{}
	release chan struct{}
	once    atomic.Bool
	first   *geo.Route
}

func (g *gatedResolver) Resolve(ctx context.Context, start, end geo.Location) (*geo.Route, error) {
	if g.once.CompareAndSwap(false, true) {
		close(g.started)
		<-g.release
		r := *g.first
		r.Start, r.End = start, end
		return &r, nil
	}
	return g.inner.Resolve(ctx, start, end)
}

func testSession(resolver routing.Resolver) (*Session, *ride.Machine) {
	calc := pricing.NewCalculator(pricing.DefaultRates, pricing.StaticPromos{"FIRST10": 0.10})
	machine := ride.NewMachine(ride.NopRunner{}, logger.Nop())
	return NewSession(uuid.New(), resolver, calc, machine, logger.Nop()), machine
}

// TestSession_IncompleteEndpoints tests that a single endpoint derives nothing
func TestSession_IncompleteEndpoints(t *testing.T) {
	resolver := &fakeResolver{distanceMeters: 4200, durationSeconds: 600}
	s, _ := testSession(resolver)
	ctx := context.Background()

	require.NoError(t, s.SetPickup(ctx, hamra))
	assert.Nil(t, s.Booking())
	assert.Zero(t, resolver.callCount(), "resolver should not run without both endpoints")
}

// TestSession_DerivesBooking tests the full derivation once both endpoints are set
func TestSession_DerivesBooking(t *testing.T) {
	resolver := &fakeResolver{distanceMeters: 4200, durationSeconds: 600}
	s, _ := testSession(resolver)
	ctx := context.Background()

	require.NoError(t, s.SetPickup(ctx, hamra))
	require.NoError(t, s.SetDestination(ctx, airport))

	bk := s.Booking()
	require.NotNil(t, bk)
	assert.Equal(t, int64(18400), bk.BaseFare)
	assert.Equal(t, int64(18400), bk.FinalFare, "economy without promo pays the base fare")
	assert.Equal(t, domain.VehicleEconomy, bk.VehicleType)
	assert.Equal(t, domain.PaymentCash, bk.PaymentMethod)
	assert.Equal(t, "Hamra Street", bk.Pickup.Address)
	assert.Equal(t, 1, resolver.callCount())
}

// TestSession_VehicleChangeKeepsRoute tests that selection changes reprice
// without touching the resolved route
func TestSession_VehicleChangeKeepsRoute(t *testing.T) {
	resolver := &fakeResolver{distanceMeters: 4200, durationSeconds: 600}
	s, _ := testSession(resolver)
	ctx := context.Background()

	require.NoError(t, s.SetPickup(ctx, hamra))
	require.NoError(t, s.SetDestination(ctx, airport))
	before := s.Booking()
	require.NotNil(t, before)

	require.NoError(t, s.SetVehicleType(ctx, domain.VehicleComfort))
	require.NoError(t, s.SetPaymentMethod(ctx, domain.PaymentCard))
	require.NoError(t, s.ApplyPromoCode(ctx, "FIRST10"))

	after := s.Booking()
	require.NotNil(t, after)
	assert.Equal(t, before.Route.ID, after.Route.ID, "route must not be re-resolved")
	assert.Equal(t, before.BaseFare, after.BaseFare, "base fare must not change")
	assert.Equal(t, int64(2392), after.Discount)
	assert.Equal(t, int64(21528), after.FinalFare)
	assert.Equal(t, domain.PaymentCard, after.PaymentMethod)
	assert.Equal(t, 1, resolver.callCount(), "only the endpoint changes resolve routes")
}

// TestSession_RouteUnavailable tests that a failed resolution clears the booking
func TestSession_RouteUnavailable(t *testing.T) {
	resolver := &fakeResolver{distanceMeters: 4200, durationSeconds: 600}
	s, _ := testSession(resolver)
	ctx := context.Background()

	require.NoError(t, s.SetPickup(ctx, hamra))
	require.NoError(t, s.SetDestination(ctx, airport))
	require.NotNil(t, s.Booking())

	resolver.err = assert.AnError
	err := s.SetDestination(ctx, museum)
	assert.ErrorIs(t, err, apperrors.ErrRouteUnavailable)
	assert.Nil(t, s.Booking(), "failed resolution clears the derived booking")

	// recovery on the next successful resolution
	resolver.err = nil
	require.NoError(t, s.SetDestination(ctx, airport))
	assert.NotNil(t, s.Booking())
}

// TestSession_UnauthenticatedPassesThrough tests that a 401 from the resolver
// is surfaced unchanged
func TestSession_UnauthenticatedPassesThrough(t *testing.T) {
	resolver := &fakeResolver{err: apperrors.ErrUnauthenticated}
	s, _ := testSession(resolver)
	ctx := context.Background()

	require.NoError(t, s.SetPickup(ctx, hamra))
	err := s.SetDestination(ctx, airport)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	assert.Nil(t, s.Booking())
}

// TestSession_StaleResolutionDiscarded tests last write wins when an older
// resolution completes after a newer one
func TestSession_StaleResolutionDiscarded(t *testing.T) {
	inner := &fakeResolver{distanceMeters: 4200, durationSeconds: 600}
	gated := &gatedResolver{
		inner:   inner,
		started: make(chan struct{}),
		release: make(chan struct{}),
		first: &geo.Route{
			ID:              uuid.New(),
			DistanceMeters:  99999,
			DurationSeconds: 9999,
		},
	}
	s, _ := testSession(gated)
	ctx := context.Background()

	require.NoError(t, s.SetPickup(ctx, hamra))

	done := make(chan error, 1)
	go func() {
		done <- s.SetDestination(ctx, museum)
	}()
	<-gated.started

	// newer selection completes while the first resolution is in flight
	require.NoError(t, s.SetDestination(ctx, airport))
	fresh := s.Booking()
	require.NotNil(t, fresh)
	assert.Equal(t, int64(18400), fresh.BaseFare)

	close(gated.release)
	require.NoError(t, <-done)

	after := s.Booking()
	require.NotNil(t, after)
	assert.Equal(t, fresh.Route.ID, after.Route.ID, "stale completion must not overwrite the newer route")
	assert.Equal(t, int64(18400), after.BaseFare)
}

// TestSession_ConfirmWithoutBooking tests confirmation of an incomplete session
func TestSession_ConfirmWithoutBooking(t *testing.T) {
	resolver := &fakeResolver{distanceMeters: 4200, durationSeconds: 600}
	s, _ := testSession(resolver)

	_, err := s.Confirm(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrIncompleteBooking)
}

// TestSession_Confirm tests that confirmation requests the ride and resets
func TestSession_Confirm(t *testing.T) {
	resolver := &fakeResolver{distanceMeters: 4200, durationSeconds: 600}
	s, machine := testSession(resolver)
	ctx := context.Background()

	require.NoError(t, s.SetPickup(ctx, hamra))
	require.NoError(t, s.SetDestination(ctx, airport))
	require.NoError(t, s.SetVehicleType(ctx, domain.VehicleComfort))
	require.NoError(t, s.ApplyPromoCode(ctx, "FIRST10"))

	requested, err := s.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusPending, requested.Status)
	assert.Equal(t, int64(21528), requested.Fare)
	assert.Equal(t, domain.VehicleComfort, requested.VehicleType)
	assert.Equal(t, 10, requested.EstimatedDurationMinutes)

	active := machine.Active()
	require.NotNil(t, active)
	assert.Equal(t, requested.ID, active.ID)

	assert.Nil(t, s.Booking(), "confirmation clears the session")
}

// TestSession_ConfirmBlockedByActiveRide tests that the machine's single-ride
// rule reaches the caller and leaves the draft intact
func TestSession_ConfirmBlockedByActiveRide(t *testing.T) {
	resolver := &fakeResolver{distanceMeters: 4200, durationSeconds: 600}
	s, machine := testSession(resolver)
	ctx := context.Background()

	_, err := machine.Request(ctx, ride.Ride{RiderID: uuid.New()})
	require.NoError(t, err)

	require.NoError(t, s.SetPickup(ctx, hamra))
	require.NoError(t, s.SetDestination(ctx, airport))

	_, err = s.Confirm(ctx)
	assert.ErrorIs(t, err, apperrors.ErrActiveRideExists)
	assert.NotNil(t, s.Booking(), "failed confirmation keeps the draft")
}

// TestSession_Cancel tests that cancellation resets every selection
func TestSession_Cancel(t *testing.T) {
	resolver := &fakeResolver{distanceMeters: 4200, durationSeconds: 600}
	s, _ := testSession(resolver)
	ctx := context.Background()

	require.NoError(t, s.SetPickup(ctx, hamra))
	require.NoError(t, s.SetDestination(ctx, airport))
	require.NoError(t, s.SetVehicleType(ctx, domain.VehiclePremium))
	require.NotNil(t, s.Booking())

	s.Cancel()
	assert.Nil(t, s.Booking())

	// defaults are back after the reset
	require.NoError(t, s.SetPickup(ctx, hamra))
	require.NoError(t, s.SetDestination(ctx, airport))
	bk := s.Booking()
	require.NotNil(t, bk)
	assert.Equal(t, domain.VehicleEconomy, bk.VehicleType)
	assert.Equal(t, domain.PaymentCash, bk.PaymentMethod)
	assert.Empty(t, bk.PromoCode)
}
