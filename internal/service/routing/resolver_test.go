package routing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocomet/ride-sdk/internal/domain/geo"
	apperrors "github.com/gocomet/ride-sdk/pkg/errors"
)

var (
	testStart = geo.Location{Latitude: 33.8938, Longitude: 35.5018}
	testEnd   = geo.Location{Latitude: 33.8750, Longitude: 35.4444}
)

const okAnswer = `{
	"code": "Ok",
	"routes": [{
		"distance": 4200,
		"duration": 600,
		"geometry": {"coordinates": [[35.5018, 33.8938], [35.48, 33.88], [35.4444, 33.8750]]}
	}]
}`

// TestResolve_Success tests decoding a well-formed routing answer
func TestResolve_Success(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(okAnswer))
	}))
	defer srv.Close()

	resolver := NewOSRMResolver(srv.URL, time.Second, nil)
	route, err := resolver.Resolve(context.Background(), testStart, testEnd)
	require.NoError(t, err)

	assert.Equal(t, "/route/v1/driving/35.501800,33.893800;35.444400,33.875000", gotPath)
	assert.Equal(t, float64(4200), route.DistanceMeters)
	assert.Equal(t, float64(600), route.DurationSeconds)
	assert.Equal(t, testStart, route.Start)
	assert.Equal(t, testEnd, route.End)

	// [lng, lat] pairs flip into LatLng order
	require.Len(t, route.Polyline, 3)
	assert.Equal(t, geo.LatLng{Latitude: 33.8938, Longitude: 35.5018}, route.Polyline[0])
	assert.Equal(t, geo.LatLng{Latitude: 33.8750, Longitude: 35.4444}, route.Polyline[2])

	assert.InDelta(t, 4.2, route.DistanceKM(), 0.0001)
	assert.Equal(t, 10, route.DurationMinutes())
}

// TestResolve_Failures tests the failure modes mapping to ErrRouteUnavailable
func TestResolve_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "Server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "No route found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"code": "NoRoute", "routes": []}`))
			},
		},
		{
			name: "Ok but empty route list",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"code": "Ok", "routes": []}`))
			},
		},
		{
			name: "Malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"code": "Ok", "routes": [`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			resolver := NewOSRMResolver(srv.URL, time.Second, nil)
			route, err := resolver.Resolve(context.Background(), testStart, testEnd)
			assert.Nil(t, route)
			assert.ErrorIs(t, err, apperrors.ErrRouteUnavailable)
		})
	}
}

// TestResolve_ConnectionRefused tests an unreachable routing server
func TestResolve_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	resolver := NewOSRMResolver(srv.URL, time.Second, nil)
	_, err := resolver.Resolve(context.Background(), testStart, testEnd)
	assert.ErrorIs(t, err, apperrors.ErrRouteUnavailable)
}

// TestResolve_Unauthorized tests that a 401 is distinguished from unavailability
func TestResolve_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	resolver := NewOSRMResolver(srv.URL, time.Second, nil)
	_, err := resolver.Resolve(context.Background(), testStart, testEnd)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	assert.NotErrorIs(t, err, apperrors.ErrRouteUnavailable)
}

// TestResolve_InvalidCoordinates tests input validation before any network call
func TestResolve_InvalidCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for invalid input")
	}))
	defer srv.Close()

	resolver := NewOSRMResolver(srv.URL, time.Second, nil)

	bad := []geo.Location{
		{Latitude: 91, Longitude: 35.5},
		{Latitude: 33.9, Longitude: 181},
		{Latitude: 0, Longitude: 0},
	}
	for _, loc := range bad {
		_, err := resolver.Resolve(context.Background(), loc, testEnd)
		assert.ErrorIs(t, err, apperrors.ErrInvalidCoordinates)

		_, err = resolver.Resolve(context.Background(), testStart, loc)
		assert.ErrorIs(t, err, apperrors.ErrInvalidCoordinates)
	}
}

// TestResolve_ContextCancelled tests that an expired context aborts resolution
func TestResolve_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resolver := NewOSRMResolver(srv.URL, time.Second, nil)
	_, err := resolver.Resolve(ctx, testStart, testEnd)
	assert.ErrorIs(t, err, apperrors.ErrRouteUnavailable)
}
