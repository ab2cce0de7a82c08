package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gocomet/ride-sdk/internal/domain/geo"
	apperrors "github.com/gocomet/ride-sdk/pkg/errors"
	"github.com/gocomet/ride-sdk/pkg/monitoring"
)

// Resolver turns a pickup/destination pair into a Route
type Resolver interface {
	Resolve(ctx context.Context, start, end geo.Location) (*geo.Route, error)
}

// OSRMResolver queries an OSRM-compatible routing server. It performs no
// caching and no retries; every endpoint change triggers a fresh resolution
// and the caller decides what to do on failure.
type OSRMResolver struct {
	endpoint string
	http     *http.Client
	monitor  *monitoring.NewRelicApp
}

// NewOSRMResolver creates a resolver against the given OSRM endpoint.
// A nil monitor disables latency recording.
func NewOSRMResolver(endpoint string, timeout time.Duration, monitor *monitoring.NewRelicApp) *OSRMResolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OSRMResolver{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		monitor:  monitor,
	}
}

// osrmResponse mirrors the subset of the OSRM /route answer we consume.
// Geometry coordinates arrive as [lng, lat] pairs.
type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// Resolve fetches the road route between two locations. Network failures,
// non-2xx answers and empty route lists all surface as ErrRouteUnavailable.
func (r *OSRMResolver) Resolve(ctx context.Context, start, end geo.Location) (*geo.Route, error) {
	if !start.Valid() || !end.Valid() {
		return nil, apperrors.ErrInvalidCoordinates
	}

	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		r.endpoint, start.Longitude, start.Latitude, end.Longitude, end.Latitude)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, "build route request")
	}

	began := time.Now()
	resp, err := r.http.Do(req)
	if r.monitor != nil {
		r.monitor.RecordRouteLatency(float64(time.Since(began).Milliseconds()))
	}
	if err != nil {
		return nil, apperrors.NewAppError(
			apperrors.ErrRouteUnavailable.Code,
			apperrors.ErrRouteUnavailable.Message,
			apperrors.ErrRouteUnavailable.Status,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, apperrors.ErrUnauthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewAppError(
			apperrors.ErrRouteUnavailable.Code,
			apperrors.ErrRouteUnavailable.Message,
			apperrors.ErrRouteUnavailable.Status,
			fmt.Errorf("routing returned %d", resp.StatusCode),
		)
	}

	var out osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.NewAppError(
			apperrors.ErrRouteUnavailable.Code,
			apperrors.ErrRouteUnavailable.Message,
			apperrors.ErrRouteUnavailable.Status,
			err,
		)
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return nil, apperrors.ErrRouteUnavailable
	}

	best := out.Routes[0]
	polyline := make([]geo.LatLng, 0, len(best.Geometry.Coordinates))
	for _, pair := range best.Geometry.Coordinates {
		if len(pair) < 2 {
			continue
		}
		polyline = append(polyline, geo.LatLng{Latitude: pair[1], Longitude: pair[0]})
	}

	return &geo.Route{
		ID:              uuid.New(),
		Start:           start,
		End:             end,
		Polyline:        polyline,
		DistanceMeters:  best.Distance,
		DurationSeconds: best.Duration,
	}, nil
}
