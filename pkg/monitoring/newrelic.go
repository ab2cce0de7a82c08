package monitoring

import (
	"fmt"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// Config holds New Relic configuration
type Config struct {
	LicenseKey string
	AppName    string
	Enabled    bool
}

// NewRelicApp wraps the New Relic application. All recorders are no-ops when
// the agent is disabled so callers never have to branch.
type NewRelicApp struct {
	*newrelic.Application
	enabled bool
}

// New creates a new New Relic application
func New(cfg Config) (*NewRelicApp, error) {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		return &NewRelicApp{nil, false}, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create New Relic application: %w", err)
	}

	return &NewRelicApp{app, true}, nil
}

// Disabled returns an application whose recorders are all no-ops
func Disabled() *NewRelicApp {
	return &NewRelicApp{nil, false}
}

// IsEnabled returns whether New Relic is enabled
func (nr *NewRelicApp) IsEnabled() bool {
	return nr.enabled
}

// Shutdown gracefully shuts down the New Relic application
func (nr *NewRelicApp) Shutdown(timeout time.Duration) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.Shutdown(timeout)
}

// RecordCustomEvent records a custom event
func (nr *NewRelicApp) RecordCustomEvent(eventType string, params map[string]interface{}) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.RecordCustomEvent(eventType, params)
}

// RecordCustomMetric records a custom metric
func (nr *NewRelicApp) RecordCustomMetric(name string, value float64) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.RecordCustomMetric(name, value)
}

// Lifecycle event helpers

// RecordRideRequested records a booking confirmation
func (nr *NewRelicApp) RecordRideRequested(rideID, vehicleType string, fare int64) {
	nr.RecordCustomEvent("RideRequested", map[string]interface{}{
		"ride_id":      rideID,
		"vehicle_type": vehicleType,
		"fare":         fare,
		"timestamp":    time.Now().Unix(),
	})
}

// RecordRideStatus records a lifecycle transition
func (nr *NewRelicApp) RecordRideStatus(rideID, status string) {
	nr.RecordCustomEvent("RideStatusChanged", map[string]interface{}{
		"ride_id": rideID,
		"status":  status,
	})
}

// RecordRideCompleted records ride completion
func (nr *NewRelicApp) RecordRideCompleted(rideID string, fare int64, durationMinutes int) {
	nr.RecordCustomEvent("RideCompleted", map[string]interface{}{
		"ride_id":  rideID,
		"fare":     fare,
		"duration": durationMinutes,
	})
}

// RecordNotificationFailure counts dropped best-effort notifications
func (nr *NewRelicApp) RecordNotificationFailure(kind string) {
	nr.RecordCustomMetric(fmt.Sprintf("custom/notify/failures/%s", kind), 1)
}

// RecordRouteLatency records how long route resolution took
func (nr *NewRelicApp) RecordRouteLatency(latencyMs float64) {
	nr.RecordCustomMetric("custom/routing/latency_ms", latencyMs)
}
