package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad_Defaults tests the configuration defaults without environment overrides
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Backend.BaseURL)
	assert.Equal(t, "ws://localhost:8080/v1/ws", cfg.Backend.RealtimeURL)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "http://localhost:8080", cfg.Routing.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Routing.Timeout)

	assert.Equal(t, float64(5000), cfg.Pricing.BaseFare)
	assert.Equal(t, float64(2000), cfg.Pricing.PerKMRate)
	assert.Equal(t, float64(500), cfg.Pricing.PerMinute)
	assert.Equal(t, map[string]float64{"FIRST10": 0.10}, cfg.Promos.Codes)

	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.Database.DSN)
	assert.False(t, cfg.NewRelic.Enabled)
	assert.Equal(t, ":8080", cfg.Sandbox.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

// TestLoad_Overrides tests environment variable overrides
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "https://api.example.com")
	t.Setenv("BACKEND_TIMEOUT", "3s")
	t.Setenv("FARE_BASE", "7000")
	t.Setenv("PROMO_CODES", "welcome5=0.05, HALF=0.5")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("PG_DSN", "postgres://localhost/rides?sslmode=disable")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, float64(7000), cfg.Pricing.BaseFare)
	assert.Equal(t, map[string]float64{"WELCOME5": 0.05, "HALF": 0.5}, cfg.Promos.Codes)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "postgres://localhost/rides?sslmode=disable", cfg.Database.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
}

// TestLoad_RejectsBadPromoFraction tests validation of promo fractions
func TestLoad_RejectsBadPromoFraction(t *testing.T) {
	t.Setenv("PROMO_CODES", "FREE=1.0")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "FREE")
}

// TestLoad_InvalidDurationFallsBack tests that a bad duration uses the default
func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("BACKEND_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
}

// TestParsePromos tests the code=fraction decoder
func TestParsePromos(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected map[string]float64
	}{
		{
			name:     "Single pair",
			raw:      "FIRST10=0.10",
			expected: map[string]float64{"FIRST10": 0.10},
		},
		{
			name:     "Multiple with whitespace and casing",
			raw:      " first10 = 0.10 , HALF=0.5",
			expected: map[string]float64{"FIRST10": 0.10, "HALF": 0.5},
		},
		{
			name:     "Malformed entries skipped",
			raw:      "FIRST10=0.10,broken,NOPE=abc,=0.2",
			expected: map[string]float64{"FIRST10": 0.10},
		},
		{
			name:     "Empty input",
			raw:      "",
			expected: map[string]float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parsePromos(tt.raw))
		})
	}
}
