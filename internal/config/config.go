package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all SDK and sandbox configuration
type Config struct {
	Backend  BackendConfig
	Routing  RoutingConfig
	Pricing  PricingConfig
	Promos   PromoConfig
	Redis    RedisConfig
	Database DatabaseConfig
	NewRelic NewRelicConfig
	Sandbox  SandboxConfig
	Log      LogConfig
}

type BackendConfig struct {
	BaseURL     string
	RealtimeURL string
	AuthToken   string
	Timeout     time.Duration
}

type RoutingConfig struct {
	Endpoint string
	Timeout  time.Duration
}

type PricingConfig struct {
	BaseFare  float64
	PerKMRate float64
	PerMinute float64
}

// PromoConfig seeds the static promo table (code=fraction pairs)
type PromoConfig struct {
	Codes map[string]float64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	DSN      string
	MaxConns int
	MaxIdle  int
}

type NewRelicConfig struct {
	LicenseKey string
	AppName    string
	Enabled    bool
}

type SandboxConfig struct {
	Addr string
	Env  string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		Backend: BackendConfig{
			BaseURL:     getEnv("BACKEND_BASE_URL", "http://localhost:8080"),
			RealtimeURL: getEnv("BACKEND_REALTIME_URL", "ws://localhost:8080/v1/ws"),
			AuthToken:   getEnv("BACKEND_AUTH_TOKEN", ""),
			Timeout:     parseDuration(getEnv("BACKEND_TIMEOUT", "10s"), 10*time.Second),
		},
		Routing: RoutingConfig{
			Endpoint: getEnv("ROUTING_ENDPOINT", "http://localhost:8080"),
			Timeout:  parseDuration(getEnv("ROUTING_TIMEOUT", "5s"), 5*time.Second),
		},
		Pricing: PricingConfig{
			BaseFare:  getEnvAsFloat64("FARE_BASE", 5000),
			PerKMRate: getEnvAsFloat64("FARE_PER_KM", 2000),
			PerMinute: getEnvAsFloat64("FARE_PER_MINUTE", 500),
		},
		Promos: PromoConfig{
			Codes: parsePromos(getEnv("PROMO_CODES", "FIRST10=0.10")),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			DSN:      getEnv("PG_DSN", ""),
			MaxConns: getEnvAsInt("PG_MAX_CONNECTIONS", 10),
			MaxIdle:  getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 2),
		},
		NewRelic: NewRelicConfig{
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			AppName:    getEnv("NEW_RELIC_APP_NAME", "GoComet-RideSDK"),
			Enabled:    getEnvAsBool("NEW_RELIC_ENABLED", false),
		},
		Sandbox: SandboxConfig{
			Addr: getEnv("SANDBOX_ADDR", ":8080"),
			Env:  getEnv("SANDBOX_ENV", "development"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("BACKEND_BASE_URL is required")
	}
	if c.Routing.Endpoint == "" {
		return fmt.Errorf("ROUTING_ENDPOINT is required")
	}
	if c.Pricing.BaseFare < 0 || c.Pricing.PerKMRate < 0 || c.Pricing.PerMinute < 0 {
		return fmt.Errorf("fare rates must be non-negative")
	}
	for code, fraction := range c.Promos.Codes {
		if fraction < 0 || fraction >= 1 {
			return fmt.Errorf("promo %s has fraction %v outside [0,1)", code, fraction)
		}
	}
	return nil
}

// parsePromos decodes "CODE=fraction,CODE=fraction" pairs
func parsePromos(raw string) map[string]float64 {
	out := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(parts[0]))
		fraction, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if code == "" || err != nil {
			continue
		}
		out[code] = fraction
	}
	return out
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
