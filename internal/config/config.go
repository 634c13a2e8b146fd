// Package config holds the core's single explicit initialization entry
// point: a configuration record enumerating every recognized tunable,
// loaded from the environment (optionally via a local .env file) the way
// the teacher's command entrypoints do.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AlertThresholds configures when monitoring raises an alert.
type AlertThresholds struct {
	ValidationFailureRate  float64
	QueryErrorRate         float64
	ProcessingLatencyP95   time.Duration
	QueryLatencyP95        time.Duration
	ConstraintViolationRate float64
}

// Config is the core's full set of recognized runtime options.
type Config struct {
	// MetricsRetentionPeriod bounds the rolling window monitoring retains
	// samples for (ingestion rate, percentiles, validation-failure and
	// query-error rates). Constraint-violation counts are lifetime totals
	// and are not bounded by it.
	MetricsRetentionPeriod time.Duration
	// HealthCheckInterval is the cadence of the background readiness probe.
	HealthCheckInterval time.Duration
	AlertThresholds     AlertThresholds

	// ConcurrentPositionLimit is the max number of currently-effective
	// OCCUPIES edges a Person may hold at once. spec.md calls this
	// "hardcoded to 3... configurable" with no configuration surface;
	// this field is that surface.
	ConcurrentPositionLimit int

	// EventTemporalPastWindow/FutureWindow bound an event's occurredAt
	// relative to now, per the event-store and validation-engine
	// temporal-bounds invariant.
	EventTemporalPastWindow   time.Duration
	EventTemporalFutureWindow time.Duration
}

// Default returns the configuration spec.md's invariants assume: a
// one-year lookback, a one-hour lookahead, and a 3-position concurrency
// limit.
func Default() Config {
	return Config{
		MetricsRetentionPeriod: time.Hour,
		HealthCheckInterval:    30 * time.Second,
		AlertThresholds: AlertThresholds{
			ValidationFailureRate:   0.05,
			QueryErrorRate:          0.02,
			ProcessingLatencyP95:    500 * time.Millisecond,
			QueryLatencyP95:         200 * time.Millisecond,
			ConstraintViolationRate: 0.10,
		},
		ConcurrentPositionLimit:   3,
		EventTemporalPastWindow:   365 * 24 * time.Hour,
		EventTemporalFutureWindow: time.Hour,
	}
}

// Load applies a .env file (if present) then overlays any SOM_-prefixed
// environment variables onto the defaults. A missing .env file is not an
// error — the teacher's command entrypoints treat it the same way.
func Load(envPath string) Config {
	_ = godotenv.Load(envPath)

	cfg := Default()
	if v, ok := durationEnv("SOM_METRICS_RETENTION_PERIOD"); ok {
		cfg.MetricsRetentionPeriod = v
	}
	if v, ok := durationEnv("SOM_HEALTH_CHECK_INTERVAL"); ok {
		cfg.HealthCheckInterval = v
	}
	if v, ok := floatEnv("SOM_ALERT_VALIDATION_FAILURE_RATE"); ok {
		cfg.AlertThresholds.ValidationFailureRate = v
	}
	if v, ok := floatEnv("SOM_ALERT_QUERY_ERROR_RATE"); ok {
		cfg.AlertThresholds.QueryErrorRate = v
	}
	if v, ok := durationEnv("SOM_ALERT_PROCESSING_LATENCY_P95"); ok {
		cfg.AlertThresholds.ProcessingLatencyP95 = v
	}
	if v, ok := durationEnv("SOM_ALERT_QUERY_LATENCY_P95"); ok {
		cfg.AlertThresholds.QueryLatencyP95 = v
	}
	if v, ok := floatEnv("SOM_ALERT_CONSTRAINT_VIOLATION_RATE"); ok {
		cfg.AlertThresholds.ConstraintViolationRate = v
	}
	if v, ok := intEnv("SOM_CONCURRENT_POSITION_LIMIT"); ok {
		cfg.ConcurrentPositionLimit = v
	}
	if v, ok := durationEnv("SOM_EVENT_TEMPORAL_PAST_WINDOW"); ok {
		cfg.EventTemporalPastWindow = v
	}
	if v, ok := durationEnv("SOM_EVENT_TEMPORAL_FUTURE_WINDOW"); ok {
		cfg.EventTemporalFutureWindow = v
	}
	return cfg
}

func durationEnv(key string) (time.Duration, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false
	}
	return d, true
}

func floatEnv(key string) (float64, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func intEnv(key string) (int, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
