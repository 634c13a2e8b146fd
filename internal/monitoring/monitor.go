// Package monitoring implements the core's Monitoring component (spec
// §4.9): ingestion/query/business metrics with a retained rolling window,
// per-component health aggregation, and threshold-driven alerting. The
// mutex-guarded struct with exported methods taking the lock and private
// *Locked helpers assuming it is already held follows the same discipline
// as every other registry in this module, adapted from the teacher's
// system/core/health.go lifecycle tracker.
package monitoring

import (
	"sync"
	"time"

	"github.com/cmvayette/digitalbackbone-sub002/internal/config"
	"github.com/cmvayette/digitalbackbone-sub002/pkg/logger"
)

// ComponentStatus is the closed set of per-component health states.
type ComponentStatus string

const (
	StatusHealthy   ComponentStatus = "healthy"
	StatusDegraded  ComponentStatus = "degraded"
	StatusUnhealthy ComponentStatus = "unhealthy"
)

// ComponentHealth is the latest recorded health for a single named
// component (a registry, a domain manager, or a host-resource probe).
type ComponentHealth struct {
	Name       string          `json:"name"`
	Status     ComponentStatus `json:"status"`
	LatencyMs  float64         `json:"latencyMs"`
	Message    string          `json:"message,omitempty"`
	ErrorCount int             `json:"errorCount"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// SystemHealth is the aggregate view getSystemHealth returns: unhealthy
// if any component is unhealthy, else degraded if any is degraded, else
// healthy.
type SystemHealth struct {
	Status     ComponentStatus            `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
}

// EventMetrics summarizes event-ingestion samples retained in the
// current rolling window.
type EventMetrics struct {
	IngestionRatePerSecond float64 `json:"ingestionRatePerSecond"`
	AverageLatencyMs       float64 `json:"averageLatencyMs"`
	P95LatencyMs           float64 `json:"p95LatencyMs"`
	P99LatencyMs           float64 `json:"p99LatencyMs"`
	SuccessCount           int64   `json:"successCount"`
	FailureCount           int64   `json:"failureCount"`
	SampleCount            int     `json:"sampleCount"`
}

// QueryMetrics summarizes query samples retained for a single query type.
type QueryMetrics struct {
	Type             string  `json:"type"`
	AverageLatencyMs float64 `json:"averageLatencyMs"`
	P95LatencyMs     float64 `json:"p95LatencyMs"`
	P99LatencyMs     float64 `json:"p99LatencyMs"`
	CacheHitCount    int64   `json:"cacheHitCount"`
	SuccessCount     int64   `json:"successCount"`
	FailureCount     int64   `json:"failureCount"`
	SampleCount      int     `json:"sampleCount"`
}

// BusinessMetrics summarizes domain-level counters, none of which are
// evicted by the retention window — they are lifetime totals, broken
// down by holon/relationship/constraint type.
type BusinessMetrics struct {
	HolonsCreated        map[string]int64 `json:"holonsCreated"`
	HolonsActive         map[string]int64 `json:"holonsActive"`
	HolonStatusChanges   map[string]int64 `json:"holonStatusChanges"`
	RelationshipsCreated map[string]int64 `json:"relationshipsCreated"`
	RelationshipsEnded   map[string]int64 `json:"relationshipsEnded"`
	ConstraintViolations map[string]int64 `json:"constraintViolations"`
}

// Monitor is the Monitoring component. Construct with New or obtain the
// process-wide singleton via Init/Get.
type Monitor struct {
	mu sync.RWMutex

	cfg config.Config
	now func() time.Time

	ingestion []sample
	queries   map[string][]sample

	holonsCreated        map[string]int64
	holonsActive         map[string]int64
	holonStatusChanges   map[string]int64
	relationshipsCreated map[string]int64
	relationshipsEnded   map[string]int64
	constraintViolations map[string]int64

	components map[string]ComponentHealth

	alerts        map[string]Alert
	alertHandlers []AlertHandler
	limiter       *dispatchLimiter

	recorder *recorder
	bg       *backgroundTasks

	log *logger.Logger
}

// sample is one retained latency/outcome observation, timestamped for
// retention-window eviction.
type sample struct {
	at        time.Time
	latencyMs float64
	success   bool
	cacheHit  bool
}

// Option configures a Monitor at construction.
type Option func(*Monitor)

// WithClock overrides the monitor's notion of "now", for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithLogger overrides the monitor's logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Monitor) { m.log = l }
}

// New creates a Monitor bound to cfg's retention period and alert
// thresholds.
func New(cfg config.Config, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:                  cfg,
		now:                  func() time.Time { return time.Now().UTC() },
		queries:              make(map[string][]sample),
		holonsCreated:        make(map[string]int64),
		holonsActive:         make(map[string]int64),
		holonStatusChanges:   make(map[string]int64),
		relationshipsCreated: make(map[string]int64),
		relationshipsEnded:   make(map[string]int64),
		constraintViolations: make(map[string]int64),
		components:           make(map[string]ComponentHealth),
		alerts:               make(map[string]Alert),
		limiter:              newDispatchLimiter(5, 10),
		recorder:             newRecorder(),
		log:                  logger.NewDefault("monitoring"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RecordEventIngestion records one event-submission outcome.
func (m *Monitor) RecordEventIngestion(latencyMs float64, success bool, errorMsg string) {
	m.mu.Lock()
	now := m.now()
	m.ingestion = append(evict(m.ingestion, now, m.cfg.MetricsRetentionPeriod), sample{at: now, latencyMs: latencyMs, success: success})
	m.recorder.observe("event_ingestion_latency_ms", nil, latencyMs)
	m.recorder.incr("event_ingestion_total", map[string]string{"success": boolLabel(success)}, 1)

	failureRate := failureRateLocked(m.ingestion)
	m.mu.Unlock()

	if !success {
		m.raiseAlert(AlertTypeValidationFailure, SeverityCritical, "event ingestion failed: "+errorMsg, map[string]any{"errorMessage": errorMsg})
	}
	if latencyMs > float64(m.cfg.AlertThresholds.ProcessingLatencyP95.Milliseconds()) {
		m.raiseAlert(AlertTypePerformanceDegradation, SeverityWarning, "event ingestion latency exceeded p95 threshold", map[string]any{"latencyMs": latencyMs})
	}
	if failureRate > m.cfg.AlertThresholds.ValidationFailureRate {
		m.raiseAlert(AlertTypeValidationFailure, SeverityCritical, "event ingestion failure rate exceeded threshold", map[string]any{"failureRate": failureRate})
	}
}

// RecordQuery records one query outcome for the given query type.
func (m *Monitor) RecordQuery(queryType string, latencyMs float64, cacheHit, success bool, errorMsg string) {
	m.mu.Lock()
	now := m.now()
	m.queries[queryType] = append(evict(m.queries[queryType], now, m.cfg.MetricsRetentionPeriod), sample{at: now, latencyMs: latencyMs, success: success, cacheHit: cacheHit})
	m.recorder.observe("query_latency_ms", map[string]string{"type": queryType}, latencyMs)
	m.recorder.incr("query_total", map[string]string{"type": queryType, "success": boolLabel(success)}, 1)

	errorRate := failureRateLocked(m.queries[queryType])
	m.mu.Unlock()

	if latencyMs > float64(m.cfg.AlertThresholds.QueryLatencyP95.Milliseconds()) {
		m.raiseAlert(AlertTypePerformanceDegradation, SeverityWarning, "query latency exceeded p95 threshold", map[string]any{"type": queryType, "latencyMs": latencyMs})
	}
	if errorRate > m.cfg.AlertThresholds.QueryErrorRate {
		m.raiseAlert(AlertTypeSystemError, SeverityWarning, "query error rate exceeded threshold", map[string]any{"type": queryType, "errorRate": errorRate})
	}
	if !success && errorMsg != "" {
		m.raiseAlert(AlertTypeSystemError, SeverityWarning, "query failed: "+errorMsg, map[string]any{"type": queryType})
	}
}

// RecordHolonCreated increments the lifetime holons-created counter for
// holonType, and the holons-active counter if active is true.
func (m *Monitor) RecordHolonCreated(holonType string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holonsCreated[holonType]++
	if active {
		m.holonsActive[holonType]++
	}
	m.recorder.incr("holons_created_total", map[string]string{"type": holonType}, 1)
}

// RecordHolonStatusChange increments the status-change counter for
// holonType and adjusts the active gauge.
func (m *Monitor) RecordHolonStatusChange(holonType string, toActive bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holonStatusChanges[holonType]++
	if toActive {
		m.holonsActive[holonType]++
	} else if m.holonsActive[holonType] > 0 {
		m.holonsActive[holonType]--
	}
	m.recorder.incr("holon_status_changes_total", map[string]string{"type": holonType}, 1)
}

// RecordRelationshipCreated increments the lifetime relationships-created
// counter for relType.
func (m *Monitor) RecordRelationshipCreated(relType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relationshipsCreated[relType]++
	m.recorder.incr("relationships_created_total", map[string]string{"type": relType}, 1)
}

// RecordRelationshipEnded increments the lifetime relationships-ended
// counter for relType.
func (m *Monitor) RecordRelationshipEnded(relType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relationshipsEnded[relType]++
	m.recorder.incr("relationships_ended_total", map[string]string{"type": relType}, 1)
}

// RecordConstraintViolation increments the lifetime constraint-violation
// counter for constraintType and evaluates the business-rule alert
// threshold against the current creation volume.
func (m *Monitor) RecordConstraintViolation(constraintType string) {
	m.mu.Lock()
	m.constraintViolations[constraintType]++
	m.recorder.incr("constraint_violations_total", map[string]string{"type": constraintType}, 1)

	var created, violations int64
	for _, v := range m.holonsCreated {
		created += v
	}
	for _, v := range m.relationshipsCreated {
		created += v
	}
	for _, v := range m.constraintViolations {
		violations += v
	}
	var rate float64
	if created > 0 {
		rate = float64(violations) / float64(created)
	}
	m.mu.Unlock()

	if rate > m.cfg.AlertThresholds.ConstraintViolationRate {
		m.raiseAlert(AlertTypeBusinessRule, SeverityWarning, "constraint violation rate exceeded threshold", map[string]any{"type": constraintType, "rate": rate})
	}
}

// UpdateComponentHealth records the latest health for a named component.
// A transition back to healthy resets the component's error count.
func (m *Monitor) UpdateComponentHealth(name string, status ComponentStatus, latencyMs float64, message string) {
	m.mu.Lock()
	existing, ok := m.components[name]

	errorCount := existing.ErrorCount
	switch {
	case status == StatusHealthy:
		errorCount = 0
	case ok && existing.Status != StatusHealthy:
		errorCount++
	default:
		errorCount = 1
	}

	newlyUnhealthy := status == StatusUnhealthy && (!ok || existing.Status != StatusUnhealthy)
	m.components[name] = ComponentHealth{
		Name: name, Status: status, LatencyMs: latencyMs, Message: message,
		ErrorCount: errorCount, UpdatedAt: m.now(),
	}
	m.mu.Unlock()

	if newlyUnhealthy {
		m.raiseAlert(AlertTypeSystemError, SeverityCritical, "component "+name+" transitioned to unhealthy", map[string]any{"component": name, "message": message})
	}
}

// GetEventMetrics returns ingestion metrics over the current retained window.
func (m *Monitor) GetEventMetrics() EventMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return summarizeEvent(m.ingestion, m.cfg.MetricsRetentionPeriod)
}

// GetQueryMetrics returns per-query-type metrics over the current
// retained window.
func (m *Monitor) GetQueryMetrics() map[string]QueryMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]QueryMetrics, len(m.queries))
	for qType, samples := range m.queries {
		out[qType] = summarizeQuery(qType, samples)
	}
	return out
}

// GetBusinessMetrics returns lifetime domain counters by type.
func (m *Monitor) GetBusinessMetrics() BusinessMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return BusinessMetrics{
		HolonsCreated:        copyCounts(m.holonsCreated),
		HolonsActive:         copyCounts(m.holonsActive),
		HolonStatusChanges:   copyCounts(m.holonStatusChanges),
		RelationshipsCreated: copyCounts(m.relationshipsCreated),
		RelationshipsEnded:   copyCounts(m.relationshipsEnded),
		ConstraintViolations: copyCounts(m.constraintViolations),
	}
}

// GetSystemHealth aggregates per-component status: unhealthy if any
// component is unhealthy, else degraded if any is degraded, else healthy.
func (m *Monitor) GetSystemHealth() SystemHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := SystemHealth{Status: StatusHealthy, Components: make(map[string]ComponentHealth, len(m.components))}
	for name, c := range m.components {
		out.Components[name] = c
		switch c.Status {
		case StatusUnhealthy:
			out.Status = StatusUnhealthy
		case StatusDegraded:
			if out.Status != StatusUnhealthy {
				out.Status = StatusDegraded
			}
		}
	}
	return out
}

// Reset clears all retained samples, counters, component health, and
// active alerts. Registered alert handlers are preserved.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingestion = nil
	m.queries = make(map[string][]sample)
	m.holonsCreated = make(map[string]int64)
	m.holonsActive = make(map[string]int64)
	m.holonStatusChanges = make(map[string]int64)
	m.relationshipsCreated = make(map[string]int64)
	m.relationshipsEnded = make(map[string]int64)
	m.constraintViolations = make(map[string]int64)
	m.components = make(map[string]ComponentHealth)
	m.alerts = make(map[string]Alert)
}

// Shutdown stops the background retention-sweep and health-probe
// schedules, if started via StartBackgroundTasks.
func (m *Monitor) Shutdown() {
	m.stopBackgroundTasks()
}

func evict(samples []sample, now time.Time, retention time.Duration) []sample {
	if retention <= 0 {
		return samples
	}
	cutoff := now.Add(-retention)
	i := 0
	for i < len(samples) && samples[i].at.Before(cutoff) {
		i++
	}
	if i == 0 {
		return samples
	}
	return append([]sample(nil), samples[i:]...)
}

func failureRateLocked(samples []sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var failures int
	for _, s := range samples {
		if !s.success {
			failures++
		}
	}
	return float64(failures) / float64(len(samples))
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
