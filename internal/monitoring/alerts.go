package monitoring

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// AlertType is the closed set of alert conditions spec.md §4.9 names.
type AlertType string

const (
	AlertTypeValidationFailure      AlertType = "validation_failure"
	AlertTypePerformanceDegradation AlertType = "performance_degradation"
	AlertTypeSystemError            AlertType = "system_error"
	AlertTypeBusinessRule           AlertType = "business_rule"
)

// Severity is the closed set of alert severities.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Alert is a single raised condition, resolved by id via ResolveAlert.
type Alert struct {
	ID         string         `json:"id"`
	Type       AlertType      `json:"type"`
	Severity   Severity       `json:"severity"`
	Message    string         `json:"message"`
	Context    map[string]any `json:"context,omitempty"`
	RaisedAt   time.Time      `json:"raisedAt"`
	Resolved   bool           `json:"resolved"`
	ResolvedAt *time.Time     `json:"resolvedAt,omitempty"`
}

// AlertHandler receives every newly-raised alert, in registration order.
type AlertHandler func(Alert)

// RegisterAlertHandler adds h to the set of handlers notified on every
// newly raised alert.
func (m *Monitor) RegisterAlertHandler(h AlertHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alertHandlers = append(m.alertHandlers, h)
}

// GetActiveAlerts returns every unresolved alert, most recent first.
func (m *Monitor) GetActiveAlerts() []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		if !a.Resolved {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RaisedAt.After(out[j].RaisedAt) })
	return out
}

// ResolveAlert marks an alert resolved. Resolving an unknown or already
// resolved id is a no-op that reports false.
func (m *Monitor) ResolveAlert(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok || a.Resolved {
		return false
	}
	now := m.now()
	a.Resolved = true
	a.ResolvedAt = &now
	m.alerts[id] = a
	return true
}

// raiseAlert records a new alert and dispatches it to registered
// handlers, throttled by the monitor's dispatch limiter so a noisy
// condition cannot flood handlers with duplicate notifications.
func (m *Monitor) raiseAlert(t AlertType, sev Severity, message string, context map[string]any) {
	m.mu.Lock()
	id := fmt.Sprintf("alert_%s", uuid.NewString())
	a := Alert{ID: id, Type: t, Severity: sev, Message: message, Context: context, RaisedAt: m.now()}
	m.alerts[id] = a
	handlers := append([]AlertHandler(nil), m.alertHandlers...)
	limiter := m.limiter
	m.mu.Unlock()

	if limiter != nil && !limiter.Allow() {
		m.log.WithField("alert_type", string(t)).Warn("alert dispatch throttled")
		return
	}
	for _, h := range handlers {
		h(a)
	}
}

// dispatchLimiter wraps golang.org/x/time/rate to bound how often raised
// alerts are forwarded to registered handlers.
type dispatchLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

func newDispatchLimiter(perSecond float64, burst int) *dispatchLimiter {
	return &dispatchLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (d *dispatchLimiter) Allow() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.limiter.Allow()
}
