package monitoring

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// summarizeEvent computes ingestion metrics over the retained samples,
// sorted for percentile lookup.
func summarizeEvent(samples []sample, retention time.Duration) EventMetrics {
	if len(samples) == 0 {
		return EventMetrics{}
	}
	latencies := make([]float64, 0, len(samples))
	var success, failure int64
	for _, s := range samples {
		latencies = append(latencies, s.latencyMs)
		if s.success {
			success++
		} else {
			failure++
		}
	}
	sort.Float64s(latencies)

	windowSeconds := retention.Seconds()
	if windowSeconds <= 0 {
		windowSeconds = time.Since(samples[0].at).Seconds()
	}
	var rate float64
	if windowSeconds > 0 {
		rate = float64(len(samples)) / windowSeconds
	}

	return EventMetrics{
		IngestionRatePerSecond: rate,
		AverageLatencyMs:       average(latencies),
		P95LatencyMs:           percentile(latencies, 0.95),
		P99LatencyMs:           percentile(latencies, 0.99),
		SuccessCount:           success,
		FailureCount:           failure,
		SampleCount:            len(samples),
	}
}

// summarizeQuery computes per-type query metrics over the retained samples.
func summarizeQuery(queryType string, samples []sample) QueryMetrics {
	if len(samples) == 0 {
		return QueryMetrics{Type: queryType}
	}
	latencies := make([]float64, 0, len(samples))
	var success, failure, cacheHits int64
	for _, s := range samples {
		latencies = append(latencies, s.latencyMs)
		if s.success {
			success++
		} else {
			failure++
		}
		if s.cacheHit {
			cacheHits++
		}
	}
	sort.Float64s(latencies)

	return QueryMetrics{
		Type:             queryType,
		AverageLatencyMs: average(latencies),
		P95LatencyMs:     percentile(latencies, 0.95),
		P99LatencyMs:     percentile(latencies, 0.99),
		CacheHitCount:    cacheHits,
		SuccessCount:     success,
		FailureCount:     failure,
		SampleCount:      len(samples),
	}
}

// average returns the mean of a sorted (or unsorted) slice of samples.
func average(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return sum / float64(len(sorted))
}

// percentile returns the p-th percentile (0..1) of an already-sorted
// ascending slice, interpolating linearly between the two nearest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// recorder mirrors Prometheus counters/histograms for every metric the
// Monitor records, adapted from the teacher's pkg/metrics.Recorder: a
// lazily-registered collector cache keyed by a sanitized metric name,
// exporting the same observations the in-memory percentile tracker
// retains so an external scraper sees the same business/event picture.
type recorder struct {
	mu         sync.Mutex
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

func newRecorder() *recorder {
	return &recorder{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Registry exposes the underlying Prometheus registry for scraping.
func (m *Monitor) Registry() *prometheus.Registry {
	return m.recorder.registry
}

func (r *recorder) incr(name string, labels map[string]string, delta float64) {
	names, values := normalizeLabels(labels)
	vec := r.counterVec(name, names)
	if vec == nil {
		return
	}
	vec.WithLabelValues(values...).Add(delta)
}

func (r *recorder) observe(name string, labels map[string]string, value float64) {
	names, values := normalizeLabels(labels)
	vec := r.histogramVec(name, names)
	if vec == nil {
		return
	}
	vec.WithLabelValues(values...).Observe(value)
}

func (r *recorder) counterVec(name string, labelNames []string) *prometheus.CounterVec {
	sanitized := sanitizeMetricName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.counters[sanitized]; ok {
		return existing
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "somcore",
		Subsystem: "monitoring",
		Name:      sanitized,
		Help:      "SOM Core monitoring counter: " + name,
	}, labelNames)
	if err := r.registry.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if c, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				r.counters[sanitized] = c
				return c
			}
		}
		return nil
	}
	r.counters[sanitized] = vec
	return vec
}

func (r *recorder) histogramVec(name string, labelNames []string) *prometheus.HistogramVec {
	sanitized := sanitizeMetricName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.histograms[sanitized]; ok {
		return existing
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "somcore",
		Subsystem: "monitoring",
		Name:      sanitized,
		Help:      "SOM Core monitoring histogram: " + name,
		Buckets:   prometheus.DefBuckets,
	}, labelNames)
	if err := r.registry.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if h, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				r.histograms[sanitized] = h
				return h
			}
		}
		return nil
	}
	r.histograms[sanitized] = vec
	return vec
}

func normalizeLabels(labels map[string]string) ([]string, []string) {
	if len(labels) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	values := make([]string, len(names))
	for i, k := range names {
		values[i] = labels[k]
	}
	return names, values
}

func sanitizeMetricName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return "unnamed_metric"
	}
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
