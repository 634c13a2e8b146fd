package monitoring

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/cmvayette/digitalbackbone-sub002/internal/config"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.MetricsRetentionPeriod = time.Hour
	cfg.AlertThresholds.ValidationFailureRate = 0.5
	cfg.AlertThresholds.QueryErrorRate = 0.5
	cfg.AlertThresholds.ProcessingLatencyP95 = 100 * time.Millisecond
	cfg.AlertThresholds.QueryLatencyP95 = 100 * time.Millisecond
	cfg.AlertThresholds.ConstraintViolationRate = 0.5
	return cfg
}

func TestRecordEventIngestionComputesMetrics(t *testing.T) {
	m := New(testConfig())
	m.RecordEventIngestion(10, true, "")
	m.RecordEventIngestion(20, true, "")
	m.RecordEventIngestion(30, false, "boom")

	metrics := m.GetEventMetrics()
	if metrics.SampleCount != 3 {
		t.Fatalf("expected 3 samples, got %d", metrics.SampleCount)
	}
	if metrics.SuccessCount != 2 || metrics.FailureCount != 1 {
		t.Errorf("expected 2 success / 1 failure, got %+v", metrics)
	}
	if metrics.AverageLatencyMs != 20 {
		t.Errorf("expected average latency 20, got %v", metrics.AverageLatencyMs)
	}
}

func TestRecordEventIngestionEvictsOldSamples(t *testing.T) {
	now := time.Now().UTC()
	cfg := testConfig()
	cfg.MetricsRetentionPeriod = time.Minute
	clock := now
	m := New(cfg, WithClock(func() time.Time { return clock }))

	m.RecordEventIngestion(5, true, "")
	clock = now.Add(2 * time.Minute)
	m.RecordEventIngestion(7, true, "")

	metrics := m.GetEventMetrics()
	if metrics.SampleCount != 1 {
		t.Fatalf("expected stale sample to be evicted, got %d samples", metrics.SampleCount)
	}
}

func TestRecordQueryTracksPerType(t *testing.T) {
	m := New(testConfig())
	m.RecordQuery("getHolon", 5, true, true, "")
	m.RecordQuery("getHolon", 15, false, true, "")
	m.RecordQuery("getRelationshipsFrom", 8, false, true, "")

	metrics := m.GetQueryMetrics()
	if len(metrics) != 2 {
		t.Fatalf("expected 2 query types, got %d", len(metrics))
	}
	gh := metrics["getHolon"]
	if gh.SampleCount != 2 || gh.CacheHitCount != 1 {
		t.Errorf("unexpected getHolon metrics: %+v", gh)
	}
}

func TestBusinessMetricsTrackCreationAndStatusChange(t *testing.T) {
	m := New(testConfig())
	m.RecordHolonCreated("Person", true)
	m.RecordHolonCreated("Person", true)
	m.RecordHolonStatusChange("Person", false)
	m.RecordRelationshipCreated("OCCUPIES")
	m.RecordRelationshipEnded("OCCUPIES")
	m.RecordConstraintViolation("structural")

	biz := m.GetBusinessMetrics()
	if biz.HolonsCreated["Person"] != 2 {
		t.Errorf("expected 2 persons created, got %d", biz.HolonsCreated["Person"])
	}
	if biz.HolonsActive["Person"] != 1 {
		t.Errorf("expected 1 active person after status change, got %d", biz.HolonsActive["Person"])
	}
	if biz.RelationshipsCreated["OCCUPIES"] != 1 || biz.RelationshipsEnded["OCCUPIES"] != 1 {
		t.Errorf("unexpected relationship counters: %+v", biz)
	}
	if biz.ConstraintViolations["structural"] != 1 {
		t.Errorf("expected 1 structural violation, got %d", biz.ConstraintViolations["structural"])
	}
}

func TestSystemHealthAggregatesWorstComponent(t *testing.T) {
	m := New(testConfig())
	m.UpdateComponentHealth("eventstore", StatusHealthy, 1, "")
	m.UpdateComponentHealth("holonregistry", StatusDegraded, 5, "slow")

	health := m.GetSystemHealth()
	if health.Status != StatusDegraded {
		t.Fatalf("expected degraded aggregate, got %s", health.Status)
	}

	m.UpdateComponentHealth("holonregistry", StatusUnhealthy, 50, "down")
	health = m.GetSystemHealth()
	if health.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy aggregate, got %s", health.Status)
	}

	m.UpdateComponentHealth("holonregistry", StatusHealthy, 1, "")
	if got := m.GetSystemHealth().Components["holonregistry"].ErrorCount; got != 0 {
		t.Errorf("expected error count to reset on healthy transition, got %d", got)
	}
}

func TestAlertRaisedOnValidationFailureRate(t *testing.T) {
	m := New(testConfig())
	var received int32
	m.RegisterAlertHandler(func(a Alert) {
		if a.Type == AlertTypeValidationFailure {
			atomic.AddInt32(&received, 1)
		}
	})

	for i := 0; i < 4; i++ {
		m.RecordEventIngestion(1, false, "bad event")
	}

	if atomic.LoadInt32(&received) == 0 {
		t.Fatal("expected at least one validation_failure alert to be dispatched")
	}
	active := m.GetActiveAlerts()
	if len(active) == 0 {
		t.Fatal("expected active alerts to be retrievable")
	}
}

func TestResolveAlertMarksResolved(t *testing.T) {
	m := New(testConfig())
	m.RecordEventIngestion(1, false, "bad event")

	active := m.GetActiveAlerts()
	if len(active) == 0 {
		t.Fatal("expected at least one active alert")
	}
	if !m.ResolveAlert(active[0].ID) {
		t.Fatal("expected resolve to succeed for an active alert")
	}
	for _, a := range m.GetActiveAlerts() {
		if a.ID == active[0].ID {
			t.Fatal("resolved alert still reported active")
		}
	}
}

func TestResolveAlertUnknownID(t *testing.T) {
	m := New(testConfig())
	if m.ResolveAlert("alert_missing") {
		t.Fatal("expected resolve of unknown alert to report false")
	}
}

func TestResetClearsState(t *testing.T) {
	m := New(testConfig())
	m.RecordEventIngestion(1, true, "")
	m.RecordHolonCreated("Person", true)
	m.UpdateComponentHealth("eventstore", StatusHealthy, 1, "")

	m.Reset()

	if m.GetEventMetrics().SampleCount != 0 {
		t.Error("expected ingestion samples cleared after reset")
	}
	if len(m.GetBusinessMetrics().HolonsCreated) != 0 {
		t.Error("expected business counters cleared after reset")
	}
	if len(m.GetSystemHealth().Components) != 0 {
		t.Error("expected component health cleared after reset")
	}
}

func TestPercentileHelpers(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(sorted, 0); got != 1 {
		t.Errorf("p0 = %v, want 1", got)
	}
	if got := percentile(sorted, 1); got != 10 {
		t.Errorf("p100 = %v, want 10", got)
	}
	if avg := average(sorted); avg != 5.5 {
		t.Errorf("average = %v, want 5.5", avg)
	}
}

func TestInitAndGetGlobalSingleton(t *testing.T) {
	defer ResetGlobal()
	first := Init(testConfig())
	if Get() != first {
		t.Fatal("expected Get to return the just-initialized monitor")
	}
	second := Init(testConfig())
	if Get() != second || Get() == first {
		t.Fatal("expected reinitialization to replace the global")
	}
}
