package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// backgroundTasks holds the optional cron schedule a Monitor can run: a
// retention-eviction sweep plus a host-resource probe at the configured
// health-check interval, mirroring the "health check interval" tunable
// in config.Config.
type backgroundTasks struct {
	mu sync.Mutex
	cr *cron.Cron
}

// StartBackgroundTasks schedules the retention sweep and the
// core-process health probe on cfg.HealthCheckInterval. Safe to call at
// most once per Monitor; a second call is a no-op.
func (m *Monitor) StartBackgroundTasks() {
	m.mu.Lock()
	if m.bg != nil {
		m.mu.Unlock()
		return
	}
	interval := m.cfg.HealthCheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	bg := &backgroundTasks{cr: cron.New(cron.WithSeconds())}
	m.bg = bg
	m.mu.Unlock()

	spec := everySpec(interval)
	bg.cr.AddFunc(spec, func() { m.sweepRetention() })
	bg.cr.AddFunc(spec, func() { m.probeHostHealth() })
	bg.cr.Start()
}

func (m *Monitor) stopBackgroundTasks() {
	m.mu.Lock()
	bg := m.bg
	m.bg = nil
	m.mu.Unlock()
	if bg == nil {
		return
	}
	ctx := bg.cr.Stop()
	<-ctx.Done()
}

// sweepRetention evicts samples older than the retention window without
// waiting for the next record call.
func (m *Monitor) sweepRetention() {
	m.mu.Lock()
	now := m.now()
	m.ingestion = evict(m.ingestion, now, m.cfg.MetricsRetentionPeriod)
	for k, samples := range m.queries {
		m.queries[k] = evict(samples, now, m.cfg.MetricsRetentionPeriod)
	}
	m.mu.Unlock()
}

// probeHostHealth samples host CPU/memory via gopsutil and records it as
// the built-in "core-process" component, degrading at 80% utilization
// and failing unhealthy at 95%.
func (m *Monitor) probeHostHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cpuPercent, cpuErr := cpu.PercentWithContext(ctx, 0, false)
	vm, memErr := mem.VirtualMemoryWithContext(ctx)

	if cpuErr != nil || memErr != nil {
		m.UpdateComponentHealth("core-process", StatusUnhealthy, 0, "host resource probe failed")
		return
	}

	var cpuUsed float64
	if len(cpuPercent) > 0 {
		cpuUsed = cpuPercent[0]
	}
	worst := cpuUsed
	if vm.UsedPercent > worst {
		worst = vm.UsedPercent
	}

	status := StatusHealthy
	switch {
	case worst >= 95:
		status = StatusUnhealthy
	case worst >= 80:
		status = StatusDegraded
	}
	m.UpdateComponentHealth("core-process", status, worst, "")
}

func everySpec(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return "@every " + time.Duration(seconds*int(time.Second)).String()
}
