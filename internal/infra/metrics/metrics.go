// Package metrics records per-operation performance and derives a rolling
// health status.
//
// Two sinks exist side by side:
//   - a bounded in-process ring buffer of PerformanceMetric records, which
//     answers healthStatus() over the most recent window without touching
//     the network
//   - Prometheus counters/histograms for operational scrape via /metrics
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/givepulse/givepulse/internal/domain"
)

// ─── Monitor ────────────────────────────────────────────────────────────────

// Monitor holds the metric ring buffer. Safe for concurrent readers and
// writers; health reads never block metric writes for long.
type Monitor struct {
	mu       sync.Mutex
	records  []domain.PerformanceMetric
	capacity int
	window   int
}

// Config controls monitor behavior.
type Config struct {
	Capacity int // ring buffer size (default 500)
	Window   int // recent records considered for health (default 50)
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{Capacity: 500, Window: 50}
}

// Health thresholds over the recent window.
const (
	unhealthySuccessRate = 0.5
	degradedSuccessRate  = 0.8
	unhealthyAvgLatency  = 10 * time.Second
	degradedAvgLatency   = 5 * time.Second
)

// NewMonitor creates a monitor with the given config.
func NewMonitor(cfg Config) *Monitor {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 500
	}
	if cfg.Window <= 0 {
		cfg.Window = 50
	}
	return &Monitor{
		records:  make([]domain.PerformanceMetric, 0, cfg.Capacity),
		capacity: cfg.Capacity,
		window:   cfg.Window,
	}
}

// Record appends one metric, evicting the oldest at capacity, and mirrors
// it to the Prometheus collectors.
func (m *Monitor) Record(pm domain.PerformanceMetric) {
	m.mu.Lock()
	if len(m.records) >= m.capacity {
		m.records = m.records[1:]
	}
	m.records = append(m.records, pm)
	m.mu.Unlock()

	outcome := "success"
	if !pm.Success {
		outcome = pm.ErrorKind
		if outcome == "" {
			outcome = "error"
		}
	}
	ExecutorOperations.WithLabelValues(pm.Operation, outcome).Inc()
	OperationDuration.WithLabelValues(pm.Operation).Observe(pm.Duration.Seconds())
	if pm.RetryCount > 0 {
		ExecutorRetries.WithLabelValues(pm.Operation).Add(float64(pm.RetryCount))
	}
}

// Recent returns up to limit of the most recent metrics, newest last.
func (m *Monitor) Recent(limit int) []domain.PerformanceMetric {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	start := len(m.records) - limit
	out := make([]domain.PerformanceMetric, limit)
	copy(out, m.records[start:])
	return out
}

// Count returns the number of buffered metrics.
func (m *Monitor) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// HealthStatus derives health from the most recent window of metrics.
// An empty buffer is healthy: no evidence of trouble.
func (m *Monitor) HealthStatus() domain.HealthState {
	recent := m.Recent(m.window)
	if len(recent) == 0 {
		return domain.HealthHealthy
	}

	var ok int
	var total time.Duration
	for _, r := range recent {
		if r.Success {
			ok++
		}
		total += r.Duration
	}
	rate := float64(ok) / float64(len(recent))
	avg := total / time.Duration(len(recent))

	switch {
	case rate < unhealthySuccessRate || avg > unhealthyAvgLatency:
		return domain.HealthUnhealthy
	case rate < degradedSuccessRate || avg > degradedAvgLatency:
		return domain.HealthDegraded
	default:
		return domain.HealthHealthy
	}
}

// ─── Prometheus Collectors ──────────────────────────────────────────────────

// ExecutorOperations counts executor invocations by operation and outcome.
var ExecutorOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "givepulse",
	Subsystem: "executor",
	Name:      "operations_total",
	Help:      "Total resilient executor invocations by operation and outcome.",
}, []string{"operation", "outcome"})

// ExecutorRetries counts retry attempts by operation.
var ExecutorRetries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "givepulse",
	Subsystem: "executor",
	Name:      "retries_total",
	Help:      "Total retry attempts against the payment API.",
}, []string{"operation"})

// OperationDuration tracks wall-clock duration of executor invocations.
var OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "givepulse",
	Subsystem: "executor",
	Name:      "duration_seconds",
	Help:      "Wall-clock duration of executor invocations, retries included.",
	Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
}, []string{"operation"})

// DonationsRecorded counts newly ledgered donations.
var DonationsRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "givepulse",
	Subsystem: "ledger",
	Name:      "donations_recorded_total",
	Help:      "Total donations recorded (duplicates excluded).",
})

// DuplicateEvents counts short-circuited duplicate deliveries.
var DuplicateEvents = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "givepulse",
	Subsystem: "ledger",
	Name:      "duplicate_events_total",
	Help:      "Total duplicate event deliveries short-circuited by idempotency.",
})

// MilestonesTriggered counts one-shot milestone firings.
var MilestonesTriggered = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "givepulse",
	Subsystem: "milestones",
	Name:      "triggered_total",
	Help:      "Total milestones triggered across campaigns.",
})

// QueueDepth tracks the automation queue backlog.
var QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "givepulse",
	Subsystem: "automation",
	Name:      "queue_depth",
	Help:      "Current number of tasks waiting in the automation queue.",
})

// AutomationTasks counts task executions by kind and status.
var AutomationTasks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "givepulse",
	Subsystem: "automation",
	Name:      "tasks_total",
	Help:      "Total automation task executions by kind and status.",
}, []string{"kind", "status"})

// EventsRouted counts inbound events by routing outcome.
var EventsRouted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "givepulse",
	Subsystem: "router",
	Name:      "events_total",
	Help:      "Total inbound events by routing outcome.",
}, []string{"outcome"})
