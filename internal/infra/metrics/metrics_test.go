package metrics

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/givepulse/givepulse/internal/domain"
)

func record(success bool, d time.Duration) domain.PerformanceMetric {
	return domain.PerformanceMetric{
		Operation: "create_session",
		Duration:  d,
		Success:   success,
		At:        time.Now(),
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Capacity != 500 {
		t.Errorf("Capacity = %d, want 500", cfg.Capacity)
	}
	if cfg.Window != 50 {
		t.Errorf("Window = %d, want 50", cfg.Window)
	}
}

func TestRecord_EvictsOldestAtCapacity(t *testing.T) {
	m := NewMonitor(Config{Capacity: 3, Window: 3})
	for i := 0; i < 5; i++ {
		pm := record(true, time.Millisecond)
		pm.Operation = fmt.Sprintf("op-%d", i)
		m.Record(pm)
	}

	if m.Count() != 3 {
		t.Fatalf("Count = %d, want 3", m.Count())
	}
	recent := m.Recent(0)
	if recent[0].Operation != "op-2" {
		t.Errorf("oldest surviving = %q, want op-2", recent[0].Operation)
	}
	if recent[2].Operation != "op-4" {
		t.Errorf("newest = %q, want op-4", recent[2].Operation)
	}
}

func TestHealthStatus_EmptyIsHealthy(t *testing.T) {
	m := NewMonitor(DefaultConfig())
	if got := m.HealthStatus(); got != domain.HealthHealthy {
		t.Errorf("HealthStatus() = %v, want healthy", got)
	}
}

func TestHealthStatus_Thresholds(t *testing.T) {
	tests := []struct {
		name      string
		successes int
		failures  int
		latency   time.Duration
		want      domain.HealthState
	}{
		{"all good", 10, 0, 100 * time.Millisecond, domain.HealthHealthy},
		{"79% success", 79, 21, 100 * time.Millisecond, domain.HealthDegraded},
		{"49% success", 49, 51, 100 * time.Millisecond, domain.HealthUnhealthy},
		{"slow but succeeding", 10, 0, 6 * time.Second, domain.HealthDegraded},
		{"very slow", 10, 0, 11 * time.Second, domain.HealthUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(Config{Capacity: 200, Window: 200})
			for i := 0; i < tt.successes; i++ {
				m.Record(record(true, tt.latency))
			}
			for i := 0; i < tt.failures; i++ {
				m.Record(record(false, tt.latency))
			}
			if got := m.HealthStatus(); got != tt.want {
				t.Errorf("HealthStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHealthStatus_OnlyRecentWindowCounts(t *testing.T) {
	m := NewMonitor(Config{Capacity: 100, Window: 10})

	// Old failures pushed out of the window by newer successes.
	for i := 0; i < 20; i++ {
		m.Record(record(false, time.Millisecond))
	}
	for i := 0; i < 10; i++ {
		m.Record(record(true, time.Millisecond))
	}

	if got := m.HealthStatus(); got != domain.HealthHealthy {
		t.Errorf("HealthStatus() = %v, want healthy after recovery", got)
	}
}

func TestMonitor_ConcurrentReadersAndWriters(t *testing.T) {
	m := NewMonitor(Config{Capacity: 50, Window: 25})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Record(record(j%2 == 0, time.Millisecond))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.HealthStatus()
				m.Recent(10)
			}
		}()
	}
	wg.Wait()

	if m.Count() != 50 {
		t.Errorf("Count = %d, want 50 (capacity)", m.Count())
	}
}
