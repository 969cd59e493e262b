// Package health reports pool and host status for the operational HTTP surface.
package health

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/load"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// ComponentHealth represents the health status of a single component
type ComponentHealth struct {
	Name        string      `json:"name"`
	Status      Status      `json:"status"`
	Description string      `json:"description,omitempty"`
	LastChecked time.Time   `json:"last_checked"`
	Details     interface{} `json:"details,omitempty"`
}

// PoolHealth represents overall pool health as reported to operators.
type PoolHealth struct {
	Status         Status            `json:"status"`
	Uptime         int64             `json:"uptime_seconds"`
	Timestamp      time.Time         `json:"timestamp"`
	Goroutines     int               `json:"goroutines"`
	MemoryMB       uint64            `json:"memory_mb"`
	LoadAvg1       float64           `json:"load_avg_1,omitempty"`
	Components     []ComponentHealth `json:"components"`
	ResponseTimeMs int64             `json:"response_time_ms"`
}

// Monitor tracks pool health metrics.
type Monitor struct {
	startTime  time.Time
	mu         sync.RWMutex
	components map[string]*ComponentHealth
}

// NewMonitor creates a new health monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		startTime:  time.Now(),
		components: make(map[string]*ComponentHealth),
	}
}

// SetComponentStatus updates the status of a component.
func (m *Monitor) SetComponentStatus(name string, status Status, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = &ComponentHealth{
		Name:        name,
		Status:      status,
		Description: description,
		LastChecked: time.Now(),
	}
}

// SetComponentStatusWithDetails updates component status with additional details.
func (m *Monitor) SetComponentStatusWithDetails(name string, status Status, description string, details interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = &ComponentHealth{
		Name:        name,
		Status:      status,
		Description: description,
		LastChecked: time.Now(),
		Details:     details,
	}
}

// GetHealth returns the current pool health, enriched with host load average
// when gopsutil can read it (best-effort; a sampling failure is not fatal).
func (m *Monitor) GetHealth() *PoolHealth {
	start := time.Now()

	m.mu.RLock()
	components := make([]ComponentHealth, 0, len(m.components))
	overallStatus := StatusHealthy
	for _, comp := range m.components {
		components = append(components, *comp)
		if comp.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
		} else if comp.Status == StatusDegraded && overallStatus == StatusHealthy {
			overallStatus = StatusDegraded
		}
	}
	m.mu.RUnlock()

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	var loadAvg1 float64
	if avg, err := load.Avg(); err == nil {
		loadAvg1 = avg.Load1
	}

	return &PoolHealth{
		Status:         overallStatus,
		Uptime:         int64(time.Since(m.startTime).Seconds()),
		Timestamp:      time.Now(),
		Goroutines:     runtime.NumGoroutine(),
		MemoryMB:       stats.Alloc / 1024 / 1024,
		LoadAvg1:       loadAvg1,
		Components:     components,
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}
}
