// Package health aggregates component liveness for the whole application
package health

import (
	"context"
	"sync"
	"time"

	"swapdesk/internal/core"
)

// HealthManager aggregates health checks from the simulator client, the
// wallet bridge and the history store.
type HealthManager struct {
	logger core.ILogger
	mu     sync.RWMutex
	checks map[string]func() error
	last   map[string]bool
}

func NewHealthManager(logger core.ILogger) *HealthManager {
	hm := &HealthManager{
		checks: make(map[string]func() error),
		last:   make(map[string]bool),
	}
	if logger != nil {
		hm.logger = logger.WithField("component", "health_manager")
	}
	return hm
}

// Register adds a health check for a component
func (hm *HealthManager) Register(component string, check func() error) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[component] = check
}

// GetStatus returns the current status of all registered components
func (hm *HealthManager) GetStatus() map[string]string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	status := make(map[string]string)
	for component, check := range hm.checks {
		if err := check(); err != nil {
			status[component] = "Unhealthy: " + err.Error()
		} else {
			status[component] = "Healthy"
		}
	}
	return status
}

// IsHealthy returns true if every registered component is healthy
func (hm *HealthManager) IsHealthy() bool {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	for _, check := range hm.checks {
		if err := check(); err != nil {
			return false
		}
	}
	return true
}

// RunPeriodic re-evaluates all checks on an interval and logs transitions
// until ctx is done.
func (hm *HealthManager) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hm.evaluate()
		}
	}
}

func (hm *HealthManager) evaluate() {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	for component, check := range hm.checks {
		err := check()
		healthy := err == nil
		prev, seen := hm.last[component]
		hm.last[component] = healthy

		if hm.logger == nil || (seen && prev == healthy) {
			continue
		}
		if healthy {
			if seen {
				hm.logger.Info("Component recovered", "component", component)
			}
		} else {
			hm.logger.Warn("Component unhealthy", "component", component, "error", err)
		}
	}
}
