// Package health runs periodic liveness checks and exposes their last
// result to the ambient /healthz endpoint.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/neriamosgionata/homesoil/internal/metrics"
)

// Check is a single named liveness probe.
type Check struct {
	Name    string
	CheckFn func(ctx context.Context) error
}

// Status is the last observed result of one Check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs a fixed set of checks on a timer and caches their results
// for the HTTP handler to read without blocking on the checks themselves.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
}

// NewChecker builds a Checker over the given checks, polling every
// interval seconds (30s covers the supervisor's own boot/shutdown
// cadence without adding meaningful load).
func NewChecker(interval time.Duration, checks ...Check) *Checker {
	return &Checker{interval: interval, checks: checks}
}

// Run starts the health check loop. Call in a goroutine; returns when
// ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	c.runAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runAll(ctx)
		}
	}
}

func (c *Checker) runAll(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{Name: check.Name, CheckedAt: time.Now()}
		if err := check.CheckFn(ctx); err != nil {
			s.Error = err.Error()
		} else {
			s.Healthy = true
		}
		statuses[i] = s

		gaugeValue := 0.0
		if s.Healthy {
			gaugeValue = 1.0
		}
		metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(gaugeValue)
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if every check last passed. An empty result set
// (before the first tick completes) counts as healthy.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}
