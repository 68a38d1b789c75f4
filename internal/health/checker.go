// Package health periodically probes each named pool with a cheap
// TTC round trip (§4.K's ping = "a cheap round trip") and classifies
// failures against a consecutive-failure threshold.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oracleco/go-ttcdriver/internal/metrics"
	"github.com/oracleco/go-ttcdriver/internal/pool"
	"github.com/oracleco/go-ttcdriver/internal/ttc"
)

// Status represents the health status of a pool's backing database.
type Status int

const (
	StatusUnknown Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// PoolHealth holds health information for one named pool.
type PoolHealth struct {
	Status              Status    `json:"status"`
	LastCheck           time.Time `json:"last_check"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
}

// Checker performs periodic health checks across every pool held by a
// pool.Manager.
type Checker struct {
	mu    sync.RWMutex
	pools map[string]*PoolHealth

	poolMgr *pool.Manager
	metrics *metrics.Collector

	interval          time.Duration
	failureThreshold  int
	connectionTimeout time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Config configures a Checker's cadence and thresholds.
type Config struct {
	Interval          time.Duration
	FailureThreshold  int
	ConnectionTimeout time.Duration
}

// NewChecker creates a health checker over pm.
func NewChecker(pm *pool.Manager, m *metrics.Collector, cfg Config) *Checker {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = 5 * time.Second
	}
	return &Checker{
		pools:             make(map[string]*PoolHealth),
		poolMgr:           pm,
		metrics:           m,
		interval:          cfg.Interval,
		failureThreshold:  cfg.FailureThreshold,
		connectionTimeout: cfg.ConnectionTimeout,
		stopCh:            make(chan struct{}),
	}
}

// Start begins periodic health checking.
func (c *Checker) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run()
	}()
	slog.Info("health checker started", "interval", c.interval, "threshold", c.failureThreshold)
}

// Stop stops the health checker. Safe to call multiple times.
func (c *Checker) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
	slog.Info("health checker stopped")
}

func (c *Checker) run() {
	c.checkAll()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.checkAll()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Checker) checkAll() {
	names := c.poolMgr.Names()

	const maxWorkers = 10
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup

	for _, name := range names {
		name := name
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			start := time.Now()
			healthy := c.pingPool(name)
			elapsed := time.Since(start)
			if c.metrics != nil {
				c.metrics.PingCompleted(name, elapsed)
				if !healthy {
					c.metrics.PingFailed(name)
				}
			}
			c.updateStatus(name, healthy)
		}()
	}
	wg.Wait()
}

// pingPool acquires a connection from the named pool and round-trips
// a ROLLBACK through it, the same liveness check the pool itself uses
// for ping_interval validation (§4.K), then releases it back.
func (c *Checker) pingPool(name string) bool {
	p, ok := c.poolMgr.Get(name)
	if !ok {
		c.setLastError(name, "pool not registered")
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.connectionTimeout)
	defer cancel()

	pc, err := p.Acquire(ctx)
	if err != nil {
		c.setLastError(name, "acquire for health check: "+err.Error())
		return false
	}
	defer pc.Release()

	if err := pc.Engine().ProcessMessage(ctx, ttc.NewRollbackMessage()); err != nil {
		c.setLastError(name, "health check round trip: "+err.Error())
		return false
	}

	c.setLastError(name, "")
	return true
}

func (c *Checker) setLastError(name, errMsg string) {
	c.mu.Lock()
	ph := c.getOrCreate(name)
	if errMsg != "" {
		ph.LastError = errMsg
	}
	c.mu.Unlock()
}

func (c *Checker) updateStatus(name string, healthy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ph := c.getOrCreate(name)
	ph.LastCheck = time.Now()

	if healthy {
		if ph.ConsecutiveFailures > 0 {
			slog.Info("pool recovered", "pool", name, "failures", ph.ConsecutiveFailures)
		}
		ph.Status = StatusHealthy
		ph.ConsecutiveFailures = 0
		ph.LastError = ""
	} else {
		ph.ConsecutiveFailures++
		if ph.ConsecutiveFailures >= c.failureThreshold {
			if ph.Status != StatusUnhealthy {
				slog.Warn("pool marked unhealthy", "pool", name, "failures", ph.ConsecutiveFailures, "error", ph.LastError)
			}
			ph.Status = StatusUnhealthy
		}
	}
}

func (c *Checker) getOrCreate(name string) *PoolHealth {
	ph, ok := c.pools[name]
	if !ok {
		ph = &PoolHealth{Status: StatusUnknown}
		c.pools[name] = ph
	}
	return ph
}

// IsHealthy returns whether a pool is healthy (unknown counts as healthy).
func (c *Checker) IsHealthy(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ph, ok := c.pools[name]
	if !ok {
		return true
	}
	return ph.Status != StatusUnhealthy
}

// GetStatus returns the health status for a pool.
func (c *Checker) GetStatus(name string) PoolHealth {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ph, ok := c.pools[name]
	if !ok {
		return PoolHealth{Status: StatusUnknown}
	}
	return *ph
}

// GetAllStatuses returns health statuses for all known pools.
func (c *Checker) GetAllStatuses() map[string]PoolHealth {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]PoolHealth, len(c.pools))
	for name, ph := range c.pools {
		result[name] = *ph
	}
	return result
}

// OverallHealthy returns true if every known pool is healthy.
func (c *Checker) OverallHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, ph := range c.pools {
		if ph.Status == StatusUnhealthy {
			return false
		}
	}
	return true
}

// RemovePool removes health state for a pool that has been removed
// from the manager.
func (c *Checker) RemovePool(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.pools, name)
	slog.Info("removed health state", "pool", name)
}
