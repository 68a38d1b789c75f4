package pool

import (
	"log/slog"
	"sync"
	"time"
)

// StatsCallback is called periodically with one named pool's stats.
type StatsCallback func(name string, stats Stats)

// Manager owns a set of named ConnectionPools, one per config.PoolConfig
// entry, mirroring how an embedding application typically maintains a
// handful of Oracle services (reporting, OLTP, batch) side by side.
type Manager struct {
	mu          sync.RWMutex
	pools       map[string]*ConnectionPool
	statsStopCh chan struct{}
	closeOnce   sync.Once
}

// NewManager creates an empty pool manager.
func NewManager() *Manager {
	return &Manager{
		pools:       make(map[string]*ConnectionPool),
		statsStopCh: make(chan struct{}),
	}
}

// Add registers a freshly built pool under name, replacing (and
// closing) any previous pool of the same name.
func (m *Manager) Add(name string, p *ConnectionPool) {
	m.mu.Lock()
	old, existed := m.pools[name]
	m.pools[name] = p
	m.mu.Unlock()

	if existed {
		old.Close()
	}
}

// Get returns the named pool if it exists.
func (m *Manager) Get(name string) (*ConnectionPool, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pools[name]
	return p, ok
}

// Remove closes and removes the named pool.
func (m *Manager) Remove(name string) bool {
	m.mu.Lock()
	p, ok := m.pools[name]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.pools, name)
	m.mu.Unlock()

	p.Close()
	slog.Info("pool manager: removed pool", "name", name)
	return true
}

// DrainPool drains connections for a specific named pool.
func (m *Manager) DrainPool(name string) bool {
	m.mu.RLock()
	p, ok := m.pools[name]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	p.Drain()
	return true
}

// Names returns the currently registered pool names.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.pools))
	for name := range m.pools {
		names = append(names, name)
	}
	return names
}

// AllStats returns stats for every registered pool, keyed by name.
func (m *Manager) AllStats() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Stats, len(m.pools))
	for name, p := range m.pools {
		out[name] = p.Stats()
	}
	return out
}

// StartStatsLoop starts a goroutine that invokes cb for every
// registered pool on each tick, until Close is called.
func (m *Manager) StartStatsLoop(interval time.Duration, cb StatsCallback) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for name, stats := range m.AllStats() {
					cb(name, stats)
				}
			case <-m.statsStopCh:
				return
			}
		}
	}()
}

// Close shuts down every managed pool and stops the stats loop. Safe
// to call multiple times.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.statsStopCh)
	})

	m.mu.Lock()
	pools := m.pools
	m.pools = make(map[string]*ConnectionPool)
	m.mu.Unlock()

	for _, p := range pools {
		p.Close()
	}
}
