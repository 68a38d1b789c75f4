// Package pool implements the bounded connection pool described in
// §4.K: a LIFO free list, ping-interval validation, getmode semantics
// (WAIT/NOWAIT/FORCEGET/TIMEDWAIT), and release-time session cleanup
// (rollback, DRCP release, optional session callback). It generalizes
// the teacher's TenantPool (idle slice, active map, sync.Cond waiters,
// warm-up) from a multi-tenant PG/MySQL proxy pool to a single Oracle
// connection pool. There is no background reaper: connections past
// MaxLifetime are discarded when they are acquired or released.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oracleco/go-ttcdriver/internal/oraerr"
	"github.com/oracleco/go-ttcdriver/internal/protocol"
	"github.com/oracleco/go-ttcdriver/internal/ttc"
)

// GetMode selects acquire() behavior when the pool is at capacity,
// per §4.K.
type GetMode int

const (
	GetModeWait GetMode = iota
	GetModeNoWait
	GetModeForceGet
	GetModeTimedWait
)

// Stats mirrors §4.K's pool invariants for diagnostics/metrics export.
type Stats struct {
	Busy      int   `json:"busy"`
	Free      int   `json:"free"`
	Total     int   `json:"total"`
	Waiting   int   `json:"waiting"`
	Min       int   `json:"min"`
	Max       int   `json:"max"`
	Exhausted int64 `json:"exhausted_total"`
}

// SessionCallback resets application-level session state (e.g. NLS
// parameters, package state) on a connection before it re-enters the
// free list; analogous to python-oracledb's session_callback.
type SessionCallback func(pc *PooledConn) error

// Params configures a ConnectionPool (§6 create_pool params: min, max,
// increment, getmode, ping_interval, session_callback, homogeneous).
// The statement cache size is not a pool parameter; it is set per
// connection through oracledriver.Params.StatementCacheSize.
type Params struct {
	Min            int
	Max            int
	Increment      int
	GetMode        GetMode
	AcquireTimeout time.Duration
	PingInterval   time.Duration
	MaxLifetime    time.Duration
	Homogeneous    bool
	SessionCB      SessionCallback

	Handshake ttc.HandshakeParams

	Logger *slog.Logger
}

// ConnectionPool manages a bounded set of authenticated Oracle
// connections for a single connect descriptor (§4.K).
type ConnectionPool struct {
	mu   sync.Mutex
	cond *sync.Cond

	addrList *protocol.AddressList
	params   Params
	cookie   *protocol.ConnectionCookie

	free    []*PooledConn
	busy    map[*PooledConn]struct{}
	total   int
	waiting int

	exhausted int64
	closed    bool
	stopCh    chan struct{}
}

// New builds a ConnectionPool against addrList, pre-warming Min
// connections in the background the way the teacher's warmUp does.
func New(addrList *protocol.AddressList, params Params) *ConnectionPool {
	if params.Increment <= 0 {
		params.Increment = 1
	}
	if params.AcquireTimeout <= 0 {
		params.AcquireTimeout = 30 * time.Second
	}
	cp := &ConnectionPool{
		addrList: addrList,
		params:   params,
		cookie:   protocol.NewConnectionCookie(),
		busy:     make(map[*PooledConn]struct{}),
		stopCh:   make(chan struct{}),
	}
	cp.cond = sync.NewCond(&cp.mu)

	if params.Min > 0 {
		go cp.warmUp()
	}
	return cp
}

func (cp *ConnectionPool) logger() *slog.Logger {
	if cp.params.Logger != nil {
		return cp.params.Logger
	}
	return slog.Default()
}

func (cp *ConnectionPool) warmUp() {
	for i := 0; i < cp.params.Min; i++ {
		cp.mu.Lock()
		if cp.closed || cp.total >= cp.params.Min {
			cp.mu.Unlock()
			return
		}
		cp.total++
		cp.mu.Unlock()

		pc, err := cp.dial(context.Background())
		if err != nil {
			cp.mu.Lock()
			cp.total--
			cp.mu.Unlock()
			cp.logger().Warn("pool warm-up connection failed", "index", i+1, "min", cp.params.Min, "err", err)
			return
		}

		cp.mu.Lock()
		if cp.closed {
			cp.mu.Unlock()
			pc.Close()
			return
		}
		pc.markFree()
		cp.free = append(cp.free, pc)
		cp.mu.Unlock()
	}
	cp.logger().Info("pool warm-up complete", "count", cp.params.Min)
}

// Acquire returns a connection per §4.K's getmode semantics, creating
// one if the pool is under Max and validating a reused connection's
// liveness once PingInterval has elapsed since it was last used.
func (cp *ConnectionPool) Acquire(ctx context.Context) (*PooledConn, error) {
	switch cp.params.GetMode {
	case GetModeNoWait:
		return cp.acquireNoWait(ctx)
	case GetModeForceGet:
		return cp.acquireForceGet(ctx)
	case GetModeTimedWait:
		return cp.acquireWaiting(ctx, cp.params.AcquireTimeout)
	default:
		return cp.acquireWaiting(ctx, 0)
	}
}

// acquireNoWait fails immediately if busy == max (§4.K: "NOWAIT fails
// immediately if busy == max").
func (cp *ConnectionPool) acquireNoWait(ctx context.Context) (*PooledConn, error) {
	cp.mu.Lock()
	if cp.closed {
		cp.mu.Unlock()
		return nil, oraerr.ErrConnectionClosed
	}
	if pc := cp.popFreeLocked(); pc != nil {
		cp.mu.Unlock()
		return cp.validateOrRetry(ctx, pc)
	}
	if cp.total >= cp.params.Max {
		cp.mu.Unlock()
		return nil, fmt.Errorf("pool: getmode NOWAIT: busy == max (%d)", cp.params.Max)
	}
	cp.total++
	cp.mu.Unlock()
	return cp.dialOrRollback(ctx)
}

// acquireForceGet may exceed Max temporarily (§4.K: "FORCEGET may
// exceed max temporarily").
func (cp *ConnectionPool) acquireForceGet(ctx context.Context) (*PooledConn, error) {
	cp.mu.Lock()
	if cp.closed {
		cp.mu.Unlock()
		return nil, oraerr.ErrConnectionClosed
	}
	if pc := cp.popFreeLocked(); pc != nil {
		cp.mu.Unlock()
		return cp.validateOrRetry(ctx, pc)
	}
	cp.total++
	cp.mu.Unlock()
	return cp.dialOrRollback(ctx)
}

// acquireWaiting implements WAIT (timeout == 0 means block until the
// pool's configured AcquireTimeout) and TIMEDWAIT (explicit timeout).
func (cp *ConnectionPool) acquireWaiting(ctx context.Context, timeout time.Duration) (*PooledConn, error) {
	if timeout <= 0 {
		timeout = cp.params.AcquireTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	cp.mu.Lock()
	for {
		select {
		case <-ctx.Done():
			cp.mu.Unlock()
			return nil, ctx.Err()
		default:
		}

		if cp.closed {
			cp.mu.Unlock()
			return nil, oraerr.ErrConnectionClosed
		}

		if pc := cp.popFreeLocked(); pc != nil {
			cp.mu.Unlock()
			return cp.validateOrRetry(ctx, pc)
		}

		if cp.total < cp.params.Max {
			cp.total++
			cp.mu.Unlock()
			return cp.dialOrRollback(ctx)
		}

		cp.waiting++
		cp.exhausted++

		remaining := time.Until(deadline)
		if remaining <= 0 {
			cp.waiting--
			cp.mu.Unlock()
			return nil, fmt.Errorf("pool: acquire timeout (%s): pool exhausted", timeout)
		}
		timer := time.AfterFunc(remaining, func() { cp.cond.Broadcast() })
		cp.cond.Wait()
		timer.Stop()
		cp.waiting--

		if cp.closed {
			cp.mu.Unlock()
			return nil, oraerr.ErrConnectionClosed
		}
		if time.Now().After(deadline) {
			cp.mu.Unlock()
			return nil, fmt.Errorf("pool: acquire timeout (%s): pool exhausted", timeout)
		}
		// loop retries from the top with cp.mu held
	}
}

// popFreeLocked pops the most recently freed connection (LIFO, §4.K:
// "acquire() picks a free connection (LIFO)"), discarding any that
// exceeded MaxLifetime. Must be called with cp.mu held.
func (cp *ConnectionPool) popFreeLocked() *PooledConn {
	for len(cp.free) > 0 {
		pc := cp.free[len(cp.free)-1]
		cp.free = cp.free[:len(cp.free)-1]
		if pc.IsExpired(cp.params.MaxLifetime) {
			pc.Close()
			cp.total--
			continue
		}
		cp.busy[pc] = struct{}{}
		pc.markBusy()
		return pc
	}
	return nil
}

// validateOrRetry performs the ping_interval liveness check (§4.K) on
// a popped connection outside the pool lock, discarding and retrying
// the whole acquire on a dead connection.
func (cp *ConnectionPool) validateOrRetry(ctx context.Context, pc *PooledConn) (*PooledConn, error) {
	if pc.NeedsPing(cp.params.PingInterval) {
		if err := cp.ping(ctx, pc); err != nil {
			cp.mu.Lock()
			delete(cp.busy, pc)
			cp.total--
			cp.mu.Unlock()
			pc.Close()
			return cp.Acquire(ctx)
		}
		pc.markPinged()
	}
	return pc, nil
}

// ping issues a cheap round trip to validate liveness. A ROLLBACK is
// used rather than a bare no-op function code because every server
// this core targets accepts it unconditionally regardless of
// transaction state.
func (cp *ConnectionPool) ping(ctx context.Context, pc *PooledConn) error {
	return pc.Engine().ProcessMessage(ctx, ttc.NewRollbackMessage())
}

func (cp *ConnectionPool) dialOrRollback(ctx context.Context) (*PooledConn, error) {
	pc, err := cp.dial(ctx)
	if err != nil {
		cp.mu.Lock()
		cp.total--
		cp.mu.Unlock()
		return nil, err
	}
	cp.mu.Lock()
	cp.busy[pc] = struct{}{}
	cp.mu.Unlock()
	pc.markBusy()
	return pc, nil
}

func (cp *ConnectionPool) dial(ctx context.Context) (*PooledConn, error) {
	params := cp.params.Handshake
	params.Cookie = cp.cookie
	res, err := ttc.Handshake(ctx, cp.addrList, params)
	if err != nil {
		return nil, fmt.Errorf("pool: connecting: %w", err)
	}
	pc := newPooledConn(res.Conn, res.Engine, cp)
	pc.purity = params.Purity
	pc.drcpEnabled = params.Purity != ttc.PurityDefault
	pc.sessionID = fmt.Sprintf("%d", res.SessionID)
	return pc, nil
}

// Release returns pc to the free list after §4.K's release sequence:
// rollback any open transaction, release the DRCP session if one is
// pinned, run the session callback, then make the connection
// available again.
func (cp *ConnectionPool) release(pc *PooledConn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pc.Engine().ProcessMessage(ctx, ttc.NewRollbackMessage()); err != nil {
		cp.logger().Warn("pool: rollback on release failed", "err", err)
	}

	if pc.drcpEnabled {
		deauth := pc.purity == ttc.PurityNew
		if err := pc.Engine().ProcessMessage(ctx, ttc.NewSessionReleaseMessage(deauth)); err != nil {
			cp.logger().Warn("pool: DRCP session release failed", "err", err)
		}
	}

	if cp.params.SessionCB != nil {
		if err := cp.params.SessionCB(pc); err != nil {
			cp.logger().Warn("pool: session callback failed", "err", err)
		}
	}

	cp.mu.Lock()
	defer cp.mu.Unlock()
	delete(cp.busy, pc)

	if cp.closed || pc.IsExpired(cp.params.MaxLifetime) {
		pc.Close()
		cp.total--
		cp.cond.Signal()
		return
	}

	pc.markFree()
	cp.free = append(cp.free, pc)
	cp.cond.Signal()
}

// Stats reports the current pool occupancy.
func (cp *ConnectionPool) Stats() Stats {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return Stats{
		Busy:      len(cp.busy),
		Free:      len(cp.free),
		Total:     cp.total,
		Waiting:   cp.waiting,
		Min:       cp.params.Min,
		Max:       cp.params.Max,
		Exhausted: cp.exhausted,
	}
}

// Drain closes every free connection and waits (up to 30s) for busy
// ones to be released, force-closing any stragglers.
func (cp *ConnectionPool) Drain() {
	cp.mu.Lock()
	for _, pc := range cp.free {
		pc.Close()
		cp.total--
	}
	cp.free = cp.free[:0]
	busyCount := len(cp.busy)
	cp.mu.Unlock()

	if busyCount == 0 {
		return
	}

	timeout := time.After(30 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cp.mu.Lock()
			if len(cp.busy) == 0 {
				cp.mu.Unlock()
				return
			}
			cp.mu.Unlock()
		case <-timeout:
			cp.mu.Lock()
			for pc := range cp.busy {
				pc.Close()
				cp.total--
			}
			cp.busy = make(map[*PooledConn]struct{})
			cp.mu.Unlock()
			cp.logger().Warn("pool: force-closed connections after drain timeout")
			return
		}
	}
}

// Close shuts the pool down, waking any waiters in Acquire and
// draining all connections.
func (cp *ConnectionPool) Close() {
	cp.mu.Lock()
	if cp.closed {
		cp.mu.Unlock()
		return
	}
	cp.closed = true
	close(cp.stopCh)
	cp.cond.Broadcast()
	cp.mu.Unlock()

	cp.Drain()
}

// InjectTestConn adds a pre-built PooledConn directly to the free
// list, bypassing dial/handshake — test-only.
func (cp *ConnectionPool) InjectTestConn(pc *PooledConn) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	pc.markFree()
	cp.free = append(cp.free, pc)
	cp.total++
	cp.cond.Signal()
}
