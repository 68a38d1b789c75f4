package pool

import (
	"context"
	"sync"
	"time"

	"github.com/oracleco/go-ttcdriver/internal/protocol"
	"github.com/oracleco/go-ttcdriver/internal/transport"
	"github.com/oracleco/go-ttcdriver/internal/ttc"
)

// ConnState is the pooling lifecycle state of a PooledConn. It is
// distinct from protocol.State, which tracks TTC call state.
type ConnState int

const (
	ConnStateFree ConnState = iota
	ConnStateBusy
	ConnStateClosed
)

// PooledConn wraps a handshake-complete TTC connection with pooling
// metadata: creation/last-use timestamps, DRCP session purity, and a
// back-reference so callers can Release() without holding the pool.
type PooledConn struct {
	mu          sync.Mutex
	raw         *transport.Conn
	engine      *protocol.Engine
	state       ConnState
	createdAt   time.Time
	lastUsed    time.Time
	lastPing    time.Time
	purity      ttc.Purity
	sessionID   string
	drcpEnabled bool
	pool        *ConnectionPool
}

func newPooledConn(raw *transport.Conn, eng *protocol.Engine, p *ConnectionPool) *PooledConn {
	now := time.Now()
	return &PooledConn{
		raw:       raw,
		engine:    eng,
		state:     ConnStateFree,
		createdAt: now,
		lastUsed:  now,
		lastPing:  now,
		pool:      p,
	}
}

// Engine returns the protocol engine driving calls on this connection.
func (pc *PooledConn) Engine() *protocol.Engine { return pc.engine }

// Raw returns the underlying transport connection.
func (pc *PooledConn) Raw() *transport.Conn { return pc.raw }

func (pc *PooledConn) markBusy() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.state = ConnStateBusy
}

func (pc *PooledConn) markFree() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.state = ConnStateFree
	pc.lastUsed = time.Now()
}

// State returns the current pooling state.
func (pc *PooledConn) State() ConnState {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.state
}

// CreatedAt returns connection creation time.
func (pc *PooledConn) CreatedAt() time.Time { return pc.createdAt }

// IsExpired reports whether the connection exceeded its configured
// max lifetime.
func (pc *PooledConn) IsExpired(maxLifetime time.Duration) bool {
	if maxLifetime <= 0 {
		return false
	}
	return time.Since(pc.createdAt) > maxLifetime
}

// NeedsPing reports whether ping_interval has elapsed since the
// connection was last used, i.e. created or last released to the free
// list (§4.K).
func (pc *PooledConn) NeedsPing(interval time.Duration) bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if interval <= 0 {
		return false
	}
	return time.Since(pc.lastUsed) > interval
}

func (pc *PooledConn) markPinged() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.lastPing = time.Now()
}

// Close tears down the underlying connection.
func (pc *PooledConn) Close() error {
	pc.mu.Lock()
	pc.state = ConnStateClosed
	pc.mu.Unlock()
	pc.engine.Close(context.Background())
	return pc.raw.Close()
}

// Release returns this connection to its pool, applying §4.K release
// semantics (rollback, DRCP release, session reset callback) before
// the connection becomes eligible for reuse.
func (pc *PooledConn) Release() {
	if pc.pool != nil {
		pc.pool.release(pc)
	}
}
