package pool

import (
	"github.com/oracleco/go-ttcdriver/internal/protocol"
	"github.com/oracleco/go-ttcdriver/internal/transport"
)

// NewTestPooledConn builds a PooledConn around an already-constructed
// transport/engine pair for use by other packages' tests (e.g.
// internal/health), mirroring InjectTestConn's bypass of dial/handshake.
func NewTestPooledConn(raw *transport.Conn, eng *protocol.Engine, p *ConnectionPool) *PooledConn {
	return newPooledConn(raw, eng, p)
}
