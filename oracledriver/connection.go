package oracledriver

import (
	"context"

	"github.com/oracleco/go-ttcdriver/internal/cursor"
	"github.com/oracleco/go-ttcdriver/internal/dbobject"
	"github.com/oracleco/go-ttcdriver/internal/lob"
	"github.com/oracleco/go-ttcdriver/internal/oraerr"
	"github.com/oracleco/go-ttcdriver/internal/pool"
	"github.com/oracleco/go-ttcdriver/internal/protocol"
	"github.com/oracleco/go-ttcdriver/internal/statement"
	"github.com/oracleco/go-ttcdriver/internal/ttc"
)

// Connection is one authenticated session, standalone (from Connect)
// or on loan from a Pool (§6: "Connection.cursor() / .commit() /
// .rollback() / .ping() / .subscribe() / .gettype() / .createlob()").
type Connection struct {
	eng   *protocol.Engine
	pc    *pool.PooledConn // nil for a standalone (non-pooled) connection
	stmts *statement.Cache
	types *dbobject.Cache

	outputHandler ttc.OutputTypeHandler
	closed        bool
}

func newConnection(eng *protocol.Engine, pc *pool.PooledConn, stmtCacheSize int) *Connection {
	return &Connection{
		eng:   eng,
		pc:    pc,
		stmts: statement.NewCache(stmtCacheSize),
		types: dbobject.NewCache(),
	}
}

// SetOutputTypeHandler installs the connection-level output type
// handler, applied to every cursor created from this connection unless
// a cursor installs its own (§4.H: "cursor handler wins over connection
// handler").
func (c *Connection) SetOutputTypeHandler(h ttc.OutputTypeHandler) { c.outputHandler = h }

// Cursor returns a new cursor driven by this connection's engine and
// statement cache (§6: "Connection.cursor()").
func (c *Connection) Cursor() *Cursor {
	return &Cursor{Cursor: cursor.New(c.eng, c.stmts, c.outputHandler)}
}

// CreateLob allocates a temporary LOB on this connection (§6:
// "Connection.createlob()", §4.J).
func (c *Connection) CreateLob(ctx context.Context, kind lob.Kind) (*lob.Handle, error) {
	if c.closed {
		return nil, oraerr.ErrConnectionClosed
	}
	return lob.CreateTemp(ctx, c.eng, kind)
}

// Commit issues a COMMIT round trip.
func (c *Connection) Commit(ctx context.Context) error {
	if c.closed {
		return oraerr.ErrConnectionClosed
	}
	return c.eng.ProcessMessage(ctx, ttc.NewCommitMessage())
}

// Rollback issues a ROLLBACK round trip.
func (c *Connection) Rollback(ctx context.Context) error {
	if c.closed {
		return oraerr.ErrConnectionClosed
	}
	return c.eng.ProcessMessage(ctx, ttc.NewRollbackMessage())
}

// Ping validates the connection is alive with a cheap round trip, the
// same ROLLBACK probe internal/pool and internal/health use (§4.K).
func (c *Connection) Ping(ctx context.Context) error {
	if c.closed {
		return oraerr.ErrConnectionClosed
	}
	return c.eng.ProcessMessage(ctx, ttc.NewRollbackMessage())
}

// Subscribe is named in §6's external interface enumeration but CQN
// subscription delivery is out of this core's scope (spec.md §1
// non-goals: "no ... CQN/AQ subscription delivery").
func (c *Connection) Subscribe(ctx context.Context, query string) error {
	return oraerr.ErrNotSupported("connection.subscribe")
}

// GetType resolves an object type description, caching it on this
// connection for subsequent lookups (§6: "Connection.gettype()", §4.I).
func (c *Connection) GetType(ctx context.Context, schema, pkg, name string) (*dbobject.Type, error) {
	if c.closed {
		return nil, oraerr.ErrConnectionClosed
	}
	return c.types.Get(ctx, c.eng, dbobject.Key{Schema: schema, Package: pkg, Name: name})
}

// BreakExternal delivers an out-of-band break to a call in progress on
// this connection from another goroutine (§8: "break_external() ...
// results in either CallCancelled or the request completing normally").
func (c *Connection) BreakExternal() error {
	return c.eng.BreakExternal()
}

// Close releases the connection: back to its pool if it was acquired
// from one, or shuts the transport down directly for a standalone
// connection.
func (c *Connection) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.pc != nil {
		c.pc.Release()
		return nil
	}
	return c.eng.Close(ctx)
}
