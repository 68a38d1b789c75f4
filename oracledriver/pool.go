package oracledriver

import (
	"context"
	"fmt"
	"time"

	"github.com/oracleco/go-ttcdriver/internal/pool"
	"github.com/oracleco/go-ttcdriver/internal/protocol"
)

// PoolParams extends Params with the create_pool()-only knobs named in
// §6: {min, max, increment, getmode, ping_interval, session_callback,
// homogeneous, stmtcachesize}.
type PoolParams struct {
	Params

	Min            int
	Max            int
	Increment      int
	GetMode        string // WAIT, NOWAIT, FORCEGET, TIMEDWAIT
	AcquireTimeout time.Duration
	PingInterval   time.Duration
	MaxLifetime    time.Duration
	Homogeneous    bool
	SessionCallback func(*Connection) error
}

func parseGetMode(s string) (pool.GetMode, error) {
	switch s {
	case "", "WAIT":
		return pool.GetModeWait, nil
	case "NOWAIT":
		return pool.GetModeNoWait, nil
	case "FORCEGET":
		return pool.GetModeForceGet, nil
	case "TIMEDWAIT":
		return pool.GetModeTimedWait, nil
	default:
		return 0, fmt.Errorf("oracledriver: unsupported getmode %q", s)
	}
}

// Pool is a bounded set of authenticated connections to one connect
// descriptor (§6: "create_pool(description, params)", §4.K).
type Pool struct {
	cp            *pool.ConnectionPool
	stmtCacheSize int
}

// CreatePool builds a pool dialing description on demand up to Max
// connections, pre-warming Min in the background.
func CreatePool(description protocol.Description, params PoolParams) (*Pool, error) {
	addrList, err := protocol.NewAddressList(description)
	if err != nil {
		return nil, err
	}
	getMode, err := parseGetMode(params.GetMode)
	if err != nil {
		return nil, err
	}
	hp, err := params.Params.handshakeParams(protocol.NewConnectionCookie())
	if err != nil {
		return nil, err
	}

	var sessionCB pool.SessionCallback
	if params.SessionCallback != nil {
		cb := params.SessionCallback
		sessionCB = func(pc *pool.PooledConn) error {
			return cb(newConnection(pc.Engine(), pc, params.Params.stmtCacheSize()))
		}
	}

	cp := pool.New(addrList, pool.Params{
		Min:            params.Min,
		Max:            params.Max,
		Increment:      params.Increment,
		GetMode:        getMode,
		AcquireTimeout: params.AcquireTimeout,
		PingInterval:   params.PingInterval,
		MaxLifetime:    params.MaxLifetime,
		Homogeneous:    params.Homogeneous,
		SessionCB:      sessionCB,
		Handshake:      hp,
		Logger:         params.Params.Logger,
	})

	return &Pool{cp: cp, stmtCacheSize: params.Params.stmtCacheSize()}, nil
}

// Acquire checks a connection out of the pool per its configured
// getmode (§4.K).
func (p *Pool) Acquire(ctx context.Context) (*Connection, error) {
	pc, err := p.cp.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return newConnection(pc.Engine(), pc, p.stmtCacheSize), nil
}

// Stats reports current pool occupancy.
func (p *Pool) Stats() pool.Stats { return p.cp.Stats() }

// Close drains and closes every connection in the pool.
func (p *Pool) Close() { p.cp.Close() }
