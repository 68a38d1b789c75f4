package oracledriver

import (
	"fmt"

	"github.com/oracleco/go-ttcdriver/internal/config"
	"github.com/oracleco/go-ttcdriver/internal/pool"
	"github.com/oracleco/go-ttcdriver/internal/protocol"
)

// BuildManager constructs one named pool.ConnectionPool per entry in
// cfg.Pools, registering each under its config key in the returned
// pool.Manager — the way an embedding app typically keeps a handful of
// Oracle services (reporting, OLTP, batch) side by side behind one
// registry.
func BuildManager(cfg *config.Config) (*pool.Manager, error) {
	mgr := pool.NewManager()
	for name, pc := range cfg.Pools {
		cp, err := buildNamedPool(cfg, name, pc)
		if err != nil {
			mgr.Close()
			return nil, fmt.Errorf("oracledriver: building pool %q: %w", name, err)
		}
		mgr.Add(name, cp)
	}
	return mgr, nil
}

func buildNamedPool(cfg *config.Config, name string, pc config.PoolConfig) (*pool.ConnectionPool, error) {
	host := pc.Host
	if host == "" {
		host = cfg.Connect.Host
	}
	port := pc.Port
	if port == 0 {
		port = cfg.Connect.Port
	}
	serviceName := pc.ServiceName
	if serviceName == "" {
		serviceName = cfg.Connect.ServiceName
	}
	username := pc.Username
	if username == "" {
		username = cfg.Connect.Username
	}
	password := pc.Password
	if password == "" {
		password = cfg.Connect.Password
	}

	addrList, err := protocol.NewAddressList(protocol.Description{
		Addresses:   []protocol.Address{{Host: host, Port: port}},
		ServiceName: serviceName,
	})
	if err != nil {
		return nil, err
	}

	params := Params{
		Username:    username,
		Password:    password,
		Mode:        cfg.Connect.Mode,
		Purity:      cfg.Connect.Purity,
		Program:     cfg.Connect.Program,
		Terminal:    cfg.Connect.Terminal,
		DialTimeout: cfg.Connect.DialTimeout,
	}
	if pc.StmtCacheSize != nil {
		params.StatementCacheSize = *pc.StmtCacheSize
	}
	hp, err := params.handshakeParams(protocol.NewConnectionCookie())
	if err != nil {
		return nil, err
	}

	getMode, err := parseGetMode(pc.EffectiveGetMode(cfg.Pool))
	if err != nil {
		return nil, fmt.Errorf("pool %q: %w", name, err)
	}

	return pool.New(addrList, pool.Params{
		Min:            pc.EffectiveMin(cfg.Pool),
		Max:            pc.EffectiveMax(cfg.Pool),
		Increment:      pc.EffectiveIncrement(cfg.Pool),
		GetMode:        getMode,
		AcquireTimeout: pc.EffectiveAcquireTimeout(cfg.Pool),
		PingInterval:   pc.EffectivePingInterval(cfg.Pool),
		MaxLifetime:    pc.EffectiveMaxLifetime(cfg.Pool),
		Homogeneous:    cfg.Pool.Homogeneous,
		Handshake:      hp,
	}), nil
}
