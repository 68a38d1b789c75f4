// Package oracledriver is the thin public facade over the internal
// TTC/TNS driver core: connect/create_pool entry points and the
// Connection/Cursor types named in §6. It exists so the end-to-end
// scenarios in §8 are expressible as tests against a concrete API
// rather than against internal packages directly.
package oracledriver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oracleco/go-ttcdriver/internal/protocol"
	"github.com/oracleco/go-ttcdriver/internal/transport"
	"github.com/oracleco/go-ttcdriver/internal/ttc"
)

// Params carries the connect() parameters named in §6, outside the
// address/service identity already held by a protocol.Description.
type Params struct {
	Username       string
	Password       string
	Token          string
	AccessTokenCB  func(ctx context.Context) (string, error)
	ProxyUser      string
	Purity         string // DEFAULT, NEW, SELF
	Mode           string // DEFAULT, PRELIM, SYSDBA, SYSOPER, SYSASM, SYSBKP, SYSDGD, SYSKMT, SYSRAC
	Program        string
	Terminal       string
	Machine        string
	Edition        string // carried for API parity; not sent by this core's handshake
	Tag            string // DRCP session tag request, reserved
	Events         bool   // carried for API parity; subscribe() is unimplemented
	DisableOOB     bool
	CharsetID      int
	NCharsetID     int
	DialTimeout    time.Duration
	Logger         *slog.Logger

	StatementCacheSize int
}

func (p Params) stmtCacheSize() int {
	if p.StatementCacheSize > 0 {
		return p.StatementCacheSize
	}
	return 20
}

func parseMode(s string) (ttc.AuthMode, error) {
	switch s {
	case "", "DEFAULT":
		return ttc.AuthModeDefault, nil
	case "PRELIM":
		return ttc.AuthModePrelim, nil
	case "SYSDBA":
		return ttc.AuthModeSysDBA, nil
	case "SYSOPER":
		return ttc.AuthModeSysOper, nil
	case "SYSASM":
		return ttc.AuthModeSysASM, nil
	case "SYSBKP":
		return ttc.AuthModeSysBKP, nil
	case "SYSDGD":
		return ttc.AuthModeSysDGD, nil
	case "SYSKMT":
		return ttc.AuthModeSysKMT, nil
	case "SYSRAC":
		return ttc.AuthModeSysRAC, nil
	default:
		return 0, fmt.Errorf("oracledriver: unsupported mode %q", s)
	}
}

func parsePurity(s string) (ttc.Purity, error) {
	switch s {
	case "", "DEFAULT":
		return ttc.PurityDefault, nil
	case "NEW":
		return ttc.PurityNew, nil
	case "SELF":
		return ttc.PuritySelf, nil
	default:
		return 0, fmt.Errorf("oracledriver: unsupported purity %q", s)
	}
}

func (p Params) handshakeParams(cookie *protocol.ConnectionCookie) (ttc.HandshakeParams, error) {
	mode, err := parseMode(p.Mode)
	if err != nil {
		return ttc.HandshakeParams{}, err
	}
	purity, err := parsePurity(p.Purity)
	if err != nil {
		return ttc.HandshakeParams{}, err
	}
	accessToken := p.Token
	if p.AccessTokenCB != nil {
		tok, err := p.AccessTokenCB(context.Background())
		if err != nil {
			return ttc.HandshakeParams{}, fmt.Errorf("oracledriver: access token callback: %w", err)
		}
		accessToken = tok
	}
	charset, ncharset := p.CharsetID, p.NCharsetID
	if charset == 0 {
		charset = 873
	}
	if ncharset == 0 {
		ncharset = 873
	}
	return ttc.HandshakeParams{
		DriverName:  "go-ttcdriver",
		Username:    p.Username,
		Password:    p.Password,
		ProxyUser:   p.ProxyUser,
		AccessToken: accessToken,
		Mode:        mode,
		Purity:      purity,
		Program:     p.Program,
		Terminal:    p.Terminal,
		Machine:     p.Machine,
		CharsetID:   charset,
		NCharsetID:  ncharset,
		Cookie:      cookie,
		Dial: transport.DialOptions{
			DialTimeout: p.DialTimeout,
			Logger:      p.Logger,
		},
		Logger: p.Logger,
	}, nil
}

// standaloneCookie caches phase-one ACCEPT bytes across standalone
// Connect() calls within this process, keyed by host, so a reconnect
// to the same listener can collapse phase two into FAST_AUTH. Pooled
// connections use their own per-pool cookie instead (internal/pool).
var standaloneCookie = protocol.NewConnectionCookie()

// Connect dials description and completes the connect/auth handshake
// (§6: "connect(description, params) → Connection"), returning a
// standalone connection not backed by any pool.
func Connect(ctx context.Context, description protocol.Description, params Params) (*Connection, error) {
	addrList, err := protocol.NewAddressList(description)
	if err != nil {
		return nil, err
	}
	hp, err := params.handshakeParams(standaloneCookie)
	if err != nil {
		return nil, err
	}
	res, err := ttc.Handshake(ctx, addrList, hp)
	if err != nil {
		return nil, fmt.Errorf("oracledriver: connect: %w", err)
	}
	return newConnection(res.Engine, nil, params.stmtCacheSize()), nil
}
