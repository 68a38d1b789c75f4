package ttc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"regexp"

	"github.com/oracleco/go-ttcdriver/internal/capabilities"
	"github.com/oracleco/go-ttcdriver/internal/protocol"
	"github.com/oracleco/go-ttcdriver/internal/transport"
	"github.com/oracleco/go-ttcdriver/internal/wire"
)

// HandshakeParams carries everything a connect attempt needs beyond
// the address/service identity already resolved by protocol.AddressList
// (§4.F phase one and phase two).
type HandshakeParams struct {
	DriverName string

	Username    string
	Password    string
	ProxyUser   string
	AccessToken string
	Mode        AuthMode
	Purity      Purity
	Program     string
	Terminal    string
	Machine     string

	CharsetID  int
	NCharsetID int

	Cookie *protocol.ConnectionCookie

	Dial   transport.DialOptions
	Logger *slog.Logger
}

// HandshakeResult is a freshly authenticated connection ready for
// internal/pool to adopt.
type HandshakeResult struct {
	Engine    *protocol.Engine
	Conn      *transport.Conn
	Caps      *capabilities.Capabilities
	SessionID uint32
	SerialNum uint16
}

var redirectHostPort = regexp.MustCompile(`\(HOST=([^)]+)\)\(PORT=(\d+)\)`)

// Handshake walks addrList's attempts (§3 FAILOVER/LOAD_BALANCE policy),
// driving phase one (CONNECT/ACCEPT/REFUSE/REDIRECT) and phase two
// (Protocol/DataTypes/Auth, or the FAST_AUTH collapse when a cookie is
// cached) to produce a READY connection.
func Handshake(ctx context.Context, addrList *protocol.AddressList, params HandshakeParams) (*HandshakeResult, error) {
	var lastErr error
	for _, addr := range addrList.Attempts() {
		res, err := handshakeOnce(ctx, addr.String(), addrList.ServiceName(), params, 0)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("ttc: connect descriptor produced no addresses to try")
	}
	return nil, lastErr
}

func handshakeOnce(ctx context.Context, addr, serviceName string, params HandshakeParams, redirects int) (*HandshakeResult, error) {
	if redirects > 3 {
		return nil, fmt.Errorf("ttc: too many REDIRECT hops connecting to %s", addr)
	}

	raw, err := transport.Dial(ctx, addr, params.Dial)
	if err != nil {
		return nil, err
	}

	connectString := BuildConnectDescriptor(serviceName, params.Program, params.Machine, params.Username)
	req := ConnectRequest{ConnectString: connectString}

	legacyCaps := capabilities.New()
	bootstrap := transport.NewConn(raw, legacyCaps)
	if err := bootstrap.WritePacket(wire.PacketTypeConnect, 0, req.Encode()); err != nil {
		raw.Close()
		return nil, fmt.Errorf("ttc: sending CONNECT: %w", err)
	}

	pktType, _, payload, err := bootstrap.ReadPacket()
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("ttc: reading phase-one response: %w", err)
	}

	switch pktType {
	case wire.PacketTypeRefuse:
		raw.Close()
		res := DecodeRefuse(payload)
		return nil, fmt.Errorf("ttc: listener refused connection: %s", res.Reason)

	case wire.PacketTypeRedirect:
		raw.Close()
		res, derr := DecodeRedirect(payload)
		if derr != nil {
			return nil, derr
		}
		m := redirectHostPort.FindStringSubmatch(res.NewConnectString)
		if m == nil {
			return nil, fmt.Errorf("ttc: cannot resolve REDIRECT target %q", res.NewConnectString)
		}
		newAddr := net.JoinHostPort(m[1], m[2])
		return handshakeOnce(ctx, newAddr, serviceName, params, redirects+1)

	case wire.PacketTypeAccept:
		accept, aerr := DecodeAccept(payload)
		if aerr != nil {
			raw.Close()
			return nil, aerr
		}
		return completeHandshake(ctx, raw, addr, accept, params)

	default:
		raw.Close()
		return nil, fmt.Errorf("ttc: unexpected phase-one packet type %d", pktType)
	}
}

// completeHandshake builds the protocol.Engine over the negotiated
// capabilities and drives phase two to AUTHENTICATED/READY.
func completeHandshake(ctx context.Context, raw net.Conn, host string, accept AcceptResult, params HandshakeParams) (*HandshakeResult, error) {
	caps := accept.Caps
	if params.CharsetID != 0 {
		caps.CharsetID = params.CharsetID
	}
	if params.NCharsetID != 0 {
		caps.NCharsetID = params.NCharsetID
	}

	conn := transport.NewConn(raw, &caps)
	eng := protocol.NewEngine(conn, &caps)
	if params.Logger != nil {
		eng.Logger = params.Logger
	}
	eng.MarkPhaseComplete(protocol.StateTCPConnected)
	eng.MarkPhaseComplete(protocol.StateAccepted)

	sessionID, serial, err := negotiateSession(ctx, eng, &caps, host, accept, params)
	if err != nil {
		eng.Close(ctx)
		return nil, err
	}

	caps.Freeze()
	eng.MarkPhaseComplete(protocol.StateAuthenticated)
	eng.MarkPhaseComplete(protocol.StateReady)

	return &HandshakeResult{Engine: eng, Conn: conn, Caps: &caps, SessionID: sessionID, SerialNum: serial}, nil
}

// negotiateSession runs phase two: the FAST_AUTH collapse when a fresh
// cookie is cached for host, falling back to the full
// Protocol→DataTypes→Auth-round-1→Auth-round-2 sequence on any
// mismatch (supplemented feature 2).
func negotiateSession(ctx context.Context, eng *protocol.Engine, caps *capabilities.Capabilities, host string, accept AcceptResult, params HandshakeParams) (uint32, uint16, error) {
	if accept.Cookie != nil && params.Cookie != nil {
		params.Cookie.Store(host, accept.Cookie)
	}

	if params.Cookie != nil && caps.SupportsFastAuth() {
		if cookie, ok := params.Cookie.Fetch(host); ok {
			sessionID, serial, cookieErr := runFastAuth(ctx, eng, cookie, params)
			if cookieErr == nil {
				return sessionID, serial, nil
			}
			params.Cookie.Clear()
		}
	}

	return runFullAuth(ctx, eng, caps, params)
}

func runFastAuth(ctx context.Context, eng *protocol.Engine, cookie []byte, params HandshakeParams) (uint32, uint16, error) {
	sessionKey := DeriveSessionKey(params.Password, cookie)
	encrypted, err := EncryptChallengeResponse(sessionKey, []byte(params.Password))
	if err != nil {
		return 0, 0, err
	}
	msg := &FastAuthMessage{
		Username:      authUser(params),
		Cookie:        cookie,
		EncryptedAuth: encrypted,
		Mode:          params.Mode,
		Purity:        params.Purity,
		Program:       params.Program,
		Terminal:      params.Terminal,
		Machine:       params.Machine,
	}
	if err := eng.ProcessMessage(ctx, msg); err != nil {
		return 0, 0, err
	}
	return msg.SessionID, msg.SerialNum, nil
}

func runFullAuth(ctx context.Context, eng *protocol.Engine, caps *capabilities.Capabilities, params HandshakeParams) (uint32, uint16, error) {
	proto := &ProtocolMessage{DriverName: params.DriverName}
	if err := eng.ProcessMessage(ctx, proto); err != nil {
		return 0, 0, fmt.Errorf("ttc: PROTOCOL exchange: %w", err)
	}

	dataTypes := &DataTypesMessage{CharsetID: caps.CharsetID, NCharsetID: caps.NCharsetID}
	if err := eng.ProcessMessage(ctx, dataTypes); err != nil {
		return 0, 0, fmt.Errorf("ttc: DATA_TYPES exchange: %w", err)
	}

	round1 := &AuthRound1Message{Username: authUser(params), ProxyUser: params.ProxyUser}
	if err := eng.ProcessMessage(ctx, round1); err != nil {
		return 0, 0, fmt.Errorf("ttc: auth round 1: %w", err)
	}

	round2 := &AuthRound2Message{
		Username: authUser(params),
		Mode:     params.Mode,
		Purity:   params.Purity,
		Program:  params.Program,
		Terminal: params.Terminal,
		Machine:  params.Machine,
	}
	if params.AccessToken != "" {
		round2.AccessToken = params.AccessToken
	} else {
		sessionKey := DeriveSessionKey(params.Password, round1.ServerSalt)
		encrypted, err := EncryptChallengeResponse(sessionKey, round1.ServerVerifier)
		if err != nil {
			return 0, 0, err
		}
		round2.EncryptedAuth = encrypted
	}
	if err := eng.ProcessMessage(ctx, round2); err != nil {
		return 0, 0, fmt.Errorf("ttc: auth round 2: %w", err)
	}

	return round2.SessionID, round2.SerialNum, nil
}

func authUser(params HandshakeParams) string {
	if params.ProxyUser != "" {
		return params.ProxyUser
	}
	return params.Username
}
