package ttc

import (
	"github.com/oracleco/go-ttcdriver/internal/wire"
)

// FastAuthMessage collapses Protocol+DataTypes+Auth-round-1 into a
// single exchange (§4.D message type FAST_AUTH=34, supplemented
// feature 2) by using a previously cached ConnectionCookie in place of
// a freshly negotiated server salt. The session key is derived from
// the cookie bytes themselves, so the client can precompute the
// encrypted password before ever talking to the server; any decode
// mismatch means the cookie went stale and the caller should clear it
// and fall back to the full sequence.
type FastAuthMessage struct {
	Username      string
	Cookie        []byte
	EncryptedAuth []byte
	Mode          AuthMode
	Purity        Purity
	Program       string
	Terminal      string
	Machine       string

	ServerVerifier []byte
	SessionID      uint32
	SerialNum      uint16
	NewCookie      []byte
	done           bool
}

func (m *FastAuthMessage) Encode(w *wire.WriteBuffer) error {
	if err := w.WriteUint8(wire.MsgFastAuth); err != nil {
		return err
	}
	if err := w.WriteBytesShort(m.Cookie); err != nil {
		return err
	}
	if err := w.WriteString(SanitizeCID(m.Username)); err != nil {
		return err
	}
	if err := w.WriteBytesShort(m.EncryptedAuth); err != nil {
		return err
	}
	if err := w.WriteUint8(byte(m.Mode)); err != nil {
		return err
	}
	if err := w.WriteUint8(byte(m.Purity)); err != nil {
		return err
	}
	if err := w.WriteString(BuildCID(m.Program, m.Machine, m.Username)); err != nil {
		return err
	}
	return w.WriteString(SanitizeCID(m.Terminal))
}

func (m *FastAuthMessage) Decode(r *wire.ReadBuffer) error {
	if _, err := r.ReadUint8(); err != nil {
		return err
	}
	verifier, err := r.ReadBytesShort()
	if err != nil {
		return err
	}
	sessionID, err := r.ReadUint32()
	if err != nil {
		return err
	}
	serial, err := r.ReadUint16()
	if err != nil {
		return err
	}
	newCookie, err := r.ReadBytesShort()
	if err != nil {
		return err
	}
	m.ServerVerifier = verifier
	m.SessionID = sessionID
	m.SerialNum = serial
	m.NewCookie = newCookie
	m.done = true
	return nil
}

func (m *FastAuthMessage) Retry() bool         { return false }
func (m *FastAuthMessage) FlushOutBinds() bool { return false }
