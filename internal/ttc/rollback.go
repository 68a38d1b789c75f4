package ttc

import (
	"fmt"

	"github.com/oracleco/go-ttcdriver/internal/wire"
)

// simpleFuncMessage is the shared shape for the transaction-control and
// session-lifecycle calls (Commit, Rollback, Logoff, SessionRelease): a
// FUNCTION tag and function code out, followed by any extra argument
// bytes (SessionRelease's deauthenticate flag), and an acknowledgement
// or error in (§4.E).
type simpleFuncMessage struct {
	funcCode byte
	extra    []byte

	needRetry bool
}

func (m *simpleFuncMessage) Encode(w *wire.WriteBuffer) error {
	if err := w.WriteUint8(wire.MsgFunction); err != nil {
		return err
	}
	if err := w.WriteUint8(m.funcCode); err != nil {
		return err
	}
	if len(m.extra) == 0 {
		return nil
	}
	return w.WriteRaw(m.extra)
}

func (m *simpleFuncMessage) Decode(r *wire.ReadBuffer) error {
	tag, err := r.ReadUint8()
	if err != nil {
		return err
	}
	if tag != wire.MsgError {
		return nil
	}
	code, err := r.ReadUint16()
	if err != nil {
		return err
	}
	msg, err := r.ReadString()
	if err != nil {
		return err
	}
	if code == 0 {
		return nil
	}
	return fmt.Errorf("ttc: ORA-%05d: %s", code, msg)
}

func (m *simpleFuncMessage) Retry() bool         { return m.needRetry }
func (m *simpleFuncMessage) FlushOutBinds() bool { return false }

// NewCommitMessage builds a COMMIT request.
func NewCommitMessage() *simpleFuncMessage { return &simpleFuncMessage{funcCode: funcCommit} }

// NewRollbackMessage builds a ROLLBACK request.
func NewRollbackMessage() *simpleFuncMessage { return &simpleFuncMessage{funcCode: funcRollback} }

// NewLogoffMessage builds the final LOGOFF request; the caller sends a
// DATA-EOF close packet immediately afterward and tears down the
// transport (§4.E: "Logoff and final DATA-EOF close packet").
func NewLogoffMessage() *simpleFuncMessage { return &simpleFuncMessage{funcCode: funcLogoff} }

// NewSessionReleaseMessage builds a SessionRelease request for
// returning a DRCP session to the pool (§4.E: "SessionRelease (DRCP
// deauthenticate flag)"). deauthenticate forces a fresh session on
// next checkout rather than a pinned reuse.
func NewSessionReleaseMessage(deauthenticate bool) *simpleFuncMessage {
	extra := []byte{0}
	if deauthenticate {
		extra[0] = 1
	}
	return &simpleFuncMessage{funcCode: funcSessionRelease, extra: extra}
}

const (
	funcCommit         byte = 0x0e
	funcRollback       byte = 0x0f
	funcLogoff         byte = 0x09
	funcSessionRelease byte = 0x7a
)
