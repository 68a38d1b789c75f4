// Package lob wraps the single opcode-discriminated LOB message
// (§4.J) in a locator handle: open, read, write, trim, length,
// create_temp, free_temp, close. A LOB fetched as part of a row
// carries only its locator; reading is deferred until the application
// asks for bytes, which requires the owning connection to still be
// open and idle.
package lob

import (
	"context"

	"github.com/oracleco/go-ttcdriver/internal/oraerr"
	"github.com/oracleco/go-ttcdriver/internal/protocol"
	"github.com/oracleco/go-ttcdriver/internal/ttc"
)

// Kind distinguishes the binary/character LOB families for logging
// and metrics labeling; the wire operations are identical either way.
type Kind int

const (
	KindBlob Kind = iota
	KindClob
)

func (k Kind) String() string {
	if k == KindClob {
		return "clob"
	}
	return "blob"
}

// Handle is a bound LOB locator. It is only valid while the owning
// connection is open; calling any method after the connection closes
// returns oraerr.ErrConnectionClosed (surfaced by eng.ProcessMessage).
type Handle struct {
	eng     *protocol.Engine
	kind    Kind
	locator []byte
	closed  bool
}

// New wraps an existing locator (as returned inline with a fetched
// row) for on-demand reads.
func New(eng *protocol.Engine, kind Kind, locator []byte) *Handle {
	return &Handle{eng: eng, kind: kind, locator: locator}
}

// CreateTemp allocates a new temporary LOB and returns its handle.
func CreateTemp(ctx context.Context, eng *protocol.Engine, kind Kind) (*Handle, error) {
	msg := &ttc.LobMessage{Op: ttc.LobOpCreateTemp}
	if err := eng.ProcessMessage(ctx, msg); err != nil {
		return nil, err
	}
	return &Handle{eng: eng, kind: kind, locator: msg.ResultLocator}, nil
}

// Locator returns the raw locator bytes, e.g. to bind this LOB into
// another statement.
func (h *Handle) Locator() []byte { return h.locator }

// Open prepares the LOB for piecewise reads or writes.
func (h *Handle) Open(ctx context.Context) error {
	if h.closed {
		return oraerr.ErrConnectionClosed
	}
	msg := &ttc.LobMessage{Op: ttc.LobOpOpen, Locator: h.locator}
	return h.eng.ProcessMessage(ctx, msg)
}

// Read returns up to amount bytes starting at offset (0-based), and
// whether the read reached end-of-LOB.
func (h *Handle) Read(ctx context.Context, offset, amount int64) ([]byte, bool, error) {
	if h.closed {
		return nil, false, oraerr.ErrConnectionClosed
	}
	msg := &ttc.LobMessage{Op: ttc.LobOpRead, Locator: h.locator, Offset: offset, Amount: amount}
	if err := h.eng.ProcessMessage(ctx, msg); err != nil {
		return nil, false, err
	}
	return msg.ResultBuffer, msg.ResultEOF, nil
}

// Write writes buf starting at offset.
func (h *Handle) Write(ctx context.Context, offset int64, buf []byte) error {
	if h.closed {
		return oraerr.ErrConnectionClosed
	}
	msg := &ttc.LobMessage{Op: ttc.LobOpWrite, Locator: h.locator, Offset: offset, Buffer: buf}
	return h.eng.ProcessMessage(ctx, msg)
}

// Trim truncates the LOB to newLength bytes/characters.
func (h *Handle) Trim(ctx context.Context, newLength int64) error {
	if h.closed {
		return oraerr.ErrConnectionClosed
	}
	msg := &ttc.LobMessage{Op: ttc.LobOpTrim, Locator: h.locator, Amount: newLength}
	return h.eng.ProcessMessage(ctx, msg)
}

// Length returns the current LOB length.
func (h *Handle) Length(ctx context.Context) (int64, error) {
	if h.closed {
		return 0, oraerr.ErrConnectionClosed
	}
	msg := &ttc.LobMessage{Op: ttc.LobOpLength, Locator: h.locator}
	if err := h.eng.ProcessMessage(ctx, msg); err != nil {
		return 0, err
	}
	return msg.ResultLength, nil
}

// FreeTemp releases a temporary LOB's server-side storage. It is a
// no-op once the handle is already closed.
func (h *Handle) FreeTemp(ctx context.Context) error {
	if h.closed {
		return nil
	}
	msg := &ttc.LobMessage{Op: ttc.LobOpFreeTemp, Locator: h.locator}
	return h.eng.ProcessMessage(ctx, msg)
}

// Close releases any client-side resources tied to the locator (it
// does not implicitly free a temporary LOB — call FreeTemp first if
// that is intended).
func (h *Handle) Close(ctx context.Context) error {
	if h.closed {
		return nil
	}
	h.closed = true
	msg := &ttc.LobMessage{Op: ttc.LobOpClose, Locator: h.locator}
	return h.eng.ProcessMessage(ctx, msg)
}
