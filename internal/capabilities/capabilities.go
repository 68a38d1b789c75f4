// Package capabilities holds the negotiated connection capabilities
// (§3, §4.B): protocol version, SDU/TDU, charsets, and the compile-time
// and runtime feature bitmaps exchanged during phase one (ACCEPT) and
// phase two (Protocol message). Once phase two completes, a Capabilities
// value is frozen for the lifetime of the connection.
package capabilities

import "sync/atomic"

// Packet length encoding, selected by the negotiated protocol version —
// legacy connections frame packet length as u16, modern ones as u32.
type LengthEncoding int

const (
	LengthU16 LengthEncoding = iota
	LengthU32
)

// FieldClass distinguishes wire fields whose byte order can be flipped
// by the "universal byte order" capability flag (§6, open question in
// spec.md §9). Only a couple of field classes are known to be affected
// in real deployments; everything else stays big-endian.
type FieldClass int

const (
	FieldGeneric FieldClass = iota
	FieldRowHeaderSeq
)

// Capabilities is mutated only during phase one (ACCEPT) and phase two
// (Protocol + DataTypes messages); every other component treats it as
// read-only.
type Capabilities struct {
	ProtocolVersion int
	SDU             int
	TDU             int
	CharsetID       int
	NCharsetID      int
	Flags           uint32
	SupportsOOB     bool
	CompileCaps     []byte
	RuntimeCaps     []byte

	// UniversalByteOrder is the negotiated flag described in spec.md §9
	// as an open question: "implementers should validate against a
	// recorded corpus rather than inferring from field names". No such
	// corpus ships with this module, so ByteOrder below defaults every
	// field class to big-endian regardless of this flag; flipping a
	// specific FieldClass is a one-line change at ByteOrder once a real
	// fixture is available.
	UniversalByteOrder bool

	frozen atomic.Bool
}

// New returns a zero-value Capabilities ready to be populated by the
// phase-one ACCEPT handler.
func New() *Capabilities {
	return &Capabilities{SDU: 8192, TDU: 65535, CharsetID: 873, NCharsetID: 873}
}

// Freeze locks the capabilities after phase two completes (§3 invariant:
// "mutated only during phase-one accept and phase-two protocol-message
// processing; frozen thereafter").
func (c *Capabilities) Freeze() { c.frozen.Store(true) }

// Frozen reports whether phase two has completed.
func (c *Capabilities) Frozen() bool { return c.frozen.Load() }

// LengthEncoding returns the packet-header length field width implied by
// the negotiated protocol version.
func (c *Capabilities) LengthEncoding() LengthEncoding {
	if c.ProtocolVersion >= ProtocolVersionModern {
		return LengthU32
	}
	return LengthU16
}

// ByteOrder reports the byte order to use for a given wire field class.
// See the UniversalByteOrder doc comment: this always returns false
// (big-endian) today. TODO: once a recorded wire corpus is available,
// flip FieldRowHeaderSeq to little-endian when UniversalByteOrder is set.
func (c *Capabilities) ByteOrder(fc FieldClass) (littleEndian bool) {
	return false
}

// Protocol version thresholds used across the codebase. These mirror
// the well-known TNS protocol version numbers; only the modern/legacy
// split matters to this core's framing logic.
const (
	ProtocolVersionMinimum = 300
	ProtocolVersionModern  = 315
)

// Feature bits within Flags. Only the subset this core branches on is
// modeled; unrecognized bits are preserved but ignored.
const (
	FlagSupportsEndOfRequest uint32 = 1 << iota
	FlagSupportsFastAuth
	FlagTLSRenegotiate
	FlagSupportsOOBBreak
)

func (c *Capabilities) SupportsEndOfRequest() bool { return c.Flags&FlagSupportsEndOfRequest != 0 }
func (c *Capabilities) SupportsFastAuth() bool      { return c.Flags&FlagSupportsFastAuth != 0 }
func (c *Capabilities) SupportsTLSRenegotiate() bool { return c.Flags&FlagTLSRenegotiate != 0 }
func (c *Capabilities) SupportsOOBBreak() bool       { return c.SupportsOOB && c.Flags&FlagSupportsOOBBreak != 0 }

// MaxPayload returns the maximum DATA packet payload in bytes, i.e. the
// negotiated SDU minus the packet header size for the current length
// encoding.
func (c *Capabilities) MaxPayload() int {
	headerSize := 8
	if c.LengthEncoding() == LengthU32 {
		headerSize = 8
	}
	if c.SDU <= headerSize {
		return c.SDU
	}
	return c.SDU - headerSize
}
