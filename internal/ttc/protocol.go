package ttc

import (
	"github.com/oracleco/go-ttcdriver/internal/wire"
)

// ProtocolMessage is the phase-two PROTOCOL exchange: the client
// advertises its driver name and version; the server responds with its
// own banner plus the compile/runtime capability vectors that refine
// Capabilities beyond what ACCEPT established (§4.F).
type ProtocolMessage struct {
	DriverName string

	ServerBanner string
	CompileCaps  []byte
	RuntimeCaps  []byte
	done         bool
}

func (m *ProtocolMessage) Encode(w *wire.WriteBuffer) error {
	if err := w.WriteUint8(wire.MsgProtocol); err != nil {
		return err
	}
	if err := w.WriteUint8(6); err != nil { // protocol sub-version this core speaks
		return err
	}
	return w.WriteString(m.DriverName)
}

func (m *ProtocolMessage) Decode(r *wire.ReadBuffer) error {
	tag, err := r.ReadUint8()
	if err != nil {
		return err
	}
	_ = tag // MsgProtocol echoed back
	banner, err := r.ReadString()
	if err != nil {
		return err
	}
	compileCaps, err := r.ReadBytesShort()
	if err != nil {
		return err
	}
	runtimeCaps, err := r.ReadBytesShort()
	if err != nil {
		return err
	}
	m.ServerBanner = banner
	m.CompileCaps = compileCaps
	m.RuntimeCaps = runtimeCaps
	m.done = true
	return nil
}

func (m *ProtocolMessage) Retry() bool         { return false }
func (m *ProtocolMessage) FlushOutBinds() bool { return false }

// DataTypesMessage is the phase-two DATA_TYPES exchange: the client
// sends its supported type representation vector; the server confirms
// (or rejects) charset negotiation.
type DataTypesMessage struct {
	CharsetID  int
	NCharsetID int

	ServerCharsetID  int
	ServerNCharsetID int
}

func (m *DataTypesMessage) Encode(w *wire.WriteBuffer) error {
	if err := w.WriteUint8(wire.MsgDataTypes); err != nil {
		return err
	}
	if err := w.WriteUint16(uint16(m.CharsetID)); err != nil {
		return err
	}
	return w.WriteUint16(uint16(m.NCharsetID))
}

func (m *DataTypesMessage) Decode(r *wire.ReadBuffer) error {
	if _, err := r.ReadUint8(); err != nil {
		return err
	}
	cs, err := r.ReadUint16()
	if err != nil {
		return err
	}
	ncs, err := r.ReadUint16()
	if err != nil {
		return err
	}
	m.ServerCharsetID = int(cs)
	m.ServerNCharsetID = int(ncs)
	return nil
}

func (m *DataTypesMessage) Retry() bool         { return false }
func (m *DataTypesMessage) FlushOutBinds() bool { return false }
