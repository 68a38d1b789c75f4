package ttc

import (
	"fmt"

	"github.com/oracleco/go-ttcdriver/internal/wire"
)

// LobOp discriminates the single opcode-dispatched LOB message (§4.J).
type LobOp byte

const (
	LobOpOpen LobOp = iota
	LobOpRead
	LobOpWrite
	LobOpTrim
	LobOpLength
	LobOpCreateTemp
	LobOpFreeTemp
	LobOpClose
)

// LobMessage performs a single LOB locator operation.
type LobMessage struct {
	Op       LobOp
	Locator  []byte
	Offset   int64
	Amount   int64
	Buffer   []byte

	ResultBuffer []byte
	ResultEOF    bool
	ResultLength int64
	ResultLocator []byte
}

func (m *LobMessage) Encode(w *wire.WriteBuffer) error {
	if err := w.WriteUint8(wire.MsgFunction); err != nil {
		return err
	}
	if err := w.WriteUint8(funcLob); err != nil {
		return err
	}
	if err := w.WriteUint8(byte(m.Op)); err != nil {
		return err
	}
	if err := w.WriteBytesShort(m.Locator); err != nil {
		return err
	}
	if err := w.WriteUint64(uint64(m.Offset)); err != nil {
		return err
	}
	if err := w.WriteUint64(uint64(m.Amount)); err != nil {
		return err
	}
	if m.Op == LobOpWrite {
		return w.WriteBytesLong(m.Buffer, 255)
	}
	return nil
}

func (m *LobMessage) Decode(r *wire.ReadBuffer) error {
	tag, err := r.ReadUint8()
	if err != nil {
		return err
	}
	if tag == wire.MsgError {
		code, err := r.ReadUint16()
		if err != nil {
			return err
		}
		msg, err := r.ReadString()
		if err != nil {
			return err
		}
		return fmt.Errorf("ttc: ORA-%05d: %s", code, msg)
	}
	switch m.Op {
	case LobOpRead:
		data, err := r.ReadBytesLong()
		if err != nil {
			return err
		}
		eof, err := r.ReadUint8()
		if err != nil {
			return err
		}
		m.ResultBuffer = data
		m.ResultEOF = eof != 0
		return nil
	case LobOpLength:
		n, err := r.ReadUint64()
		if err != nil {
			return err
		}
		m.ResultLength = int64(n)
		return nil
	case LobOpCreateTemp:
		loc, err := r.ReadBytesShort()
		if err != nil {
			return err
		}
		m.ResultLocator = loc
		return nil
	default:
		return nil
	}
}

func (m *LobMessage) Retry() bool         { return false }
func (m *LobMessage) FlushOutBinds() bool { return false }

const funcLob byte = 0x60
