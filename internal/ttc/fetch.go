package ttc

import (
	"fmt"

	"github.com/oracleco/go-ttcdriver/internal/wire"
)

// FetchMessage requests N more rows from an already-described cursor
// (§4.E "Fetch: requests N more rows for an existing cursor id").
type FetchMessage struct {
	CursorID  uint32
	ArraySize int
	Columns   []ColumnMetadata // caller supplies the cursor's known column types

	Rows    [][]BindValue
	HasMore bool

	needRetry bool
}

func (m *FetchMessage) Encode(w *wire.WriteBuffer) error {
	if err := w.WriteUint8(wire.MsgFunction); err != nil {
		return err
	}
	if err := w.WriteUint8(funcFetch); err != nil {
		return err
	}
	if err := w.WriteUint32(m.CursorID); err != nil {
		return err
	}
	return w.WriteUint32(uint32(m.ArraySize))
}

func (m *FetchMessage) Decode(r *wire.ReadBuffer) error {
	tag, err := r.ReadUint8()
	if err != nil {
		return err
	}
	switch tag {
	case wire.MsgError:
		code, err := r.ReadUint16()
		if err != nil {
			return err
		}
		msg, err := r.ReadString()
		if err != nil {
			return err
		}
		if code == errCodeStatementInvalidated {
			m.needRetry = true
			return nil
		}
		return fmt.Errorf("ttc: ORA-%05d: %s", code, msg)
	case wire.MsgRowData:
		numRows, err := r.ReadUint16()
		if err != nil {
			return err
		}
		rows := make([][]BindValue, 0, numRows)
		for i := 0; i < int(numRows); i++ {
			row := make([]BindValue, len(m.Columns))
			for c, col := range m.Columns {
				v, err := decodeColumnValue(r, col.Type)
				if err != nil {
					return err
				}
				row[c] = v
			}
			rows = append(rows, row)
		}
		more, err := r.ReadUint8()
		if err != nil {
			return err
		}
		m.Rows = rows
		m.HasMore = more != 0
		return nil
	default:
		return fmt.Errorf("ttc: unexpected Fetch response tag 0x%02x", tag)
	}
}

func (m *FetchMessage) Retry() bool         { return m.needRetry }
func (m *FetchMessage) FlushOutBinds() bool { return false }

const funcFetch byte = 0x05
