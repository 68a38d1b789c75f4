package ttc

import (
	"fmt"

	"github.com/oracleco/go-ttcdriver/internal/wire"
)

// Execute function-code bits (§4.H step 3's "appropriate function code
// bitmap"): which phases this Execute call asks the server to perform
// in one round trip.
const (
	ExecFlagParse       uint16 = 1 << 0
	ExecFlagDescribe    uint16 = 1 << 1
	ExecFlagExecute     uint16 = 1 << 2
	ExecFlagFetch       uint16 = 1 << 3
	ExecFlagReturning   uint16 = 1 << 4
	ExecFlagArrayDML    uint16 = 1 << 5
	ExecFlagBatchErrors uint16 = 1 << 6
)

// BindValue is one bind position's value for an Execute call. Exactly
// one of the typed fields is meaningful, selected by Type.
type BindValue struct {
	Type   DataType
	Number wire.Number
	Text   string
	Raw    []byte
	Null   bool
}

// BatchError is one iteration's failure under batcherrors mode (§4.E:
// "ExecuteMany ... batcherrors mode causes per-iteration error packets
// to be returned and collected rather than aborting").
type BatchError struct {
	Iteration int
	Code      int
	Message   string
}

// ExecuteMessage builds and decodes the Execute TTC message covering
// the query/DML/PL-SQL execute paths and ExecuteMany (array DML).
type ExecuteMessage struct {
	SQLText        string
	CursorID       uint32 // 0 requests a new cursor
	Flags          uint16
	Binds          [][]BindValue // outer index: iteration (1 for non-array DML)
	PrefetchRows   int
	ArraySize      int

	// Results populated by Decode.
	NewCursorID  uint32
	Columns      []ColumnMetadata
	PrefetchedRows [][]BindValue
	HasMore      bool
	BatchErrors  []BatchError
	RowsAffected int
	RowID        string

	// ReturnedColumns/ReturnedRows hold DML RETURNING INTO output, one
	// entry per bind position; ReturnedRows[i] carries that position's
	// value for each executed iteration, in order (§4.H "DML returning:
	// OUT bind variables are sized array_size = len(inputs); values for
	// each executed row are appended in order").
	ReturnedColumns []DataType
	ReturnedRows    [][]BindValue

	needRetry bool
	flushOut  bool
}

func (m *ExecuteMessage) Encode(w *wire.WriteBuffer) error {
	if err := w.WriteUint8(wire.MsgFunction); err != nil {
		return err
	}
	if err := w.WriteUint8(funcExecute); err != nil {
		return err
	}
	if err := w.WriteUint32(m.CursorID); err != nil {
		return err
	}
	if err := w.WriteUint16(m.Flags); err != nil {
		return err
	}
	if m.Flags&ExecFlagParse != 0 {
		if err := w.WriteBytesLong([]byte(m.SQLText), 255); err != nil {
			return err
		}
	}
	iterations := len(m.Binds)
	if err := w.WriteUint16(uint16(iterations)); err != nil {
		return err
	}
	if m.Flags&ExecFlagExecute != 0 {
		for _, iter := range m.Binds {
			if err := w.WriteUint16(uint16(len(iter))); err != nil {
				return err
			}
			for _, b := range iter {
				if err := encodeBindValue(w, b); err != nil {
					return err
				}
			}
		}
	}
	if m.Flags&ExecFlagFetch != 0 {
		return w.WriteUint32(uint32(m.PrefetchRows))
	}
	return nil
}

func encodeBindValue(w *wire.WriteBuffer, b BindValue) error {
	if b.Null {
		return w.WriteUint8(0)
	}
	if err := w.WriteUint8(1); err != nil {
		return err
	}
	if err := w.WriteUint8(byte(b.Type)); err != nil {
		return err
	}
	switch b.Type {
	case DataTypeNumber:
		return w.WriteBytesShort(wire.EncodeNumber(b.Number))
	case DataTypeVarchar2, DataTypeClob:
		return w.WriteBytesLong([]byte(b.Text), 255)
	default:
		return w.WriteBytesLong(b.Raw, 255)
	}
}

func (m *ExecuteMessage) Decode(r *wire.ReadBuffer) error {
	tag, err := r.ReadUint8()
	if err != nil {
		return err
	}
	switch tag {
	case wire.MsgError:
		return m.decodeError(r)
	case wire.MsgDescribeInfo:
		if err := m.decodeDescribe(r); err != nil {
			return err
		}
		return m.decodeRowData(r)
	case wire.MsgRowHeader:
		return m.decodeRowData(r)
	default:
		return fmt.Errorf("ttc: unexpected Execute response tag 0x%02x", tag)
	}
}

func (m *ExecuteMessage) decodeDescribe(r *wire.ReadBuffer) error {
	cursorID, err := r.ReadUint32()
	if err != nil {
		return err
	}
	numCols, err := r.ReadUint16()
	if err != nil {
		return err
	}
	cols := make([]ColumnMetadata, 0, numCols)
	for i := 0; i < int(numCols); i++ {
		name, err := r.ReadString()
		if err != nil {
			return err
		}
		typeTag, err := r.ReadUint8()
		if err != nil {
			return err
		}
		precision, err := r.ReadUint8()
		if err != nil {
			return err
		}
		scale, err := r.ReadUint8()
		if err != nil {
			return err
		}
		size, err := r.ReadUint16()
		if err != nil {
			return err
		}
		nullable, err := r.ReadUint8()
		if err != nil {
			return err
		}
		cols = append(cols, ColumnMetadata{
			Name: name, Type: DataType(typeTag), Precision: int(precision),
			Scale: int(scale), Size: int(size), Nullable: nullable != 0,
		})
	}
	m.NewCursorID = cursorID
	m.Columns = cols
	return nil
}

func (m *ExecuteMessage) decodeRowData(r *wire.ReadBuffer) error {
	numRows, err := r.ReadUint16()
	if err != nil {
		return err
	}
	if len(m.Columns) == 0 {
		// DML path: no columns, just row-count/rowid bookkeeping.
		affected, err := r.ReadUint32()
		if err != nil {
			return err
		}
		m.RowsAffected = int(affected)
		if m.Flags&ExecFlagBatchErrors != 0 {
			if err := m.decodeBatchErrors(r); err != nil {
				return err
			}
		}
		if m.Flags&ExecFlagReturning != 0 {
			if err := m.decodeReturning(r); err != nil {
				return err
			}
		}
		return nil
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
	m.PrefetchedRows = rows
	m.HasMore = more != 0
	return nil
}

// decodeBatchErrors reads the per-iteration failures an ExecuteMany
// call made with ExecFlagBatchErrors collects instead of aborting on
// the first error (§4.E).
func (m *ExecuteMessage) decodeBatchErrors(r *wire.ReadBuffer) error {
	count, err := r.ReadUint16()
	if err != nil {
		return err
	}
	errs := make([]BatchError, 0, count)
	for i := 0; i < int(count); i++ {
		iteration, err := r.ReadUint16()
		if err != nil {
			return err
		}
		code, err := r.ReadUint16()
		if err != nil {
			return err
		}
		msg, err := r.ReadString()
		if err != nil {
			return err
		}
		errs = append(errs, BatchError{Iteration: int(iteration), Code: int(code), Message: msg})
	}
	m.BatchErrors = errs
	return nil
}

// decodeReturning reads the DML RETURNING INTO output: the type of
// each returning bind position, then that many iterations' worth of
// values per position (§4.H).
func (m *ExecuteMessage) decodeReturning(r *wire.ReadBuffer) error {
	numCols, err := r.ReadUint16()
	if err != nil {
		return err
	}
	types := make([]DataType, numCols)
	for i := range types {
		tag, err := r.ReadUint8()
		if err != nil {
			return err
		}
		types[i] = DataType(tag)
	}
	iterations, err := r.ReadUint16()
	if err != nil {
		return err
	}
	rows := make([][]BindValue, numCols)
	for ci, dt := range types {
		vals := make([]BindValue, 0, iterations)
		for i := 0; i < int(iterations); i++ {
			v, err := decodeColumnValue(r, dt)
			if err != nil {
				return err
			}
			vals = append(vals, v)
		}
		rows[ci] = vals
	}
	m.ReturnedColumns = types
	m.ReturnedRows = rows
	return nil
}

func decodeColumnValue(r *wire.ReadBuffer, dt DataType) (BindValue, error) {
	isNull, err := r.ReadUint8()
	if err != nil {
		return BindValue{}, err
	}
	if isNull == 0 {
		return BindValue{Null: true, Type: dt}, nil
	}
	switch dt {
	case DataTypeNumber:
		raw, err := r.ReadBytesShort()
		if err != nil {
			return BindValue{}, err
		}
		n, err := wire.DecodeNumber(raw)
		if err != nil {
			return BindValue{}, err
		}
		return BindValue{Type: dt, Number: n}, nil
	case DataTypeVarchar2, DataTypeClob, DataTypeLong:
		b, err := r.ReadBytesLong()
		if err != nil {
			return BindValue{}, err
		}
		return BindValue{Type: dt, Text: string(b)}, nil
	default:
		b, err := r.ReadBytesLong()
		if err != nil {
			return BindValue{}, err
		}
		return BindValue{Type: dt, Raw: b}, nil
	}
}

func (m *ExecuteMessage) decodeError(r *wire.ReadBuffer) error {
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
}

func (m *ExecuteMessage) Retry() bool         { return m.needRetry }
func (m *ExecuteMessage) FlushOutBinds() bool { return m.flushOut }

const (
	funcExecute                 byte   = 0x5e
	errCodeStatementInvalidated uint16 = 4068
)
