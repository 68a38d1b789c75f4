// Package cursor implements the execute/fetch pipeline described in
// §4.H: statement reconciliation, the function-code bitmap sent on
// Execute, a row buffer fed by prefetch/Fetch, and output type
// conversion via connection- or cursor-level handlers.
package cursor

import (
	"context"
	"io"

	"github.com/oracleco/go-ttcdriver/internal/oraerr"
	"github.com/oracleco/go-ttcdriver/internal/protocol"
	"github.com/oracleco/go-ttcdriver/internal/statement"
	"github.com/oracleco/go-ttcdriver/internal/ttc"
)

// ErrNoMoreRows is returned by FetchOne once the cursor is exhausted.
var ErrNoMoreRows = io.EOF

const (
	defaultArraySize    = 100
	defaultPrefetchRows = 2
)

// Cursor drives execute/fetch for a single statement on one
// connection. It is not safe for concurrent use — like the engine it
// wraps, one cursor is driven by one caller at a time.
type Cursor struct {
	eng   *protocol.Engine
	stmts *statement.Cache

	// connHandler is the connection-level output type handler;
	// handler (set via SetOutputTypeHandler) wins over it per column
	// (§4.H: "cursor handler wins over connection handler").
	connHandler ttc.OutputTypeHandler
	handler     ttc.OutputTypeHandler

	arraySize    int
	prefetchRows int

	cursorID    uint32
	key         statement.Key
	description []ttc.ColumnMetadata
	converters  []func(any) (any, error)

	rowBuffer    [][]ttc.BindValue
	hasMore      bool
	rowsAffected int
	rowID        string
	batchErrors  []ttc.BatchError
	returnedRows [][]ttc.BindValue
	closed       bool
}

// New builds a cursor bound to eng, sharing stmts as the statement
// cache and connHandler as the connection's default output type
// handler.
func New(eng *protocol.Engine, stmts *statement.Cache, connHandler ttc.OutputTypeHandler) *Cursor {
	return &Cursor{
		eng:          eng,
		stmts:        stmts,
		connHandler:  connHandler,
		arraySize:    defaultArraySize,
		prefetchRows: defaultPrefetchRows,
	}
}

// ArraySize returns the rows-per-Fetch setting.
func (c *Cursor) ArraySize() int { return c.arraySize }

// SetArraySize sets rows-per-Fetch. Sampled at execute time only
// (§4.H): changing it after Execute has no effect until the next
// Execute.
func (c *Cursor) SetArraySize(n int) {
	if n > 0 {
		c.arraySize = n
	}
}

// PrefetchRows returns the rows-delivered-on-Execute setting.
func (c *Cursor) PrefetchRows() int { return c.prefetchRows }

// SetPrefetchRows sets rows delivered inline with Execute's response.
func (c *Cursor) SetPrefetchRows(n int) {
	if n >= 0 {
		c.prefetchRows = n
	}
}

// SetOutputTypeHandler installs a cursor-level handler, which wins
// over the connection-level handler for columns where it returns a
// non-nil converter.
func (c *Cursor) SetOutputTypeHandler(h ttc.OutputTypeHandler) { c.handler = h }

// Description returns the most recent execute's column metadata, or
// nil if no query has been executed yet.
func (c *Cursor) Description() []ttc.ColumnMetadata { return c.description }

// RowsAffected returns the DML row count from the last Execute.
func (c *Cursor) RowsAffected() int { return c.rowsAffected }

// RowID returns the RowID reported by the last DML Execute, if any.
func (c *Cursor) RowID() string { return c.rowID }

// BatchErrors returns per-iteration failures collected by the last
// ExecuteMany call made in batcherrors mode.
func (c *Cursor) BatchErrors() []ttc.BatchError { return c.batchErrors }

// ReturnedRows returns the DML RETURNING INTO output of the last
// Execute/ExecuteMany call, one slice per bind position with one
// converted value per executed iteration, in order. nil if the last
// call had no RETURNING clause.
func (c *Cursor) ReturnedRows() [][]any {
	if c.returnedRows == nil {
		return nil
	}
	out := make([][]any, len(c.returnedRows))
	for i, col := range c.returnedRows {
		vals := make([]any, len(col))
		for j, v := range col {
			vals[j] = defaultConvert(v)
		}
		out[i] = vals
	}
	return out
}

// Scroll is refused: this core treats "scrollable" as a server-side
// negotiation flag only and does not implement scroll(mode, offset)
// (§4.H).
func (c *Cursor) Scroll(mode string, offset int) error {
	return oraerr.ErrNotSupported("cursor.scroll")
}

// ExecuteOptions selects the Execute function-code bitmap beyond the
// default parse/execute/fetch cycle.
type ExecuteOptions struct {
	HasReturning  bool
	FetchAsString bool
	PrefetchRows  int // overrides c.prefetchRows for this call only; <0 means use cursor default
}

// Execute runs sql once with a single iteration's bind values.
func (c *Cursor) Execute(ctx context.Context, sql string, binds []ttc.BindValue, opts ExecuteOptions) error {
	return c.execute(ctx, sql, [][]ttc.BindValue{binds}, false, false, opts)
}

// ExecuteMany runs sql once per row of binds as array DML (§4.E:
// "ExecuteMany ... batcherrors mode causes per-iteration error packets
// to be returned and collected rather than aborting"). When
// batchErrors is true, per-iteration failures are collected into
// BatchErrors instead of aborting the whole call.
func (c *Cursor) ExecuteMany(ctx context.Context, sql string, rows [][]ttc.BindValue, batchErrors bool, opts ExecuteOptions) error {
	return c.execute(ctx, sql, rows, true, batchErrors, opts)
}

func (c *Cursor) execute(ctx context.Context, sql string, rows [][]ttc.BindValue, arrayDML, batchErrors bool, opts ExecuteOptions) error {
	if c.closed {
		return oraerr.ErrConnectionClosed
	}

	key, err := statement.Normalize(sql, opts.HasReturning, arrayDML, opts.FetchAsString)
	if err != nil {
		return err
	}

	prefetch := c.prefetchRows
	if opts.PrefetchRows >= 0 {
		prefetch = opts.PrefetchRows
	}

	var flags uint16 = ttc.ExecFlagExecute
	cursorID := uint32(0)

	if cached, ok := c.stmts.Get(key); ok {
		cursorID = cached.CursorID
	} else {
		flags |= ttc.ExecFlagParse
	}
	if opts.HasReturning {
		flags |= ttc.ExecFlagReturning
	}
	if arrayDML {
		flags |= ttc.ExecFlagArrayDML
	}
	if batchErrors {
		flags |= ttc.ExecFlagBatchErrors
	}
	if prefetch > 0 {
		flags |= ttc.ExecFlagFetch
	}

	msg := &ttc.ExecuteMessage{
		SQLText:      sql,
		CursorID:     cursorID,
		Flags:        flags,
		Binds:        rows,
		PrefetchRows: prefetch,
		ArraySize:    c.arraySize,
	}

	if err := c.eng.ProcessMessage(ctx, msg); err != nil {
		c.stmts.Invalidate(key)
		return err
	}

	c.key = key
	if msg.NewCursorID != 0 {
		cursorID = msg.NewCursorID
	}
	c.cursorID = cursorID
	c.stmts.Put(&statement.Statement{Key: key, CursorID: cursorID})

	if len(msg.Columns) > 0 {
		c.setDescription(msg.Columns)
	}
	c.rowBuffer = msg.PrefetchedRows
	c.hasMore = msg.HasMore
	c.rowsAffected = msg.RowsAffected
	c.rowID = msg.RowID
	c.batchErrors = msg.BatchErrors
	c.returnedRows = msg.ReturnedRows

	return nil
}

func (c *Cursor) setDescription(cols []ttc.ColumnMetadata) {
	c.description = cols
	c.converters = make([]func(any) (any, error), len(cols))
	for i, col := range cols {
		if c.handler != nil {
			c.converters[i] = c.handler(col)
		}
		if c.converters[i] == nil && c.connHandler != nil {
			c.converters[i] = c.connHandler(col)
		}
	}
}

// FetchOne returns the next row, converting each value through any
// installed output type handler. It returns ErrNoMoreRows once the
// cursor is exhausted.
func (c *Cursor) FetchOne(ctx context.Context) ([]any, error) {
	if len(c.rowBuffer) == 0 {
		if !c.hasMore {
			return nil, ErrNoMoreRows
		}
		if err := c.fetchMore(ctx); err != nil {
			return nil, err
		}
		if len(c.rowBuffer) == 0 {
			return nil, ErrNoMoreRows
		}
	}
	raw := c.rowBuffer[0]
	c.rowBuffer = c.rowBuffer[1:]
	return c.convertRow(raw)
}

// FetchMany returns up to n rows.
func (c *Cursor) FetchMany(ctx context.Context, n int) ([][]any, error) {
	rows := make([][]any, 0, n)
	for i := 0; i < n; i++ {
		row, err := c.FetchOne(ctx)
		if err == ErrNoMoreRows {
			break
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// FetchAll drains the cursor.
func (c *Cursor) FetchAll(ctx context.Context) ([][]any, error) {
	var rows [][]any
	for {
		row, err := c.FetchOne(ctx)
		if err == ErrNoMoreRows {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

func (c *Cursor) fetchMore(ctx context.Context) error {
	if c.closed {
		return oraerr.ErrConnectionClosed
	}
	msg := &ttc.FetchMessage{
		CursorID:  c.cursorID,
		ArraySize: c.arraySize,
		Columns:   c.description,
	}
	if err := c.eng.ProcessMessage(ctx, msg); err != nil {
		c.stmts.Invalidate(c.key)
		return err
	}
	c.rowBuffer = msg.Rows
	c.hasMore = msg.HasMore
	return nil
}

func (c *Cursor) convertRow(raw []ttc.BindValue) ([]any, error) {
	row := make([]any, len(raw))
	for i, v := range raw {
		val := defaultConvert(v)
		if i < len(c.converters) && c.converters[i] != nil {
			converted, err := c.converters[i](val)
			if err != nil {
				return nil, err
			}
			val = converted
		}
		row[i] = val
	}
	return row, nil
}

// defaultConvert maps a wire BindValue to the default Go
// representation when no output type handler overrides it.
func defaultConvert(v ttc.BindValue) any {
	if v.Null {
		return nil
	}
	switch v.Type {
	case ttc.DataTypeNumber:
		return v.Number
	case ttc.DataTypeVarchar2, ttc.DataTypeClob, ttc.DataTypeLong:
		return v.Text
	default:
		return v.Raw
	}
}

// Close marks the cursor closed locally. It sends no server-side
// cursor close, now or on a later round trip; the cursor id stays in
// the statement cache.
func (c *Cursor) Close() {
	c.closed = true
}
