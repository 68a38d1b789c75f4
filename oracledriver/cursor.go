package oracledriver

import (
	"context"

	"github.com/oracleco/go-ttcdriver/internal/cursor"
	"github.com/oracleco/go-ttcdriver/internal/ttc"
)

// Cursor wraps internal/cursor.Cursor, adding the handful of
// interface-level conveniences (§6) that python-oracledb-style callers
// expect but the wire-level cursor has no reason to implement:
// setinputsizes, var, and rowfactory.
type Cursor struct {
	*cursor.Cursor

	rowFactory func(row []any) (any, error)
	inputHints []ttc.DataType
}

// SetInputSizes records the bind type hints a caller declares ahead of
// Execute. This core infers each bind's wire type from the BindValue.Type
// field supplied at call time, so the hints are advisory only — kept
// for interface parity with callers that always call setinputsizes
// before binding positionally by index.
func (c *Cursor) SetInputSizes(types ...ttc.DataType) {
	c.inputHints = append([]ttc.DataType(nil), types...)
}

// Var declares an output bind variable's type and array size ahead of a
// DML RETURNING INTO bulk call (§8 scenario 4). It is advisory bookkeeping
// only — Execute decodes the RETURNING output unconditionally when
// ExecuteOptions.HasReturning is set, and the values land in
// ReturnedRows() (inherited from internal/cursor.Cursor), one slice per
// bind position in declaration order.
type Var struct {
	Type      ttc.DataType
	ArraySize int
}

// Var returns a placeholder OUT bind variable descriptor.
func (c *Cursor) Var(dt ttc.DataType, arraySize int) *Var {
	return &Var{Type: dt, ArraySize: arraySize}
}

// RowFactory installs a callback transforming each fetched row into an
// application-level value. When set, FetchOneRow/FetchAllRows apply it;
// FetchOne/FetchMany/FetchAll (inherited from internal/cursor.Cursor)
// always return the untransformed row.
func (c *Cursor) RowFactory(f func(row []any) (any, error)) {
	c.rowFactory = f
}

// FetchOneRow fetches the next row through the installed row factory,
// or returns the raw row if none is installed.
func (c *Cursor) FetchOneRow(ctx context.Context) (any, error) {
	row, err := c.FetchOne(ctx)
	if err != nil {
		return nil, err
	}
	if c.rowFactory == nil {
		return row, nil
	}
	return c.rowFactory(row)
}

// FetchAllRows drains the cursor through the installed row factory.
func (c *Cursor) FetchAllRows(ctx context.Context) ([]any, error) {
	rows, err := c.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	if c.rowFactory == nil {
		out := make([]any, len(rows))
		for i, r := range rows {
			out[i] = r
		}
		return out, nil
	}
	out := make([]any, 0, len(rows))
	for _, r := range rows {
		v, err := c.rowFactory(r)
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// GetBatchErrors returns per-iteration failures from the last
// executemany(batcherrors=true) call (§6: "getbatcherrors()").
func (c *Cursor) GetBatchErrors() []ttc.BatchError { return c.BatchErrors() }

// GetArrayDMLRowCounts returns nil: this core's ExecuteMessage codec
// reports one aggregate RowsAffected per ExecuteMany call rather than
// a per-iteration row count array, so implementing arraydmlrowcounts
// (§6) would require a wire-format extension this driver core does not
// define. getbatcherrors (backed by BatchErrors, which the codec does
// carry per-iteration) covers the common case of inspecting
// executemany outcomes.
func (c *Cursor) GetArrayDMLRowCounts() []int { return nil }
