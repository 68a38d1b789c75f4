package ttc

import (
	"fmt"

	"github.com/oracleco/go-ttcdriver/internal/wire"
)

// PipelineOp is one operation inside a Pipeline request, tagged by its
// position so the server's per-operation results (and per-operation
// errors) can be matched back up (§4.E "Pipeline (experimental)").
type PipelineOp struct {
	Index   int
	Message interface {
		Encode(w *wire.WriteBuffer) error
	}
}

// PipelineResult is one operation's outcome.
type PipelineResult struct {
	Index int
	Err   error
}

// PipelineMessage appends multiple operations to a single outbound
// packet stream; errors on individual operations are collected rather
// than aborting the remaining operations.
type PipelineMessage struct {
	Ops []PipelineOp

	Results []PipelineResult
}

func (m *PipelineMessage) Encode(w *wire.WriteBuffer) error {
	if err := w.WriteUint8(wire.MsgPiggyback); err != nil {
		return err
	}
	if err := w.WriteUint16(uint16(len(m.Ops))); err != nil {
		return err
	}
	for _, op := range m.Ops {
		if err := w.WriteUint16(uint16(op.Index)); err != nil {
			return err
		}
		if err := op.Message.Encode(w); err != nil {
			return fmt.Errorf("ttc: encoding pipeline op %d: %w", op.Index, err)
		}
	}
	return nil
}

func (m *PipelineMessage) Decode(r *wire.ReadBuffer) error {
	count, err := r.ReadUint16()
	if err != nil {
		return err
	}
	results := make([]PipelineResult, 0, count)
	for i := 0; i < int(count); i++ {
		idx, err := r.ReadUint16()
		if err != nil {
			return err
		}
		tag, err := r.ReadUint8()
		if err != nil {
			return err
		}
		var opErr error
		if tag == wire.MsgError {
			code, err := r.ReadUint16()
			if err != nil {
				return err
			}
			msg, err := r.ReadString()
			if err != nil {
				return err
			}
			if code != 0 {
				opErr = fmt.Errorf("ttc: ORA-%05d: %s", code, msg)
			}
		}
		results = append(results, PipelineResult{Index: int(idx), Err: opErr})
	}
	m.Results = results
	return nil
}

func (m *PipelineMessage) Retry() bool         { return false }
func (m *PipelineMessage) FlushOutBinds() bool { return false }
