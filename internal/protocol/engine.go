// Package protocol implements the connection state machine (§4.F) that
// drives phase-one connect, phase-two authenticate, and the
// process_message/break/reset cycle every request goes through.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oracleco/go-ttcdriver/internal/capabilities"
	"github.com/oracleco/go-ttcdriver/internal/oraerr"
	"github.com/oracleco/go-ttcdriver/internal/wire"
)

// State is a connection's position in the §4.F state machine.
type State int

const (
	StateNew State = iota
	StateTCPConnected
	StateAccepted
	StateAuthenticated
	StateReady
	StateInCall
	StateBreakPending
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateTCPConnected:
		return "TCP_CONNECTED"
	case StateAccepted:
		return "ACCEPTED"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateReady:
		return "READY"
	case StateInCall:
		return "IN_CALL"
	case StateBreakPending:
		return "BREAK_PENDING"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Message is one request/response TTC exchange. Codecs in internal/ttc
// implement this to plug into process_message.
type Message interface {
	// Encode serializes the request body onto w. The FUNCTION/opcode
	// byte and piggyback wrapping are the codec's responsibility.
	Encode(w *wire.WriteBuffer) error
	// Decode parses one response cycle from r. It returns
	// wire.ErrOutOfPackets to request more input via FillNext, in which
	// case process_message rewinds to the mark taken before Decode was
	// first called and retries from scratch (§4.F step 3).
	Decode(r *wire.ReadBuffer) error
	// Retry reports whether the codec asked for a single re-send of the
	// whole message after a recoverable server error (§4.F step 5),
	// e.g. a statement invalidated mid-call.
	Retry() bool
	// FlushOutBinds reports whether the server's END_OF_REQUEST asked
	// for an additional FLUSH_OUT_BINDS piggyback round (§4.F step 4).
	FlushOutBinds() bool
}

// PacketIO is the minimal transport surface the engine needs: framed
// packet read/write, raw-conn access for OOB break delivery, and a read
// deadline the engine arms from each process_message's ctx.
type PacketIO interface {
	wire.PacketSource
	wire.PacketSink
	Close() error
	// SetReadDeadline bounds the next ReadPacket call(s); a zero Time
	// clears any previously armed deadline.
	SetReadDeadline(t time.Time) error
}

// Engine drives a single connection's state machine. It is safe for
// concurrent use only with respect to BreakExternal; process_message
// itself is serialized by callLock and is not reentrant across
// goroutines (§4.F: "a single thread or cooperative task drives one
// connection").
type Engine struct {
	io   PacketIO
	caps *capabilities.Capabilities

	callLock sync.Mutex

	mu              sync.Mutex
	state           State
	breakInProgress bool

	rb *wire.ReadBuffer
	wb *wire.WriteBuffer

	RetryCount int // phase-one REFUSE retry budget

	Logger *slog.Logger
}

// NewEngine wraps io (a transport.Conn in production, or a fake in
// tests) in a protocol state machine using caps for framing/SDU.
func NewEngine(io PacketIO, caps *capabilities.Capabilities) *Engine {
	e := &Engine{io: io, caps: caps, state: StateNew, RetryCount: 3}
	e.rb = wire.NewReadBuffer(io)
	e.wb = wire.NewWriteBuffer(io, caps.MaxPayload())
	return e
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// State returns the engine's current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// MarkPhaseComplete transitions NEW/TCP_CONNECTED/ACCEPTED forward;
// called by the phase-one/phase-two handshake drivers (internal/ttc)
// once each stage's exchange succeeds.
func (e *Engine) MarkPhaseComplete(s State) { e.setState(s) }

// ProcessMessage runs the full process_message contract (§4.F) for a
// single request/response exchange.
func (e *Engine) ProcessMessage(ctx context.Context, msg Message) error {
	e.callLock.Lock()
	defer e.callLock.Unlock()

	if e.State() == StateClosed {
		return oraerr.ErrConnectionClosed
	}

	e.setState(StateInCall)
	e.rb.ResetForMessage()

	e.wb.StartRequest(wire.PacketTypeData, 0)
	if err := msg.Encode(e.wb); err != nil {
		e.setState(StateReady)
		return fmt.Errorf("protocol: encoding request: %w", err)
	}
	if err := e.wb.EndRequest(e.caps.SupportsEndOfRequest()); err != nil {
		e.setState(StateReady)
		return fmt.Errorf("protocol: flushing request: %w", err)
	}

	if err := e.decodeWithResume(ctx, msg); err != nil {
		return e.handleCallError(ctx, msg, err)
	}

	if msg.FlushOutBinds() {
		if err := e.flushOutBinds(ctx, msg); err != nil {
			return e.handleCallError(ctx, msg, err)
		}
	}

	if msg.Retry() {
		e.rb.ResetForMessage()
		e.wb.StartRequest(wire.PacketTypeData, 0)
		if err := msg.Encode(e.wb); err != nil {
			e.setState(StateReady)
			return fmt.Errorf("protocol: re-encoding retried request: %w", err)
		}
		if err := e.wb.EndRequest(e.caps.SupportsEndOfRequest()); err != nil {
			e.setState(StateReady)
			return fmt.Errorf("protocol: flushing retried request: %w", err)
		}
		if err := e.decodeWithResume(ctx, msg); err != nil {
			return e.handleCallError(ctx, msg, err)
		}
	}

	e.setState(StateReady)
	return nil
}

// decodeWithResume drives msg.Decode, pulling in further packets and
// rewinding to the pre-decode mark whenever the codec reports
// ErrOutOfPackets (§4.F step 3). ctx's deadline, if any, bounds every
// blocking read this round trip makes (§5 "call_timeout bounds a
// single process_message").
func (e *Engine) decodeWithResume(ctx context.Context, msg Message) error {
	if err := e.armReadDeadline(ctx); err != nil {
		return fmt.Errorf("protocol: arming read deadline: %w", err)
	}
	defer e.disarmReadDeadline()

	mark := e.rb.Mark()
	for {
		err := msg.Decode(e.rb)
		if err == nil {
			return nil
		}
		if err != wire.ErrOutOfPackets {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		e.rb.Rewind(mark)
		if _, ferr := e.rb.FillNext(); ferr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("protocol: filling next packet: %w", ferr)
		}
		mark = e.rb.Mark()
		e.rb.Rewind(mark)
	}
}

// armReadDeadline propagates ctx's deadline onto the transport so a
// stalled recv_exact unblocks via a socket timeout instead of hanging
// until the peer closes. A ctx without a deadline leaves the transport's
// deadline untouched (no implicit call_timeout is invented).
func (e *Engine) armReadDeadline(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	return e.io.SetReadDeadline(deadline)
}

// disarmReadDeadline clears any deadline armed for this round trip so it
// cannot bleed into the next process_message call.
func (e *Engine) disarmReadDeadline() {
	_ = e.io.SetReadDeadline(time.Time{})
}

// flushOutBinds sends the FLUSH_OUT_BINDS piggyback and resumes
// decoding the same message (§4.F step 4).
func (e *Engine) flushOutBinds(ctx context.Context, msg Message) error {
	e.wb.StartRequest(wire.PacketTypeData, 0)
	if err := e.wb.WriteUint8(wire.MsgPiggyback); err != nil {
		return err
	}
	if err := e.wb.EndRequest(e.caps.SupportsEndOfRequest()); err != nil {
		return err
	}
	return e.decodeWithResume(ctx, msg)
}

// handleCallError implements §4.F steps 5-7 for a failed call: a
// timeout drives the break/reset recovery path; any other error
// triggers a best-effort break+reset before propagating, per the
// invariant that process_message never returns while still IN_CALL.
// Retry-on-invalidation does not pass through here: a codec that wants
// a retry returns nil from Decode, and ProcessMessage checks msg.Retry().
func (e *Engine) handleCallError(ctx context.Context, msg Message, callErr error) error {
	if errors.Is(callErr, context.DeadlineExceeded) {
		return e.recoverFromTimeout(ctx)
	}

	if e.State() != StateClosed {
		if rerr := e.breakAndReset(ctx); rerr != nil {
			e.logger().Warn("break/reset after call error failed; forcing close", "err", rerr)
			e.forceClose()
			return callErr
		}
	}
	e.setState(StateReady)
	return callErr
}

// recoverFromTimeout issues a BREAK, awaits RESET, and returns
// CallTimeoutExceeded; a second timeout during recovery force-closes
// the connection (§4.F step 6).
func (e *Engine) recoverFromTimeout(ctx context.Context) error {
	if err := e.breakAndReset(ctx); err != nil {
		e.logger().Error("timeout recovery failed; forcing close", "err", err)
		e.forceClose()
		return oraerr.Wrap(oraerr.KindOperational, oraerr.ErrCallTimeoutExceeded, "recovery after timeout failed: %v", err)
	}
	e.setState(StateReady)
	return oraerr.ErrCallTimeoutExceeded
}

// breakAndReset sends a BREAK marker and drains packets until the
// server's RESET acknowledgement and trailing error packet are
// consumed (§4.F's `_reset()` description).
func (e *Engine) breakAndReset(ctx context.Context) error {
	e.setState(StateBreakPending)
	if err := e.sendMarker(wire.MarkerBreak); err != nil {
		return fmt.Errorf("protocol: sending BREAK marker: %w", err)
	}
	return e.reset()
}

// reset implements `_reset()`: send RESET marker, discard packets
// until a MARKER(RESET) is seen, skip any extra MARKER packets some
// servers emit, then read the trailing error packet.
func (e *Engine) reset() error {
	if err := e.sendMarker(wire.MarkerReset); err != nil {
		return fmt.Errorf("protocol: sending RESET marker: %w", err)
	}

	sawReset := false
	for !sawReset {
		pktType, _, payload, err := e.io.ReadPacket()
		if err != nil {
			return fmt.Errorf("protocol: reading packet during reset: %w", err)
		}
		if pktType != wire.PacketTypeMarker {
			continue
		}
		marker, err := wire.DecodeMarker(payload)
		if err != nil {
			return fmt.Errorf("protocol: decoding marker during reset: %w", err)
		}
		if marker.MarkerType == wire.MarkerReset {
			sawReset = true
		}
	}

	// Some servers emit extra redundant MARKER(RESET) packets before the
	// trailing error/ack packet that closes out the reset. Drain those,
	// then consume the trailing packet itself so it isn't left sitting on
	// the transport to be misread as the next process_message's framing.
	for {
		pktType, _, payload, err := e.io.ReadPacket()
		if err != nil {
			return fmt.Errorf("protocol: draining packet after reset: %w", err)
		}
		if pktType == wire.PacketTypeMarker {
			if marker, derr := wire.DecodeMarker(payload); derr == nil && marker.MarkerType == wire.MarkerReset {
				continue
			}
		}
		return nil
	}
}

func (e *Engine) sendMarker(markerType byte) error {
	payload := wire.EncodeMarker(wire.Marker{Type: 1, MarkerType: markerType})
	return e.io.WritePacket(wire.PacketTypeMarker, 0, payload)
}

// BreakExternal may be called from any goroutine to cancel an
// in-flight call (§4.F "Cancellation"). It uses a separate write path
// from the main WriteBuffer to avoid interleaving mid-write, and is
// idempotent while a break is already in progress.
func (e *Engine) BreakExternal() error {
	e.mu.Lock()
	if e.breakInProgress || e.state == StateClosed {
		e.mu.Unlock()
		return nil
	}
	e.breakInProgress = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.breakInProgress = false
		e.mu.Unlock()
	}()

	return e.sendMarker(wire.MarkerBreak)
}

// forceClose moves the engine straight to CLOSED and closes the
// underlying transport, discarding any recovery attempt.
func (e *Engine) forceClose() {
	e.setState(StateClosing)
	_ = e.io.Close()
	e.setState(StateClosed)
}

// Close performs an orderly shutdown: CLOSING then CLOSED, closing the
// transport regardless of outcome.
func (e *Engine) Close(ctx context.Context) error {
	e.callLock.Lock()
	defer e.callLock.Unlock()

	if e.State() == StateClosed {
		return nil
	}
	e.setState(StateClosing)
	err := e.io.Close()
	e.setState(StateClosed)
	if err != nil {
		return fmt.Errorf("protocol: closing transport: %w", err)
	}
	return nil
}

