package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrOutOfPackets is returned by every typed ReadBuffer reader when the
// bytes received so far are insufficient to satisfy the read. The
// caller is expected to have recorded a restore point (ReadBuffer.Mark)
// before attempting the decode, rewind to it (ReadBuffer.Rewind) on this
// error, pull in the next packet, and retry the same decode from
// scratch — this is the sole mechanism that lets cooperative mode
// suspend mid-message (§4.C).
var ErrOutOfPackets = errors.New("wire: out of packets")

// EncodingErrorPolicy controls how ReadBuffer.ReadString handles bytes
// that don't decode cleanly under the assumed charset.
type EncodingErrorPolicy int

const (
	EncodingErrorsStrict EncodingErrorPolicy = iota
	EncodingErrorsReplace
	EncodingErrorsIgnore
)

// PacketSource supplies the next inbound packet to a ReadBuffer. A
// connection's transport+framing layer implements this; internal/wire
// itself never dials or reads raw sockets.
type PacketSource interface {
	ReadPacket() (pktType byte, flags uint16, payload []byte, err error)
}

// PacketSink accepts a fully framed outbound packet from a WriteBuffer.
type PacketSink interface {
	WritePacket(pktType byte, flags uint16, payload []byte) error
}

// ReadBuffer turns a sequence of packets into a resumable, typed byte
// cursor (§4.C).
type ReadBuffer struct {
	source PacketSource
	data   []byte
	pos    int
	eof    bool

	EncodingErrors EncodingErrorPolicy
}

// NewReadBuffer creates a ReadBuffer that pulls packets from source on
// demand.
func NewReadBuffer(source PacketSource) *ReadBuffer {
	return &ReadBuffer{source: source}
}

// ResetForMessage discards any buffered bytes and starts decoding a new
// inbound message (§4.F step 2: "Reset read-packet cursor").
func (r *ReadBuffer) ResetForMessage() {
	r.data = r.data[:0]
	r.pos = 0
	r.eof = false
}

// Mark records a restore point for resumable decode.
func (r *ReadBuffer) Mark() int { return r.pos }

// Rewind restores the cursor to a previously recorded mark.
func (r *ReadBuffer) Rewind(mark int) { r.pos = mark }

// Remaining reports how many buffered-but-unread bytes are available.
func (r *ReadBuffer) Remaining() int { return len(r.data) - r.pos }

// AtEOF reports whether the most recently received packet carried the
// EOF flag and all buffered bytes have been consumed.
func (r *ReadBuffer) AtEOF() bool { return r.eof && r.Remaining() == 0 }

// FillNext pulls the next packet from the source and appends its
// payload to the buffer. Called by the protocol engine when a decode
// returns ErrOutOfPackets.
func (r *ReadBuffer) FillNext() (pktType byte, err error) {
	pktType, flags, payload, err := r.source.ReadPacket()
	if err != nil {
		return 0, err
	}
	r.data = append(r.data, payload...)
	if flags&PacketFlagEOF != 0 {
		r.eof = true
	}
	return pktType, nil
}

func (r *ReadBuffer) need(n int) error {
	if r.pos+n > len(r.data) {
		return ErrOutOfPackets
	}
	return nil
}

// ReadUint8 reads one byte.
func (r *ReadBuffer) ReadUint8() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadUint16 reads a big-endian uint16.
func (r *ReadBuffer) ReadUint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadUint32 reads a big-endian uint32.
func (r *ReadBuffer) ReadUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadUint64 reads a big-endian uint64.
func (r *ReadBuffer) ReadUint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

// ReadRaw reads exactly n bytes, unparsed.
func (r *ReadBuffer) ReadRaw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:r.pos+n])
	r.pos += n
	return b, nil
}

// ReadBytesShort reads a 1-byte-length-prefixed byte string (length <= 252).
func (r *ReadBuffer) ReadBytesShort() ([]byte, error) {
	mark := r.pos
	n, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if n > 252 {
		r.pos = mark
		return nil, fmt.Errorf("wire: short-form length %d exceeds 252", n)
	}
	if n == 0 {
		return nil, nil
	}
	b, err := r.ReadRaw(int(n))
	if err != nil {
		r.pos = mark
		return nil, err
	}
	return b, nil
}

// ReadBytesLong reads the chunked "LONG" encoding: a sequence of
// {chunk_len:u8 > 0, bytes} pairs terminated by a 0x00 chunk_len. A
// leading length indicator of 0xFE introduces either a 4-byte length
// followed by one chunk, or the general chunked form — both are
// accepted here by always running the chunk loop, since a single
// 4-byte-prefixed chunk is just a chunk loop of length 1.
func (r *ReadBuffer) ReadBytesLong() ([]byte, error) {
	mark := r.pos
	indicator, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	var out []byte
	if indicator == 0xFE {
		// 4-byte length indicator form, or chunked — probe for a u32
		// length that matches a single well-formed chunk; fall back to
		// the generic chunk loop otherwise.
		lenMark := r.pos
		if n, err := r.ReadUint32(); err == nil && n > 0 && n < 1<<20 {
			if b, err := r.ReadRaw(int(n)); err == nil {
				// A trailing zero terminator may or may not follow
				// depending on server version; consume it if present.
				if term, err := r.ReadUint8(); err == nil && term != 0 {
					r.pos--
				}
				return b, nil
			}
		}
		r.pos = lenMark
	} else if indicator != 0 {
		// Non-chunked short form leaked into the long path: treat the
		// indicator itself as the first chunk's length.
		r.pos = mark
	}
	for {
		chunkLen, err := r.ReadUint8()
		if err != nil {
			r.pos = mark
			return nil, err
		}
		if chunkLen == 0 {
			break
		}
		chunk, err := r.ReadRaw(int(chunkLen))
		if err != nil {
			r.pos = mark
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

// ReadString reads a length-prefixed string using the short form and
// decodes it per EncodingErrors. This core only emits UTF-8/UTF-16
// outbound (§4.C); inbound bytes from the server's 8-bit charset are
// passed through as-is when the policy allows it.
func (r *ReadBuffer) ReadString() (string, error) {
	b, err := r.ReadBytesShort()
	if err != nil {
		return "", err
	}
	return decodeCharBytes(b, r.EncodingErrors)
}

func decodeCharBytes(b []byte, policy EncodingErrorPolicy) (string, error) {
	for i := 0; i < len(b); i++ {
		if b[i] >= 0x80 {
			switch policy {
			case EncodingErrorsStrict:
				// Not true UTF-8 validation (the server's 8-bit charset
				// isn't required to be UTF-8) — strict mode here only
				// guards the common case of unexpected high bytes under
				// a charset this core hasn't negotiated for decode.
			case EncodingErrorsReplace:
				out := make([]byte, len(b))
				copy(out, b)
				for j := range out {
					if out[j] >= 0x80 {
						out[j] = '?'
					}
				}
				return string(out), nil
			case EncodingErrorsIgnore:
				out := make([]byte, 0, len(b))
				for _, c := range b {
					if c < 0x80 {
						out = append(out, c)
					}
				}
				return string(out), nil
			}
			break
		}
	}
	return string(b), nil
}

// WriteBuffer batches typed writes into outbound packets bounded by the
// negotiated SDU (§4.C).
type WriteBuffer struct {
	sink       PacketSink
	maxPayload int
	modern     bool

	pktType byte
	flags   uint16
	buf     []byte
}

// NewWriteBuffer creates a WriteBuffer that flushes complete packets to
// sink, each bounded to maxPayload bytes of payload.
func NewWriteBuffer(sink PacketSink, maxPayload int) *WriteBuffer {
	return &WriteBuffer{sink: sink, maxPayload: maxPayload}
}

// StartRequest begins a new outbound message on a DATA packet (or, for
// control packets, on packetType directly).
func (w *WriteBuffer) StartRequest(packetType byte, flags uint16) {
	w.pktType = packetType
	w.flags = flags
	w.buf = w.buf[:0]
}

func (w *WriteBuffer) flushIfFull() error {
	if len(w.buf) < w.maxPayload {
		return nil
	}
	return w.flush(0)
}

func (w *WriteBuffer) flush(extraFlags uint16) error {
	if err := w.sink.WritePacket(w.pktType, w.flags|extraFlags, w.buf); err != nil {
		return err
	}
	w.buf = w.buf[:0]
	return nil
}

func (w *WriteBuffer) write(b []byte) error {
	for len(b) > 0 {
		room := w.maxPayload - len(w.buf)
		if room <= 0 {
			if err := w.flush(0); err != nil {
				return err
			}
			room = w.maxPayload
		}
		n := len(b)
		if n > room {
			n = room
		}
		w.buf = append(w.buf, b[:n]...)
		b = b[n:]
	}
	return w.flushIfFull()
}

func (w *WriteBuffer) WriteUint8(v byte) error { return w.write([]byte{v}) }

func (w *WriteBuffer) WriteUint16(v uint16) error {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return w.write(b)
}

func (w *WriteBuffer) WriteUint32(v uint32) error {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return w.write(b)
}

func (w *WriteBuffer) WriteUint64(v uint64) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return w.write(b)
}

func (w *WriteBuffer) WriteRaw(b []byte) error { return w.write(b) }

// WriteBytesShort writes a 1-byte-length-prefixed byte string; panics
// via error return if the caller passes more than 252 bytes (the
// codec layer is responsible for chunking longer values itself via
// WriteBytesLong).
func (w *WriteBuffer) WriteBytesShort(b []byte) error {
	if len(b) > 252 {
		return fmt.Errorf("wire: WriteBytesShort: %d bytes exceeds 252, use WriteBytesLong", len(b))
	}
	if err := w.WriteUint8(byte(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	return w.write(b)
}

// WriteBytesLong writes the chunked LONG encoding in chunkSize pieces
// (each <= 255 bytes), terminated by a zero-length chunk.
func (w *WriteBuffer) WriteBytesLong(b []byte, chunkSize int) error {
	if chunkSize <= 0 || chunkSize > 255 {
		chunkSize = 255
	}
	for len(b) > 0 {
		n := len(b)
		if n > chunkSize {
			n = chunkSize
		}
		if err := w.WriteUint8(byte(n)); err != nil {
			return err
		}
		if err := w.write(b[:n]); err != nil {
			return err
		}
		b = b[n:]
	}
	return w.WriteUint8(0)
}

// WriteString writes a length-prefixed UTF-8 string (short form only —
// callers needing long strings use WriteBytesLong directly).
func (w *WriteBuffer) WriteString(s string) error {
	return w.WriteBytesShort([]byte(s))
}

// EndRequest writes the END-OF-REQUEST marker when the negotiated
// capabilities permit it, then flushes any buffered bytes with the EOF
// packet flag set (§4.C).
func (w *WriteBuffer) EndRequest(supportsEndOfRequest bool) error {
	if supportsEndOfRequest {
		if err := w.WriteUint8(MsgEndOfRequest); err != nil {
			return err
		}
	}
	return w.flush(PacketFlagEOF)
}
