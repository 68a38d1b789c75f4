package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/oracleco/go-ttcdriver/internal/capabilities"
	"github.com/oracleco/go-ttcdriver/internal/wire"
)

// Conn frames packets over a net.Conn according to the negotiated
// capabilities, implementing wire.PacketSource and wire.PacketSink so
// internal/wire's ReadBuffer/WriteBuffer never touch a socket directly.
type Conn struct {
	raw  net.Conn
	caps *capabilities.Capabilities

	writeMu sync.Mutex
}

// NewConn wraps raw for packet framing driven by caps. caps may still
// be mutated by the phase-one/phase-two handshake; Conn re-reads
// caps.LengthEncoding() on every packet rather than caching it.
func NewConn(raw net.Conn, caps *capabilities.Capabilities) *Conn {
	return &Conn{raw: raw, caps: caps}
}

// Raw returns the underlying net.Conn, e.g. for OOB break delivery or
// deadline management.
func (c *Conn) Raw() net.Conn { return c.raw }

// ReadPacket implements wire.PacketSource: it reads exactly one framed
// packet off the wire and returns its type, flags, and payload.
func (c *Conn) ReadPacket() (byte, uint16, []byte, error) {
	modern := c.caps.LengthEncoding() == capabilities.LengthU32
	headerSize := wire.HeaderSize(modern)

	hdr := make([]byte, headerSize)
	if _, err := readFull(c.raw, hdr); err != nil {
		return 0, 0, nil, fmt.Errorf("transport: reading packet header: %w", err)
	}
	h, err := wire.DecodeHeader(hdr, modern)
	if err != nil {
		return 0, 0, nil, err
	}
	bodyLen := int(h.Length) - headerSize
	if bodyLen < 0 {
		return 0, 0, nil, fmt.Errorf("transport: packet length %d smaller than header", h.Length)
	}
	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := readFull(c.raw, body); err != nil {
			return 0, 0, nil, fmt.Errorf("transport: reading packet body: %w", err)
		}
	}
	return h.Type, h.Flags, body, nil
}

// WritePacket implements wire.PacketSink: it frames payload as a single
// packet and writes it to the wire. Callers (WriteBuffer) are
// responsible for keeping payload within the negotiated SDU.
func (c *Conn) WritePacket(pktType byte, flags uint16, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	modern := c.caps.LengthEncoding() == capabilities.LengthU32
	headerSize := wire.HeaderSize(modern)
	h := wire.Header{Length: uint32(headerSize + len(payload)), Flags: flags, Type: pktType}
	buf := append(wire.EncodeHeader(h, modern), payload...)
	_, err := c.raw.Write(buf)
	if err != nil {
		return fmt.Errorf("transport: writing packet: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.raw.Close() }

// SetReadDeadline implements protocol.PacketIO, delegating straight to
// the underlying socket so a process_message call_timeout actually
// unblocks a stalled recv_exact instead of hanging until the peer
// closes the connection.
func (c *Conn) SetReadDeadline(t time.Time) error {
	if err := c.raw.SetReadDeadline(t); err != nil {
		return fmt.Errorf("transport: setting read deadline: %w", err)
	}
	return nil
}

func readFull(r net.Conn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
