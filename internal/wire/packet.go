// Package wire implements the TNS packet framing (§4.D) and the
// typed, resumable ReadBuffer/WriteBuffer byte-stream abstraction
// (§4.C) that every message codec in internal/ttc is built on.
package wire

import (
	"encoding/binary"
	"fmt"
)

// Packet types (§4.D).
const (
	PacketTypeConnect  byte = 1
	PacketTypeAccept   byte = 2
	PacketTypeAck      byte = 3
	PacketTypeRefuse   byte = 4
	PacketTypeRedirect byte = 5
	PacketTypeData     byte = 6
	PacketTypeResend   byte = 11
	PacketTypeMarker   byte = 12
	PacketTypeControl  byte = 14
)

// Packet header flags (§4.D).
const (
	PacketFlagEOF      uint16 = 1 << 0
	PacketFlagRedirect uint16 = 1 << 1
	PacketFlagTLSReneg uint16 = 1 << 2
)

// Marker types, carried in the 3rd payload byte of a MARKER packet.
const (
	MarkerInterrupt byte = 1
	MarkerReset     byte = 2
	MarkerBreak     byte = 3
)

// TTC message type tags, carried as the first byte of a DATA packet's
// payload (§4.D).
const (
	MsgProtocol       byte = 1
	MsgDataTypes      byte = 2
	MsgFunction       byte = 3
	MsgError          byte = 4
	MsgRowHeader      byte = 6
	MsgRowData        byte = 7
	MsgDescribeInfo   byte = 16
	MsgPiggyback      byte = 17
	MsgEndOfRequest   byte = 19
	MsgFastAuth       byte = 34
)

// Header is the decoded form of a TNS packet header, legacy or modern.
type Header struct {
	Length   uint32
	Flags    uint16
	Type     byte
	Reserved byte
}

// legacyHeaderSize / modernHeaderSize are the on-wire header byte counts.
const (
	legacyHeaderSize = 8 // length:u16 flags:u16 type:u8 reserved:u8 checksum:u16(unused, zero)
	modernHeaderSize = 8 // length:u32 flags:u16 type:u8 reserved:u8
)

// EncodeHeader serializes a Header using the legacy (u16 length) or
// modern (u32 length) wire shape.
func EncodeHeader(h Header, modern bool) []byte {
	buf := make([]byte, HeaderSize(modern))
	if modern {
		binary.BigEndian.PutUint32(buf[0:4], h.Length)
		binary.BigEndian.PutUint16(buf[4:6], h.Flags)
		buf[6] = h.Type
		buf[7] = h.Reserved
		return buf
	}
	binary.BigEndian.PutUint16(buf[0:2], uint16(h.Length))
	binary.BigEndian.PutUint16(buf[2:4], h.Flags)
	buf[4] = h.Type
	buf[5] = h.Reserved
	// buf[6:8] packet checksum, legacy servers accept zero.
	return buf
}

// DecodeHeader parses a packet header. Invariant (§3): header length
// equals the number of bytes actually on the wire for this packet.
func DecodeHeader(buf []byte, modern bool) (Header, error) {
	if len(buf) < HeaderSize(modern) {
		return Header{}, fmt.Errorf("wire: short packet header: need %d bytes, got %d", HeaderSize(modern), len(buf))
	}
	var h Header
	if modern {
		h.Length = binary.BigEndian.Uint32(buf[0:4])
		h.Flags = binary.BigEndian.Uint16(buf[4:6])
		h.Type = buf[6]
		h.Reserved = buf[7]
		return h, nil
	}
	h.Length = uint32(binary.BigEndian.Uint16(buf[0:2]))
	h.Flags = binary.BigEndian.Uint16(buf[2:4])
	h.Type = buf[4]
	h.Reserved = buf[5]
	return h, nil
}

// HeaderSize returns the on-wire header size for the negotiated framing.
func HeaderSize(modern bool) int {
	if modern {
		return modernHeaderSize
	}
	return legacyHeaderSize
}

// Marker is the 3-byte payload of a MARKER packet.
type Marker struct {
	Type       byte // 0 or 1, per spec's literal field name "type"
	Data       byte
	MarkerType byte
}

func EncodeMarker(m Marker) []byte {
	return []byte{m.Type, m.Data, m.MarkerType}
}

func DecodeMarker(payload []byte) (Marker, error) {
	if len(payload) < 3 {
		return Marker{}, fmt.Errorf("wire: short marker payload: %d bytes", len(payload))
	}
	return Marker{Type: payload[0], Data: payload[1], MarkerType: payload[2]}, nil
}
