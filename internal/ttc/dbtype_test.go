package ttc

import (
	"testing"

	"github.com/oracleco/go-ttcdriver/internal/wire"
)

func TestDescribeTypeMessageEncodeWritesFunctionCode(t *testing.T) {
	pipe := &fakeIO{}
	w := wire.NewWriteBuffer(pipe, 4096)
	w.StartRequest(wire.PacketTypeData, 0)
	msg := &DescribeTypeMessage{Schema: "SCOTT", Package: "", Name: "ADDRESS_T"}
	if err := msg.Encode(w); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := w.EndRequest(false); err != nil {
		t.Fatalf("EndRequest: %v", err)
	}
	var all []byte
	for _, p := range pipe.written {
		all = append(all, p...)
	}
	r := wire.NewReadBuffer(&staticPacketSource{pktType: wire.PacketTypeData, payload: all})
	if _, err := r.FillNext(); err != nil {
		t.Fatalf("FillNext: %v", err)
	}
	tag, err := r.ReadUint8()
	if err != nil || tag != wire.MsgFunction {
		t.Fatalf("expected MsgFunction tag, got %v, %v", tag, err)
	}
	fc, err := r.ReadUint8()
	if err != nil || fc != funcDescribeType {
		t.Fatalf("expected funcDescribeType, got 0x%02x, %v", fc, err)
	}
	schema, err := r.ReadString()
	if err != nil || schema != "SCOTT" {
		t.Fatalf("expected schema SCOTT, got %q, %v", schema, err)
	}
}

func TestDescribeTypeMessageDecodeResolvesNestedAttribute(t *testing.T) {
	pipe := &fakeIO{}
	w := wire.NewWriteBuffer(pipe, 4096)
	w.StartRequest(wire.PacketTypeData, 0)
	if err := w.WriteUint8(0x10); err != nil { // arbitrary non-error describe tag
		t.Fatalf("WriteUint8: %v", err)
	}
	if err := w.WriteBytesShort([]byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("WriteBytesShort: %v", err)
	}
	if err := w.WriteUint16(2); err != nil {
		t.Fatalf("WriteUint16: %v", err)
	}
	if err := w.WriteString("NAME"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := w.WriteUint8(byte(DataTypeVarchar2)); err != nil {
		t.Fatalf("WriteUint8: %v", err)
	}
	if err := w.WriteString("ADDR"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := w.WriteUint8(byte(DataTypeObject)); err != nil {
		t.Fatalf("WriteUint8: %v", err)
	}
	if err := w.WriteString("SCOTT"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := w.WriteString(""); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := w.WriteString("ADDRESS_T"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := w.EndRequest(false); err != nil {
		t.Fatalf("EndRequest: %v", err)
	}

	var all []byte
	for _, p := range pipe.written {
		all = append(all, p...)
	}
	r := wire.NewReadBuffer(&staticPacketSource{pktType: wire.PacketTypeData, payload: all})
	if _, err := r.FillNext(); err != nil {
		t.Fatalf("FillNext: %v", err)
	}

	msg := &DescribeTypeMessage{}
	if err := msg.Decode(r); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(msg.Attributes) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(msg.Attributes))
	}
	if msg.Attributes[1].Type != DataTypeObject || msg.Attributes[1].NestedName != "ADDRESS_T" {
		t.Fatalf("unexpected nested attribute: %+v", msg.Attributes[1])
	}
	if string(msg.OID) != "\xAA\xBB" {
		t.Fatalf("unexpected OID: %v", msg.OID)
	}
}
