package transport

import (
	"net"
	"testing"

	"github.com/oracleco/go-ttcdriver/internal/capabilities"
	"github.com/oracleco/go-ttcdriver/internal/wire"
)

func TestConnPacketRoundTripLegacy(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	caps := capabilities.New()
	caps.ProtocolVersion = capabilities.ProtocolVersionMinimum

	cliConn := NewConn(client, caps)
	srvConn := NewConn(server, caps)

	done := make(chan error, 1)
	go func() {
		done <- cliConn.WritePacket(wire.PacketTypeData, wire.PacketFlagEOF, []byte("hello"))
	}()

	pktType, flags, payload, err := srvConn.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	if pktType != wire.PacketTypeData {
		t.Fatalf("expected PacketTypeData, got %d", pktType)
	}
	if flags&wire.PacketFlagEOF == 0 {
		t.Fatalf("expected EOF flag set")
	}
	if string(payload) != "hello" {
		t.Fatalf("expected payload %q, got %q", "hello", payload)
	}
}

func TestConnPacketRoundTripModern(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	caps := capabilities.New()
	caps.ProtocolVersion = capabilities.ProtocolVersionModern

	cliConn := NewConn(client, caps)
	srvConn := NewConn(server, caps)

	done := make(chan error, 1)
	go func() {
		done <- cliConn.WritePacket(wire.PacketTypeMarker, 0, []byte{1, 0, wire.MarkerBreak})
	}()

	pktType, _, payload, err := srvConn.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	if pktType != wire.PacketTypeMarker {
		t.Fatalf("expected PacketTypeMarker, got %d", pktType)
	}
	marker, err := wire.DecodeMarker(payload)
	if err != nil {
		t.Fatalf("DecodeMarker: %v", err)
	}
	if marker.MarkerType != wire.MarkerBreak {
		t.Fatalf("expected MarkerBreak, got %d", marker.MarkerType)
	}
}
