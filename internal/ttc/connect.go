package ttc

import (
	"fmt"

	"github.com/oracleco/go-ttcdriver/internal/capabilities"
	"github.com/oracleco/go-ttcdriver/internal/wire"
)

// ConnectRequest is the phase-one CONNECT packet payload (§4.D): NSN
// (network session negotiation) data followed by the connect string.
type ConnectRequest struct {
	ConnectString string
	NSNData       []byte
}

// Encode serializes the CONNECT packet payload. CONNECT is a control
// packet, not a DATA message, so it bypasses the MsgXxx tag byte used
// by phase-two messages.
func (r ConnectRequest) Encode() []byte {
	return append(append([]byte(nil), r.NSNData...), []byte(r.ConnectString)...)
}

// BuildConnectDescriptor assembles the connect-data string sent inside
// the CONNECT packet (§4.D): a minimal TNS descriptor naming the
// target service and the sanitized CID identity fields.
func BuildConnectDescriptor(serviceName, program, machine, user string) string {
	return "(DESCRIPTION=(CONNECT_DATA=(SERVICE_NAME=" + SanitizeCID(serviceName) + ")" +
		BuildCID(program, machine, user) + "))"
}

// AcceptResult is the decoded form of an ACCEPT packet.
type AcceptResult struct {
	Caps   capabilities.Capabilities
	Cookie []byte
}

// RefuseResult is the decoded form of a REFUSE packet: the server's
// plain-text reason string (often itself an embedded TNS error
// descriptor).
type RefuseResult struct {
	Reason string
}

// RedirectResult is the decoded form of a REDIRECT packet: the caller
// reconnects to NewConnectString, replaying the original descriptor
// for the listener's benefit (§4.D: "payload: newConnectString\0
// originalConnectString; caller reconnects").
type RedirectResult struct {
	NewConnectString      string
	OriginalConnectString string
}

// DecodeAccept parses an ACCEPT packet payload into capability fields.
// The exact byte layout of a real ACCEPT packet varies by server
// version; this core models the fields it actually branches on
// (version, SDU/TDU, flags, optional cookie) and treats the rest as an
// opaque trailer it does not need to interpret.
func DecodeAccept(payload []byte) (AcceptResult, error) {
	if len(payload) < 8 {
		return AcceptResult{}, fmt.Errorf("ttc: short ACCEPT payload: %d bytes", len(payload))
	}
	r := wire.NewReadBuffer(&staticPacketSource{pktType: wire.PacketTypeAccept, payload: payload})
	if _, err := r.FillNext(); err != nil {
		return AcceptResult{}, err
	}
	version, err := r.ReadUint16()
	if err != nil {
		return AcceptResult{}, fmt.Errorf("ttc: decoding ACCEPT version: %w", err)
	}
	sdu, err := r.ReadUint16()
	if err != nil {
		return AcceptResult{}, fmt.Errorf("ttc: decoding ACCEPT SDU: %w", err)
	}
	tdu, err := r.ReadUint16()
	if err != nil {
		return AcceptResult{}, fmt.Errorf("ttc: decoding ACCEPT TDU: %w", err)
	}
	flags, err := r.ReadUint16()
	if err != nil {
		return AcceptResult{}, fmt.Errorf("ttc: decoding ACCEPT flags: %w", err)
	}

	caps := *capabilities.New()
	caps.ProtocolVersion = int(version)
	caps.SDU = int(sdu)
	caps.TDU = int(tdu)
	caps.Flags = uint32(flags)

	var cookie []byte
	if caps.Flags&capabilities.FlagSupportsFastAuth != 0 {
		if c, err := r.ReadBytesShort(); err == nil {
			cookie = c
		}
	}

	return AcceptResult{Caps: caps, Cookie: cookie}, nil
}

// DecodeRefuse parses a REFUSE packet payload, which is just the raw
// reason text.
func DecodeRefuse(payload []byte) RefuseResult {
	return RefuseResult{Reason: string(payload)}
}

// DecodeRedirect parses a REDIRECT packet payload of the form
// "newConnectString\x00originalConnectString".
func DecodeRedirect(payload []byte) (RedirectResult, error) {
	for i, b := range payload {
		if b == 0 {
			return RedirectResult{
				NewConnectString:      string(payload[:i]),
				OriginalConnectString: string(payload[i+1:]),
			}, nil
		}
	}
	return RedirectResult{}, fmt.Errorf("ttc: REDIRECT payload missing NUL separator")
}

// staticPacketSource feeds a single already-received packet to a
// wire.ReadBuffer, used by the phase-one decoders that run before an
// Engine/Conn exists.
type staticPacketSource struct {
	pktType byte
	payload []byte
	served  bool
}

func (s *staticPacketSource) ReadPacket() (byte, uint16, []byte, error) {
	if s.served {
		return 0, 0, nil, wire.ErrOutOfPackets
	}
	s.served = true
	return s.pktType, wire.PacketFlagEOF, s.payload, nil
}
