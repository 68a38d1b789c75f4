package ttc

import (
	"testing"

	"github.com/oracleco/go-ttcdriver/internal/capabilities"
)

func TestDecodeAcceptBasicFields(t *testing.T) {
	payload := []byte{
		0x01, 0x3b, // version 315
		0x20, 0x00, // sdu 8192
		0xff, 0xff, // tdu 65535
		0x00, 0x00, // flags
	}
	res, err := DecodeAccept(payload)
	if err != nil {
		t.Fatalf("DecodeAccept: %v", err)
	}
	if res.Caps.ProtocolVersion != 315 {
		t.Fatalf("expected version 315, got %d", res.Caps.ProtocolVersion)
	}
	if res.Caps.SDU != 8192 {
		t.Fatalf("expected SDU 8192, got %d", res.Caps.SDU)
	}
	if res.Cookie != nil {
		t.Fatalf("expected no cookie when fast-auth flag unset")
	}
}

func TestDecodeAcceptWithCookie(t *testing.T) {
	payload := []byte{
		0x01, 0x3b,
		0x20, 0x00,
		0xff, 0xff,
		0x00, byte(capabilities.FlagSupportsFastAuth),
		3, 'a', 'b', 'c',
	}
	res, err := DecodeAccept(payload)
	if err != nil {
		t.Fatalf("DecodeAccept: %v", err)
	}
	if string(res.Cookie) != "abc" {
		t.Fatalf("expected cookie %q, got %q", "abc", res.Cookie)
	}
}

func TestDecodeRefuse(t *testing.T) {
	res := DecodeRefuse([]byte("listener refused connection"))
	if res.Reason != "listener refused connection" {
		t.Fatalf("unexpected reason: %q", res.Reason)
	}
}

func TestDecodeRedirect(t *testing.T) {
	payload := append([]byte("(DESCRIPTION=NEW)"), 0)
	payload = append(payload, []byte("(DESCRIPTION=ORIG)")...)
	res, err := DecodeRedirect(payload)
	if err != nil {
		t.Fatalf("DecodeRedirect: %v", err)
	}
	if res.NewConnectString != "(DESCRIPTION=NEW)" {
		t.Fatalf("unexpected new connect string: %q", res.NewConnectString)
	}
	if res.OriginalConnectString != "(DESCRIPTION=ORIG)" {
		t.Fatalf("unexpected original connect string: %q", res.OriginalConnectString)
	}
}

func TestDecodeRedirectRequiresSeparator(t *testing.T) {
	if _, err := DecodeRedirect([]byte("no separator here")); err == nil {
		t.Fatalf("expected error for missing NUL separator")
	}
}
