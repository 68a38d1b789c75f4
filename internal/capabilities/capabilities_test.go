package capabilities

import "testing"

func TestFreezeIsSticky(t *testing.T) {
	c := New()
	if c.Frozen() {
		t.Fatalf("new capabilities should not be frozen")
	}
	c.Freeze()
	if !c.Frozen() {
		t.Fatalf("expected frozen after Freeze()")
	}
}

func TestLengthEncodingSwitchesOnVersion(t *testing.T) {
	c := New()
	c.ProtocolVersion = ProtocolVersionMinimum
	if c.LengthEncoding() != LengthU16 {
		t.Fatalf("expected legacy u16 length encoding")
	}
	c.ProtocolVersion = ProtocolVersionModern
	if c.LengthEncoding() != LengthU32 {
		t.Fatalf("expected modern u32 length encoding")
	}
}

func TestFeatureFlagPredicates(t *testing.T) {
	c := New()
	c.Flags = FlagSupportsEndOfRequest | FlagSupportsFastAuth
	if !c.SupportsEndOfRequest() || !c.SupportsFastAuth() {
		t.Fatalf("expected end-of-request and fast-auth flags set")
	}
	if c.SupportsTLSRenegotiate() {
		t.Fatalf("did not expect TLS renegotiate flag set")
	}
}

func TestMaxPayloadAccountsForHeader(t *testing.T) {
	c := New()
	c.SDU = 8192
	if got := c.MaxPayload(); got != 8192-8 {
		t.Fatalf("expected %d, got %d", 8192-8, got)
	}
}
