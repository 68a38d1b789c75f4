package wire

import (
	"testing"

	"github.com/go-test/deep"
)

func mustParse(t *testing.T, s string) Number {
	t.Helper()
	n, err := ParseNumber(s)
	if err != nil {
		t.Fatalf("ParseNumber(%q): %v", s, err)
	}
	return n
}

func TestNumberRoundTrip(t *testing.T) {
	cases := []string{
		"0",
		"1",
		"-1",
		"7.1",
		"-7.1",
		"1234",
		"-1234",
		"0.0005",
		"-0.0005",
		"123456789012345678",
		"99999999999999999999",
		"-99999999999999999999",
		"100",
		"-100",
		"0.1",
		"3.14159265358979",
		"1000000",
		"-0.00000001",
	}
	for _, s := range cases {
		want := mustParse(t, s)
		enc := EncodeNumber(want)
		got, err := DecodeNumber(enc)
		if err != nil {
			t.Fatalf("DecodeNumber(%q encoded): %v", s, err)
		}
		if got.String() != want.String() {
			t.Fatalf("round trip %q: got %q, want %q (enc=% x)", s, got.String(), want.String(), enc)
		}
		if !got.IsZero() {
			if diff := deep.Equal(got, want); diff != nil {
				t.Fatalf("round trip %q: struct mismatch: %v", s, diff)
			}
		}
	}
}

func TestNumberZeroCanonical(t *testing.T) {
	enc := EncodeNumber(Zero)
	if len(enc) != 2 || enc[0] != 0x01 || enc[1] != 0x80 {
		t.Fatalf("expected canonical zero encoding [0x01 0x80], got % x", enc)
	}
	got, err := DecodeNumber(enc)
	if err != nil {
		t.Fatalf("DecodeNumber(zero): %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("expected zero, got %q", got.String())
	}
}

func TestNumberNegativeTerminator(t *testing.T) {
	n := mustParse(t, "-7.1")
	enc := EncodeNumber(n)
	if enc[len(enc)-1] != negativeMantissaTerminator {
		t.Fatalf("expected trailing negative terminator byte 0x66, got % x", enc)
	}
}

func TestNumberStringFormatting(t *testing.T) {
	cases := map[string]string{
		"7.1":        "7.1",
		"0.0005":     "0.0005",
		"100":        "100",
		"-100":       "-100",
		"0":          "0",
		"0.1":        "0.1",
		"-0.00000001": "-0.00000001",
	}
	for in, want := range cases {
		n := mustParse(t, in)
		if got := n.String(); got != want {
			t.Fatalf("ParseNumber(%q).String() = %q, want %q", in, got, want)
		}
	}
}

func TestParseNumberRejectsScientificNotation(t *testing.T) {
	if _, err := ParseNumber("1E10"); err == nil {
		t.Fatalf("expected error parsing scientific notation literal")
	}
}

func TestParseNumberRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "-", "abc", "1.2.3", "1-2"} {
		if _, err := ParseNumber(s); err == nil {
			t.Fatalf("expected error parsing %q", s)
		}
	}
}
