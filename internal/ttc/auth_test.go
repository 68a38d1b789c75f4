package ttc

import "testing"

func TestDeriveSessionKeyIsDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")
	k1 := DeriveSessionKey("hunter2", salt)
	k2 := DeriveSessionKey("hunter2", salt)
	if string(k1) != string(k2) {
		t.Fatalf("expected deterministic derivation for identical inputs")
	}
	if len(k1) != pbkdf2KeyLen {
		t.Fatalf("expected %d-byte key, got %d", pbkdf2KeyLen, len(k1))
	}
}

func TestDeriveSessionKeyDiffersBySalt(t *testing.T) {
	k1 := DeriveSessionKey("hunter2", []byte("saltsaltsaltsalt"))
	k2 := DeriveSessionKey("hunter2", []byte("differentsaltxxx"))
	if string(k1) == string(k2) {
		t.Fatalf("expected different keys for different salts")
	}
}

func TestChallengeResponseRoundTrip(t *testing.T) {
	key := DeriveSessionKey("hunter2", []byte("0123456789abcdef"))
	plaintext := []byte("server-issued-challenge-bytes")

	enc, err := EncryptChallengeResponse(key, plaintext)
	if err != nil {
		t.Fatalf("EncryptChallengeResponse: %v", err)
	}
	dec, err := DecryptServerVerifier(key, enc)
	if err != nil {
		t.Fatalf("DecryptServerVerifier: %v", err)
	}
	if string(dec) != string(plaintext) {
		t.Fatalf("round trip mismatch: got %q, want %q", dec, plaintext)
	}
}

func TestDecryptServerVerifierRejectsShortBlob(t *testing.T) {
	key := DeriveSessionKey("hunter2", []byte("0123456789abcdef"))
	if _, err := DecryptServerVerifier(key, []byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error decrypting a too-short blob")
	}
}

func TestPKCS7PadUnpadRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 15, 16, 17, 31} {
		in := make([]byte, n)
		for i := range in {
			in[i] = byte(i)
		}
		padded := pkcs7Pad(in, 16)
		if len(padded)%16 != 0 {
			t.Fatalf("padded length %d not a multiple of 16", len(padded))
		}
		unpadded, err := pkcs7Unpad(padded)
		if err != nil {
			t.Fatalf("pkcs7Unpad: %v", err)
		}
		if len(unpadded) != n {
			t.Fatalf("unpadded length %d, want %d", len(unpadded), n)
		}
	}
}
