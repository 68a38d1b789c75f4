package ttc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/oracleco/go-ttcdriver/internal/wire"
)

// AuthMode mirrors the connect() `mode` parameter (§6): the server
// privilege/session class requested during authentication.
type AuthMode int

const (
	AuthModeDefault AuthMode = iota
	AuthModePrelim
	AuthModeSysDBA
	AuthModeSysOper
	AuthModeSysASM
	AuthModeSysBKP
	AuthModeSysDGD
	AuthModeSysKMT
	AuthModeSysRAC
)

// Purity mirrors the connect() `purity` parameter used for DRCP
// session pinning decisions (§6, supplemented feature 3).
type Purity int

const (
	PurityDefault Purity = iota
	PurityNew
	PuritySelf
)

const (
	pbkdf2Iterations = 4096
	pbkdf2KeyLen     = 32 // AES-256
	verifierSaltLen  = 16
)

// AuthRound1Message requests the server's per-session salt/verifier
// material for a given username (§4.F phase two: "Auth round 1").
type AuthRound1Message struct {
	Username string
	// ProxyUser, when set, authenticates as Username but opens the
	// session as ProxyUser (supplemented feature: proxy authentication).
	ProxyUser string

	ServerSalt     []byte
	ServerVerifier []byte
	SessionKey     []byte
	done           bool
}

func (m *AuthRound1Message) Encode(w *wire.WriteBuffer) error {
	if err := w.WriteUint8(wire.MsgFunction); err != nil {
		return err
	}
	if err := w.WriteUint8(authFuncRound1); err != nil {
		return err
	}
	user := m.Username
	if m.ProxyUser != "" {
		user = m.ProxyUser
	}
	return w.WriteString(SanitizeCID(user))
}

func (m *AuthRound1Message) Decode(r *wire.ReadBuffer) error {
	if _, err := r.ReadUint8(); err != nil {
		return err
	}
	salt, err := r.ReadBytesShort()
	if err != nil {
		return err
	}
	verifier, err := r.ReadBytesShort()
	if err != nil {
		return err
	}
	m.ServerSalt = salt
	m.ServerVerifier = verifier
	m.done = true
	return nil
}

func (m *AuthRound1Message) Retry() bool         { return false }
func (m *AuthRound1Message) FlushOutBinds() bool { return false }

// DeriveSessionKey computes the AES-256 session key from the user's
// password and the server-supplied salt via PBKDF2-HMAC-SHA256,
// matching the challenge/response shape described in §4.F ("Auth round
// 1/round 2 with PBKDF2 + AES-CBC challenge/response").
func DeriveSessionKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
}

// EncryptChallengeResponse AES-CBC encrypts the round-2 challenge
// response under the derived session key with a fresh random IV,
// returning iv||ciphertext.
func EncryptChallengeResponse(sessionKey, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("ttc: building AES cipher: %w", err)
	}
	padded := pkcs7Pad(plaintext, block.BlockSize())
	iv := make([]byte, block.BlockSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("ttc: generating IV: %w", err)
	}
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return append(iv, out...), nil
}

// DecryptServerVerifier AES-CBC decrypts a server verifier blob
// (iv||ciphertext) under the derived session key.
func DecryptServerVerifier(sessionKey, blob []byte) ([]byte, error) {
	block, err := aes.NewCipher(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("ttc: building AES cipher: %w", err)
	}
	bs := block.BlockSize()
	if len(blob) < bs || (len(blob)-bs)%bs != 0 {
		return nil, fmt.Errorf("ttc: malformed verifier blob length %d", len(blob))
	}
	iv, ct := blob[:bs], blob[bs:]
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)
	return pkcs7Unpad(out)
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	padLen := blockSize - len(b)%blockSize
	pad := make([]byte, padLen)
	for i := range pad {
		pad[i] = byte(padLen)
	}
	return append(append([]byte(nil), b...), pad...)
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("ttc: empty PKCS7 payload")
	}
	padLen := int(b[len(b)-1])
	if padLen == 0 || padLen > len(b) {
		return nil, fmt.Errorf("ttc: invalid PKCS7 padding length %d", padLen)
	}
	return b[:len(b)-padLen], nil
}

// AuthRound2Message is the password challenge response, plus session
// attributes (program, terminal, purity, mode, token) encoded as an
// AUTH key/value vector (§4.F phase two: "Auth round 2").
type AuthRound2Message struct {
	Username       string
	EncryptedAuth  []byte // from EncryptChallengeResponse
	SessionKeyHint []byte // opaque key material echoed for server verification
	Mode           AuthMode
	Purity         Purity
	Program        string
	Terminal       string
	Machine        string
	// AccessToken, when set, authenticates via an IAM/OAuth token
	// instead of a password (supplemented feature: token-based auth);
	// EncryptedAuth is left empty in that case.
	AccessToken string

	ServerVerifier []byte
	SessionID      uint32
	SerialNum      uint16
	done           bool
}

func (m *AuthRound2Message) Encode(w *wire.WriteBuffer) error {
	if err := w.WriteUint8(wire.MsgFunction); err != nil {
		return err
	}
	if err := w.WriteUint8(authFuncRound2); err != nil {
		return err
	}
	if err := w.WriteString(SanitizeCID(m.Username)); err != nil {
		return err
	}
	if m.AccessToken != "" {
		if err := w.WriteUint8(authKindToken); err != nil {
			return err
		}
		if err := w.WriteString(m.AccessToken); err != nil {
			return err
		}
	} else {
		if err := w.WriteUint8(authKindPassword); err != nil {
			return err
		}
		if err := w.WriteBytesShort(m.EncryptedAuth); err != nil {
			return err
		}
	}
	if err := w.WriteUint8(byte(m.Mode)); err != nil {
		return err
	}
	if err := w.WriteUint8(byte(m.Purity)); err != nil {
		return err
	}
	if err := w.WriteString(BuildCID(m.Program, m.Machine, m.Username)); err != nil {
		return err
	}
	return w.WriteString(SanitizeCID(m.Terminal))
}

func (m *AuthRound2Message) Decode(r *wire.ReadBuffer) error {
	if _, err := r.ReadUint8(); err != nil {
		return err
	}
	verifier, err := r.ReadBytesShort()
	if err != nil {
		return err
	}
	sessionID, err := r.ReadUint32()
	if err != nil {
		return err
	}
	serial, err := r.ReadUint16()
	if err != nil {
		return err
	}
	m.ServerVerifier = verifier
	m.SessionID = sessionID
	m.SerialNum = serial
	m.done = true
	return nil
}

func (m *AuthRound2Message) Retry() bool         { return false }
func (m *AuthRound2Message) FlushOutBinds() bool { return false }

// Auth function sub-codes and kind tags. These are this core's own
// internal tags for the AuthRound1/2 FUNCTION sub-messages, not a
// claim about the exact byte values a real server expects — see
// DESIGN.md for the grounding note on this component.
const (
	authFuncRound1   byte = 0x76
	authFuncRound2   byte = 0x73
	authKindPassword byte = 1
	authKindToken    byte = 2
)
