package envelope

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// KeyInfo describes the session a key is requested for.
type KeyInfo struct {
	Authority string
	Path      string
}

// KeyProvider supplies the overlay key for a session.
// Implementations must be safe for concurrent use.
type KeyProvider interface {
	Key(info KeyInfo) ([]byte, error)
}

var (
	_ KeyProvider = StaticKey(nil)
	_ KeyProvider = (*HKDFKeys)(nil)
)

// StaticKey uses the same key for every session.
type StaticKey []byte

// Key returns a copy of the static key.
func (k StaticKey) Key(KeyInfo) ([]byte, error) {
	if len(k) != KeySize {
		return nil, ErrKeySize
	}
	key := make([]byte, KeySize)
	copy(key, k)
	return key, nil
}

// HKDFKeys derives a distinct key per session from a master secret using
// HKDF-SHA256. The session authority and path are bound into the info
// parameter, so both peers can derive the same key without exchanging it.
type HKDFKeys struct {
	Secret []byte
	Salt   []byte
}

// NewHKDFKeys returns an HKDF key provider. The salt may be empty.
func NewHKDFKeys(secret, salt []byte) (*HKDFKeys, error) {
	if len(secret) < KeySize {
		return nil, fmt.Errorf("envelope: HKDF secret must be at least %d bytes", KeySize)
	}
	return &HKDFKeys{Secret: secret, Salt: salt}, nil
}

// Key derives the key for info.
func (k *HKDFKeys) Key(info KeyInfo) ([]byte, error) {
	r := hkdf.New(sha256.New, k.Secret, k.Salt, hkdfInfo(info))

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("envelope: failed to derive key: %w", err)
	}
	return key, nil
}

func hkdfInfo(info KeyInfo) []byte {
	return []byte("wtecho aes-256-gcm " + info.Authority + info.Path)
}

// DefaultKey returns the well-known test key, the bytes 0x01 through 0x20.
// Clients decrypting the secured echo without configuration use it.
func DefaultKey() []byte {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i + 1)
	}
	return key
}

// ParseKey decodes a hex encoded key. Whitespace and an optional 0x or 0X
// prefix are ignored.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}

	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("envelope: invalid hex key: %w", err)
	}
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	return key, nil
}
