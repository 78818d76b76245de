// Package envelope implements the authenticated-encryption envelope
// written back by the secured echo server.
//
// An envelope is laid out as
//
//	nonce (12 bytes) | ciphertext (len(plaintext) bytes) | tag (16 bytes)
//
// and is produced with AES-256 in GCM mode. A fresh random nonce is drawn
// for every sealed message.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	// KeySize is the AES-256 key length.
	KeySize = 32

	// NonceSize is the GCM nonce length carried at the head of an envelope.
	NonceSize = 12

	// TagSize is the GCM authentication tag length carried at the tail.
	TagSize = 16

	// Overhead is the number of bytes an envelope adds to its plaintext.
	Overhead = NonceSize + TagSize
)

var (
	// ErrKeySize is returned when a key is not KeySize bytes long.
	ErrKeySize = errors.New("envelope: key must be 32 bytes")

	// ErrAuthentication is returned when an envelope is truncated or
	// fails tag verification.
	ErrAuthentication = errors.New("envelope: message authentication failed")
)

// Sealer seals and opens envelopes under a single key.
// A Sealer is safe for concurrent use.
type Sealer struct {
	aead cipher.AEAD

	// rand is the nonce source.
	rand io.Reader
}

// NewSealer returns a Sealer for a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("envelope: failed to create block cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("envelope: failed to create GCM: %w", err)
	}

	return &Sealer{
		aead: aead,
		rand: rand.Reader,
	}, nil
}

// Seal encrypts plaintext and returns nonce || ciphertext || tag.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	out := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	if _, err := io.ReadFull(s.rand, out); err != nil {
		return nil, fmt.Errorf("envelope: failed to generate nonce: %w", err)
	}

	return s.aead.Seal(out, out[:NonceSize], plaintext, nil), nil
}

// Open authenticates and decrypts an envelope produced by Seal.
func (s *Sealer) Open(envelope []byte) ([]byte, error) {
	if len(envelope) < Overhead {
		return nil, ErrAuthentication
	}

	nonce := envelope[:NonceSize]
	sealed := envelope[NonceSize:]

	plaintext, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuthentication
	}

	return plaintext, nil
}
