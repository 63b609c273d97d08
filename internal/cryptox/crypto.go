// Package cryptox seals cached data at rest with a key derived from a
// passphrase.
package cryptox

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Argon2id parameters.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	keyLen       = chacha20poly1305.KeySize
)

// ErrCiphertextTooShort is returned by Open for inputs shorter than a nonce.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// DeriveKey derives a symmetric key from passphrase and salt with Argon2id.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keyLen)
}

// Sealer encrypts with XChaCha20-Poly1305. Output is nonce || ciphertext.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a key from passphrase and salt and returns a Sealer.
func NewSealer(passphrase string, salt []byte) (*Sealer, error) {
	if passphrase == "" {
		return nil, errors.New("empty passphrase")
	}
	if len(salt) < 8 {
		return nil, errors.New("salt too short")
	}
	aead, err := chacha20poly1305.NewX(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext under a fresh random nonce.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n {
		return nil, ErrCiphertextTooShort
	}
	return s.aead.Open(nil, sealed[:n], sealed[n:], nil)
}
