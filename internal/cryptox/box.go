// Package cryptox holds the symmetric primitives of the store: an AES-256-GCM
// box bound to a single process-lifetime key, the SHA-256 content hasher used
// as the chain-link value, and argon2id key derivation for operators who
// supply a passphrase instead of a raw key.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/dmitrijs2005/docvault/internal/common"
	"golang.org/x/crypto/argon2"
)

// Box seals and opens whole payloads with AES-256-GCM.
//
// The key is fixed when the Box is built and shared read-only by every call.
// Nonces are drawn from crypto/rand inside Seal; the API offers no way to
// seal under a caller-chosen nonce.
type Box struct {
	aead cipher.AEAD
}

// NewBox builds a Box for a 256-bit key. Any other key length is rejected so
// ciphertext stays interoperable with data sealed earlier.
func NewBox(key []byte) (*Box, error) {
	if len(key) != common.KeySize {
		return nil, fmt.Errorf("cryptox: key must be %d bytes, got %d", common.KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCMWithNonceSize(block, common.NonceSize)
	if err != nil {
		return nil, err
	}

	return &Box{aead: aead}, nil
}

// Seal encrypts plaintext under a fresh random 96-bit nonce.
//
// Returns:
//   - ciphertext: the encrypted payload with the 16-byte GCM tag appended.
//   - nonce: the 12-byte nonce that must be stored next to the ciphertext.
//   - err: non-nil only if the random source fails.
func (b *Box) Seal(plaintext []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("cryptox: nonce: %w", err)
	}

	ciphertext = b.aead.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Open decrypts ciphertext sealed by Seal.
//
// Any tag mismatch (wrong key, wrong nonce, modified ciphertext) yields
// common.ErrAuthenticationFailure and a nil plaintext; GCM never releases
// unauthenticated bytes.
func (b *Box) Open(ciphertext, nonce []byte) ([]byte, error) {
	if len(nonce) != b.aead.NonceSize() {
		return nil, fmt.Errorf("%w: nonce must be %d bytes, got %d",
			common.ErrAuthenticationFailure, b.aead.NonceSize(), len(nonce))
	}

	plaintext, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, common.ErrAuthenticationFailure
	}

	return plaintext, nil
}

// DeriveKey stretches a passphrase into a 256-bit key with argon2id.
// It is meant to run once at startup; the same passphrase and salt always
// produce the same key.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, common.KeySize)
}
