package cryptox

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dmitrijs2005/docvault/internal/common"
)

// Hash is a SHA-256 content fingerprint. It is unkeyed so anyone holding the
// plaintext can recompute it and audit the chain without trusting the store.
type Hash [common.HashSize]byte

// Digest returns the SHA-256 of plaintext.
func Digest(plaintext []byte) Hash {
	return Hash(sha256.Sum256(plaintext))
}

// String returns the lowercase hex form used in storage and on the wire.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseHash decodes the hex form produced by Hash.String.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("cryptox: parse hash: %w", err)
	}
	if len(b) != common.HashSize {
		return h, fmt.Errorf("cryptox: parse hash: want %d bytes, got %d", common.HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}
