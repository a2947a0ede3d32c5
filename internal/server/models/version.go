package models

import (
	"time"

	"github.com/dmitrijs2005/docvault/internal/cryptox"
)

// DocumentVersion is one immutable link of a document's chain. The
// ciphertext lives in object storage under StorageKey.
type DocumentVersion struct {
	ID         string
	DocumentID string
	// VersionNumber is 1-based and gapless per document.
	VersionNumber int64

	// ContentHash is the SHA-256 of the plaintext of this version.
	ContentHash cryptox.Hash
	// PrevHash equals ContentHash of version VersionNumber-1; nil for version 1.
	PrevHash *cryptox.Hash

	StorageKey string
	// Nonce is the AEAD nonce used to seal the blob.
	Nonce []byte

	ByteSize         int64
	OriginalFilename string
	MediaType        string
	CreatedBy        string
	CreatedAt        time.Time

	// Metadata is optional descriptive data outside the chain; never validated.
	Metadata map[string]string
}

// Clone returns a deep copy so cached rows cannot be mutated by callers.
func (v *DocumentVersion) Clone() *DocumentVersion {
	c := *v
	if v.PrevHash != nil {
		h := *v.PrevHash
		c.PrevHash = &h
	}
	c.Nonce = append([]byte(nil), v.Nonce...)
	if v.Metadata != nil {
		c.Metadata = make(map[string]string, len(v.Metadata))
		for k, val := range v.Metadata {
			c.Metadata[k] = val
		}
	}
	return &c
}

// IntegrityReport is the outcome of a chain audit.
type IntegrityReport struct {
	Valid        bool
	Detail       string
	VersionCount int
	// Err is the chain error when Valid is false.
	Err error
}
