// Package chain builds and audits the hash links between consecutive
// versions of a document. It only looks at metadata: nothing here reads
// blobs or decrypts.
package chain

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/cryptox"
	"github.com/dmitrijs2005/docvault/internal/server/models"
)

// Reasons a chain fails validation.
var (
	ErrEmptyChain     = errors.New("empty chain")
	ErrInvalidGenesis = errors.New("invalid genesis")
	ErrBrokenLink     = errors.New("broken link")
)

// Error reports where and why a chain failed. It matches both its Reason
// and common.ErrIntegrityCompromised under errors.Is.
type Error struct {
	Reason error
	// At is the version number of the offending version, 0 for an empty chain.
	At int64
}

func (e *Error) Error() string {
	switch {
	case errors.Is(e.Reason, ErrEmptyChain):
		return "document has no versions"
	case errors.Is(e.Reason, ErrInvalidGenesis):
		return fmt.Sprintf("first version (%d) has a previous hash set", e.At)
	default:
		return fmt.Sprintf("hash chain broken at version %d", e.At)
	}
}

func (e *Error) Unwrap() []error {
	return []error{e.Reason, common.ErrIntegrityCompromised}
}

// NextLink returns the prev_hash for the version that follows prev: nil when
// there is no predecessor, otherwise a copy of its content hash.
func NextLink(prev *models.DocumentVersion) *cryptox.Hash {
	if prev == nil {
		return nil
	}
	h := prev.ContentHash
	return &h
}

// Validate checks a document's versions, which must be ordered by ascending
// version number. It stops at the first failure.
func Validate(versions []models.DocumentVersion) error {
	if len(versions) == 0 {
		return &Error{Reason: ErrEmptyChain}
	}

	if versions[0].PrevHash != nil {
		return &Error{Reason: ErrInvalidGenesis, At: versions[0].VersionNumber}
	}

	for i := 1; i < len(versions); i++ {
		cur, prev := &versions[i], &versions[i-1]

		// numbering must be gapless as well as linked
		if cur.VersionNumber != prev.VersionNumber+1 {
			return &Error{Reason: ErrBrokenLink, At: cur.VersionNumber}
		}
		if cur.PrevHash == nil || *cur.PrevHash != prev.ContentHash {
			return &Error{Reason: ErrBrokenLink, At: cur.VersionNumber}
		}
	}

	return nil
}
