package versions

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/docvault/internal/cryptox"
	"github.com/dmitrijs2005/docvault/internal/server/models"
)

const columns = `id, document_id, version_number, content_hash, prev_hash, storage_key, nonce, byte_size, original_filename, media_type, created_by, created_at, metadata`

type scanner interface {
	Scan(dest ...any) error
}

// row holds the column values that need conversion after a scan.
type row struct {
	contentHash string
	prevHash    sql.NullString
	metadata    sql.NullString
}

func (r row) apply(v *models.DocumentVersion) error {
	h, err := cryptox.ParseHash(r.contentHash)
	if err != nil {
		return fmt.Errorf("content_hash: %w", err)
	}
	v.ContentHash = h

	if r.prevHash.Valid {
		p, err := cryptox.ParseHash(r.prevHash.String)
		if err != nil {
			return fmt.Errorf("prev_hash: %w", err)
		}
		v.PrevHash = &p
	}

	if r.metadata.Valid && r.metadata.String != "" {
		if err := json.Unmarshal([]byte(r.metadata.String), &v.Metadata); err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
	}
	return nil
}

func prevHashValue(p *cryptox.Hash) any {
	if p == nil {
		return nil
	}
	return p.String()
}

func metadataValue(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
