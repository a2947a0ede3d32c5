package versions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/server/models"
)

// SQLiteRepository implements Repository on SQLite. created_at is stored
// as Unix microseconds.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository constructs a repository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, v *models.DocumentVersion) error {
	meta, err := metadataValue(v.Metadata)
	if err != nil {
		return fmt.Errorf("metadata: %w", err)
	}

	query := `INSERT INTO document_versions (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		v.ID, v.DocumentID, v.VersionNumber, v.ContentHash.String(), prevHashValue(v.PrevHash),
		v.StorageKey, v.Nonce, v.ByteSize, v.OriginalFilename, v.MediaType, v.CreatedBy,
		v.CreatedAt.UnixMicro(), meta)
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrConcurrencyConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.DocumentVersion, error) {
	query := `SELECT ` + columns + ` FROM document_versions WHERE id = ?`
	return r.one(ctx, query, id)
}

func (r *SQLiteRepository) Head(ctx context.Context, documentID string) (*models.DocumentVersion, error) {
	query := `SELECT ` + columns + ` FROM document_versions WHERE document_id = ? ORDER BY version_number DESC LIMIT 1`
	return r.one(ctx, query, documentID)
}

func (r *SQLiteRepository) ListByDocument(ctx context.Context, documentID string) ([]models.DocumentVersion, error) {
	query := `SELECT ` + columns + ` FROM document_versions WHERE document_id = ? ORDER BY version_number ASC`

	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.DocumentVersion
	for rows.Next() {
		v, err := scanSQLite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) one(ctx context.Context, query string, arg any) (*models.DocumentVersion, error) {
	v, err := scanSQLite(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return v, nil
}

func scanSQLite(s scanner) (*models.DocumentVersion, error) {
	var (
		v       models.DocumentVersion
		raw     row
		created int64
	)
	err := s.Scan(&v.ID, &v.DocumentID, &v.VersionNumber, &raw.contentHash, &raw.prevHash,
		&v.StorageKey, &v.Nonce, &v.ByteSize, &v.OriginalFilename, &v.MediaType, &v.CreatedBy,
		&created, &raw.metadata)
	if err != nil {
		return nil, err
	}
	v.CreatedAt = time.UnixMicro(created).UTC()
	if err := raw.apply(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	// Extended result codes may be off; fall back to the primary code.
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}
