// Package versions provides repositories for document version rows on
// PostgreSQL and SQLite.
package versions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/server/models"
)

const pgUniqueViolation = "23505"

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert adds a version row. A duplicate version number for the document
// is reported as common.ErrConcurrencyConflict.
func (r *PostgresRepository) Insert(ctx context.Context, v *models.DocumentVersion) error {
	meta, err := metadataValue(v.Metadata)
	if err != nil {
		return fmt.Errorf("metadata: %w", err)
	}

	query := `INSERT INTO document_versions (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.db.ExecContext(ctx, query,
		v.ID, v.DocumentID, v.VersionNumber, v.ContentHash.String(), prevHashValue(v.PrevHash),
		v.StorageKey, v.Nonce, v.ByteSize, v.OriginalFilename, v.MediaType, v.CreatedBy, v.CreatedAt, meta)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return common.ErrConcurrencyConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID returns a single version.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.DocumentVersion, error) {
	query := `SELECT ` + columns + ` FROM document_versions WHERE id = $1`
	return r.one(ctx, query, id)
}

// Head returns the latest version of a document.
func (r *PostgresRepository) Head(ctx context.Context, documentID string) (*models.DocumentVersion, error) {
	query := `SELECT ` + columns + ` FROM document_versions WHERE document_id = $1 ORDER BY version_number DESC LIMIT 1`
	return r.one(ctx, query, documentID)
}

// ListByDocument returns the whole chain in ascending order.
func (r *PostgresRepository) ListByDocument(ctx context.Context, documentID string) ([]models.DocumentVersion, error) {
	query := `SELECT ` + columns + ` FROM document_versions WHERE document_id = $1 ORDER BY version_number ASC`

	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.DocumentVersion
	for rows.Next() {
		v, err := scanPostgres(rows)
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

func (r *PostgresRepository) one(ctx context.Context, query string, arg any) (*models.DocumentVersion, error) {
	v, err := scanPostgres(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return v, nil
}

func scanPostgres(s scanner) (*models.DocumentVersion, error) {
	var (
		v   models.DocumentVersion
		raw row
	)
	err := s.Scan(&v.ID, &v.DocumentID, &v.VersionNumber, &raw.contentHash, &raw.prevHash,
		&v.StorageKey, &v.Nonce, &v.ByteSize, &v.OriginalFilename, &v.MediaType, &v.CreatedBy,
		&v.CreatedAt, &raw.metadata)
	if err != nil {
		return nil, err
	}
	if err := raw.apply(&v); err != nil {
		return nil, err
	}
	return &v, nil
}
