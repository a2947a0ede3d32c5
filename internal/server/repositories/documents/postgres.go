// Package documents provides repositories for document envelopes on
// PostgreSQL and SQLite.
package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert adds a new document row.
func (r *PostgresRepository) Insert(ctx context.Context, d *models.Document) error {
	query := `INSERT INTO documents (id, title, description, filename, media_type, current_version_id, creator_id, created_at, updated_at, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.Title, d.Description, d.Filename, d.MediaType, dbx.NullString(d.CurrentVersionID),
		d.CreatorID, d.CreatedAt, d.UpdatedAt, d.IsDeleted)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID returns the document regardless of its deleted flag.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + columns + ` FROM documents WHERE id = $1`

	d, err := scanPostgres(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

// UpdateCurrentVersion is a compare-and-swap on current_version_id.
func (r *PostgresRepository) UpdateCurrentVersion(ctx context.Context, id, expectedVersionID, versionID, filename, mediaType string, at time.Time) error {
	query := `UPDATE documents
		SET current_version_id = $1, filename = $2, media_type = $3, updated_at = $4
		WHERE id = $5 AND current_version_id IS NOT DISTINCT FROM $6 AND NOT is_deleted`

	res, err := r.db.ExecContext(ctx, query, versionID, filename, mediaType, at, id, dbx.NullString(expectedVersionID))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res, common.ErrConcurrencyConflict)
}

// UpdateMetadata sets the non-nil fields on a live document.
func (r *PostgresRepository) UpdateMetadata(ctx context.Context, id string, title, description *string, at time.Time) error {
	query := `UPDATE documents
		SET title = COALESCE($1, title), description = COALESCE($2, description), updated_at = $3
		WHERE id = $4 AND NOT is_deleted`

	res, err := r.db.ExecContext(ctx, query, title, description, at, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res, common.ErrorNotFound)
}

// MarkDeleted flags a live document as deleted. A document that is absent
// or already deleted yields common.ErrorNotFound.
func (r *PostgresRepository) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE documents SET is_deleted = TRUE, updated_at = $1 WHERE id = $2 AND NOT is_deleted`

	res, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res, common.ErrorNotFound)
}

// Search lists live documents matching f.
func (r *PostgresRepository) Search(ctx context.Context, f models.SearchFilter) ([]*models.Document, error) {
	query, args := searchQuery(f, "ILIKE", func(n int) string { return "$" + strconv.Itoa(n) })

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Document
	for rows.Next() {
		d, err := scanPostgres(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPostgres(s scanner) (*models.Document, error) {
	var (
		d       models.Document
		current sql.NullString
	)
	err := s.Scan(&d.ID, &d.Title, &d.Description, &d.Filename, &d.MediaType, &current,
		&d.CreatorID, &d.CreatedAt, &d.UpdatedAt, &d.IsDeleted)
	if err != nil {
		return nil, err
	}
	d.CurrentVersionID = current.String
	return &d, nil
}
