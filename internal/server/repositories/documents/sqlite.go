package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/server/models"
)

// SQLiteRepository implements Repository on SQLite. Timestamps are stored
// as Unix microseconds and booleans as 0/1.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository constructs a repository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, d *models.Document) error {
	query := `INSERT INTO documents (id, title, description, filename, media_type, current_version_id, creator_id, created_at, updated_at, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.Title, d.Description, d.Filename, d.MediaType, dbx.NullString(d.CurrentVersionID),
		d.CreatorID, d.CreatedAt.UnixMicro(), d.UpdatedAt.UnixMicro(), d.IsDeleted)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + columns + ` FROM documents WHERE id = ?`

	d, err := scanSQLite(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

func (r *SQLiteRepository) UpdateCurrentVersion(ctx context.Context, id, expectedVersionID, versionID, filename, mediaType string, at time.Time) error {
	query := `UPDATE documents
		SET current_version_id = ?, filename = ?, media_type = ?, updated_at = ?
		WHERE id = ? AND current_version_id IS ? AND NOT is_deleted`

	res, err := r.db.ExecContext(ctx, query, versionID, filename, mediaType, at.UnixMicro(), id, dbx.NullString(expectedVersionID))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res, common.ErrConcurrencyConflict)
}

func (r *SQLiteRepository) UpdateMetadata(ctx context.Context, id string, title, description *string, at time.Time) error {
	query := `UPDATE documents
		SET title = COALESCE(?, title), description = COALESCE(?, description), updated_at = ?
		WHERE id = ? AND NOT is_deleted`

	res, err := r.db.ExecContext(ctx, query, title, description, at.UnixMicro(), id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res, common.ErrorNotFound)
}

func (r *SQLiteRepository) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE documents SET is_deleted = 1, updated_at = ? WHERE id = ? AND NOT is_deleted`

	res, err := r.db.ExecContext(ctx, query, at.UnixMicro(), id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res, common.ErrorNotFound)
}

func (r *SQLiteRepository) Search(ctx context.Context, f models.SearchFilter) ([]*models.Document, error) {
	query, args := searchQuery(f, "LIKE", func(int) string { return "?" })

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Document
	for rows.Next() {
		d, err := scanSQLite(rows)
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

func scanSQLite(s scanner) (*models.Document, error) {
	var (
		d                models.Document
		current          sql.NullString
		created, updated int64
	)
	err := s.Scan(&d.ID, &d.Title, &d.Description, &d.Filename, &d.MediaType, &current,
		&d.CreatorID, &created, &updated, &d.IsDeleted)
	if err != nil {
		return nil, err
	}
	d.CurrentVersionID = current.String
	d.CreatedAt = time.UnixMicro(created).UTC()
	d.UpdatedAt = time.UnixMicro(updated).UTC()
	return &d, nil
}
