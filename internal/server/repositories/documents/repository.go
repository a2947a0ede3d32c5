package documents

import (
	"context"
	"time"

	"github.com/dmitrijs2005/docvault/internal/server/models"
)

// Repository persists document envelopes.
//
// Implementations return common.ErrorNotFound for missing rows and
// common.ErrConcurrencyConflict when UpdateCurrentVersion loses its
// compare-and-swap.
type Repository interface {
	Insert(ctx context.Context, d *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	// UpdateCurrentVersion moves the head pointer from expectedVersionID
	// ("" meaning none) to versionID and mirrors the head's file details.
	UpdateCurrentVersion(ctx context.Context, id, expectedVersionID, versionID, filename, mediaType string, at time.Time) error
	// UpdateMetadata changes title and/or description of a live document.
	UpdateMetadata(ctx context.Context, id string, title, description *string, at time.Time) error
	MarkDeleted(ctx context.Context, id string, at time.Time) error
	Search(ctx context.Context, f models.SearchFilter) ([]*models.Document, error)
}
