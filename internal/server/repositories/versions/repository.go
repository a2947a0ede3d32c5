package versions

import (
	"context"

	"github.com/dmitrijs2005/docvault/internal/server/models"
)

// Repository persists immutable version rows. Rows are never updated.
type Repository interface {
	// Insert returns common.ErrConcurrencyConflict when (document_id,
	// version_number) is already taken.
	Insert(ctx context.Context, v *models.DocumentVersion) error
	GetByID(ctx context.Context, id string) (*models.DocumentVersion, error)
	// ListByDocument returns every version ordered by version number.
	ListByDocument(ctx context.Context, documentID string) ([]models.DocumentVersion, error)
	// Head returns the version with the highest number.
	Head(ctx context.Context, documentID string) (*models.DocumentVersion, error)
}
