// Package models defines server-side data models persisted in the database.
package models

import "time"

// Document is the mutable envelope around an append-only chain of versions.
type Document struct {
	ID          string
	Title       string
	Description string
	// Filename and MediaType mirror the head version.
	Filename  string
	MediaType string
	// CurrentVersionID points at the head version; empty only inside the
	// creation transaction.
	CurrentVersionID string
	CreatorID        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	IsDeleted        bool
}

// Identity is the authenticated caller as supplied by the auth layer.
// The store records it for attribution only.
type Identity struct {
	UserID string
	Role   string
}

// SearchFilter narrows SearchDocuments. Zero values mean "no constraint".
type SearchFilter struct {
	TitleContains string
	CreatorID     string
	// SortBy is one of created_at, updated_at, title; created_at by default.
	SortBy string
	// SortOrder is asc or desc; desc by default.
	SortOrder string
	Offset    int
	Limit     int
}

// Sort columns and orders accepted by SearchFilter.
const (
	SortByCreatedAt = "created_at"
	SortByUpdatedAt = "updated_at"
	SortByTitle     = "title"

	SortAsc  = "asc"
	SortDesc = "desc"

	DefaultSearchLimit = 100
)

// Normalize fills defaults and replaces unknown sort keys so the value can
// be used to build a query safely.
func (f SearchFilter) Normalize() SearchFilter {
	switch f.SortBy {
	case SortByCreatedAt, SortByUpdatedAt, SortByTitle:
	default:
		f.SortBy = SortByCreatedAt
	}
	if f.SortOrder != SortAsc {
		f.SortOrder = SortDesc
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Limit <= 0 {
		f.Limit = DefaultSearchLimit
	}
	return f
}
