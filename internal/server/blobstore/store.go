// Package blobstore provides key-addressed storage of opaque ciphertext.
// Backends know nothing about documents, versions or chaining.
package blobstore

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Store is the blob collaborator of the document store.
//
// Get returns common.ErrorNotFound for an absent key. Delete of an absent
// key succeeds.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Backend names accepted by configuration.
const (
	BackendS3     = "s3"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// NewStorageKey allocates a fresh object key for a blob written on behalf
// of ownerID, partitioned by day:
//
//	documents/<owner>/2025/03/09/<uuid>
func NewStorageKey(ownerID string) string {
	d := time.Now().UTC()
	return fmt.Sprintf("documents/%s/%d/%02d/%02d/%s",
		url.PathEscape(ownerID), d.Year(), d.Month(), d.Day(), uuid.New())
}
