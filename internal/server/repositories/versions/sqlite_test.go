package versions_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/cryptox"
	"github.com/dmitrijs2005/docvault/internal/server/chain"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/documents"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/repotest"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/versions"
)

func newRepo(t *testing.T) *versions.SQLiteRepository {
	t.Helper()
	db := repotest.NewSQLite(t)
	now := time.Now()
	require.NoError(t, documents.NewSQLiteRepository(db).Insert(context.Background(), &models.Document{
		ID: "d1", Title: "T", Filename: "a", MediaType: "text/plain", CreatorID: "u1", CreatedAt: now, UpdatedAt: now,
	}))
	return versions.NewSQLiteRepository(db)
}

func appendVersion(t *testing.T, repo *versions.SQLiteRepository, prev *models.DocumentVersion, id string, content []byte) *models.DocumentVersion {
	t.Helper()
	n := int64(1)
	if prev != nil {
		n = prev.VersionNumber + 1
	}
	v := &models.DocumentVersion{
		ID: id, DocumentID: "d1", VersionNumber: n,
		ContentHash: cryptox.Digest(content), PrevHash: chain.NextLink(prev),
		StorageKey: "k/" + id, Nonce: []byte("0123456789ab"), ByteSize: int64(len(content)),
		OriginalFilename: id + ".txt", MediaType: "text/plain", CreatedBy: "u1",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		Metadata:  map[string]string{"original_name": id + ".txt"},
	}
	require.NoError(t, repo.Insert(context.Background(), v))
	return v
}

func TestSQLite_RoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	v1 := appendVersion(t, repo, nil, "v1", []byte("A"))
	v2 := appendVersion(t, repo, v1, "v2", []byte("B"))

	got, err := repo.GetByID(ctx, "v2")
	require.NoError(t, err)
	assert.Equal(t, v2, got)

	head, err := repo.Head(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "v2", head.ID)

	list, err := repo.ListByDocument(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.NoError(t, chain.Validate(list))

	_, err = repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = repo.Head(ctx, "other")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLite_DuplicateNumberIsConflict(t *testing.T) {
	repo := newRepo(t)

	v1 := appendVersion(t, repo, nil, "v1", []byte("A"))
	appendVersion(t, repo, v1, "v2", []byte("B"))

	dup := &models.DocumentVersion{
		ID: "v2-racer", DocumentID: "d1", VersionNumber: 2,
		ContentHash: cryptox.Digest([]byte("C")), PrevHash: chain.NextLink(v1),
		StorageKey: "k/racer", Nonce: []byte("0123456789ab"), ByteSize: 1,
		OriginalFilename: "c", MediaType: "text/plain", CreatedBy: "u2", CreatedAt: time.Now(),
	}
	err := repo.Insert(context.Background(), dup)
	assert.ErrorIs(t, err, common.ErrConcurrencyConflict)
}

func TestSQLite_ForeignKeyEnforced(t *testing.T) {
	repo := newRepo(t)

	v := &models.DocumentVersion{
		ID: "orphan", DocumentID: "no-such-doc", VersionNumber: 1,
		ContentHash: cryptox.Digest(nil), StorageKey: "k", Nonce: []byte("0123456789ab"),
		OriginalFilename: "x", MediaType: "m", CreatedBy: "u", CreatedAt: time.Now(),
	}
	err := repo.Insert(context.Background(), v)
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrConcurrencyConflict)
}
