package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/cryptox"
	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/server/blobstore"
	"github.com/dmitrijs2005/docvault/internal/server/chain"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/documents"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/repotest"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/versions"
)

var alice = models.Identity{UserID: "alice", Role: "editor"}

type env struct {
	store *DocumentStore
	db    *sql.DB
	blobs *blobstore.MemoryStore
}

func newEnv(t *testing.T, opts ...Option) env {
	t.Helper()
	return newEnvWith(t, repomanager.NewSQLiteRepositoryManager(), nil, opts...)
}

func newEnvWith(t *testing.T, rm repomanager.RepositoryManager, blobs blobstore.Store, opts ...Option) env {
	t.Helper()
	db := repotest.NewSQLite(t)
	mem := blobstore.NewMemoryStore()
	if blobs == nil {
		blobs = mem
	}
	box, err := cryptox.NewBox(common.GenerateRandByteArray(common.KeySize))
	require.NoError(t, err)
	return env{store: NewDocumentStore(db, rm, blobs, box, opts...), db: db, blobs: mem}
}

func (e env) create(t *testing.T, content string) *models.Document {
	t.Helper()
	doc, err := e.store.CreateDocument(context.Background(), CreateDocumentInput{
		Title: "Contract", Description: "signed copy", Filename: "contract.txt", MediaType: "text/plain",
		Content: []byte(content),
	}, alice)
	require.NoError(t, err)
	return doc
}

func (e env) add(t *testing.T, docID, content string) *models.DocumentVersion {
	t.Helper()
	v, err := e.store.AddVersion(context.Background(), docID, VersionInput{
		Filename: content + ".txt", MediaType: "text/plain", Content: []byte(content),
	}, alice)
	require.NoError(t, err)
	return v
}

func TestCreateThenAddThenCorrupt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	doc := e.create(t, "A")
	assert.NotEmpty(t, doc.CurrentVersionID)
	assert.Equal(t, "alice", doc.CreatorID)

	content, v1, err := e.store.GetCurrent(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("A"), content)
	assert.Equal(t, int64(1), v1.VersionNumber)
	assert.Equal(t, cryptox.Digest([]byte("A")), v1.ContentHash)
	assert.Nil(t, v1.PrevHash)

	v2 := e.add(t, doc.ID, "B")
	assert.Equal(t, int64(2), v2.VersionNumber)
	assert.Equal(t, cryptox.Digest([]byte("B")), v2.ContentHash)
	require.NotNil(t, v2.PrevHash)
	assert.Equal(t, cryptox.Digest([]byte("A")), *v2.PrevHash)

	report, err := e.store.VerifyIntegrity(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, IntegrityVerified, report.Detail)
	assert.Equal(t, 2, report.VersionCount)

	// flip one ciphertext bit of version 2
	blob, err := e.blobs.Get(ctx, v2.StorageKey)
	require.NoError(t, err)
	blob[0] ^= 0x01
	require.NoError(t, e.blobs.Put(ctx, v2.StorageKey, blob))

	_, _, err = e.store.GetVersion(ctx, doc.ID, v2.ID)
	assert.ErrorIs(t, err, common.ErrCorruptBlob)
	assert.ErrorIs(t, err, common.ErrAuthenticationFailure)

	content, _, err = e.store.GetVersion(ctx, doc.ID, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("A"), content)

	report, err = e.store.VerifyIntegrity(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, report.Valid, "metadata-only audit ignores blob corruption")
}

func TestAddVersion_SequentialNumbering(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	doc := e.create(t, "v1")

	const n = 6
	for i := 0; i < n; i++ {
		e.add(t, doc.ID, fmt.Sprintf("v%d", i+2))
	}

	list, err := e.store.ListVersions(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, list, n+1)
	for i, v := range list {
		assert.Equal(t, int64(i+1), v.VersionNumber)
		if i > 0 {
			assert.Equal(t, list[i-1].ContentHash, *v.PrevHash)
		}
	}
	require.NoError(t, chain.Validate(list))

	got, err := e.store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, list[n].ID, got.CurrentVersionID)
	assert.Equal(t, "v7.txt", got.Filename, "document mirrors the head file name")

	content, head, err := e.store.GetCurrent(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "v7", string(content))
	assert.Equal(t, int64(n+1), head.VersionNumber)
}

func TestAddVersion_ConcurrentWritersStayGapless(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	doc := e.create(t, "genesis")

	const m = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[int64]bool)
		errs    []error
	)
	for i := 0; i < m; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := e.store.AddVersion(ctx, doc.ID, VersionInput{
				Filename: "f.txt", MediaType: "text/plain", Content: []byte(fmt.Sprintf("writer %d", i)),
			}, alice)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers[v.VersionNumber] = true
		}(i)
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, numbers, m)
	for n := int64(2); n <= m+1; n++ {
		assert.True(t, numbers[n], "missing version %d", n)
	}

	report, err := e.store.VerifyIntegrity(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, report.Valid, report.Detail)
	assert.Equal(t, m+1, report.VersionCount)
	assert.Zero(t, e.store.locks.size())
}

func TestSoftDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	doc := e.create(t, "A")
	v2 := e.add(t, doc.ID, "B")

	require.NoError(t, e.store.SoftDelete(ctx, doc.ID))
	require.NoError(t, e.store.SoftDelete(ctx, doc.ID), "idempotent")

	_, _, err := e.store.GetCurrent(ctx, doc.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, _, err = e.store.GetVersion(ctx, doc.ID, v2.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = e.store.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = e.store.ListVersions(ctx, doc.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = e.store.AddVersion(ctx, doc.ID, VersionInput{Filename: "c", MediaType: "text/plain", Content: []byte("C")}, alice)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	title := "renamed"
	_, err = e.store.UpdateMetadata(ctx, doc.ID, &title, nil)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	found, err := e.store.SearchDocuments(ctx, models.SearchFilter{})
	require.NoError(t, err)
	assert.Empty(t, found)

	report, err := e.store.VerifyIntegrity(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, 2, report.VersionCount)
	assert.Equal(t, 2, e.blobs.Len(), "blobs are retained")

	assert.ErrorIs(t, e.store.SoftDelete(ctx, "missing"), common.ErrorNotFound)
}

func TestVerifyIntegrity_DetectsTamperedHash(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	doc := e.create(t, "A")
	e.add(t, doc.ID, "B")
	e.add(t, doc.ID, "C")

	_, err := e.db.ExecContext(ctx,
		`UPDATE document_versions SET content_hash = ? WHERE document_id = ? AND version_number = 2`,
		cryptox.Digest([]byte("forged")).String(), doc.ID)
	require.NoError(t, err)

	report, err := e.store.VerifyIntegrity(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Equal(t, "hash chain broken at version 3", report.Detail)
	assert.ErrorIs(t, report.Err, chain.ErrBrokenLink)
	assert.ErrorIs(t, report.Err, common.ErrIntegrityCompromised)

	_, err = e.store.VerifyIntegrity(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdateMetadata(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	doc := e.create(t, "A")

	before, err := e.store.ListVersions(ctx, doc.ID)
	require.NoError(t, err)

	title := "Renamed"
	got, err := e.store.UpdateMetadata(ctx, doc.ID, &title, nil)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, "signed copy", got.Description)

	desc := ""
	got, err = e.store.UpdateMetadata(ctx, doc.ID, nil, &desc)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Empty(t, got.Description)

	got, err = e.store.UpdateMetadata(ctx, doc.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)

	empty := ""
	_, err = e.store.UpdateMetadata(ctx, doc.ID, &empty, nil)
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = e.store.UpdateMetadata(ctx, "missing", &title, nil)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	after, err := e.store.ListVersions(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after, "versions are never touched")
}

func TestNotFound(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.create(t, "A")
	b := e.create(t, "B")

	_, _, err := e.store.GetVersion(ctx, a.ID, b.CurrentVersionID)
	assert.ErrorIs(t, err, common.ErrorNotFound, "version of another document")

	_, _, err = e.store.GetVersion(ctx, a.ID, "no-such-version")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, _, err = e.store.GetCurrent(ctx, "no-such-doc")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = e.store.AddVersion(ctx, "no-such-doc", VersionInput{Filename: "f", MediaType: "m"}, alice)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, 2, e.blobs.Len(), "nothing uploaded for a missing document")
}

func TestMissingBlobIsCorrupt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	doc := e.create(t, "A")

	_, v, err := e.store.GetCurrent(ctx, doc.ID)
	require.NoError(t, err)
	require.NoError(t, e.blobs.Delete(ctx, v.StorageKey))

	_, _, err = e.store.GetCurrent(ctx, doc.ID)
	assert.ErrorIs(t, err, common.ErrCorruptBlob)
	assert.NotErrorIs(t, err, common.ErrorNotFound)
}

func TestCorruptDocumentWithoutVersions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// a row that bypassed CreateDocument
	require.NoError(t, documents.NewSQLiteRepository(e.db).Insert(ctx, &models.Document{
		ID: "hollow", Title: "T", Filename: "f", MediaType: "m", CreatorID: "alice",
	}))

	_, err := e.store.AddVersion(ctx, "hollow", VersionInput{Filename: "f", MediaType: "m", Content: []byte("x")}, alice)
	assert.ErrorIs(t, err, common.ErrCorruptDocument)

	_, _, err = e.store.GetCurrent(ctx, "hollow")
	assert.ErrorIs(t, err, common.ErrCorruptDocument)

	report, err := e.store.VerifyIntegrity(ctx, "hollow")
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.ErrorIs(t, report.Err, chain.ErrEmptyChain)
}

func TestValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.store.CreateDocument(ctx, CreateDocumentInput{Filename: "f", MediaType: "m"}, alice)
	assert.ErrorIs(t, err, common.ErrorValidation, "title required")

	_, err = e.store.CreateDocument(ctx, CreateDocumentInput{Title: "t", Filename: "f", MediaType: "m"}, models.Identity{})
	assert.ErrorIs(t, err, common.ErrorValidation, "author required")

	doc := e.create(t, "A")
	_, err = e.store.AddVersion(ctx, doc.ID, VersionInput{MediaType: "m"}, alice)
	assert.ErrorIs(t, err, common.ErrorValidation, "filename required")

	assert.Equal(t, 1, e.blobs.Len())
}

func TestCreateDocument_EmptyContent(t *testing.T) {
	e := newEnv(t)
	doc := e.create(t, "")

	content, v, err := e.store.GetCurrent(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Empty(t, content)
	assert.Equal(t, cryptox.Digest(nil), v.ContentHash)
	assert.Zero(t, v.ByteSize)
}

func TestSearchDocuments(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, title := range []string{"Alpha plan", "beta plan", "Gamma"} {
		_, err := e.store.CreateDocument(ctx, CreateDocumentInput{
			Title: title, Filename: "f", MediaType: "text/plain", Content: []byte(title),
		}, alice)
		require.NoError(t, err)
	}
	_, err := e.store.CreateDocument(ctx, CreateDocumentInput{
		Title: "Bob plan", Filename: "f", MediaType: "text/plain",
	}, models.Identity{UserID: "bob"})
	require.NoError(t, err)

	got, err := e.store.SearchDocuments(ctx, models.SearchFilter{TitleContains: "PLAN", CreatorID: "alice", SortBy: "title", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Alpha plan", got[0].Title)
	assert.Equal(t, "beta plan", got[1].Title)

	got, err = e.store.SearchDocuments(ctx, models.SearchFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestVersionCache(t *testing.T) {
	e := newEnv(t, WithVersionCache(8))
	ctx := context.Background()
	doc := e.create(t, "A")
	require.Equal(t, 1, e.store.cache.Len())

	_, v, err := e.store.GetCurrent(ctx, doc.ID)
	require.NoError(t, err)
	v.Nonce[0] ^= 0xff
	v.OriginalFilename = "mutated"

	content, again, err := e.store.GetCurrent(ctx, doc.ID)
	require.NoError(t, err, "callers cannot corrupt cached rows")
	assert.Equal(t, []byte("A"), content)
	assert.Equal(t, "contract.txt", again.OriginalFilename)
}

// hookedManager lets a test intercept repositories handed to the store.
type hookedManager struct {
	repomanager.RepositoryManager
	docs     func(documents.Repository) documents.Repository
	versions func(versions.Repository) versions.Repository
}

func (m hookedManager) Documents(db dbx.DBTX) documents.Repository {
	r := m.RepositoryManager.Documents(db)
	if m.docs != nil {
		return m.docs(r)
	}
	return r
}

func (m hookedManager) Versions(db dbx.DBTX) versions.Repository {
	r := m.RepositoryManager.Versions(db)
	if m.versions != nil {
		return m.versions(r)
	}
	return r
}

type racingDocs struct {
	documents.Repository
}

func (racingDocs) UpdateCurrentVersion(ctx context.Context, id, expected, versionID, filename, mediaType string, at time.Time) error {
	return common.ErrConcurrencyConflict
}

type failingVersions struct {
	versions.Repository
}

func (failingVersions) Insert(ctx context.Context, v *models.DocumentVersion) error {
	return errors.New("disk full")
}

func TestAddVersion_LostCASIsConflict(t *testing.T) {
	race := false
	rm := hookedManager{
		RepositoryManager: repomanager.NewSQLiteRepositoryManager(),
		docs: func(r documents.Repository) documents.Repository {
			if race {
				return racingDocs{r}
			}
			return r
		},
	}
	e := newEnvWith(t, rm, nil)
	ctx := context.Background()
	doc := e.create(t, "A")

	race = true
	_, err := e.store.AddVersion(ctx, doc.ID, VersionInput{Filename: "b", MediaType: "text/plain", Content: []byte("B")}, alice)
	assert.ErrorIs(t, err, common.ErrConcurrencyConflict)
	race = false

	assert.Equal(t, 1, e.blobs.Len(), "uploaded blob is cleaned up")

	list, err := e.store.ListVersions(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1, "version insert rolled back with the pointer update")
}

func TestCreateDocument_TxFailureCleansBlob(t *testing.T) {
	rm := hookedManager{
		RepositoryManager: repomanager.NewSQLiteRepositoryManager(),
		versions: func(r versions.Repository) versions.Repository {
			return failingVersions{r}
		},
	}
	e := newEnvWith(t, rm, nil)
	ctx := context.Background()

	_, err := e.store.CreateDocument(ctx, CreateDocumentInput{Title: "t", Filename: "f", MediaType: "m", Content: []byte("x")}, alice)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrStorageIO)
	assert.Zero(t, e.blobs.Len())

	found, err := e.store.SearchDocuments(ctx, models.SearchFilter{})
	require.NoError(t, err)
	assert.Empty(t, found, "document insert rolled back")
}

type flakyBlobs struct {
	*blobstore.MemoryStore
	putErr    error
	deleteErr error
}

func (f *flakyBlobs) Put(ctx context.Context, key string, data []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.MemoryStore.Put(ctx, key, data)
}

func (f *flakyBlobs) Delete(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.MemoryStore.Delete(ctx, key)
}

func TestCreateDocument_BlobPutFailure(t *testing.T) {
	blobs := &flakyBlobs{MemoryStore: blobstore.NewMemoryStore(), putErr: errors.New("bucket unreachable")}
	e := newEnvWith(t, repomanager.NewSQLiteRepositoryManager(), blobs)
	ctx := context.Background()

	_, err := e.store.CreateDocument(ctx, CreateDocumentInput{Title: "t", Filename: "f", MediaType: "m"}, alice)
	assert.ErrorIs(t, err, common.ErrStorageIO)

	found, err := e.store.SearchDocuments(ctx, models.SearchFilter{})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestCleanupFailureIsNotFatal(t *testing.T) {
	blobs := &flakyBlobs{MemoryStore: blobstore.NewMemoryStore(), deleteErr: errors.New("delete denied")}
	rm := hookedManager{
		RepositoryManager: repomanager.NewSQLiteRepositoryManager(),
		versions: func(r versions.Repository) versions.Repository {
			return failingVersions{r}
		},
	}
	e := newEnvWith(t, rm, blobs)

	_, err := e.store.CreateDocument(context.Background(), CreateDocumentInput{Title: "t", Filename: "f", MediaType: "m"}, alice)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "delete denied", "the transaction error is reported, not the cleanup")
	assert.Equal(t, 1, blobs.Len(), "orphan stays behind")
}

func TestStorageError(t *testing.T) {
	assert.Nil(t, storageError(nil))
	assert.Equal(t, common.ErrorNotFound, storageError(common.ErrorNotFound))

	wrapped := fmt.Errorf("db error: %w", context.Canceled)
	assert.Equal(t, wrapped, storageError(wrapped))

	err := storageError(errors.New("connection reset"))
	assert.ErrorIs(t, err, common.ErrStorageIO)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "not_found", outcome(fmt.Errorf("x: %w", common.ErrorNotFound)))
	assert.Equal(t, "conflict", outcome(common.ErrConcurrencyConflict))
	assert.Equal(t, "integrity", outcome(common.ErrCorruptBlob))
	assert.Equal(t, "invalid", outcome(common.ErrorValidation))
	assert.Equal(t, "error", outcome(errors.New("x")))
}
