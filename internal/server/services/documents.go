// Package services contains the document store: it hashes, encrypts and
// chains document versions over a blob store and a metadata database.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/cryptox"
	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/server/blobstore"
	"github.com/dmitrijs2005/docvault/internal/server/chain"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/repomanager"
)

// IntegrityVerified is the report detail of a valid chain.
const IntegrityVerified = "Document integrity verified"

// Cipher seals and opens blob contents. *cryptox.Box implements it.
type Cipher interface {
	Seal(plaintext []byte) (ciphertext, nonce []byte, err error)
	Open(ciphertext, nonce []byte) ([]byte, error)
}

// DocumentStore owns the version chains. It is safe for concurrent use;
// AddVersion calls on the same document are serialized in-process and
// guarded in the database by a compare-and-swap on the head pointer.
type DocumentStore struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blobstore.Store
	cipher      Cipher

	locks  *documentLocks
	cache  *versionCache
	logger logging.Logger
	now    func() time.Time
}

// Option configures a DocumentStore.
type Option func(*DocumentStore)

// WithLogger sets the logger; the default discards.
func WithLogger(l logging.Logger) Option {
	return func(s *DocumentStore) { s.logger = l.With("module", "documents") }
}

// WithVersionCache enables an LRU of version rows holding up to size entries.
func WithVersionCache(size int) Option {
	return func(s *DocumentStore) { s.cache = newVersionCache(size) }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *DocumentStore) { s.now = now }
}

func NewDocumentStore(db *sql.DB, repomanager repomanager.RepositoryManager, blobs blobstore.Store, cipher Cipher, opts ...Option) *DocumentStore {
	s := &DocumentStore{
		db:          db,
		repomanager: repomanager,
		blobs:       blobs,
		cipher:      cipher,
		locks:       newDocumentLocks(),
		logger:      logging.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDocument stores content as version 1 of a new document.
func (s *DocumentStore) CreateDocument(ctx context.Context, in CreateDocumentInput, who models.Identity) (doc *models.Document, err error) {
	defer observe("create_document", time.Now(), &err)

	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := validateIdentity(who); err != nil {
		return nil, err
	}

	now := s.timestamp()
	doc = &models.Document{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Filename:    in.Filename,
		MediaType:   in.MediaType,
		CreatorID:   who.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	v, err := s.writeVersion(ctx, doc.ID, nil, VersionInput{
		Filename:  in.Filename,
		MediaType: in.MediaType,
		Content:   in.Content,
		Metadata:  in.Metadata,
	}, who, now)
	if err != nil {
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		docs := s.repomanager.Documents(tx)
		if err := docs.Insert(ctx, doc); err != nil {
			return err
		}
		if err := s.repomanager.Versions(tx).Insert(ctx, v); err != nil {
			return err
		}
		return docs.UpdateCurrentVersion(ctx, doc.ID, "", v.ID, v.OriginalFilename, v.MediaType, now)
	})
	if err != nil {
		s.discardBlob(ctx, v.StorageKey, err)
		return nil, storageError(err)
	}

	doc.CurrentVersionID = v.ID
	s.cache.Add(v)
	s.logger.Info(ctx, "document created", "document_id", doc.ID, "version_id", v.ID, "bytes", v.ByteSize)
	return doc, nil
}

// AddVersion appends content as the next version of a live document.
func (s *DocumentStore) AddVersion(ctx context.Context, documentID string, in VersionInput, who models.Identity) (v *models.DocumentVersion, err error) {
	defer observe("add_version", time.Now(), &err)

	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := validateIdentity(who); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(documentID)
	defer unlock()

	if _, err := s.liveDocument(ctx, documentID); err != nil {
		return nil, err
	}

	head, err := s.repomanager.Versions(s.db).Head(ctx, documentID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: document %s has no versions", common.ErrCorruptDocument, documentID)
		}
		return nil, storageError(err)
	}

	now := s.timestamp()
	v, err = s.writeVersion(ctx, documentID, head, in, who, now)
	if err != nil {
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Versions(tx).Insert(ctx, v); err != nil {
			return err
		}
		return s.repomanager.Documents(tx).UpdateCurrentVersion(ctx, documentID, head.ID, v.ID, v.OriginalFilename, v.MediaType, now)
	})
	if err != nil {
		s.discardBlob(ctx, v.StorageKey, err)
		if errors.Is(err, common.ErrConcurrencyConflict) {
			s.logger.Warn(ctx, "lost head update race", "document_id", documentID, "version", v.VersionNumber)
		}
		return nil, storageError(err)
	}

	s.cache.Add(v)
	s.logger.Info(ctx, "version added", "document_id", documentID, "version_id", v.ID, "version", v.VersionNumber)
	return v, nil
}

// GetVersion decrypts one version of a live document.
func (s *DocumentStore) GetVersion(ctx context.Context, documentID, versionID string) (content []byte, v *models.DocumentVersion, err error) {
	defer observe("get_version", time.Now(), &err)

	if _, err := s.liveDocument(ctx, documentID); err != nil {
		return nil, nil, err
	}
	v, err = s.version(ctx, versionID)
	if err != nil {
		return nil, nil, err
	}
	if v.DocumentID != documentID {
		return nil, nil, fmt.Errorf("version %s of %s: %w", versionID, documentID, common.ErrorNotFound)
	}
	content, err = s.open(ctx, v)
	if err != nil {
		return nil, nil, err
	}
	return content, v, nil
}

// GetCurrent decrypts the head version of a live document.
func (s *DocumentStore) GetCurrent(ctx context.Context, documentID string) (content []byte, v *models.DocumentVersion, err error) {
	defer observe("get_current", time.Now(), &err)

	doc, err := s.liveDocument(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	if doc.CurrentVersionID == "" {
		return nil, nil, fmt.Errorf("%w: document %s has no head version", common.ErrCorruptDocument, documentID)
	}
	v, err = s.version(ctx, doc.CurrentVersionID)
	if err != nil {
		return nil, nil, err
	}
	content, err = s.open(ctx, v)
	if err != nil {
		return nil, nil, err
	}
	return content, v, nil
}

// GetDocument returns the envelope of a live document.
func (s *DocumentStore) GetDocument(ctx context.Context, documentID string) (doc *models.Document, err error) {
	defer observe("get_document", time.Now(), &err)
	return s.liveDocument(ctx, documentID)
}

// ListVersions returns the version rows of a live document, oldest first.
func (s *DocumentStore) ListVersions(ctx context.Context, documentID string) (list []models.DocumentVersion, err error) {
	defer observe("list_versions", time.Now(), &err)

	if _, err := s.liveDocument(ctx, documentID); err != nil {
		return nil, err
	}
	list, err = s.repomanager.Versions(s.db).ListByDocument(ctx, documentID)
	if err != nil {
		return nil, storageError(err)
	}
	return list, nil
}

// SearchDocuments lists live documents matching f.
func (s *DocumentStore) SearchDocuments(ctx context.Context, f models.SearchFilter) (docs []*models.Document, err error) {
	defer observe("search_documents", time.Now(), &err)

	docs, err = s.repomanager.Documents(s.db).Search(ctx, f.Normalize())
	if err != nil {
		return nil, storageError(err)
	}
	return docs, nil
}

// VerifyIntegrity audits the hash chain of a document from metadata alone.
// Soft-deleted documents are audited too. A broken chain is reported in
// the result, not as an error.
func (s *DocumentStore) VerifyIntegrity(ctx context.Context, documentID string) (report *models.IntegrityReport, err error) {
	defer observe("verify_integrity", time.Now(), &err)

	if _, err := s.repomanager.Documents(s.db).GetByID(ctx, documentID); err != nil {
		return nil, storageError(err)
	}
	list, err := s.repomanager.Versions(s.db).ListByDocument(ctx, documentID)
	if err != nil {
		return nil, storageError(err)
	}

	report = &models.IntegrityReport{Valid: true, Detail: IntegrityVerified, VersionCount: len(list)}
	if verr := chain.Validate(list); verr != nil {
		report.Valid = false
		report.Detail = verr.Error()
		report.Err = verr
		integrityFailuresTotal.Inc()
		s.logger.Warn(ctx, "integrity check failed", "document_id", documentID, "detail", report.Detail)
	}
	return report, nil
}

// SoftDelete hides a document from reads. Rows and blobs are retained.
// Deleting an already deleted document succeeds.
func (s *DocumentStore) SoftDelete(ctx context.Context, documentID string) (err error) {
	defer observe("soft_delete", time.Now(), &err)

	docs := s.repomanager.Documents(s.db)
	doc, err := docs.GetByID(ctx, documentID)
	if err != nil {
		return storageError(err)
	}
	if doc.IsDeleted {
		return nil
	}
	// NotFound here means a concurrent delete won.
	if err := docs.MarkDeleted(ctx, documentID, s.timestamp()); err != nil && !errors.Is(err, common.ErrorNotFound) {
		return storageError(err)
	}
	s.logger.Info(ctx, "document deleted", "document_id", documentID)
	return nil
}

// UpdateMetadata changes title and/or description; nil leaves a field as is.
func (s *DocumentStore) UpdateMetadata(ctx context.Context, documentID string, title, description *string) (doc *models.Document, err error) {
	defer observe("update_metadata", time.Now(), &err)

	if err := validateMetadataUpdate(title, description); err != nil {
		return nil, err
	}
	if title == nil && description == nil {
		return s.liveDocument(ctx, documentID)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		docs := s.repomanager.Documents(tx)
		if err := docs.UpdateMetadata(ctx, documentID, title, description, s.timestamp()); err != nil {
			return err
		}
		doc, err = docs.GetByID(ctx, documentID)
		return err
	})
	if err != nil {
		return nil, storageError(err)
	}
	return doc, nil
}

func (s *DocumentStore) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *DocumentStore) liveDocument(ctx context.Context, documentID string) (*models.Document, error) {
	doc, err := s.repomanager.Documents(s.db).GetByID(ctx, documentID)
	if err != nil {
		return nil, storageError(err)
	}
	if doc.IsDeleted {
		return nil, fmt.Errorf("document %s: %w", documentID, common.ErrorNotFound)
	}
	return doc, nil
}

func (s *DocumentStore) version(ctx context.Context, versionID string) (*models.DocumentVersion, error) {
	if v, ok := s.cache.Get(versionID); ok {
		return v, nil
	}
	v, err := s.repomanager.Versions(s.db).GetByID(ctx, versionID)
	if err != nil {
		return nil, storageError(err)
	}
	s.cache.Add(v)
	return v, nil
}

// writeVersion hashes, seals and uploads content and returns the row that
// links it after head. Nothing is written to the database.
func (s *DocumentStore) writeVersion(ctx context.Context, documentID string, head *models.DocumentVersion, in VersionInput, who models.Identity, now time.Time) (*models.DocumentVersion, error) {
	hash := cryptox.Digest(in.Content)

	ciphertext, nonce, err := s.cipher.Seal(in.Content)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}

	number := int64(1)
	if head != nil {
		number = head.VersionNumber + 1
	}

	v := &models.DocumentVersion{
		ID:               uuid.NewString(),
		DocumentID:       documentID,
		VersionNumber:    number,
		ContentHash:      hash,
		PrevHash:         chain.NextLink(head),
		StorageKey:       blobstore.NewStorageKey(who.UserID),
		Nonce:            nonce,
		ByteSize:         int64(len(in.Content)),
		OriginalFilename: in.Filename,
		MediaType:        in.MediaType,
		CreatedBy:        who.UserID,
		CreatedAt:        now,
		Metadata:         copyMetadata(in.Metadata),
	}

	if err := s.blobs.Put(ctx, v.StorageKey, ciphertext); err != nil {
		return nil, storageError(err)
	}
	bytesSealedTotal.Add(float64(len(in.Content)))
	return v, nil
}

func (s *DocumentStore) open(ctx context.Context, v *models.DocumentVersion) ([]byte, error) {
	ciphertext, err := s.blobs.Get(ctx, v.StorageKey)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: blob for version %d of %s is missing", common.ErrCorruptBlob, v.VersionNumber, v.DocumentID)
		}
		return nil, storageError(err)
	}
	plaintext, err := s.cipher.Open(ciphertext, v.Nonce)
	if err != nil {
		s.logger.Error(ctx, "blob failed authentication", "document_id", v.DocumentID, "version", v.VersionNumber, "storage_key", v.StorageKey)
		return nil, fmt.Errorf("%w: version %d of %s: %w", common.ErrCorruptBlob, v.VersionNumber, v.DocumentID, err)
	}
	return plaintext, nil
}

// discardBlob removes a blob whose metadata transaction failed. Failure
// only leaves unreachable garbage, so it is logged and otherwise ignored.
func (s *DocumentStore) discardBlob(ctx context.Context, key string, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := s.blobs.Delete(ctx, key); err != nil {
		orphanBlobsTotal.WithLabelValues("kept").Inc()
		s.logger.Warn(ctx, "orphan blob left behind", "storage_key", key, "cause", cause, "error", err)
		return
	}
	orphanBlobsTotal.WithLabelValues("deleted").Inc()
	s.logger.Debug(ctx, "orphan blob deleted", "storage_key", key, "cause", cause)
}

func copyMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// passthrough lists errors that already carry their meaning.
var passthrough = []error{
	common.ErrorNotFound,
	common.ErrConcurrencyConflict,
	common.ErrCorruptBlob,
	common.ErrCorruptDocument,
	common.ErrIntegrityCompromised,
	common.ErrorValidation,
	common.ErrStorageIO,
	context.Canceled,
	context.DeadlineExceeded,
}

// storageError marks collaborator failures with common.ErrStorageIO.
func storageError(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range passthrough {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", common.ErrStorageIO, err)
}

func observe(op string, start time.Time, err *error) {
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	operationsTotal.WithLabelValues(op, outcome(*err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrorNotFound):
		return "not_found"
	case errors.Is(err, common.ErrConcurrencyConflict):
		return "conflict"
	case errors.Is(err, common.ErrCorruptBlob), errors.Is(err, common.ErrCorruptDocument):
		return "integrity"
	case errors.Is(err, common.ErrorValidation):
		return "invalid"
	default:
		return "error"
	}
}
