package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driven"
	"github.com/custodia-labs/nexus/internal/core/ports/driving"
	"github.com/custodia-labs/nexus/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService ingests uploads: quota check, text extraction,
// persistence and indexing, in that order.
type DocumentService struct {
	users      driven.UserStore
	docs       driven.DocumentStore
	normaliser driven.NormaliserRegistry
	pipeline   driven.PostProcessorPipeline
	index      driven.PKBIndex
	quota      *QuotaEnforcer
	policy     domain.UnsupportedFormatPolicy
	now        func() time.Time
}

// NewDocumentService creates a document service.
func NewDocumentService(
	users driven.UserStore,
	docs driven.DocumentStore,
	normaliser driven.NormaliserRegistry,
	pipeline driven.PostProcessorPipeline,
	index driven.PKBIndex,
	quota *QuotaEnforcer,
	policy domain.UnsupportedFormatPolicy,
) *DocumentService {
	if !policy.IsValid() {
		policy = domain.DefaultUnsupportedFormatPolicy
	}
	return &DocumentService{
		users:      users,
		docs:       docs,
		normaliser: normaliser,
		pipeline:   pipeline,
		index:      index,
		quota:      quota,
		policy:     policy,
		now:        time.Now,
	}
}

// DocumentID derives the content address of an upload. The owner is part
// of the hash so two users uploading the same file get distinct documents.
func DocumentID(userID string, data []byte) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Put stores and indexes an upload.
func (s *DocumentService) Put(ctx context.Context, upload domain.Upload) (*domain.Document, error) {
	if upload.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if strings.TrimSpace(upload.Filename) == "" {
		return nil, fmt.Errorf("%w: missing filename", domain.ErrValidation)
	}
	if len(upload.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", domain.ErrValidation)
	}

	id := DocumentID(upload.UserID, upload.Data)
	logger.Debug("Upload %q from user %s: %d bytes, id %s", upload.Filename, upload.UserID, len(upload.Data), id)

	// Same bytes from the same user: nothing to store or charge.
	existing, err := s.docs.GetDocument(ctx, upload.UserID, id)
	switch {
	case err == nil:
		logger.Debug("Document %s already stored, re-indexing", id)
		return existing, s.indexDocument(ctx, existing)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("checking existing document: %w", err)
	}

	size := int64(len(upload.Data))
	reservation, err := s.quota.TryReserve(ctx, upload.UserID, size)
	if err != nil {
		return nil, err
	}

	doc, err := s.build(ctx, id, &upload)
	if err != nil {
		_ = reservation.Release()
		return nil, err
	}

	inserted, err := s.docs.SaveDocument(ctx, doc, upload.Data, s.quota.Limit())
	if err != nil {
		_ = reservation.Release()
		var qe *domain.QuotaExceededError
		if errors.As(err, &qe) {
			// The store disagreed with our counters; resync on next use.
			s.quota.Forget(upload.UserID)
		}
		return nil, err
	}
	if !inserted {
		// A concurrent upload of the same bytes won the race.
		_ = reservation.Release()
		existing, err := s.docs.GetDocument(ctx, upload.UserID, id)
		if err != nil {
			return nil, fmt.Errorf("loading existing document: %w", err)
		}
		return existing, s.indexDocument(ctx, existing)
	}
	if err := reservation.Commit(); err != nil {
		return nil, err
	}

	logger.Info("Stored document %s (%s, %d bytes) for user %s", doc.ID, doc.Filename, doc.Size, doc.UserID)
	if err := s.indexDocument(ctx, doc); err != nil {
		s.rollback(doc)
		return nil, err
	}
	return doc, nil
}

// rollback removes a stored document that could not be indexed, so a failed
// upload is neither charged nor listed.
func (s *DocumentService) rollback(doc *domain.Document) {
	ctx := context.Background()
	if _, err := s.docs.DeleteDocument(ctx, doc.UserID, doc.ID); err != nil {
		logger.Error("Rolling back document %s: %v", doc.ID, err)
		s.quota.Forget(doc.UserID)
		return
	}
	s.quota.Credit(doc.UserID, doc.Size)
	_ = s.index.Remove(ctx, doc.UserID, doc.ID)
	logger.Warn("Rolled back document %s after indexing failed", doc.ID)
}

// build extracts text and assembles the document under the
// unsupported-format policy.
func (s *DocumentService) build(ctx context.Context, id string, upload *domain.Upload) (*domain.Document, error) {
	doc := &domain.Document{
		ID:        id,
		UserID:    upload.UserID,
		Filename:  upload.Filename,
		Title:     domain.TitleFromFilename(upload.Filename),
		MIMEType:  upload.MIMEType,
		Size:      int64(len(upload.Data)),
		CreatedAt: s.now().UTC(),
	}

	result, err := s.normaliser.Normalise(ctx, upload)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if s.policy == domain.FormatReject {
			if errors.Is(err, domain.ErrUnsupportedFormat) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrUnsupportedFormat, upload.Filename, err)
		}
		logger.Warn("Storing %q without text: %v", upload.Filename, err)
		return doc, nil
	}

	if result.Title != "" {
		doc.Title = result.Title
	}
	doc.Content = strings.TrimSpace(result.Content)
	doc.Indexed = doc.Content != ""
	return doc, nil
}

func (s *DocumentService) indexDocument(ctx context.Context, doc *domain.Document) error {
	var chunks []domain.Chunk
	if doc.Indexed {
		var err error
		chunks, err = s.pipeline.Process(ctx, doc)
		if err != nil {
			return fmt.Errorf("chunking document %s: %w", doc.ID, err)
		}
	}
	if err := s.index.Index(ctx, doc, chunks); err != nil {
		return fmt.Errorf("indexing document %s: %w", doc.ID, err)
	}
	return nil
}

// Get retrieves one of the user's documents.
func (s *DocumentService) Get(ctx context.Context, userID, id string) (*domain.Document, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.docs.GetDocument(ctx, userID, id)
}

// ListByUser returns the user's documents, newest first.
func (s *DocumentService) ListByUser(ctx context.Context, userID string) ([]domain.Document, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.docs.ListDocuments(ctx, userID)
}

// Delete removes a document, drops it from the index and credits its size.
func (s *DocumentService) Delete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	doc, err := s.docs.DeleteDocument(ctx, userID, id)
	if err != nil {
		return err
	}
	s.quota.Credit(userID, doc.Size)
	if err := s.index.Remove(ctx, userID, id); err != nil {
		return fmt.Errorf("removing document %s from index: %w", id, err)
	}
	logger.Info("Deleted document %s for user %s, %d bytes credited", id, userID, doc.Size)
	return nil
}

// Reindex loads every stored document into the index. The index lives in
// memory, so this runs once at startup.
func (s *DocumentService) Reindex(ctx context.Context) (int, error) {
	logger.Section("Index Rebuild")

	userIDs, err := s.users.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing users: %w", err)
	}

	count := 0
	for _, userID := range userIDs {
		docs, err := s.docs.ListDocuments(ctx, userID)
		if err != nil {
			return count, fmt.Errorf("listing documents for %s: %w", userID, err)
		}
		for i := range docs {
			if err := ctx.Err(); err != nil {
				return count, err
			}
			if err := s.indexDocument(ctx, &docs[i]); err != nil {
				logger.Warn("Skipping document %s: %v", docs[i].ID, err)
				continue
			}
			count++
		}
	}

	logger.Info("Indexed %d documents for %d users", count, len(userIDs))
	return count, nil
}
