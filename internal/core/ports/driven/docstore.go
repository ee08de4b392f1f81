package driven

import (
	"context"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

// DocumentStore persists uploaded documents and keeps the owner's usage
// counter in step with them.
type DocumentStore interface {
	// SaveDocument stores the document and its original bytes and increments
	// the owner's usage by doc.Size in the same transaction. The increment is
	// refused with *domain.QuotaExceededError if it would exceed quota.
	// If a document with the same ID already exists for the user nothing is
	// written and inserted is false.
	SaveDocument(ctx context.Context, doc *domain.Document, data []byte, quota int64) (inserted bool, err error)

	// GetDocument retrieves a user's document by ID.
	// Documents of other users are reported as domain.ErrNotFound.
	GetDocument(ctx context.Context, userID, id string) (*domain.Document, error)

	// GetDocumentData retrieves the original uploaded bytes.
	GetDocumentData(ctx context.Context, userID, id string) ([]byte, error)

	// ListDocuments returns all of a user's documents, newest first.
	ListDocuments(ctx context.Context, userID string) ([]domain.Document, error)

	// DeleteDocument removes a document and credits its size back to the owner.
	// Returns the deleted document.
	DeleteDocument(ctx context.Context, userID, id string) (*domain.Document, error)

	// GetUsage returns the committed storage counter for a user.
	GetUsage(ctx context.Context, userID string) (int64, error)
}
