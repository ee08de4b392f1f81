package driving

import (
	"context"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

// DocumentService ingests and manages a user's documents.
type DocumentService interface {
	// Put stores and indexes an upload. The document is searchable when Put returns.
	Put(ctx context.Context, upload domain.Upload) (*domain.Document, error)

	// Get retrieves one of the user's documents.
	Get(ctx context.Context, userID, id string) (*domain.Document, error)

	// ListByUser returns the user's documents, newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.Document, error)

	// Delete removes a document and credits its size back to the user.
	Delete(ctx context.Context, userID, id string) error

	// Reindex rebuilds the search index from persisted documents.
	Reindex(ctx context.Context) (int, error)
}

// UserService reports account information.
type UserService interface {
	// Usage returns the storage consumption of a user.
	Usage(ctx context.Context, userID string) (*domain.Usage, error)

	// Lookup finds a user by name.
	Lookup(ctx context.Context, username string) (*domain.User, error)
}
