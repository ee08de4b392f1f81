package driven

import (
	"context"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

// SearchProvider queries one external search source.
// Every failure must be returned as *domain.ProviderError.
type SearchProvider interface {
	// Kind returns the source this provider answers for.
	Kind() domain.SourceKind

	// Name identifies the concrete backend, e.g. "serpapi".
	Name() string

	// Search returns at most limit results.
	Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error)
}
