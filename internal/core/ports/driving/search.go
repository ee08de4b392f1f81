package driving

import (
	"context"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

// SearchService fans a query out to the enabled sources.
type SearchService interface {
	// Search returns the merged result list. Individual source failures are
	// absorbed; only validation and auth problems are returned as errors.
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchResult, error)
}
