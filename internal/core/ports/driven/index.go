package driven

import (
	"context"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

// PKBIndex is the per-user searchable index over uploaded documents.
// Queries only ever see documents owned by the querying user.
type PKBIndex interface {
	// Index adds or replaces a document. Indexing the same document twice
	// leaves the index unchanged.
	Index(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error

	// Remove drops a document from its owner's shard. Unknown IDs are ignored.
	Remove(ctx context.Context, userID, documentID string) error

	// Query returns up to limit results for the user, best first.
	Query(ctx context.Context, userID, query string, limit int) ([]domain.SearchResult, error)

	// Count returns the number of indexed documents for a user.
	Count(userID string) int
}

// TermStats describes one document as seen by a Scorer.
type TermStats struct {
	// Freq maps query term to its occurrences in the document.
	Freq map[string]int

	// Length is the document length in tokens.
	Length int
}

// CorpusStats describes one user's shard as seen by a Scorer.
type CorpusStats struct {
	Documents     int
	AverageLength float64

	// DocFreq maps query term to the number of documents containing it.
	DocFreq map[string]int
}

// Scorer ranks a document against a query. Implementations must be pure.
type Scorer interface {
	// Name identifies the scorer in configuration.
	Name() string

	// Score returns the relevance of doc for terms. Zero means no match.
	Score(terms []string, doc TermStats, corpus CorpusStats) float64
}
