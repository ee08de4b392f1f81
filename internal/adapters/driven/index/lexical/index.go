package lexical

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.PKBIndex = (*Index)(nil)

// Index is a per-user inverted index.
type Index struct {
	mu     sync.RWMutex
	shards map[string]*shard

	scorer     driven.Scorer
	snippetLen int
}

// Option configures an Index.
type Option func(*Index)

// WithScorer replaces the default TF scorer.
func WithScorer(s driven.Scorer) Option {
	return func(i *Index) {
		if s != nil {
			i.scorer = s
		}
	}
}

// WithSnippetLength bounds snippet excerpts in characters.
func WithSnippetLength(n int) Option {
	return func(i *Index) {
		if n > 0 {
			i.snippetLen = n
		}
	}
}

// New creates an empty index.
func New(opts ...Option) *Index {
	idx := &Index{
		shards:     make(map[string]*shard),
		scorer:     TFScorer{},
		snippetLen: domain.DefaultSnippetLength,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// shard holds one user's documents.
type shard struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	postings map[string]map[string]struct{}
	totalLen int
}

type entry struct {
	id        string
	filename  string
	title     string
	createdAt time.Time
	length    int
	freq      map[string]int
	chunks    []chunkEntry
}

type chunkEntry struct {
	text string
	freq map[string]int
}

func (i *Index) shardFor(userID string, create bool) *shard {
	i.mu.RLock()
	s := i.shards[userID]
	i.mu.RUnlock()
	if s != nil || !create {
		return s
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if s = i.shards[userID]; s == nil {
		s = &shard{
			entries:  make(map[string]*entry),
			postings: make(map[string]map[string]struct{}),
		}
		i.shards[userID] = s
	}
	return s
}

// Index adds or replaces a document. Documents with no extracted text are
// removed rather than indexed so they never appear in results.
func (i *Index) Index(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	if doc == nil || doc.UserID == "" || doc.ID == "" {
		return domain.ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !doc.Indexed || strings.TrimSpace(doc.Content) == "" {
		return i.Remove(ctx, doc.UserID, doc.ID)
	}

	tokens := Tokenize(doc.Title + " " + doc.Content)
	e := &entry{
		id:        doc.ID,
		filename:  doc.Filename,
		title:     doc.Title,
		createdAt: doc.CreatedAt,
		length:    len(tokens),
		freq:      frequencies(tokens),
	}
	if len(chunks) == 0 {
		chunks = []domain.Chunk{{Content: doc.Content}}
	}
	for _, c := range chunks {
		e.chunks = append(e.chunks, chunkEntry{text: c.Content, freq: frequencies(Tokenize(c.Content))})
	}

	s := i.shardFor(doc.UserID, true)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(doc.ID)
	s.entries[doc.ID] = e
	s.totalLen += e.length
	for term := range e.freq {
		docs := s.postings[term]
		if docs == nil {
			docs = make(map[string]struct{})
			s.postings[term] = docs
		}
		docs[doc.ID] = struct{}{}
	}
	return nil
}

// Remove drops a document from its owner's shard.
func (i *Index) Remove(_ context.Context, userID, documentID string) error {
	s := i.shardFor(userID, false)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(documentID)
	return nil
}

// remove must be called with s.mu held.
func (s *shard) remove(id string) {
	e, ok := s.entries[id]
	if !ok {
		return
	}
	for term := range e.freq {
		if docs := s.postings[term]; docs != nil {
			delete(docs, id)
			if len(docs) == 0 {
				delete(s.postings, term)
			}
		}
	}
	s.totalLen -= e.length
	delete(s.entries, id)
}

// Count returns the number of indexed documents for a user.
func (i *Index) Count(userID string) int {
	s := i.shardFor(userID, false)
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

type hit struct {
	e     *entry
	score float64
}

// Query ranks the user's documents against the query.
// Ties are broken by newest document first, then by ID.
func (i *Index) Query(ctx context.Context, userID, query string, limit int) ([]domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := queryTerms(query)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}
	s := i.shardFor(userID, false)
	if s == nil {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	corpus := driven.CorpusStats{
		Documents: len(s.entries),
		DocFreq:   make(map[string]int, len(terms)),
	}
	if corpus.Documents > 0 {
		corpus.AverageLength = float64(s.totalLen) / float64(corpus.Documents)
	}
	candidates := make(map[string]*entry)
	for _, t := range terms {
		corpus.DocFreq[t] = len(s.postings[t])
		for id := range s.postings[t] {
			candidates[id] = s.entries[id]
		}
	}

	hits := make([]hit, 0, len(candidates))
	for _, e := range candidates {
		stats := driven.TermStats{Freq: make(map[string]int, len(terms)), Length: e.length}
		for _, t := range terms {
			if n := e.freq[t]; n > 0 {
				stats.Freq[t] = n
			}
		}
		if score := i.scorer.Score(terms, stats, corpus); score > 0 {
			hits = append(hits, hit{e: e, score: score})
		}
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		if !hits[a].e.createdAt.Equal(hits[b].e.createdAt) {
			return hits[a].e.createdAt.After(hits[b].e.createdAt)
		}
		return hits[a].e.id < hits[b].e.id
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		title := h.e.title
		if title == "" {
			title = h.e.filename
		}
		results = append(results, domain.SearchResult{
			Source:     domain.SourcePKB,
			Label:      "PKB (" + h.e.filename + ")",
			Title:      title,
			URL:        "pkb://documents/" + h.e.id,
			Snippet:    snippet(h.e.chunks, terms, i.snippetLen),
			Score:      h.score,
			DocumentID: h.e.id,
		})
	}
	return results, nil
}
