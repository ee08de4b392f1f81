// Package chunker splits document text into overlapping windows on word
// boundaries. Chunk IDs are derived from the document ID and position, so
// chunking the same document twice yields identical chunks.
package chunker

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

// DefaultChunkSize is the target number of characters per chunk.
const DefaultChunkSize = 500

// DefaultChunkOverlap is the approximate number of characters repeated
// at the start of the next chunk.
const DefaultChunkOverlap = 100

// Processor splits document content into word-aligned chunks.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Processor)

// WithChunkSize sets the target chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits doc.Content into chunks. Input chunks are ignored.
// A single word longer than the chunk size becomes its own chunk.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	words := strings.Fields(doc.Content)
	if len(words) == 0 {
		return nil, nil
	}

	var chunks []domain.Chunk
	start := 0
	for start < len(words) {
		end, length := start, 0
		for end < len(words) {
			add := len(words[end])
			if end > start {
				add++
			}
			if length+add > p.chunkSize && end > start {
				break
			}
			length += add
			end++
		}

		chunks = append(chunks, domain.Chunk{
			ID:         fmt.Sprintf("%s#%d", doc.ID, len(chunks)),
			DocumentID: doc.ID,
			Content:    strings.Join(words[start:end], " "),
			Position:   len(chunks),
		})
		if end == len(words) {
			break
		}

		// Step back over roughly overlap characters, always advancing.
		next, back := end, 0
		for next-1 > start && back+len(words[next-1])+1 <= p.overlap {
			next--
			back += len(words[next]) + 1
		}
		start = next
	}
	return chunks, nil
}
