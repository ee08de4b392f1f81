package lexical

import (
	"fmt"
	"math"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driven"
)

// TFScorer sums 1+ln(tf) over the query terms present in a document.
type TFScorer struct{}

var _ driven.Scorer = TFScorer{}

// Name returns "tf".
func (TFScorer) Name() string { return "tf" }

// Score implements driven.Scorer.
func (TFScorer) Score(terms []string, doc driven.TermStats, _ driven.CorpusStats) float64 {
	var score float64
	for _, t := range terms {
		if n := doc.Freq[t]; n > 0 {
			score += 1 + math.Log(float64(n))
		}
	}
	return score
}

// BM25Scorer is Okapi BM25 computed over one user's shard.
type BM25Scorer struct {
	K1 float64
	B  float64
}

var _ driven.Scorer = BM25Scorer{}

// NewBM25Scorer returns BM25 with the usual k1=1.2, b=0.75.
func NewBM25Scorer() BM25Scorer {
	return BM25Scorer{K1: 1.2, B: 0.75}
}

// Name returns "bm25".
func (BM25Scorer) Name() string { return "bm25" }

// Score implements driven.Scorer.
func (s BM25Scorer) Score(terms []string, doc driven.TermStats, corpus driven.CorpusStats) float64 {
	avg := corpus.AverageLength
	if avg <= 0 {
		avg = 1
	}
	n := float64(corpus.Documents)

	var score float64
	for _, t := range terms {
		f := float64(doc.Freq[t])
		if f == 0 {
			continue
		}
		df := float64(corpus.DocFreq[t])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		norm := f * (s.K1 + 1) / (f + s.K1*(1-s.B+s.B*float64(doc.Length)/avg))
		score += idf * norm
	}
	return score
}

// ScorerByName resolves a configured scorer name.
func ScorerByName(name string) (driven.Scorer, error) {
	switch name {
	case "", "tf":
		return TFScorer{}, nil
	case "bm25":
		return NewBM25Scorer(), nil
	default:
		return nil, fmt.Errorf("%w: unknown scorer %q", domain.ErrValidation, name)
	}
}
