// Package lexical implements the personal knowledge base index as an
// in-process inverted index.
//
// The index is sharded by user. Each shard has its own lock, and the map of
// shards has another, so indexing one user's upload never blocks queries of
// a different user. Ranking is delegated to a driven.Scorer; TF (the default)
// and BM25 are provided.
//
// The index holds no state that cannot be rebuilt from the document store.
package lexical
