package duckduckgo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

func serve(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/x-javascript")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSearch_AbstractAndTopics(t *testing.T) {
	srv := serve(t, `{
		"Heading": "Rust (programming language)",
		"AbstractText": "Rust is a multi-paradigm language.",
		"AbstractURL": "https://en.wikipedia.org/wiki/Rust_(programming_language)",
		"RelatedTopics": [
			{"Text": "Cargo - Rust package manager", "FirstURL": "https://duckduckgo.com/Cargo"},
			{"Name": "Group", "Topics": [
				{"Text": "Ferris the crab mascot", "FirstURL": "https://duckduckgo.com/Ferris_(mascot)"}
			]},
			{"Text": "no url"}
		]
	}`)

	p := New(Config{BaseURL: srv.URL, Timeout: time.Second})
	results, err := p.Search(context.Background(), "rust", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, LabelInstant, results[0].Label)
	assert.Equal(t, "Rust (programming language)", results[0].Title)
	assert.Equal(t, Label, results[1].Label)
	assert.Equal(t, "Cargo", results[1].Title)
	assert.Equal(t, "Ferris (mascot)", results[2].Title)
	for _, r := range results {
		assert.Equal(t, domain.SourceDDG, r.Source)
	}
}

func TestSearch_Limit(t *testing.T) {
	srv := serve(t, `{"RelatedTopics": [
		{"Text": "a", "FirstURL": "https://duckduckgo.com/a"},
		{"Text": "b", "FirstURL": "https://duckduckgo.com/b"},
		{"Text": "c", "FirstURL": "https://duckduckgo.com/c"}
	]}`)

	results, err := New(Config{BaseURL: srv.URL}).Search(context.Background(), "x", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_Fallback(t *testing.T) {
	srv := serve(t, `{"Heading": "", "RelatedTopics": []}`)

	results, err := New(Config{BaseURL: srv.URL}).Search(context.Background(), "obscure thing", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://duckduckgo.com/?q=obscure+thing", results[0].URL)
}
