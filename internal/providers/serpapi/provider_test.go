package serpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "rust ownership", r.URL.Query().Get("q"))
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		assert.Equal(t, "google", r.URL.Query().Get("engine"))
		w.Write([]byte(`{"organic_results": [
			{"title": "Ownership - The Rust Book", "link": "https://doc.rust-lang.org/book/ch04-01.html", "snippet": "Ownership is..."},
			{"title": "no link"},
			{"title": "Second", "link": "https://example.com/2", "snippet": "two"},
			{"title": "Third", "link": "https://example.com/3", "snippet": "three"},
			{"title": "Fourth", "link": "https://example.com/4", "snippet": "four"}
		]}`))
	}))
	defer srv.Close()

	p := New(Config{APIKey: "secret", BaseURL: srv.URL, Timeout: time.Second})
	results, err := p.Search(context.Background(), "rust ownership", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, domain.SourceWeb, results[0].Source)
	assert.Equal(t, Label, results[0].Label)
	assert.Equal(t, "Ownership - The Rust Book", results[0].Title)
	assert.Equal(t, "https://example.com/3", results[2].URL)
}

func TestSearch_MissingKey(t *testing.T) {
	p := New(Config{})

	_, err := p.Search(context.Background(), "q", 3)
	var pe *domain.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, domain.ProviderErrorConfig, pe.Kind)
}

func TestSearch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error": "Invalid API key."}`))
	}))
	defer srv.Close()

	p := New(Config{APIKey: "bad", BaseURL: srv.URL})
	_, err := p.Search(context.Background(), "q", 3)
	assert.True(t, errors.Is(err, domain.ErrProviderFailed))
}

func TestSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error": "Google hasn't returned any results for this query."}`))
	}))
	defer srv.Close()

	p := New(Config{APIKey: "k", BaseURL: srv.URL})
	results, err := p.Search(context.Background(), "zzzz", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}
