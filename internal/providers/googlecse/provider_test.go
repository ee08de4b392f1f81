package googlecse

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

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{APIKey: "k"})
	var pe *domain.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, domain.ProviderErrorConfig, pe.Kind)
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "engine-1", q.Get("cx"))
		assert.Equal(t, "rust", q.Get("q"))
		assert.Equal(t, "key-1", q.Get("key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items": [
			{"title": "Rust", "link": "https://www.rust-lang.org/", "snippet": "A language empowering everyone"},
			{"title": "Crates", "link": "https://crates.io/", "snippet": "registry"}
		]}`))
	}))
	defer srv.Close()

	p, err := New(context.Background(), Config{
		APIKey: "key-1", EngineID: "engine-1", Endpoint: srv.URL + "/", Timeout: time.Second,
	})
	require.NoError(t, err)

	results, err := p.Search(context.Background(), "rust", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.SourceWeb, results[0].Source)
	assert.Equal(t, Label, results[0].Label)
	assert.Equal(t, "https://www.rust-lang.org/", results[0].URL)
}

func TestSearch_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"code": 429, "message": "quota"}}`))
	}))
	defer srv.Close()

	p, err := New(context.Background(), Config{APIKey: "k", EngineID: "e", Endpoint: srv.URL + "/"})
	require.NoError(t, err)

	_, err = p.Search(context.Background(), "rust", 3)
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
}
