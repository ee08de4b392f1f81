package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driven"
)

type stubProvider struct{ kind domain.SourceKind }

func (p stubProvider) Kind() domain.SourceKind { return p.kind }
func (p stubProvider) Name() string            { return "stub" }

func (p stubProvider) Search(context.Context, string, int) ([]domain.SearchResult, error) {
	return []domain.SearchResult{{Source: p.kind, Label: "Stub", Title: "hit", URL: "https://example.com"}}, nil
}

func envFrom(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func newTestApp(t *testing.T, dir string, env map[string]string) *App {
	t.Helper()
	a, err := New(context.Background(), Options{
		ConfigDir: dir,
		LookupEnv: envFrom(env),
		Providers: []driven.SearchProvider{stubProvider{kind: domain.SourceWeb}},
	})
	require.NoError(t, err)
	return a
}

func TestNew_GeneratesAndPersistsJWTSecret(t *testing.T) {
	dir := t.TempDir()
	a := newTestApp(t, dir, map[string]string{"NEXUS_STORAGE_DRIVER": "memory"})
	require.NoError(t, a.Close())

	raw, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "jwt_secret")

	// The second start reuses the saved secret.
	b := newTestApp(t, dir, map[string]string{"NEXUS_STORAGE_DRIVER": "memory"})
	defer b.Close()
	assert.NotEmpty(t, b.Settings.Auth.JWTSecret)
}

func TestNew_EndToEnd(t *testing.T) {
	a := newTestApp(t, t.TempDir(), map[string]string{
		"NEXUS_STORAGE_DRIVER": "memory",
		"JWT_SECRET":           "s3cret",
	})
	defer a.Close()
	ctx := context.Background()

	user, err := a.Auth.Register(ctx, "alice", "password")
	require.NoError(t, err)
	token, err := a.Auth.Login(ctx, "alice", "password")
	require.NoError(t, err)
	id, err := a.Auth.Resolve(ctx, token.Value)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)

	_, err = a.Documents.Put(ctx, domain.Upload{UserID: user.ID, Filename: "rust.md", Data: []byte("# Rust\nOwnership and borrowing.")})
	require.NoError(t, err)

	results, err := a.Search.Search(ctx, domain.SearchRequest{
		UserID:  user.ID,
		Query:   "ownership",
		Sources: []domain.SourceKind{domain.SourceWeb},
		PKB:     true,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, domain.SourceWeb, results[0].Source)
	assert.Equal(t, "PKB (rust.md)", results[1].Label)
}

func TestNew_SQLiteReindexesOnStart(t *testing.T) {
	dir := t.TempDir()
	env := map[string]string{"JWT_SECRET": "s3cret"}
	ctx := context.Background()

	a := newTestApp(t, dir, env)
	user, err := a.Auth.Register(ctx, "alice", "password")
	require.NoError(t, err)
	_, err = a.Documents.Put(ctx, domain.Upload{UserID: user.ID, Filename: "notes.txt", Data: []byte("lifetimes are annotations")})
	require.NoError(t, err)
	require.NoError(t, a.Close())
	assert.FileExists(t, filepath.Join(dir, "data", "nexus.db"))

	b := newTestApp(t, dir, env)
	defer b.Close()
	results, err := b.Search.Search(ctx, domain.SearchRequest{UserID: user.ID, Query: "lifetimes", PKB: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "PKB (notes.txt)", results[0].Label)

	usage, err := b.Users.Usage(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(len("lifetimes are annotations")), usage.TotalStorageBytes)
}

func TestNew_InvalidSettings(t *testing.T) {
	_, err := New(context.Background(), Options{
		ConfigDir: t.TempDir(),
		LookupEnv: envFrom(map[string]string{"NEXUS_STORAGE_DRIVER": "floppy"}),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBuildProviders(t *testing.T) {
	settings := domain.DefaultSettings()

	ps, err := buildProviders(context.Background(), settings)
	require.NoError(t, err)
	var kinds []domain.SourceKind
	for _, p := range ps {
		kinds = append(kinds, p.Kind())
	}
	assert.Equal(t, []domain.SourceKind{domain.SourceWeb, domain.SourceWikipedia, domain.SourceDDG}, kinds)

	// Google CSE without credentials drops the web source only.
	settings.Provider.WebBackend = domain.WebBackendGoogleCSE
	ps, err = buildProviders(context.Background(), settings)
	require.NoError(t, err)
	assert.Len(t, ps, 2)
}
