package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/custodia-labs/nexus/internal/adapters/driven/auth"
	"github.com/custodia-labs/nexus/internal/adapters/driven/index/lexical"
	"github.com/custodia-labs/nexus/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/nexus/internal/core/domain"
	coreservices "github.com/custodia-labs/nexus/internal/core/services"
	"github.com/custodia-labs/nexus/internal/normalisers"
	"github.com/custodia-labs/nexus/internal/postprocessors"
)

// stubProvider answers one source with a single fixed hit.
type stubProvider struct{ kind domain.SourceKind }

func (p stubProvider) Kind() domain.SourceKind { return p.kind }
func (p stubProvider) Name() string            { return "stub-" + string(p.kind) }

func (p stubProvider) Search(_ context.Context, query string, _ int) ([]domain.SearchResult, error) {
	return []domain.SearchResult{{
		Source: p.kind,
		Label:  strings.ToUpper(string(p.kind)),
		Title:  query + " on " + string(p.kind),
		URL:    "https://example.com/" + string(p.kind),
	}}, nil
}

// fakeConfig is an in-memory ConfigService.
type fakeConfig struct {
	settings domain.Settings
	values   map[string]any
	getErr   error
}

func (f *fakeConfig) Get() (domain.Settings, error) { return f.settings, f.getErr }

func (f *fakeConfig) Set(key string, value any) error {
	f.values[key] = value
	return nil
}

// setupTestServices installs real services over in-memory storage for the
// duration of the test.
func setupTestServices(t *testing.T, quota int64) *Services {
	t.Helper()

	store := memory.NewStore()
	index := lexical.New()
	enforcer := coreservices.NewQuotaEnforcer(quota, store.DocumentStore())
	docs := coreservices.NewDocumentService(
		store.UserStore(),
		store.DocumentStore(),
		normalisers.Default(),
		postprocessors.Default(),
		index,
		enforcer,
		domain.FormatReject,
	)
	agg, err := coreservices.NewAggregator(domain.SearchSettings{Timeout: time.Second}, index,
		stubProvider{kind: domain.SourceWeb},
		stubProvider{kind: domain.SourceWikipedia},
		stubProvider{kind: domain.SourceDDG},
	)
	require.NoError(t, err)

	signer, err := auth.NewJWTSigner("cli-test")
	require.NoError(t, err)

	settings := domain.DefaultSettings()
	settings.Storage.QuotaBytes = quota

	s := &Services{
		Settings: settings,
		Config:   &fakeConfig{settings: settings, values: make(map[string]any)},
		Auth: coreservices.NewAuthService(store.UserStore(), store.SessionStore(),
			auth.NewBcryptHasher(bcrypt.MinCost), signer, time.Hour),
		Search:    agg,
		Documents: docs,
		Users:     coreservices.NewUserService(store.UserStore(), store.DocumentStore(), quota),
	}

	old := services
	services = s
	t.Cleanup(func() {
		agg.Close()
		services = old
	})
	return s
}

// addUser registers a user directly through the auth service.
func addUser(t *testing.T, s *Services, username string) *domain.User {
	t.Helper()
	user, err := s.Auth.Register(context.Background(), username, "password")
	require.NoError(t, err)
	return user
}

// runCmd executes the root command with args and returns its output.
func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags()
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags() {
	searchUser, searchSources, searchPKB, searchJSON = "", "web,wiki,ddg", true, false
	importUser, importWatch = "", false
	serveAddr, configPath, verbose, jsonLogs = "", "", false, false
	_ = mcpServeCmd.Flags().Set("port", "0")
	_ = mcpServeCmd.Flags().Set("user", "")
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "nexus", rootCmd.Use)
	for _, name := range []string{"config", "verbose", "json-logs"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
}

func TestRootCmd_LoaderBuildsServicesOnce(t *testing.T) {
	oldServices, oldLoader := services, loader
	defer func() { services, loader = oldServices, oldLoader }()
	services = nil

	calls, closed := 0, 0
	var got LoadOptions
	SetLoader(func(_ context.Context, opts LoadOptions) (*Services, func() error, error) {
		calls++
		got = opts
		return &Services{Config: &fakeConfig{settings: domain.DefaultSettings()}}, func() error {
			closed++
			return nil
		}, nil
	})

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"--config", "/tmp/nexus.toml", "config", "show"})
	defer func() {
		rootCmd.SetArgs(nil)
		resetFlags()
	}()

	require.NoError(t, Execute(context.Background()))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, closed)
	assert.Equal(t, "/tmp/nexus.toml", got.ConfigPath)
	assert.Nil(t, services)
	assert.Contains(t, buf.String(), "merge policy")
}

func TestRootCmd_LoaderError(t *testing.T) {
	oldServices, oldLoader := services, loader
	defer func() { services, loader = oldServices, oldLoader }()
	services = nil

	SetLoader(func(context.Context, LoadOptions) (*Services, func() error, error) {
		return nil, nil, errors.New("bad config")
	})

	_, err := runCmd(t, "", "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting nexus: bad config")
}

func TestRootCmd_VersionSkipsLoader(t *testing.T) {
	oldServices, oldLoader := services, loader
	defer func() { services, loader = oldServices, oldLoader }()
	services = nil

	SetLoader(func(context.Context, LoadOptions) (*Services, func() error, error) {
		t.Fatal("loader must not run for version")
		return nil, nil, nil
	})

	out, err := runCmd(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "nexus version")
}
