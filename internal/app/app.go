// Package app assembles the Nexus services from configuration.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/custodia-labs/nexus/internal/adapters/driven/auth"
	"github.com/custodia-labs/nexus/internal/adapters/driven/config/file"
	"github.com/custodia-labs/nexus/internal/adapters/driven/index/lexical"
	"github.com/custodia-labs/nexus/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/nexus/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driven"
	"github.com/custodia-labs/nexus/internal/core/services"
	"github.com/custodia-labs/nexus/internal/logger"
	"github.com/custodia-labs/nexus/internal/normalisers"
	"github.com/custodia-labs/nexus/internal/postprocessors"
	"github.com/custodia-labs/nexus/internal/providers"
	"github.com/custodia-labs/nexus/internal/providers/duckduckgo"
	"github.com/custodia-labs/nexus/internal/providers/googlecse"
	"github.com/custodia-labs/nexus/internal/providers/serpapi"
	"github.com/custodia-labs/nexus/internal/providers/wikipedia"
)

const keyJWTSecret = "auth.jwt_secret"

// store is what both storage drivers provide.
type store interface {
	UserStore() driven.UserStore
	SessionStore() driven.SessionStore
	DocumentStore() driven.DocumentStore
	Close() error
}

// Options controls how the application is assembled.
type Options struct {
	// ConfigDir holds config.toml and the default data directory.
	// Empty means ~/.nexus.
	ConfigDir string

	// ConfigPath overrides the config file location.
	ConfigPath string

	// DotEnv files are loaded into the environment before config is read.
	DotEnv []string

	// Providers replace the configured search providers when non-nil.
	Providers []driven.SearchProvider

	// LookupEnv replaces os.LookupEnv for config overrides.
	LookupEnv func(string) (string, bool)
}

// App holds the assembled services.
type App struct {
	Settings        domain.Settings
	SettingsService *services.SettingsService
	Auth            *services.AuthService
	Users           *services.UserService
	Documents       *services.DocumentService
	Search          *services.Aggregator

	closers []func() error
}

// New reads configuration and wires every service. The PKB index is rebuilt
// from storage before New returns.
func New(ctx context.Context, opts Options) (*App, error) {
	if err := file.LoadDotEnv(opts.DotEnv...); err != nil {
		return nil, err
	}

	var storeOpts []file.Option
	if opts.LookupEnv != nil {
		storeOpts = append(storeOpts, file.WithLookupEnv(opts.LookupEnv))
	}
	var (
		configStore *file.ConfigStore
		err         error
	)
	if opts.ConfigPath != "" {
		configStore, err = file.NewConfigStoreAt(opts.ConfigPath, storeOpts...)
	} else {
		configStore, err = file.NewConfigStore(opts.ConfigDir, storeOpts...)
	}
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}

	settingsSvc := services.NewSettingsService(configStore)
	settings, err := settingsSvc.Get()
	if err != nil {
		return nil, err
	}
	if settings.Log.Verbose {
		logger.SetVerbose(true)
	}
	if settings.Log.JSON {
		logger.SetJSON(true)
	}

	a := &App{Settings: settings, SettingsService: settingsSvc}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	logger.Section("Storage")
	st, err := openStore(settings.Storage, filepath.Dir(configStore.Path()))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.Close)

	scorer, err := lexical.ScorerByName(settings.Search.Scorer)
	if err != nil {
		return nil, err
	}
	index := lexical.New(lexical.WithScorer(scorer), lexical.WithSnippetLength(settings.Search.SnippetLength))

	quota := services.NewQuotaEnforcer(settings.Storage.QuotaBytes, st.DocumentStore())
	a.Documents = services.NewDocumentService(
		st.UserStore(),
		st.DocumentStore(),
		normalisers.Default(),
		postprocessors.Default(),
		index,
		quota,
		settings.Storage.UnsupportedFormat,
	)
	if _, err := a.Documents.Reindex(ctx); err != nil {
		return nil, err
	}

	logger.Section("Search")
	searchProviders := opts.Providers
	if searchProviders == nil {
		searchProviders, err = buildProviders(ctx, settings)
		if err != nil {
			return nil, err
		}
	}
	a.Search, err = services.NewAggregator(settings.Search, index, searchProviders...)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		a.Search.Close()
		return nil
	})

	logger.Section("Auth")
	secret, err := jwtSecret(settingsSvc, settings.Auth.JWTSecret)
	if err != nil {
		return nil, err
	}
	signer, err := auth.NewJWTSigner(secret)
	if err != nil {
		return nil, err
	}
	a.Auth = services.NewAuthService(
		st.UserStore(),
		st.SessionStore(),
		auth.NewBcryptHasher(settings.Auth.BcryptCost),
		signer,
		settings.Auth.SessionTTL,
	)
	a.Users = services.NewUserService(st.UserStore(), st.DocumentStore(), quota.Limit())

	ok = true
	return a, nil
}

// Close releases storage and worker pools. Safe to call more than once.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// PurgeSessions deletes expired sessions every interval until ctx ends.
func (a *App) PurgeSessions(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.Auth.PurgeSessions(ctx)
			if err != nil {
				logger.Warn("Purging sessions: %v", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged %d expired sessions", n)
			}
		}
	}
}

func openStore(settings domain.StorageSettings, configDir string) (store, error) {
	switch settings.Driver {
	case "memory":
		logger.Warn("Using in-memory storage; nothing survives a restart")
		return memory.NewStore(), nil
	default:
		dataDir := settings.DataDir
		if dataDir == "" {
			dataDir = filepath.Join(configDir, "data")
		}
		st, err := sqlite.NewStore(dataDir)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		logger.Info("Database: %s", st.Path())
		return st, nil
	}
}

// buildProviders creates one provider per source. Each gets its own rate
// limiter so a throttled upstream never slows the others.
func buildProviders(ctx context.Context, settings domain.Settings) ([]driven.SearchProvider, error) {
	p := settings.Provider
	timeout := settings.Search.ProviderTimeout
	burst := max(1, int(p.RequestsPerSec))

	var out []driven.SearchProvider
	switch p.WebBackend {
	case domain.WebBackendGoogleCSE:
		cse, err := googlecse.New(ctx, googlecse.Config{
			APIKey:   p.GoogleCSEKey,
			EngineID: p.GoogleCSEID,
			Endpoint: p.GoogleCSEURL,
			Timeout:  timeout,
			Limiter:  providers.NewRateLimiter(p.RequestsPerSec, burst),
		})
		if err != nil {
			// Keep serving the other sources.
			logger.Warn("Web search disabled: %v", err)
			break
		}
		out = append(out, cse)
	default:
		if p.SerpAPIKey == "" {
			logger.Warn("SERPAPI_KEY not set; web searches will return no results")
		}
		out = append(out, serpapi.New(serpapi.Config{
			APIKey:    p.SerpAPIKey,
			BaseURL:   p.SerpAPIURL,
			UserAgent: p.UserAgent,
			Timeout:   timeout,
			Limiter:   providers.NewRateLimiter(p.RequestsPerSec, burst),
		}))
	}

	out = append(out,
		wikipedia.New(wikipedia.Config{
			BaseURL:   p.WikipediaURL,
			UserAgent: p.UserAgent,
			Timeout:   timeout,
			Limiter:   providers.NewRateLimiter(p.RequestsPerSec, burst),
		}),
		duckduckgo.New(duckduckgo.Config{
			BaseURL:   p.DuckDuckGoURL,
			UserAgent: p.UserAgent,
			Timeout:   timeout,
			Limiter:   providers.NewRateLimiter(p.RequestsPerSec, burst),
		}),
	)

	for _, sp := range out {
		logger.Info("Provider %s answers %q", sp.Name(), sp.Kind())
	}
	return out, nil
}

// jwtSecret returns the configured secret, generating and persisting one
// on first start.
func jwtSecret(settings *services.SettingsService, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	secret := hex.EncodeToString(buf)
	if err := settings.Set(keyJWTSecret, secret); err != nil {
		return "", fmt.Errorf("saving generated jwt secret: %w", err)
	}
	logger.Warn("JWT_SECRET not set; generated one and saved it to the config file")
	return secret, nil
}
