package domain

import (
	"fmt"
	"time"
)

// DefaultQuotaBytes is the per-user storage ceiling (50 MiB).
const DefaultQuotaBytes int64 = 50 << 20

// Search defaults.
const (
	DefaultSearchTimeout   = 5 * time.Second
	DefaultProviderTimeout = 4 * time.Second
	DefaultProviderLimit   = 3
	DefaultPKBLimit        = 5
	DefaultSnippetLength   = 240
	DefaultWorkerPoolSize  = 64

	// MinSnippetLength leaves room for words between two ellipses.
	MinSnippetLength = 16
)

// WebBackend selects which provider answers the "web" source.
type WebBackend string

// Available web backends.
const (
	WebBackendSerpAPI   WebBackend = "serpapi"
	WebBackendGoogleCSE WebBackend = "google_cse"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	Server   ServerSettings
	Auth     AuthSettings
	Storage  StorageSettings
	Search   SearchSettings
	Provider ProviderSettings
	Log      LogSettings
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	Addr            string
	AllowedOrigins  []string
	RateLimitRPS    float64
	RateLimitBurst  int
	MaxUploadBytes  int64
	ShutdownTimeout time.Duration
}

// AuthSettings configures session tokens.
type AuthSettings struct {
	JWTSecret  string
	SessionTTL time.Duration
	BcryptCost int
}

// StorageSettings configures persistence and quota.
type StorageSettings struct {
	// Driver is "sqlite" or "memory".
	Driver            string
	DataDir           string
	QuotaBytes        int64
	UnsupportedFormat UnsupportedFormatPolicy
}

// SearchSettings configures the aggregator and PKB index.
type SearchSettings struct {
	Timeout         time.Duration
	ProviderTimeout time.Duration
	ProviderLimit   int
	PKBLimit        int
	MergePolicy     MergePolicy
	Scorer          string
	SnippetLength   int
	WorkerPoolSize  int
}

// ProviderSettings configures the external providers.
type ProviderSettings struct {
	WebBackend     WebBackend
	SerpAPIKey     string
	SerpAPIURL     string
	GoogleCSEKey   string
	GoogleCSEID    string
	GoogleCSEURL   string
	WikipediaURL   string
	DuckDuckGoURL  string
	UserAgent      string
	RequestsPerSec float64
}

// LogSettings configures the logger.
type LogSettings struct {
	Verbose bool
	JSON    bool
}

// DefaultSettings returns settings with every default applied.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Addr:            ":8080",
			AllowedOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitRPS:    5,
			RateLimitBurst:  10,
			MaxUploadBytes:  DefaultQuotaBytes,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthSettings{
			SessionTTL: 24 * time.Hour,
			BcryptCost: 10,
		},
		Storage: StorageSettings{
			Driver:            "sqlite",
			QuotaBytes:        DefaultQuotaBytes,
			UnsupportedFormat: DefaultUnsupportedFormatPolicy,
		},
		Search: SearchSettings{
			Timeout:         DefaultSearchTimeout,
			ProviderTimeout: DefaultProviderTimeout,
			ProviderLimit:   DefaultProviderLimit,
			PKBLimit:        DefaultPKBLimit,
			MergePolicy:     DefaultMergePolicy,
			Scorer:          "tf",
			SnippetLength:   DefaultSnippetLength,
			WorkerPoolSize:  DefaultWorkerPoolSize,
		},
		Provider: ProviderSettings{
			WebBackend:     WebBackendSerpAPI,
			SerpAPIURL:     "https://serpapi.com",
			WikipediaURL:   "https://en.wikipedia.org",
			DuckDuckGoURL:  "https://api.duckduckgo.com",
			UserAgent:      "NexusSearch/1.0 (https://github.com/custodia-labs/nexus)",
			RequestsPerSec: 5,
		},
	}
}

// Validate checks that the settings are internally consistent.
func (s Settings) Validate() error {
	if s.Storage.QuotaBytes <= 0 {
		return fmt.Errorf("%w: storage quota must be positive", ErrValidation)
	}
	if s.Storage.Driver != "sqlite" && s.Storage.Driver != "memory" {
		return fmt.Errorf("%w: unknown storage driver %q", ErrValidation, s.Storage.Driver)
	}
	if !s.Storage.UnsupportedFormat.IsValid() {
		return fmt.Errorf("%w: unknown unsupported-format policy %q", ErrValidation, s.Storage.UnsupportedFormat)
	}
	if !s.Search.MergePolicy.IsValid() {
		return fmt.Errorf("%w: unknown merge policy %q", ErrValidation, s.Search.MergePolicy)
	}
	if s.Search.Timeout <= 0 || s.Search.ProviderTimeout <= 0 {
		return fmt.Errorf("%w: search timeouts must be positive", ErrValidation)
	}
	if s.Search.ProviderLimit <= 0 || s.Search.PKBLimit <= 0 {
		return fmt.Errorf("%w: result limits must be positive", ErrValidation)
	}
	if s.Search.SnippetLength < MinSnippetLength {
		return fmt.Errorf("%w: snippet length must be at least %d", ErrValidation, MinSnippetLength)
	}
	if s.Provider.WebBackend != WebBackendSerpAPI && s.Provider.WebBackend != WebBackendGoogleCSE {
		return fmt.Errorf("%w: unknown web backend %q", ErrValidation, s.Provider.WebBackend)
	}
	if s.Auth.SessionTTL <= 0 {
		return fmt.Errorf("%w: session ttl must be positive", ErrValidation)
	}
	return nil
}
