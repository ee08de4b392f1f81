package services

import (
	"fmt"
	"time"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driven"
)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyServerAddr        = "server.addr"
	keyServerOrigins     = "server.allowed_origins"
	keyServerRateRPS     = "server.rate_limit_rps"
	keyServerRateBurst   = "server.rate_limit_burst"
	keyServerMaxUpload   = "server.max_upload_bytes"
	keyServerShutdown    = "server.shutdown_timeout"
	keyAuthSecret        = "auth.jwt_secret"
	keyAuthSessionTTL    = "auth.session_ttl"
	keyAuthBcryptCost    = "auth.bcrypt_cost"
	keyStorageDriver     = "storage.driver"
	keyStorageDataDir    = "storage.data_dir"
	keyStorageQuota      = "storage.quota_bytes"
	keyStorageFormat     = "storage.unsupported_format"
	keySearchTimeout     = "search.timeout"
	keySearchProvTimeout = "search.provider_timeout"
	keySearchProvLimit   = "search.provider_limit"
	keySearchPKBLimit    = "search.pkb_limit"
	keySearchMerge       = "search.merge_policy"
	keySearchScorer      = "search.scorer"
	keySearchSnippet     = "search.snippet_length"
	keySearchWorkers     = "search.worker_pool_size"
	keyProvWebBackend    = "providers.web_backend"
	keyProvSerpAPIKey    = "providers.serpapi_key"
	keyProvSerpAPIURL    = "providers.serpapi_url"
	keyProvCSEKey        = "providers.google_cse_key"
	keyProvCSEID         = "providers.google_cse_cx"
	keyProvCSEURL        = "providers.google_cse_url"
	keyProvWikipediaURL  = "providers.wikipedia_url"
	keyProvDDGURL        = "providers.duckduckgo_url"
	keyProvUserAgent     = "providers.user_agent"
	keyProvRPS           = "providers.requests_per_sec"
	keyLogVerbose        = "log.verbose"
	keyLogJSON           = "log.json"
)

// SettingsService resolves runtime settings from the config store.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get returns settings with defaults applied for every missing key.
func (s *SettingsService) Get() (domain.Settings, error) {
	d := domain.DefaultSettings()

	settings := domain.Settings{
		Server: domain.ServerSettings{
			Addr:            s.getString(keyServerAddr, d.Server.Addr),
			AllowedOrigins:  s.getStrings(keyServerOrigins, d.Server.AllowedOrigins),
			RateLimitRPS:    s.getFloat(keyServerRateRPS, d.Server.RateLimitRPS),
			RateLimitBurst:  s.getInt(keyServerRateBurst, d.Server.RateLimitBurst),
			MaxUploadBytes:  int64(s.getInt(keyServerMaxUpload, int(d.Server.MaxUploadBytes))),
			ShutdownTimeout: s.getDuration(keyServerShutdown, d.Server.ShutdownTimeout),
		},
		Auth: domain.AuthSettings{
			JWTSecret:  s.configStore.GetString(keyAuthSecret),
			SessionTTL: s.getDuration(keyAuthSessionTTL, d.Auth.SessionTTL),
			BcryptCost: s.getInt(keyAuthBcryptCost, d.Auth.BcryptCost),
		},
		Storage: domain.StorageSettings{
			Driver:            s.getString(keyStorageDriver, d.Storage.Driver),
			DataDir:           s.configStore.GetString(keyStorageDataDir),
			QuotaBytes:        int64(s.getInt(keyStorageQuota, int(d.Storage.QuotaBytes))),
			UnsupportedFormat: domain.UnsupportedFormatPolicy(s.getString(keyStorageFormat, string(d.Storage.UnsupportedFormat))),
		},
		Search: domain.SearchSettings{
			Timeout:         s.getDuration(keySearchTimeout, d.Search.Timeout),
			ProviderTimeout: s.getDuration(keySearchProvTimeout, d.Search.ProviderTimeout),
			ProviderLimit:   s.getInt(keySearchProvLimit, d.Search.ProviderLimit),
			PKBLimit:        s.getInt(keySearchPKBLimit, d.Search.PKBLimit),
			MergePolicy:     domain.MergePolicy(s.getString(keySearchMerge, string(d.Search.MergePolicy))),
			Scorer:          s.getString(keySearchScorer, d.Search.Scorer),
			SnippetLength:   s.getInt(keySearchSnippet, d.Search.SnippetLength),
			WorkerPoolSize:  s.getInt(keySearchWorkers, d.Search.WorkerPoolSize),
		},
		Provider: domain.ProviderSettings{
			WebBackend:     domain.WebBackend(s.getString(keyProvWebBackend, string(d.Provider.WebBackend))),
			SerpAPIKey:     s.configStore.GetString(keyProvSerpAPIKey),
			SerpAPIURL:     s.getString(keyProvSerpAPIURL, d.Provider.SerpAPIURL),
			GoogleCSEKey:   s.configStore.GetString(keyProvCSEKey),
			GoogleCSEID:    s.configStore.GetString(keyProvCSEID),
			GoogleCSEURL:   s.configStore.GetString(keyProvCSEURL),
			WikipediaURL:   s.getString(keyProvWikipediaURL, d.Provider.WikipediaURL),
			DuckDuckGoURL:  s.getString(keyProvDDGURL, d.Provider.DuckDuckGoURL),
			UserAgent:      s.getString(keyProvUserAgent, d.Provider.UserAgent),
			RequestsPerSec: s.getFloat(keyProvRPS, d.Provider.RequestsPerSec),
		},
		Log: domain.LogSettings{
			Verbose: s.getBool(keyLogVerbose, d.Log.Verbose),
			JSON:    s.getBool(keyLogJSON, d.Log.JSON),
		},
	}

	if err := settings.Validate(); err != nil {
		return settings, fmt.Errorf("invalid configuration in %s: %w", s.configStore.Path(), err)
	}
	return settings, nil
}

// Set persists a single setting.
func (s *SettingsService) Set(key string, value any) error {
	return s.configStore.Set(key, value)
}

func (s *SettingsService) getString(key, def string) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	return def
}

func (s *SettingsService) getStrings(key string, def []string) []string {
	if v := s.configStore.GetStringSlice(key); len(v) > 0 {
		return v
	}
	return def
}

func (s *SettingsService) getInt(key string, def int) int {
	if _, ok := s.configStore.Get(key); !ok {
		return def
	}
	if v := s.configStore.GetInt(key); v != 0 {
		return v
	}
	return def
}

func (s *SettingsService) getFloat(key string, def float64) float64 {
	if _, ok := s.configStore.Get(key); !ok {
		return def
	}
	if v := s.configStore.GetFloat(key); v != 0 {
		return v
	}
	return def
}

func (s *SettingsService) getBool(key string, def bool) bool {
	if _, ok := s.configStore.Get(key); !ok {
		return def
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, def time.Duration) time.Duration {
	if v := s.configStore.GetDuration(key); v > 0 {
		return v
	}
	return def
}
