// Package serpapi answers the "web" source with Google results fetched
// through SerpApi's JSON API.
package serpapi

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driven"
	"github.com/custodia-labs/nexus/internal/providers"
)

// Label tags results from this provider.
const Label = "Google (SerpApi)"

// DefaultBaseURL is the public SerpApi endpoint.
const DefaultBaseURL = "https://serpapi.com"

// Ensure Provider implements the interface.
var _ driven.SearchProvider = (*Provider)(nil)

// Config configures the provider.
type Config struct {
	APIKey    string
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Limiter   *providers.RateLimiter
}

// Provider queries SerpApi.
type Provider struct {
	apiKey  string
	baseURL string
	client  *providers.Client
}

// New creates a SerpApi provider.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	client := providers.NewClient(domain.SourceWeb, "serpapi", cfg.Timeout, cfg.Limiter)
	client.UserAgent = cfg.UserAgent
	return &Provider{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
	}
}

// Kind returns domain.SourceWeb.
func (p *Provider) Kind() domain.SourceKind { return domain.SourceWeb }

// Name returns "serpapi".
func (p *Provider) Name() string { return "serpapi" }

type response struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

// Search returns the top organic results.
func (p *Provider) Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	if p.apiKey == "" {
		return nil, p.client.Fail(domain.ProviderErrorConfig, 0, errors.New("SERPAPI_KEY not configured"))
	}

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("api_key", p.apiKey)
	params.Set("num", strconv.Itoa(limit))

	var resp response
	if err := p.client.GetJSON(ctx, p.baseURL+"/search.json?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" && len(resp.OrganicResults) == 0 {
		// SerpApi reports "no results" the same way as real failures.
		if strings.Contains(strings.ToLower(resp.Error), "hasn't returned any results") {
			return nil, nil
		}
		return nil, p.client.Fail(domain.ProviderErrorStatus, 0, errors.New(resp.Error))
	}

	results := make([]domain.SearchResult, 0, limit)
	for _, r := range resp.OrganicResults {
		if len(results) == limit {
			break
		}
		if r.Link == "" {
			continue
		}
		results = append(results, domain.SearchResult{
			Source:  domain.SourceWeb,
			Label:   Label,
			Title:   r.Title,
			URL:     r.Link,
			Snippet: r.Snippet,
		})
	}
	return results, nil
}
