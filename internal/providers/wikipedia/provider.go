// Package wikipedia answers the "wiki" source with MediaWiki full-text search.
package wikipedia

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driven"
	"github.com/custodia-labs/nexus/internal/normalisers/html"
	"github.com/custodia-labs/nexus/internal/providers"
)

// Label tags results from this provider.
const Label = "Wikipedia"

// DefaultBaseURL is English Wikipedia.
const DefaultBaseURL = "https://en.wikipedia.org"

// Ensure Provider implements the interface.
var _ driven.SearchProvider = (*Provider)(nil)

// Config configures the provider.
type Config struct {
	BaseURL string

	// UserAgent is required by Wikimedia's API etiquette.
	UserAgent string
	Timeout   time.Duration
	Limiter   *providers.RateLimiter
}

// Provider queries the MediaWiki search API.
type Provider struct {
	baseURL string
	client  *providers.Client
}

// New creates a Wikipedia provider.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	client := providers.NewClient(domain.SourceWikipedia, "wikipedia", cfg.Timeout, cfg.Limiter)
	client.UserAgent = cfg.UserAgent
	return &Provider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
	}
}

// Kind returns domain.SourceWikipedia.
func (p *Provider) Kind() domain.SourceKind { return domain.SourceWikipedia }

// Name returns "wikipedia".
func (p *Provider) Name() string { return "wikipedia" }

type response struct {
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
	Query *struct {
		Search []struct {
			Title   string `json:"title"`
			PageID  int64  `json:"pageid"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

// Search returns matching articles. Snippets arrive as HTML with
// <span class="searchmatch"> markers and are reduced to text.
func (p *Provider) Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(limit))
	params.Set("utf8", "1")
	params.Set("format", "json")

	var resp response
	if err := p.client.GetJSON(ctx, p.baseURL+"/w/api.php?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, p.client.Fail(domain.ProviderErrorStatus, 0,
			fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Info))
	}
	if resp.Query == nil {
		return nil, p.client.Fail(domain.ProviderErrorMalformed, 0, errors.New("missing query object"))
	}

	results := make([]domain.SearchResult, 0, len(resp.Query.Search))
	for _, hit := range resp.Query.Search {
		if len(results) == limit {
			break
		}
		results = append(results, domain.SearchResult{
			Source:  domain.SourceWikipedia,
			Label:   Label,
			Title:   hit.Title,
			URL:     fmt.Sprintf("%s/?curid=%d", p.baseURL, hit.PageID),
			Snippet: html.StripTags(hit.Snippet),
		})
	}
	return results, nil
}
