// Package googlecse answers the "web" source with Google Programmable
// Search (Custom Search JSON API) through google.golang.org/api.
package googlecse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driven"
	"github.com/custodia-labs/nexus/internal/providers"
)

// Label tags results from this provider.
const Label = "Google"

// maxNum is the largest page size the API accepts.
const maxNum = 10

// Ensure Provider implements the interface.
var _ driven.SearchProvider = (*Provider)(nil)

// Config configures the provider.
type Config struct {
	APIKey   string
	EngineID string

	// Endpoint overrides the API base URL, e.g. for tests.
	Endpoint string

	Timeout time.Duration
	Limiter *providers.RateLimiter
}

// Provider queries the Custom Search API.
type Provider struct {
	engineID string
	svc      *customsearch.Service
	client   *providers.Client
	limiter  *providers.RateLimiter
	timeout  time.Duration
}

// New creates a Custom Search provider.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	client := providers.NewClient(domain.SourceWeb, "google_cse", cfg.Timeout, cfg.Limiter)
	if cfg.APIKey == "" || cfg.EngineID == "" {
		return nil, client.Fail(domain.ProviderErrorConfig, 0, errors.New("GOOGLE_CSE_KEY and GOOGLE_CSE_CX are required"))
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, client.Fail(domain.ProviderErrorConfig, 0, fmt.Errorf("creating custom search service: %w", err))
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = providers.NewRateLimiter(0, 1)
	}
	return &Provider{
		engineID: cfg.EngineID,
		svc:      svc,
		client:   client,
		limiter:  limiter,
		timeout:  cfg.Timeout,
	}, nil
}

// Kind returns domain.SourceWeb.
func (p *Provider) Kind() domain.SourceKind { return domain.SourceWeb }

// Name returns "google_cse".
func (p *Provider) Name() string { return "google_cse" }

// Search returns up to limit web results.
func (p *Provider) Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, p.client.Fail(domain.ProviderErrorRateLimited, 0, err)
	}

	num := int64(limit)
	if num > maxNum {
		num = maxNum
	}
	res, err := p.svc.Cse.List().Cx(p.engineID).Q(query).Num(num).Context(ctx).Do()
	if err != nil {
		return nil, p.classify(ctx, err)
	}

	results := make([]domain.SearchResult, 0, len(res.Items))
	for _, item := range res.Items {
		if len(results) == limit {
			break
		}
		results = append(results, domain.SearchResult{
			Source:  domain.SourceWeb,
			Label:   Label,
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
		})
	}
	return results, nil
}

func (p *Provider) classify(ctx context.Context, err error) error {
	var apiErr *googleapi.Error
	switch {
	case errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests:
		return p.client.Fail(domain.ProviderErrorRateLimited, apiErr.Code, err)
	case errors.As(err, &apiErr):
		return p.client.Fail(domain.ProviderErrorStatus, apiErr.Code, err)
	case ctx.Err() != nil:
		return p.client.Fail(domain.ProviderErrorTimeout, 0, err)
	default:
		return p.client.Fail(domain.ProviderErrorNetwork, 0, err)
	}
}
