// Package duckduckgo answers the "ddg" source with DuckDuckGo's Instant
// Answer API. That API has no organic results, so the abstract and related
// topics are returned, and a link to the full results page when both are empty.
package duckduckgo

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driven"
	"github.com/custodia-labs/nexus/internal/providers"
)

// Labels for results from this provider.
const (
	LabelInstant = "DuckDuckGo (Instant)"
	Label        = "DuckDuckGo"
)

// DefaultBaseURL is the Instant Answer endpoint.
const DefaultBaseURL = "https://api.duckduckgo.com"

// Ensure Provider implements the interface.
var _ driven.SearchProvider = (*Provider)(nil)

// Config configures the provider.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Limiter   *providers.RateLimiter
}

// Provider queries the Instant Answer API.
type Provider struct {
	baseURL string
	client  *providers.Client
}

// New creates a DuckDuckGo provider.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	client := providers.NewClient(domain.SourceDDG, "duckduckgo", cfg.Timeout, cfg.Limiter)
	client.UserAgent = cfg.UserAgent
	return &Provider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
	}
}

// Kind returns domain.SourceDDG.
func (p *Provider) Kind() domain.SourceKind { return domain.SourceDDG }

// Name returns "duckduckgo".
func (p *Provider) Name() string { return "duckduckgo" }

type topic struct {
	Text     string  `json:"Text"`
	FirstURL string  `json:"FirstURL"`
	Name     string  `json:"Name"`
	Topics   []topic `json:"Topics"`
}

type response struct {
	Heading       string  `json:"Heading"`
	AbstractText  string  `json:"AbstractText"`
	AbstractURL   string  `json:"AbstractURL"`
	Answer        string  `json:"Answer"`
	RelatedTopics []topic `json:"RelatedTopics"`
}

// Search returns the abstract followed by related topics.
func (p *Provider) Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	var resp response
	if err := p.client.GetJSON(ctx, p.baseURL+"/?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	var results []domain.SearchResult
	if resp.AbstractText != "" && resp.AbstractURL != "" {
		title := resp.Heading
		if title == "" {
			title = query
		}
		results = append(results, domain.SearchResult{
			Source:  domain.SourceDDG,
			Label:   LabelInstant,
			Title:   title,
			URL:     resp.AbstractURL,
			Snippet: resp.AbstractText,
		})
	}

	for _, t := range flatten(resp.RelatedTopics) {
		if len(results) >= limit {
			break
		}
		results = append(results, domain.SearchResult{
			Source:  domain.SourceDDG,
			Label:   Label,
			Title:   topicTitle(t),
			URL:     t.FirstURL,
			Snippet: t.Text,
		})
	}

	if len(results) == 0 {
		results = append(results, fallback(query))
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// flatten expands grouped topics and drops entries without a link.
func flatten(topics []topic) []topic {
	var out []topic
	for _, t := range topics {
		if len(t.Topics) > 0 {
			out = append(out, flatten(t.Topics)...)
			continue
		}
		if t.FirstURL != "" && t.Text != "" {
			out = append(out, t)
		}
	}
	return out
}

// topicTitle uses the text before " - " when present, otherwise the last
// path segment of the topic URL.
func topicTitle(t topic) string {
	if i := strings.Index(t.Text, " - "); i > 0 {
		return t.Text[:i]
	}
	if u, err := url.Parse(t.FirstURL); err == nil {
		if slug := path.Base(u.Path); slug != "" && slug != "/" && slug != "." {
			if s, err := url.PathUnescape(slug); err == nil {
				slug = s
			}
			return strings.ReplaceAll(slug, "_", " ")
		}
	}
	return t.Text
}

func fallback(query string) domain.SearchResult {
	return domain.SearchResult{
		Source:  domain.SourceDDG,
		Label:   Label,
		Title:   fmt.Sprintf("Search DuckDuckGo for %q", query),
		URL:     "https://duckduckgo.com/?q=" + url.QueryEscape(query),
		Snippet: "No instant answer available. Open the full results on DuckDuckGo.",
	}
}
