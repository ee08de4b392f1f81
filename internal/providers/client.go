package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

var errCoolingDown = errors.New("upstream asked to back off")

// maxBody caps how much of a provider response is read.
const maxBody = 4 << 20

// Client performs throttled GET requests on behalf of one provider.
type Client struct {
	Source    domain.SourceKind
	Provider  string
	UserAgent string
	Timeout   time.Duration

	http    *http.Client
	limiter *RateLimiter
}

// NewClient creates a client for a provider. A nil limiter disables throttling.
func NewClient(source domain.SourceKind, provider string, timeout time.Duration, limiter *RateLimiter) *Client {
	if limiter == nil {
		limiter = NewRateLimiter(0, 1)
	}
	return &Client{
		Source:   source,
		Provider: provider,
		Timeout:  timeout,
		http:     &http.Client{},
		limiter:  limiter,
	}
}

// Fail builds a ProviderError for this client.
func (c *Client) Fail(kind domain.ProviderErrorKind, status int, err error) error {
	return &domain.ProviderError{
		Source:     c.Source,
		Provider:   c.Provider,
		Kind:       kind,
		StatusCode: status,
		Err:        err,
	}
}

// GetJSON fetches url and decodes the JSON body into out. Every failure,
// including the per-call timeout, comes back as *domain.ProviderError.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return c.Fail(domain.ProviderErrorRateLimited, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return c.Fail(domain.ProviderErrorConfig, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return c.Fail(domain.ProviderErrorTimeout, 0, err)
		}
		return c.Fail(domain.ProviderErrorNetwork, 0, err)
	}
	defer resp.Body.Close()

	c.limiter.Observe(resp)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return c.Fail(domain.ProviderErrorRateLimited, resp.StatusCode, nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return c.Fail(domain.ProviderErrorStatus, resp.StatusCode, fmt.Errorf("%s", body))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(out); err != nil {
		if ctx.Err() != nil {
			return c.Fail(domain.ProviderErrorTimeout, 0, ctx.Err())
		}
		return c.Fail(domain.ProviderErrorMalformed, resp.StatusCode, err)
	}
	return nil
}
