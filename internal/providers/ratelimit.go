package providers

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HeaderRetryAfter is the standard back-off header (seconds or HTTP date).
const HeaderRetryAfter = "Retry-After"

// RateLimiter combines a proactive token bucket with a reactive cooldown
// learned from 429 responses.
type RateLimiter struct {
	mu            sync.Mutex
	bucket        *rate.Limiter
	cooldownUntil time.Time
}

// NewRateLimiter allows rps requests per second with the given burst.
// A non-positive rps disables proactive throttling.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{bucket: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a request may be sent. It fails immediately, without
// waiting, when the wait would outlast the context deadline or the
// upstream asked us to back off.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	cooling := time.Now().Before(r.cooldownUntil)
	r.mu.Unlock()
	if cooling {
		return errCoolingDown
	}
	return r.bucket.Wait(ctx)
}

// Observe records back-off instructions from a response.
func (r *RateLimiter) Observe(resp *http.Response) {
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		return
	}

	wait := time.Second
	if v := resp.Header.Get(HeaderRetryAfter); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			wait = time.Duration(secs) * time.Second
		} else if at, err := http.ParseTime(v); err == nil {
			wait = time.Until(at)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if until := time.Now().Add(wait); until.After(r.cooldownUntil) {
		r.cooldownUntil = until
	}
}

// CoolingDown reports whether the limiter is honouring a Retry-After.
func (r *RateLimiter) CoolingDown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Now().Before(r.cooldownUntil)
}
