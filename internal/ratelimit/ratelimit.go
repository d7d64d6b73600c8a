package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jordanseet/internwatch/internal/model"
)

// SourceRateLimiter enforces a minimum delay between requests to the same
// listing site. All subscriber jobs share one instance, so concurrent runs
// cannot hammer the site even when many timers fire together.
type SourceRateLimiter struct {
	mu       sync.Mutex
	lastCall map[string]time.Time // key: site name
	minDelay time.Duration
}

// NewSourceRateLimiter creates a rate limiter that enforces minDelay between
// consecutive requests to the same site.
func NewSourceRateLimiter(minDelay time.Duration) *SourceRateLimiter {
	return &SourceRateLimiter{
		lastCall: make(map[string]time.Time),
		minDelay: minDelay,
	}
}

// Wait blocks until enough time has passed since the last request to the given
// site. Returns an error if the context is cancelled while waiting.
func (r *SourceRateLimiter) Wait(ctx context.Context, site string) error {
	r.mu.Lock()
	last, ok := r.lastCall[site]
	now := time.Now()

	if !ok {
		// First request for this site — no wait needed.
		r.lastCall[site] = now
		r.mu.Unlock()
		return nil
	}

	elapsed := now.Sub(last)
	if elapsed >= r.minDelay {
		// Enough time has passed — proceed immediately.
		r.lastCall[site] = now
		r.mu.Unlock()
		return nil
	}

	// Need to wait for the remainder.
	remaining := r.minDelay - elapsed
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", site, ctx.Err())
	case <-time.After(remaining):
	}

	// Record the actual time after waiting.
	r.mu.Lock()
	r.lastCall[site] = time.Now()
	r.mu.Unlock()

	return nil
}

// RateLimitedSource is a decorator that enforces site-level rate limiting
// before delegating to the wrapped PostingSource.
type RateLimitedSource struct {
	inner   model.PostingSource
	limiter *SourceRateLimiter
	site    string
}

// NewRateLimitedSource wraps a PostingSource with site-level rate limiting.
// All sources targeting the same site should share the same limiter instance.
func NewRateLimitedSource(inner model.PostingSource, limiter *SourceRateLimiter, site string) *RateLimitedSource {
	return &RateLimitedSource{
		inner:   inner,
		limiter: limiter,
		site:    site,
	}
}

// Fetch waits for the rate limiter to allow a request, then delegates to the
// wrapped source.
func (s *RateLimitedSource) Fetch(ctx context.Context, roles []string) ([]model.Posting, error) {
	if err := s.limiter.Wait(ctx, s.site); err != nil {
		return nil, err
	}
	return s.inner.Fetch(ctx, roles)
}
