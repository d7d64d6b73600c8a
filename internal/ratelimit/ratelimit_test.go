package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/jordanseet/internwatch/internal/model"
)

func TestWait_SameSite_EnforcesMinDelay(t *testing.T) {
	limiter := NewSourceRateLimiter(100 * time.Millisecond)
	ctx := context.Background()

	// First call should return immediately.
	if err := limiter.Wait(ctx, "internsg"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, "internsg"); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	elapsed := time.Since(start)

	// Should have waited at least ~100ms (allow 80ms for timer jitter).
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait, got %v", elapsed)
	}
}

func TestWait_DifferentSites_NoCrossBlocking(t *testing.T) {
	limiter := NewSourceRateLimiter(200 * time.Millisecond)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "internsg"); err != nil {
		t.Fatalf("internsg wait: %v", err)
	}

	// Immediately call for another site — should NOT block.
	start := time.Now()
	if err := limiter.Wait(ctx, "other"); err != nil {
		t.Fatalf("other wait: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed > 50*time.Millisecond {
		t.Errorf("expected other-site wait to be near-instant, got %v", elapsed)
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	limiter := NewSourceRateLimiter(5 * time.Second) // long delay
	ctx := context.Background()

	// First call to seed the last-call time.
	if err := limiter.Wait(ctx, "internsg"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	// Cancel the context before the wait completes.
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	err := limiter.Wait(ctx, "internsg")
	if err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

// --- Mock for RateLimitedSource test ---

type recordingSource struct {
	called bool
}

func (s *recordingSource) Fetch(_ context.Context, _ []string) ([]model.Posting, error) {
	s.called = true
	return nil, nil
}

func TestRateLimitedSource_DelegatesAfterWait(t *testing.T) {
	limiter := NewSourceRateLimiter(10 * time.Millisecond)
	inner := &recordingSource{}
	src := NewRateLimitedSource(inner, limiter, "internsg")

	if _, err := src.Fetch(context.Background(), []string{"software"}); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !inner.called {
		t.Error("expected wrapped source to be called")
	}
}

func TestRateLimitedSource_CancelledContextSkipsDelegate(t *testing.T) {
	limiter := NewSourceRateLimiter(5 * time.Second)
	// Seed so the next Wait would block.
	if err := limiter.Wait(context.Background(), "internsg"); err != nil {
		t.Fatalf("seed wait: %v", err)
	}

	inner := &recordingSource{}
	src := NewRateLimitedSource(inner, limiter, "internsg")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := src.Fetch(ctx, []string{"software"}); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if inner.called {
		t.Error("wrapped source should not be called when wait fails")
	}
}
