package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jordanseet/internwatch/internal/model"
)

// KeywordFanout splits a multi-role fetch into one inner Fetch per keyword, so
// decorators between it and the scraper (retry, rate limiting) apply to every
// site request rather than once per run. A failed keyword is logged and
// contributes nothing; the remaining keywords are still fetched.
type KeywordFanout struct {
	inner  model.PostingSource
	logger *slog.Logger
}

// NewKeywordFanout wraps a PostingSource, delegating one keyword at a time.
// Compose it outermost in the decorator chain.
func NewKeywordFanout(inner model.PostingSource, logger *slog.Logger) *KeywordFanout {
	return &KeywordFanout{
		inner:  inner,
		logger: logger,
	}
}

// Fetch fans the roles out to the wrapped source one keyword per call.
func (s *KeywordFanout) Fetch(ctx context.Context, roles []string) ([]model.Posting, error) {
	var postings []model.Posting
	for _, role := range roles {
		found, err := s.inner.Fetch(ctx, []string{role})
		if err != nil {
			if ctx.Err() != nil {
				return postings, fmt.Errorf("fetch for %q: %w", role, ctx.Err())
			}
			s.logger.Warn("keyword fetch failed, skipping",
				"keyword", role,
				"error", err,
			)
			continue
		}
		postings = append(postings, found...)
	}
	return postings, nil
}
