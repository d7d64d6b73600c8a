package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jordanseet/internwatch/internal/model"
)

// Engine owns the per-subscriber pipeline: fetch postings for the
// subscriber's roles, decide which are new for that subscriber, deliver them,
// and keep the delivery ledger bounded.
type Engine struct {
	subscribers model.SubscriberStore
	ledger      model.DeliveryLedger
	source      model.PostingSource
	notifier    model.Notifier
	retention   int
	logger      *slog.Logger
}

// New creates an engine wired with all its dependencies. retention is the
// per-subscriber ledger cap (model.DefaultRetention if <= 0).
func New(
	subscribers model.SubscriberStore,
	ledger model.DeliveryLedger,
	source model.PostingSource,
	notifier model.Notifier,
	retention int,
	logger *slog.Logger,
) *Engine {
	if retention <= 0 {
		retention = model.DefaultRetention
	}
	return &Engine{
		subscribers: subscribers,
		ledger:      ledger,
		source:      source,
		notifier:    notifier,
		retention:   retention,
		logger:      logger,
	}
}

// Process runs one check for one subscriber. It is invoked by the scheduler
// on every tick and ad hoc right after onboarding (to seed the ledger without
// waiting for the first tick).
//
// A subscriber's very first run records every fetched posting without sending
// anything, so a new subscriber is not flooded with the whole backlog; only
// postings appearing after subscription are ever delivered. Storage failures
// abort the run (the next tick retries); a failed delivery is not recorded,
// so that posting is retried on the next tick.
func (e *Engine) Process(ctx context.Context, chatID int64) error {
	sub, err := e.subscribers.Get(chatID)
	if err != nil {
		return fmt.Errorf("processing %d: %w", chatID, err)
	}
	if sub == nil {
		e.logger.Warn("subscriber not found, skipping", "chat_id", chatID)
		return nil
	}
	if len(sub.Roles) == 0 {
		e.logger.Debug("subscriber has no roles, skipping", "chat_id", chatID)
		return nil
	}

	postings, err := e.source.Fetch(ctx, sub.Roles)
	if err != nil {
		return fmt.Errorf("processing %d: fetching postings: %w", chatID, err)
	}

	// Decided once per run so every posting in this batch is treated
	// consistently, even though recording happens incrementally below.
	firstRun, err := e.ledger.HasAnyHistory(chatID)
	if err != nil {
		return fmt.Errorf("processing %d: %w", chatID, err)
	}
	firstRun = !firstRun

	var sent, seeded, skipped, failed int
	for _, p := range postings {
		was, err := e.ledger.WasSent(chatID, p.Link)
		if err != nil {
			return fmt.Errorf("processing %d: %w", chatID, err)
		}
		if was {
			skipped++
			continue
		}

		if firstRun {
			if err := e.ledger.RecordSent(chatID, p.Link, time.Now().UTC()); err != nil {
				return fmt.Errorf("processing %d: %w", chatID, err)
			}
			seeded++
			continue
		}

		if err := e.notifier.NotifyPosting(ctx, chatID, p); err != nil {
			// Not recorded, so the posting is retried next tick.
			e.logger.Error("delivery failed",
				"chat_id", chatID,
				"link", p.Link,
				"error", err,
			)
			failed++
			continue
		}

		if err := e.ledger.RecordSent(chatID, p.Link, time.Now().UTC()); err != nil {
			return fmt.Errorf("processing %d: %w", chatID, err)
		}
		if err := e.ledger.Trim(chatID, e.retention); err != nil {
			return fmt.Errorf("processing %d: %w", chatID, err)
		}
		sent++
	}

	e.logger.Info("processed subscriber",
		"chat_id", chatID,
		"roles", len(sub.Roles),
		"fetched", len(postings),
		"sent", sent,
		"seeded", seeded,
		"skipped", skipped,
		"failed", failed,
		"first_run", firstRun,
	)

	return nil
}
