// Package scheduler runs the alert check for each subscriber on a fixed
// interval, one independent job per chat.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jordanseet/internwatch/internal/model"
)

// Processor runs one alert check for a single subscriber.
type Processor interface {
	Process(ctx context.Context, chatID int64) error
}

// Scheduler owns a cron runner and one recurring entry per subscriber.
// Jobs for the same subscriber never overlap; a slow check skips the
// next tick instead of stacking.
type Scheduler struct {
	cron     *cron.Cron
	proc     Processor
	subs     model.SubscriberStore
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[int64]cron.EntryID
	started bool
}

func New(proc Processor, subs model.SubscriberStore, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cronLogger{logger})),
		proc:     proc,
		subs:     subs,
		interval: interval,
		logger:   logger,
		entries:  make(map[int64]cron.EntryID),
	}
}

// Start registers a job for every stored subscriber and starts the cron
// runner. Calling Start on a started scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if err := s.ensureAll(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "interval", s.interval, "jobs", s.JobCount())
	return nil
}

// Stop halts the cron runner and waits for any running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// EnsureJob registers the recurring check for a subscriber. Registering
// a chat that already has a job is a no-op, so callers can invoke it on
// every /start without tracking state.
func (s *Scheduler) EnsureJob(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[chatID]; ok {
		return nil
	}

	job := cron.NewChain(
		cron.Recover(cronLogger{s.logger}),
		cron.SkipIfStillRunning(cronLogger{s.logger}),
	).Then(s.newJob(ctx, chatID))

	id, err := s.cron.AddJob(fmt.Sprintf("@every %s", s.interval), job)
	if err != nil {
		return fmt.Errorf("add job for chat %d: %w", chatID, err)
	}
	s.entries[chatID] = id
	s.logger.Debug("job registered", "chat_id", chatID)
	return nil
}

// RemoveJob unregisters a subscriber's recurring check. Removing an
// unknown chat is a no-op.
func (s *Scheduler) RemoveJob(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[chatID]
	if !ok {
		return
	}
	s.cron.Remove(id)
	delete(s.entries, chatID)
	s.logger.Debug("job removed", "chat_id", chatID)
}

// JobCount reports how many subscribers currently have a registered job.
func (s *Scheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Scheduler) ensureAll(ctx context.Context) error {
	subs, err := s.subs.List()
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}
	for i := range subs {
		if err := s.EnsureJob(ctx, subs[i].ChatID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) newJob(ctx context.Context, chatID int64) cron.FuncJob {
	return func() {
		if err := s.proc.Process(ctx, chatID); err != nil {
			s.logger.Error("check failed", "chat_id", chatID, "error", err)
		}
	}
}

// cronLogger adapts slog for the cron chain wrappers.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
