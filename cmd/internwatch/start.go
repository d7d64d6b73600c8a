package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jordanseet/internwatch/internal/bot"
	"github.com/jordanseet/internwatch/internal/engine"
	"github.com/jordanseet/internwatch/internal/scheduler"
	"github.com/jordanseet/internwatch/internal/store"
	"github.com/jordanseet/internwatch/internal/telegram"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the bot daemon",
	Long:  "Runs the Telegram dialogue loop and the per-subscriber check scheduler; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"check_interval", cfg.CheckInterval.String(),
		"database", cfg.DatabasePath,
		"retention", cfg.Retention,
		"notification", cfg.Notification.Type,
	)

	sqlStore, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	// The Telegram client long-polls, so it gets its own http.Client whose
	// timeout outlives the poll window; the source timeout would cut every
	// idle getUpdates short.
	client := newTelegramClient(cfg, telegram.NewHTTPClient(cfg.Telegram.PollTimeout), logger)
	src := buildSource(cfg, &http.Client{Timeout: cfg.Source.Timeout}, logger)
	n := setupNotifier(cfg, client, logger)

	eng := engine.New(sqlStore, sqlStore, src, n, cfg.Retention, logger)
	sched := scheduler.New(eng, sqlStore, cfg.CheckInterval, logger)
	b := bot.New(client, sqlStore, sched, eng, cfg.Telegram.PollTimeout, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx); err != nil {
		logger.Error("scheduler start failed", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		sched.Stop()
		return nil
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("daemon error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
