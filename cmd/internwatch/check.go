package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jordanseet/internwatch/internal/engine"
	"github.com/jordanseet/internwatch/internal/notifier"
	"github.com/jordanseet/internwatch/internal/store"
)

var checkCmd = &cobra.Command{
	Use:   "check [chat_id]",
	Short: "Run one check, print matches, exit",
	Long:  "One-shot check: fetches postings for each subscriber's roles and logs what would be delivered. Does not send messages or write to the ledger.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("check mode: nothing will be sent or recorded")

	sqlStore, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	httpClient := &http.Client{Timeout: cfg.Source.Timeout}
	src := buildSource(cfg, httpClient, logger)

	// NopLedger reports existing history and records nothing, so every
	// posting in the feed is logged as a would-be delivery.
	eng := engine.New(sqlStore, store.NewNopLedger(), src, notifier.NewLogNotifier(logger), cfg.Retention, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var chatIDs []int64
	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			logger.Error("invalid chat id", "arg", args[0])
			os.Exit(1)
		}
		chatIDs = append(chatIDs, id)
	} else {
		subs, err := sqlStore.List()
		if err != nil {
			logger.Error("failed to list subscribers", "error", err)
			os.Exit(1)
		}
		for _, sub := range subs {
			chatIDs = append(chatIDs, sub.ChatID)
		}
	}

	if len(chatIDs) == 0 {
		logger.Info("no subscribers to check")
		return nil
	}

	for _, chatID := range chatIDs {
		if err := eng.Process(ctx, chatID); err != nil {
			logger.Error("check failed", "chat_id", chatID, "error", err)
		}
	}

	logger.Info("check complete")
	return nil
}
