package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jordanseet/internwatch/internal/notifier"
	"github.com/jordanseet/internwatch/internal/telegram"
)

var notifyChatID int64

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification subcommands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test notification",
	Long:  "Sends a test posting alert to the given chat using the configured notifier.",
	RunE:  runNotifyTest,
}

func init() {
	notifyTestCmd.Flags().Int64Var(&notifyChatID, "chat", 0, "chat id to send the test alert to")
	notifyTestCmd.MarkFlagRequired("chat")
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	client := newTelegramClient(cfg, telegram.NewHTTPClient(cfg.Telegram.PollTimeout), logger)
	n := setupNotifier(cfg, client, logger)

	if err := notifier.SendTestMessage(cmd.Context(), n, notifyChatID); err != nil {
		logger.Error("test notification failed", "error", err)
		os.Exit(1)
	}
	logger.Info("test notification sent successfully", "chat_id", notifyChatID)
	return nil
}
