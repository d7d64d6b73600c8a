package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jordanseet/internwatch/internal/config"
	"github.com/jordanseet/internwatch/internal/model"
	"github.com/jordanseet/internwatch/internal/notifier"
	"github.com/jordanseet/internwatch/internal/ratelimit"
	"github.com/jordanseet/internwatch/internal/retry"
	"github.com/jordanseet/internwatch/internal/source"
	"github.com/jordanseet/internwatch/internal/telegram"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "internwatch",
	Short: "Internship radar for InternSG",
	Long:  "InternWatch watches InternSG listings and alerts Telegram subscribers to new postings matching their roles.",
	// Default to `start` so that `internwatch` with no args runs the daemon.
	// This preserves compatibility with systemd unit files that invoke the binary directly.
	RunE: runStart,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: INTERNWATCH_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > INTERNWATCH_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("INTERNWATCH_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// buildSource wires the InternSG fetcher with retries and site-level rate
// limiting, the same decorator chain for every command that fetches.
func buildSource(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.PostingSource {
	var src model.PostingSource = source.NewInternSG(cfg.Source.BaseURL, httpClient, logger)
	src = retry.NewRetrySource(src, 2, 5*time.Second, logger)

	limiter := ratelimit.NewSourceRateLimiter(cfg.Source.MinDelay)
	src = ratelimit.NewRateLimitedSource(src, limiter, "internsg")

	// Fanout sits outermost so each keyword request passes through the
	// limiter and the retry loop on its own, and one bad keyword cannot
	// sink the whole run.
	return source.NewKeywordFanout(src, logger)
}

func newTelegramClient(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) *telegram.Client {
	return telegram.New(telegram.DefaultBaseURL, cfg.Telegram.Token, httpClient, logger)
}

func setupNotifier(cfg *config.Config, client *telegram.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "log":
		return notifier.NewLogNotifier(logger)
	default:
		logger.Info("using telegram notifier")
		return notifier.NewTelegramNotifier(client, cfg.Source.BaseURL, logger)
	}
}
