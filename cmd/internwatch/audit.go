package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/jordanseet/internwatch/internal/audit"
	"github.com/jordanseet/internwatch/internal/model"
	"github.com/jordanseet/internwatch/internal/store"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Browse a subscriber's delivery state (TUI)",
	Long:  "Shows the subscriber picker, fetches the current postings for their roles, and launches the split-pane audit view marking each posting SENT or NEW.",
	RunE:  runAuditCmd,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

func runAuditCmd(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	sqlStore, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	subs, err := sqlStore.List()
	if err != nil {
		logger.Error("failed to list subscribers", "error", err)
		os.Exit(1)
	}
	if len(subs) == 0 {
		fmt.Println("No subscribers yet.")
		return nil
	}

	httpClient := &http.Client{Timeout: cfg.Source.Timeout}
	// The TUI owns the terminal; route fetch logging nowhere so nothing
	// printed before the alt-screen starts corrupts the display.
	silentLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := buildSource(cfg, httpClient, silentLogger)

	for {
		choice, err := audit.RunSubscriberPicker(subs)
		if err != nil {
			fmt.Printf("Picker error: %v\n", err)
			return nil
		}
		if choice < 0 {
			return nil
		}
		sub := subs[choice]

		label := fmt.Sprintf("chat %d", sub.ChatID)
		if sub.Profile.Name != "" {
			label = sub.Profile.Name
		}

		postings, err := audit.RunLoader(label, func(ctx context.Context) ([]model.Posting, error) {
			return src.Fetch(ctx, sub.Roles)
		})
		if err != nil {
			fmt.Printf("Error fetching postings: %v\n", err)
			continue
		}

		var all, pending []audit.Entry
		for _, p := range postings {
			sentAt, sent, err := sqlStore.SentAt(sub.ChatID, p.Link)
			if err != nil {
				fmt.Printf("Ledger error: %v\n", err)
				break
			}
			entry := audit.Entry{Posting: p, Sent: sent, SentAt: sentAt}
			all = append(all, entry)
			if !sent {
				pending = append(pending, entry)
			}
		}

		wantQuit, err := audit.RunAuditTUI(sub.ChatID, all, pending)
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			return nil
		}
		// else: loop → back to picker
	}
}
