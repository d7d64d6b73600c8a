package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jordanseet/internwatch/internal/store"
)

var subscribersCmd = &cobra.Command{
	Use:   "subscribers",
	Short: "List all subscribers",
	Long:  "Reads the database and prints a table of all subscribers with their roles and ledger sizes.",
	RunE:  runSubscribers,
}

func init() {
	rootCmd.AddCommand(subscribersCmd)
}

func runSubscribers(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	sqlStore, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	subs, err := sqlStore.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list subscribers: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%-12s %-20s %-40s %s\n", "Chat ID", "Name", "Roles", "Ledger")
	fmt.Println(strings.Repeat("─", 82))

	for _, sub := range subs {
		count, err := sqlStore.Count(sub.ChatID)
		if err != nil {
			count = -1
		}
		name := sub.Profile.Name
		if name == "" {
			name = "-"
		}
		fmt.Printf("%-12d %-20s %-40s %d\n", sub.ChatID, name, strings.Join(sub.Roles, ", "), count)
	}

	fmt.Printf("\nTotal: %d subscribers\n", len(subs))
	return nil
}
