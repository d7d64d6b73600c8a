package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Optional .env for BOT_TOKEN and friends; absence is not an error.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
