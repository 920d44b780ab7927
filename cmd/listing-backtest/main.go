package main

import (
	"github.com/joho/godotenv"

	"listing-backtest/internal/cli"
)

func main() {
	// Credentials commonly live in a local .env during development.
	_ = godotenv.Load()
	cli.Execute()
}
