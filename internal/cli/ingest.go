package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"listing-backtest/internal/app"
)

var (
	ingestFrom string
	ingestTo   string
	ingestDays int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch listing events and persist them",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now().UTC()
		to := now
		from := now.AddDate(0, 0, -ingestDays)

		if ingestFrom != "" {
			parsed, err := time.Parse("2006-01-02", ingestFrom)
			if err != nil {
				return fmt.Errorf("invalid --from value: %w", err)
			}
			from = parsed
		}
		if ingestTo != "" {
			parsed, err := time.Parse("2006-01-02", ingestTo)
			if err != nil {
				return fmt.Errorf("invalid --to value: %w", err)
			}
			to = parsed
		}

		opts := app.IngestOptions{From: from, To: to}
		return getApp().Ingest(cmd.Context(), opts)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFrom, "from", "", "Window start date (YYYY-MM-DD, defaults to --days ago)")
	ingestCmd.Flags().StringVar(&ingestTo, "to", "", "Window end date (YYYY-MM-DD, defaults to today)")
	ingestCmd.Flags().IntVar(&ingestDays, "days", 7, "Window length in days when --from is not given")
}
