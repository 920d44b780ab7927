package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"listing-backtest/internal/app"
)

var evaluateDay string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Replay one day's stored events through the backtest",
	RunE: func(cmd *cobra.Command, args []string) error {
		day := time.Now().UTC().AddDate(0, 0, -1)
		if evaluateDay != "" {
			parsed, err := time.Parse("2006-01-02", evaluateDay)
			if err != nil {
				return fmt.Errorf("invalid --day value: %w", err)
			}
			day = parsed
		}

		opts := app.EvaluateOptions{Day: day}
		return getApp().Evaluate(cmd.Context(), opts)
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateDay, "day", "", "UTC calendar day to evaluate (YYYY-MM-DD, defaults to yesterday)")
}
