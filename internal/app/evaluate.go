package app

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"listing-backtest/internal/service"
)

var hundred = decimal.NewFromInt(100)

// Evaluate replays one day's stored events through the backtest.
func (a *App) Evaluate(ctx context.Context, opts EvaluateOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(store)

	stats, err := svc.EvaluateDay(ctx, opts.Day)
	if err != nil {
		return err
	}

	printEvalSummary(stats)
	return nil
}

func printEvalSummary(stats service.EvalStats) {
	if stats.Evaluated == 0 {
		fmt.Fprintln(os.Stdout, "No events with available market data")
		return
	}
	fmt.Fprintf(os.Stdout, "Average P&L over %d events: %s%%\n", stats.Evaluated, stats.AveragePnL.Mul(hundred).StringFixed(2))
	if stats.ReportPath != "" {
		fmt.Fprintf(os.Stdout, "Report written to %s\n", stats.ReportPath)
	}
}
