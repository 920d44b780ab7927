package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"listing-backtest/internal/scheduler"
)

// Run executes a single ingest-or-evaluate decision pass: replay yesterday's
// stored events when they exist, otherwise ingest the upcoming window.
func (a *App) Run(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(store)

	decision, err := svc.DecideAndRun(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	if decision.Replayed {
		fmt.Fprintf(os.Stdout, "Replayed events for %s\n", decision.Day.Format("2006-01-02"))
		printEvalSummary(*decision.Eval)
		return nil
	}

	fmt.Fprintf(os.Stdout, "Ingested %d events (%d new, %d already stored)\n",
		decision.Ingest.Fetched, decision.Ingest.Inserted, decision.Ingest.Duplicates)
	return nil
}

// Watch repeats the decision pass on the configured cadence until
// interrupted.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(store)

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToStart,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting watch loop")

	err = sched.Run(ctx, func(ctx context.Context, bucket time.Time) error {
		_, err := svc.DecideAndRun(ctx, bucket)
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watch loop terminated with error")
		return err
	}

	a.Logger.Info().Msg("watch loop stopped")
	return nil
}
