package app

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Ingest fetches listing events for the window and persists them.
func (a *App) Ingest(ctx context.Context, opts IngestOptions) error {
	if !opts.From.Before(opts.To) {
		return errors.New("ingest window is empty; check --from/--to")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(store)

	stats, err := svc.IngestRange(ctx, opts.From, opts.To)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Int("fetched", stats.Fetched).
		Int("inserted", stats.Inserted).
		Int("duplicates", stats.Duplicates).
		Msg("ingestion complete")
	fmt.Fprintf(os.Stdout, "Ingested %d events (%d new, %d already stored)\n", stats.Fetched, stats.Inserted, stats.Duplicates)
	return nil
}
