package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

const (
	createCoinEventsSQL = `CREATE TABLE IF NOT EXISTS coin_events (
        id BIGSERIAL PRIMARY KEY,
        coin_id TEXT NOT NULL,
        coin_name TEXT NOT NULL DEFAULT '',
        coin_symbol TEXT NOT NULL DEFAULT '',
        coin_fullname TEXT NOT NULL DEFAULT '',
        event_name TEXT NOT NULL DEFAULT '',
        event_date TIMESTAMPTZ NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        CONSTRAINT uq_coin_event UNIQUE (coin_id, event_name, event_date)
    );
    CREATE INDEX IF NOT EXISTS idx_coin_events_event_date ON coin_events (event_date);`

	insertEventSQL = `INSERT INTO coin_events (
        coin_id,
        coin_name,
        coin_symbol,
        coin_fullname,
        event_name,
        event_date
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT ON CONSTRAINT uq_coin_event DO NOTHING;`

	eventsForDaySQL = `SELECT
        id,
        coin_id,
        coin_name,
        coin_symbol,
        coin_fullname,
        event_name,
        event_date,
        created_at
    FROM coin_events
    WHERE event_date >= $1
      AND event_date < $2
    ORDER BY event_date, id;`

	listRecentEventsSQL = `SELECT
        id,
        coin_id,
        coin_name,
        coin_symbol,
        coin_fullname,
        event_name,
        event_date,
        created_at
    FROM coin_events
    ORDER BY event_date DESC
    LIMIT $1;`
)

// EventStore defines operations for listing-event persistence.
type EventStore interface {
	// InsertEvent persists an event. A uniqueness conflict on
	// (coin_id, event_name, event_date) reports inserted=false without an
	// error; any other persistence failure propagates.
	InsertEvent(ctx context.Context, event StoredEvent) (bool, error)
	// EventsForDay returns rows whose event_date falls on the given UTC
	// calendar day.
	EventsForDay(ctx context.Context, day time.Time) ([]StoredEvent, error)
	ListRecentEvents(ctx context.Context, limit int) ([]StoredEvent, error)
}

// Store persists listing events in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the coin_events table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, createCoinEventsSQL); execErr != nil {
		return fmt.Errorf("ensure schema: %w", execErr)
	}
	return nil
}

// InsertEvent implements EventStore.
func (s *Store) InsertEvent(ctx context.Context, event StoredEvent) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	cmdTag, execErr := pool.Exec(ctx, insertEventSQL,
		event.CoinID,
		event.CoinName,
		event.CoinSymbol,
		event.CoinFullname,
		event.EventName,
		event.EventDate.UTC(),
	)
	if execErr != nil {
		return false, fmt.Errorf("insert event: %w", execErr)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// EventsForDay implements EventStore.
func (s *Store) EventsForDay(ctx context.Context, day time.Time) ([]StoredEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	day = day.UTC()
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	rows, queryErr := pool.Query(ctx, eventsForDaySQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("events for day: %w", queryErr)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// ListRecentEvents implements EventStore.
func (s *Store) ListRecentEvents(ctx context.Context, limit int) ([]StoredEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentEventsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent events: %w", queryErr)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]StoredEvent, error) {
	events := make([]StoredEvent, 0)
	for rows.Next() {
		var ev StoredEvent
		if err := rows.Scan(
			&ev.ID,
			&ev.CoinID,
			&ev.CoinName,
			&ev.CoinSymbol,
			&ev.CoinFullname,
			&ev.EventName,
			&ev.EventDate,
			&ev.CreatedAt,
		); err != nil {
			return nil, err
		}
		ev.EventDate = ev.EventDate.UTC()
		events = append(events, ev)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

var _ EventStore = (*Store)(nil)
