package storage

import "time"

// StoredEvent is the durable copy of a listing announcement. Rows are
// append-only: created by ingestion, never updated, never deleted.
type StoredEvent struct {
	ID           int64
	CoinID       string
	CoinName     string
	CoinSymbol   string
	CoinFullname string
	EventName    string
	EventDate    time.Time
	CreatedAt    time.Time
}
