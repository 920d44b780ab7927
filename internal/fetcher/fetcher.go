package fetcher

import (
	"context"
	"time"

	"listing-backtest/internal/backtest"
)

// ListingEvent is an exchange-listing announcement as returned by the
// announcements API, reduced to the fields the pipeline persists.
type ListingEvent struct {
	CoinID       string
	CoinName     string
	CoinSymbol   string
	CoinFullname string
	EventName    string
	EventDate    time.Time
}

// EventFetcher retrieves listing announcements within a date range.
type EventFetcher interface {
	FetchEvents(ctx context.Context, from, to time.Time) ([]ListingEvent, error)
}

// CandleFetcher retrieves OHLC candles for a symbol within a time window,
// ordered ascending by open time. An empty series is the "no data" signal;
// it is not an error.
type CandleFetcher interface {
	FetchCandles(ctx context.Context, symbol string, start, end time.Time) ([]backtest.Candle, error)
}
