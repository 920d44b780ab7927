package fetcher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"listing-backtest/internal/backtest"
)

// FallbackChain tries the primary candle source and, when it yields no data,
// the fallback venue. HTTP errors from either source propagate unchanged;
// only the "no data" outcome triggers the fallback.
type FallbackChain struct {
	primary  CandleFetcher
	fallback CandleFetcher
	logger   zerolog.Logger
}

// NewFallbackChain composes candle sources. fallback may be nil.
func NewFallbackChain(primary, fallback CandleFetcher, logger zerolog.Logger) *FallbackChain {
	return &FallbackChain{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With().Str("component", "candle_chain").Logger(),
	}
}

// FetchCandles implements CandleFetcher.
func (f *FallbackChain) FetchCandles(ctx context.Context, symbol string, start, end time.Time) ([]backtest.Candle, error) {
	candles, err := f.primary.FetchCandles(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(candles) > 0 || f.fallback == nil {
		return candles, nil
	}

	f.logger.Debug().Str("symbol", symbol).Msg("primary source has no data; trying fallback venue")
	return f.fallback.FetchCandles(ctx, symbol, start, end)
}

var _ CandleFetcher = (*FallbackChain)(nil)
