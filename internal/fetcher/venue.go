package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"listing-backtest/internal/backtest"
)

// VenueOptions parameterise the fallback exchange kline endpoint.
type VenueOptions struct {
	BaseURL string
	// QuoteAsset is appended to the coin symbol to form the traded pair,
	// e.g. FOO + USDT -> FOOUSDT.
	QuoteAsset string
	Interval   Interval
	Timeout    time.Duration
}

// Venue fetches klines straight from the exchange the strategy trades on.
// It is the fallback when the token feed has no data for a symbol.
type Venue struct {
	opts    VenueOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewVenue constructs the fallback candle source.
func NewVenue(opts VenueOptions, logger zerolog.Logger) *Venue {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Venue{
		opts:    opts,
		logger:  logger.With().Str("component", "venue_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// FetchCandles retrieves klines for the symbol's quote pair in [start, end].
func (v *Venue) FetchCandles(ctx context.Context, symbol string, start, end time.Time) ([]backtest.Candle, error) {
	pair := strings.ToUpper(symbol) + strings.ToUpper(v.opts.QuoteAsset)

	params := url.Values{}
	params.Set("symbol", pair)
	params.Set("interval", string(v.opts.Interval))
	params.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	params.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("venue kline error (%d) for %s: %s", resp.StatusCode, pair, strings.TrimSpace(string(payload)))
	}

	// Rows are [openTimeMs, open, high, low, close, volume, closeTimeMs, ...]
	// with prices serialised as strings.
	var rows [][]json.RawMessage
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("decode venue klines: %w", err)
	}

	candles := make([]backtest.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			return nil, fmt.Errorf("venue kline row has %d fields, want at least 5", len(row))
		}

		var openMs int64
		if err := json.Unmarshal(row[0], &openMs); err != nil {
			return nil, fmt.Errorf("venue kline open time: %w", err)
		}

		prices := make([]decimal.Decimal, 4)
		for i := 0; i < 4; i++ {
			p, err := parseVenuePrice(row[i+1])
			if err != nil {
				return nil, fmt.Errorf("venue kline price field %d: %w", i+1, err)
			}
			prices[i] = p
		}

		candles = append(candles, backtest.Candle{
			OpenTime: time.UnixMilli(openMs).UTC(),
			Open:     prices[0],
			High:     prices[1],
			Low:      prices[2],
			Close:    prices[3],
		})
	}

	return candles, nil
}

// parseVenuePrice accepts both quoted and bare numbers.
func parseVenuePrice(raw json.RawMessage) (decimal.Decimal, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return decimal.Decimal{}, err
		}
		s = n.String()
	}
	return decimal.NewFromString(s)
}

var _ CandleFetcher = (*Venue)(nil)
