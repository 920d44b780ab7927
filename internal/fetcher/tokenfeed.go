package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"listing-backtest/internal/backtest"
)

const (
	tokensPath = "/tokens"
	klinesPath = "/klines"
)

// TokenFeedOptions parameterise the aggregated on-chain candle feed.
type TokenFeedOptions struct {
	BaseURL  string
	Interval Interval
	Timeout  time.Duration
}

// TokenFeed resolves a traded symbol through the token directory and fetches
// aggregated candles for the token's chain/contract pair.
type TokenFeed struct {
	opts    TokenFeedOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string

	dirMux    sync.Mutex
	dirLoaded bool
	directory map[string]tokenEntry
}

type tokenEntry struct {
	Symbol          string `json:"symbol"`
	ChainID         int    `json:"chainId"`
	ContractAddress string `json:"contractAddress"`
}

// NewTokenFeed constructs the primary candle source.
func NewTokenFeed(opts TokenFeedOptions, logger zerolog.Logger) *TokenFeed {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &TokenFeed{
		opts:    opts,
		logger:  logger.With().Str("component", "tokenfeed_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// FetchCandles returns candles whose open time falls within [start, end],
// ascending. A symbol missing from the token directory (or a directory
// lookup failure) yields an empty series, the "no data" signal; a failing
// candle request propagates its error.
func (t *TokenFeed) FetchCandles(ctx context.Context, symbol string, start, end time.Time) ([]backtest.Candle, error) {
	token, found := t.lookupToken(ctx, symbol)
	if !found {
		t.logger.Info().Str("symbol", symbol).Msg("no token found in directory")
		return nil, nil
	}

	params := url.Values{}
	params.Set("chainId", strconv.Itoa(token.ChainID))
	params.Set("address", token.ContractAddress)
	params.Set("interval", string(t.opts.Interval))
	params.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	params.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))

	endpoint := t.baseURL + klinesPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token feed error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var res klineResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("decode kline response: %w", err)
	}

	candles := make([]backtest.Candle, 0, len(res.Data.KlineInfos))
	for _, row := range res.Data.KlineInfos {
		candle, err := parseKlineRow(row)
		if err != nil {
			return nil, fmt.Errorf("parse kline row: %w", err)
		}
		if candle.OpenTime.Before(start) || candle.OpenTime.After(end) {
			continue
		}
		candles = append(candles, candle)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})
	return candles, nil
}

// lookupToken matches the symbol case-insensitively against the directory.
// Directory failures are swallowed: they degrade to "no token".
func (t *TokenFeed) lookupToken(ctx context.Context, symbol string) (tokenEntry, bool) {
	t.dirMux.Lock()
	defer t.dirMux.Unlock()

	if !t.dirLoaded {
		entries, err := t.fetchDirectory(ctx)
		if err != nil {
			t.logger.Warn().Err(err).Msg("token directory lookup failed")
			return tokenEntry{}, false
		}

		t.directory = make(map[string]tokenEntry, len(entries))
		for _, e := range entries {
			if !common.IsHexAddress(e.ContractAddress) {
				t.logger.Debug().Str("symbol", e.Symbol).Str("address", e.ContractAddress).Msg("skipping token with malformed address")
				continue
			}
			t.directory[strings.ToUpper(e.Symbol)] = e
		}
		t.dirLoaded = true
	}

	entry, ok := t.directory[strings.ToUpper(symbol)]
	return entry, ok
}

func (t *TokenFeed) fetchDirectory(ctx context.Context) ([]tokenEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+tokensPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token directory error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var entries []tokenEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("decode token directory: %w", err)
	}
	return entries, nil
}

type klineResponse struct {
	Data struct {
		// Rows are [openTimeMs, open, high, low, close, volume, closeTimeMs].
		KlineInfos [][]json.Number `json:"klineInfos"`
	} `json:"data"`
}

func parseKlineRow(row []json.Number) (backtest.Candle, error) {
	if len(row) < 5 {
		return backtest.Candle{}, fmt.Errorf("kline row has %d fields, want at least 5", len(row))
	}

	openMs, err := row[0].Int64()
	if err != nil {
		return backtest.Candle{}, fmt.Errorf("open time: %w", err)
	}

	prices := make([]decimal.Decimal, 4)
	for i := 0; i < 4; i++ {
		p, err := decimal.NewFromString(row[i+1].String())
		if err != nil {
			return backtest.Candle{}, fmt.Errorf("price field %d: %w", i+1, err)
		}
		prices[i] = p
	}

	return backtest.Candle{
		OpenTime: time.UnixMilli(openMs).UTC(),
		Open:     prices[0],
		High:     prices[1],
		Low:      prices[2],
		Close:    prices[3],
	}, nil
}

var _ CandleFetcher = (*TokenFeed)(nil)
