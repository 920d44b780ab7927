package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"listing-backtest/internal/alerting"
	"listing-backtest/internal/backtest"
	"listing-backtest/internal/config"
	"listing-backtest/internal/fetcher"
	"listing-backtest/internal/report"
	"listing-backtest/internal/storage"
)

// ReportSink merges result rows into the persistent report.
type ReportSink interface {
	MergeAndWrite(rows []report.Row) (string, error)
}

// Service orchestrates event ingestion, candle retrieval, evaluation, and
// reporting.
type Service struct {
	events   fetcher.EventFetcher
	candles  fetcher.CandleFetcher
	store    storage.EventStore
	sink     ReportSink
	notifier alerting.Notifier
	logger   zerolog.Logger

	params     backtest.Params
	strategyID string
	holdDays   int
}

// New constructs the pipeline service. notifier may be nil.
func New(cfg *config.Config, events fetcher.EventFetcher, candles fetcher.CandleFetcher, store storage.EventStore, sink ReportSink, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	mode, _ := backtest.ParseMode(cfg.Backtest.Mode)

	return &Service{
		events:   events,
		candles:  candles,
		store:    store,
		sink:     sink,
		notifier: notifier,
		logger:   logger.With().Str("component", "service").Logger(),
		params: backtest.Params{
			Mode:       mode,
			TakeProfit: decimal.NewFromFloat(cfg.Backtest.TakeProfit),
			StopLoss:   decimal.NewFromFloat(cfg.Backtest.StopLoss),
		},
		strategyID: cfg.Backtest.StrategyID,
		holdDays:   cfg.Backtest.HoldDays,
	}
}

// IngestStats summarise one ingestion pass.
type IngestStats struct {
	Fetched    int
	Inserted   int
	Duplicates int
}

// IngestRange fetches listing events in [from, to] and persists them. Any
// fetch or persistence failure aborts the whole pass; duplicates are
// expected no-ops.
func (s *Service) IngestRange(ctx context.Context, from, to time.Time) (IngestStats, error) {
	events, err := s.events.FetchEvents(ctx, from, to)
	if err != nil {
		return IngestStats{}, fmt.Errorf("fetch listing events: %w", err)
	}

	stats := IngestStats{Fetched: len(events)}
	for _, ev := range events {
		inserted, err := s.store.InsertEvent(ctx, storage.StoredEvent{
			CoinID:       ev.CoinID,
			CoinName:     ev.CoinName,
			CoinSymbol:   ev.CoinSymbol,
			CoinFullname: ev.CoinFullname,
			EventName:    ev.EventName,
			EventDate:    ev.EventDate,
		})
		if err != nil {
			return stats, fmt.Errorf("persist event %s/%s: %w", ev.CoinSymbol, ev.EventName, err)
		}
		if !inserted {
			stats.Duplicates++
			s.logger.Debug().
				Str("symbol", ev.CoinSymbol).
				Time("event_date", ev.EventDate).
				Msg("event already stored")
			continue
		}
		stats.Inserted++
		s.logger.Info().
			Str("symbol", ev.CoinSymbol).
			Str("event", ev.EventName).
			Time("event_date", ev.EventDate).
			Msg("event stored")
	}

	return stats, nil
}

// EvalStats summarise one evaluation pass.
type EvalStats struct {
	Events     int
	Evaluated  int
	Skipped    int
	AveragePnL decimal.Decimal
	ReportPath string
}

// EvaluateDay replays the stored events of one UTC calendar day through the
// candle sources and the engine, and merges the outcomes into the report.
// Candle failures and missing data are isolated to their event: the batch
// continues, and every exclusion is logged with the symbol and date.
func (s *Service) EvaluateDay(ctx context.Context, day time.Time) (EvalStats, error) {
	events, err := s.store.EventsForDay(ctx, day)
	if err != nil {
		return EvalStats{}, fmt.Errorf("load events for %s: %w", day.Format("2006-01-02"), err)
	}

	stats := EvalStats{Events: len(events)}
	rows := make([]report.Row, 0, len(events))
	total := decimal.Zero

	for _, ev := range events {
		symbol := strings.ToUpper(ev.CoinSymbol)
		if symbol == "" {
			stats.Skipped++
			s.logger.Warn().Str("coin_id", ev.CoinID).Time("event_date", ev.EventDate).Msg("skipping event without symbol")
			continue
		}

		start := ev.EventDate
		end := start.AddDate(0, 0, s.holdDays)

		candles, err := s.candles.FetchCandles(ctx, symbol, start, end)
		if err != nil {
			stats.Skipped++
			s.logger.Warn().Err(err).Str("symbol", symbol).Time("event_date", ev.EventDate).Msg("skipping event, candle fetch failed")
			continue
		}

		result, ok := backtest.Evaluate(candles, s.params)
		if !ok {
			stats.Skipped++
			s.logger.Info().Str("symbol", symbol).Time("event_date", ev.EventDate).Msg("skipping event, insufficient data")
			continue
		}

		rows = append(rows, report.Row{
			Date:     ev.EventDate,
			Ticker:   symbol,
			Open:     result.Open,
			High:     result.High,
			Strategy: s.strategyID,
			Status:   result.Status,
			Entry:    result.Entry,
			Stop:     result.Stop,
			Target:   result.Target,
			PnL:      result.PnL,
		})
		total = total.Add(result.PnL)
		stats.Evaluated++

		s.logger.Info().
			Str("symbol", symbol).
			Time("event_date", ev.EventDate).
			Str("status", result.Status).
			Str("pnl", result.PnL.String()).
			Msg("event evaluated")
	}

	if stats.Evaluated > 0 {
		stats.AveragePnL = total.Div(decimal.NewFromInt(int64(stats.Evaluated)))
	}

	if len(rows) > 0 {
		path, err := s.sink.MergeAndWrite(rows)
		if err != nil {
			return stats, fmt.Errorf("write report: %w", err)
		}
		stats.ReportPath = path
	}

	if s.notifier != nil {
		summary := alerting.Summary{
			Day:        day,
			Strategy:   s.strategyID,
			Evaluated:  stats.Evaluated,
			Skipped:    stats.Skipped,
			AveragePnL: stats.AveragePnL,
			ReportPath: stats.ReportPath,
		}
		if err := s.notifier.Notify(ctx, summary); err != nil {
			s.logger.Error().Err(err).Time("day", day).Msg("failed to send evaluation summary")
		}
	}

	return stats, nil
}

// Decision reports which pass a DecideAndRun call executed.
type Decision struct {
	Replayed bool
	Day      time.Time
	Ingest   *IngestStats
	Eval     *EvalStats
}

// DecideAndRun replays yesterday's stored events when the store already
// holds them, and otherwise ingests the window ending tomorrow so the next
// run has something to replay.
func (s *Service) DecideAndRun(ctx context.Context, now time.Time) (Decision, error) {
	today := utcDay(now)
	yesterday := today.AddDate(0, 0, -1)

	stored, err := s.store.EventsForDay(ctx, yesterday)
	if err != nil {
		return Decision{}, fmt.Errorf("inspect store for %s: %w", yesterday.Format("2006-01-02"), err)
	}

	if len(stored) > 0 {
		s.logger.Info().Time("day", yesterday).Int("events", len(stored)).Msg("replaying stored events")
		eval, err := s.EvaluateDay(ctx, yesterday)
		if err != nil {
			return Decision{}, err
		}
		return Decision{Replayed: true, Day: yesterday, Eval: &eval}, nil
	}

	tomorrow := today.AddDate(0, 0, 1)
	s.logger.Info().Time("from", today).Time("to", tomorrow).Msg("no stored events for yesterday; ingesting upcoming window")
	ingest, err := s.IngestRange(ctx, today, tomorrow)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Day: today, Ingest: &ingest}, nil
}

func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
