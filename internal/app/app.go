package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"listing-backtest/internal/alerting"
	"listing-backtest/internal/config"
	"listing-backtest/internal/fetcher"
	"listing-backtest/internal/report"
	"listing-backtest/internal/service"
	"listing-backtest/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newEventFetcher() fetcher.EventFetcher {
	return fetcher.NewAnnouncements(fetcher.AnnouncementsOptions{
		BaseURL:            a.Config.Announcements.BaseURL,
		APIKey:             a.Config.Announcements.APIKey,
		PageSize:           a.Config.Announcements.PageSize,
		SortBy:             a.Config.Announcements.SortBy,
		Exchange:           a.Config.Announcements.Exchange,
		ExchangeCategoryID: a.Config.Announcements.ExchangeCategoryID,
		Timeout:            a.Config.Announcements.RequestTimeout,
	}, a.Logger)
}

func (a *App) newCandleFetcher() fetcher.CandleFetcher {
	interval := fetcher.Interval(a.Config.MarketData.Interval)

	primary := fetcher.NewTokenFeed(fetcher.TokenFeedOptions{
		BaseURL:  a.Config.MarketData.BaseURL,
		Interval: interval,
		Timeout:  a.Config.MarketData.RequestTimeout,
	}, a.Logger)

	venue := fetcher.NewVenue(fetcher.VenueOptions{
		BaseURL:    a.Config.MarketData.VenueBaseURL,
		QuoteAsset: a.Config.MarketData.QuoteAsset,
		Interval:   interval,
		Timeout:    a.Config.MarketData.RequestTimeout,
	}, a.Logger)

	return fetcher.NewFallbackChain(primary, venue, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

// openStore opens the event store and makes sure the schema exists.
func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newService(store storage.EventStore) *service.Service {
	sink := report.NewSink(a.Config.Report.Path, a.Logger)
	return service.New(a.Config, a.newEventFetcher(), a.newCandleFetcher(), store, sink, a.newNotifier(), a.Logger)
}

// IngestOptions configure an ingestion pass.
type IngestOptions struct {
	From time.Time
	To   time.Time
}

// EvaluateOptions configure an evaluation pass.
type EvaluateOptions struct {
	Day time.Time
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ExportOptions hold parameters for rendering the report as a chart.
type ExportOptions struct {
	PNGPath string
}
