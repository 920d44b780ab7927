package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"listing-backtest/internal/backtest"
	"listing-backtest/internal/fetcher"
	"listing-backtest/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Logging       logging.Config      `mapstructure:"logging"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Announcements AnnouncementsConfig `mapstructure:"announcements"`
	MarketData    MarketDataConfig    `mapstructure:"market_data"`
	Backtest      BacktestConfig      `mapstructure:"backtest"`
	Report        ReportConfig        `mapstructure:"report"`
	Alerting      AlertingConfig      `mapstructure:"alerting"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs the watch-mode cadence.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	AlignToStart bool          `mapstructure:"align_to_start"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// AnnouncementsConfig covers the announcements API.
type AnnouncementsConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	APIKey             string        `mapstructure:"api_key"`
	PageSize           int           `mapstructure:"page_size"`
	SortBy             string        `mapstructure:"sort_by"`
	Exchange           string        `mapstructure:"exchange"`
	ExchangeCategoryID int           `mapstructure:"exchange_category_id"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
}

// MarketDataConfig covers the candle sources.
type MarketDataConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	VenueBaseURL   string        `mapstructure:"venue_base_url"`
	QuoteAsset     string        `mapstructure:"quote_asset"`
	Interval       string        `mapstructure:"interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// BacktestConfig tunes the evaluation.
type BacktestConfig struct {
	Mode       string  `mapstructure:"mode"`
	TakeProfit float64 `mapstructure:"take_profit"`
	StopLoss   float64 `mapstructure:"stop_loss"`
	HoldDays   int     `mapstructure:"hold_days"`
	StrategyID string  `mapstructure:"strategy_id"`
}

// ReportConfig sets the report destination.
type ReportConfig struct {
	Path string `mapstructure:"path"`
}

// AlertingConfig defines result notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 通知参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LISTINGBT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// The API accepts page sizes in [1, 75]; values outside the range are
	// clamped, not rejected.
	cfg.Announcements.PageSize = clampPageSize(cfg.Announcements.PageSize)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "listing-backtest")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.align_to_start", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("announcements.base_url", "https://developers.coinmarketcal.com/v1")
	v.SetDefault("announcements.page_size", 75)
	v.SetDefault("announcements.sort_by", "created_desc")
	v.SetDefault("announcements.exchange", "binance")
	v.SetDefault("announcements.exchange_category_id", 4)
	v.SetDefault("announcements.request_timeout", "15s")

	v.SetDefault("market_data.quote_asset", "USDT")
	v.SetDefault("market_data.interval", "1h")
	v.SetDefault("market_data.request_timeout", "10s")
	v.SetDefault("market_data.venue_base_url", "https://api.binance.com/api/v3/klines")

	v.SetDefault("backtest.mode", "take_profit")
	v.SetDefault("backtest.take_profit", 0.3)
	v.SetDefault("backtest.stop_loss", 0.0)
	v.SetDefault("backtest.hold_days", 7)
	v.SetDefault("backtest.strategy_id", "listing-tp30")

	v.SetDefault("report.path", "reports/listing_backtest.csv")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs sanity checks on the configuration values. Missing
// credentials and an unsupported interval or mode are fatal here, before
// any component runs.
func (c *Config) Validate() error {
	if c.Announcements.APIKey == "" {
		return fmt.Errorf("announcements.api_key 必须配置 (LISTINGBT_ANNOUNCEMENTS_API_KEY)")
	}
	if c.Announcements.Exchange == "" {
		return fmt.Errorf("announcements.exchange must not be empty")
	}
	if _, err := fetcher.ParseInterval(c.MarketData.Interval); err != nil {
		return fmt.Errorf("market_data.interval: %w", err)
	}
	mode, err := backtest.ParseMode(c.Backtest.Mode)
	if err != nil {
		return fmt.Errorf("backtest.mode: %w", err)
	}
	if mode == backtest.ModeTakeProfit && c.Backtest.TakeProfit <= 0 {
		return fmt.Errorf("backtest.take_profit must be greater than zero")
	}
	if c.Backtest.StopLoss < 0 || c.Backtest.StopLoss >= 1 {
		return fmt.Errorf("backtest.stop_loss must be in [0, 1)")
	}
	if c.Backtest.HoldDays <= 0 {
		return fmt.Errorf("backtest.hold_days must be greater than zero")
	}
	if c.Report.Path == "" {
		return fmt.Errorf("report.path must not be empty")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

func clampPageSize(size int) int {
	if size < 1 {
		return 1
	}
	if size > 75 {
		return 75
	}
	return size
}
