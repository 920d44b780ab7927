package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Announcements: AnnouncementsConfig{
			APIKey:   "test-key",
			Exchange: "binance",
			PageSize: 75,
		},
		MarketData: MarketDataConfig{Interval: "1h"},
		Backtest: BacktestConfig{
			Mode:       "take_profit",
			TakeProfit: 0.3,
			HoldDays:   7,
			StrategyID: "listing-tp30",
		},
		Report:    ReportConfig{Path: "reports/listing_backtest.csv"},
		Scheduler: SchedulerConfig{Interval: 24 * time.Hour},
	}
}

func TestValidateOK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("合法配置不应校验失败: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing api key", func(c *Config) { c.Announcements.APIKey = "" }},
		{"empty exchange", func(c *Config) { c.Announcements.Exchange = "" }},
		{"bad interval", func(c *Config) { c.MarketData.Interval = "2h" }},
		{"bad mode", func(c *Config) { c.Backtest.Mode = "martingale" }},
		{"zero take profit", func(c *Config) { c.Backtest.TakeProfit = 0 }},
		{"stop loss out of range", func(c *Config) { c.Backtest.StopLoss = 1.0 }},
		{"zero hold days", func(c *Config) { c.Backtest.HoldDays = 0 }},
		{"empty report path", func(c *Config) { c.Report.Path = "" }},
		{"zero scheduler interval", func(c *Config) { c.Scheduler.Interval = 0 }},
		{"telegram enabled without token", func(c *Config) {
			c.Alerting.Telegram.Enabled = true
			c.Alerting.Telegram.ChatID = "123"
		}},
		{"telegram enabled without chat id", func(c *Config) {
			c.Alerting.Telegram.Enabled = true
			c.Alerting.Telegram.BotToken = "token"
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("%s 应校验失败", tc.name)
			}
		})
	}
}

func TestValidateRunningHighIgnoresTakeProfit(t *testing.T) {
	cfg := validConfig()
	cfg.Backtest.Mode = "running_high"
	cfg.Backtest.TakeProfit = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("running_high 模式不应要求 take_profit: %v", err)
	}
}

func TestClampPageSize(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, 1},
		{-5, 1},
		{1, 1},
		{40, 40},
		{75, 75},
		{200, 75},
	}
	for _, tc := range cases {
		if got := clampPageSize(tc.in); got != tc.want {
			t.Errorf("clampPageSize(%d) = %d, 期望 %d", tc.in, got, tc.want)
		}
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
announcements:
  api_key: file-key
  page_size: 500
backtest:
  take_profit: 0.5
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}

	t.Setenv("LISTINGBT_ANNOUNCEMENTS_API_KEY", "env-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Announcements.APIKey != "env-key" {
		t.Errorf("环境变量应覆盖文件值, 实际 %q", cfg.Announcements.APIKey)
	}
	if cfg.Announcements.PageSize != 75 {
		t.Errorf("page_size 应被钳制到 75, 实际 %d", cfg.Announcements.PageSize)
	}
	if cfg.Backtest.TakeProfit != 0.5 {
		t.Errorf("take_profit 应取文件值 0.5, 实际 %v", cfg.Backtest.TakeProfit)
	}
	if cfg.MarketData.Interval != "1h" {
		t.Errorf("interval 默认值应为 1h, 实际 %q", cfg.MarketData.Interval)
	}
}

func TestLoadMissingAPIKeyFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("app:\n  name: test\n"), 0o644); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("缺少 API key 时 Load 必须失败")
	}
}
