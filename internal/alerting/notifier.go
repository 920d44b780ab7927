package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Summary 封装一次回测评估的结果摘要。
type Summary struct {
	Day        time.Time
	Strategy   string
	Evaluated  int
	Skipped    int
	AveragePnL decimal.Decimal
	ReportPath string
}

// Notifier 定义结果通知接口。
type Notifier interface {
	Notify(ctx context.Context, summary Summary) error
}

// TelegramNotifier 通过 Telegram Bot API 推送评估摘要。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 通知器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, summary Summary) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(summary),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().Time("day", summary.Day).
		Str("strategy", summary.Strategy).
		Int("evaluated", summary.Evaluated).
		Msg("评估摘要已发送 (Telegram)")
	return nil
}

func renderMessage(summary Summary) string {
	builder := strings.Builder{}
	builder.WriteString("[Listing Backtest]\n")
	builder.WriteString(fmt.Sprintf("Day: %s UTC\n", summary.Day.UTC().Format("2006-01-02")))
	builder.WriteString(fmt.Sprintf("Strategy: %s\n", summary.Strategy))
	builder.WriteString(fmt.Sprintf("Evaluated: %d (skipped %d)\n", summary.Evaluated, summary.Skipped))
	if summary.Evaluated > 0 {
		builder.WriteString(fmt.Sprintf("Average P&L: %s%%\n", summary.AveragePnL.Mul(decimal.NewFromInt(100)).StringFixed(2)))
	}
	if summary.ReportPath != "" {
		builder.WriteString(fmt.Sprintf("Report: %s\n", summary.ReportPath))
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
