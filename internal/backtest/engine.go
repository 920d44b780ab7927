package backtest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Candle is a single OHLC bar at a fixed interval.
type Candle struct {
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
}

// Mode selects how a candle series is turned into a P&L figure.
type Mode string

const (
	// ModeTakeProfit caps the payoff at a fixed target fraction.
	ModeTakeProfit Mode = "take_profit"
	// ModeRunningHigh reports the best attainable exit as an absolute gain.
	ModeRunningHigh Mode = "running_high"
)

// ParseMode validates an evaluation mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTakeProfit, ModeRunningHigh:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unsupported evaluation mode %q", s)
	}
}

// Statuses recorded on evaluation results.
const (
	StatusTargetHit   = "target_hit"
	StatusClosed      = "closed"
	StatusRunningHigh = "running_high"
)

// Params tune a single evaluation.
type Params struct {
	Mode       Mode
	TakeProfit decimal.Decimal
	// StopLoss only sets the recorded stop level; the evaluation never
	// exits on it.
	StopLoss decimal.Decimal
}

// Result is the outcome of evaluating one candle series.
type Result struct {
	Entry  decimal.Decimal
	Target decimal.Decimal
	Stop   decimal.Decimal
	Open   decimal.Decimal
	High   decimal.Decimal
	PnL    decimal.Decimal
	Status string
}

var one = decimal.NewFromInt(1)

// Evaluate computes the strategy outcome for an ordered candle series.
// The entry price is the open of the second candle when at least two
// candles exist (one interval between the announcement and the first
// tradable print), otherwise the open of the only candle. The second
// return value is false when the series is empty: insufficient data is a
// distinct outcome the caller must branch on, never a zero P&L.
func Evaluate(candles []Candle, p Params) (Result, bool) {
	if len(candles) == 0 {
		return Result{}, false
	}

	entryIdx := 0
	if len(candles) > 1 {
		entryIdx = 1
	}
	entry := candles[entryIdx].Open

	high := candles[entryIdx].High
	for _, c := range candles[entryIdx+1:] {
		if c.High.GreaterThan(high) {
			high = c.High
		}
	}

	res := Result{
		Entry: entry,
		Open:  candles[0].Open,
		High:  high,
	}
	if p.StopLoss.IsPositive() {
		res.Stop = entry.Mul(one.Sub(p.StopLoss))
	}

	switch p.Mode {
	case ModeRunningHigh:
		res.Target = high
		res.PnL = high.Sub(entry)
		res.Status = StatusRunningHigh
		return res, true
	default:
		res.Target = entry.Mul(one.Add(p.TakeProfit))
		// Scan strictly after the entry candle; the payoff is capped at
		// the target fraction no matter how far the high overshoots.
		for _, c := range candles[entryIdx+1:] {
			if c.High.GreaterThanOrEqual(res.Target) {
				res.PnL = p.TakeProfit
				res.Status = StatusTargetHit
				return res, true
			}
		}
		final := candles[len(candles)-1].Close
		res.PnL = final.Sub(entry).Div(entry)
		res.Status = StatusClosed
		return res, true
	}
}
