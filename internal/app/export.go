package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"

	chart "github.com/wcharczuk/go-chart/v2"

	"listing-backtest/internal/report"
)

// Export renders the persisted report as a P&L chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.PNGPath == "" {
		return errors.New("--png must be provided")
	}

	rows, err := report.Load(a.Config.Report.Path)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		a.Logger.Info().Str("path", a.Config.Report.Path).Msg("report is empty; nothing to export")
		return nil
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Date.Before(rows[j].Date)
	})

	a.Logger.Info().Int("rows", len(rows)).Str("png", opts.PNGPath).Msg("exporting report chart")
	return writePnLChart(opts.PNGPath, rows)
}

func writePnLChart(path string, rows []report.Row) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]float64, len(rows))
	pnl := make([]float64, len(rows))
	cumulative := make([]float64, len(rows))

	running := 0.0
	for i, row := range rows {
		x[i] = float64(i)
		pnl[i] = row.PnL.InexactFloat64()
		running += pnl[i]
		cumulative[i] = running
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Name: "Event #",
		},
		YAxis: chart.YAxis{
			Name: "P&L (fraction)",
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Per-event P&L",
				XValues: x,
				YValues: pnl,
			},
			chart.ContinuousSeries{
				Name:    "Cumulative P&L",
				XValues: x,
				YValues: cumulative,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
