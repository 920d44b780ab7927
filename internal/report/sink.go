package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

var header = []string{"date", "ticker", "open", "high", "strategy", "status", "entry", "stop", "target", "pnl"}

// Row is one backtest outcome, keyed by (date, ticker, strategy). Rows are
// recomputable, so rewriting a key with fresh values is always safe.
type Row struct {
	Date     time.Time
	Ticker   string
	Open     decimal.Decimal
	High     decimal.Decimal
	Strategy string
	Status   string
	Entry    decimal.Decimal
	Stop     decimal.Decimal
	Target   decimal.Decimal
	PnL      decimal.Decimal
}

func (r Row) key() string {
	return r.Date.UTC().Format(dateLayout) + "|" + r.Ticker + "|" + r.Strategy
}

func (r Row) record() []string {
	return []string{
		r.Date.UTC().Format(dateLayout),
		r.Ticker,
		FormatPrice(r.Open),
		FormatPrice(r.High),
		r.Strategy,
		r.Status,
		FormatPrice(r.Entry),
		FormatPrice(r.Stop),
		FormatPrice(r.Target),
		r.PnL.String(),
	}
}

func recordKey(record []string) string {
	return record[0] + "|" + record[1] + "|" + record[4]
}

// Sink merges backtest rows into a flat CSV report.
type Sink struct {
	path   string
	logger zerolog.Logger
}

// NewSink constructs a report sink writing to path.
func NewSink(path string, logger zerolog.Logger) *Sink {
	return &Sink{
		path:   path,
		logger: logger.With().Str("component", "report_sink").Logger(),
	}
}

// MergeAndWrite merges rows into the report, last write wins per key, and
// returns the report location. The new content is staged in a temporary
// file in the destination directory and swapped in with a single rename, so
// readers never see a truncated report.
func (s *Sink) MergeAndWrite(rows []Row) (string, error) {
	if len(rows) == 0 {
		return s.path, nil
	}

	replaced := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		replaced[r.key()] = struct{}{}
	}

	existing, err := s.readRecords()
	if err != nil {
		return "", err
	}

	kept := existing[:0]
	for _, record := range existing {
		if _, ok := replaced[recordKey(record)]; ok {
			continue
		}
		kept = append(kept, record)
	}

	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}

	tmp, err := os.CreateTemp(dir, ".report-*.csv")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()

	if err := writeReport(tmp, rows, kept); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", err
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return "", err
	}

	s.logger.Info().
		Int("new_rows", len(rows)).
		Int("retained_rows", len(kept)).
		Str("path", s.path).
		Msg("report written")
	return s.path, nil
}

func writeReport(f *os.File, rows []Row, kept [][]string) error {
	writer := csv.NewWriter(f)

	if err := writer.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := writer.Write(r.record()); err != nil {
			return err
		}
	}
	for _, record := range kept {
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// readRecords loads the current report body, header excluded. A missing
// report is an empty one.
func (s *Sink) readRecords() ([][]string, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", s.path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	for _, record := range records[1:] {
		if len(record) != len(header) {
			return nil, fmt.Errorf("report %s: row has %d columns, want %d", s.path, len(record), len(header))
		}
	}
	return records[1:], nil
}

// Load parses the report back into rows, most useful for charting.
func Load(path string) ([]Row, error) {
	sink := Sink{path: path}
	records, err := sink.readRecords()
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(records))
	for _, record := range records {
		row, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("report %s: %w", path, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRecord(record []string) (Row, error) {
	date, err := time.Parse(dateLayout, record[0])
	if err != nil {
		return Row{}, fmt.Errorf("parse date: %w", err)
	}

	prices := make([]decimal.Decimal, 5)
	for i, idx := range []int{2, 3, 6, 7, 8} {
		p, err := decimal.NewFromString(record[idx])
		if err != nil {
			return Row{}, fmt.Errorf("parse %s: %w", header[idx], err)
		}
		prices[i] = p
	}

	pnl, err := decimal.NewFromString(record[9])
	if err != nil {
		return Row{}, fmt.Errorf("parse pnl: %w", err)
	}

	return Row{
		Date:     date.UTC(),
		Ticker:   record[1],
		Open:     prices[0],
		High:     prices[1],
		Strategy: record[4],
		Status:   record[5],
		Entry:    prices[2],
		Stop:     prices[3],
		Target:   prices[4],
		PnL:      pnl,
	}, nil
}
