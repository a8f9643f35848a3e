package rolling

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Depth is the number of lagged price slots per ticker.
const Depth = 31

// Cell is one price observation slot. Valid distinguishes "no data yet"
// from a genuinely zero price, so zero never doubles as a sentinel.
type Cell struct {
	Value float64
	Valid bool
}

// Row is the rolling history of one ticker: Depth lagged slots ordered
// oldest first (index 0 = 31 days ago, index Depth-1 = 1 day ago), the
// current price, and the three derived moves.
type Row struct {
	Ticker    string
	Lags      [Depth]Cell
	Today     Cell
	DayMove   float64
	WeekMove  float64
	MonthMove float64
}

// LagDaysAgo returns the slot holding the price from n days ago (1..Depth).
func (r *Row) LagDaysAgo(n int) Cell {
	return r.Lags[Depth-n]
}

// Store owns the persisted rolling price table: one row per ticker, loaded
// fully into memory and rewritten whole. Single-writer discipline is
// assumed; there is no file locking.
type Store struct {
	path  string
	rows  []*Row
	index map[string]*Row
}

// Header returns the CSV column order of the persisted table.
func Header() []string {
	cols := make([]string, 0, Depth+5)
	cols = append(cols, "ticker")
	for i := Depth; i >= 1; i-- {
		cols = append(cols, fmt.Sprintf("%dDaysAgo_price", i))
	}
	return append(cols, "Today_price", "Day_move", "Week_move", "Month_move")
}

// NewStore creates an empty store that will persist to path.
func NewStore(path string) *Store {
	return &Store{path: path, index: make(map[string]*Row)}
}

// Open loads the rolling table from path. A missing or empty file yields an
// empty store; a malformed file is an error and aborts the run.
func Open(path string) (*Store, error) {
	s := NewStore(path)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("open rolling table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rolling table: %w", err)
	}
	if len(records) <= 1 {
		return s, nil
	}

	for _, rec := range records[1:] {
		if len(rec) == 0 || rec[0] == "" {
			continue
		}
		row := &Row{Ticker: rec[0]}
		for i := 0; i < Depth; i++ {
			row.Lags[i] = parseCell(field(rec, 1+i))
		}
		row.Today = parseCell(field(rec, 1+Depth))
		row.DayMove = parseMove(field(rec, 2+Depth))
		row.WeekMove = parseMove(field(rec, 3+Depth))
		row.MonthMove = parseMove(field(rec, 4+Depth))
		s.add(row)
	}
	return s, nil
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

func parseCell(s string) Cell {
	if s == "" {
		return Cell{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Cell{}
	}
	return Cell{Value: v, Valid: true}
}

func parseMove(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func (s *Store) add(row *Row) {
	s.rows = append(s.rows, row)
	s.index[row.Ticker] = row
}

// Len returns the number of tickers on file.
func (s *Store) Len() int { return len(s.rows) }

// Tickers returns all tickers in stored order.
func (s *Store) Tickers() []string {
	out := make([]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.Ticker
	}
	return out
}

// Lookup returns the row for a ticker, if present.
func (s *Store) Lookup(ticker string) (*Row, bool) {
	r, ok := s.index[ticker]
	return r, ok
}

// AppendNew inserts a ticker with all lagged slots unset, Today set to the
// first observed price and all moves zero. Appending a ticker already on
// file is a no-op; the existing row is left untouched.
func (s *Store) AppendNew(ticker string, price float64) bool {
	if ticker == "" {
		return false
	}
	if _, exists := s.index[ticker]; exists {
		return false
	}
	s.add(&Row{Ticker: ticker, Today: Cell{Value: price, Valid: true}})
	return true
}

// RollDaily shifts every ticker that has a freshly fetched price one day to
// the left and recomputes the moves. A move is zero unless its baseline slot
// holds a valid, non-zero price. Tickers absent from prices keep their row
// byte-for-byte unchanged for this cycle.
func (s *Store) RollDaily(prices map[string]float64) {
	for _, row := range s.rows {
		price, ok := prices[row.Ticker]
		if !ok {
			continue
		}

		prevToday := row.Today
		weekAgo := row.LagDaysAgo(7)
		monthAgo := row.LagDaysAgo(30)

		row.DayMove = move(price, prevToday)
		row.WeekMove = move(price, weekAgo)
		row.MonthMove = move(price, monthAgo)

		copy(row.Lags[:Depth-1], row.Lags[1:])
		row.Lags[Depth-1] = prevToday
		row.Today = Cell{Value: price, Valid: true}
	}
}

func move(current float64, baseline Cell) float64 {
	if !baseline.Valid || baseline.Value == 0 {
		return 0
	}
	return current - baseline.Value
}

// Save rewrites the whole table atomically via a temp file and rename. Any
// failure here aborts the caller's run; there is no partial-write recovery.
func (s *Store) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir for rolling table: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp rolling table: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(Header()); err != nil {
		tmp.Close()
		return fmt.Errorf("write rolling header: %w", err)
	}
	for _, row := range s.rows {
		rec := make([]string, 0, Depth+5)
		rec = append(rec, row.Ticker)
		for i := 0; i < Depth; i++ {
			rec = append(rec, formatCell(row.Lags[i]))
		}
		rec = append(rec,
			formatCell(row.Today),
			formatMove(row.DayMove),
			formatMove(row.WeekMove),
			formatMove(row.MonthMove),
		)
		if err := w.Write(rec); err != nil {
			tmp.Close()
			return fmt.Errorf("write rolling row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush rolling table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp rolling table: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace rolling table: %w", err)
	}
	return nil
}

func formatCell(c Cell) string {
	if !c.Valid {
		return ""
	}
	return strconv.FormatFloat(c.Value, 'f', -1, 64)
}

func formatMove(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
