package rolling

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAppendNew_FirstObservation(t *testing.T) {
	s := NewStore("")
	if !s.AppendNew("XYZ", 12.50) {
		t.Fatal("expected append to succeed")
	}
	row, ok := s.Lookup("XYZ")
	if !ok {
		t.Fatal("expected XYZ on file")
	}
	for i, lag := range row.Lags {
		if lag.Valid {
			t.Errorf("lag slot %d should be unset on first observation", i)
		}
	}
	if !row.Today.Valid || row.Today.Value != 12.50 {
		t.Errorf("expected Today=12.50, got %+v", row.Today)
	}
	if row.DayMove != 0 || row.WeekMove != 0 || row.MonthMove != 0 {
		t.Errorf("expected zero moves, got %.2f/%.2f/%.2f", row.DayMove, row.WeekMove, row.MonthMove)
	}
}

func TestAppendNew_ExistingTickerIsNoop(t *testing.T) {
	s := NewStore("")
	s.AppendNew("AAA", 10)
	if s.AppendNew("AAA", 99) {
		t.Fatal("append of existing ticker must report failure")
	}
	row, _ := s.Lookup("AAA")
	if row.Today.Value != 10 {
		t.Errorf("existing row must stay untouched, got Today=%.2f", row.Today.Value)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 row, got %d", s.Len())
	}
}

func TestRollDaily_FirstRoll(t *testing.T) {
	s := NewStore("")
	s.AppendNew("XYZ", 12.50)

	s.RollDaily(map[string]float64{"XYZ": 13.00})

	row, _ := s.Lookup("XYZ")
	if got := row.LagDaysAgo(1); !got.Valid || got.Value != 12.50 {
		t.Errorf("1DaysAgo should hold the outgoing Today, got %+v", got)
	}
	if row.Today.Value != 13.00 {
		t.Errorf("Today should be 13.00, got %.2f", row.Today.Value)
	}
	if row.DayMove != 0.5 {
		t.Errorf("DayMove should be 0.5, got %.4f", row.DayMove)
	}
	// No 7-day or 30-day baseline yet.
	if row.WeekMove != 0 || row.MonthMove != 0 {
		t.Errorf("expected zero week/month moves, got %.4f/%.4f", row.WeekMove, row.MonthMove)
	}
}

func TestRollDaily_ShiftInvariance(t *testing.T) {
	s := NewStore("")
	s.AppendNew("XYZ", 10.0)

	s.RollDaily(map[string]float64{"XYZ": 11.0})
	s.RollDaily(map[string]float64{"XYZ": 12.0})

	row, _ := s.Lookup("XYZ")
	if got := row.LagDaysAgo(2); got.Value != 10.0 {
		t.Errorf("2DaysAgo should be the initial Today (10.0), got %+v", got)
	}
	if got := row.LagDaysAgo(1); got.Value != 11.0 {
		t.Errorf("1DaysAgo should be 11.0, got %+v", got)
	}
	if row.Today.Value != 12.0 {
		t.Errorf("Today should be 12.0, got %.2f", row.Today.Value)
	}
}

func TestRollDaily_WeekMoveBaseline(t *testing.T) {
	s := NewStore("")
	s.AppendNew("UP", 100)

	// Seven rolls give the eighth a valid 7-day baseline.
	prices := []float64{101, 102, 103, 104, 105, 106, 107}
	for _, p := range prices {
		s.RollDaily(map[string]float64{"UP": p})
	}
	s.RollDaily(map[string]float64{"UP": 110})

	row, _ := s.Lookup("UP")
	// 7 days before the final roll the price was the initial 100.
	if row.WeekMove != 110-100 {
		t.Errorf("WeekMove should be %.2f, got %.4f", 110-100.0, row.WeekMove)
	}
	if row.DayMove != 110-107 {
		t.Errorf("DayMove should be 3, got %.4f", row.DayMove)
	}
}

func TestRollDaily_ZeroBaselineForcesZeroMove(t *testing.T) {
	s := NewStore("")
	s.AppendNew("ZRO", 0)

	s.RollDaily(map[string]float64{"ZRO": 5})

	row, _ := s.Lookup("ZRO")
	if row.DayMove != 0 {
		t.Errorf("a zero baseline must force DayMove to 0, got %.4f", row.DayMove)
	}
	if row.Today.Value != 5 {
		t.Errorf("Today should still advance to 5, got %.2f", row.Today.Value)
	}
}

func TestRollDaily_MissingPriceLeavesRowUnchanged(t *testing.T) {
	s := NewStore("")
	s.AppendNew("AAA", 10)
	s.AppendNew("BBB", 20)

	s.RollDaily(map[string]float64{"AAA": 11})

	bbb, _ := s.Lookup("BBB")
	if bbb.Today.Value != 20 || bbb.LagDaysAgo(1).Valid {
		t.Errorf("BBB must be untouched when its price is missing: %+v", bbb)
	}
	aaa, _ := s.Lookup("AAA")
	if aaa.Today.Value != 11 {
		t.Errorf("AAA should have rolled to 11, got %.2f", aaa.Today.Value)
	}
}

func TestSaveAndOpen_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")

	s := NewStore(path)
	s.AppendNew("XYZ", 12.50)
	s.RollDaily(map[string]float64{"XYZ": 13.00})
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	row, ok := loaded.Lookup("XYZ")
	if !ok {
		t.Fatal("expected XYZ after reload")
	}
	if row.Today.Value != 13.00 || row.LagDaysAgo(1).Value != 12.50 {
		t.Errorf("round trip mismatch: Today=%.2f 1DaysAgo=%+v", row.Today.Value, row.LagDaysAgo(1))
	}
	if row.LagDaysAgo(2).Valid {
		t.Error("2DaysAgo should stay unset after reload")
	}
	if row.DayMove != 0.5 {
		t.Errorf("DayMove should survive reload, got %.4f", row.DayMove)
	}
}

func TestOpen_MissingFileIsEmptyStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "nope.csv"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d rows", s.Len())
	}
}

func TestHeader_ColumnOrder(t *testing.T) {
	h := Header()
	if h[0] != "ticker" || h[1] != "31DaysAgo_price" || h[31] != "1DaysAgo_price" {
		t.Errorf("unexpected header layout: %v", h[:3])
	}
	if h[32] != "Today_price" || h[len(h)-1] != "Month_move" {
		t.Errorf("unexpected header tail: %v", h[32:])
	}
}

func TestSave_WritesEmptyCellsForUnsetSlots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	s := NewStore(path)
	s.AppendNew("NEW", 7.25)
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if want := "NEW," + strings.Repeat(",", 31) + "7.25,0,0,0"; lines[1] != want {
		t.Errorf("row mismatch:\n got %q\nwant %q", lines[1], want)
	}
}
