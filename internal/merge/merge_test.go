package merge

import (
	"reflect"
	"testing"

	"ipopulse/internal/model"
)

func TestDecodeTickers(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"json objects", `[{"ticker": "ABC"}]`, []string{"ABC"}},
		{"json strings", `["ABC", "DEF"]`, []string{"ABC", "DEF"}},
		{"literal objects", `[{'ticker': 'ABC'}]`, []string{"ABC"}},
		{"literal strings", `['ABC', 'DEF']`, []string{"ABC", "DEF"}},
		{"empty list", `[]`, nil},
		{"empty string", ``, nil},
		{"nan marker", `nan`, nil},
		{"none marker", `None`, nil},
		{"garbage", `not json or literal`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeTickers(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeTickers(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCanonicalTicker(t *testing.T) {
	if got := CanonicalTicker(`[{"ticker": "ABC"}]`); got != "ABC" {
		t.Errorf("expected ABC, got %q", got)
	}
	if got := CanonicalTicker(`["XXX", "YYY"]`); got != "XXX" {
		t.Errorf("first element wins, got %q", got)
	}
	if got := CanonicalTicker("not json or literal"); got != "" {
		t.Errorf("undecodable value must yield empty ticker, got %q", got)
	}
}

func sampleFiling(raw string) model.Filing {
	return model.Filing{
		AccessionNo: "0001-23-456",
		FormType:    "S-1",
		FiledAt:     "2026-08-28T09:00:00-04:00",
		TickersRaw:  raw,
	}
}

func TestBuildWide_FullColumnSetAlways(t *testing.T) {
	wide := BuildWide([]model.Filing{sampleFiling(`[{"ticker": "ABC"}]`)}, nil, nil)
	if len(wide.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(wide.Rows))
	}
	if got := len(wide.Columns); got != len(MergedColumns) {
		t.Errorf("expected %d columns, got %d", len(MergedColumns), got)
	}
	row := wide.Rows[0]
	if row["ticker"] != "ABC" || row["accessionNo"] != "0001-23-456" {
		t.Errorf("filing fields missing: %v", row)
	}
	// No market source answered: identity and price cells stay empty.
	if row["name"] != "" || row["current_price"] != "" {
		t.Errorf("absent sources must leave empty cells, got name=%q price=%q", row["name"], row["current_price"])
	}
}

func TestBuildWide_SourcePrecedence(t *testing.T) {
	refs := map[string]*model.Reference{
		"ABC": {Symbol: "ABC", Name: "Acme Corp", PrimaryExchange: "XNAS", SICDescription: "Software", MarketCap: 5e8},
	}
	snaps := map[string]*model.Snapshot{
		"ABC": {Current: 12.5, Open: 12.0, DayLow: 11.8, DayHigh: 12.9},
	}
	wide := BuildWide([]model.Filing{sampleFiling(`["ABC"]`)}, refs, snaps)
	row := wide.Rows[0]

	if row["name"] != "Acme Corp" || row["exchange"] != "XNAS" || row["sector"] != "Software" {
		t.Errorf("reference must win identity fields: %v", row)
	}
	if row["current_price"] != "12.5" || row["open"] != "12" {
		t.Errorf("snapshot must win price fields: %v", row)
	}
	if row["polygon_market_cap"] != "500000000" {
		t.Errorf("enrichment must land under polygon_ prefix, got %q", row["polygon_market_cap"])
	}
}

func TestBuildWide_CommutativeInSourceAvailability(t *testing.T) {
	filing := sampleFiling(`["ABC"]`)
	ref := &model.Reference{Symbol: "ABC", Name: "Acme Corp"}
	snap := &model.Snapshot{Current: 3.14}

	full := BuildWide([]model.Filing{filing},
		map[string]*model.Reference{"ABC": ref},
		map[string]*model.Snapshot{"ABC": snap})

	// Ticker known only to the market sources joins with the same cells.
	marketOnly := BuildWide(nil,
		map[string]*model.Reference{"ABC": ref},
		map[string]*model.Snapshot{"ABC": snap})

	for _, col := range []string{"name", "current_price", "symbol"} {
		if full.Rows[0][col] != marketOnly.Rows[0][col] {
			t.Errorf("column %s differs by fetch order: %q vs %q",
				col, full.Rows[0][col], marketOnly.Rows[0][col])
		}
	}
}

func TestBuildWide_UndecodableTickerRowKept(t *testing.T) {
	wide := BuildWide([]model.Filing{sampleFiling("not json or literal")}, nil, nil)
	if len(wide.Rows) != 1 {
		t.Fatalf("unmatched filing rows must be kept, got %d rows", len(wide.Rows))
	}
	if wide.Rows[0]["ticker"] != "" {
		t.Errorf("undecodable tickers field must yield empty ticker, got %q", wide.Rows[0]["ticker"])
	}
	if wide.Rows[0]["tickers"] != "not json or literal" {
		t.Errorf("raw tickers value must be preserved, got %q", wide.Rows[0]["tickers"])
	}
}

func TestBuildWide_MarketOnlyTickersJoin(t *testing.T) {
	snaps := map[string]*model.Snapshot{"ZZZ": {Current: 1.5}}
	wide := BuildWide([]model.Filing{sampleFiling(`["ABC"]`)}, nil, snaps)
	if len(wide.Rows) != 2 {
		t.Fatalf("expected filing row + market-only row, got %d", len(wide.Rows))
	}
}
