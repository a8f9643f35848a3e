package merge

import (
	"encoding/json"
	"strconv"
	"strings"

	"ipopulse/internal/model"
	"ipopulse/internal/table"
)

// MergedColumns is the fixed schema of the wide per-ticker table. Every row
// carries the full column set; sources that did not answer leave empty cells.
var MergedColumns = []string{
	"ticker", "tickers", "symbol", "name", "short_name", "exchange", "sector",
	"industry", "current_price", "open", "day_low", "day_high", "market_cap",
	"debt_to_equity", "current_ratio", "quick_ratio", "book_value",
	"52_week_change", "accessionNo", "auditors", "employees", "filedAt",
	"filingUrl", "formType", "lawFirms", "proceedsBeforeExpenses",
	"publicOfferingPrice", "securities", "underwriters", "employees_yahoo",
	"website", "business_summary", "polygon_market_cap",
	"polygon_share_class_shares_outstanding",
	"polygon_weighted_shares_outstanding", "polygon_round_lot",
	"polygon_ticker_root", "polygon_sic_description",
	"polygon_total_employees", "polygon_list_date", "polygon_description",
}

// tickerEntry matches the object form of the upstream tickers encoding.
type tickerEntry struct {
	Ticker string `json:"ticker"`
}

// DecodeTickers decodes the filing tickers field: a JSON array of
// {ticker: ...} objects, a JSON array of strings, or a Python-style literal
// list of either. Undecodable or empty values yield nil.
func DecodeTickers(raw string) []string {
	s := strings.TrimSpace(raw)
	switch s {
	case "", "[]", "nan", "None", "null":
		return nil
	}

	if out := decodeList(s); out != nil {
		return out
	}
	// Literal-structure fallback: single-quoted lists from the upstream.
	if strings.Contains(s, "'") {
		return decodeList(strings.ReplaceAll(s, "'", `"`))
	}
	return nil
}

func decodeList(s string) []string {
	var objs []tickerEntry
	if err := json.Unmarshal([]byte(s), &objs); err == nil {
		var out []string
		for _, o := range objs {
			if o.Ticker != "" {
				out = append(out, o.Ticker)
			}
		}
		if out != nil {
			return out
		}
	}
	var plain []string
	if err := json.Unmarshal([]byte(s), &plain); err == nil {
		var out []string
		for _, t := range plain {
			if t != "" {
				out = append(out, t)
			}
		}
		return out
	}
	return nil
}

// CanonicalTicker returns the first decoded ticker, or "" when the value
// fails every decode attempt. Rows with "" still join the wide table as
// unmatched rows.
func CanonicalTicker(raw string) string {
	if list := DecodeTickers(raw); len(list) > 0 {
		return list[0]
	}
	return ""
}

func fnum(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// BuildWide combines filing, reference and snapshot records into one wide
// table. Reference fields win the identity columns, snapshot fields win the
// live-price columns, filing fields are additive; the secondary reference
// enrichment lands under the polygon_ prefix. The result covers every
// filing row (matched or not) plus every ticker known only to the market
// sources, so merging is insensitive to which source answered first.
func BuildWide(filings []model.Filing, refs map[string]*model.Reference, snaps map[string]*model.Snapshot) *table.Table {
	t := table.New(MergedColumns)
	covered := make(map[string]bool)

	for _, f := range filings {
		ticker := CanonicalTicker(f.TickersRaw)
		row := map[string]string{
			"ticker":                 ticker,
			"tickers":                f.TickersRaw,
			"accessionNo":            f.AccessionNo,
			"auditors":               f.Auditors,
			"employees":              f.Employees,
			"filedAt":                f.FiledAt,
			"filingUrl":              f.FilingURL,
			"formType":               f.FormType,
			"lawFirms":               f.LawFirms,
			"proceedsBeforeExpenses": f.ProceedsBeforeExpenses,
			"publicOfferingPrice":    f.PublicOfferingPrice,
			"securities":             f.Securities,
			"underwriters":           f.Underwriters,
		}
		if ticker != "" {
			applyMarket(row, refs[ticker], snaps[ticker])
			covered[ticker] = true
		}
		t.Append(row)
	}

	// Tickers the market sources answered for but no filing row claimed.
	for ticker, ref := range refs {
		if !covered[ticker] {
			row := map[string]string{"ticker": ticker}
			applyMarket(row, ref, snaps[ticker])
			covered[ticker] = true
			t.Append(row)
		}
	}
	for ticker, snap := range snaps {
		if !covered[ticker] {
			row := map[string]string{"ticker": ticker}
			applyMarket(row, nil, snap)
			t.Append(row)
		}
	}
	return t
}

func applyMarket(row map[string]string, ref *model.Reference, snap *model.Snapshot) {
	if ref != nil {
		row["symbol"] = ref.Symbol
		row["name"] = ref.Name
		row["short_name"] = ref.Name
		row["exchange"] = ref.PrimaryExchange
		row["sector"] = ref.SICDescription
		row["industry"] = ref.SICDescription
		row["market_cap"] = fnum(ref.MarketCap)
		row["employees_yahoo"] = fnum(ref.TotalEmployees)
		row["website"] = ref.HomepageURL
		row["business_summary"] = ref.Description

		row["polygon_market_cap"] = fnum(ref.MarketCap)
		row["polygon_share_class_shares_outstanding"] = fnum(ref.ShareClassSharesOutstanding)
		row["polygon_weighted_shares_outstanding"] = fnum(ref.WeightedSharesOutstanding)
		row["polygon_round_lot"] = fnum(ref.RoundLot)
		row["polygon_ticker_root"] = ref.TickerRoot
		row["polygon_sic_description"] = ref.SICDescription
		row["polygon_total_employees"] = fnum(ref.TotalEmployees)
		row["polygon_list_date"] = ref.ListDate
		row["polygon_description"] = ref.Description
	}
	if snap != nil {
		row["current_price"] = fnum(snap.Current)
		row["open"] = fnum(snap.Open)
		row["day_low"] = fnum(snap.DayLow)
		row["day_high"] = fnum(snap.DayHigh)
	}
}
