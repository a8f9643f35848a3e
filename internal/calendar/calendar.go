package calendar

import (
	"log"
	"regexp"
	"sort"
	"strconv"
	"time"

	"ipopulse/internal/fetcher"
	"ipopulse/internal/table"
)

// Column names of the scraper-produced upcoming feed.
const (
	ColCompany       = "Company"
	ColSymbol        = "Symbol"
	ColExpectedTrade = "Expected to Trade"
	ColScrapedDate   = "Scraped Date"
	ColProcessedDate = "processed_date"
)

// RecentColumns is the persisted schema of the enriched recent-listing
// table: the scraper columns plus the snapshot and reference enrichment
// under the polygon_ prefix, provenance made explicit.
var RecentColumns = []string{
	ColCompany, ColSymbol, "Lead Managers", "Shares (Millions)",
	"Price Low", "Price High", "Est. $ Volume", ColExpectedTrade, ColScrapedDate,
	"polygon_market_status", "polygon_last_quote_price", "polygon_last_quote_size",
	"polygon_last_trade_price", "polygon_last_trade_size", "polygon_min_price",
	"polygon_min_volume", "polygon_max_price", "polygon_max_volume",
	"polygon_prev_close", "polygon_open", "polygon_high", "polygon_low",
	"polygon_volume", "polygon_vwap", "polygon_name", "polygon_market",
	"polygon_locale", "polygon_primary_exchange", "polygon_type", "polygon_active",
	"polygon_currency_name", "polygon_cik", "polygon_composite_figi",
	"polygon_share_class_figi", "polygon_last_updated_utc", "polygon_delisted_utc",
	ColProcessedDate,
}

var (
	mdyPattern  = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	mdy2Pattern = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{2})\b`)
	isoPattern  = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
	yearPattern = regexp.MustCompile(`(\d{4})`)
)

// ParseLooseDate parses the free-form dates the calendar feed carries:
// m/d/yyyy, m/d/yy, yyyy-m-d, or a bare year (taken as January 1st).
// ok is false when nothing date-like is found; callers treat that as a
// far-future "week of" style placeholder, not an error.
func ParseLooseDate(s string) (t time.Time, ok bool) {
	if m := mdyPattern.FindStringSubmatch(s); m != nil {
		return mdy(m[1], m[2], m[3])
	}
	if m := mdy2Pattern.FindStringSubmatch(s); m != nil {
		yy, _ := strconv.Atoi(m[3])
		year := 1900 + yy
		if yy < 50 {
			year = 2000 + yy
		}
		return mdy(m[1], m[2], strconv.Itoa(year))
	}
	if m := isoPattern.FindStringSubmatch(s); m != nil {
		return mdy(m[2], m[3], m[1])
	}
	if m := yearPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func mdy(ms, ds, ys string) (time.Time, bool) {
	month, _ := strconv.Atoi(ms)
	day, _ := strconv.Atoi(ds)
	year, _ := strconv.Atoi(ys)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// RecentEntries returns upcoming-feed rows expected to start trading today
// or tomorrow.
func RecentEntries(upcoming *table.Table, now time.Time) []map[string]string {
	tomorrow := now.AddDate(0, 0, 1)
	var out []map[string]string
	for _, row := range upcoming.Rows {
		expected, ok := ParseLooseDate(row[ColExpectedTrade])
		if !ok {
			continue
		}
		if sameDay(expected, now) || sameDay(expected, tomorrow) {
			out = append(out, row)
		}
	}
	return out
}

// MissingTickers returns upcoming-feed symbols not yet tracked, admitted
// when their scrape is at most seven days old or the scrape date is
// unparseable.
func MissingTickers(upcoming *table.Table, have map[string]bool, now time.Time) []string {
	var out []string
	seen := make(map[string]bool)
	for _, row := range upcoming.Rows {
		symbol := row[ColSymbol]
		if symbol == "" || have[symbol] || seen[symbol] {
			continue
		}
		scraped, err := time.Parse("2006-01-02 15:04:05", row[ColScrapedDate])
		if err == nil && now.Sub(scraped) > 7*24*time.Hour {
			continue
		}
		seen[symbol] = true
		out = append(out, symbol)
	}
	return out
}

// Enrich attaches snapshot and reference fields to each entry under the
// polygon_ prefix and stamps processed_date. A source that does not answer
// leaves its columns empty; the entry is kept either way.
func Enrich(entries []map[string]string, snaps fetcher.SnapshotSource, refs fetcher.ReferenceSource, pace time.Duration, now time.Time) []map[string]string {
	out := make([]map[string]string, 0, len(entries))
	for i, entry := range entries {
		symbol := entry[ColSymbol]
		if symbol == "" {
			continue
		}
		enriched := make(map[string]string, len(entry)+28)
		for k, v := range entry {
			enriched[k] = v
		}

		if snap, outc := snaps.FetchSnapshot(symbol); outc == fetcher.Found {
			enriched["polygon_market_status"] = snap.MarketStatus
			enriched["polygon_last_quote_price"] = fnum(snap.LastQuotePrice)
			enriched["polygon_last_quote_size"] = fnum(snap.LastQuoteSize)
			enriched["polygon_last_trade_price"] = fnum(snap.LastTradePrice)
			enriched["polygon_last_trade_size"] = fnum(snap.LastTradeSize)
			enriched["polygon_min_price"] = fnum(snap.MinPrice)
			enriched["polygon_min_volume"] = fnum(snap.MinVolume)
			enriched["polygon_max_price"] = fnum(snap.MaxPrice)
			enriched["polygon_max_volume"] = fnum(snap.MaxVolume)
			enriched["polygon_prev_close"] = fnum(snap.PrevClose)
			enriched["polygon_open"] = fnum(snap.Open)
			enriched["polygon_high"] = fnum(snap.DayHigh)
			enriched["polygon_low"] = fnum(snap.DayLow)
			enriched["polygon_volume"] = fnum(snap.Volume)
			enriched["polygon_vwap"] = fnum(snap.VWAP)
		} else if outc != fetcher.NotFound {
			log.Printf("[WARN] snapshot enrich %s: %s", symbol, outc)
		}

		if ref, outc := refs.FetchReference(symbol); outc == fetcher.Found {
			enriched["polygon_name"] = ref.Name
			enriched["polygon_market"] = ref.Market
			enriched["polygon_locale"] = ref.Locale
			enriched["polygon_primary_exchange"] = ref.PrimaryExchange
			enriched["polygon_type"] = ref.Type
			enriched["polygon_active"] = strconv.FormatBool(ref.Active)
			enriched["polygon_currency_name"] = ref.CurrencyName
			enriched["polygon_cik"] = ref.CIK
			enriched["polygon_composite_figi"] = ref.CompositeFIGI
			enriched["polygon_share_class_figi"] = ref.ShareClassFIGI
			enriched["polygon_last_updated_utc"] = ref.LastUpdatedUTC
			enriched["polygon_delisted_utc"] = ref.DelistedUTC
		} else if outc != fetcher.NotFound {
			log.Printf("[WARN] reference enrich %s: %s", symbol, outc)
		}

		enriched[ColProcessedDate] = now.Format("2006-01-02 15:04:05")
		out = append(out, enriched)
		if i < len(entries)-1 && pace > 0 {
			time.Sleep(pace)
		}
	}
	return out
}

func fnum(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// MergeRecent folds newly enriched entries into the persisted recent table.
// Symbols collide newest-wins, entries whose expected-trade date is older
// than cutoff are dropped from output, and rows sort by expected date
// descending. Unparseable dates are kept and sort first.
func MergeRecent(existing *table.Table, fresh []map[string]string, now time.Time, cutoff time.Duration) *table.Table {
	bySymbol := make(map[string]map[string]string)
	var order []string
	keep := func(row map[string]string) {
		symbol := row[ColSymbol]
		if symbol == "" {
			return
		}
		if _, seen := bySymbol[symbol]; !seen {
			order = append(order, symbol)
		}
		bySymbol[symbol] = row
	}
	for _, row := range existing.Rows {
		keep(row)
	}
	for _, row := range fresh {
		keep(row)
	}

	deadline := now.Add(-cutoff)
	out := table.New(RecentColumns)
	for _, symbol := range order {
		row := bySymbol[symbol]
		expected, ok := ParseLooseDate(row[ColExpectedTrade])
		if ok && expected.Before(deadline) {
			continue
		}
		out.Append(row)
	}

	sort.SliceStable(out.Rows, func(i, j int) bool {
		ti, iok := ParseLooseDate(out.Rows[i][ColExpectedTrade])
		tj, jok := ParseLooseDate(out.Rows[j][ColExpectedTrade])
		if iok != jok {
			return !iok
		}
		return ti.After(tj)
	})
	return out
}
