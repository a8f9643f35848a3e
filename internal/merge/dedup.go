package merge

import (
	"sort"
	"time"

	"ipopulse/internal/table"
)

var filedAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseFiledAt(s string) time.Time {
	for _, layout := range filedAtLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// Dedup collapses duplicate tickers to one row: most-recently-filed wins
// when the filedAt column is populated, otherwise the first row in input
// order. Rows with an empty ticker are unmatched join leftovers and are
// kept untouched. Deduplicating an already-deduplicated table is a no-op.
func Dedup(t *table.Table) *table.Table {
	type indexed struct {
		row map[string]string
		pos int
	}
	byTicker := make(map[string][]indexed)
	var order []string
	var unmatched []indexed

	for i, row := range t.Rows {
		ticker := row["ticker"]
		if ticker == "" {
			unmatched = append(unmatched, indexed{row, i})
			continue
		}
		if _, seen := byTicker[ticker]; !seen {
			order = append(order, ticker)
		}
		byTicker[ticker] = append(byTicker[ticker], indexed{row, i})
	}

	out := table.New(t.Columns)
	var kept []indexed
	for _, ticker := range order {
		group := byTicker[ticker]
		sort.SliceStable(group, func(i, j int) bool {
			ti := parseFiledAt(group[i].row["filedAt"])
			tj := parseFiledAt(group[j].row["filedAt"])
			return ti.After(tj)
		})
		kept = append(kept, group[0])
	}
	kept = append(kept, unmatched...)

	// Restore input order among the survivors.
	sort.Slice(kept, func(i, j int) bool { return kept[i].pos < kept[j].pos })
	for _, k := range kept {
		out.Append(k.row)
	}
	return out
}

// MergeIntoExisting appends only genuinely new tickers from fresh onto the
// existing table; tickers already on file keep their stored row untouched.
// The combined table is deduplicated before returning.
func MergeIntoExisting(existing, fresh *table.Table) *table.Table {
	if len(existing.Columns) == 0 {
		return Dedup(fresh)
	}

	have := make(map[string]bool)
	for _, row := range existing.Rows {
		if t := row["ticker"]; t != "" {
			have[t] = true
		}
	}

	out := table.New(existing.Columns)
	out.Rows = append(out.Rows, existing.Rows...)
	for _, row := range fresh.Rows {
		ticker := row["ticker"]
		if ticker != "" && !have[ticker] {
			out.Append(row)
			have[ticker] = true
		}
	}
	return Dedup(out)
}
