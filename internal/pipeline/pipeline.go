package pipeline

import (
	"log"
	"time"

	"ipopulse/internal/calendar"
	"ipopulse/internal/fetcher"
	"ipopulse/internal/merge"
	"ipopulse/internal/model"
	"ipopulse/internal/recorder"
	"ipopulse/internal/rolling"
	"ipopulse/internal/table"
)

// Paths locates the flat-file tables the pipeline owns or consumes.
type Paths struct {
	Rolling  string // rolling price table (read-write)
	Merged   string // wide merged ticker table (read-write)
	Upcoming string // scraper-produced upcoming feed (read-only)
	Recent   string // enriched recent-listing table (read-write)
}

// Pipeline is the one-shot daily ingestion batch. Stages run in order:
// load existing tables, discover new tickers, fetch their first prices,
// append them, roll the existing price histories, merge the day's filings
// with reference and snapshot data, persist. A stage with empty input is
// skipped, not retried. Per-ticker fetch failures are logged and excluded;
// table read/write failures abort the run.
type Pipeline struct {
	Filings    fetcher.FilingSource
	References fetcher.ReferenceSource
	Snapshots  fetcher.SnapshotSource
	Recorder   recorder.Recorder

	Paths        Paths
	Pace         time.Duration // fixed inter-call delay between fetches
	RecentCutoff time.Duration // age filter for the recent-listing table
	Now          func() time.Time
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Run executes one full ingestion cycle and records its stats.
func (p *Pipeline) Run() error {
	stats := &recorder.RunStats{StartedAt: p.now()}
	err := p.run(stats)
	stats.FinishedAt = p.now()
	if err != nil {
		stats.Error = err.Error()
	}
	if recErr := p.Recorder.RecordRun(stats); recErr != nil {
		log.Printf("[ERROR] record run: %v", recErr)
	}
	return err
}

func (p *Pipeline) run(stats *recorder.RunStats) error {
	now := p.now()

	// LOAD_EXISTING
	store, err := rolling.Open(p.Paths.Rolling)
	if err != nil {
		return err
	}
	existing := make(map[string]bool, store.Len())
	for _, t := range store.Tickers() {
		existing[t] = true
	}
	merged, err := table.Load(p.Paths.Merged)
	if err != nil {
		return err
	}
	upcoming, err := table.Load(p.Paths.Upcoming)
	if err != nil {
		return err
	}
	recent, err := table.Load(p.Paths.Recent)
	if err != nil {
		return err
	}
	log.Printf("[INFO] loaded %d tracked tickers, %d merged rows, %d upcoming rows",
		store.Len(), len(merged.Rows), len(upcoming.Rows))

	// DISCOVER_NEW
	newTickers := p.discoverNew(merged, upcoming, existing, now)

	// FETCH_NEW_PRICES + APPEND_NEW
	if len(newTickers) > 0 {
		log.Printf("[INFO] discovered %d new tickers", len(newTickers))
		prices := p.fetchPrices(newTickers, stats)
		for _, ticker := range newTickers {
			if price, ok := prices[ticker]; ok {
				if store.AppendNew(ticker, price) {
					stats.NewTickers++
				}
			}
		}
	}

	// ROLL_EXISTING: only tickers that were on file before this run's
	// appends; a ticker appended minutes ago has no prior day to shift.
	if len(existing) > 0 {
		tickers := make([]string, 0, len(existing))
		for _, t := range store.Tickers() {
			if existing[t] {
				tickers = append(tickers, t)
			}
		}
		prices := p.fetchPrices(tickers, stats)
		store.RollDaily(prices)
		stats.Rolled = len(prices)
		log.Printf("[INFO] rolled %d of %d existing tickers", len(prices), len(tickers))
	}

	// MERGE_WITH_FILINGS_AND_REFERENCE
	merged = p.mergeFilings(merged, stats)
	recent = p.refreshRecent(upcoming, recent, now, stats)

	// PERSIST
	if err := store.Save(); err != nil {
		return err
	}
	if err := merged.Save(p.Paths.Merged); err != nil {
		return err
	}
	if err := recent.Save(p.Paths.Recent); err != nil {
		return err
	}
	log.Printf("[INFO] run complete: %d new, %d rolled, %d skipped, %d merged rows",
		stats.NewTickers, stats.Rolled, stats.Skipped, stats.MergedRows)
	return nil
}

// discoverNew collects tickers seen in the merged table or the upcoming
// feed that the rolling store does not track yet, in first-seen order.
func (p *Pipeline) discoverNew(merged, upcoming *table.Table, existing map[string]bool, now time.Time) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range merged.Tickers("ticker") {
		if !existing[t] && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range calendar.MissingTickers(upcoming, existing, now) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// fetchPrices fetches a snapshot price per ticker with a fixed pacing delay
// between calls. Failed tickers are logged by failure kind and excluded
// from the returned batch.
func (p *Pipeline) fetchPrices(tickers []string, stats *recorder.RunStats) map[string]float64 {
	prices := make(map[string]float64, len(tickers))
	for i, ticker := range tickers {
		snap, out := p.Snapshots.FetchSnapshot(ticker)
		if out == fetcher.Found {
			prices[ticker] = snap.Current
		} else {
			stats.Skipped++
			log.Printf("[WARN] price fetch %s: %s", ticker, out)
		}
		if i < len(tickers)-1 && p.Pace > 0 {
			time.Sleep(p.Pace)
		}
	}
	return prices
}

// mergeFilings pulls today's filings, enriches their tickers with reference
// and snapshot data, and folds the result into the persisted merged table.
// A failed filing search skips the stage rather than aborting the run.
func (p *Pipeline) mergeFilings(merged *table.Table, stats *recorder.RunStats) *table.Table {
	today := p.now().Format("2006-01-02")
	filings, err := p.Filings.SearchFilings(today, today)
	if err != nil {
		log.Printf("[ERROR] filing search: %v", err)
		return merged
	}
	if len(filings) == 0 {
		log.Println("[INFO] no filings today, merge stage skipped")
		return merged
	}
	stats.FilingRows = len(filings)

	// Unique tickers across all filings, every decoded element counted.
	seen := make(map[string]bool)
	var tickers []string
	for _, f := range filings {
		for _, t := range merge.DecodeTickers(f.TickersRaw) {
			if !seen[t] && validTicker(t) {
				seen[t] = true
				tickers = append(tickers, t)
			}
		}
	}

	refMap, snapMap := p.fetchMarketData(tickers)
	wide := merge.BuildWide(filings, refMap, snapMap)
	out := merge.MergeIntoExisting(merged, wide)
	stats.MergedRows = len(out.Rows)
	return out
}

// validTicker drops file-number artifacts that sometimes pollute the
// decoded ticker lists.
func validTicker(t string) bool {
	if t == "" || len(t) > 15 {
		return false
	}
	if len(t) >= 4 && (t[:4] == "001-" || t[:4] == "000-") {
		return false
	}
	return true
}

func (p *Pipeline) fetchMarketData(tickers []string) (map[string]*model.Reference, map[string]*model.Snapshot) {
	refs := make(map[string]*model.Reference, len(tickers))
	snaps := make(map[string]*model.Snapshot, len(tickers))
	for i, ticker := range tickers {
		if ref, out := p.References.FetchReference(ticker); out == fetcher.Found {
			refs[ticker] = ref
		} else if out != fetcher.NotFound {
			log.Printf("[WARN] reference fetch %s: %s", ticker, out)
		}
		if snap, out := p.Snapshots.FetchSnapshot(ticker); out == fetcher.Found {
			snaps[ticker] = snap
		} else if out != fetcher.NotFound {
			log.Printf("[WARN] snapshot fetch %s: %s", ticker, out)
		}
		if i < len(tickers)-1 && p.Pace > 0 {
			time.Sleep(p.Pace)
		}
	}
	return refs, snaps
}

// refreshRecent enriches upcoming entries expected to trade now and folds
// them into the recent-listing table, applying the age filter.
func (p *Pipeline) refreshRecent(upcoming, recent *table.Table, now time.Time, stats *recorder.RunStats) *table.Table {
	entries := calendar.RecentEntries(upcoming, now)
	if len(entries) == 0 {
		return recent
	}
	log.Printf("[INFO] enriching %d newly trading listings", len(entries))
	enriched := calendar.Enrich(entries, p.Snapshots, p.References, p.Pace, now)
	cutoff := p.RecentCutoff
	if cutoff <= 0 {
		cutoff = 90 * 24 * time.Hour
	}
	out := calendar.MergeRecent(recent, enriched, now, cutoff)
	stats.RecentRows = len(out.Rows)
	return out
}
