package summary

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"time"

	"ipopulse/internal/calendar"
	"ipopulse/internal/recorder"
	"ipopulse/internal/rolling"
	"ipopulse/internal/table"
)

// Performer is one ranked ticker with its price context.
type Performer struct {
	Ticker     string
	Company    string
	TodayPrice float64
	DayMove    float64
	WeekMove   float64
	MonthMove  float64
}

// Generator reads the rolling price table, ranks tickers by weekly move and
// writes a dated CSV of generated company snapshots. It is a pure consumer
// of the pipeline's tables; nothing it does feeds back into them.
type Generator struct {
	Completer Completer
	Recorder  recorder.Recorder

	RollingPath string
	RecentPath  string
	OutDir      string
	TopN        int
	Pace        time.Duration
	Now         func() time.Time
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// TopPerformers returns the top n tickers by weekly move, descending.
// Company names come from the recent-listing table; a ticker with no entry
// there falls back to its own symbol.
func TopPerformers(store *rolling.Store, recent *table.Table, n int) []Performer {
	names := make(map[string]string, len(recent.Rows))
	for _, row := range recent.Rows {
		if sym := row[calendar.ColSymbol]; sym != "" && row[calendar.ColCompany] != "" {
			names[sym] = row[calendar.ColCompany]
		}
	}

	var all []Performer
	for _, ticker := range store.Tickers() {
		row, _ := store.Lookup(ticker)
		company := names[ticker]
		if company == "" {
			company = ticker
		}
		all = append(all, Performer{
			Ticker:     ticker,
			Company:    company,
			TodayPrice: row.Today.Value,
			DayMove:    row.DayMove,
			WeekMove:   row.WeekMove,
			MonthMove:  row.MonthMove,
		})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].WeekMove > all[j].WeekMove })
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// Prompt builds the per-company snapshot request.
func Prompt(p Performer) string {
	sign := ""
	if p.WeekMove >= 0 {
		sign = "+"
	}
	return fmt.Sprintf("Provide a comprehensive financial snapshot and current update on activity for the company that recently went public - %s. The stock has moved %s%.4f this week and is currently trading at $%.2f. Include recent news, market sentiment, social media buzz, analyst opinions, and any significant developments. You do not need to mention that the company recently went public.", p.Company, sign, p.WeekMove, p.TodayPrice)
}

// Run generates snapshots for the current top performers and writes them to
// a dated CSV under OutDir. A failed completion keeps the error text as the
// row's response so the output row count always matches the ranking.
func (g *Generator) Run(ctx context.Context) error {
	store, err := rolling.Open(g.RollingPath)
	if err != nil {
		return err
	}
	recent, err := table.Load(g.RecentPath)
	if err != nil {
		return err
	}

	n := g.TopN
	if n <= 0 {
		n = 5
	}
	performers := TopPerformers(store, recent, n)
	if len(performers) == 0 {
		log.Println("[INFO] no tracked tickers, summary step skipped")
		return nil
	}

	now := g.now()
	pulled := now.Format("2006-01-02 15:04:05")
	out := table.New([]string{"Company Name", "Ticker", "GPTResponse", "Date Pulled"})

	for i, p := range performers {
		log.Printf("[INFO] summarizing %d/%d: %s (%s), week move %+.4f",
			i+1, len(performers), p.Company, p.Ticker, p.WeekMove)
		text, err := g.Completer.Complete(ctx, Prompt(p))
		if err != nil {
			log.Printf("[ERROR] summarize %s: %v", p.Ticker, err)
			text = fmt.Sprintf("Error: could not generate financial snapshot for %s", p.Company)
		}
		out.Append(map[string]string{
			"Company Name": p.Company,
			"Ticker":       p.Ticker,
			"GPTResponse":  text,
			"Date Pulled":  pulled,
		})
		if err := g.Recorder.RecordSummary(&recorder.SummaryEntry{
			Company:  p.Company,
			Ticker:   p.Ticker,
			Response: text,
			PulledAt: now,
		}); err != nil {
			log.Printf("[ERROR] record summary: %v", err)
		}
		if i < len(performers)-1 && g.Pace > 0 {
			time.Sleep(g.Pace)
		}
	}

	path := filepath.Join(g.OutDir, fmt.Sprintf("gptSummary%s.csv", now.Format("20060102")))
	if err := out.Save(path); err != nil {
		return err
	}
	log.Printf("[INFO] wrote %d summaries to %s", len(out.Rows), path)
	return nil
}
