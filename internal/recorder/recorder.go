package recorder

import "time"

// RunStats summarizes one ingestion run for the audit trail.
type RunStats struct {
	StartedAt  time.Time
	FinishedAt time.Time
	NewTickers int
	Rolled     int
	Skipped    int
	FilingRows int
	MergedRows int
	RecentRows int
	Error      string
}

// SummaryEntry is one generated company snapshot.
type SummaryEntry struct {
	Company  string
	Ticker   string
	Response string
	PulledAt time.Time
}

// Recorder persists run history and generated summaries for analysis.
type Recorder interface {
	RecordRun(stats *RunStats) error
	RecordSummary(entry *SummaryEntry) error
	Close() error
}
