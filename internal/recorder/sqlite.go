package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run history and summaries to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so ad-hoc reads don't block the nightly writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at   INTEGER NOT NULL,
			finished_at  INTEGER NOT NULL,
			new_tickers  INTEGER,
			rolled       INTEGER,
			skipped      INTEGER,
			filing_rows  INTEGER,
			merged_rows  INTEGER,
			recent_rows  INTEGER,
			error        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON pipeline_runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS summaries (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			pulled_at INTEGER NOT NULL,
			company   TEXT,
			ticker    TEXT,
			response  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_summaries_pulled ON summaries(pulled_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(stats *RunStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO pipeline_runs
		(started_at, finished_at, new_tickers, rolled, skipped, filing_rows, merged_rows, recent_rows, error)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		stats.StartedAt.Unix(), stats.FinishedAt.Unix(),
		stats.NewTickers, stats.Rolled, stats.Skipped,
		stats.FilingRows, stats.MergedRows, stats.RecentRows,
		stats.Error,
	)
	return err
}

func (r *SQLiteRecorder) RecordSummary(entry *SummaryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO summaries (pulled_at, company, ticker, response)
		VALUES (?,?,?,?)`,
		entry.PulledAt.Unix(), entry.Company, entry.Ticker, entry.Response,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
