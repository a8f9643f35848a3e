package fetcher

import "ipopulse/internal/model"

// Outcome classifies the result of a single upstream fetch so callers can
// tell permanent absence apart from retry-worthy failures.
type Outcome int

const (
	// Found means the upstream returned a usable record.
	Found Outcome = iota
	// NotFound means the upstream explicitly reported the ticker unknown.
	NotFound
	// Transient means retries were exhausted on network or 5xx failures.
	Transient
	// ParseError means the response arrived but did not match the expected shape.
	ParseError
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotFound:
		return "not-found"
	case Transient:
		return "transient"
	case ParseError:
		return "parse-error"
	default:
		return "unknown"
	}
}

// SnapshotSource fetches one live price observation per ticker.
type SnapshotSource interface {
	FetchSnapshot(ticker string) (*model.Snapshot, Outcome)
	Name() string
}

// ReferenceSource fetches static company metadata per ticker.
type ReferenceSource interface {
	FetchReference(ticker string) (*model.Reference, Outcome)
	Name() string
}

// FilingSource queries the filing-search API for a date range.
type FilingSource interface {
	SearchFilings(startDate, endDate string) ([]model.Filing, error)
	Name() string
}
