package fetcher

import "ipopulse/internal/model"

// MockMarketSource returns controllable fixed data for development and testing.
// Tickers absent from all maps report NotFound.
type MockMarketSource struct {
	Snapshots  map[string]*model.Snapshot
	References map[string]*model.Reference
	Outcomes   map[string]Outcome // overrides per ticker, optional
}

func (m *MockMarketSource) Name() string { return "mock" }

func (m *MockMarketSource) FetchSnapshot(ticker string) (*model.Snapshot, Outcome) {
	if o, ok := m.Outcomes[ticker]; ok && o != Found {
		return nil, o
	}
	if s, ok := m.Snapshots[ticker]; ok {
		return s, Found
	}
	return nil, NotFound
}

func (m *MockMarketSource) FetchReference(ticker string) (*model.Reference, Outcome) {
	if o, ok := m.Outcomes[ticker]; ok && o != Found {
		return nil, o
	}
	if r, ok := m.References[ticker]; ok {
		return r, Found
	}
	return nil, NotFound
}

// MockFilingSource returns a fixed filing list for any date range.
type MockFilingSource struct {
	Filings []model.Filing
	Err     error
}

func (m *MockFilingSource) Name() string { return "mock" }

func (m *MockFilingSource) SearchFilings(_, _ string) ([]model.Filing, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Filings, nil
}
