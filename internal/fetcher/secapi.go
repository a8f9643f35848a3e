package fetcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ipopulse/internal/model"
)

// FilingSearchFetcher queries an SEC-style full-text filing search API.
// Results are paginated; one search walks all pages up to MaxResults.
type FilingSearchFetcher struct {
	BaseURL  string
	APIKey   string
	FormType string
	Client   *http.Client

	MaxResults int           // hard cap on rows per search, default 10000
	BatchSize  int           // page size, default 50
	Attempts   int           // attempts per page, default 3
	Backoff    time.Duration // base backoff between attempts, default 1s
}

// NewFilingSearchFetcher creates a fetcher with a reused HTTP client.
func NewFilingSearchFetcher(baseURL, apiKey, formType string) *FilingSearchFetcher {
	return &FilingSearchFetcher{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		FormType: formType,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
		MaxResults: 10000,
		BatchSize:  50,
		Attempts:   3,
		Backoff:    time.Second,
	}
}

func (f *FilingSearchFetcher) Name() string { return "filing-search" }

type filingQuery struct {
	Query string `json:"query"`
	From  int    `json:"from"`
	Size  int    `json:"size"`
}

// filingRow mirrors one filing in the search response. The tickers field
// arrives in several encodings, so it is kept raw for the merger to decode.
type filingRow struct {
	AccessionNo            string          `json:"accessionNo"`
	FormType               string          `json:"formType"`
	FiledAt                string          `json:"filedAt"`
	FilingURL              string          `json:"filingUrl"`
	Tickers                json.RawMessage `json:"tickers"`
	Auditors               string          `json:"auditors"`
	Employees              string          `json:"employees"`
	LawFirms               string          `json:"lawFirms"`
	ProceedsBeforeExpenses string          `json:"proceedsBeforeExpenses"`
	PublicOfferingPrice    string          `json:"publicOfferingPrice"`
	Securities             string          `json:"securities"`
	Underwriters           string          `json:"underwriters"`
}

type filingPage struct {
	Data []filingRow `json:"data"`
}

// SearchFilings returns all filings of the configured form type filed in the
// inclusive date range. Dates are YYYY-MM-DD.
func (f *FilingSearchFetcher) SearchFilings(startDate, endDate string) ([]model.Filing, error) {
	batch := f.BatchSize
	if batch <= 0 {
		batch = 50
	}
	maxResults := f.MaxResults
	if maxResults <= 0 {
		maxResults = 10000
	}

	var all []model.Filing
	for offset := 0; offset < maxResults; offset += batch {
		page, err := f.fetchPage(startDate, endDate, offset, batch)
		if err != nil {
			return nil, fmt.Errorf("filing search page at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}
		for _, row := range page {
			all = append(all, model.Filing{
				AccessionNo:            row.AccessionNo,
				FormType:               row.FormType,
				FiledAt:                row.FiledAt,
				FilingURL:              row.FilingURL,
				TickersRaw:             rawToString(row.Tickers),
				Auditors:               row.Auditors,
				Employees:              row.Employees,
				LawFirms:               row.LawFirms,
				ProceedsBeforeExpenses: row.ProceedsBeforeExpenses,
				PublicOfferingPrice:    row.PublicOfferingPrice,
				Securities:             row.Securities,
				Underwriters:           row.Underwriters,
			})
		}
		if len(page) < batch {
			break
		}
	}
	return all, nil
}

// rawToString unwraps a JSON string value, otherwise returns the raw text.
// The tickers field is sometimes a stringified literal and sometimes an
// actual array; either way the merger receives one string to decode.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func (f *FilingSearchFetcher) fetchPage(startDate, endDate string, offset, size int) ([]filingRow, error) {
	payload, err := json.Marshal(filingQuery{
		Query: fmt.Sprintf("filedAt:[%s TO %s] AND formType:%s", startDate, endDate, f.FormType),
		From:  offset,
		Size:  size,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	attempts := f.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := f.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(backoff * time.Duration(1<<uint(i-1)))
		}
		rows, retry, err := f.doPage(payload)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, lastErr
}

func (f *FilingSearchFetcher) doPage(payload []byte) (rows []filingRow, retry bool, err error) {
	req, err := http.NewRequest("POST", f.BaseURL+"/form-s1-424b4", bytes.NewReader(payload))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", f.APIKey)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("filing search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, retryableStatus(resp.StatusCode),
			fmt.Errorf("filing search: status %d, body: %s", resp.StatusCode, string(body))
	}

	var page filingPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, false, fmt.Errorf("decode filings: %w", err)
	}
	return page.Data, false, nil
}
