package fetcher

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ipopulse/internal/model"
)

// retryableStatus reports whether an HTTP status is worth another attempt.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// PolygonFetcher implements SnapshotSource and ReferenceSource against a
// Polygon-style market data API.
type PolygonFetcher struct {
	BaseURL  string
	APIKey   string
	Client   *http.Client
	Attempts int // attempts per lookup, default 2
}

// NewPolygonFetcher creates a fetcher with a reused HTTP client.
func NewPolygonFetcher(baseURL, apiKey string) *PolygonFetcher {
	return &PolygonFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
		Attempts: 2,
	}
}

func (f *PolygonFetcher) Name() string { return "polygon" }

func (f *PolygonFetcher) attempts() int {
	if f.Attempts > 0 {
		return f.Attempts
	}
	return 2
}

// get issues one GET and classifies the response. A nil body with a
// non-Found outcome means the caller should give up or retry depending
// on the outcome kind.
func (f *PolygonFetcher) get(endpoint string) ([]byte, Outcome, bool) {
	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return nil, Transient, false
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, Transient, true
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, NotFound, false
	}
	if resp.StatusCode != http.StatusOK {
		return nil, Transient, retryableStatus(resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Transient, true
	}
	return body, Found, false
}

func (f *PolygonFetcher) fetch(endpoint string) ([]byte, Outcome) {
	var out Outcome
	for i := 0; i < f.attempts(); i++ {
		body, o, retry := f.get(endpoint)
		if o == Found {
			return body, Found
		}
		out = o
		if !retry {
			break
		}
	}
	return nil, out
}

// snapshotBar is one aggregate bar inside a snapshot response.
type snapshotBar struct {
	Close  float64 `json:"c"`
	Open   float64 `json:"o"`
	Low    float64 `json:"l"`
	High   float64 `json:"h"`
	Price  float64 `json:"p"`
	Volume float64 `json:"v"`
}

type snapshotResponse struct {
	Status string `json:"status"`
	Ticker *struct {
		Min          *snapshotBar `json:"min"`
		Day          *snapshotBar `json:"day"`
		Max          *snapshotBar `json:"max"`
		PrevDay      *snapshotBar `json:"prevDay"`
		MarketStatus string       `json:"market_status"`
		LastQuote    *struct {
			Price float64 `json:"P"`
			Size  float64 `json:"S"`
		} `json:"lastQuote"`
		LastTrade *struct {
			Price float64 `json:"p"`
			Size  float64 `json:"s"`
		} `json:"lastTrade"`
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Volume float64 `json:"volume"`
		VWAP   float64 `json:"vw"`
	} `json:"ticker"`
}

// FetchSnapshot returns the live price observation for a ticker. The close
// of the most recent minute bar wins; the daily bar is the fallback.
func (f *PolygonFetcher) FetchSnapshot(ticker string) (*model.Snapshot, Outcome) {
	endpoint := fmt.Sprintf("%s/v2/snapshot/locale/us/markets/stocks/tickers/%s?apikey=%s",
		f.BaseURL, url.PathEscape(ticker), url.QueryEscape(f.APIKey))
	body, out := f.fetch(endpoint)
	if out != Found {
		return nil, out
	}

	var sr snapshotResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, ParseError
	}
	if sr.Status != "OK" || sr.Ticker == nil {
		return nil, NotFound
	}

	t := sr.Ticker
	snap := &model.Snapshot{
		MarketStatus: t.MarketStatus,
		Open:         t.Open,
		DayHigh:      t.High,
		DayLow:       t.Low,
		Volume:       t.Volume,
		VWAP:         t.VWAP,
	}
	switch {
	case t.Min != nil:
		snap.Current = t.Min.Close
		snap.Open = t.Min.Open
		snap.DayLow = t.Min.Low
		snap.DayHigh = t.Min.High
		snap.MinPrice = t.Min.Price
		snap.MinVolume = t.Min.Volume
	case t.Day != nil:
		snap.Current = t.Day.Close
		snap.Open = t.Day.Open
		snap.DayLow = t.Day.Low
		snap.DayHigh = t.Day.High
	default:
		return nil, ParseError
	}
	if t.Max != nil {
		snap.MaxPrice = t.Max.Price
		snap.MaxVolume = t.Max.Volume
	}
	if t.PrevDay != nil {
		snap.PrevClose = t.PrevDay.Close
	}
	if t.LastQuote != nil {
		snap.LastQuotePrice = t.LastQuote.Price
		snap.LastQuoteSize = t.LastQuote.Size
	}
	if t.LastTrade != nil {
		snap.LastTradePrice = t.LastTrade.Price
		snap.LastTradeSize = t.LastTrade.Size
	}
	return snap, Found
}

type referenceResponse struct {
	Status  string          `json:"status"`
	Results json.RawMessage `json:"results"`
}

type referenceResult struct {
	Ticker                      string  `json:"ticker"`
	Name                        string  `json:"name"`
	Market                      string  `json:"market"`
	Locale                      string  `json:"locale"`
	PrimaryExchange             string  `json:"primary_exchange"`
	Type                        string  `json:"type"`
	Active                      bool    `json:"active"`
	CurrencyName                string  `json:"currency_name"`
	CIK                         string  `json:"cik"`
	CompositeFIGI               string  `json:"composite_figi"`
	ShareClassFIGI              string  `json:"share_class_figi"`
	SICDescription              string  `json:"sic_description"`
	MarketCap                   float64 `json:"market_cap"`
	ShareClassSharesOutstanding float64 `json:"share_class_shares_outstanding"`
	WeightedSharesOutstanding   float64 `json:"weighted_shares_outstanding"`
	RoundLot                    float64 `json:"round_lot"`
	TickerRoot                  string  `json:"ticker_root"`
	TotalEmployees              float64 `json:"total_employees"`
	ListDate                    string  `json:"list_date"`
	HomepageURL                 string  `json:"homepage_url"`
	Description                 string  `json:"description"`
	LastUpdatedUTC              string  `json:"last_updated_utc"`
	DelistedUTC                 string  `json:"delisted_utc"`
}

// FetchReference returns static company metadata for a ticker. The upstream
// answers either a single result object or a one-element list; both shapes
// are accepted.
func (f *PolygonFetcher) FetchReference(ticker string) (*model.Reference, Outcome) {
	endpoint := fmt.Sprintf("%s/v3/reference/tickers/%s?apikey=%s",
		f.BaseURL, url.PathEscape(ticker), url.QueryEscape(f.APIKey))
	body, out := f.fetch(endpoint)
	if out != Found {
		return nil, out
	}

	var rr referenceResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, ParseError
	}
	if rr.Status != "OK" || len(rr.Results) == 0 {
		return nil, NotFound
	}

	var res referenceResult
	if err := json.Unmarshal(rr.Results, &res); err != nil {
		var list []referenceResult
		if err := json.Unmarshal(rr.Results, &list); err != nil || len(list) == 0 {
			return nil, ParseError
		}
		res = list[0]
	}

	return &model.Reference{
		Symbol:                      res.Ticker,
		Name:                        res.Name,
		Market:                      res.Market,
		Locale:                      res.Locale,
		PrimaryExchange:             res.PrimaryExchange,
		Type:                        res.Type,
		Active:                      res.Active,
		CurrencyName:                res.CurrencyName,
		CIK:                         res.CIK,
		CompositeFIGI:               res.CompositeFIGI,
		ShareClassFIGI:              res.ShareClassFIGI,
		SICDescription:              res.SICDescription,
		MarketCap:                   res.MarketCap,
		ShareClassSharesOutstanding: res.ShareClassSharesOutstanding,
		WeightedSharesOutstanding:   res.WeightedSharesOutstanding,
		RoundLot:                    res.RoundLot,
		TickerRoot:                  res.TickerRoot,
		TotalEmployees:              res.TotalEmployees,
		ListDate:                    res.ListDate,
		HomepageURL:                 res.HomepageURL,
		Description:                 res.Description,
		LastUpdatedUTC:              res.LastUpdatedUTC,
		DelistedUTC:                 res.DelistedUTC,
	}, Found
}
