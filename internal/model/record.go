package model

// Filing is one regulatory filing row from the filing-search API.
// TickersRaw keeps the upstream encoding of the tickers field untouched;
// extracting a canonical ticker from it is the merger's job.
type Filing struct {
	AccessionNo            string `json:"accessionNo"`
	FormType               string `json:"formType"`
	FiledAt                string `json:"filedAt"`
	FilingURL              string `json:"filingUrl"`
	TickersRaw             string `json:"tickers"`
	Auditors               string `json:"auditors"`
	Employees              string `json:"employees"`
	LawFirms               string `json:"lawFirms"`
	ProceedsBeforeExpenses string `json:"proceedsBeforeExpenses"`
	PublicOfferingPrice    string `json:"publicOfferingPrice"`
	Securities             string `json:"securities"`
	Underwriters           string `json:"underwriters"`
}

// Reference holds static company metadata for a ticker.
type Reference struct {
	Symbol                      string
	Name                        string
	Market                      string
	Locale                      string
	PrimaryExchange             string
	Type                        string
	Active                      bool
	CurrencyName                string
	CIK                         string
	CompositeFIGI               string
	ShareClassFIGI              string
	SICDescription              string
	MarketCap                   float64
	ShareClassSharesOutstanding float64
	WeightedSharesOutstanding   float64
	RoundLot                    float64
	TickerRoot                  string
	TotalEmployees              float64
	ListDate                    string
	HomepageURL                 string
	Description                 string
	LastUpdatedUTC              string
	DelistedUTC                 string
}

// Snapshot holds one live price observation for a ticker. The bar fields
// come from either the most recent minute bar or the daily bar, whichever
// the upstream answered with.
type Snapshot struct {
	Current float64
	Open    float64
	DayLow  float64
	DayHigh float64

	MarketStatus   string
	LastQuotePrice float64
	LastQuoteSize  float64
	LastTradePrice float64
	LastTradeSize  float64
	MinPrice       float64
	MinVolume      float64
	MaxPrice       float64
	MaxVolume      float64
	PrevClose      float64
	Volume         float64
	VWAP           float64
}
