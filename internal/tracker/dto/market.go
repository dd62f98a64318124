package dto

import "time"

// Quote is one instrument's session data.
type Quote struct {
	Ticker    string  `json:"ticker"`
	Name      string  `json:"name"`
	Sector    string  `json:"sector"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Amount    float64 `json:"amount"`
	MarketCap float64 `json:"market_cap"`
}

// MarketSnapshot is the per-ticker data of one session.
type MarketSnapshot struct {
	Date   time.Time
	Quotes map[string]Quote
}

// NewMarketSnapshot indexes quotes by ticker. Later duplicates win.
func NewMarketSnapshot(date time.Time, quotes []Quote) *MarketSnapshot {
	m := make(map[string]Quote, len(quotes))
	for _, q := range quotes {
		if q.Ticker == "" {
			continue
		}
		m[q.Ticker] = q
	}
	return &MarketSnapshot{Date: date, Quotes: m}
}

// Get returns the quote of ticker.
func (s *MarketSnapshot) Get(ticker string) (Quote, bool) {
	if s == nil {
		return Quote{}, false
	}
	q, ok := s.Quotes[ticker]
	return q, ok
}

// SnapshotResponse is the wire format of the market data API.
type SnapshotResponse struct {
	Date    string  `json:"date"`
	Session string  `json:"session"`
	Quotes  []Quote `json:"quotes"`
}

// IndexLevels is the wire format of the index endpoint.
type IndexLevels struct {
	Date            string  `json:"date"`
	KospiClose      float64 `json:"kospi_close"`
	KospiPrevClose  float64 `json:"kospi_prev_close"`
	KosdaqClose     float64 `json:"kosdaq_close"`
	KosdaqPrevClose float64 `json:"kosdaq_prev_close"`
	Volatility      float64 `json:"volatility"`
}
