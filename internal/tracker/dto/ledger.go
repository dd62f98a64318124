package dto

import "time"

// ErrorResponse represents a generic error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

type TradingHistoryParam struct {
	Ticker string
	Limit  int
}

type WatchlistParam struct {
	Date     *time.Time
	Ticker   string
	Decision string
	Limit    int
}

// PerformanceStats summarises closed trades.
type PerformanceStats struct {
	TotalTrades       int     `json:"total_trades"`
	WinningTrades     int     `json:"winning_trades"`
	LosingTrades      int     `json:"losing_trades"`
	WinRate           float64 `json:"win_rate"`
	AverageProfitRate float64 `json:"average_profit_rate"`
	TotalProfitRate   float64 `json:"total_profit_rate"`
	AverageHolding    float64 `json:"average_holding_days"`
	BestProfitRate    float64 `json:"best_profit_rate"`
	WorstProfitRate   float64 `json:"worst_profit_rate"`
}

// HoldingResponse is a held position with its unrealised return.
type HoldingResponse struct {
	Ticker           string    `json:"ticker"`
	CompanyName      string    `json:"company_name"`
	Sector           string    `json:"sector"`
	BuyPrice         float64   `json:"buy_price"`
	BuyDate          time.Time `json:"buy_date"`
	CurrentPrice     float64   `json:"current_price"`
	TargetPrice      float64   `json:"target_price"`
	StopLoss         float64   `json:"stop_loss"`
	Score            int       `json:"score"`
	UnrealisedReturn float64   `json:"unrealised_return"`
	HoldingDays      int       `json:"holding_days"`
	LastUpdated      time.Time `json:"last_updated"`
}

// RunAcceptedResponse is returned when a run is triggered over HTTP.
type RunAcceptedResponse struct {
	Mode    RunMode `json:"mode"`
	Message string  `json:"message"`
}
