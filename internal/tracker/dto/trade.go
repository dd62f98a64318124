package dto

import "time"

type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// TradeOrder is sent to the trade execution API.
type TradeOrder struct {
	Ticker   string    `json:"ticker"`
	Side     TradeSide `json:"side"`
	Quantity int64     `json:"quantity"`
	Price    float64   `json:"price"`
	Mode     string    `json:"mode"`
}

// TradeResult is the execution API's answer.
type TradeResult struct {
	Success  bool    `json:"success"`
	OrderID  string  `json:"order_id"`
	Message  string  `json:"message"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
}

// TradingSignal is published to subscribers after a ledger transition.
type TradingSignal struct {
	Type             TradeSide `json:"type"`
	Ticker           string    `json:"ticker"`
	CompanyName      string    `json:"company_name"`
	Price            float64   `json:"price"`
	Source           string    `json:"source"`
	Timestamp        time.Time `json:"timestamp"`
	TargetPrice      float64   `json:"target_price,omitempty"`
	StopLoss         float64   `json:"stop_loss,omitempty"`
	InvestmentPeriod string    `json:"investment_period,omitempty"`
	Sector           string    `json:"sector,omitempty"`
	Rationale        string    `json:"rationale,omitempty"`
	BuyScore         int       `json:"buy_score,omitempty"`
	BuyPrice         float64   `json:"buy_price,omitempty"`
	ProfitRate       float64   `json:"profit_rate,omitempty"`
	SellReason       string    `json:"sell_reason,omitempty"`
	TradeSuccess     *bool     `json:"trade_success,omitempty"`
	TradeMessage     string    `json:"trade_message,omitempty"`
}
