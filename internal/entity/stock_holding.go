package entity

import "time"

// StockHolding is an open simulated position. At most one row per ticker.
type StockHolding struct {
	Ticker           string    `gorm:"primaryKey;size:16" json:"ticker"`
	PositionID       string    `gorm:"size:36;not null;uniqueIndex" json:"position_id"`
	WatchlistID      uint      `gorm:"not null" json:"watchlist_id"`
	CompanyName      string    `gorm:"not null" json:"company_name"`
	BuyPrice         float64   `gorm:"not null" json:"buy_price"`
	BuyDate          time.Time `gorm:"not null" json:"buy_date"`
	CurrentPrice     float64   `gorm:"not null" json:"current_price"`
	LastUpdated      time.Time `gorm:"not null" json:"last_updated"`
	TargetPrice      float64   `gorm:"not null;default:0" json:"target_price"`
	StopLoss         float64   `gorm:"not null;default:0" json:"stop_loss"`
	Sector           string    `gorm:"not null;default:''" json:"sector"`
	Quantity         int64     `gorm:"not null;default:0" json:"quantity"`
	Score            int       `gorm:"not null;default:0" json:"score"`
	InvestmentPeriod string    `gorm:"not null;default:''" json:"investment_period"`
	Rationale        string    `gorm:"type:text" json:"rationale"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (StockHolding) TableName() string {
	return "stock_holdings"
}
