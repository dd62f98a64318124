package entity

import "time"

// TradingHistory is the immutable record of a closed position.
type TradingHistory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PositionID  string    `gorm:"size:36;not null;uniqueIndex" json:"position_id"`
	WatchlistID uint      `gorm:"not null" json:"watchlist_id"`
	Ticker      string    `gorm:"size:16;not null;index:idx_trading_history_ticker" json:"ticker"`
	CompanyName string    `gorm:"not null" json:"company_name"`
	BuyPrice    float64   `gorm:"not null" json:"buy_price"`
	BuyDate     time.Time `gorm:"not null" json:"buy_date"`
	SellPrice   float64   `gorm:"not null" json:"sell_price"`
	SellDate    time.Time `gorm:"not null;index:idx_trading_history_sell_date" json:"sell_date"`
	ProfitRate  float64   `gorm:"not null" json:"profit_rate"`
	HoldingDays int       `gorm:"not null" json:"holding_days"`
	Sector      string    `gorm:"not null;default:''" json:"sector"`
	SellReason  string    `gorm:"type:text" json:"sell_reason"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (TradingHistory) TableName() string {
	return "trading_history"
}
