package entity

import "time"

// MarketCondition is the macro assessment for one session date.
// Condition ranges from -2 (strong bear) to 2 (strong bull).
type MarketCondition struct {
	Date            time.Time `gorm:"type:date;primaryKey" json:"date"`
	KospiIndex      float64   `gorm:"not null" json:"kospi_index"`
	KospiChangePct  float64   `gorm:"not null" json:"kospi_change_pct"`
	KosdaqIndex     float64   `gorm:"not null" json:"kosdaq_index"`
	KosdaqChangePct float64   `gorm:"not null" json:"kosdaq_change_pct"`
	Condition       int       `gorm:"not null" json:"condition"`
	Volatility      float64   `gorm:"not null;default:0" json:"volatility"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (MarketCondition) TableName() string {
	return "market_condition"
}
