package entity

import (
	"time"

	"gorm.io/datatypes"
)

type WatchlistDecision string

const (
	DecisionBuy   WatchlistDecision = "BUY"
	DecisionSkip  WatchlistDecision = "SKIP"
	DecisionWatch WatchlistDecision = "WATCH"
)

// WatchlistHistory records one admission evaluation per ticker and session date.
type WatchlistHistory struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	Ticker           string            `gorm:"size:16;not null;uniqueIndex:idx_watchlist_ticker_date;index:idx_watchlist_ticker" json:"ticker"`
	EvaluatedDate    time.Time         `gorm:"type:date;not null;uniqueIndex:idx_watchlist_ticker_date;index:idx_watchlist_date" json:"evaluated_date"`
	CompanyName      string            `gorm:"not null" json:"company_name"`
	Mode             string            `gorm:"size:16;not null" json:"mode"`
	Rank             int               `gorm:"not null" json:"rank"`
	CompositeScore   float64           `gorm:"not null" json:"composite_score"`
	VolumeSurgeRatio float64           `gorm:"not null;default:0" json:"volume_surge_ratio"`
	GapUpPct         float64           `gorm:"not null;default:0" json:"gap_up_pct"`
	TurnoverRatio    float64           `gorm:"not null;default:0" json:"turnover_ratio"`
	CloseStrength    float64           `gorm:"not null;default:0" json:"close_strength"`
	CurrentPrice     float64           `gorm:"not null" json:"current_price"`
	Score            int               `gorm:"not null;default:0" json:"score"`
	Decision         WatchlistDecision `gorm:"size:8;not null" json:"decision"`
	SkipReason       string            `gorm:"not null;default:''" json:"skip_reason"`
	TargetPrice      float64           `gorm:"not null;default:0" json:"target_price"`
	StopLoss         float64           `gorm:"not null;default:0" json:"stop_loss"`
	Sector           string            `gorm:"not null;default:''" json:"sector"`
	InvestmentPeriod string            `gorm:"not null;default:''" json:"investment_period"`
	Rationale        string            `gorm:"type:text" json:"rationale"`
	Signals          StringList        `json:"signals"`
	Data             datatypes.JSON    `json:"data"`
	CreatedAt        time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

func (WatchlistHistory) TableName() string {
	return "watchlist_history"
}
