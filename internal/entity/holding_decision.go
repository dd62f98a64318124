package entity

import (
	"time"

	"gorm.io/datatypes"
)

// HoldingDecision is an append-only audit row written every time a held
// position is evaluated. Ticker and PositionID point at the holding, which
// may since have been closed.
type HoldingDecision struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	Ticker                string         `gorm:"size:16;not null;index:idx_holding_decisions_ticker" json:"ticker"`
	PositionID            string         `gorm:"size:36;not null;index" json:"position_id"`
	DecisionDate          time.Time      `gorm:"type:date;not null;index:idx_holding_decisions_date" json:"decision_date"`
	DecisionTime          time.Time      `gorm:"not null" json:"decision_time"`
	CurrentPrice          float64        `gorm:"not null" json:"current_price"`
	ShouldSell            bool           `gorm:"not null" json:"should_sell"`
	Forced                bool           `gorm:"not null;default:false" json:"forced"`
	SellReason            string         `gorm:"type:text" json:"sell_reason"`
	Confidence            int            `gorm:"not null;default:0" json:"confidence"`
	TechnicalTrend        string         `gorm:"type:text" json:"technical_trend"`
	VolumeAnalysis        string         `gorm:"type:text" json:"volume_analysis"`
	MarketConditionImpact string         `gorm:"type:text" json:"market_condition_impact"`
	TimeFactor            string         `gorm:"type:text" json:"time_factor"`
	AdjustmentNeeded      bool           `gorm:"not null;default:false" json:"adjustment_needed"`
	NewTargetPrice        float64        `gorm:"not null;default:0" json:"new_target_price"`
	NewStopLoss           float64        `gorm:"not null;default:0" json:"new_stop_loss"`
	AdjustmentReason      string         `gorm:"type:text" json:"adjustment_reason"`
	AdjustmentUrgency     string         `gorm:"size:16;not null;default:''" json:"adjustment_urgency"`
	SellTriggers          StringList     `json:"sell_triggers"`
	Data                  datatypes.JSON `json:"data"`
	CreatedAt             time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (HoldingDecision) TableName() string {
	return "holding_decisions"
}
