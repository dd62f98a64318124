package dto

import (
	"encoding/json"
	"time"

	"prism-insight/internal/entity"
)

// CandidateOracleRequest carries everything the oracle sees about a candidate.
type CandidateOracleRequest struct {
	Mode             RunMode
	SessionDate      time.Time
	Ticker           string
	CompanyName      string
	Sector           string
	Quote            Quote
	Rank             int
	CompositeScore   float64
	VolumeSurgeRatio float64
	GapUpPct         float64
	TurnoverRatio    float64
	CloseStrength    float64
	MarketCondition  *entity.MarketCondition
	Holdings         []entity.StockHolding
	AvailableSlots   int
	News             []NewsItem
}

// HoldingOracleRequest carries a held position for re-evaluation.
type HoldingOracleRequest struct {
	Mode            RunMode
	SessionDate     time.Time
	Holding         entity.StockHolding
	CurrentPrice    float64
	Quote           *Quote
	MarketCondition *entity.MarketCondition
	News            []NewsItem
}

// CandidateOracleResponse is the raw candidate payload as the model writes it.
type CandidateOracleResponse struct {
	Decision         string          `json:"decision"`
	BuyScore         FlexibleFloat   `json:"buy_score"`
	TargetPrice      PriceValue      `json:"target_price"`
	StopLoss         PriceValue      `json:"stop_loss"`
	InvestmentPeriod string          `json:"investment_period"`
	Sector           string          `json:"sector"`
	Rationale        string          `json:"rationale"`
	MarketCondition  string          `json:"market_condition"`
	Raw              json.RawMessage `json:"-"`
}

// HoldingOracleResponse is the raw holding payload as the model writes it.
type HoldingOracleResponse struct {
	ShouldSell          bool                `json:"should_sell"`
	SellReason          string              `json:"sell_reason"`
	Confidence          FlexibleFloat       `json:"confidence"`
	AnalysisSummary     AnalysisSummary     `json:"analysis_summary"`
	PortfolioAdjustment PortfolioAdjustment `json:"portfolio_adjustment"`
	Raw                 json.RawMessage     `json:"-"`
}

type AnalysisSummary struct {
	TechnicalTrend        string `json:"technical_trend"`
	VolumeAnalysis        string `json:"volume_analysis"`
	MarketConditionImpact string `json:"market_condition_impact"`
	TimeFactor            string `json:"time_factor"`
}

type PortfolioAdjustment struct {
	Needed         bool       `json:"needed"`
	Reason         string     `json:"reason"`
	NewTargetPrice PriceValue `json:"new_target_price"`
	NewStopLoss    PriceValue `json:"new_stop_loss"`
	Urgency        string     `json:"urgency"`
}

// VerdictAction is the tag of a validated candidate verdict.
type VerdictAction string

const (
	ActionBuy   VerdictAction = "BUY"
	ActionSkip  VerdictAction = "SKIP"
	ActionWatch VerdictAction = "WATCH"
)

// CandidateVerdict is a validated candidate recommendation.
type CandidateVerdict struct {
	Action           VerdictAction
	Score            int
	TargetPrice      float64
	StopLoss         float64
	InvestmentPeriod string
	Sector           string
	Rationale        string
	MarketOutlook    string
	Raw              json.RawMessage
}

// HoldingAction is the tag of a validated holding verdict.
type HoldingAction string

const (
	HoldingActionSell HoldingAction = "SELL"
	HoldingActionHold HoldingAction = "HOLD"
)

// PriceAdjustment is an optional revision of a holding's exit levels.
// Zero prices leave the current level unchanged.
type PriceAdjustment struct {
	NewTargetPrice float64
	NewStopLoss    float64
	Reason         string
	Urgency        string
}

// HoldingVerdict is a validated holding recommendation.
type HoldingVerdict struct {
	Action                HoldingAction
	Reason                string
	Confidence            int
	TechnicalTrend        string
	VolumeAnalysis        string
	MarketConditionImpact string
	TimeFactor            string
	Adjustment            *PriceAdjustment
	Raw                   json.RawMessage
}

func (v HoldingVerdict) ShouldSell() bool {
	return v.Action == HoldingActionSell
}
