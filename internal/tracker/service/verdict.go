package service

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"prism-insight/internal/tracker/dto"
)

// ErrInvalidVerdict is returned for oracle answers that decode but make no sense.
var ErrInvalidVerdict = errors.New("invalid oracle verdict")

// ValidateCandidateVerdict turns the raw candidate answer into a verdict.
// Fractional scores are floored.
func ValidateCandidateVerdict(resp *dto.CandidateOracleResponse) (dto.CandidateVerdict, error) {
	if resp == nil {
		return dto.CandidateVerdict{}, fmt.Errorf("%w: empty response", ErrInvalidVerdict)
	}

	action := dto.VerdictAction(strings.ToUpper(strings.TrimSpace(resp.Decision)))
	switch action {
	case dto.ActionBuy, dto.ActionSkip, dto.ActionWatch:
	default:
		return dto.CandidateVerdict{}, fmt.Errorf("%w: unknown decision %q", ErrInvalidVerdict, resp.Decision)
	}

	score := int(math.Floor(float64(resp.BuyScore)))
	if score < 1 || score > 10 {
		return dto.CandidateVerdict{}, fmt.Errorf("%w: score %v outside 1..10", ErrInvalidVerdict, float64(resp.BuyScore))
	}

	target, stop := float64(resp.TargetPrice), float64(resp.StopLoss)
	if target < 0 || stop < 0 {
		return dto.CandidateVerdict{}, fmt.Errorf("%w: negative price level", ErrInvalidVerdict)
	}
	if target > 0 && stop > 0 && stop >= target {
		return dto.CandidateVerdict{}, fmt.Errorf("%w: stop loss %.2f not below target %.2f", ErrInvalidVerdict, stop, target)
	}

	return dto.CandidateVerdict{
		Action:           action,
		Score:            score,
		TargetPrice:      target,
		StopLoss:         stop,
		InvestmentPeriod: strings.TrimSpace(resp.InvestmentPeriod),
		Sector:           strings.TrimSpace(resp.Sector),
		Rationale:        strings.TrimSpace(resp.Rationale),
		MarketOutlook:    strings.TrimSpace(resp.MarketCondition),
		Raw:              resp.Raw,
	}, nil
}

// ValidateHoldingVerdict turns the raw holding answer into a verdict.
func ValidateHoldingVerdict(resp *dto.HoldingOracleResponse) (dto.HoldingVerdict, error) {
	if resp == nil {
		return dto.HoldingVerdict{}, fmt.Errorf("%w: empty response", ErrInvalidVerdict)
	}

	confidence := int(math.Floor(float64(resp.Confidence)))
	if confidence < 0 || confidence > 10 {
		return dto.HoldingVerdict{}, fmt.Errorf("%w: confidence %v outside 0..10", ErrInvalidVerdict, float64(resp.Confidence))
	}

	verdict := dto.HoldingVerdict{
		Action:                dto.HoldingActionHold,
		Reason:                strings.TrimSpace(resp.SellReason),
		Confidence:            confidence,
		TechnicalTrend:        resp.AnalysisSummary.TechnicalTrend,
		VolumeAnalysis:        resp.AnalysisSummary.VolumeAnalysis,
		MarketConditionImpact: resp.AnalysisSummary.MarketConditionImpact,
		TimeFactor:            resp.AnalysisSummary.TimeFactor,
		Raw:                   resp.Raw,
	}
	if resp.ShouldSell {
		verdict.Action = dto.HoldingActionSell
		if verdict.Reason == "" {
			verdict.Reason = "sell recommended by decision oracle"
		}
	}

	adj := resp.PortfolioAdjustment
	newTarget, newStop := float64(adj.NewTargetPrice), float64(adj.NewStopLoss)
	if adj.Needed && (newTarget > 0 || newStop > 0) {
		verdict.Adjustment = &dto.PriceAdjustment{
			NewTargetPrice: math.Max(newTarget, 0),
			NewStopLoss:    math.Max(newStop, 0),
			Reason:         strings.TrimSpace(adj.Reason),
			Urgency:        strings.ToLower(strings.TrimSpace(adj.Urgency)),
		}
	}
	return verdict, nil
}
