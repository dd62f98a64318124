package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prism-insight/internal/entity"
	"prism-insight/internal/tracker/constraint"
	"prism-insight/internal/tracker/detector"
	"prism-insight/internal/tracker/dto"
	"prism-insight/internal/tracker/repository"
	"prism-insight/pkg/common"
	"prism-insight/pkg/logger"
	"prism-insight/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ErrInvalidTransition is returned for a transition the state machine forbids.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// Transition describes one applied (or skipped as duplicate) state change.
type Transition struct {
	Ticker     string
	From       entity.LifecycleState
	To         entity.LifecycleState
	Decision   entity.WatchlistDecision
	Reason     string
	Applied    bool
	Holding    *entity.StockHolding
	Trade      *entity.TradingHistory
	TradeError string
}

// AdmissionInput is everything needed to record one candidate evaluation.
type AdmissionInput struct {
	Mode        dto.RunMode
	SessionDate time.Time
	Candidate   detector.Candidate
	Verdict     dto.CandidateVerdict
	Result      constraint.AdmissionResult
}

// ExitInput is everything needed to record one holding evaluation. Verdict
// is nil when a hard exit fired before the oracle was asked.
type ExitInput struct {
	Mode         dto.RunMode
	SessionDate  time.Time
	Holding      entity.StockHolding
	CurrentPrice float64
	Verdict      *dto.HoldingVerdict
	HardExit     entity.CloseReason
}

// LifecycleService owns every mutation of the simulated portfolio.
type LifecycleService interface {
	Admit(ctx context.Context, in AdmissionInput) (*Transition, error)
	Evaluate(ctx context.Context, in ExitInput) (*Transition, error)
}

type lifecycleService struct {
	ledger    repository.LedgerRepository
	broker    repository.BrokerRepository
	publisher repository.SignalPublisher
	buyAmount float64
	log       *logger.Logger
	now       func() time.Time
}

// NewLifecycleService wires the state machine. buyAmount sizes the share
// quantity sent to the broker; zero leaves sizing to the broker.
func NewLifecycleService(ledger repository.LedgerRepository, broker repository.BrokerRepository, publisher repository.SignalPublisher, buyAmount float64, log *logger.Logger, now func() time.Time) LifecycleService {
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = repository.NewNoopSignalPublisher()
	}
	return &lifecycleService{ledger: ledger, broker: broker, publisher: publisher, buyAmount: buyAmount, log: log, now: now}
}

// HardExit reports whether price crossed the holding's stop loss or target.
// Unset levels never fire.
func HardExit(h entity.StockHolding, price float64) (entity.CloseReason, bool) {
	if price <= 0 {
		return "", false
	}
	if h.StopLoss > 0 && price <= h.StopLoss {
		return entity.CloseReasonStopLoss, true
	}
	if h.TargetPrice > 0 && price >= h.TargetPrice {
		return entity.CloseReasonTarget, true
	}
	return "", false
}

// ProfitRate is (sell - buy) / buy, rounded to six decimals.
func ProfitRate(buyPrice, sellPrice float64) float64 {
	if buyPrice <= 0 {
		return 0
	}
	buy := decimal.NewFromFloat(buyPrice)
	rate := decimal.NewFromFloat(sellPrice).Sub(buy).Div(buy).Round(6)
	return rate.InexactFloat64()
}

func (s *lifecycleService) Admit(ctx context.Context, in AdmissionInput) (*Transition, error) {
	c, v := in.Candidate, in.Verdict
	entry := &entity.WatchlistHistory{
		Ticker:           c.Ticker,
		EvaluatedDate:    utils.DateOf(in.SessionDate),
		CompanyName:      c.Name,
		Mode:             in.Mode.String(),
		Rank:             c.Rank,
		CompositeScore:   c.Score,
		VolumeSurgeRatio: c.Metrics.VolumeSurgeRatio,
		GapUpPct:         c.Metrics.GapUpPct,
		TurnoverRatio:    c.Metrics.TurnoverRatio,
		CloseStrength:    c.Metrics.CloseStrength,
		CurrentPrice:     c.Quote.Close,
		Score:            v.Score,
		Decision:         in.Result.Decision,
		TargetPrice:      v.TargetPrice,
		StopLoss:         v.StopLoss,
		Sector:           constraint.ResolveSector(c, v),
		InvestmentPeriod: v.InvestmentPeriod,
		Rationale:        v.Rationale,
		Signals:          entity.StringList(c.Signals),
		Data:             rawJSON(v.Raw),
	}

	t := &Transition{
		Ticker:   c.Ticker,
		From:     entity.StateWatchlisted,
		To:       entity.StateWatchlisted,
		Decision: in.Result.Decision,
		Reason:   in.Result.Reason,
	}

	if !in.Result.Admitted() {
		entry.SkipReason = in.Result.Reason
		applied, err := s.ledger.RecordWatchlist(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("failed to record watchlist entry: %w", err)
		}
		t.Applied = applied
		return t, nil
	}

	if c.Quote.Close <= 0 {
		return nil, fmt.Errorf("%w: %s has no entry price", ErrInvalidTransition, c.Ticker)
	}

	now := s.now()
	holding := &entity.StockHolding{
		Ticker:           c.Ticker,
		PositionID:       uuid.NewString(),
		CompanyName:      c.Name,
		BuyPrice:         c.Quote.Close,
		BuyDate:          now,
		CurrentPrice:     c.Quote.Close,
		LastUpdated:      now,
		TargetPrice:      v.TargetPrice,
		StopLoss:         v.StopLoss,
		Sector:           entry.Sector,
		Score:            v.Score,
		InvestmentPeriod: v.InvestmentPeriod,
		Rationale:        v.Rationale,
	}
	if s.buyAmount > 0 {
		holding.Quantity = max(int64(s.buyAmount/holding.BuyPrice), 1)
	}

	applied, err := s.ledger.OpenHolding(ctx, entry, holding)
	if err != nil {
		return nil, fmt.Errorf("failed to open holding: %w", err)
	}
	t.Applied = applied
	if !applied {
		return t, nil
	}
	t.To = entity.StateHeld
	t.Holding = holding

	s.log.InfoContext(ctx, "Position opened",
		logger.StringField("ticker", holding.Ticker),
		logger.StringField("position_id", holding.PositionID),
		logger.FloatField("buy_price", holding.BuyPrice),
		logger.IntField("score", holding.Score),
		logger.StringField("sector", holding.Sector))

	// the ledger is authoritative; the broker and subscribers are told afterwards
	result, tradeErr := s.broker.Execute(ctx, dto.TradeOrder{
		Ticker:   holding.Ticker,
		Side:     dto.TradeSideBuy,
		Quantity: holding.Quantity,
		Price:    holding.BuyPrice,
	})
	t.TradeError = tradeFailure(result, tradeErr)
	if t.TradeError != "" {
		s.log.WarnContext(ctx, "Buy order failed", logger.StringField("ticker", holding.Ticker), logger.StringField("error", t.TradeError))
	}

	s.publish(ctx, dto.TradingSignal{
		Type:             dto.TradeSideBuy,
		Ticker:           holding.Ticker,
		CompanyName:      holding.CompanyName,
		Price:            holding.BuyPrice,
		Source:           common.SignalSource,
		Timestamp:        now,
		TargetPrice:      holding.TargetPrice,
		StopLoss:         holding.StopLoss,
		InvestmentPeriod: holding.InvestmentPeriod,
		Sector:           holding.Sector,
		Rationale:        holding.Rationale,
		BuyScore:         holding.Score,
		TradeSuccess:     utils.ToPointer(t.TradeError == ""),
		TradeMessage:     t.TradeError,
	})
	return t, nil
}

func (s *lifecycleService) Evaluate(ctx context.Context, in ExitInput) (*Transition, error) {
	h := in.Holding
	now := s.now()

	decision := &entity.HoldingDecision{
		Ticker:       h.Ticker,
		PositionID:   h.PositionID,
		DecisionDate: utils.DateOf(in.SessionDate),
		DecisionTime: now,
		CurrentPrice: in.CurrentPrice,
	}

	var triggers []string
	if in.HardExit != "" {
		triggers = append(triggers, string(in.HardExit))
		decision.Forced = true
	}
	if v := in.Verdict; v != nil {
		decision.Confidence = v.Confidence
		decision.TechnicalTrend = v.TechnicalTrend
		decision.VolumeAnalysis = v.VolumeAnalysis
		decision.MarketConditionImpact = v.MarketConditionImpact
		decision.TimeFactor = v.TimeFactor
		decision.Data = rawJSON(v.Raw)
		if v.ShouldSell() {
			triggers = append(triggers, string(entity.CloseReasonOracle))
		}
		if adj := v.Adjustment; adj != nil {
			decision.AdjustmentNeeded = true
			decision.NewTargetPrice = adj.NewTargetPrice
			decision.NewStopLoss = adj.NewStopLoss
			decision.AdjustmentReason = adj.Reason
			decision.AdjustmentUrgency = adj.Urgency
		}
	}
	if len(triggers) == 0 && decision.AdjustmentNeeded {
		if decision.NewTargetPrice > 0 {
			h.TargetPrice = decision.NewTargetPrice
		}
		if decision.NewStopLoss > 0 {
			h.StopLoss = decision.NewStopLoss
		}
		// adjusted levels already crossed by the price close the position now
		if reason, hit := HardExit(h, in.CurrentPrice); hit {
			in.HardExit = reason
			in.Holding = h
			triggers = append(triggers, string(reason))
			decision.Forced = true
		}
	}
	decision.SellTriggers = entity.StringList(triggers)

	t := &Transition{Ticker: h.Ticker, From: entity.StateHeld, To: entity.StateHeld}

	if len(triggers) == 0 {
		h.CurrentPrice = in.CurrentPrice
		h.LastUpdated = now
		if err := s.ledger.RefreshHolding(ctx, &h, decision); err != nil {
			return nil, fmt.Errorf("failed to refresh holding: %w", err)
		}
		t.Applied = true
		t.Holding = &h
		return t, nil
	}

	reason := sellReason(in)
	decision.ShouldSell = true
	decision.SellReason = reason

	if !now.After(h.BuyDate) {
		return nil, fmt.Errorf("%w: %s sell time %s not after buy time %s",
			ErrInvalidTransition, h.Ticker, now.Format(time.RFC3339), h.BuyDate.Format(time.RFC3339))
	}

	trade := &entity.TradingHistory{
		PositionID:  h.PositionID,
		WatchlistID: h.WatchlistID,
		Ticker:      h.Ticker,
		CompanyName: h.CompanyName,
		BuyPrice:    h.BuyPrice,
		BuyDate:     h.BuyDate,
		SellPrice:   in.CurrentPrice,
		SellDate:    now,
		ProfitRate:  ProfitRate(h.BuyPrice, in.CurrentPrice),
		HoldingDays: max(utils.DaysBetween(h.BuyDate, now), 0),
		Sector:      h.Sector,
		SellReason:  reason,
	}

	applied, err := s.ledger.CloseHolding(ctx, trade, decision)
	if err != nil {
		return nil, fmt.Errorf("failed to close holding: %w", err)
	}
	t.Applied = applied
	t.Reason = reason
	if !applied {
		return t, nil
	}
	t.To = entity.StateClosed
	t.Trade = trade

	s.log.InfoContext(ctx, "Position closed",
		logger.StringField("ticker", h.Ticker),
		logger.StringField("position_id", h.PositionID),
		logger.FloatField("sell_price", trade.SellPrice),
		logger.FloatField("profit_rate", trade.ProfitRate),
		logger.IntField("holding_days", trade.HoldingDays),
		logger.StringField("reason", reason))

	result, tradeErr := s.broker.Execute(ctx, dto.TradeOrder{
		Ticker:   h.Ticker,
		Side:     dto.TradeSideSell,
		Quantity: h.Quantity,
		Price:    in.CurrentPrice,
	})
	t.TradeError = tradeFailure(result, tradeErr)
	if t.TradeError != "" {
		s.log.WarnContext(ctx, "Sell order failed", logger.StringField("ticker", h.Ticker), logger.StringField("error", t.TradeError))
	}

	s.publish(ctx, dto.TradingSignal{
		Type:         dto.TradeSideSell,
		Ticker:       h.Ticker,
		CompanyName:  h.CompanyName,
		Price:        in.CurrentPrice,
		Source:       common.SignalSource,
		Timestamp:    now,
		Sector:       h.Sector,
		BuyPrice:     h.BuyPrice,
		ProfitRate:   trade.ProfitRate,
		SellReason:   reason,
		TradeSuccess: utils.ToPointer(t.TradeError == ""),
		TradeMessage: t.TradeError,
	})
	return t, nil
}

func (s *lifecycleService) publish(ctx context.Context, signal dto.TradingSignal) {
	if err := s.publisher.Publish(ctx, signal); err != nil {
		s.log.WarnContext(ctx, "Failed to publish trading signal",
			logger.ErrorField(err), logger.StringField("ticker", signal.Ticker), logger.StringField("type", string(signal.Type)))
	}
}

func sellReason(in ExitInput) string {
	switch in.HardExit {
	case entity.CloseReasonStopLoss:
		return fmt.Sprintf("stop loss hit: %.2f <= %.2f", in.CurrentPrice, in.Holding.StopLoss)
	case entity.CloseReasonTarget:
		return fmt.Sprintf("target reached: %.2f >= %.2f", in.CurrentPrice, in.Holding.TargetPrice)
	}
	if in.Verdict != nil && in.Verdict.Reason != "" {
		return in.Verdict.Reason
	}
	return string(entity.CloseReasonOracle)
}

func tradeFailure(result *dto.TradeResult, err error) string {
	if err != nil {
		return err.Error()
	}
	if result == nil {
		return "empty trade result"
	}
	if !result.Success {
		if result.Message != "" {
			return result.Message
		}
		return "order rejected"
	}
	return ""
}

func rawJSON(raw []byte) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}
