package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"prism-insight/internal/entity"
	"prism-insight/internal/tracker/constraint"
	"prism-insight/internal/tracker/detector"
	"prism-insight/internal/tracker/dto"
	"prism-insight/internal/tracker/repository"
	"prism-insight/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testSession = time.Date(2025, 10, 14, 0, 0, 0, 0, time.UTC)

type lifecycleFixture struct {
	db        *gorm.DB
	svc       LifecycleService
	broker    *fakeBroker
	publisher *fakePublisher
	clock     *fakeClock
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	db := setupSQLiteDB(t)
	f := &lifecycleFixture{
		db:        db,
		broker:    &fakeBroker{},
		publisher: &fakePublisher{},
		clock:     newFakeClock(testSession.Add(9 * time.Hour)),
	}
	f.svc = NewLifecycleService(repository.NewLedgerRepository(db), f.broker, f.publisher, 10_000, logger.NewNop(), f.clock.Now)
	return f
}

func testCandidate(ticker, sector string, price float64) detector.Candidate {
	return detector.Candidate{
		Ticker:  ticker,
		Name:    ticker + " Corp",
		Sector:  sector,
		Quote:   dto.Quote{Ticker: ticker, Close: price},
		Metrics: detector.Metrics{VolumeSurgeRatio: 5, GapUpPct: 3, TurnoverRatio: 0.02, CloseStrength: 0.9},
		Signals: []string{"volume_surge", "gap_up"},
		Score:   0.8,
		Rank:    1,
	}
}

func buyVerdict(score int) dto.CandidateVerdict {
	return dto.CandidateVerdict{Action: dto.ActionBuy, Score: score, TargetPrice: 1200, StopLoss: 900, Rationale: "breakout"}
}

func (f *lifecycleFixture) open(t *testing.T, ticker string) *entity.StockHolding {
	t.Helper()
	tr, err := f.svc.Admit(context.Background(), AdmissionInput{
		Mode:        dto.RunModeMorning,
		SessionDate: testSession,
		Candidate:   testCandidate(ticker, "Tech", 1000),
		Verdict:     buyVerdict(8),
		Result:      constraint.AdmissionResult{Decision: entity.DecisionBuy},
	})
	require.NoError(t, err)
	require.True(t, tr.Applied)
	return tr.Holding
}

func TestLifecycle_AdmitBuy(t *testing.T) {
	f := newLifecycleFixture(t)

	holding := f.open(t, "AAA")

	var stored entity.StockHolding
	require.NoError(t, f.db.First(&stored, "ticker = ?", "AAA").Error)
	assert.Equal(t, holding.PositionID, stored.PositionID)
	assert.Equal(t, 1000.0, stored.BuyPrice)
	assert.Equal(t, int64(10), stored.Quantity)
	assert.NotZero(t, stored.WatchlistID)

	var entry entity.WatchlistHistory
	require.NoError(t, f.db.First(&entry, "ticker = ?", "AAA").Error)
	assert.Equal(t, entity.DecisionBuy, entry.Decision)
	assert.Equal(t, entity.StringList{"volume_surge", "gap_up"}, entry.Signals)

	require.Len(t, f.broker.orders, 1)
	assert.Equal(t, dto.TradeSideBuy, f.broker.orders[0].Side)
	assert.Equal(t, int64(10), f.broker.orders[0].Quantity)

	require.Len(t, f.publisher.signals, 1)
	assert.Equal(t, dto.TradeSideBuy, f.publisher.signals[0].Type)
	assert.Equal(t, 8, f.publisher.signals[0].BuyScore)
}

func TestLifecycle_AdmitSkipWritesWatchlistOnly(t *testing.T) {
	f := newLifecycleFixture(t)

	tr, err := f.svc.Admit(context.Background(), AdmissionInput{
		Mode:        dto.RunModeAfternoon,
		SessionDate: testSession,
		Candidate:   testCandidate("BBB", "Tech", 1000),
		Verdict:     buyVerdict(9),
		Result:      constraint.AdmissionResult{Decision: entity.DecisionSkip, Reason: constraint.ReasonNoSlots},
	})
	require.NoError(t, err)
	assert.True(t, tr.Applied)
	assert.Equal(t, entity.StateWatchlisted, tr.To)

	var count int64
	require.NoError(t, f.db.Model(&entity.StockHolding{}).Count(&count).Error)
	assert.Zero(t, count)

	var entry entity.WatchlistHistory
	require.NoError(t, f.db.First(&entry, "ticker = ?", "BBB").Error)
	assert.Equal(t, entity.DecisionSkip, entry.Decision)
	assert.Equal(t, constraint.ReasonNoSlots, entry.SkipReason)
	assert.Empty(t, f.broker.orders)
	assert.Empty(t, f.publisher.signals)
}

func TestLifecycle_BrokerFailureKeepsLedger(t *testing.T) {
	f := newLifecycleFixture(t)
	f.broker.err = errors.New("broker down")

	tr, err := f.svc.Admit(context.Background(), AdmissionInput{
		Mode:        dto.RunModeMorning,
		SessionDate: testSession,
		Candidate:   testCandidate("AAA", "Tech", 1000),
		Verdict:     buyVerdict(8),
		Result:      constraint.AdmissionResult{Decision: entity.DecisionBuy},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StateHeld, tr.To)
	assert.Equal(t, "broker down", tr.TradeError)

	var count int64
	require.NoError(t, f.db.Model(&entity.StockHolding{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.Len(t, f.publisher.signals, 1)
	assert.False(t, *f.publisher.signals[0].TradeSuccess)
}

func TestLifecycle_HoldWithAdjustment(t *testing.T) {
	f := newLifecycleFixture(t)
	holding := f.open(t, "AAA")

	tr, err := f.svc.Evaluate(context.Background(), ExitInput{
		Mode:         dto.RunModeAfternoon,
		SessionDate:  testSession,
		Holding:      *holding,
		CurrentPrice: 1100,
		Verdict: &dto.HoldingVerdict{
			Action:     dto.HoldingActionHold,
			Confidence: 7,
			Adjustment: &dto.PriceAdjustment{NewTargetPrice: 1300, NewStopLoss: 1000, Urgency: "low"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StateHeld, tr.To)

	var stored entity.StockHolding
	require.NoError(t, f.db.First(&stored, "ticker = ?", "AAA").Error)
	assert.Equal(t, 1100.0, stored.CurrentPrice)
	assert.Equal(t, 1300.0, stored.TargetPrice)
	assert.Equal(t, 1000.0, stored.StopLoss)

	var decision entity.HoldingDecision
	require.NoError(t, f.db.First(&decision, "ticker = ?", "AAA").Error)
	assert.False(t, decision.ShouldSell)
	assert.True(t, decision.AdjustmentNeeded)
	assert.Equal(t, 7, decision.Confidence)
}

func TestLifecycle_AdjustedStopAbovePriceCloses(t *testing.T) {
	f := newLifecycleFixture(t)
	holding := f.open(t, "AAA")

	tr, err := f.svc.Evaluate(context.Background(), ExitInput{
		Mode:         dto.RunModeAfternoon,
		SessionDate:  testSession,
		Holding:      *holding,
		CurrentPrice: 1100,
		Verdict: &dto.HoldingVerdict{
			Action:     dto.HoldingActionHold,
			Confidence: 6,
			Adjustment: &dto.PriceAdjustment{NewStopLoss: 1150},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StateClosed, tr.To)

	var count int64
	require.NoError(t, f.db.Model(&entity.StockHolding{}).Count(&count).Error)
	assert.Zero(t, count)

	var trade entity.TradingHistory
	require.NoError(t, f.db.First(&trade, "ticker = ?", "AAA").Error)
	assert.Contains(t, trade.SellReason, "1100.00 <= 1150.00")

	var decision entity.HoldingDecision
	require.NoError(t, f.db.First(&decision, "ticker = ?", "AAA").Error)
	assert.True(t, decision.Forced)
	assert.Equal(t, 1150.0, decision.NewStopLoss)
	assert.Equal(t, entity.StringList{"stop_loss"}, decision.SellTriggers)
}

func TestLifecycle_HardStopOverridesOracle(t *testing.T) {
	f := newLifecycleFixture(t)
	holding := f.open(t, "AAA")

	reason, hit := HardExit(*holding, 850)
	require.True(t, hit)

	tr, err := f.svc.Evaluate(context.Background(), ExitInput{
		Mode:         dto.RunModeAfternoon,
		SessionDate:  testSession,
		Holding:      *holding,
		CurrentPrice: 850,
		Verdict:      &dto.HoldingVerdict{Action: dto.HoldingActionHold, Confidence: 9},
		HardExit:     reason,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StateClosed, tr.To)

	var count int64
	require.NoError(t, f.db.Model(&entity.StockHolding{}).Count(&count).Error)
	assert.Zero(t, count)

	var trade entity.TradingHistory
	require.NoError(t, f.db.First(&trade, "ticker = ?", "AAA").Error)
	assert.Equal(t, holding.PositionID, trade.PositionID)
	assert.InDelta(t, -0.15, trade.ProfitRate, 1e-9)
	assert.GreaterOrEqual(t, trade.HoldingDays, 0)
	assert.True(t, trade.BuyDate.Before(trade.SellDate))
	assert.Contains(t, trade.SellReason, "stop loss")

	var decision entity.HoldingDecision
	require.NoError(t, f.db.First(&decision, "ticker = ?", "AAA").Error)
	assert.True(t, decision.ShouldSell)
	assert.True(t, decision.Forced)
	assert.Equal(t, entity.StringList{"stop_loss"}, decision.SellTriggers)

	require.Len(t, f.broker.orders, 2)
	assert.Equal(t, dto.TradeSideSell, f.broker.orders[1].Side)
	assert.Equal(t, int64(10), f.broker.orders[1].Quantity)
}

func TestLifecycle_CloseTwiceIsNotApplied(t *testing.T) {
	f := newLifecycleFixture(t)
	holding := f.open(t, "AAA")
	sell := ExitInput{
		Mode:         dto.RunModeAfternoon,
		SessionDate:  testSession,
		Holding:      *holding,
		CurrentPrice: 1050,
		Verdict:      &dto.HoldingVerdict{Action: dto.HoldingActionSell, Reason: "momentum faded"},
	}

	first, err := f.svc.Evaluate(context.Background(), sell)
	require.NoError(t, err)
	assert.Equal(t, entity.StateClosed, first.To)
	assert.Equal(t, "momentum faded", first.Reason)

	second, err := f.svc.Evaluate(context.Background(), sell)
	require.NoError(t, err)
	assert.False(t, second.Applied)

	var count int64
	require.NoError(t, f.db.Model(&entity.TradingHistory{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLifecycle_SellBeforeBuyRejected(t *testing.T) {
	f := newLifecycleFixture(t)
	holding := f.open(t, "AAA")
	holding.BuyDate = f.clock.Now().Add(time.Hour)

	_, err := f.svc.Evaluate(context.Background(), ExitInput{
		SessionDate:  testSession,
		Holding:      *holding,
		CurrentPrice: 1250,
		HardExit:     entity.CloseReasonTarget,
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestHardExit(t *testing.T) {
	h := entity.StockHolding{TargetPrice: 1200, StopLoss: 900}

	tests := []struct {
		name   string
		h      entity.StockHolding
		price  float64
		reason entity.CloseReason
		hit    bool
	}{
		{name: "inside band", h: h, price: 1000},
		{name: "at stop", h: h, price: 900, reason: entity.CloseReasonStopLoss, hit: true},
		{name: "below stop", h: h, price: 850, reason: entity.CloseReasonStopLoss, hit: true},
		{name: "at target", h: h, price: 1200, reason: entity.CloseReasonTarget, hit: true},
		{name: "no levels", h: entity.StockHolding{}, price: 1},
		{name: "no price", h: h, price: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, hit := HardExit(tt.h, tt.price)
			assert.Equal(t, tt.hit, hit)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestProfitRate(t *testing.T) {
	assert.InDelta(t, 0.1, ProfitRate(1000, 1100), 1e-9)
	assert.InDelta(t, -0.333333, ProfitRate(3000, 2000), 1e-9)
	assert.Zero(t, ProfitRate(0, 100))
}
