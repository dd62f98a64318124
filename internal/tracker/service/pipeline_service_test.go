package service

import (
	"context"
	"testing"
	"time"

	"prism-insight/internal/entity"
	"prism-insight/internal/tracker/constraint"
	"prism-insight/internal/tracker/detector"
	"prism-insight/internal/tracker/dto"
	"prism-insight/internal/tracker/repository"
	"prism-insight/pkg/logger"
	"prism-insight/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type pipelineFixture struct {
	db         *gorm.DB
	ai         *fakeAI
	broker     *fakeBroker
	marketData *fakeMarketData
	pipeline   PipelineService
}

func newPipelineFixture(t *testing.T, limits constraint.Constraints) *pipelineFixture {
	db := setupSQLiteDB(t)
	f := &pipelineFixture{
		db:         db,
		ai:         newFakeAI(),
		broker:     &fakeBroker{},
		marketData: &fakeMarketData{levels: &dto.IndexLevels{KospiClose: 2550, KospiPrevClose: 2500, KosdaqClose: 820, KosdaqPrevClose: 800}},
	}
	clock := newFakeClock(testSession.Add(9 * time.Hour))
	lifecycle := NewLifecycleService(repository.NewLedgerRepository(db), f.broker, &fakePublisher{}, 10_000, logger.NewNop(), clock.Now)
	f.pipeline = NewPipelineService(f.ai, fakeNews{}, repository.NewWatchlistHistoryRepository(db), lifecycle, instantPolicy(3, nil), limits, logger.NewNop())
	return f
}

func defaultLimits() constraint.Constraints {
	return constraint.Constraints{MaxSlots: 3, MaxSameSector: 2, MinScore: 7, SlotCapital: 10_000}
}

func (f *pipelineFixture) seedHolding(t *testing.T, ticker, sector string) entity.StockHolding {
	t.Helper()
	h := entity.StockHolding{
		Ticker:       ticker,
		PositionID:   "pos-" + ticker,
		WatchlistID:  1,
		CompanyName:  ticker + " Corp",
		BuyPrice:     1000,
		BuyDate:      testSession.Add(-48 * time.Hour),
		CurrentPrice: 1000,
		LastUpdated:  testSession.Add(-48 * time.Hour),
		TargetPrice:  1200,
		StopLoss:     900,
		Sector:       sector,
		Quantity:     10,
		Score:        8,
	}
	require.NoError(t, f.db.Create(&h).Error)
	return h
}

func (f *pipelineFixture) run(ctx context.Context, holdings []entity.StockHolding, snapshot *dto.MarketSnapshot, cands ...detector.Candidate) *dto.CycleResult {
	return f.pipeline.RunCycle(ctx, CycleInput{
		Mode:        dto.RunModeMorning,
		SessionDate: testSession,
		Snapshot:    snapshot,
		Holdings:    holdings,
		Candidates:  detector.FromSlice(cands),
		Conditions:  NewMarketConditionCache(repository.NewMarketConditionRepository(f.db), f.marketData, instantPolicy(3, nil), logger.NewNop()),
	})
}

func ranked(cands ...detector.Candidate) []detector.Candidate {
	for i := range cands {
		cands[i].Rank = i + 1
	}
	return cands
}

func quotes(prices map[string]float64) *dto.MarketSnapshot {
	qs := make([]dto.Quote, 0, len(prices))
	for ticker, price := range prices {
		qs = append(qs, dto.Quote{Ticker: ticker, Close: price})
	}
	return dto.NewMarketSnapshot(testSession, qs)
}

func TestPipeline_HoldingsBeforeCandidatesInRankOrder(t *testing.T) {
	f := newPipelineFixture(t, defaultLimits())
	held := f.seedHolding(t, "HHH", "Energy")
	f.ai.candidates["BBB"] = buyAnswer(8, "Tech")
	f.ai.candidates["AAA"] = buyAnswer(9, "Bio")

	cands := ranked(testCandidate("BBB", "Tech", 1000), testCandidate("AAA", "Bio", 1000))
	result := f.run(context.Background(), []entity.StockHolding{held}, quotes(map[string]float64{"HHH": 1050}), cands...)

	assert.Equal(t, []string{"HHH", "BBB", "AAA"}, f.ai.order)
	assert.Equal(t, 1, result.Held)
	assert.Equal(t, 2, result.Admitted)
	assert.Zero(t, result.EvaluationFailed)
	require.Len(t, result.Items, 3)
	assert.Equal(t, dto.ItemKindHolding, result.Items[0].Kind)

	var stored entity.StockHolding
	require.NoError(t, f.db.First(&stored, "ticker = ?", "HHH").Error)
	assert.Equal(t, 1050.0, stored.CurrentPrice)
}

func TestPipeline_RetriesTransientOracleFailure(t *testing.T) {
	f := newPipelineFixture(t, defaultLimits())
	busy := &repository.StatusError{Service: "oracle", StatusCode: 503}
	f.ai.failures["AAA"] = []error{busy, busy}
	f.ai.candidates["AAA"] = buyAnswer(8, "Tech")

	result := f.run(context.Background(), nil, quotes(nil), ranked(testCandidate("AAA", "Tech", 1000))...)

	require.Len(t, result.Items, 1)
	assert.Equal(t, dto.OutcomeAdmitted, result.Items[0].Outcome)
	assert.Equal(t, 3, result.Items[0].Attempts)
	assert.Equal(t, 3, f.ai.callsFor("AAA"))
}

func TestPipeline_ExhaustedItemFailsAndCycleContinues(t *testing.T) {
	f := newPipelineFixture(t, defaultLimits())
	limited := &repository.StatusError{Service: "oracle", StatusCode: 429}
	f.ai.failures["AAA"] = []error{limited, limited, limited}
	f.ai.candidates["AAA"] = buyAnswer(8, "Tech")
	f.ai.candidates["BBB"] = buyAnswer(8, "Bio")

	cands := ranked(testCandidate("AAA", "Tech", 1000), testCandidate("BBB", "Bio", 1000))
	result := f.run(context.Background(), nil, quotes(nil), cands...)

	assert.Equal(t, 1, result.EvaluationFailed)
	assert.Equal(t, 1, result.Admitted)
	assert.Equal(t, 3, f.ai.callsFor("AAA"))

	require.Len(t, result.Items, 2)
	assert.Equal(t, dto.OutcomeFailed, result.Items[0].Outcome)
	assert.Equal(t, 3, result.Items[0].Attempts)
	assert.Contains(t, result.Items[0].Error, "429")

	var count int64
	require.NoError(t, f.db.Model(&entity.WatchlistHistory{}).Where("ticker = ?", "AAA").Count(&count).Error)
	assert.Zero(t, count)
}

func TestPipeline_InvalidVerdictNotRetried(t *testing.T) {
	f := newPipelineFixture(t, defaultLimits())
	f.ai.candidates["AAA"] = &dto.CandidateOracleResponse{Decision: "MAYBE", BuyScore: 8}

	result := f.run(context.Background(), nil, quotes(nil), ranked(testCandidate("AAA", "Tech", 1000))...)

	require.Len(t, result.Items, 1)
	assert.Equal(t, dto.OutcomeFailed, result.Items[0].Outcome)
	assert.Equal(t, 1, result.Items[0].Attempts)
	assert.Equal(t, 1, f.ai.callsFor("AAA"))
}

func TestPipeline_NoSlotsSkipsLowerRanked(t *testing.T) {
	limits := defaultLimits()
	limits.MaxSlots = 1
	f := newPipelineFixture(t, limits)
	f.ai.candidates["AAA"] = buyAnswer(9, "Tech")
	f.ai.candidates["BBB"] = buyAnswer(9, "Bio")

	cands := ranked(testCandidate("AAA", "Tech", 1000), testCandidate("BBB", "Bio", 1000))
	result := f.run(context.Background(), nil, quotes(nil), cands...)

	assert.Equal(t, 1, result.Admitted)
	assert.Equal(t, map[string]int{constraint.ReasonNoSlots: 1}, result.SkippedByReason)

	var entry entity.WatchlistHistory
	require.NoError(t, f.db.First(&entry, "ticker = ?", "BBB").Error)
	assert.Equal(t, entity.DecisionSkip, entry.Decision)
	assert.Equal(t, constraint.ReasonNoSlots, entry.SkipReason)
}

func TestPipeline_SectorLimit(t *testing.T) {
	limits := defaultLimits()
	limits.MaxSameSector = 1
	f := newPipelineFixture(t, limits)
	f.ai.candidates["AAA"] = buyAnswer(9, "Tech")
	f.ai.candidates["BBB"] = buyAnswer(9, "Tech")

	cands := ranked(testCandidate("AAA", "Tech", 1000), testCandidate("BBB", "Tech", 1000))
	result := f.run(context.Background(), nil, quotes(nil), cands...)

	assert.Equal(t, 1, result.Admitted)
	assert.Equal(t, 1, result.SkippedByReason[constraint.ReasonSectorLimit])
}

func TestPipeline_HardStopSkipsOracle(t *testing.T) {
	f := newPipelineFixture(t, defaultLimits())
	held := f.seedHolding(t, "HHH", "Energy")

	result := f.run(context.Background(), []entity.StockHolding{held}, quotes(map[string]float64{"HHH": 880}))

	assert.Equal(t, 1, result.Closed)
	assert.Zero(t, f.ai.callsFor("HHH"))

	var trade entity.TradingHistory
	require.NoError(t, f.db.First(&trade, "ticker = ?", "HHH").Error)
	assert.InDelta(t, -0.12, trade.ProfitRate, 1e-9)
	assert.Equal(t, 2, trade.HoldingDays)
}

func TestPipeline_ClosedTickerNotReboughtInSameCycle(t *testing.T) {
	f := newPipelineFixture(t, defaultLimits())
	held := f.seedHolding(t, "HHH", "Energy")
	f.ai.candidates["HHH"] = buyAnswer(9, "Energy")

	result := f.run(context.Background(), []entity.StockHolding{held}, quotes(map[string]float64{"HHH": 880}),
		ranked(testCandidate("HHH", "Energy", 880))...)

	assert.Equal(t, 1, result.Closed)
	assert.Zero(t, result.Admitted)
	assert.Equal(t, 1, result.SkippedByReason[ReasonClosedThisSession])
	assert.Zero(t, f.ai.callsFor("HHH"))

	var count int64
	require.NoError(t, f.db.Model(&entity.StockHolding{}).Where("ticker = ?", "HHH").Count(&count).Error)
	assert.Zero(t, count)
}

func TestPipeline_OracleSellFreesSlotForCandidate(t *testing.T) {
	limits := defaultLimits()
	limits.MaxSlots = 1
	f := newPipelineFixture(t, limits)
	held := f.seedHolding(t, "HHH", "Energy")
	f.ai.holdings["HHH"] = &dto.HoldingOracleResponse{ShouldSell: true, SellReason: "trend broken", Confidence: 8}
	f.ai.candidates["AAA"] = buyAnswer(9, "Tech")

	result := f.run(context.Background(), []entity.StockHolding{held}, quotes(map[string]float64{"HHH": 1100}),
		ranked(testCandidate("AAA", "Tech", 1000))...)

	assert.Equal(t, 1, result.Closed)
	assert.Equal(t, 1, result.Admitted)
	assert.Equal(t, "trend broken", result.Items[0].Reason)
}

func TestPipeline_MissingQuoteUsesLastKnownPrice(t *testing.T) {
	f := newPipelineFixture(t, defaultLimits())
	held := f.seedHolding(t, "HHH", "Energy")

	result := f.run(context.Background(), []entity.StockHolding{held}, quotes(nil))

	assert.Equal(t, 1, result.Held)
	assert.Equal(t, 1, f.ai.callsFor("HHH"))
}

func TestPipeline_SkipsHeldAndEvaluatedCandidates(t *testing.T) {
	f := newPipelineFixture(t, defaultLimits())
	held := f.seedHolding(t, "HHH", "Energy")
	_, err := repository.NewLedgerRepository(f.db).RecordWatchlist(context.Background(), &entity.WatchlistHistory{
		Ticker:        "AAA",
		EvaluatedDate: utils.DateOf(testSession),
		CompanyName:   "AAA Corp",
		Mode:          dto.RunModeMorning.String(),
		Rank:          1,
		Decision:      entity.DecisionWatch,
	})
	require.NoError(t, err)

	cands := ranked(testCandidate("HHH", "Energy", 1000), testCandidate("AAA", "Tech", 1000))
	result := f.run(context.Background(), []entity.StockHolding{held}, quotes(map[string]float64{"HHH": 1000}), cands...)

	assert.Equal(t, 1, result.SkippedByReason[constraint.ReasonAlreadyHeld])
	assert.Equal(t, 1, result.SkippedByReason[ReasonAlreadyEvaluated])
	assert.Equal(t, 1, f.ai.callsFor("HHH"))
	assert.Zero(t, f.ai.callsFor("AAA"))
}

func TestPipeline_CancellationStopsBetweenItems(t *testing.T) {
	f := newPipelineFixture(t, defaultLimits())
	f.ai.candidates["AAA"] = buyAnswer(9, "Tech")
	f.ai.candidates["BBB"] = buyAnswer(9, "Bio")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.ai.onCall = func(ticker string) {
		if ticker == "AAA" {
			cancel()
		}
	}

	cands := ranked(testCandidate("AAA", "Tech", 1000), testCandidate("BBB", "Bio", 1000))
	result := f.run(ctx, nil, quotes(nil), cands...)

	assert.True(t, result.Cancelled)
	assert.Zero(t, f.ai.callsFor("BBB"))
	assert.Zero(t, result.EvaluationFailed)
}

func TestPipeline_MarketConditionLoadedOnce(t *testing.T) {
	f := newPipelineFixture(t, defaultLimits())
	f.ai.candidates["AAA"] = buyAnswer(9, "Tech")
	f.ai.candidates["BBB"] = buyAnswer(9, "Bio")

	cands := ranked(testCandidate("AAA", "Tech", 1000), testCandidate("BBB", "Bio", 1000))
	f.run(context.Background(), nil, quotes(nil), cands...)

	assert.Equal(t, 1, f.marketData.indexCalls)

	var stored entity.MarketCondition
	require.NoError(t, f.db.First(&stored).Error)
	assert.Equal(t, 2, stored.Condition)
}

func TestPipeline_MarketConditionFailureIsNotFatal(t *testing.T) {
	f := newPipelineFixture(t, defaultLimits())
	f.marketData.levels = nil
	f.ai.candidates["AAA"] = buyAnswer(9, "Tech")
	f.ai.candidates["BBB"] = buyAnswer(9, "Bio")

	cands := ranked(testCandidate("AAA", "Tech", 1000), testCandidate("BBB", "Bio", 1000))
	result := f.run(context.Background(), nil, quotes(nil), cands...)

	assert.Equal(t, 2, result.Admitted)
	assert.Equal(t, 3, f.marketData.indexCalls)
}
