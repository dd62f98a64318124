package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"prism-insight/internal/tracker/config"
	"prism-insight/internal/tracker/dto"
	"prism-insight/internal/tracker/repository"
	"prism-insight/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackerFixture struct {
	ai         *fakeAI
	marketData *fakeMarketData
	notifier   *fakeNotifier
	pingErr    error
	tracker    TrackerService
}

func newTrackerFixture(t *testing.T, start time.Time) *trackerFixture {
	db := setupSQLiteDB(t)
	cfg := &config.Config{Tracker: config.Tracker{
		TimeZone: "UTC",
		Detector: config.Detector{
			Workers: 2,
			Morning: config.DetectorRule{
				MinVolumeSurgeRatio: 2,
				MinGapUpPct:         2,
				Weights:             config.Weights{VolumeSurge: 0.4, GapUp: 0.4, Turnover: 0.1, CloseStrength: 0.1},
			},
		},
	}}

	f := &trackerFixture{
		ai:       newFakeAI(),
		notifier: &fakeNotifier{},
		marketData: &fakeMarketData{
			snapshots: map[string]*dto.MarketSnapshot{},
			levels:    &dto.IndexLevels{KospiClose: 2500, KospiPrevClose: 2500, KosdaqClose: 800, KosdaqPrevClose: 800},
		},
	}
	clock := newFakeClock(start)
	retry := instantPolicy(3, nil)
	lifecycle := NewLifecycleService(repository.NewLedgerRepository(db), &fakeBroker{}, &fakePublisher{}, 0, logger.NewNop(), clock.Now)
	pipeline := NewPipelineService(f.ai, fakeNews{}, repository.NewWatchlistHistoryRepository(db), lifecycle, retry, defaultLimits(), logger.NewNop())

	f.tracker = NewTrackerService(cfg,
		pingFunc(func(context.Context) error { return f.pingErr }),
		f.marketData,
		repository.NewStockHoldingsRepository(db),
		repository.NewMarketConditionRepository(db),
		pipeline,
		f.notifier,
		retry,
		logger.NewNop(),
		clock.Now,
	)
	return f
}

// seedSessions stores a session where AAA surges and gaps up while BBB is flat.
func (f *trackerFixture) seedSessions(current, previous time.Time) {
	f.marketData.snapshots[snapshotKey(previous, dto.RunModeAfternoon)] = dto.NewMarketSnapshot(previous, []dto.Quote{
		{Ticker: "AAA", Name: "AAA Corp", Sector: "Tech", Open: 990, High: 1010, Low: 980, Close: 1000, Volume: 1000, MarketCap: 1e9},
		{Ticker: "BBB", Name: "BBB Corp", Sector: "Bio", Open: 500, High: 505, Low: 495, Close: 500, Volume: 2000, MarketCap: 1e9},
	})
	f.marketData.snapshots[snapshotKey(current, dto.RunModeMorning)] = dto.NewMarketSnapshot(current, []dto.Quote{
		{Ticker: "AAA", Name: "AAA Corp", Sector: "Tech", Open: 1050, High: 1120, Low: 1040, Close: 1100, Volume: 5000, MarketCap: 1e9},
		{Ticker: "BBB", Name: "BBB Corp", Sector: "Bio", Open: 500, High: 505, Low: 495, Close: 501, Volume: 2100, MarketCap: 1e9},
	})
}

func TestTrackerService_Run(t *testing.T) {
	f := newTrackerFixture(t, testSession.Add(9*time.Hour))
	f.seedSessions(testSession, testSession.AddDate(0, 0, -1))
	f.ai.candidates["AAA"] = buyAnswer(8, "Tech")

	summary, err := f.tracker.Run(context.Background(), dto.RunModeMorning, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, "2025-10-14", summary.SessionDate)
	assert.Equal(t, 1, summary.CandidatesDetected)
	assert.Equal(t, 0, summary.HoldingsEvaluated)
	assert.Equal(t, 1, summary.Result.Admitted)
	assert.NotEmpty(t, summary.RunID)
	assert.True(t, summary.FinishedAt.After(summary.StartedAt))
	assert.Zero(t, f.ai.callsFor("BBB"))
	require.Len(t, f.notifier.messages, 1)
}

func TestTrackerService_PreviousSessionSkipsWeekend(t *testing.T) {
	monday := testSession.AddDate(0, 0, -1)
	f := newTrackerFixture(t, monday.Add(9*time.Hour))
	f.seedSessions(monday, monday.AddDate(0, 0, -3))
	f.ai.candidates["AAA"] = buyAnswer(8, "Tech")

	summary, err := f.tracker.Run(context.Background(), dto.RunModeMorning, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Result.Admitted)
}

func TestTrackerService_SnapshotUnavailable(t *testing.T) {
	f := newTrackerFixture(t, testSession.Add(9*time.Hour))
	f.marketData.snapshotErr = &repository.StatusError{Service: "market data", StatusCode: 503}

	summary, err := f.tracker.Run(context.Background(), dto.RunModeMorning, RunOptions{})
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, ErrSnapshotUnavailable)
	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0], "Tracker run aborted")
}

func TestTrackerService_PreviousSnapshotMissing(t *testing.T) {
	f := newTrackerFixture(t, testSession.Add(9*time.Hour))
	f.seedSessions(testSession, testSession.AddDate(0, 0, -5))

	_, err := f.tracker.Run(context.Background(), dto.RunModeMorning, RunOptions{})
	assert.ErrorIs(t, err, ErrSnapshotUnavailable)
}

func TestTrackerService_LedgerUnavailable(t *testing.T) {
	f := newTrackerFixture(t, testSession.Add(9*time.Hour))
	f.pingErr = errors.New("connection refused")

	_, err := f.tracker.Run(context.Background(), dto.RunModeMorning, RunOptions{})
	assert.ErrorIs(t, err, ErrLedgerUnavailable)
}

func TestTrackerService_MarketClosed(t *testing.T) {
	saturday := time.Date(2025, 10, 18, 9, 0, 0, 0, time.UTC)
	f := newTrackerFixture(t, saturday)

	summary, err := f.tracker.Run(context.Background(), dto.RunModeMorning, RunOptions{})
	require.NoError(t, err)
	assert.True(t, summary.MarketClosed)
	assert.Empty(t, f.notifier.messages)

	f.marketData.snapshotErr = &repository.StatusError{Service: "market data", StatusCode: 404}
	_, err = f.tracker.Run(context.Background(), dto.RunModeMorning, RunOptions{Force: true})
	assert.ErrorIs(t, err, ErrSnapshotUnavailable)
}

func TestTrackerService_InvalidMode(t *testing.T) {
	f := newTrackerFixture(t, testSession.Add(9*time.Hour))

	_, err := f.tracker.Run(context.Background(), dto.RunMode("evening"), RunOptions{})
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestTrackerService_RejectsConcurrentRun(t *testing.T) {
	f := newTrackerFixture(t, testSession.Add(9*time.Hour))
	f.seedSessions(testSession, testSession.AddDate(0, 0, -1))
	f.ai.candidates["AAA"] = buyAnswer(8, "Tech")

	var nestedErr error
	f.ai.onCall = func(string) {
		_, nestedErr = f.tracker.Run(context.Background(), dto.RunModeMorning, RunOptions{})
	}

	_, err := f.tracker.Run(context.Background(), dto.RunModeMorning, RunOptions{})
	require.NoError(t, err)
	assert.ErrorIs(t, nestedErr, ErrRunInProgress)
}
