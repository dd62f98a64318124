package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"prism-insight/internal/entity"
	"prism-insight/internal/tracker/dto"
	"prism-insight/internal/tracker/repository"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&entity.StockHolding{},
		&entity.TradingHistory{},
		&entity.WatchlistHistory{},
		&entity.HoldingDecision{},
		&entity.MarketCondition{},
	))
	return db
}

// fakeClock advances by one minute on every call so buy and sell times
// are always ordered.
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{cur: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Minute)
	return c.cur
}

// fakeAI answers from per-ticker scripts. Each entry in failures is
// returned once before the scripted answer.
type fakeAI struct {
	mu         sync.Mutex
	candidates map[string]*dto.CandidateOracleResponse
	holdings   map[string]*dto.HoldingOracleResponse
	failures   map[string][]error
	calls      map[string]int
	order      []string
	onCall     func(ticker string)
}

func newFakeAI() *fakeAI {
	return &fakeAI{
		candidates: map[string]*dto.CandidateOracleResponse{},
		holdings:   map[string]*dto.HoldingOracleResponse{},
		failures:   map[string][]error{},
		calls:      map[string]int{},
	}
}

func (f *fakeAI) next(ticker string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[ticker]++
	f.order = append(f.order, ticker)
	if f.onCall != nil {
		f.onCall(ticker)
	}
	if errs := f.failures[ticker]; len(errs) > 0 {
		f.failures[ticker] = errs[1:]
		return errs[0]
	}
	return nil
}

func (f *fakeAI) AnalyzeCandidate(ctx context.Context, req *dto.CandidateOracleRequest) (*dto.CandidateOracleResponse, error) {
	if err := f.next(req.Ticker); err != nil {
		return nil, err
	}
	resp, ok := f.candidates[req.Ticker]
	if !ok {
		return nil, errors.New("no scripted candidate answer")
	}
	return resp, nil
}

func (f *fakeAI) MonitorHolding(ctx context.Context, req *dto.HoldingOracleRequest) (*dto.HoldingOracleResponse, error) {
	if err := f.next(req.Holding.Ticker); err != nil {
		return nil, err
	}
	resp, ok := f.holdings[req.Holding.Ticker]
	if !ok {
		return &dto.HoldingOracleResponse{Confidence: 5}, nil
	}
	return resp, nil
}

func (f *fakeAI) callsFor(ticker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ticker]
}

func buyAnswer(score float64, sector string) *dto.CandidateOracleResponse {
	return &dto.CandidateOracleResponse{
		Decision:    "BUY",
		BuyScore:    dto.FlexibleFloat(score),
		TargetPrice: 1200,
		StopLoss:    900,
		Sector:      sector,
		Rationale:   "breakout",
		Raw:         []byte(`{"decision":"BUY"}`),
	}
}

type fakeBroker struct {
	mu     sync.Mutex
	orders []dto.TradeOrder
	err    error
}

func (b *fakeBroker) Execute(ctx context.Context, order dto.TradeOrder) (*dto.TradeResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders = append(b.orders, order)
	if b.err != nil {
		return nil, b.err
	}
	return &dto.TradeResult{Success: true, OrderID: "ord", Quantity: order.Quantity, Price: order.Price}, nil
}

type fakePublisher struct {
	mu      sync.Mutex
	signals []dto.TradingSignal
}

func (p *fakePublisher) Publish(ctx context.Context, signal dto.TradingSignal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, signal)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeNews struct{}

func (fakeNews) GetHeadlines(context.Context, string, string) ([]dto.NewsItem, error) {
	return []dto.NewsItem{{Title: "headline"}}, nil
}

type fakeMarketData struct {
	mu          sync.Mutex
	snapshots   map[string]*dto.MarketSnapshot
	levels      *dto.IndexLevels
	snapshotErr error
	indexCalls  int
}

func snapshotKey(date time.Time, mode dto.RunMode) string {
	return date.Format(time.DateOnly) + "/" + mode.String()
}

func (m *fakeMarketData) GetSnapshot(ctx context.Context, date time.Time, mode dto.RunMode) (*dto.MarketSnapshot, error) {
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}
	s, ok := m.snapshots[snapshotKey(date, mode)]
	if !ok {
		return nil, &repository.StatusError{Service: "market data", StatusCode: 404}
	}
	return s, nil
}

func (m *fakeMarketData) GetIndexLevels(ctx context.Context, date time.Time) (*dto.IndexLevels, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexCalls++
	if m.levels == nil {
		return nil, &repository.StatusError{Service: "market data", StatusCode: 503}
	}
	return m.levels, nil
}

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) SendMessage(text string) error {
	n.messages = append(n.messages, text)
	return nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }
