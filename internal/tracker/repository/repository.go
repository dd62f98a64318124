package repository

import (
	"context"
	"time"

	"prism-insight/internal/entity"
	"prism-insight/internal/tracker/dto"
)

// AIRepository is the decision oracle.
type AIRepository interface {
	AnalyzeCandidate(ctx context.Context, req *dto.CandidateOracleRequest) (*dto.CandidateOracleResponse, error)
	MonitorHolding(ctx context.Context, req *dto.HoldingOracleRequest) (*dto.HoldingOracleResponse, error)
}

// MarketDataRepository provides session snapshots and index levels.
type MarketDataRepository interface {
	GetSnapshot(ctx context.Context, date time.Time, mode dto.RunMode) (*dto.MarketSnapshot, error)
	GetIndexLevels(ctx context.Context, date time.Time) (*dto.IndexLevels, error)
}

// BrokerRepository submits orders to the trade execution service.
type BrokerRepository interface {
	Execute(ctx context.Context, order dto.TradeOrder) (*dto.TradeResult, error)
}

// NewsRepository fetches recent headlines for a ticker.
type NewsRepository interface {
	GetHeadlines(ctx context.Context, ticker, companyName string) ([]dto.NewsItem, error)
}

// SignalPublisher broadcasts BUY/SELL signals to subscribers.
type SignalPublisher interface {
	Publish(ctx context.Context, signal dto.TradingSignal) error
	Close() error
}

// LedgerRepository groups the multi-row writes that must commit atomically.
type LedgerRepository interface {
	// RecordWatchlist stores a SKIP/WATCH evaluation. It reports false when
	// the (ticker, date) entry already exists.
	RecordWatchlist(ctx context.Context, entry *entity.WatchlistHistory) (bool, error)
	// OpenHolding stores the BUY evaluation and the new holding together.
	OpenHolding(ctx context.Context, entry *entity.WatchlistHistory, holding *entity.StockHolding) (bool, error)
	// RefreshHolding updates a holding and appends its decision.
	RefreshHolding(ctx context.Context, holding *entity.StockHolding, decision *entity.HoldingDecision) error
	// CloseHolding deletes the holding and appends the trade record and the
	// decision. It reports false when the holding was already closed.
	CloseHolding(ctx context.Context, trade *entity.TradingHistory, decision *entity.HoldingDecision) (bool, error)
}
