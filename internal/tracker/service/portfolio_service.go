package service

import (
	"context"
	"time"

	"prism-insight/internal/entity"
	"prism-insight/internal/tracker/dto"
	"prism-insight/internal/tracker/repository"
	"prism-insight/pkg/utils"

	"github.com/shopspring/decimal"
)

// PortfolioService is the read side of the ledger used by the HTTP API.
type PortfolioService interface {
	Holdings(ctx context.Context) ([]dto.HoldingResponse, error)
	TradingHistory(ctx context.Context, param dto.TradingHistoryParam) ([]entity.TradingHistory, error)
	Watchlist(ctx context.Context, param dto.WatchlistParam) ([]entity.WatchlistHistory, error)
	HoldingDecisions(ctx context.Context, ticker string, limit int) ([]entity.HoldingDecision, error)
	Performance(ctx context.Context) (*dto.PerformanceStats, error)
}

type portfolioService struct {
	holdingsRepo  repository.StockHoldingsRepository
	historyRepo   repository.TradingHistoryRepository
	watchlistRepo repository.WatchlistHistoryRepository
	decisionRepo  repository.HoldingDecisionRepository
	now           func() time.Time
}

func NewPortfolioService(
	holdingsRepo repository.StockHoldingsRepository,
	historyRepo repository.TradingHistoryRepository,
	watchlistRepo repository.WatchlistHistoryRepository,
	decisionRepo repository.HoldingDecisionRepository,
	now func() time.Time,
) PortfolioService {
	if now == nil {
		now = time.Now
	}
	return &portfolioService{
		holdingsRepo:  holdingsRepo,
		historyRepo:   historyRepo,
		watchlistRepo: watchlistRepo,
		decisionRepo:  decisionRepo,
		now:           now,
	}
}

func (s *portfolioService) Holdings(ctx context.Context) ([]dto.HoldingResponse, error) {
	holdings, err := s.holdingsRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]dto.HoldingResponse, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, dto.HoldingResponse{
			Ticker:           h.Ticker,
			CompanyName:      h.CompanyName,
			Sector:           h.Sector,
			BuyPrice:         h.BuyPrice,
			BuyDate:          h.BuyDate,
			CurrentPrice:     h.CurrentPrice,
			TargetPrice:      h.TargetPrice,
			StopLoss:         h.StopLoss,
			Score:            h.Score,
			UnrealisedReturn: ProfitRate(h.BuyPrice, h.CurrentPrice),
			HoldingDays:      max(utils.DaysBetween(h.BuyDate, now), 0),
			LastUpdated:      h.LastUpdated,
		})
	}
	return out, nil
}

func (s *portfolioService) TradingHistory(ctx context.Context, param dto.TradingHistoryParam) ([]entity.TradingHistory, error) {
	return s.historyRepo.Find(ctx, param)
}

func (s *portfolioService) Watchlist(ctx context.Context, param dto.WatchlistParam) ([]entity.WatchlistHistory, error) {
	return s.watchlistRepo.Find(ctx, param)
}

func (s *portfolioService) HoldingDecisions(ctx context.Context, ticker string, limit int) ([]entity.HoldingDecision, error) {
	return s.decisionRepo.FindByTicker(ctx, ticker, limit)
}

// Performance summarises every closed trade.
func (s *portfolioService) Performance(ctx context.Context) (*dto.PerformanceStats, error) {
	trades, err := s.historyRepo.Find(ctx, dto.TradingHistoryParam{})
	if err != nil {
		return nil, err
	}
	return ComputePerformance(trades), nil
}

// ComputePerformance aggregates closed trades. Rates are ratios, not percent.
func ComputePerformance(trades []entity.TradingHistory) *dto.PerformanceStats {
	stats := &dto.PerformanceStats{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return stats
	}

	total := decimal.Zero
	days := 0
	for i, t := range trades {
		rate := decimal.NewFromFloat(t.ProfitRate)
		total = total.Add(rate)
		days += t.HoldingDays

		switch {
		case t.ProfitRate > 0:
			stats.WinningTrades++
		case t.ProfitRate < 0:
			stats.LosingTrades++
		}
		if i == 0 || t.ProfitRate > stats.BestProfitRate {
			stats.BestProfitRate = t.ProfitRate
		}
		if i == 0 || t.ProfitRate < stats.WorstProfitRate {
			stats.WorstProfitRate = t.ProfitRate
		}
	}

	n := decimal.NewFromInt(int64(len(trades)))
	stats.TotalProfitRate = total.Round(6).InexactFloat64()
	stats.AverageProfitRate = total.Div(n).Round(6).InexactFloat64()
	stats.WinRate = decimal.NewFromInt(int64(stats.WinningTrades)).Div(n).Round(4).InexactFloat64()
	stats.AverageHolding = decimal.NewFromInt(int64(days)).Div(n).Round(2).InexactFloat64()
	return stats
}
