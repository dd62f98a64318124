package repository

import (
	"context"

	"prism-insight/internal/entity"
	"prism-insight/internal/tracker/dto"

	"gorm.io/gorm"
)

// TradingHistoryRepository reads closed positions.
type TradingHistoryRepository interface {
	Find(ctx context.Context, param dto.TradingHistoryParam) ([]entity.TradingHistory, error)
}

type tradingHistoryRepository struct {
	db *gorm.DB
}

func NewTradingHistoryRepository(db *gorm.DB) TradingHistoryRepository {
	return &tradingHistoryRepository{
		db: db,
	}
}

// Find returns trades newest first. A zero limit returns everything.
func (r *tradingHistoryRepository) Find(ctx context.Context, param dto.TradingHistoryParam) ([]entity.TradingHistory, error) {
	var trades []entity.TradingHistory

	q := r.db.WithContext(ctx).Order("sell_date DESC").Order("id DESC")
	if param.Ticker != "" {
		q = q.Where("ticker = ?", param.Ticker)
	}
	if param.Limit > 0 {
		q = q.Limit(param.Limit)
	}
	if err := q.Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}
