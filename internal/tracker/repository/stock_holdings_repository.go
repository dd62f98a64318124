package repository

import (
	"context"
	"errors"

	"prism-insight/internal/entity"

	"gorm.io/gorm"
)

// StockHoldingsRepository reads open positions.
type StockHoldingsRepository interface {
	FindAll(ctx context.Context) ([]entity.StockHolding, error)
	FindByTicker(ctx context.Context, ticker string) (*entity.StockHolding, error)
}

type stockHoldingsRepository struct {
	db *gorm.DB
}

func NewStockHoldingsRepository(db *gorm.DB) StockHoldingsRepository {
	return &stockHoldingsRepository{
		db: db,
	}
}

// FindAll returns every holding ordered by ticker.
func (r *stockHoldingsRepository) FindAll(ctx context.Context) ([]entity.StockHolding, error) {
	var holdings []entity.StockHolding
	if err := r.db.WithContext(ctx).Order("ticker ASC").Find(&holdings).Error; err != nil {
		return nil, err
	}
	return holdings, nil
}

// FindByTicker returns nil, nil when ticker is not held.
func (r *stockHoldingsRepository) FindByTicker(ctx context.Context, ticker string) (*entity.StockHolding, error) {
	var holding entity.StockHolding
	err := r.db.WithContext(ctx).Where("ticker = ?", ticker).First(&holding).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &holding, nil
}
