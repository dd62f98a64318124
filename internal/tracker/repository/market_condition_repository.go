package repository

import (
	"context"
	"errors"
	"time"

	"prism-insight/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MarketConditionRepository interface {
	FindByDate(ctx context.Context, date time.Time) (*entity.MarketCondition, error)
	Upsert(ctx context.Context, condition *entity.MarketCondition) error
}

type marketConditionRepository struct {
	db *gorm.DB
}

func NewMarketConditionRepository(db *gorm.DB) MarketConditionRepository {
	return &marketConditionRepository{
		db: db,
	}
}

// FindByDate returns nil, nil when no assessment exists for date.
func (r *marketConditionRepository) FindByDate(ctx context.Context, date time.Time) (*entity.MarketCondition, error) {
	var condition entity.MarketCondition
	err := r.db.WithContext(ctx).Where("date = ?", date).First(&condition).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &condition, nil
}

func (r *marketConditionRepository) Upsert(ctx context.Context, condition *entity.MarketCondition) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"kospi_index", "kospi_change_pct", "kosdaq_index", "kosdaq_change_pct",
			"condition", "volatility", "updated_at",
		}),
	}).Create(condition).Error
}
