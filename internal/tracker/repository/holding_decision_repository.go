package repository

import (
	"context"

	"prism-insight/internal/entity"

	"gorm.io/gorm"
)

type HoldingDecisionRepository interface {
	FindByTicker(ctx context.Context, ticker string, limit int) ([]entity.HoldingDecision, error)
}

type holdingDecisionRepository struct {
	db *gorm.DB
}

func NewHoldingDecisionRepository(db *gorm.DB) HoldingDecisionRepository {
	return &holdingDecisionRepository{
		db: db,
	}
}

func (r *holdingDecisionRepository) FindByTicker(ctx context.Context, ticker string, limit int) ([]entity.HoldingDecision, error) {
	var decisions []entity.HoldingDecision

	q := r.db.WithContext(ctx).Where("ticker = ?", ticker).Order("decision_time DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&decisions).Error; err != nil {
		return nil, err
	}
	return decisions, nil
}
