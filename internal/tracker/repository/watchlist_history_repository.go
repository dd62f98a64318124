package repository

import (
	"context"
	"strings"
	"time"

	"prism-insight/internal/entity"
	"prism-insight/internal/tracker/dto"

	"gorm.io/gorm"
)

// WatchlistHistoryRepository reads admission evaluations.
type WatchlistHistoryRepository interface {
	Find(ctx context.Context, param dto.WatchlistParam) ([]entity.WatchlistHistory, error)
	Exists(ctx context.Context, ticker string, date time.Time) (bool, error)
}

type watchlistHistoryRepository struct {
	db *gorm.DB
}

func NewWatchlistHistoryRepository(db *gorm.DB) WatchlistHistoryRepository {
	return &watchlistHistoryRepository{
		db: db,
	}
}

func (r *watchlistHistoryRepository) Find(ctx context.Context, param dto.WatchlistParam) ([]entity.WatchlistHistory, error) {
	var (
		entries      []entity.WatchlistHistory
		qFilter      = []string{}
		qFilterParam = []interface{}{}
	)

	if param.Date != nil {
		qFilter = append(qFilter, "evaluated_date = ?")
		qFilterParam = append(qFilterParam, *param.Date)
	}
	if param.Ticker != "" {
		qFilter = append(qFilter, "ticker = ?")
		qFilterParam = append(qFilterParam, param.Ticker)
	}
	if param.Decision != "" {
		qFilter = append(qFilter, "decision = ?")
		qFilterParam = append(qFilterParam, strings.ToUpper(param.Decision))
	}

	q := r.db.WithContext(ctx).Order("evaluated_date DESC").Order("rank ASC")
	if len(qFilter) > 0 {
		q = q.Where(strings.Join(qFilter, " AND "), qFilterParam...)
	}
	if param.Limit > 0 {
		q = q.Limit(param.Limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Exists reports whether ticker was already evaluated on date.
func (r *watchlistHistoryRepository) Exists(ctx context.Context, ticker string, date time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.WatchlistHistory{}).
		Where("ticker = ? AND evaluated_date = ?", ticker, date).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
