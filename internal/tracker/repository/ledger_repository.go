package repository

import (
	"context"
	"fmt"

	"prism-insight/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{
		db: db,
	}
}

var watchlistConflict = clause.OnConflict{
	Columns:   []clause.Column{{Name: "ticker"}, {Name: "evaluated_date"}},
	DoNothing: true,
}

func (r *ledgerRepository) RecordWatchlist(ctx context.Context, entry *entity.WatchlistHistory) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(watchlistConflict).Create(entry)
	if res.Error != nil {
		return false, fmt.Errorf("insert watchlist_history error: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *ledgerRepository) OpenHolding(ctx context.Context, entry *entity.WatchlistHistory, holding *entity.StockHolding) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(watchlistConflict).Create(entry)
		if res.Error != nil {
			return fmt.Errorf("insert watchlist_history error: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// evaluated and recorded by an earlier attempt
			return nil
		}

		holding.WatchlistID = entry.ID
		res = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ticker"}},
			DoNothing: true,
		}).Create(holding)
		if res.Error != nil {
			return fmt.Errorf("insert stock_holdings error: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyHeld
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (r *ledgerRepository) RefreshHolding(ctx context.Context, holding *entity.StockHolding, decision *entity.HoldingDecision) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.StockHolding{}).
			Where("ticker = ? AND position_id = ?", holding.Ticker, holding.PositionID).
			Updates(map[string]interface{}{
				"current_price": holding.CurrentPrice,
				"last_updated":  holding.LastUpdated,
				"target_price":  holding.TargetPrice,
				"stop_loss":     holding.StopLoss,
			})
		if res.Error != nil {
			return fmt.Errorf("update stock_holdings error: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("holding %s: %w", holding.Ticker, ErrNotFound)
		}

		if err := tx.Create(decision).Error; err != nil {
			return fmt.Errorf("insert holding_decisions error: %w", err)
		}
		return nil
	})
}

func (r *ledgerRepository) CloseHolding(ctx context.Context, trade *entity.TradingHistory, decision *entity.HoldingDecision) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("ticker = ? AND position_id = ?", trade.Ticker, trade.PositionID).Delete(&entity.StockHolding{})
		if res.Error != nil {
			return fmt.Errorf("delete stock_holdings error: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Create(trade).Error; err != nil {
			return fmt.Errorf("insert trading_history error: %w", err)
		}
		if decision != nil {
			if err := tx.Create(decision).Error; err != nil {
				return fmt.Errorf("insert holding_decisions error: %w", err)
			}
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
