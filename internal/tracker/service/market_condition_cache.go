package service

import (
	"context"
	"sync"
	"time"

	"prism-insight/internal/entity"
	"prism-insight/internal/tracker/dto"
	"prism-insight/internal/tracker/repository"
	"prism-insight/pkg/logger"
	"prism-insight/pkg/utils"

	"github.com/patrickmn/go-cache"
)

type cachedCondition struct {
	condition *entity.MarketCondition
	err       error
}

// MarketConditionCache memoises the market condition per session date for
// the lifetime of one run. Asking for a different date flushes it.
type MarketConditionCache struct {
	repo       repository.MarketConditionRepository
	marketData repository.MarketDataRepository
	retry      RetryPolicy
	log        *logger.Logger

	mu      sync.Mutex
	store   *cache.Cache
	current string
}

func NewMarketConditionCache(repo repository.MarketConditionRepository, marketData repository.MarketDataRepository, retry RetryPolicy, log *logger.Logger) *MarketConditionCache {
	return &MarketConditionCache{
		repo:       repo,
		marketData: marketData,
		retry:      retry,
		log:        log,
		store:      cache.New(cache.NoExpiration, 0),
	}
}

// Get returns the condition of date, loading it at most once. A failed load
// is remembered too so the items of one run do not each pay for it.
func (c *MarketConditionCache) Get(ctx context.Context, date time.Time) (*entity.MarketCondition, error) {
	key := utils.FormatDate(date)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != key {
		c.store.Flush()
		c.current = key
	}
	if v, ok := c.store.Get(key); ok {
		cached := v.(cachedCondition)
		return cached.condition, cached.err
	}

	condition, err := c.load(ctx, date)
	if ctx.Err() == nil {
		c.store.Set(key, cachedCondition{condition: condition, err: err}, cache.NoExpiration)
	}
	return condition, err
}

func (c *MarketConditionCache) load(ctx context.Context, date time.Time) (*entity.MarketCondition, error) {
	stored, err := c.repo.FindByDate(ctx, date)
	if err != nil {
		c.log.WarnContext(ctx, "Failed to read stored market condition", logger.ErrorField(err))
	}
	if stored != nil {
		return stored, nil
	}

	levels, _, err := Retry(ctx, c.retry, func(ctx context.Context) (*dto.IndexLevels, error) {
		return c.marketData.GetIndexLevels(ctx, date)
	})
	if err != nil {
		c.log.WarnContext(ctx, "Failed to fetch index levels", logger.ErrorField(err), logger.StringField("date", utils.FormatDate(date)))
		return nil, err
	}

	condition := ClassifyMarket(date, levels)
	if err := c.repo.Upsert(ctx, condition); err != nil {
		c.log.WarnContext(ctx, "Failed to store market condition", logger.ErrorField(err))
	}

	c.log.InfoContext(ctx, "Market condition assessed",
		logger.StringField("date", utils.FormatDate(date)),
		logger.IntField("condition", condition.Condition),
		logger.FloatField("kospi_change_pct", condition.KospiChangePct),
		logger.FloatField("kosdaq_change_pct", condition.KosdaqChangePct))
	return condition, nil
}

// ClassifyMarket maps the average index change of the day onto -2..2.
func ClassifyMarket(date time.Time, levels *dto.IndexLevels) *entity.MarketCondition {
	kospiChange := changePct(levels.KospiClose, levels.KospiPrevClose)
	kosdaqChange := changePct(levels.KosdaqClose, levels.KosdaqPrevClose)
	avg := (kospiChange + kosdaqChange) / 2

	condition := 0
	switch {
	case avg >= 1:
		condition = 2
	case avg >= 0.3:
		condition = 1
	case avg <= -1:
		condition = -2
	case avg <= -0.3:
		condition = -1
	}

	return &entity.MarketCondition{
		Date:            utils.DateOf(date),
		KospiIndex:      levels.KospiClose,
		KospiChangePct:  kospiChange,
		KosdaqIndex:     levels.KosdaqClose,
		KosdaqChangePct: kosdaqChange,
		Condition:       condition,
		Volatility:      levels.Volatility,
	}
}

func changePct(last, prev float64) float64 {
	if prev <= 0 {
		return 0
	}
	return (last - prev) / prev * 100
}
