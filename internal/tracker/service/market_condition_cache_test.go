package service

import (
	"context"
	"testing"

	"prism-insight/internal/entity"
	"prism-insight/internal/tracker/dto"
	"prism-insight/internal/tracker/repository"
	"prism-insight/pkg/logger"
	"prism-insight/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyMarket(t *testing.T) {
	tests := []struct {
		name     string
		kospi    float64
		kosdaq   float64
		expected int
	}{
		{name: "strong bull", kospi: 101.5, kosdaq: 101, expected: 2},
		{name: "bull", kospi: 100.5, kosdaq: 100.3, expected: 1},
		{name: "flat", kospi: 100.1, kosdaq: 99.9, expected: 0},
		{name: "bear", kospi: 99.5, kosdaq: 99.6, expected: -1},
		{name: "strong bear", kospi: 98, kosdaq: 99, expected: -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := ClassifyMarket(testSession, &dto.IndexLevels{
				KospiClose: tt.kospi, KospiPrevClose: 100,
				KosdaqClose: tt.kosdaq, KosdaqPrevClose: 100,
			})
			assert.Equal(t, tt.expected, mc.Condition)
			assert.Equal(t, utils.DateOf(testSession), mc.Date)
		})
	}
}

func TestClassifyMarket_MissingPreviousClose(t *testing.T) {
	mc := ClassifyMarket(testSession, &dto.IndexLevels{KospiClose: 2500, KosdaqClose: 800})
	assert.Zero(t, mc.KospiChangePct)
	assert.Zero(t, mc.Condition)
}

func TestMarketConditionCache(t *testing.T) {
	db := setupSQLiteDB(t)
	md := &fakeMarketData{levels: &dto.IndexLevels{KospiClose: 2450, KospiPrevClose: 2500, KosdaqClose: 790, KosdaqPrevClose: 800}}
	cache := NewMarketConditionCache(repository.NewMarketConditionRepository(db), md, instantPolicy(3, nil), logger.NewNop())
	ctx := context.Background()

	first, err := cache.Get(ctx, testSession)
	require.NoError(t, err)
	second, err := cache.Get(ctx, testSession)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, -2, first.Condition)
	assert.Equal(t, 1, md.indexCalls)

	next := testSession.AddDate(0, 0, 1)
	_, err = cache.Get(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, 2, md.indexCalls)

	var count int64
	require.NoError(t, db.Model(&entity.MarketCondition{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestMarketConditionCache_PrefersStoredAssessment(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := repository.NewMarketConditionRepository(db)
	require.NoError(t, repo.Upsert(context.Background(), &entity.MarketCondition{Date: utils.DateOf(testSession), Condition: 1}))

	md := &fakeMarketData{}
	cache := NewMarketConditionCache(repo, md, instantPolicy(3, nil), logger.NewNop())

	mc, err := cache.Get(context.Background(), testSession)
	require.NoError(t, err)
	assert.Equal(t, 1, mc.Condition)
	assert.Zero(t, md.indexCalls)
}

func TestMarketConditionCache_RemembersFailure(t *testing.T) {
	db := setupSQLiteDB(t)
	md := &fakeMarketData{}
	cache := NewMarketConditionCache(repository.NewMarketConditionRepository(db), md, instantPolicy(2, nil), logger.NewNop())

	_, err := cache.Get(context.Background(), testSession)
	require.Error(t, err)
	_, err = cache.Get(context.Background(), testSession)
	require.Error(t, err)

	assert.Equal(t, 2, md.indexCalls)
}
