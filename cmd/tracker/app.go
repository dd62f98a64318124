package main

import (
	"context"
	"fmt"
	"strings"

	"prism-insight/internal/entity"
	"prism-insight/internal/tracker/config"
	"prism-insight/internal/tracker/constraint"
	"prism-insight/internal/tracker/repository"
	"prism-insight/internal/tracker/service"
	"prism-insight/pkg/common"
	"prism-insight/pkg/logger"
	"prism-insight/pkg/postgres"
	"prism-insight/pkg/redis"
	"prism-insight/pkg/telegram"

	"google.golang.org/genai"
)

// app holds the wired services shared by the run and serve commands.
type app struct {
	db        *postgres.DB
	tracker   service.TrackerService
	portfolio service.PortfolioService
	closers   []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (*app, error) {
	a := &app{}

	// Initialize database
	postgresCfg := postgres.Config{
		Driver:          cfg.Database.Driver,
		Path:            cfg.Database.Path,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		TimeZone:        cfg.Database.TimeZone,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", service.ErrLedgerUnavailable, err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	if strings.EqualFold(cfg.Database.Driver, postgres.DriverSQLite) {
		// the SQL migrations target postgres; local sqlite ledgers are created from the entities
		if err := db.DB.AutoMigrate(
			&entity.WatchlistHistory{},
			&entity.StockHolding{},
			&entity.TradingHistory{},
			&entity.HoldingDecision{},
			&entity.MarketCondition{},
		); err != nil {
			a.Close()
			return nil, fmt.Errorf("%w: auto migrate: %w", service.ErrLedgerUnavailable, err)
		}
	}

	// Initialize AI provider
	var aiRepo repository.AIRepository
	switch cfg.AI.Provider {
	case "gemini":
		genAiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.Gemini.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize Gemini AI client: %w", err)
		}
		aiRepo, err = repository.NewGeminiAIRepository(cfg, appLogger, genAiClient)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize Gemini AI repository: %w", err)
		}
	default:
		a.Close()
		return nil, fmt.Errorf("invalid AI provider %q", cfg.AI.Provider)
	}

	publisher, err := newSignalPublisher(cfg, appLogger, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	var notifier telegram.Notifier = telegram.NewNoopNotifier()
	if cfg.Telegram.BotToken != "" {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Warn("Failed to initialize Telegram notifier, alerts disabled", logger.ErrorField(err))
			notifier = telegram.NewNoopNotifier()
		}
	}

	// Initialize repositories
	ledgerRepo := repository.NewLedgerRepository(db.DB)
	holdingsRepo := repository.NewStockHoldingsRepository(db.DB)
	historyRepo := repository.NewTradingHistoryRepository(db.DB)
	watchlistRepo := repository.NewWatchlistHistoryRepository(db.DB)
	decisionRepo := repository.NewHoldingDecisionRepository(db.DB)
	conditionRepo := repository.NewMarketConditionRepository(db.DB)
	marketDataRepo := repository.NewMarketDataRepository(cfg, appLogger)
	brokerRepo := repository.NewBrokerRepository(cfg, appLogger)
	newsRepo := repository.NewNewsRepository(cfg, appLogger)

	// Initialize services
	retry := service.NewRetryPolicy(cfg.Tracker.Retry)
	lifecycleSvc := service.NewLifecycleService(ledgerRepo, brokerRepo, publisher, cfg.Broker.BuyAmount, appLogger, nil)
	pipelineSvc := service.NewPipelineService(aiRepo, newsRepo, watchlistRepo, lifecycleSvc, retry, constraint.FromConfig(cfg.Tracker.Portfolio), appLogger)

	a.tracker = service.NewTrackerService(cfg, db, marketDataRepo, holdingsRepo, conditionRepo, pipelineSvc, notifier, retry, appLogger, nil)
	a.portfolio = service.NewPortfolioService(holdingsRepo, historyRepo, watchlistRepo, decisionRepo, nil)
	return a, nil
}

func newSignalPublisher(cfg *config.Config, appLogger *logger.Logger, a *app) (repository.SignalPublisher, error) {
	switch strings.ToLower(cfg.Publisher.Kind) {
	case "redis":
		redisClient, err := redis.NewClient(redis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		a.closers = append(a.closers, redisClient.Close)

		stream := cfg.Publisher.Stream
		if stream == "" {
			stream = common.RedisStreamTradingSignals
		}
		return repository.NewRedisSignalPublisher(redisClient.Client, stream, cfg.Redis.StreamMaxLen, appLogger), nil
	case "kafka":
		topic := cfg.Publisher.KafkaTopic
		if topic == "" {
			topic = common.KafkaTopicTradingSignals
		}
		publisher, err := repository.NewKafkaSignalPublisher(cfg.Publisher.KafkaBrokers, topic, appLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Kafka publisher: %w", err)
		}
		a.closers = append(a.closers, publisher.Close)
		return publisher, nil
	case "", "none":
		return repository.NewNoopSignalPublisher(), nil
	default:
		return nil, fmt.Errorf("invalid publisher kind %q", cfg.Publisher.Kind)
	}
}
