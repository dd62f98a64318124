package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"prism-insight/internal/tracker/config"
	"prism-insight/internal/tracker/dto"
	"prism-insight/pkg/logger"

	"golang.org/x/time/rate"
)

type brokerRepository struct {
	cfg            *config.Config
	log            *logger.Logger
	httpClient     *http.Client
	requestLimiter *rate.Limiter
}

// NewBrokerRepository returns the trade execution client. When the broker
// is disabled orders are acknowledged without leaving the process.
func NewBrokerRepository(cfg *config.Config, log *logger.Logger) BrokerRepository {
	if !cfg.Broker.Enabled {
		return &simulatedBroker{log: log}
	}
	perRequest := time.Minute / time.Duration(cfg.Broker.MaxRequestPerMinute)
	return &brokerRepository{
		cfg:            cfg,
		log:            log,
		httpClient:     &http.Client{Timeout: cfg.Broker.Timeout},
		requestLimiter: rate.NewLimiter(rate.Every(perRequest), 1),
	}
}

func (r *brokerRepository) Execute(ctx context.Context, order dto.TradeOrder) (*dto.TradeResult, error) {
	if order.Mode == "" {
		order.Mode = r.cfg.Broker.Mode
	}
	if order.Side == dto.TradeSideBuy && order.Quantity <= 0 && r.cfg.Broker.BuyAmount > 0 && order.Price > 0 {
		order.Quantity = int64(r.cfg.Broker.BuyAmount / order.Price)
	}

	payload, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order: %w", err)
	}

	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(r.cfg.Broker.BaseURL, "/") + "/orders"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.Broker.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.Broker.APIKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to send order to broker",
			logger.ErrorField(err), logger.StringField("ticker", order.Ticker), logger.StringField("side", string(order.Side)))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read broker response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &StatusError{Service: "broker", StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	var result dto.TradeResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: order result: %w", ErrInvalidResponse, err)
	}

	r.log.InfoContext(ctx, "Order executed",
		logger.StringField("ticker", order.Ticker),
		logger.StringField("side", string(order.Side)),
		logger.StringField("mode", order.Mode),
		logger.BoolField("success", result.Success),
		logger.StringField("order_id", result.OrderID))

	return &result, nil
}

type simulatedBroker struct {
	log *logger.Logger
}

func (b *simulatedBroker) Execute(ctx context.Context, order dto.TradeOrder) (*dto.TradeResult, error) {
	b.log.DebugContext(ctx, "Broker disabled, order simulated",
		logger.StringField("ticker", order.Ticker), logger.StringField("side", string(order.Side)))
	return &dto.TradeResult{
		Success:  true,
		Message:  "simulated",
		Quantity: order.Quantity,
		Price:    order.Price,
	}, nil
}
