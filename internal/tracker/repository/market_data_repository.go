package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"prism-insight/internal/tracker/config"
	"prism-insight/internal/tracker/dto"
	"prism-insight/pkg/logger"
	"prism-insight/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type marketDataRepository struct {
	cfg            *config.Config
	log            *logger.Logger
	httpClient     *http.Client
	requestLimiter *rate.Limiter
}

// NewMarketDataRepository creates the HTTP client of the market snapshot API.
func NewMarketDataRepository(cfg *config.Config, log *logger.Logger) MarketDataRepository {
	perRequest := time.Minute / time.Duration(cfg.MarketData.MaxRequestPerMinute)
	return &marketDataRepository{
		cfg:            cfg,
		log:            log,
		httpClient:     &http.Client{Timeout: cfg.MarketData.Timeout},
		requestLimiter: rate.NewLimiter(rate.Every(perRequest), 1),
	}
}

// GetSnapshot fetches the quotes of the session identified by date and mode.
func (r *marketDataRepository) GetSnapshot(ctx context.Context, date time.Time, mode dto.RunMode) (*dto.MarketSnapshot, error) {
	query := url.Values{}
	query.Set("date", utils.FormatDate(date))
	query.Set("session", mode.String())
	endpoint := fmt.Sprintf("%s/snapshots?%s", strings.TrimRight(r.cfg.MarketData.BaseURL, "/"), query.Encode())

	body, err := r.sendRequest(ctx, http.MethodGet, endpoint, "")
	if err != nil {
		return nil, err
	}

	var resp dto.SnapshotResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: snapshot: %w", ErrInvalidResponse, err)
	}

	r.log.DebugContext(ctx, "Market snapshot fetched",
		logger.StringField("date", utils.FormatDate(date)),
		logger.StringField("session", mode.String()),
		logger.IntField("quotes", len(resp.Quotes)))

	return dto.NewMarketSnapshot(date, resp.Quotes), nil
}

// GetIndexLevels fetches the KOSPI and KOSDAQ levels of date.
func (r *marketDataRepository) GetIndexLevels(ctx context.Context, date time.Time) (*dto.IndexLevels, error) {
	query := url.Values{}
	query.Set("date", utils.FormatDate(date))
	endpoint := fmt.Sprintf("%s/indices?%s", strings.TrimRight(r.cfg.MarketData.BaseURL, "/"), query.Encode())

	body, err := r.sendRequest(ctx, http.MethodGet, endpoint, "")
	if err != nil {
		return nil, err
	}

	var levels dto.IndexLevels
	if err := json.Unmarshal(body, &levels); err != nil {
		return nil, fmt.Errorf("%w: index levels: %w", ErrInvalidResponse, err)
	}
	return &levels, nil
}

func (r *marketDataRepository) sendRequest(ctx context.Context, method string, url string, jsonStr string) ([]byte, error) {
	fields := []zap.Field{
		zap.String("url", url),
		zap.Int("max_request_per_minute", r.cfg.MarketData.MaxRequestPerMinute),
	}

	if err := r.requestLimiter.Wait(ctx); err != nil {
		fields = append(fields, zap.Error(err))
		r.log.ErrorContext(ctx, "Failed to wait for request limit", fields...)
		return nil, err
	}

	var payload io.Reader
	if jsonStr != "" {
		payload = bytes.NewBufferString(jsonStr)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		fields = append(fields, zap.Error(err))
		r.log.ErrorContext(ctx, "Failed to create new http request", fields...)
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.cfg.MarketData.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.MarketData.APIKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		fields = append(fields, zap.Error(err))
		r.log.ErrorContext(ctx, "Failed to send request to market data API", fields...)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fields = append(fields, zap.Error(err))
		r.log.ErrorContext(ctx, "Failed to read response body from market data API", fields...)
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		fields = append(fields, zap.Int("status_code", resp.StatusCode))
		r.log.ErrorContext(ctx, "Received non-OK response from market data API", fields...)
		return nil, &StatusError{Service: "market data", StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
