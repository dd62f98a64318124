package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"prism-insight/internal/tracker/config"
	"prism-insight/internal/tracker/dto"
	"prism-insight/pkg/logger"
	"prism-insight/pkg/ratelimit"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// geminiAIRepository is the decision oracle backed by the Google Gemini API.
type geminiAIRepository struct {
	cfg            *config.Config
	logger         *logger.Logger
	tokenLimiter   *ratelimit.TokenLimiter
	requestLimiter *rate.Limiter
	genAiClient    *genai.Client
}

// NewGeminiAIRepository creates a new instance of geminiAIRepository.
func NewGeminiAIRepository(cfg *config.Config, log *logger.Logger, genAiClient *genai.Client) (AIRepository, error) {
	if genAiClient == nil {
		return nil, fmt.Errorf("gemini client is required")
	}
	secondsPerRequest := time.Minute / time.Duration(cfg.Gemini.MaxRequestPerMinute)
	requestLimiter := rate.NewLimiter(rate.Every(secondsPerRequest), 1)

	return &geminiAIRepository{
		cfg:            cfg,
		logger:         log,
		requestLimiter: requestLimiter,
		tokenLimiter:   ratelimit.NewTokenLimiter(cfg.Gemini.MaxTokenPerMinute),
		genAiClient:    genAiClient,
	}, nil
}

// AnalyzeCandidate asks the model for an entry recommendation.
func (r *geminiAIRepository) AnalyzeCandidate(ctx context.Context, req *dto.CandidateOracleRequest) (*dto.CandidateOracleResponse, error) {
	text, err := r.executeGeminiAIRequest(ctx, BuildCandidatePrompt(req))
	if err != nil {
		return nil, err
	}

	result, err := parseCandidateResponse(text)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to parse candidate analysis from Gemini response",
			logger.ErrorField(err), logger.StringField("ticker", req.Ticker), logger.StringField("response", text))
		return nil, err
	}
	return result, nil
}

// MonitorHolding asks the model whether a held position should be sold.
func (r *geminiAIRepository) MonitorHolding(ctx context.Context, req *dto.HoldingOracleRequest) (*dto.HoldingOracleResponse, error) {
	text, err := r.executeGeminiAIRequest(ctx, BuildHoldingPrompt(req))
	if err != nil {
		return nil, err
	}

	result, err := parseHoldingResponse(text)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to parse holding analysis from Gemini response",
			logger.ErrorField(err), logger.StringField("ticker", req.Holding.Ticker), logger.StringField("response", text))
		return nil, err
	}
	return result, nil
}

func (r *geminiAIRepository) executeGeminiAIRequest(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	geminiTokenResp, err := r.genAiClient.Models.CountTokens(ctx, r.cfg.Gemini.Model, contents, nil)
	if err != nil {
		return "", classifyGeminiError(fmt.Errorf("failed to count tokens: %w", err))
	}

	r.logger.DebugContext(ctx, "Gemini token count",
		logger.IntField("total_tokens", int(geminiTokenResp.TotalTokens)),
		logger.IntField("remaining", r.tokenLimiter.GetRemaining()),
	)

	if err := r.tokenLimiter.Wait(ctx, int(geminiTokenResp.TotalTokens)); err != nil {
		return "", fmt.Errorf("failed to wait for token limit: %w", err)
	}

	if err := r.requestLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("failed to wait for request limit: %w", err)
	}

	if r.cfg.Gemini.MaxTokenPerMinute > 0 && int(geminiTokenResp.TotalTokens) > r.cfg.Gemini.MaxTokenPerMinute/2 {
		r.logger.WarnContext(ctx, "Token has exceeded 50% of the limit", logger.IntField("remaining", r.tokenLimiter.GetRemaining()))
	}

	resp, err := r.genAiClient.Models.GenerateContent(ctx, r.cfg.Gemini.Model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.2),
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to send request to Gemini API", logger.ErrorField(err))
		return "", classifyGeminiError(fmt.Errorf("failed to generate content: %w", err))
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no content found in Gemini response", ErrTransient)
	}
	return text, nil
}

// trimJSONFence strips the markdown code fence models like to wrap JSON in.
func trimJSONFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "`json\n`")
	return strings.TrimSpace(text)
}

func parseCandidateResponse(text string) (*dto.CandidateOracleResponse, error) {
	rawJSON := trimJSONFence(text)

	var result dto.CandidateOracleResponse
	if err := json.Unmarshal([]byte(rawJSON), &result); err != nil {
		return nil, fmt.Errorf("%w: candidate analysis: %w", ErrInvalidResponse, err)
	}
	result.Raw = json.RawMessage(rawJSON)
	return &result, nil
}

func parseHoldingResponse(text string) (*dto.HoldingOracleResponse, error) {
	rawJSON := trimJSONFence(text)

	var result dto.HoldingOracleResponse
	if err := json.Unmarshal([]byte(rawJSON), &result); err != nil {
		return nil, fmt.Errorf("%w: holding analysis: %w", ErrInvalidResponse, err)
	}
	result.Raw = json.RawMessage(rawJSON)
	return &result, nil
}
