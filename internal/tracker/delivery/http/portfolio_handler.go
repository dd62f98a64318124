package http

import (
	"net/http"
	"strconv"

	"prism-insight/internal/tracker/dto"
	"prism-insight/internal/tracker/service"
	"prism-insight/pkg/logger"
	"prism-insight/pkg/utils"

	"github.com/labstack/echo/v4"
)

const defaultLimit = 100

// PortfolioHandler serves the read side of the ledger.
type PortfolioHandler struct {
	portfolioService service.PortfolioService
	logger           *logger.Logger
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioService service.PortfolioService, logger *logger.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: portfolioService, logger: logger}
}

// RegisterRoutes registers the portfolio routes to the Echo group.
func (h *PortfolioHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/holdings", h.GetHoldings)
	g.GET("/holdings/:ticker/decisions", h.GetHoldingDecisions)
	g.GET("/trades", h.GetTrades)
	g.GET("/watchlist", h.GetWatchlist)
	g.GET("/performance", h.GetPerformance)
}

// GetHoldings returns the open positions with their unrealised return.
func (h *PortfolioHandler) GetHoldings(c echo.Context) error {
	holdings, err := h.portfolioService.Holdings(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to get holdings", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get holdings"})
	}
	return c.JSON(http.StatusOK, holdings)
}

// GetHoldingDecisions returns the audit trail of one ticker, newest first.
func (h *PortfolioHandler) GetHoldingDecisions(c echo.Context) error {
	limit, err := parseLimit(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid limit"})
	}

	decisions, err := h.portfolioService.HoldingDecisions(c.Request().Context(), c.Param("ticker"), limit)
	if err != nil {
		h.logger.Error("Failed to get holding decisions", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get holding decisions"})
	}
	return c.JSON(http.StatusOK, decisions)
}

// GetTrades returns closed trades, optionally filtered by ticker.
func (h *PortfolioHandler) GetTrades(c echo.Context) error {
	limit, err := parseLimit(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid limit"})
	}

	trades, err := h.portfolioService.TradingHistory(c.Request().Context(), dto.TradingHistoryParam{
		Ticker: c.QueryParam("ticker"),
		Limit:  limit,
	})
	if err != nil {
		h.logger.Error("Failed to get trading history", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get trading history"})
	}
	return c.JSON(http.StatusOK, trades)
}

// GetWatchlist returns admission evaluations filtered by date, ticker and decision.
func (h *PortfolioHandler) GetWatchlist(c echo.Context) error {
	limit, err := parseLimit(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid limit"})
	}

	param := dto.WatchlistParam{
		Ticker:   c.QueryParam("ticker"),
		Decision: c.QueryParam("decision"),
		Limit:    limit,
	}
	if raw := c.QueryParam("date"); raw != "" {
		date, err := utils.ParseDate(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid date, expected YYYY-MM-DD"})
		}
		param.Date = &date
	}

	entries, err := h.portfolioService.Watchlist(c.Request().Context(), param)
	if err != nil {
		h.logger.Error("Failed to get watchlist", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get watchlist"})
	}
	return c.JSON(http.StatusOK, entries)
}

// GetPerformance returns aggregate statistics over closed trades.
func (h *PortfolioHandler) GetPerformance(c echo.Context) error {
	stats, err := h.portfolioService.Performance(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to compute performance", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to compute performance"})
	}
	return c.JSON(http.StatusOK, stats)
}

func parseLimit(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, echo.ErrBadRequest
	}
	return limit, nil
}
