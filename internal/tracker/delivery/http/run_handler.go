package http

import (
	"context"
	"errors"
	"net/http"

	"prism-insight/internal/tracker/dto"
	"prism-insight/internal/tracker/service"
	"prism-insight/pkg/logger"
	"prism-insight/pkg/utils"

	"github.com/labstack/echo/v4"
)

// RunHandler triggers tracker runs on demand.
type RunHandler struct {
	trackerService service.TrackerService
	db             service.Pinger
	// runCtx outlives the request so background runs survive the response.
	runCtx context.Context
	logger *logger.Logger
}

// NewRunHandler creates a new RunHandler. Background runs are bound to runCtx.
func NewRunHandler(runCtx context.Context, trackerService service.TrackerService, db service.Pinger, logger *logger.Logger) *RunHandler {
	return &RunHandler{trackerService: trackerService, db: db, runCtx: runCtx, logger: logger}
}

// RegisterRoutes registers the run routes to the Echo group.
func (h *RunHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/runs/:mode", h.TriggerRun)
	g.GET("/health", h.Health)
}

// TriggerRun starts a morning or afternoon run. With ?wait=true the request
// blocks and returns the run summary; otherwise the run continues in the
// background and 202 is returned.
func (h *RunHandler) TriggerRun(c echo.Context) error {
	mode, err := dto.ParseRunMode(c.Param("mode"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}
	opts := service.RunOptions{Force: c.QueryParam("force") == "true"}

	if c.QueryParam("wait") == "true" {
		summary, err := h.trackerService.Run(c.Request().Context(), mode, opts)
		switch {
		case errors.Is(err, service.ErrRunInProgress):
			return c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
		case errors.Is(err, service.ErrSnapshotUnavailable), errors.Is(err, service.ErrLedgerUnavailable):
			return c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: err.Error()})
		case err != nil:
			return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusOK, summary)
	}

	utils.GoSafe(func() {
		if _, err := h.trackerService.Run(h.runCtx, mode, opts); err != nil {
			h.logger.Error("Triggered run failed", logger.ErrorField(err), logger.StringField("mode", mode.String()))
		}
	})
	return c.JSON(http.StatusAccepted, dto.RunAcceptedResponse{Mode: mode, Message: "run started"})
}

// Health reports whether the ledger is reachable.
func (h *RunHandler) Health(c echo.Context) error {
	if err := h.db.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
