package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"AaveRisk/internal/domain"
	"AaveRisk/internal/domain/repository"
	"AaveRisk/internal/usecase"
	xhttp "AaveRisk/pkg/http"
	applogger "AaveRisk/pkg/logger"
	"AaveRisk/pkg/queue"
)

// IngestionHandler exposes operational controls of the daily OHLC job.
type IngestionHandler struct {
	logger    *applogger.Logger
	ingestion *usecase.OHLCIngestion
	refresher *usecase.MarketRefresher
	book      repository.AddressBook
	nextRun   func() (string, bool)
}

func NewIngestionHandler(logger *applogger.Logger, ingestion *usecase.OHLCIngestion, refresher *usecase.MarketRefresher, book repository.AddressBook) *IngestionHandler {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &IngestionHandler{logger: logger, ingestion: ingestion, refresher: refresher, book: book}
}

// SetNextRun reports the next scheduled run in the status payload.
func (h *IngestionHandler) SetNextRun(fn func() (string, bool)) { h.nextRun = fn }

func (h *IngestionHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/ingestion")
	g.POST("/run", h.Run)
	g.POST("/markets/:chain/refresh", h.Refresh)
	g.GET("/status", h.Status)
}

// Run starts a full run in the background. The run outlives the request.
func (h *IngestionHandler) Run(c echo.Context) error {
	id, err := h.ingestion.RunAsync(context.WithoutCancel(c.Request().Context()))
	if err != nil {
		return errorResponse(c, "ingestion_run", err)
	}
	h.logger.Info("ingestion run requested", applogger.String("run_id", id))
	return xhttp.AcceptedResponse(c, map[string]string{"runId": id})
}

func (h *IngestionHandler) Refresh(c echo.Context) error {
	chain := c.Param("chain")
	if _, ok := h.book.Market(chain); !ok {
		return errorResponse(c, "ingestion_refresh", domain.ErrUnknownMarket)
	}
	id, err := h.refresher.Enqueue(c.Request().Context(), chain, "api")
	if err != nil {
		h.logger.Error("enqueue refresh error", applogger.String("chain", chain), applogger.Error(err))
		return errorResponse(c, "ingestion_refresh", err)
	}
	return xhttp.AcceptedResponse(c, map[string]string{"chain": chain, "job": usecase.RefreshMarketType, "messageId": id})
}

type ingestionStatus struct {
	Running    bool               `json:"running"`
	NextRun    string             `json:"nextRun,omitempty"`
	LastReport *usecase.RunReport `json:"lastReport,omitempty"`
	Queue      *queue.Depth       `json:"queue,omitempty"`
}

func (h *IngestionHandler) Status(c echo.Context) error {
	st := ingestionStatus{Running: h.ingestion.Running(), LastReport: h.ingestion.LastReport()}
	if h.nextRun != nil {
		if next, ok := h.nextRun(); ok {
			st.NextRun = next
		}
	}
	// a stale or missing backlog does not fail the status call
	if d, err := h.refresher.Backlog(c.Request().Context()); err != nil {
		h.logger.Warn("queue depth unavailable", applogger.Error(err))
	} else {
		st.Queue = d
	}
	return xhttp.SuccessResponse(c, st)
}
