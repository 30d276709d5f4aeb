package api

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"AaveRisk/internal/domain/models"
	"AaveRisk/internal/usecase"
	apimetrics "AaveRisk/internal/service/metrics"
	xhttp "AaveRisk/pkg/http"
	applogger "AaveRisk/pkg/logger"
)

// AaveMarketsHandler serves market listings and the stress scenario.
type AaveMarketsHandler struct {
	logger *applogger.Logger
	status *usecase.MarketStatusUseCase
}

func NewAaveMarketsHandler(logger *applogger.Logger, status *usecase.MarketStatusUseCase) *AaveMarketsHandler {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &AaveMarketsHandler{logger: logger, status: status}
}

func (h *AaveMarketsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/aave-markets")
	g.GET("", h.List)
	g.GET("/:chain/status", h.Status)
	g.GET("/:chain/reserves", h.Reserves)
}

func (h *AaveMarketsHandler) List(c echo.Context) error {
	markets, err := h.status.ListMarkets(c.Request().Context())
	if err != nil {
		h.logger.Error("list markets error", applogger.Error(err))
		return errorResponse(c, "markets_list", err)
	}
	return xhttp.ListResponse(c, markets, int64(len(markets)))
}

// Status returns the monthly Bollinger stress scenario of an account.
func (h *AaveMarketsHandler) Status(c echo.Context) error {
	start := time.Now()
	req := &models.MarketStatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.status.GetMarketStatus(c.Request().Context(), models.Account{Address: strings.ToLower(req.Account)}, req.Chain)
	apimetrics.APILatency.WithLabelValues("market_status").Observe(time.Since(start).Seconds())
	if err != nil {
		h.logger.Error("market status error",
			applogger.String("chain", req.Chain),
			applogger.String("account", req.Account),
			applogger.Error(err),
		)
		return errorResponse(c, "market_status", err)
	}
	for _, rs := range res.MonthlyBBScenario.ReserveStatusList {
		if rs.MonthlyBB == nil {
			apimetrics.BandsUnavailable.WithLabelValues(req.Chain, "no_band").Inc()
		}
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AaveMarketsHandler) Reserves(c echo.Context) error {
	chain := c.Param("chain")
	assets, err := h.status.Reserves(chain)
	if err != nil {
		return errorResponse(c, "market_reserves", err)
	}
	return xhttp.ListResponse(c, assets, int64(len(assets)))
}
