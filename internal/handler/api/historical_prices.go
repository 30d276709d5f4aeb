package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"AaveRisk/internal/domain/models"
	domrepo "AaveRisk/internal/domain/repository"
	"AaveRisk/internal/usecase"
	apimetrics "AaveRisk/internal/service/metrics"
	xhttp "AaveRisk/pkg/http"
	applogger "AaveRisk/pkg/logger"
)

// HistoricalPricesHandler exposes the stored OHLC series.
type HistoricalPricesHandler struct {
	logger *applogger.Logger
	uc     *usecase.HistoricalPricesUseCase
}

func NewHistoricalPricesHandler(logger *applogger.Logger, uc *usecase.HistoricalPricesUseCase) *HistoricalPricesHandler {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &HistoricalPricesHandler{logger: logger, uc: uc}
}

func (h *HistoricalPricesHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/historical-price-data")
	g.GET("/ohlc/:address", h.Candles)
	g.GET("/ohlc/:address/latest", h.Latest)
	g.GET("/ohlc/:address/aggregated", h.Aggregated)
	g.GET("/ohlc/:address/stats", h.Stats)
	g.GET("/ohlc/:address/bollinger", h.Bollinger)
	g.POST("/ohlc", h.Insert)
	g.POST("/ohlc/batch", h.InsertBatch)
}

func (h *HistoricalPricesHandler) Candles(c echo.Context) error {
	req := &models.OHLCRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	order, err := domrepo.ParseSortOrder(req.Order)
	if err != nil {
		return errorResponse(c, "ohlc", err)
	}
	from := xhttp.ParseTimeDefault(req.From, time.Time{})
	to := xhttp.ParseTimeDefault(req.To, time.Time{})

	start := time.Now()
	res, err := h.uc.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Address: req.Address,
		ChainID: req.ChainID,
		From:    from,
		To:      to,
		Order:   order,
		Limit:   req.Limit,
	})
	apimetrics.APILatency.WithLabelValues("ohlc").Observe(time.Since(start).Seconds())
	if err != nil {
		h.logger.Error("ohlc query error", applogger.String("address", req.Address), applogger.Error(err))
		return errorResponse(c, "ohlc", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *HistoricalPricesHandler) Latest(c echo.Context) error {
	req := &models.LatestOHLCRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	candle, err := h.uc.Latest(c.Request().Context(), req.Address, req.ChainID)
	if err != nil {
		h.logger.Error("latest ohlc error", applogger.String("address", req.Address), applogger.Error(err))
		return errorResponse(c, "ohlc_latest", err)
	}
	if candle == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no candles for %s on chain %d", req.Address, req.ChainID))
	}
	return xhttp.SuccessResponse(c, candle)
}

func (h *HistoricalPricesHandler) Aggregated(c echo.Context) error {
	req := &models.AggregatedOHLCRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from := xhttp.ParseTimeDefault(req.From, time.Time{})
	to := xhttp.ParseTimeDefault(req.To, time.Time{})

	start := time.Now()
	res, err := h.uc.Aggregated(c.Request().Context(), usecase.AggregateParams{
		GetCandlesParams: usecase.GetCandlesParams{
			Address: req.Address,
			ChainID: req.ChainID,
			From:    from,
			To:      to,
			Limit:   req.Limit,
		},
		Interval: domrepo.NormalizeInterval(req.Interval),
	})
	apimetrics.APILatency.WithLabelValues("ohlc_aggregated").Observe(time.Since(start).Seconds())
	if err != nil {
		h.logger.Error("aggregated ohlc error", applogger.String("address", req.Address), applogger.Error(err))
		return errorResponse(c, "ohlc_aggregated", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *HistoricalPricesHandler) Stats(c echo.Context) error {
	req := &models.PriceStatsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, _ := xhttp.ParseTime(req.From)
	to, _ := xhttp.ParseTime(req.To)

	st, err := h.uc.Stats(c.Request().Context(), req.Address, req.ChainID, from, to)
	if err != nil {
		h.logger.Error("price stats error", applogger.String("address", req.Address), applogger.Error(err))
		return errorResponse(c, "ohlc_stats", err)
	}
	if st == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no candles in range"))
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *HistoricalPricesHandler) Bollinger(c echo.Context) error {
	req := &models.BollingerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	band, err := h.uc.MonthlyBand(c.Request().Context(), req.Address, req.ChainID, req.Window, req.Multiplier)
	if err != nil {
		return errorResponse(c, "ohlc_bollinger", err)
	}
	return xhttp.SuccessResponse(c, band)
}

func (h *HistoricalPricesHandler) Insert(c echo.Context) error {
	req := &models.InsertCandleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ts, _ := xhttp.ParseTime(req.Timestamp)
	candle := h.uc.CandleFromRequest(*req, ts)
	if err := h.uc.Insert(c.Request().Context(), candle); err != nil {
		h.logger.Error("insert candle error", applogger.String("address", candle.Address), applogger.Error(err))
		return errorResponse(c, "ohlc_insert", err)
	}
	return xhttp.CreatedResponse(c, candle)
}

func (h *HistoricalPricesHandler) InsertBatch(c echo.Context) error {
	req := &models.InsertCandleBatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	candles := make([]models.Candle, len(req.Candles))
	for i, r := range req.Candles {
		ts, _ := xhttp.ParseTime(r.Timestamp)
		candles[i] = h.uc.CandleFromRequest(r, ts)
	}
	if err := h.uc.InsertBatch(c.Request().Context(), candles); err != nil {
		h.logger.Error("insert candle batch error", applogger.Int("rows", len(candles)), applogger.Error(err))
		return errorResponse(c, "ohlc_insert_batch", err)
	}
	return xhttp.DataResponse(c, http.StatusCreated, map[string]int{"inserted": len(candles)})
}
