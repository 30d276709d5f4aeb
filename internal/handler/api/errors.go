package api

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"

	"AaveRisk/internal/domain"
	apimetrics "AaveRisk/internal/service/metrics"
	xhttp "AaveRisk/pkg/http"
	"AaveRisk/pkg/queue"
)

// toAppError maps domain sentinels onto HTTP errors.
func toAppError(c echo.Context, err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, domain.ErrUnknownMarket):
		return xhttp.UnknownMarketError(c.Param("chain")).WithError(err)
	case errors.Is(err, domain.ErrInsufficientData):
		return xhttp.InsufficientDataError("not enough data to compute the band").WithError(err)
	case errors.Is(err, domain.ErrInvalidQuery):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, domain.ErrQueueUnavailable), errors.Is(err, queue.ErrNotRunning):
		return xhttp.UnavailableError("refresh queue unavailable").WithError(err)
	case errors.Is(err, domain.ErrAlreadyRunning):
		return xhttp.ConflictError("ingestion already running").WithError(err)
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return xhttp.TimeoutError("request timed out").WithError(err)
	case errors.Is(err, domain.ErrCollaborator):
		return xhttp.UpstreamError("upstream dependency failed").WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}

func errorResponse(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(c, err)
	apimetrics.APIErrors.WithLabelValues(endpoint, appErr.Code).Inc()
	return xhttp.AppErrorResponse(c, appErr)
}
