package api

import (
	"net/http"

	"MT5Pull/internal/domain/models"
	"MT5Pull/internal/domain/repository"
	"MT5Pull/internal/service/ratelimit"
	"MT5Pull/internal/usecase"
	xhttp "MT5Pull/pkg/http"
	xlogger "MT5Pull/pkg/logger"
	"MT5Pull/pkg/util"

	"github.com/labstack/echo/v4"
)

// CandlesEchoHandler exposes the candle gateway over HTTP. Paths and
// response bodies stay wire-compatible with the previous service.
type CandlesEchoHandler struct {
	logger   *xlogger.Logger
	candles  *usecase.CandleQueryService
	status   *usecase.StatusReporter
	sessions usecase.SessionControl
	delta    usecase.DeltaControl
	rl       *ratelimit.Limiter
}

func NewCandlesEchoHandler(
	logger *xlogger.Logger,
	candles *usecase.CandleQueryService,
	status *usecase.StatusReporter,
	sessions usecase.SessionControl,
	delta usecase.DeltaControl,
) *CandlesEchoHandler {
	return &CandlesEchoHandler{
		logger:   logger,
		candles:  candles,
		status:   status,
		sessions: sessions,
		delta:    delta,
		rl:       ratelimit.New(),
	}
}

func (h *CandlesEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/status", h.Status)
	e.POST("/get_candles/", h.GetCandles)
	e.POST("/get_candles_by_offset/", h.GetCandlesByOffset)
	e.POST("/initialize/", h.Initialize)
	e.POST("/reset_session/", h.ResetSession)
	e.POST("/delta/", h.SetDelta)
	e.DELETE("/delta/", h.ResetDelta)
}

// Status returns the readiness snapshot. Never touches the session.
func (h *CandlesEchoHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.status.Snapshot())
}

// GetCandles serves range queries. The response is a bare JSON array of
// candles, ascending by open time, matching the legacy payload shape.
func (h *CandlesEchoHandler) GetCandles(c echo.Context) error {
	req := &models.CandleRangeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, "range") {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}

	tf, ok := repository.ParseTimeframe(req.TimeFrame)
	if !ok {
		return xhttp.AppErrorResponse(c, toAppError(models.ErrInvalidTimeframe))
	}
	from, ok := util.ParseTime(req.TimeFrom)
	if !ok {
		return xhttp.AppErrorResponse(c, toAppError(models.ErrInvalidTime))
	}
	to, ok := util.ParseTime(req.TimeTo)
	if !ok {
		return xhttp.AppErrorResponse(c, toAppError(models.ErrInvalidTime))
	}

	candles, err := h.candles.FetchRange(c.Request().Context(), req.Symbol, tf, from, to)
	if err != nil {
		h.logger.Error("range fetch failed",
			xlogger.String("symbol", req.Symbol),
			xlogger.String("time_frame", req.TimeFrame),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return c.JSON(http.StatusOK, candles)
}

// GetCandlesByOffset serves offset/count queries.
func (h *CandlesEchoHandler) GetCandlesByOffset(c echo.Context) error {
	req := &models.CandleOffsetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, "offset") {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}

	tf, ok := repository.ParseTimeframe(req.TimeFrame)
	if !ok {
		return xhttp.AppErrorResponse(c, toAppError(models.ErrInvalidTimeframe))
	}

	candles, err := h.candles.FetchByOffset(c.Request().Context(), req.Symbol, tf, req.Offset, req.Count)
	if err != nil {
		h.logger.Error("offset fetch failed",
			xlogger.String("symbol", req.Symbol),
			xlogger.Int("offset", req.Offset),
			xlogger.Int("count", req.Count),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return c.JSON(http.StatusOK, candles)
}

// Initialize binds credentials and opens the terminal session.
func (h *CandlesEchoHandler) Initialize(c echo.Context) error {
	req := &models.InitializeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.sessions.Initialize(c.Request().Context(), req.Credentials()); err != nil {
		h.logger.Error("initialize failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, h.status.Snapshot())
}

// ResetSession tears down and re-opens the session with known credentials.
func (h *CandlesEchoHandler) ResetSession(c echo.Context) error {
	if err := h.sessions.Reset(c.Request().Context()); err != nil {
		h.logger.Error("session reset failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, h.status.Snapshot())
}

// SetDelta applies a manual delta override.
func (h *CandlesEchoHandler) SetDelta(c echo.Context) error {
	req := &models.DeltaRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.delta.SetManual(req.Delta); err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, h.status.Snapshot())
}

// ResetDelta clears the delta; the next query re-detects it.
func (h *CandlesEchoHandler) ResetDelta(c echo.Context) error {
	h.delta.Clear()
	return xhttp.NoContentResponse(c)
}

func (h *CandlesEchoHandler) allow(c echo.Context, op string) bool {
	return h.rl.Allow(c.RealIP()+":"+op, 20, 10)
}
