package api

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"FinLab/internal/domain/models"
	"FinLab/internal/services/indicators"
	"FinLab/internal/usecase"
	xhttp "FinLab/pkg/http"
	xlogger "FinLab/pkg/logger"
)

// PipelineEchoHandler serves pipeline runs and indicator discovery.
type PipelineEchoHandler struct {
	logger   *xlogger.Logger
	runner   usecase.Runner
	batch    *usecase.BatchRunner
	reg      *indicators.Registry
	lookback time.Duration
	now      func() time.Time
}

func NewPipelineEchoHandler(logger *xlogger.Logger, runner usecase.Runner, batch *usecase.BatchRunner, reg *indicators.Registry, lookback time.Duration) *PipelineEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &PipelineEchoHandler{logger: logger, runner: runner, batch: batch, reg: reg, lookback: lookback, now: time.Now}
}

func (h *PipelineEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/pipeline/run", h.Run)
	g.POST("/pipeline/batch", h.Batch)
	g.GET("/indicators", h.Indicators)
	g.GET("/indicators/failed", h.FailedIndicators)
}

func (h *PipelineEchoHandler) Run(c echo.Context) error {
	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	params, err := usecase.ParamsFromRun(*req, h.lookback, h.now())
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	res, err := h.runner.Run(c.Request().Context(), params)
	if err != nil {
		h.logger.Error("pipeline run error", xlogger.String("ticker", req.Ticker), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, stageAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PipelineEchoHandler) Batch(c echo.Context) error {
	req := &models.BatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	params, err := usecase.ParamsFromBatch(*req, h.lookback, h.now())
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	items := h.batch.Run(c.Request().Context(), params, req.Tickers)
	return xhttp.ListResponse(c, items, int64(len(items)))
}

func (h *PipelineEchoHandler) Indicators(c echo.Context) error {
	req := &models.IndicatorListRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var specs []indicators.Spec
	if req.Category != "" {
		specs = h.reg.ByCategory(indicators.Category(req.Category))
	} else {
		specs = h.reg.List()
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=300")
	return xhttp.ListResponse(c, specs, int64(len(specs)))
}

func (h *PipelineEchoHandler) FailedIndicators(c echo.Context) error {
	failed := h.reg.Failed()
	return xhttp.ListResponse(c, failed, int64(len(failed)))
}

// stageAppError maps a pipeline failure kind to an HTTP status.
func stageAppError(err error) *xhttp.AppError {
	var se *usecase.StageError
	if !errors.As(err, &se) {
		return xhttp.InternalError("pipeline failed").WithError(err)
	}
	var appErr *xhttp.AppError
	switch se.Kind {
	case usecase.KindConfig:
		appErr = xhttp.BadRequestError(se.Err.Error())
	case usecase.KindData:
		appErr = xhttp.UnprocessableError(se.Err.Error())
	case usecase.KindProvider:
		appErr = xhttp.BadGatewayError("upstream failure")
	case usecase.KindTimeout:
		appErr = xhttp.TimeoutError("pipeline deadline exceeded")
	default:
		appErr = xhttp.InternalError("pipeline failed")
	}
	appErr = appErr.WithParam("stage", se.Stage).WithParam("ticker", se.Ticker).WithError(err)
	if se.Fold >= 0 {
		appErr = appErr.WithParam("fold", se.Fold)
	}
	return appErr
}
