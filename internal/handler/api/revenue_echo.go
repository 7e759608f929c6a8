package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"HotelRevenue/internal/domain/models"
	domrepo "HotelRevenue/internal/domain/repository"
	"HotelRevenue/internal/service/ratelimit"
	"HotelRevenue/internal/usecase"
	xhttp "HotelRevenue/pkg/http"
	xlogger "HotelRevenue/pkg/logger"
	"HotelRevenue/pkg/queue"
)

// RevenueEchoHandler exposes the revenue pipeline over HTTP.
type RevenueEchoHandler struct {
	logger  *xlogger.Logger
	uc      *usecase.RevenueUseCase
	limiter *ratelimit.Limiter
	runs    queue.Tracker
}

// HandlerOption configures the revenue handler.
type HandlerOption func(*RevenueEchoHandler)

// WithRateLimit limits the endpoints that start pipeline steps.
func WithRateLimit(l *ratelimit.Limiter) HandlerOption {
	return func(h *RevenueEchoHandler) { h.limiter = l }
}

// WithRunQueue enables background runs through POST /api/run {"async":true}
// and their status under GET /api/runs/:id.
func WithRunQueue(q queue.Tracker) HandlerOption {
	return func(h *RevenueEchoHandler) { h.runs = q }
}

func NewRevenueEchoHandler(logger *xlogger.Logger, uc *usecase.RevenueUseCase, opts ...HandlerOption) *RevenueEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &RevenueEchoHandler{logger: logger, uc: uc}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *RevenueEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/kpis", h.KPIs)
	g.GET("/forecasts", h.Forecasts)

	var pipeline []echo.MiddlewareFunc
	if h.limiter != nil {
		pipeline = append(pipeline, h.limiter.Middleware())
	}
	g.POST("/forecasts", h.GenerateForecasts, pipeline...)
	g.POST("/pricing", h.ApplyPricing, pipeline...)
	g.POST("/export", h.Export, pipeline...)
	g.POST("/run", h.Run, pipeline...)
	g.GET("/runs/:id", h.RunStatus)
	g.GET("/dashboard", h.Dashboard)
	g.GET("/exports/pending", h.PendingExports)
	g.GET("/recommendations", h.Recommendations)
	g.POST("/recommendations/:id/approve", h.Approve)
	g.POST("/recommendations/exported", h.MarkExported)
	g.GET("/rules", h.Rules)
	g.POST("/rules/reload", h.ReloadRules)
}

// result maps an orchestrator envelope to an HTTP status. A failed step is a
// 422 with the envelope as body; a held run lock is a 409.
func result(c echo.Context, res models.Result) error {
	switch {
	case res.Success:
		return xhttp.SuccessResponse(c, res.Message, res.Data)
	case res.Message == models.ErrRunInProgress.Error():
		return xhttp.EnvelopeResponse(c, http.StatusConflict, false, res.Message, res.Data)
	default:
		return xhttp.EnvelopeResponse(c, http.StatusUnprocessableEntity, false, res.Message, res.Data)
	}
}

var lifecycleErrors = []xhttp.ErrorStatus{
	{Target: models.ErrNotFound, Status: http.StatusNotFound, Code: "ERR_NOT_FOUND"},
	{Target: models.ErrInvalidTransition, Status: http.StatusConflict, Code: "ERR_INVALID_TRANSITION"},
	{Target: models.ErrRunInProgress, Status: http.StatusConflict, Code: "ERR_RUN_IN_PROGRESS"},
	{Target: queue.ErrUnknownJob, Status: http.StatusNotFound, Code: "ERR_UNKNOWN_JOB"},
}

var errNoRunQueue = xhttp.BadRequestError("background runs are not configured")

// storeError maps lifecycle errors to their HTTP form.
func (h *RevenueEchoHandler) storeError(c echo.Context, op string, err error) error {
	classified := xhttp.Classify(err, lifecycleErrors...)
	var appErr *xhttp.AppError
	if !errors.As(classified, &appErr) {
		h.logger.Error(op+" failed", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, classified)
}

func roomFilter(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

func strFilter(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func dateRange(start, end string) (time.Time, time.Time, error) {
	from, err := xhttp.ParseDatePtr("start_date", start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := xhttp.ParseDatePtr("end_date", end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(*from) {
		return time.Time{}, time.Time{}, xhttp.BadRequestError("end_date must not be before start_date")
	}
	return *from, *to, nil
}

func (h *RevenueEchoHandler) KPIs(c echo.Context) error {
	req := &models.KPIRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, err := dateRange(req.StartDate, req.EndDate)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return result(c, h.uc.AnalyzeKPIs(c.Request().Context(), from, to, roomFilter(req.RoomTypeID)))
}

func (h *RevenueEchoHandler) Forecasts(c echo.Context) error {
	req := &models.KPIRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, err := dateRange(req.StartDate, req.EndDate)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	r, err := domrepo.NewDateRange(from, to)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	forecasts, err := h.uc.ListForecasts(c.Request().Context(), r, roomFilter(req.RoomTypeID))
	if err != nil {
		return h.storeError(c, "list forecasts", err)
	}
	return xhttp.SuccessResponse(c, "", forecasts)
}

func (h *RevenueEchoHandler) GenerateForecasts(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, err := dateRange(req.StartDate, req.EndDate)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return result(c, h.uc.GenerateForecasts(c.Request().Context(), from, to, req.Horizon, roomFilter(req.RoomTypeID)))
}

func (h *RevenueEchoHandler) ApplyPricing(c echo.Context) error {
	req := &models.PricingRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return result(c, h.uc.ApplyPricingRules(c.Request().Context(), req.Horizon, roomFilter(req.RoomTypeID)))
}

func (h *RevenueEchoHandler) Export(c echo.Context) error {
	req := &models.ExportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, err := xhttp.ParseDatePtr("start_date", req.StartDate)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	to, err := xhttp.ParseDatePtr("end_date", req.EndDate)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return result(c, h.uc.ExportTariffs(c.Request().Context(), from, to, roomFilter(req.RoomTypeID), strFilter(req.Channel)))
}

func (h *RevenueEchoHandler) Run(c echo.Context) error {
	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	p := models.RunParams{
		Horizon:    req.Horizon,
		RoomTypeID: roomFilter(req.RoomTypeID),
		Export:     req.Export,
		Channel:    strFilter(req.Channel),
	}
	dates := []struct {
		field string
		raw   string
		dst   **time.Time
	}{
		{"export_start", req.ExportStart, &p.ExportStart},
		{"export_end", req.ExportEnd, &p.ExportEnd},
	}
	for _, d := range dates {
		v, err := xhttp.ParseDatePtr(d.field, d.raw)
		if err != nil {
			return xhttp.AppErrorResponse(c, err)
		}
		*d.dst = v
	}
	if start, err := xhttp.ParseDatePtr("start_date", req.StartDate); err != nil {
		return xhttp.AppErrorResponse(c, err)
	} else if start != nil {
		p.Start = *start
	}
	if end, err := xhttp.ParseDatePtr("end_date", req.EndDate); err != nil {
		return xhttp.AppErrorResponse(c, err)
	} else if end != nil {
		p.End = *end
	}
	if req.Async {
		if h.runs == nil {
			return xhttp.AppErrorResponse(c, errNoRunQueue)
		}
		id, err := usecase.EnqueueRun(c.Request().Context(), h.runs, p)
		if err != nil {
			h.logger.Error("enqueue run failed", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		return xhttp.EnvelopeResponse(c, http.StatusAccepted, true, "run queued", map[string]string{"job_id": id})
	}
	return result(c, h.uc.RunFull(c.Request().Context(), p))
}

// RunStatus reports where a background run is.
func (h *RevenueEchoHandler) RunStatus(c echo.Context) error {
	if h.runs == nil {
		return xhttp.AppErrorResponse(c, errNoRunQueue)
	}
	st, err := h.runs.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.storeError(c, "run status", err)
	}
	return xhttp.SuccessResponse(c, string(st.State), st)
}

func (h *RevenueEchoHandler) Dashboard(c echo.Context) error {
	return result(c, h.uc.DashboardData(c.Request().Context()))
}

func (h *RevenueEchoHandler) PendingExports(c echo.Context) error {
	return result(c, h.uc.PendingExports(c.Request().Context()))
}

func (h *RevenueEchoHandler) Recommendations(c echo.Context) error {
	req := &models.RecommendationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	f := models.RecommendationFilter{RoomTypeID: roomFilter(req.RoomTypeID), Channel: strFilter(req.Channel)}
	var err error
	if f.From, err = xhttp.ParseDatePtr("start_date", req.StartDate); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	if f.To, err = xhttp.ParseDatePtr("end_date", req.EndDate); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	if req.State != "" {
		f.States = []models.RecommendationState{models.RecommendationState(req.State)}
	}
	recs, err := h.uc.ListRecommendations(c.Request().Context(), f)
	if err != nil {
		return h.storeError(c, "list recommendations", err)
	}
	return xhttp.SuccessResponse(c, "", recs)
}

func (h *RevenueEchoHandler) Approve(c echo.Context) error {
	req := &models.ApproveRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rec, err := h.uc.Approve(c.Request().Context(), req.ID, req.ApprovedRate)
	if err != nil {
		return h.storeError(c, "approve", err)
	}
	return xhttp.SuccessResponse(c, "approved", rec)
}

func (h *RevenueEchoHandler) MarkExported(c echo.Context) error {
	req := &models.MarkExportedRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.uc.MarkExported(c.Request().Context(), req.IDs); err != nil {
		return h.storeError(c, "mark exported", err)
	}
	return xhttp.SuccessResponse(c, "exported", req.IDs)
}

func (h *RevenueEchoHandler) Rules(c echo.Context) error {
	rules, err := h.uc.Rules(c.Request().Context())
	if err != nil {
		return h.storeError(c, "load rules", err)
	}
	return xhttp.SuccessResponse(c, "", rules)
}

func (h *RevenueEchoHandler) ReloadRules(c echo.Context) error {
	return result(c, h.uc.ReloadRules(c.Request().Context()))
}

var _ xhttp.Handler = (*RevenueEchoHandler)(nil)
