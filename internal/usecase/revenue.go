package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"HotelRevenue/internal/domain/models"
	domrepo "HotelRevenue/internal/domain/repository"
	"HotelRevenue/internal/services/export"
	"HotelRevenue/internal/services/forecasting"
	"HotelRevenue/internal/services/kpi"
	"HotelRevenue/internal/services/pricing"
	"HotelRevenue/pkg/cache"
	applogger "HotelRevenue/pkg/logger"
	"HotelRevenue/pkg/util"
)

// Step names used in run reports and metrics.
const (
	StepAnalyze  = "analyze"
	StepForecast = "forecast"
	StepPricing  = "pricing"
	StepExport   = "export"

	RunLockKey      = "revenue:run:lock"
	dashboardAhead  = 90
	kpiCachePrefix  = "kpi"
	msgNoKPIData    = "no KPI data for range"
	msgNoHistory    = "no occupancy history for range"
	msgNoForecasts  = "no forecasts in pricing horizon"
	msgNoExportRows = "no tariffs to export"
)

// Config tunes the orchestrator.
type Config struct {
	ForecastDays int
	HistoryDays  int
	KPITTL       time.Duration
	RunLockTTL   time.Duration
}

// KPIReport is the data of a successful analysis step.
type KPIReport struct {
	Rows       []models.KPIRow       `json:"rows"`
	ByRoomType []models.AggregateRow `json:"by_room_type"`
	Patterns   models.Patterns       `json:"patterns"`
	YoY        []models.YoYRow       `json:"yoy"`
}

// RevenueUseCase sequences KPI analysis, forecasting, pricing and export.
// Every step reports a Result envelope; errors never escape a step.
type RevenueUseCase struct {
	store     domrepo.Store
	kpi       *kpi.Calculator
	forecasts *forecasting.Engine
	pricing   *pricing.Engine
	exporter  *export.Exporter
	events    domrepo.EventPublisher
	cache     cache.Service
	metrics   domrepo.Metrics
	cfg       Config
	now       func() time.Time
	log       *applogger.Logger
}

func NewRevenueUseCase(
	store domrepo.Store,
	calc *kpi.Calculator,
	forecasts *forecasting.Engine,
	pricer *pricing.Engine,
	exporter *export.Exporter,
	events domrepo.EventPublisher,
	c cache.Service,
	metrics domrepo.Metrics,
	cfg Config,
	log *applogger.Logger,
) *RevenueUseCase {
	if cfg.ForecastDays <= 0 {
		cfg.ForecastDays = 90
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 365
	}
	if cfg.RunLockTTL <= 0 {
		cfg.RunLockTTL = 30 * time.Minute
	}
	if events == nil {
		events = noopEvents{}
	}
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &RevenueUseCase{
		store: store, kpi: calc, forecasts: forecasts, pricing: pricer, exporter: exporter,
		events: events, cache: c, metrics: metrics, cfg: cfg,
		now: time.Now, log: log,
	}
}

type noopEvents struct{}

func (noopEvents) PublishRecommendations(context.Context, string, []models.TariffRecommendation) error {
	return nil
}
func (noopEvents) PublishExport(context.Context, models.ExportSummary, []int64) error { return nil }
func (noopEvents) Close() error                                                       { return nil }

func (uc *RevenueUseCase) today() time.Time { return util.Day(uc.now()) }

// observe records the step outcome and converts an adapter error to a failed envelope.
func (uc *RevenueUseCase) observe(step string, start time.Time, res models.Result, err error) models.Result {
	if err != nil {
		uc.log.Error("step failed", applogger.String("step", step), applogger.Error(err))
		uc.metrics.RecordError(step)
		res = models.Fail(err.Error(), nil)
	}
	uc.metrics.RecordStep(step, res.Success, time.Since(start).Seconds())
	return res
}

// lock takes the run lock. The returned release is a no-op without a cache.
func (uc *RevenueUseCase) lock(ctx context.Context) (func(), error) {
	if uc.cache == nil {
		return func() {}, nil
	}
	ok, err := uc.cache.TryLock(ctx, RunLockKey, uc.cfg.RunLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, models.ErrRunInProgress
	}
	return func() {
		// the caller's context may already be cancelled
		if err := uc.cache.Unlock(context.Background(), RunLockKey); err != nil {
			uc.log.Warn("release run lock", applogger.Error(err))
		}
	}, nil
}

// AnalyzeKPIs reports daily KPIs, room-type aggregates, patterns and the
// year-over-year comparison for [start, end].
func (uc *RevenueUseCase) AnalyzeKPIs(ctx context.Context, start, end time.Time, roomTypeID *int64) models.Result {
	t0 := time.Now()
	res, err := uc.analyze(ctx, start, end, roomTypeID)
	return uc.observe(StepAnalyze, t0, res, err)
}

func (uc *RevenueUseCase) analyze(ctx context.Context, start, end time.Time, roomTypeID *int64) (models.Result, error) {
	r, err := domrepo.NewDateRange(start, end)
	if err != nil {
		return models.Result{}, err
	}

	key := cache.GenerateKeyWithParams(kpiCachePrefix, util.FormatDate(r.From), util.FormatDate(r.To), roomTypeID)
	if uc.cache != nil {
		var cached KPIReport
		if err := uc.cache.Get(ctx, key, &cached); err == nil {
			return models.OK(fmt.Sprintf("%d KPI rows", len(cached.Rows)), cached), nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			uc.log.Warn("kpi cache read", applogger.Error(err))
		}
	}

	rows, err := uc.kpi.Calculate(ctx, r, roomTypeID)
	if err != nil {
		return models.Result{}, err
	}
	if len(rows) == 0 {
		return models.Fail(msgNoKPIData, nil), nil
	}
	yoy, err := uc.kpi.YearOverYear(ctx, r, roomTypeID)
	if err != nil {
		return models.Result{}, err
	}
	report := KPIReport{
		Rows:       rows,
		ByRoomType: kpi.AggregateRows(rows, models.GroupByRoomType),
		Patterns:   uc.kpi.PatternsFor(rows),
		YoY:        yoy,
	}
	uc.metrics.RecordRows(StepAnalyze, len(rows))

	if uc.cache != nil && uc.cfg.KPITTL > 0 {
		if err := uc.cache.Set(ctx, key, report, uc.cfg.KPITTL); err != nil {
			uc.log.Warn("kpi cache write", applogger.Error(err))
		}
	}
	return models.OK(fmt.Sprintf("%d KPI rows", len(rows)), report), nil
}

// GenerateForecasts fits [start, end] history and forecasts horizon days per room type.
func (uc *RevenueUseCase) GenerateForecasts(ctx context.Context, start, end time.Time, horizon int, roomTypeID *int64) models.Result {
	t0 := time.Now()
	res, err := uc.generate(ctx, start, end, horizon, roomTypeID)
	return uc.observe(StepForecast, t0, res, err)
}

func (uc *RevenueUseCase) generate(ctx context.Context, start, end time.Time, horizon int, roomTypeID *int64) (models.Result, error) {
	r, err := domrepo.NewDateRange(start, end)
	if err != nil {
		return models.Result{}, err
	}
	if horizon <= 0 {
		horizon = uc.cfg.ForecastDays
	}
	summary, err := uc.forecasts.Generate(ctx, r, horizon, roomTypeID)
	if err != nil {
		return models.Result{}, err
	}
	if forecasting.IsNoHistory(summary) {
		return models.Fail(msgNoHistory, summary), nil
	}
	return models.OK(fmt.Sprintf("%d forecasts generated", len(summary.Forecasts)), summary), nil
}

// ApplyPricingRules prices the forecasts from today to today+horizon under the run lock.
func (uc *RevenueUseCase) ApplyPricingRules(ctx context.Context, horizon int, roomTypeID *int64) models.Result {
	t0 := time.Now()
	release, err := uc.lock(ctx)
	if errors.Is(err, models.ErrRunInProgress) {
		return models.Fail(err.Error(), nil)
	}
	if err != nil {
		return uc.observe(StepPricing, t0, models.Result{}, err)
	}
	defer release()
	res, err := uc.price(ctx, uuid.NewString(), horizon, roomTypeID)
	return uc.observe(StepPricing, t0, res, err)
}

func (uc *RevenueUseCase) price(ctx context.Context, runID string, horizon int, roomTypeID *int64) (models.Result, error) {
	if horizon <= 0 {
		horizon = uc.cfg.ForecastDays
	}
	today := uc.today()
	r := domrepo.DateRange{From: today, To: util.AddDays(today, horizon)}
	summary, err := uc.pricing.Apply(ctx, r, roomTypeID)
	if err != nil {
		return models.Result{}, err
	}
	if len(summary.Rows) == 0 {
		return models.Fail(msgNoForecasts, summary), nil
	}

	recs, err := uc.store.ListRecommendations(ctx, models.RecommendationFilter{From: &r.From, To: &r.To, RoomTypeID: roomTypeID})
	if err != nil {
		uc.log.Warn("list recommendations for events", applogger.Error(err))
	} else if err := uc.events.PublishRecommendations(ctx, runID, recs); err != nil {
		uc.log.Warn("publish recommendations", applogger.String("run_id", runID), applogger.Error(err))
		uc.metrics.RecordError("publish_recommendations")
	}
	msg := fmt.Sprintf("%d recommendations (%d new, %d updated)", len(summary.Rows), summary.Inserted, summary.Updated)
	return models.OK(msg, summary), nil
}

// ExportTariffs writes approved tariffs to a workbook. Without dates it exports
// the pending approvals.
func (uc *RevenueUseCase) ExportTariffs(ctx context.Context, start, end *time.Time, roomTypeID *int64, channel *string) models.Result {
	t0 := time.Now()
	res, err := uc.export(ctx, export.Filter{From: start, To: end, RoomTypeID: roomTypeID, Channel: channel})
	return uc.observe(StepExport, t0, res, err)
}

func (uc *RevenueUseCase) export(ctx context.Context, f export.Filter) (models.Result, error) {
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return models.Result{}, fmt.Errorf("export range end before start")
	}
	summary, ids, err := uc.exporter.Export(ctx, f)
	if errors.Is(err, models.ErrNoData) {
		return models.Fail(msgNoExportRows, nil), nil
	}
	if err != nil {
		return models.Result{}, err
	}
	if err := uc.events.PublishExport(ctx, summary, ids); err != nil {
		uc.log.Warn("publish export", applogger.Error(err))
		uc.metrics.RecordError("publish_export")
	}
	return models.OK(fmt.Sprintf("%d tariffs exported to %s", summary.Rows, summary.Path), summary), nil
}

// RunFull runs every step in order. An adapter failure halts the steps that
// depend on it; an empty step does not.
func (uc *RevenueUseCase) RunFull(ctx context.Context, p models.RunParams) models.Result {
	started := time.Now()
	report := models.RunReport{RunID: uuid.NewString(), Steps: map[string]models.Result{}}
	log := uc.log.With(applogger.String("run_id", report.RunID))

	release, err := uc.lock(ctx)
	if err != nil {
		return models.Fail(err.Error(), report)
	}
	defer release()

	if p.End.IsZero() {
		p.End = uc.today()
	}
	if p.Start.IsZero() {
		p.Start = util.AddDays(p.End, -uc.cfg.HistoryDays)
	}
	if p.Horizon <= 0 {
		p.Horizon = uc.cfg.ForecastDays
	}
	log.Info("full run started",
		applogger.Date("start", p.Start),
		applogger.Date("end", p.End),
		applogger.Int("horizon", p.Horizon),
		applogger.Bool("export", p.Export))

	type step struct {
		name string
		run  func() (models.Result, error)
	}
	steps := []step{
		{StepAnalyze, func() (models.Result, error) { return uc.analyze(ctx, p.Start, p.End, p.RoomTypeID) }},
		{StepForecast, func() (models.Result, error) { return uc.generate(ctx, p.Start, p.End, p.Horizon, p.RoomTypeID) }},
		{StepPricing, func() (models.Result, error) { return uc.price(ctx, report.RunID, p.Horizon, p.RoomTypeID) }},
	}
	if p.Export {
		steps = append(steps, step{StepExport, func() (models.Result, error) {
			return uc.export(ctx, export.Filter{From: p.ExportStart, To: p.ExportEnd, RoomTypeID: p.RoomTypeID, Channel: p.Channel})
		}})
	}

	for _, s := range steps {
		t0 := time.Now()
		res, err := s.run()
		report.Steps[s.name] = uc.observe(s.name, t0, res, err)
		if err != nil {
			report.Halted = s.name
			break
		}
	}
	report.Duration = time.Since(started)

	if report.Halted != "" {
		log.Warn("full run halted", applogger.String("step", report.Halted))
		return models.Fail(fmt.Sprintf("run halted at %s: %s", report.Halted, report.Steps[report.Halted].Message), report)
	}
	log.Info("full run finished", applogger.Duration("duration", report.Duration))
	return models.OK("run completed", report)
}

// DashboardData bundles last year's KPIs, the next 90 days of forecasts and the pending exports.
func (uc *RevenueUseCase) DashboardData(ctx context.Context) models.Result {
	today := uc.today()
	last := domrepo.DateRange{From: util.AddDays(today, -uc.cfg.HistoryDays), To: today}
	ahead := domrepo.DateRange{From: today, To: util.AddDays(today, dashboardAhead)}

	var d models.Dashboard
	rows, err := uc.kpi.Calculate(ctx, last, nil)
	if err != nil {
		return models.Fail(err.Error(), nil)
	}
	d.KPIs = kpi.AggregateRows(rows, models.GroupByRoomType)
	d.Aggregates = kpi.AggregateRows(rows, models.GroupByBoth)
	if d.Forecasts, err = uc.store.GetForecasts(ctx, ahead, nil); err != nil {
		return models.Fail(err.Error(), nil)
	}
	if d.PendingExports, err = uc.exporter.PendingExports(ctx); err != nil {
		return models.Fail(err.Error(), nil)
	}
	return models.OK("dashboard", d)
}

// PendingExports lists approved recommendations awaiting export.
func (uc *RevenueUseCase) PendingExports(ctx context.Context) models.Result {
	recs, err := uc.exporter.PendingExports(ctx)
	if err != nil {
		return models.Fail(err.Error(), nil)
	}
	return models.OK(fmt.Sprintf("%d pending exports", len(recs)), recs)
}

// ListRecommendations returns recommendations matching f.
func (uc *RevenueUseCase) ListRecommendations(ctx context.Context, f models.RecommendationFilter) ([]models.TariffRecommendation, error) {
	return uc.store.ListRecommendations(ctx, f)
}

// ListForecasts returns stored forecasts in r.
func (uc *RevenueUseCase) ListForecasts(ctx context.Context, r domrepo.DateRange, roomTypeID *int64) ([]models.Forecast, error) {
	return uc.store.GetForecasts(ctx, r, roomTypeID)
}

// Approve moves a recommendation to Approved. A nil rate approves the recommended rate.
func (uc *RevenueUseCase) Approve(ctx context.Context, id int64, rate *float64) (*models.TariffRecommendation, error) {
	rec, err := uc.store.GetRecommendationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("recommendation %d: %w", id, models.ErrNotFound)
	}
	approved := rec.RecommendedRate
	if rate != nil {
		approved = *rate
	}
	if err := uc.store.MarkApproved(ctx, id, approved, uc.now().UTC()); err != nil {
		return nil, err
	}
	return uc.store.GetRecommendationByID(ctx, id)
}

// MarkExported records an export done outside this service.
func (uc *RevenueUseCase) MarkExported(ctx context.Context, ids []int64) error {
	return uc.store.MarkExported(ctx, ids, uc.now().UTC())
}

// ReloadRules re-reads the active pricing rules.
func (uc *RevenueUseCase) ReloadRules(ctx context.Context) models.Result {
	rules, err := uc.pricing.ReloadRules(ctx)
	if err != nil {
		return models.Fail(err.Error(), nil)
	}
	return models.OK(fmt.Sprintf("%d rules loaded", len(rules)), rules)
}

// Rules returns the active rule set.
func (uc *RevenueUseCase) Rules(ctx context.Context) ([]models.PricingRule, error) {
	return uc.pricing.LoadRules(ctx)
}

// SeedRoomTypes stores the configured room types.
func (uc *RevenueUseCase) SeedRoomTypes(ctx context.Context, rooms []models.RoomType) error {
	if err := uc.store.SaveRoomTypes(ctx, rooms); err != nil {
		return fmt.Errorf("seed room types: %w", err)
	}
	uc.log.Info("room types seeded", applogger.Int("count", len(rooms)))
	return nil
}
