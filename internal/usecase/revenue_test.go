package usecase

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HotelRevenue/internal/domain/models"
	"HotelRevenue/internal/domain/service"
	"HotelRevenue/internal/repository"
	"HotelRevenue/internal/services/export"
	"HotelRevenue/internal/services/forecasting"
	"HotelRevenue/internal/services/kpi"
	"HotelRevenue/internal/services/pricing"
	"HotelRevenue/pkg/cache"
	"HotelRevenue/pkg/config"
	"HotelRevenue/pkg/util"
)

var today = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

type flatModel struct{ yhat float64 }

type flatFit struct {
	last time.Time
	yhat float64
}

func (flatModel) Name() string { return "flat" }

func (m flatModel) Fit(_ context.Context, series []models.SeriesPoint) (service.FittedModel, error) {
	if len(series) == 0 {
		return nil, models.ErrNoHistory
	}
	return flatFit{last: series[len(series)-1].Date, yhat: m.yhat}, nil
}

func (f flatFit) Predict(_ context.Context, horizon int) ([]models.ForecastPoint, error) {
	out := make([]models.ForecastPoint, horizon)
	for i := range out {
		out[i] = models.ForecastPoint{Date: util.AddDays(f.last, i+1), Yhat: f.yhat, Lower: f.yhat, Upper: f.yhat}
	}
	return out, nil
}

type fixture struct {
	uc    *RevenueUseCase
	store *repository.MemoryStore
	cache *cache.MemoryCache
	dir   string
}

func channels() []models.Channel {
	return []models.Channel{
		{Name: "Directo", Commission: 0, Priority: 1, Active: true},
		{Name: "Booking.com", Commission: 0.15, Priority: 2, Active: true},
	}
}

func newFixture(t *testing.T, withHistory bool) *fixture {
	t.Helper()
	ctx := context.Background()
	s := repository.NewMemoryStore()
	require.NoError(t, s.SaveRoomTypes(ctx, []models.RoomType{{ID: 1, Code: "EST", Name: "Estándar", Units: 10, BaseRate: 100}}))
	if withHistory {
		var occ []models.DailyOccupancyFact
		var rev []models.DailyRevenueFact
		for i := 0; i < 60; i++ {
			d := util.AddDays(today, -i)
			occ = append(occ, models.DailyOccupancyFact{Date: d, RoomTypeID: 1, Available: 10, Occupied: 6})
			rev = append(rev, models.DailyRevenueFact{Date: d, RoomTypeID: 1, Revenue: 720})
		}
		require.NoError(t, s.SaveOccupancy(ctx, occ))
		require.NoError(t, s.SaveRevenue(ctx, rev))
	}

	p := config.PricingConfig{
		MinOccupancyThreshold: 0.4, MaxOccupancyThreshold: 0.8,
		LowOccupancyFactor: 0.9, HighOccupancyFactor: 1.15,
		MinPriceFactor: 0.7, MaxPriceFactor: 1.3,
		DirectChannel: "Directo", DirectChannelDiscount: 0.05,
		DefaultBaseRate: 100, DefaultSeason: "Media",
		SeasonFactors:  map[string]float64{"Media": 1},
		WeekdayFactors: map[int]float64{},
	}
	defs, err := pricing.DefaultRules(p, channels())
	require.NoError(t, err)

	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })
	dir := t.TempDir()

	calc := kpi.NewCalculator(s, models.SeasonCalendar{}, nil)
	fc := forecasting.NewEngine(s, s, flatModel{yhat: 0.6}, forecasting.EngineConfig{Horizon: 30, Workers: 2, ProtectManual: true}, nil, nil)
	pr := pricing.NewEngine(s, pricing.Config{
		Bounds:         pricing.Bounds{Min: p.MinPriceFactor, Max: p.MaxPriceFactor},
		DirectChannel:  p.DirectChannel,
		DirectDiscount: p.DirectChannelDiscount,
		Expand:         pricing.ExpandConfig{Seasons: models.SeasonCalendar{}, DefaultSeason: "Media", DefaultBaseRate: 100},
		Channels:       channels(),
		Defaults:       defs,
	}, nil, nil)
	x := export.NewExporter(s, export.Config{Dir: dir, Hotel: "Hotel Test", Channels: []string{"Directo", "Booking.com"}}, nil)

	uc := NewRevenueUseCase(s, calc, fc, pr, x, nil, c, nil, Config{ForecastDays: 30, HistoryDays: 365, KPITTL: time.Minute}, nil)
	uc.now = func() time.Time { return today.Add(10 * time.Hour) }
	return &fixture{uc: uc, store: s, cache: c, dir: dir}
}

func report(t *testing.T, res models.Result) models.RunReport {
	t.Helper()
	r, ok := res.Data.(models.RunReport)
	require.True(t, ok, "data is %T", res.Data)
	return r
}

func TestRunFull_RunsEveryStep(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	res := f.uc.RunFull(ctx, models.RunParams{})
	require.True(t, res.Success, res.Message)
	rep := report(t, res)
	assert.NotEmpty(t, rep.RunID)
	assert.Empty(t, rep.Halted)
	for _, step := range []string{StepAnalyze, StepForecast, StepPricing} {
		assert.True(t, rep.Steps[step].Success, "%s: %s", step, rep.Steps[step].Message)
	}
	assert.NotContains(t, rep.Steps, StepExport)

	// forecasts start the day after the last observation: 30 days x 2 channels
	sum, ok := rep.Steps[StepPricing].Data.(models.PricingSummary)
	require.True(t, ok)
	assert.Len(t, sum.Rows, 60)
	assert.Equal(t, 60, sum.Inserted)
}

func TestRunFull_SecondRunUpdatesSameKeys(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	require.True(t, f.uc.RunFull(ctx, models.RunParams{}).Success)
	res := f.uc.RunFull(ctx, models.RunParams{})
	require.True(t, res.Success, res.Message)

	sum := report(t, res).Steps[StepPricing].Data.(models.PricingSummary)
	assert.Equal(t, 0, sum.Inserted)
	assert.Equal(t, 60, sum.Updated)

	recs, err := f.store.ListRecommendations(ctx, models.RecommendationFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, 60)
	for _, r := range recs {
		assert.Equal(t, models.StatePending, r.State)
	}
}

func TestRunFull_NoDataDoesNotHalt(t *testing.T) {
	f := newFixture(t, false)

	res := f.uc.RunFull(context.Background(), models.RunParams{})
	rep := report(t, res)
	assert.Empty(t, rep.Halted)

	assert.False(t, rep.Steps[StepAnalyze].Success)
	assert.Equal(t, msgNoKPIData, rep.Steps[StepAnalyze].Message)
	require.Contains(t, rep.Steps, StepForecast)
	assert.False(t, rep.Steps[StepForecast].Success)
	require.Contains(t, rep.Steps, StepPricing)
	assert.Equal(t, msgNoForecasts, rep.Steps[StepPricing].Message)
}

func TestRunLock_RejectsConcurrentRun(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	ok, err := f.cache.TryLock(ctx, RunLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	res := f.uc.ApplyPricingRules(ctx, 30, nil)
	assert.False(t, res.Success)
	assert.Equal(t, models.ErrRunInProgress.Error(), res.Message)

	res = f.uc.RunFull(ctx, models.RunParams{})
	assert.False(t, res.Success)
	assert.Equal(t, models.ErrRunInProgress.Error(), res.Message)

	require.NoError(t, f.cache.Unlock(ctx, RunLockKey))
	assert.True(t, f.uc.RunFull(ctx, models.RunParams{}).Success)
	// the run released its lock
	assert.True(t, f.uc.ApplyPricingRules(ctx, 30, nil).Success)
}

func TestAnalyzeKPIs_CachesReport(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	start, end := util.AddDays(today, -6), today

	res := f.uc.AnalyzeKPIs(ctx, start, end, nil)
	require.True(t, res.Success, res.Message)
	rep := res.Data.(KPIReport)
	assert.Len(t, rep.Rows, 7)
	require.Len(t, rep.ByRoomType, 1)
	require.NotNil(t, rep.ByRoomType[0].ADR)
	assert.InDelta(t, 120, *rep.ByRoomType[0].ADR, 1e-9)

	key := cache.GenerateKeyWithParams(kpiCachePrefix, util.FormatDate(start), util.FormatDate(end), (*int64)(nil))
	found, err := f.cache.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)

	again := f.uc.AnalyzeKPIs(ctx, start, end, nil)
	require.True(t, again.Success)
	assert.Len(t, again.Data.(KPIReport).Rows, 7)
}

func TestAnalyzeKPIs_InvertedRangeFails(t *testing.T) {
	f := newFixture(t, true)
	res := f.uc.AnalyzeKPIs(context.Background(), today, util.AddDays(today, -1), nil)
	assert.False(t, res.Success)
}

func TestExportTariffs(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	res := f.uc.ExportTariffs(ctx, nil, nil, nil, nil)
	assert.False(t, res.Success)
	assert.Equal(t, msgNoExportRows, res.Message)

	require.True(t, f.uc.RunFull(ctx, models.RunParams{}).Success)
	recs, err := f.store.ListRecommendations(ctx, models.RecommendationFilter{})
	require.NoError(t, err)
	_, err = f.uc.Approve(ctx, recs[0].ID, nil)
	require.NoError(t, err)

	pending := f.uc.PendingExports(ctx)
	require.True(t, pending.Success)
	assert.Len(t, pending.Data, 1)

	res = f.uc.ExportTariffs(ctx, nil, nil, nil, nil)
	require.True(t, res.Success, res.Message)
	sum := res.Data.(models.ExportSummary)
	assert.Equal(t, 1, sum.Exported)
	_, err = os.Stat(sum.Path)
	assert.NoError(t, err)

	got, err := f.store.GetRecommendationByID(ctx, recs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateExported, got.State)
}

func TestDashboardData(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	require.True(t, f.uc.RunFull(ctx, models.RunParams{}).Success)

	res := f.uc.DashboardData(ctx)
	require.True(t, res.Success, res.Message)
	d := res.Data.(models.Dashboard)
	require.Len(t, d.KPIs, 1)
	assert.Len(t, d.Aggregates, 60)
	assert.Len(t, d.Forecasts, 30)
	assert.Empty(t, d.PendingExports)
}

func TestStatusHandler(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	require.True(t, f.uc.RunFull(ctx, models.RunParams{}).Success)
	recs, err := f.store.ListRecommendations(ctx, models.RecommendationFilter{})
	require.NoError(t, err)
	id := recs[0].ID

	h := NewStatusHandler("revenue.status", f.uc, nil, nil)
	assert.Equal(t, "revenue.status", h.Topic())

	msg := func(m StatusMessage) []byte {
		b, err := json.Marshal(m)
		require.NoError(t, err)
		return b
	}
	rate := 155.0

	require.NoError(t, h.Handle(ctx, msg(StatusMessage{Action: ActionApprove, ID: id, ApprovedRate: &rate})))
	got, err := f.store.GetRecommendationByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StateApproved, got.State)
	assert.Equal(t, 155.0, got.ApprovedRate)

	require.NoError(t, h.Handle(ctx, msg(StatusMessage{Action: ActionExported, IDs: []int64{id}})))
	got, err = f.store.GetRecommendationByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StateExported, got.State)

	// stale and unknown ids are dropped, not retried
	assert.NoError(t, h.Handle(ctx, msg(StatusMessage{Action: ActionApprove, ID: id})))
	assert.NoError(t, h.Handle(ctx, msg(StatusMessage{Action: ActionApprove, ID: 99999})))

	assert.Error(t, h.Handle(ctx, []byte("{not json")))
	assert.Error(t, h.Handle(ctx, msg(StatusMessage{Action: "cancel", ID: id})))
	assert.Error(t, h.Handle(ctx, msg(StatusMessage{Action: ActionExported})))
}

type captureQueue struct {
	msgType string
	payload interface{}
}

func (q *captureQueue) Enqueue(_ context.Context, msgType string, payload interface{}) (string, error) {
	q.msgType, q.payload = msgType, payload
	return "job-1", nil
}

func TestRunJob_HandlesQueuedParams(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	q := &captureQueue{}
	id, err := EnqueueRun(ctx, q, models.RunParams{Horizon: 30})
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
	assert.Equal(t, RunJobType, q.msgType)

	raw, err := json.Marshal(q.payload)
	require.NoError(t, err)
	job := NewRunJob(f.uc, nil)
	require.NoError(t, job.Handle(ctx, raw))

	recs, err := f.store.ListRecommendations(ctx, models.RecommendationFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, 60)

	// a held lock is retried by the queue
	ok, err := f.cache.TryLock(ctx, RunLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.ErrorIs(t, job.Handle(ctx, raw), models.ErrRunInProgress)

	_, err = EnqueueRun(ctx, nil, models.RunParams{})
	assert.Error(t, err)
}
