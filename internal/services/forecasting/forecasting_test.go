package forecasting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HotelRevenue/internal/domain/models"
	domrepo "HotelRevenue/internal/domain/repository"
	"HotelRevenue/internal/domain/service"
	"HotelRevenue/internal/repository"
	"HotelRevenue/pkg/util"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func weeklySeries(start time.Time, days int) []models.SeriesPoint {
	out := make([]models.SeriesPoint, days)
	for i := range out {
		d := util.AddDays(start, i)
		v := 0.5
		if util.WeekdayIndex(d) >= 5 {
			v = 0.8
		}
		out[i] = models.SeriesPoint{Date: d, Value: v}
	}
	return out
}

func testConfig(mode string) SeasonalConfig {
	return SeasonalConfig{
		Mode:                  mode,
		Weekly:                Seasonality{Enabled: true, Period: 7, Order: 3},
		Yearly:                Seasonality{Enabled: true, Period: 365.25, Order: 10},
		Changepoints:          25,
		ChangepointRange:      0.8,
		ChangepointPriorScale: 0.05,
		SeasonalityPriorScale: 10,
		IntervalWidth:         0.8,
	}
}

func TestSeasonalModel_LearnsWeeklyPattern(t *testing.T) {
	for _, mode := range []string{ModeAdditive, ModeMultiplicative} {
		t.Run(mode, func(t *testing.T) {
			m := NewSeasonalModel(testConfig(mode))
			// 2024-01-01 is a Monday; eight full weeks
			fitted, err := m.Fit(context.Background(), weeklySeries(day(2024, 1, 1), 56))
			require.NoError(t, err)

			points, err := fitted.Predict(context.Background(), 7)
			require.NoError(t, err)
			require.Len(t, points, 7)
			assert.True(t, points[0].Date.Equal(day(2024, 2, 26)))

			for _, p := range points {
				expected := 0.5
				if util.WeekdayIndex(p.Date) >= 5 {
					expected = 0.8
				}
				assert.InDelta(t, expected, p.Yhat, 0.05, util.FormatDate(p.Date))
				assert.LessOrEqual(t, p.Lower, p.Yhat)
				assert.GreaterOrEqual(t, p.Upper, p.Yhat)
			}
		})
	}
}

func TestSeasonalModel_EmptySeries(t *testing.T) {
	_, err := NewSeasonalModel(testConfig(ModeAdditive)).Fit(context.Background(), nil)
	assert.True(t, errors.Is(err, models.ErrNoHistory))
}

func TestToForecasts_ClipsAndScales(t *testing.T) {
	fcs := ToForecasts(3, []models.ForecastPoint{
		{Date: day(2024, 3, 1), Yhat: 1.4, Lower: -0.2, Upper: 2},
		{Date: day(2024, 3, 2), Yhat: -0.1, Lower: -0.5, Upper: 0.3},
	}, 200)

	require.Len(t, fcs, 2)
	assert.Equal(t, 100.0, fcs[0].OccupancyPct)
	assert.Equal(t, 0.0, fcs[0].OccupancyLower)
	assert.Equal(t, 100.0, fcs[0].OccupancyUpper)
	assert.Equal(t, 200.0, fcs[0].RevPAR)
	assert.Equal(t, 0.0, fcs[1].OccupancyPct)
	assert.InDelta(t, 30.0, fcs[1].OccupancyUpper, 1e-9)
	for _, f := range fcs {
		assert.GreaterOrEqual(t, f.OccupancyLower, 0.0)
		assert.LessOrEqual(t, f.OccupancyUpper, 100.0)
	}
}

type stubModel struct {
	yhat float64
	fail map[float64]bool
}

type stubFit struct {
	last time.Time
	yhat float64
}

func (m stubModel) Name() string { return "stub" }

func (m stubModel) Fit(_ context.Context, series []models.SeriesPoint) (service.FittedModel, error) {
	if len(series) == 0 {
		return nil, models.ErrNoHistory
	}
	if m.fail[series[0].Value] {
		return nil, models.ErrModelFit
	}
	return stubFit{last: series[len(series)-1].Date, yhat: m.yhat}, nil
}

func (f stubFit) Predict(_ context.Context, horizon int) ([]models.ForecastPoint, error) {
	out := make([]models.ForecastPoint, horizon)
	for i := range out {
		out[i] = models.ForecastPoint{Date: util.AddDays(f.last, i+1), Yhat: f.yhat, Lower: f.yhat - 0.1, Upper: f.yhat + 0.1}
	}
	return out, nil
}

func seedStore(t *testing.T) *repository.MemoryStore {
	t.Helper()
	s := repository.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.SaveRoomTypes(ctx, []models.RoomType{
		{ID: 1, Code: "EST"}, {ID: 2, Code: "SUI"}, {ID: 3, Code: "JRS"},
	}))
	var occ []models.DailyOccupancyFact
	var rev []models.DailyRevenueFact
	for i := 0; i < 10; i++ {
		d := util.AddDays(day(2024, 1, 1), i)
		occ = append(occ,
			models.DailyOccupancyFact{Date: d, RoomTypeID: 1, Available: 10, Occupied: 5},
			models.DailyOccupancyFact{Date: d, RoomTypeID: 2, Available: 4, Occupied: 1},
		)
		rev = append(rev, models.DailyRevenueFact{Date: d, RoomTypeID: 1, Revenue: float64(5 * (100 + i))})
	}
	// rooms out of service do not enter the series
	occ = append(occ, models.DailyOccupancyFact{Date: day(2024, 1, 11), RoomTypeID: 1, Available: 0, Occupied: 0})
	require.NoError(t, s.SaveOccupancy(ctx, occ))
	require.NoError(t, s.SaveRevenue(ctx, rev))
	return s
}

func TestEngine_GenerateSkipsAndPersists(t *testing.T) {
	s := seedStore(t)
	model := stubModel{yhat: 0.7, fail: map[float64]bool{0.25: true}}
	e := NewEngine(s, s, model, EngineConfig{Horizon: 5, Workers: 2, ProtectManual: true}, nil, nil)

	r, err := domrepo.NewDateRange(day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	sum, err := e.Generate(context.Background(), r, 0, nil)
	require.NoError(t, err)

	// room 2 (ratio 0.25) fails to fit, room 3 has no history
	assert.Contains(t, sum.Skipped, int64(2))
	assert.Equal(t, models.ErrNoHistory.Error(), sum.Skipped[3])
	require.Len(t, sum.Forecasts, 5)

	first := sum.Forecasts[0]
	assert.True(t, first.Date.Equal(day(2024, 1, 11)))
	assert.InDelta(t, 70.0, first.OccupancyPct, 1e-9)
	// mean daily ADR of 100..109
	assert.InDelta(t, 104.5, first.ADR, 1e-9)
	assert.InDelta(t, 104.5*0.7, first.RevPAR, 1e-9)
	assert.NotZero(t, first.ID)

	stored, err := s.GetForecasts(context.Background(), domrepo.DateRange{From: day(2024, 1, 11), To: day(2024, 1, 15)}, nil)
	require.NoError(t, err)
	assert.Len(t, stored, 5)
}

func TestEngine_KeepsManualAdjustments(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	_, err := s.UpsertForecast(ctx, models.Forecast{Date: day(2024, 1, 12), RoomTypeID: 1, OccupancyPct: 95, ManuallyAdjusted: true})
	require.NoError(t, err)

	one := int64(1)
	e := NewEngine(s, s, stubModel{yhat: 0.4}, EngineConfig{Horizon: 3, ProtectManual: true}, nil, nil)
	r, _ := domrepo.NewDateRange(day(2024, 1, 1), day(2024, 1, 31))
	sum, err := e.Generate(ctx, r, 3, &one)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Protected)
	assert.Len(t, sum.Forecasts, 2)

	stored, err := s.GetForecasts(ctx, domrepo.DateRange{From: day(2024, 1, 12), To: day(2024, 1, 12)}, &one)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 95.0, stored[0].OccupancyPct)
}

func TestEngine_NoFactsSkipsEverything(t *testing.T) {
	s := repository.NewMemoryStore()
	require.NoError(t, s.SaveRoomTypes(context.Background(), []models.RoomType{{ID: 1, Code: "EST"}}))
	e := NewEngine(s, s, stubModel{yhat: 0.5}, EngineConfig{}, nil, nil)
	r, _ := domrepo.NewDateRange(day(2024, 1, 1), day(2024, 1, 31))

	sum, err := e.Generate(context.Background(), r, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, sum.Forecasts)
	assert.True(t, IsNoHistory(sum))
}

func TestRemoteModel_PostsSeries(t *testing.T) {
	var got remoteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, forecastPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		out := remoteResponse{}
		for i := 0; i < got.Horizon; i++ {
			out.Forecast = append(out.Forecast, models.ForecastPoint{Date: util.AddDays(day(2024, 1, 3), i), Yhat: 0.6, Lower: 0.5, Upper: 0.7})
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	m := NewRemoteModel(srv.URL, time.Second, testConfig(ModeMultiplicative))
	fitted, err := m.Fit(context.Background(), weeklySeries(day(2024, 1, 1), 2))
	require.NoError(t, err)
	points, err := fitted.Predict(context.Background(), 4)
	require.NoError(t, err)
	assert.Len(t, points, 4)
	assert.Len(t, got.Series, 2)
	assert.Equal(t, ModeMultiplicative, got.SeasonalityMode)
}

func TestRemoteModel_ServiceErrorIsFitFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := NewRemoteModel(srv.URL, time.Second, testConfig(ModeAdditive))
	m.attempts = 1
	fitted, err := m.Fit(context.Background(), weeklySeries(day(2024, 1, 1), 2))
	require.NoError(t, err)
	_, err = fitted.Predict(context.Background(), 3)
	assert.True(t, errors.Is(err, models.ErrModelFit))
}
