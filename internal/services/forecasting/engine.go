package forecasting

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"HotelRevenue/internal/domain/models"
	domrepo "HotelRevenue/internal/domain/repository"
	"HotelRevenue/internal/domain/service"
	applogger "HotelRevenue/pkg/logger"
	"HotelRevenue/pkg/util"
)

// adrWindow is the trailing span used to project ADR.
const adrWindow = 365

// EngineConfig tunes the forecast engine.
type EngineConfig struct {
	Horizon       int
	Workers       int
	ProtectManual bool
}

// Engine turns occupancy history into persisted forecasts, one room type at a time.
type Engine struct {
	facts   domrepo.FactReader
	store   domrepo.ForecastStore
	model   service.OccupancyModel
	cfg     EngineConfig
	metrics domrepo.Metrics
	log     *applogger.Logger
}

func NewEngine(facts domrepo.FactReader, store domrepo.ForecastStore, model service.OccupancyModel, cfg EngineConfig, metrics domrepo.Metrics, log *applogger.Logger) *Engine {
	if cfg.Horizon <= 0 {
		cfg.Horizon = 90
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &Engine{facts: facts, store: store, model: model, cfg: cfg, metrics: metrics, log: log.With(applogger.String("model", model.Name()))}
}

// history is one room type's prepared data.
type history struct {
	room   models.RoomType
	series []models.SeriesPoint
	adr    float64
}

type fitResult struct {
	room      models.RoomType
	forecasts []models.Forecast
	err       error
}

// Generate forecasts horizon days past each room type's last observation in r.
// Room types without history or whose model fails are reported in Skipped.
func (e *Engine) Generate(ctx context.Context, r domrepo.DateRange, horizon int, roomTypeID *int64) (models.ForecastSummary, error) {
	if horizon <= 0 {
		horizon = e.cfg.Horizon
	}
	summary := models.ForecastSummary{Skipped: map[int64]string{}}

	histories, err := e.prepare(ctx, r, roomTypeID)
	if err != nil {
		return summary, err
	}
	for _, h := range histories {
		if len(h.series) == 0 {
			summary.Skipped[h.room.ID] = models.ErrNoHistory.Error()
			e.log.Warn("no occupancy history", applogger.String("room_type", h.room.Code))
		}
	}

	var forecasts []models.Forecast
	for res := range e.fitAll(ctx, histories, horizon) {
		if res.err != nil {
			summary.Skipped[res.room.ID] = res.err.Error()
			e.log.Error("forecast failed", applogger.String("room_type", res.room.Code), applogger.Error(res.err))
			e.metrics.RecordError("model_fit")
			continue
		}
		forecasts = append(forecasts, res.forecasts...)
		e.metrics.RecordForecasts(res.room.Code, len(res.forecasts))
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	sort.Slice(forecasts, func(i, j int) bool {
		if !forecasts[i].Date.Equal(forecasts[j].Date) {
			return forecasts[i].Date.Before(forecasts[j].Date)
		}
		return forecasts[i].RoomTypeID < forecasts[j].RoomTypeID
	})
	persisted, protected, err := e.persist(ctx, forecasts)
	summary.Forecasts, summary.Protected = persisted, protected
	if len(summary.Skipped) == 0 {
		summary.Skipped = nil
	}
	return summary, err
}

// prepare reads facts once and builds a series and ADR per room type.
func (e *Engine) prepare(ctx context.Context, r domrepo.DateRange, roomTypeID *int64) ([]history, error) {
	rooms, err := e.facts.GetRoomTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("read room types: %w", err)
	}
	// ADR looks back a year from the last observation, which can precede r.From.
	wide := domrepo.DateRange{From: util.AddDays(r.From, -adrWindow), To: r.To}
	occ, err := e.facts.GetOccupancy(ctx, wide, roomTypeID)
	if err != nil {
		return nil, fmt.Errorf("read occupancy: %w", err)
	}
	rev, err := e.facts.GetRevenue(ctx, wide, roomTypeID)
	if err != nil {
		return nil, fmt.Errorf("read revenue: %w", err)
	}

	occByRoom := make(map[int64][]models.DailyOccupancyFact)
	for _, f := range occ {
		occByRoom[f.RoomTypeID] = append(occByRoom[f.RoomTypeID], f)
	}
	revByKey := make(map[string]float64, len(rev))
	for _, f := range rev {
		revByKey[revKey(f.Date, f.RoomTypeID)] = f.Revenue
	}

	var out []history
	for _, room := range rooms {
		if roomTypeID != nil && room.ID != *roomTypeID {
			continue
		}
		facts := occByRoom[room.ID]
		sort.Slice(facts, func(i, j int) bool { return facts[i].Date.Before(facts[j].Date) })
		h := history{room: room, series: Series(facts, r)}
		if len(h.series) > 0 {
			h.adr = trailingADR(facts, revByKey, h.series[len(h.series)-1].Date)
		}
		out = append(out, h)
	}
	return out, nil
}

func revKey(d time.Time, room int64) string {
	return fmt.Sprintf("%s/%d", util.FormatDate(d), room)
}

// Series is the date-ordered occupancy ratio of facts in r with rooms available.
func Series(facts []models.DailyOccupancyFact, r domrepo.DateRange) []models.SeriesPoint {
	out := make([]models.SeriesPoint, 0, len(facts))
	for _, f := range facts {
		if f.Available <= 0 || !r.Contains(f.Date) {
			continue
		}
		out = append(out, models.SeriesPoint{Date: util.Day(f.Date), Value: float64(f.Occupied) / float64(f.Available)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// trailingADR is the mean daily ADR over the adrWindow days ending at last.
func trailingADR(facts []models.DailyOccupancyFact, revenue map[string]float64, last time.Time) float64 {
	from := util.AddDays(last, -adrWindow)
	var sum float64
	var n int
	for _, f := range facts {
		if f.Occupied <= 0 || !f.Date.After(from) || f.Date.After(last) {
			continue
		}
		amount, ok := revenue[revKey(f.Date, f.RoomTypeID)]
		if !ok {
			continue
		}
		sum += amount / float64(f.Occupied)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// fitAll fans fitting out over a bounded worker pool.
func (e *Engine) fitAll(ctx context.Context, histories []history, horizon int) <-chan fitResult {
	jobs := make(chan history)
	results := make(chan fitResult, len(histories))
	var wg sync.WaitGroup

	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for h := range jobs {
				fcs, err := e.forecastRoom(ctx, h, horizon)
				results <- fitResult{room: h.room, forecasts: fcs, err: err}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, h := range histories {
			if len(h.series) == 0 {
				continue
			}
			select {
			case jobs <- h:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() { wg.Wait(); close(results) }()
	return results
}

func (e *Engine) forecastRoom(ctx context.Context, h history, horizon int) ([]models.Forecast, error) {
	fitted, err := e.model.Fit(ctx, h.series)
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	points, err := fitted.Predict(ctx, horizon)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return ToForecasts(h.room.ID, points, h.adr), nil
}

// ToForecasts clips raw predictions to [0,1], converts them to percentages and
// projects RevPAR from the room type's ADR.
func ToForecasts(roomTypeID int64, points []models.ForecastPoint, adr float64) []models.Forecast {
	out := make([]models.Forecast, len(points))
	for i, p := range points {
		ratio := models.Clip01(p.Yhat)
		out[i] = models.Forecast{
			Date:           util.Day(p.Date),
			RoomTypeID:     roomTypeID,
			OccupancyPct:   ratio * 100,
			OccupancyLower: models.Clip01(p.Lower) * 100,
			OccupancyUpper: models.Clip01(p.Upper) * 100,
			ADR:            adr,
			RevPAR:         adr * ratio,
		}
	}
	return out
}

// persist upserts sequentially, leaving manually adjusted rows alone when configured.
func (e *Engine) persist(ctx context.Context, forecasts []models.Forecast) ([]models.Forecast, int, error) {
	if len(forecasts) == 0 {
		return nil, 0, nil
	}
	manual := map[string]bool{}
	if e.cfg.ProtectManual {
		span := domrepo.DateRange{From: forecasts[0].Date, To: forecasts[len(forecasts)-1].Date}
		existing, err := e.store.GetForecasts(ctx, span, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("read existing forecasts: %w", err)
		}
		for _, f := range existing {
			if f.ManuallyAdjusted {
				manual[revKey(f.Date, f.RoomTypeID)] = true
			}
		}
	}

	out := make([]models.Forecast, 0, len(forecasts))
	protected := 0
	for _, f := range forecasts {
		if manual[revKey(f.Date, f.RoomTypeID)] {
			protected++
			continue
		}
		id, err := e.store.UpsertForecast(ctx, f)
		if err != nil {
			return out, protected, fmt.Errorf("upsert forecast %s room %d: %w", util.FormatDate(f.Date), f.RoomTypeID, err)
		}
		f.ID = id
		out = append(out, f)
	}
	if protected > 0 {
		e.log.Info("kept manually adjusted forecasts", applogger.Int("count", protected))
	}
	return out, protected, nil
}

// IsNoHistory reports whether every room type was skipped for lack of data.
func IsNoHistory(s models.ForecastSummary) bool {
	if len(s.Forecasts) > 0 || s.Protected > 0 {
		return false
	}
	for _, reason := range s.Skipped {
		if reason != models.ErrNoHistory.Error() {
			return false
		}
	}
	return true
}
