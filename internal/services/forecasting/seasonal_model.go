package forecasting

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"HotelRevenue/internal/domain/models"
	"HotelRevenue/internal/domain/service"
	"HotelRevenue/pkg/config"
	"HotelRevenue/pkg/util"
)

const (
	ModeAdditive       = "additive"
	ModeMultiplicative = "multiplicative"

	// logOffset keeps log(y) finite for zero-occupancy days in multiplicative mode.
	logOffset = 0.01
	// trendRidge keeps the normal equations positive definite on tiny series.
	trendRidge = 1e-6
)

// Seasonality is one Fourier component of the seasonal model.
type Seasonality struct {
	Enabled bool
	Period  float64
	Order   int
}

// SeasonalConfig parameterises SeasonalModel.
type SeasonalConfig struct {
	Mode                  string
	Weekly                Seasonality
	Yearly                Seasonality
	Changepoints          int
	ChangepointRange      float64
	ChangepointPriorScale float64
	SeasonalityPriorScale float64
	IntervalWidth         float64
}

// SeasonalConfigFrom maps the forecasting section of the configuration.
func SeasonalConfigFrom(c config.ForecastingConfig) SeasonalConfig {
	return SeasonalConfig{
		Mode:                  c.SeasonalityMode,
		Weekly:                Seasonality{Enabled: c.Weekly.Enabled, Period: c.Weekly.Period, Order: c.Weekly.FourierOrder},
		Yearly:                Seasonality{Enabled: c.Yearly.Enabled, Period: c.Yearly.Period, Order: c.Yearly.FourierOrder},
		Changepoints:          c.Changepoints,
		ChangepointRange:      c.ChangepointRange,
		ChangepointPriorScale: c.ChangepointPriorScale,
		SeasonalityPriorScale: c.SeasonalityPriorScale,
		IntervalWidth:         c.IntervalWidth,
	}
}

// SeasonalModel is a piecewise-linear trend plus Fourier seasonality fitted by
// ridge regression. The prior scales become ridge penalties: a small scale
// shrinks the corresponding coefficients harder.
type SeasonalModel struct {
	cfg SeasonalConfig
}

func NewSeasonalModel(cfg SeasonalConfig) *SeasonalModel {
	if cfg.Mode == "" {
		cfg.Mode = ModeMultiplicative
	}
	if cfg.IntervalWidth <= 0 || cfg.IntervalWidth >= 1 {
		cfg.IntervalWidth = 0.8
	}
	if cfg.ChangepointRange <= 0 || cfg.ChangepointRange > 1 {
		cfg.ChangepointRange = 0.8
	}
	return &SeasonalModel{cfg: cfg}
}

var _ service.OccupancyModel = (*SeasonalModel)(nil)

func (m *SeasonalModel) Name() string { return "seasonal-" + m.cfg.Mode }

type seasonalFit struct {
	cfg         SeasonalConfig
	start, last time.Time
	span        float64
	changes     []float64
	seasons     []Seasonality
	beta        *mat.VecDense
	sigma       float64
	z           float64
}

func (m *SeasonalModel) Fit(ctx context.Context, series []models.SeriesPoint) (service.FittedModel, error) {
	if len(series) == 0 {
		return nil, models.ErrNoHistory
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := &seasonalFit{
		cfg:   m.cfg,
		start: util.Day(series[0].Date),
		last:  util.Day(series[len(series)-1].Date),
	}
	f.span = math.Max(float64(util.DaysBetween(f.start, f.last)), 1)
	for _, s := range []Seasonality{m.cfg.Weekly, m.cfg.Yearly} {
		// a component needs at least one full cycle of history
		if s.Enabled && s.Order > 0 && s.Period > 0 && f.span >= s.Period {
			f.seasons = append(f.seasons, s)
		}
	}
	k := m.cfg.Changepoints
	if k > len(series)/2 {
		k = len(series) / 2
	}
	for i := 1; i <= k; i++ {
		f.changes = append(f.changes, m.cfg.ChangepointRange*float64(i)/float64(k+1))
	}

	y := make([]float64, len(series))
	for i, p := range series {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return nil, fmt.Errorf("%w: non-finite value at %s", models.ErrModelFit, util.FormatDate(p.Date))
		}
		y[i] = f.toFitSpace(p.Value)
	}

	p := f.width()
	x := mat.NewDense(len(series), p, nil)
	for i, pt := range series {
		x.SetRow(i, f.features(util.Day(pt.Date)))
	}

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for j, l := range f.penalties() {
		xtx.Set(j, j, xtx.At(j, j)+l)
	}
	yv := mat.NewVecDense(len(y), y)
	var xty mat.VecDense
	xty.MulVec(x.T(), yv)

	f.beta = mat.NewVecDense(p, nil)
	if err := f.beta.SolveVec(&xtx, &xty); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrModelFit, err)
	}

	var fitted mat.VecDense
	fitted.MulVec(x, f.beta)
	var sse float64
	for i := range y {
		r := y[i] - fitted.AtVec(i)
		sse += r * r
	}
	f.sigma = math.Sqrt(sse / math.Max(float64(len(y)-1), 1))
	f.z = distuv.UnitNormal.Quantile(0.5 + m.cfg.IntervalWidth/2)
	return f, nil
}

func (f *seasonalFit) width() int {
	p := 2 + len(f.changes)
	for _, s := range f.seasons {
		p += 2 * s.Order
	}
	return p
}

// penalties returns the ridge term added to each column's diagonal.
func (f *seasonalFit) penalties() []float64 {
	out := make([]float64, 0, f.width())
	out = append(out, 0, trendRidge)
	for range f.changes {
		out = append(out, 1/(f.cfg.ChangepointPriorScale*f.cfg.ChangepointPriorScale)+trendRidge)
	}
	for _, s := range f.seasons {
		for j := 0; j < 2*s.Order; j++ {
			out = append(out, 1/(f.cfg.SeasonalityPriorScale*f.cfg.SeasonalityPriorScale)+trendRidge)
		}
	}
	return out
}

func (f *seasonalFit) features(d time.Time) []float64 {
	t := float64(util.DaysBetween(f.start, d)) / f.span
	row := make([]float64, 0, f.width())
	row = append(row, 1, t)
	for _, c := range f.changes {
		row = append(row, math.Max(0, t-c))
	}
	// phases are anchored to the calendar so they survive history truncation
	abs := float64(d.Unix()) / 86400
	for _, s := range f.seasons {
		for j := 1; j <= s.Order; j++ {
			w := 2 * math.Pi * float64(j) * abs / s.Period
			row = append(row, math.Sin(w), math.Cos(w))
		}
	}
	return row
}

func (f *seasonalFit) toFitSpace(v float64) float64 {
	if f.cfg.Mode == ModeMultiplicative {
		return math.Log(math.Max(v, 0) + logOffset)
	}
	return v
}

func (f *seasonalFit) fromFitSpace(v float64) float64 {
	if f.cfg.Mode == ModeMultiplicative {
		return math.Exp(v) - logOffset
	}
	return v
}

func (f *seasonalFit) Predict(ctx context.Context, horizon int) ([]models.ForecastPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]models.ForecastPoint, 0, horizon)
	for h := 1; h <= horizon; h++ {
		d := util.AddDays(f.last, h)
		yhat := mat.Dot(mat.NewVecDense(f.width(), f.features(d)), f.beta)
		out = append(out, models.ForecastPoint{
			Date:  d,
			Yhat:  f.fromFitSpace(yhat),
			Lower: f.fromFitSpace(yhat - f.z*f.sigma),
			Upper: f.fromFitSpace(yhat + f.z*f.sigma),
		})
	}
	return out, nil
}
