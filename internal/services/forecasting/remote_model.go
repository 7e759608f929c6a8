package forecasting

import (
	"context"
	"fmt"
	"time"

	"HotelRevenue/internal/domain/models"
	"HotelRevenue/internal/domain/service"
	xhttp "HotelRevenue/pkg/http"
)

const forecastPath = "/forecast"

// RemoteModel delegates fitting and prediction to an external model service.
// Fit only captures the series; the service receives it with each prediction.
type RemoteModel struct {
	client   *xhttp.Client
	cfg      SeasonalConfig
	attempts int
}

func NewRemoteModel(baseURL string, timeout time.Duration, cfg SeasonalConfig) *RemoteModel {
	return &RemoteModel{
		client:   xhttp.NewClient(baseURL, xhttp.WithTimeout(timeout)),
		cfg:      cfg,
		attempts: 3,
	}
}

var _ service.OccupancyModel = (*RemoteModel)(nil)

func (m *RemoteModel) Name() string { return "remote" }

// remoteRequest is the body posted to the model service.
type remoteRequest struct {
	Series                []models.SeriesPoint `json:"series"`
	Horizon               int                  `json:"horizon"`
	SeasonalityMode       string               `json:"seasonality_mode"`
	WeeklySeasonality     bool                 `json:"weekly_seasonality"`
	YearlySeasonality     bool                 `json:"yearly_seasonality"`
	ChangepointPriorScale float64              `json:"changepoint_prior_scale"`
	SeasonalityPriorScale float64              `json:"seasonality_prior_scale"`
	IntervalWidth         float64              `json:"interval_width"`
}

type remoteResponse struct {
	Forecast []models.ForecastPoint `json:"forecast"`
}

type remoteFit struct {
	m      *RemoteModel
	series []models.SeriesPoint
}

func (m *RemoteModel) Fit(_ context.Context, series []models.SeriesPoint) (service.FittedModel, error) {
	if len(series) == 0 {
		return nil, models.ErrNoHistory
	}
	return &remoteFit{m: m, series: series}, nil
}

func (f *remoteFit) Predict(ctx context.Context, horizon int) ([]models.ForecastPoint, error) {
	req := remoteRequest{
		Series:                f.series,
		Horizon:               horizon,
		SeasonalityMode:       f.m.cfg.Mode,
		WeeklySeasonality:     f.m.cfg.Weekly.Enabled,
		YearlySeasonality:     f.m.cfg.Yearly.Enabled,
		ChangepointPriorScale: f.m.cfg.ChangepointPriorScale,
		SeasonalityPriorScale: f.m.cfg.SeasonalityPriorScale,
		IntervalWidth:         f.m.cfg.IntervalWidth,
	}
	var resp remoteResponse
	if err := f.m.postWithRetry(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrModelFit, err)
	}
	if len(resp.Forecast) != horizon {
		return nil, fmt.Errorf("%w: service returned %d points for horizon %d", models.ErrModelFit, len(resp.Forecast), horizon)
	}
	return resp.Forecast, nil
}

func (m *RemoteModel) postWithRetry(ctx context.Context, payload, dest interface{}) error {
	var err error
	for i := 1; i <= m.attempts; i++ {
		err = m.client.PostJSON(ctx, forecastPath, payload, dest)
		if err == nil {
			return nil
		}
		if i == m.attempts {
			break
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("post %s: %w", forecastPath, err)
}
