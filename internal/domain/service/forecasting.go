package service

import (
	"context"

	"HotelRevenue/internal/domain/models"
)

// OccupancyModel fits a seasonal model to an occupancy-ratio series.
type OccupancyModel interface {
	Name() string
	Fit(ctx context.Context, series []models.SeriesPoint) (FittedModel, error)
}

// FittedModel predicts raw (unclipped) ratios for the days after the last observation.
type FittedModel interface {
	Predict(ctx context.Context, horizon int) ([]models.ForecastPoint, error)
}
