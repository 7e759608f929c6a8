package models

import "time"

// Forecast is keyed by (Date, RoomTypeID). Occupancy fields are percentages in [0,100].
type Forecast struct {
	ID               int64     `json:"id"`
	Date             time.Time `json:"date"`
	RoomTypeID       int64     `json:"room_type_id"`
	OccupancyPct     float64   `json:"occupancy_pct"`
	OccupancyLower   float64   `json:"occupancy_lower"`
	OccupancyUpper   float64   `json:"occupancy_upper"`
	ADR              float64   `json:"adr"`
	RevPAR           float64   `json:"revpar"`
	ManuallyAdjusted bool      `json:"manually_adjusted"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SeriesPoint is one historical observation of the occupancy ratio (0..1).
type SeriesPoint struct {
	Date  time.Time `json:"ds"`
	Value float64   `json:"y"`
}

// ForecastPoint is one raw model prediction of the occupancy ratio, before clipping.
type ForecastPoint struct {
	Date  time.Time `json:"ds"`
	Yhat  float64   `json:"yhat"`
	Lower float64   `json:"yhat_lower"`
	Upper float64   `json:"yhat_upper"`
}

// Clip01 bounds v to [0,1].
func Clip01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
