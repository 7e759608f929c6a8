package models

import "time"

// PricingRow is one (date, room type, channel) candidate tariff. Each rule kind
// writes only its own factor field.
type PricingRow struct {
	Date         time.Time `json:"date"`
	RoomTypeID   int64     `json:"room_type_id"`
	Channel      string    `json:"channel"`
	Weekday      int       `json:"weekday"`
	Month        int       `json:"month"`
	Season       string    `json:"season"`
	OccupancyPct float64   `json:"occupancy_pct"`
	BaseRate     float64   `json:"base_rate"`

	FactorSeason    float64 `json:"factor_season"`
	FactorOccupancy float64 `json:"factor_occupancy"`
	FactorChannel   float64 `json:"factor_channel"`
	FactorWeekday   float64 `json:"factor_weekday"`
	FactorTotal     float64 `json:"factor_total"`
	ClampedFactor   float64 `json:"clamped_factor"`

	RecommendedRate float64 `json:"recommended_rate"`
}

// ResetFactors sets every rule factor to the identity.
func (r *PricingRow) ResetFactors() {
	r.FactorSeason, r.FactorOccupancy, r.FactorChannel, r.FactorWeekday = 1, 1, 1, 1
}

// Product multiplies the four rule factors.
func (r PricingRow) Product() float64 {
	return r.FactorSeason * r.FactorOccupancy * r.FactorChannel * r.FactorWeekday
}
