package models

import "time"

// RunParams drives a full pipeline run. Zero dates default to the trailing year.
type RunParams struct {
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	Horizon     int        `json:"horizon"`
	RoomTypeID  *int64     `json:"room_type_id,omitempty"`
	Export      bool       `json:"export"`
	ExportStart *time.Time `json:"export_start,omitempty"`
	ExportEnd   *time.Time `json:"export_end,omitempty"`
	Channel     *string    `json:"channel,omitempty"`
}

// RunReport collects the envelope of each step of a full run.
type RunReport struct {
	RunID    string            `json:"run_id"`
	Steps    map[string]Result `json:"steps"`
	Halted   string            `json:"halted_at,omitempty"`
	Duration time.Duration     `json:"duration_ns"`
}

// ForecastSummary reports what a forecasting step did.
type ForecastSummary struct {
	Forecasts []Forecast       `json:"forecasts"`
	Skipped   map[int64]string `json:"skipped,omitempty"`
	Protected int              `json:"protected"`
}

// PricingSummary reports what a pricing step did.
type PricingSummary struct {
	Rows     []PricingRow `json:"rows"`
	Inserted int          `json:"inserted"`
	Updated  int          `json:"updated"`
}

// ExportSummary reports a written workbook.
type ExportSummary struct {
	Path     string `json:"path"`
	Rows     int    `json:"rows"`
	Exported int    `json:"exported"`
}

// Dashboard bundles the overview data.
type Dashboard struct {
	KPIs           []AggregateRow         `json:"kpis"`
	Aggregates     []AggregateRow         `json:"aggregates"`
	Forecasts      []Forecast             `json:"forecasts"`
	PendingExports []TariffRecommendation `json:"pending_exports"`
}
