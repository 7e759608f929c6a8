package repository

import (
	"context"
	"time"

	"HotelRevenue/internal/domain/models"
)

// FactReader supplies historical facts and reference data.
type FactReader interface {
	GetOccupancy(ctx context.Context, r DateRange, roomTypeID *int64) ([]models.DailyOccupancyFact, error)
	GetRevenue(ctx context.Context, r DateRange, roomTypeID *int64) ([]models.DailyRevenueFact, error)
	GetRoomTypes(ctx context.Context) ([]models.RoomType, error)
}

// FactWriter seeds reference data and facts.
type FactWriter interface {
	SaveRoomTypes(ctx context.Context, rooms []models.RoomType) error
	SaveOccupancy(ctx context.Context, facts []models.DailyOccupancyFact) error
	SaveRevenue(ctx context.Context, facts []models.DailyRevenueFact) error
}

// RuleStore persists pricing rules.
type RuleStore interface {
	GetActiveRules(ctx context.Context) ([]models.PricingRule, error)
	SaveRule(ctx context.Context, rule *models.PricingRule) (int64, error)
}

// ForecastStore persists forecasts keyed by (date, room type).
type ForecastStore interface {
	UpsertForecast(ctx context.Context, f models.Forecast) (int64, error)
	GetForecasts(ctx context.Context, r DateRange, roomTypeID *int64) ([]models.Forecast, error)
}

// RecommendationStore persists recommendations keyed by (date, room type, channel).
type RecommendationStore interface {
	// UpsertRecommendation inserts a Pending row or merges rates into the existing key.
	UpsertRecommendation(ctx context.Context, rec models.TariffRecommendation) (int64, error)
	// GetRecommendation returns nil, nil when the key is absent.
	GetRecommendation(ctx context.Context, date time.Time, roomTypeID int64, channel string) (*models.TariffRecommendation, error)
	GetRecommendationByID(ctx context.Context, id int64) (*models.TariffRecommendation, error)
	ListRecommendations(ctx context.Context, f models.RecommendationFilter) ([]models.TariffRecommendation, error)
	MarkApproved(ctx context.Context, id int64, approvedRate float64, at time.Time) error
	MarkExported(ctx context.Context, ids []int64, at time.Time) error
}

// Store is everything the pipeline needs from persistence.
type Store interface {
	FactReader
	FactWriter
	RuleStore
	ForecastStore
	RecommendationStore
	Init(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}

// EventPublisher emits pipeline events.
type EventPublisher interface {
	PublishRecommendations(ctx context.Context, runID string, recs []models.TariffRecommendation) error
	PublishExport(ctx context.Context, summary models.ExportSummary, ids []int64) error
	Close() error
}

// Metrics records pipeline telemetry.
type Metrics interface {
	RecordStep(step string, ok bool, seconds float64)
	RecordRows(step string, n int)
	RecordForecasts(roomType string, n int)
	RecordRecommendations(channel string, n int)
	RecordRuleFallback(kind string)
	RecordError(kind string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordStep(string, bool, float64)  {}
func (NopMetrics) RecordRows(string, int)            {}
func (NopMetrics) RecordForecasts(string, int)       {}
func (NopMetrics) RecordRecommendations(string, int) {}
func (NopMetrics) RecordRuleFallback(string)         {}
func (NopMetrics) RecordError(string)                {}
