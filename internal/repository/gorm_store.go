package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"HotelRevenue/internal/domain/models"
	domrepo "HotelRevenue/internal/domain/repository"
	"HotelRevenue/pkg/database"
	"HotelRevenue/pkg/util"
)

type roomTypeRecord struct {
	ID       int64  `gorm:"primaryKey;autoIncrement:false"`
	Code     string `gorm:"size:16;uniqueIndex"`
	Name     string `gorm:"size:128"`
	Capacity int
	Units    int
	BaseRate float64
}

func (roomTypeRecord) TableName() string { return "room_types" }

type occupancyRecord struct {
	Date       time.Time `gorm:"primaryKey"`
	RoomTypeID int64     `gorm:"primaryKey;autoIncrement:false"`
	Available  int
	Occupied   int
}

func (occupancyRecord) TableName() string { return "daily_occupancy" }

type revenueRecord struct {
	Date       time.Time `gorm:"primaryKey"`
	RoomTypeID int64     `gorm:"primaryKey;autoIncrement:false"`
	Revenue    float64
}

func (revenueRecord) TableName() string { return "daily_revenue" }

type ruleRecord struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"size:128"`
	Kind      string `gorm:"size:32"`
	Params    string `gorm:"type:text"`
	Priority  int    `gorm:"index"`
	Active    bool   `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ruleRecord) TableName() string { return "pricing_rules" }

type forecastRecord struct {
	ID               int64     `gorm:"primaryKey"`
	Date             time.Time `gorm:"uniqueIndex:idx_forecast_key"`
	RoomTypeID       int64     `gorm:"uniqueIndex:idx_forecast_key"`
	OccupancyPct     float64
	OccupancyLower   float64
	OccupancyUpper   float64
	ADR              float64 `gorm:"column:adr"`
	RevPAR           float64 `gorm:"column:revpar"`
	ManuallyAdjusted bool
	UpdatedAt        time.Time
}

func (forecastRecord) TableName() string { return "forecasts" }

type recommendationRecord struct {
	ID              int64     `gorm:"primaryKey"`
	Date            time.Time `gorm:"uniqueIndex:idx_recommendation_key"`
	RoomTypeID      int64     `gorm:"uniqueIndex:idx_recommendation_key"`
	Channel         string    `gorm:"size:64;uniqueIndex:idx_recommendation_key"`
	BaseRate        float64
	RecommendedRate float64
	ApprovedRate    float64
	State           string `gorm:"size:16;index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ApprovedAt      *time.Time
	ExportedAt      *time.Time
}

func (recommendationRecord) TableName() string { return "tariff_recommendations" }

func (r recommendationRecord) toModel() models.TariffRecommendation {
	return models.TariffRecommendation{
		ID: r.ID, Date: util.Day(r.Date), RoomTypeID: r.RoomTypeID, Channel: r.Channel,
		BaseRate: r.BaseRate, RecommendedRate: r.RecommendedRate, ApprovedRate: r.ApprovedRate,
		State: models.RecommendationState(r.State), CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
		ApprovedAt: r.ApprovedAt, ExportedAt: r.ExportedAt,
	}
}

func recommendationFromModel(m models.TariffRecommendation) recommendationRecord {
	return recommendationRecord{
		ID: m.ID, Date: util.Day(m.Date), RoomTypeID: m.RoomTypeID, Channel: m.Channel,
		BaseRate: m.BaseRate, RecommendedRate: m.RecommendedRate, ApprovedRate: m.ApprovedRate,
		State: string(m.State), CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
		ApprovedAt: m.ApprovedAt, ExportedAt: m.ExportedAt,
	}
}

// GormStore implements Store on a relational database through GORM.
type GormStore struct {
	db          *gorm.DB
	autoMigrate bool
	now         func() time.Time
}

func NewGormStore(db *gorm.DB, autoMigrate bool) *GormStore {
	return &GormStore{db: db, autoMigrate: autoMigrate, now: func() time.Time { return time.Now().UTC() }}
}

var _ domrepo.Store = (*GormStore)(nil)

func (s *GormStore) Init(ctx context.Context) error {
	if !s.autoMigrate {
		return nil
	}
	err := s.db.WithContext(ctx).AutoMigrate(
		&roomTypeRecord{}, &occupancyRecord{}, &revenueRecord{},
		&ruleRecord{}, &forecastRecord{}, &recommendationRecord{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (s *GormStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	return database.Close(s.db)
}

func (s *GormStore) scoped(ctx context.Context, r domrepo.DateRange, roomTypeID *int64) *gorm.DB {
	q := s.db.WithContext(ctx).Where("date >= ? AND date <= ?", r.From, r.To)
	if roomTypeID != nil {
		q = q.Where("room_type_id = ?", *roomTypeID)
	}
	return q.Order("date, room_type_id")
}

func (s *GormStore) SaveRoomTypes(ctx context.Context, rooms []models.RoomType) error {
	if len(rooms) == 0 {
		return nil
	}
	recs := make([]roomTypeRecord, len(rooms))
	for i, r := range rooms {
		recs[i] = roomTypeRecord{ID: r.ID, Code: r.Code, Name: r.Name, Capacity: r.Capacity, Units: r.Units, BaseRate: r.BaseRate}
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&recs).Error
}

func (s *GormStore) SaveOccupancy(ctx context.Context, facts []models.DailyOccupancyFact) error {
	if len(facts) == 0 {
		return nil
	}
	recs := make([]occupancyRecord, len(facts))
	for i, f := range facts {
		if !f.Valid() {
			return fmt.Errorf("occupancy fact %s room %d: occupied %d outside [0,%d]", util.FormatDate(f.Date), f.RoomTypeID, f.Occupied, f.Available)
		}
		recs[i] = occupancyRecord{Date: util.Day(f.Date), RoomTypeID: f.RoomTypeID, Available: f.Available, Occupied: f.Occupied}
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(&recs, 500).Error
}

func (s *GormStore) SaveRevenue(ctx context.Context, facts []models.DailyRevenueFact) error {
	if len(facts) == 0 {
		return nil
	}
	recs := make([]revenueRecord, len(facts))
	for i, f := range facts {
		recs[i] = revenueRecord{Date: util.Day(f.Date), RoomTypeID: f.RoomTypeID, Revenue: f.Revenue}
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(&recs, 500).Error
}

func (s *GormStore) GetRoomTypes(ctx context.Context) ([]models.RoomType, error) {
	var recs []roomTypeRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("get room types: %w", err)
	}
	out := make([]models.RoomType, len(recs))
	for i, r := range recs {
		out[i] = models.RoomType{ID: r.ID, Code: r.Code, Name: r.Name, Capacity: r.Capacity, Units: r.Units, BaseRate: r.BaseRate}
	}
	return out, nil
}

func (s *GormStore) GetOccupancy(ctx context.Context, r domrepo.DateRange, roomTypeID *int64) ([]models.DailyOccupancyFact, error) {
	var recs []occupancyRecord
	if err := s.scoped(ctx, r, roomTypeID).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("get occupancy: %w", err)
	}
	out := make([]models.DailyOccupancyFact, len(recs))
	for i, rec := range recs {
		out[i] = models.DailyOccupancyFact{Date: util.Day(rec.Date), RoomTypeID: rec.RoomTypeID, Available: rec.Available, Occupied: rec.Occupied}
	}
	return out, nil
}

func (s *GormStore) GetRevenue(ctx context.Context, r domrepo.DateRange, roomTypeID *int64) ([]models.DailyRevenueFact, error) {
	var recs []revenueRecord
	if err := s.scoped(ctx, r, roomTypeID).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("get revenue: %w", err)
	}
	out := make([]models.DailyRevenueFact, len(recs))
	for i, rec := range recs {
		out[i] = models.DailyRevenueFact{Date: util.Day(rec.Date), RoomTypeID: rec.RoomTypeID, Revenue: rec.Revenue}
	}
	return out, nil
}

func (s *GormStore) GetActiveRules(ctx context.Context) ([]models.PricingRule, error) {
	var recs []ruleRecord
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("priority, id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("get active rules: %w", err)
	}
	out := make([]models.PricingRule, len(recs))
	for i, r := range recs {
		out[i] = models.PricingRule{
			ID: r.ID, Name: r.Name, Kind: models.RuleKind(r.Kind), Params: []byte(r.Params),
			Priority: r.Priority, Active: r.Active, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
		}
	}
	return out, nil
}

func (s *GormStore) SaveRule(ctx context.Context, rule *models.PricingRule) (int64, error) {
	rec := ruleRecord{
		ID: rule.ID, Name: rule.Name, Kind: string(rule.Kind), Params: string(rule.Params),
		Priority: rule.Priority, Active: rule.Active, CreatedAt: rule.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return 0, fmt.Errorf("save rule: %w", err)
	}
	rule.ID, rule.CreatedAt, rule.UpdatedAt = rec.ID, rec.CreatedAt, rec.UpdatedAt
	return rec.ID, nil
}

func (s *GormStore) UpsertForecast(ctx context.Context, f models.Forecast) (int64, error) {
	rec := forecastRecord{
		Date: util.Day(f.Date), RoomTypeID: f.RoomTypeID,
		OccupancyPct: f.OccupancyPct, OccupancyLower: f.OccupancyLower, OccupancyUpper: f.OccupancyUpper,
		ADR: f.ADR, RevPAR: f.RevPAR, ManuallyAdjusted: f.ManuallyAdjusted,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing forecastRecord
		err := tx.Where("date = ? AND room_type_id = ?", rec.Date, rec.RoomTypeID).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&rec).Error
		case err != nil:
			return err
		}
		rec.ID = existing.ID
		return tx.Save(&rec).Error
	})
	if err != nil {
		return 0, fmt.Errorf("upsert forecast: %w", err)
	}
	return rec.ID, nil
}

func (s *GormStore) GetForecasts(ctx context.Context, r domrepo.DateRange, roomTypeID *int64) ([]models.Forecast, error) {
	var recs []forecastRecord
	if err := s.scoped(ctx, r, roomTypeID).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("get forecasts: %w", err)
	}
	out := make([]models.Forecast, len(recs))
	for i, rec := range recs {
		out[i] = models.Forecast{
			ID: rec.ID, Date: util.Day(rec.Date), RoomTypeID: rec.RoomTypeID,
			OccupancyPct: rec.OccupancyPct, OccupancyLower: rec.OccupancyLower, OccupancyUpper: rec.OccupancyUpper,
			ADR: rec.ADR, RevPAR: rec.RevPAR, ManuallyAdjusted: rec.ManuallyAdjusted, UpdatedAt: rec.UpdatedAt,
		}
	}
	return out, nil
}

func (s *GormStore) UpsertRecommendation(ctx context.Context, rec models.TariffRecommendation) (int64, error) {
	var id int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		var existing recommendationRecord
		err := tx.Where("date = ? AND room_type_id = ? AND channel = ?", util.Day(rec.Date), rec.RoomTypeID, rec.Channel).
			Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			fresh := rec
			fresh.ID = 0
			fresh.State = models.StatePending
			fresh.ApprovedRate = rec.RecommendedRate
			fresh.CreatedAt, fresh.UpdatedAt = now, now
			fresh.ApprovedAt, fresh.ExportedAt = nil, nil
			row := recommendationFromModel(fresh)
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			id = row.ID
			return nil
		case err != nil:
			return err
		}
		merged := recommendationFromModel(models.MergeForUpsert(existing.toModel(), rec, now))
		id = merged.ID
		return tx.Model(&recommendationRecord{}).Where("id = ?", merged.ID).Updates(map[string]interface{}{
			"base_rate":        merged.BaseRate,
			"recommended_rate": merged.RecommendedRate,
			"approved_rate":    merged.ApprovedRate,
			"updated_at":       merged.UpdatedAt,
		}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("upsert recommendation %s: %w", rec.Key(), err)
	}
	return id, nil
}

func (s *GormStore) GetRecommendation(ctx context.Context, date time.Time, roomTypeID int64, channel string) (*models.TariffRecommendation, error) {
	return s.takeRecommendation(s.db.WithContext(ctx).Where("date = ? AND room_type_id = ? AND channel = ?", util.Day(date), roomTypeID, channel))
}

func (s *GormStore) GetRecommendationByID(ctx context.Context, id int64) (*models.TariffRecommendation, error) {
	return s.takeRecommendation(s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *GormStore) takeRecommendation(q *gorm.DB) (*models.TariffRecommendation, error) {
	var rec recommendationRecord
	err := q.Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recommendation: %w", err)
	}
	m := rec.toModel()
	return &m, nil
}

func (s *GormStore) ListRecommendations(ctx context.Context, f models.RecommendationFilter) ([]models.TariffRecommendation, error) {
	q := s.db.WithContext(ctx).Model(&recommendationRecord{})
	if f.From != nil {
		q = q.Where("date >= ?", util.Day(*f.From))
	}
	if f.To != nil {
		q = q.Where("date <= ?", util.Day(*f.To))
	}
	if f.RoomTypeID != nil {
		q = q.Where("room_type_id = ?", *f.RoomTypeID)
	}
	if f.Channel != nil {
		q = q.Where("channel = ?", *f.Channel)
	}
	if len(f.States) > 0 {
		states := make([]string, len(f.States))
		for i, st := range f.States {
			states[i] = string(st)
		}
		q = q.Where("state IN ?", states)
	}

	var recs []recommendationRecord
	if err := q.Order("date, room_type_id, channel").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	out := make([]models.TariffRecommendation, len(recs))
	for i, r := range recs {
		out[i] = r.toModel()
	}
	return out, nil
}

func (s *GormStore) MarkApproved(ctx context.Context, id int64, approvedRate float64, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec recommendationRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("recommendation %d: %w", id, models.ErrNotFound)
			}
			return err
		}
		from := models.RecommendationState(rec.State)
		if !models.CanTransition(from, models.StateApproved) {
			return fmt.Errorf("recommendation %d %s -> %s: %w", id, from, models.StateApproved, models.ErrInvalidTransition)
		}
		return tx.Model(&recommendationRecord{}).Where("id = ?", id).Updates(map[string]interface{}{
			"state":         string(models.StateApproved),
			"approved_rate": approvedRate,
			"approved_at":   at,
			"updated_at":    at,
		}).Error
	})
}

func (s *GormStore) MarkExported(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recs []recommendationRecord
		if err := tx.Where("id IN ?", ids).Find(&recs).Error; err != nil {
			return err
		}
		found := make(map[int64]recommendationRecord, len(recs))
		for _, r := range recs {
			found[r.ID] = r
		}
		for _, id := range ids {
			r, ok := found[id]
			if !ok {
				return fmt.Errorf("recommendation %d: %w", id, models.ErrNotFound)
			}
			from := models.RecommendationState(r.State)
			if !models.CanTransition(from, models.StateExported) {
				return fmt.Errorf("recommendation %d %s -> %s: %w", id, from, models.StateExported, models.ErrInvalidTransition)
			}
		}
		return tx.Model(&recommendationRecord{}).Where("id IN ?", ids).Updates(map[string]interface{}{
			"state":       string(models.StateExported),
			"exported_at": at,
			"updated_at":  at,
		}).Error
	})
}
