package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"HotelRevenue/internal/domain/models"
	domrepo "HotelRevenue/internal/domain/repository"
	"HotelRevenue/pkg/util"
)

type factKey struct {
	date string
	room int64
}

// MemoryStore implements Store in process. It backs tests, demos and the
// "memory" store driver.
type MemoryStore struct {
	mu        sync.RWMutex
	rooms     map[int64]models.RoomType
	occupancy map[factKey]models.DailyOccupancyFact
	revenue   map[factKey]models.DailyRevenueFact
	rules     map[int64]models.PricingRule
	forecasts map[factKey]models.Forecast
	recs      map[string]models.TariffRecommendation
	recByID   map[int64]string
	nextID    int64
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:     make(map[int64]models.RoomType),
		occupancy: make(map[factKey]models.DailyOccupancyFact),
		revenue:   make(map[factKey]models.DailyRevenueFact),
		rules:     make(map[int64]models.PricingRule),
		forecasts: make(map[factKey]models.Forecast),
		recs:      make(map[string]models.TariffRecommendation),
		recByID:   make(map[int64]string),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

var _ domrepo.Store = (*MemoryStore)(nil)

func (s *MemoryStore) Init(context.Context) error   { return nil }
func (s *MemoryStore) Health(context.Context) error { return nil }
func (s *MemoryStore) Close() error                 { return nil }

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func keyOf(date time.Time, room int64) factKey {
	return factKey{date: util.FormatDate(date), room: room}
}

func inScope(date time.Time, room int64, r domrepo.DateRange, roomTypeID *int64) bool {
	return r.Contains(date) && (roomTypeID == nil || *roomTypeID == room)
}

func (s *MemoryStore) SaveRoomTypes(_ context.Context, rooms []models.RoomType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rooms {
		s.rooms[r.ID] = r
	}
	return nil
}

func (s *MemoryStore) SaveOccupancy(_ context.Context, facts []models.DailyOccupancyFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range facts {
		if !f.Valid() {
			return fmt.Errorf("occupancy fact %s room %d: occupied %d outside [0,%d]", util.FormatDate(f.Date), f.RoomTypeID, f.Occupied, f.Available)
		}
		f.Date = util.Day(f.Date)
		s.occupancy[keyOf(f.Date, f.RoomTypeID)] = f
	}
	return nil
}

func (s *MemoryStore) SaveRevenue(_ context.Context, facts []models.DailyRevenueFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range facts {
		f.Date = util.Day(f.Date)
		s.revenue[keyOf(f.Date, f.RoomTypeID)] = f
	}
	return nil
}

func (s *MemoryStore) GetRoomTypes(context.Context) ([]models.RoomType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.RoomType, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetOccupancy(_ context.Context, r domrepo.DateRange, roomTypeID *int64) ([]models.DailyOccupancyFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DailyOccupancyFact
	for _, f := range s.occupancy {
		if inScope(f.Date, f.RoomTypeID, r, roomTypeID) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return lessDateRoom(out[i].Date, out[i].RoomTypeID, out[j].Date, out[j].RoomTypeID)
	})
	return out, nil
}

func (s *MemoryStore) GetRevenue(_ context.Context, r domrepo.DateRange, roomTypeID *int64) ([]models.DailyRevenueFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DailyRevenueFact
	for _, f := range s.revenue {
		if inScope(f.Date, f.RoomTypeID, r, roomTypeID) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return lessDateRoom(out[i].Date, out[i].RoomTypeID, out[j].Date, out[j].RoomTypeID)
	})
	return out, nil
}

func (s *MemoryStore) GetActiveRules(context.Context) ([]models.PricingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PricingRule
	for _, r := range s.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) SaveRule(_ context.Context, rule *models.PricingRule) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if rule.ID == 0 {
		rule.ID = s.id()
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	s.rules[rule.ID] = *rule
	return rule.ID, nil
}

func (s *MemoryStore) UpsertForecast(_ context.Context, f models.Forecast) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.Date = util.Day(f.Date)
	k := keyOf(f.Date, f.RoomTypeID)
	if existing, ok := s.forecasts[k]; ok {
		f.ID = existing.ID
	} else {
		f.ID = s.id()
	}
	f.UpdatedAt = s.now()
	s.forecasts[k] = f
	return f.ID, nil
}

func (s *MemoryStore) GetForecasts(_ context.Context, r domrepo.DateRange, roomTypeID *int64) ([]models.Forecast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Forecast
	for _, f := range s.forecasts {
		if inScope(f.Date, f.RoomTypeID, r, roomTypeID) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return lessDateRoom(out[i].Date, out[i].RoomTypeID, out[j].Date, out[j].RoomTypeID)
	})
	return out, nil
}

func (s *MemoryStore) UpsertRecommendation(_ context.Context, rec models.TariffRecommendation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	rec.Date = util.Day(rec.Date)
	k := rec.Key()
	if existing, ok := s.recs[k]; ok {
		merged := models.MergeForUpsert(existing, rec, now)
		s.recs[k] = merged
		return merged.ID, nil
	}
	rec.ID = s.id()
	rec.State = models.StatePending
	rec.ApprovedRate = rec.RecommendedRate
	rec.CreatedAt, rec.UpdatedAt = now, now
	rec.ApprovedAt, rec.ExportedAt = nil, nil
	s.recs[k] = rec
	s.recByID[rec.ID] = k
	return rec.ID, nil
}

func (s *MemoryStore) GetRecommendation(_ context.Context, date time.Time, roomTypeID int64, channel string) (*models.TariffRecommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[models.RecommendationKey(util.Day(date), roomTypeID, channel)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) GetRecommendationByID(_ context.Context, id int64) (*models.TariffRecommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.recByID[id]
	if !ok {
		return nil, nil
	}
	rec := s.recs[k]
	return &rec, nil
}

func (s *MemoryStore) ListRecommendations(_ context.Context, f models.RecommendationFilter) ([]models.TariffRecommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TariffRecommendation
	for _, r := range s.recs {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	sortRecommendations(out)
	return out, nil
}

func (s *MemoryStore) MarkApproved(_ context.Context, id int64, approvedRate float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.recByID[id]
	if !ok {
		return fmt.Errorf("recommendation %d: %w", id, models.ErrNotFound)
	}
	rec := s.recs[k]
	if !models.CanTransition(rec.State, models.StateApproved) {
		return fmt.Errorf("recommendation %d %s -> %s: %w", id, rec.State, models.StateApproved, models.ErrInvalidTransition)
	}
	rec.State = models.StateApproved
	rec.ApprovedRate = approvedRate
	rec.ApprovedAt = &at
	rec.UpdatedAt = at
	s.recs[k] = rec
	return nil
}

func (s *MemoryStore) MarkExported(_ context.Context, ids []int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		k, ok := s.recByID[id]
		if !ok {
			return fmt.Errorf("recommendation %d: %w", id, models.ErrNotFound)
		}
		if !models.CanTransition(s.recs[k].State, models.StateExported) {
			return fmt.Errorf("recommendation %d %s -> %s: %w", id, s.recs[k].State, models.StateExported, models.ErrInvalidTransition)
		}
	}
	for _, id := range ids {
		k := s.recByID[id]
		rec := s.recs[k]
		rec.State = models.StateExported
		rec.ExportedAt = &at
		rec.UpdatedAt = at
		s.recs[k] = rec
	}
	return nil
}

func lessDateRoom(d1 time.Time, r1 int64, d2 time.Time, r2 int64) bool {
	if !d1.Equal(d2) {
		return d1.Before(d2)
	}
	return r1 < r2
}

func sortRecommendations(recs []models.TariffRecommendation) {
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.RoomTypeID != b.RoomTypeID {
			return a.RoomTypeID < b.RoomTypeID
		}
		return a.Channel < b.Channel
	})
}
