package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HotelRevenue/internal/domain/models"
	domrepo "HotelRevenue/internal/domain/repository"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMemoryStore_UpsertRecommendationIsIdempotentOnKey(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	d := day(2024, 7, 6)

	id1, err := s.UpsertRecommendation(ctx, models.TariffRecommendation{Date: d, RoomTypeID: 1, Channel: "Directo", BaseRate: 100, RecommendedRate: 110})
	require.NoError(t, err)
	require.NoError(t, s.MarkApproved(ctx, id1, 108, d))

	id2, err := s.UpsertRecommendation(ctx, models.TariffRecommendation{Date: d, RoomTypeID: 1, Channel: "Directo", BaseRate: 120, RecommendedRate: 125})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	all, err := s.ListRecommendations(ctx, models.RecommendationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 120.0, all[0].BaseRate)
	assert.Equal(t, 125.0, all[0].ApprovedRate)
	assert.Equal(t, models.StateApproved, all[0].State)
}

func TestMemoryStore_TransitionsAreChecked(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id, err := s.UpsertRecommendation(ctx, models.TariffRecommendation{Date: day(2024, 7, 6), RoomTypeID: 1, Channel: "Directo"})
	require.NoError(t, err)

	err = s.MarkExported(ctx, []int64{id}, time.Now())
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))
	assert.True(t, errors.Is(s.MarkApproved(ctx, 999, 1, time.Now()), models.ErrNotFound))

	missing, err := s.GetRecommendation(ctx, day(2030, 1, 1), 1, "Directo")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStore_RulesOrderedByPriorityThenID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, r := range []models.PricingRule{
		{Name: "b", Kind: models.RuleWeekday, Priority: 2, Active: true},
		{Name: "a", Kind: models.RuleSeason, Priority: 1, Active: true},
		{Name: "c", Kind: models.RuleChannel, Priority: 2, Active: true},
		{Name: "off", Kind: models.RuleChannel, Priority: 0, Active: false},
	} {
		r := r
		_, err := s.SaveRule(ctx, &r)
		require.NoError(t, err)
	}
	rules, err := s.GetActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{rules[0].Name, rules[1].Name, rules[2].Name})
}

func TestMemoryStore_FactsFilteredAndOrdered(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.SaveOccupancy(ctx, []models.DailyOccupancyFact{
		{Date: day(2024, 1, 2), RoomTypeID: 2, Available: 10, Occupied: 5},
		{Date: day(2024, 1, 1), RoomTypeID: 2, Available: 10, Occupied: 4},
		{Date: day(2024, 1, 1), RoomTypeID: 1, Available: 10, Occupied: 3},
		{Date: day(2024, 2, 1), RoomTypeID: 1, Available: 10, Occupied: 3},
	}))
	assert.Error(t, s.SaveOccupancy(ctx, []models.DailyOccupancyFact{{Date: day(2024, 1, 1), Available: 1, Occupied: 2}}))

	r, _ := domrepo.NewDateRange(day(2024, 1, 1), day(2024, 1, 31))
	facts, err := s.GetOccupancy(ctx, r, nil)
	require.NoError(t, err)
	require.Len(t, facts, 3)
	assert.Equal(t, int64(1), facts[0].RoomTypeID)
	assert.Equal(t, day(2024, 1, 2), facts[2].Date)

	room := int64(2)
	facts, err = s.GetOccupancy(ctx, r, &room)
	require.NoError(t, err)
	assert.Len(t, facts, 2)
}

func TestMemoryStore_UpsertForecastKeepsID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id1, _ := s.UpsertForecast(ctx, models.Forecast{Date: day(2024, 7, 1), RoomTypeID: 1, OccupancyPct: 50})
	id2, _ := s.UpsertForecast(ctx, models.Forecast{Date: day(2024, 7, 1), RoomTypeID: 1, OccupancyPct: 60})
	assert.Equal(t, id1, id2)

	r, _ := domrepo.NewDateRange(day(2024, 7, 1), day(2024, 7, 1))
	got, err := s.GetForecasts(ctx, r, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 60.0, got[0].OccupancyPct)
}
