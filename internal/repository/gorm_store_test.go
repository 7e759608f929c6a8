package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HotelRevenue/internal/domain/models"
	domrepo "HotelRevenue/internal/domain/repository"
	"HotelRevenue/pkg/database"
)

func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := database.Open(database.Config{Driver: "sqlite", DSN: "file::memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	s := NewGormStore(db, true)
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGormStore_FactsRoundTripInOrder(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRoomTypes(ctx, []models.RoomType{{ID: 1, Code: "STD", Name: "Standard", Capacity: 2, Units: 10, BaseRate: 100}}))
	require.NoError(t, s.SaveOccupancy(ctx, []models.DailyOccupancyFact{
		{Date: day(2024, 1, 2), RoomTypeID: 1, Available: 10, Occupied: 6},
		{Date: day(2024, 1, 1), RoomTypeID: 1, Available: 10, Occupied: 5},
	}))
	// re-seeding the same key overwrites
	require.NoError(t, s.SaveOccupancy(ctx, []models.DailyOccupancyFact{{Date: day(2024, 1, 1), RoomTypeID: 1, Available: 10, Occupied: 7}}))

	r, err := domrepo.NewDateRange(day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	occ, err := s.GetOccupancy(ctx, r, nil)
	require.NoError(t, err)
	require.Len(t, occ, 2)
	assert.True(t, occ[0].Date.Equal(day(2024, 1, 1)))
	assert.Equal(t, 7, occ[0].Occupied)

	rooms, err := s.GetRoomTypes(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "STD", rooms[0].Code)

	err = s.SaveOccupancy(ctx, []models.DailyOccupancyFact{{Date: day(2024, 1, 3), RoomTypeID: 1, Available: 2, Occupied: 3}})
	assert.Error(t, err)
}

func TestGormStore_RecommendationUpsertKeepsOneRowPerKey(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	d := day(2024, 7, 6)

	id1, err := s.UpsertRecommendation(ctx, models.TariffRecommendation{Date: d, RoomTypeID: 1, Channel: "Booking", BaseRate: 100, RecommendedRate: 110})
	require.NoError(t, err)
	require.NoError(t, s.MarkApproved(ctx, id1, 105, d))

	id2, err := s.UpsertRecommendation(ctx, models.TariffRecommendation{Date: d, RoomTypeID: 1, Channel: "Booking", BaseRate: 100, RecommendedRate: 130})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	all, err := s.ListRecommendations(ctx, models.RecommendationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.StateApproved, all[0].State)
	assert.Equal(t, 130.0, all[0].ApprovedRate)

	got, err := s.GetRecommendation(ctx, d, 1, "Booking")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id1, got.ID)
}

func TestGormStore_ExportTransitions(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	d := day(2024, 7, 6)

	pending, err := s.UpsertRecommendation(ctx, models.TariffRecommendation{Date: d, RoomTypeID: 1, Channel: "Directo", RecommendedRate: 95})
	require.NoError(t, err)
	assert.True(t, errors.Is(s.MarkExported(ctx, []int64{pending}, d), models.ErrInvalidTransition))
	assert.True(t, errors.Is(s.MarkApproved(ctx, 404, 1, d), models.ErrNotFound))

	require.NoError(t, s.MarkApproved(ctx, pending, 95, d))
	require.NoError(t, s.MarkExported(ctx, []int64{pending}, d))

	approved := models.StateExported
	list, err := s.ListRecommendations(ctx, models.RecommendationFilter{States: []models.RecommendationState{approved}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotNil(t, list[0].ExportedAt)

	missing, err := s.GetRecommendationByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGormStore_RulesAndForecasts(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	inactive := models.PricingRule{Name: "off", Kind: models.RuleSeason, Params: []byte(`{"factors":{"Alta":1.2}}`), Priority: 1}
	_, err := s.SaveRule(ctx, &inactive)
	require.NoError(t, err)
	rule := models.PricingRule{Name: "weekday", Kind: models.RuleWeekday, Params: []byte(`{"factors":{"5":1.1}}`), Priority: 3, Active: true}
	id, err := s.SaveRule(ctx, &rule)
	require.NoError(t, err)
	assert.NotZero(t, id)

	rules, err := s.GetActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.JSONEq(t, `{"factors":{"5":1.1}}`, string(rules[0].Params))

	fid, err := s.UpsertForecast(ctx, models.Forecast{Date: day(2024, 8, 1), RoomTypeID: 1, OccupancyPct: 0.5})
	require.NoError(t, err)
	fid2, err := s.UpsertForecast(ctx, models.Forecast{Date: day(2024, 8, 1), RoomTypeID: 1, OccupancyPct: 0.7})
	require.NoError(t, err)
	assert.Equal(t, fid, fid2)

	r, _ := domrepo.NewDateRange(day(2024, 8, 1), day(2024, 8, 1))
	fcs, err := s.GetForecasts(ctx, r, nil)
	require.NoError(t, err)
	require.Len(t, fcs, 1)
	assert.Equal(t, 0.7, fcs[0].OccupancyPct)
}
