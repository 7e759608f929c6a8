package kpi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HotelRevenue/internal/domain/models"
	domrepo "HotelRevenue/internal/domain/repository"
	"HotelRevenue/internal/repository"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seed(t *testing.T, occ []models.DailyOccupancyFact, rev []models.DailyRevenueFact) *repository.MemoryStore {
	t.Helper()
	s := repository.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.SaveRoomTypes(ctx, []models.RoomType{
		{ID: 1, Code: "EST", Name: "Estándar"},
		{ID: 2, Code: "SUI", Name: "Suite"},
	}))
	require.NoError(t, s.SaveOccupancy(ctx, occ))
	require.NoError(t, s.SaveRevenue(ctx, rev))
	return s
}

func rng(t *testing.T, from, to time.Time) domrepo.DateRange {
	t.Helper()
	r, err := domrepo.NewDateRange(from, to)
	require.NoError(t, err)
	return r
}

func calendar() models.SeasonCalendar {
	return models.SeasonCalendar{time.January: "Alta", time.February: "Media"}
}

func TestCalculate_DerivesRatiosAndLeavesUndefinedNil(t *testing.T) {
	s := seed(t,
		[]models.DailyOccupancyFact{
			{Date: day(2024, 1, 1), RoomTypeID: 1, Available: 10, Occupied: 8},
			{Date: day(2024, 1, 1), RoomTypeID: 2, Available: 0, Occupied: 0},
			{Date: day(2024, 1, 2), RoomTypeID: 1, Available: 10, Occupied: 5},
		},
		[]models.DailyRevenueFact{
			{Date: day(2024, 1, 1), RoomTypeID: 1, Revenue: 800},
			{Date: day(2024, 1, 1), RoomTypeID: 2, Revenue: 0},
		})
	c := NewCalculator(s, calendar(), nil)

	rows, err := c.Calculate(context.Background(), rng(t, day(2024, 1, 1), day(2024, 1, 31)), nil)
	require.NoError(t, err)
	// the 2nd of January has no revenue fact and is dropped by the join
	require.Len(t, rows, 2)

	assert.Equal(t, "Estándar", rows[0].RoomType)
	assert.InDelta(t, 80.0, *rows[0].OccupancyPct, 1e-9)
	assert.InDelta(t, 100.0, *rows[0].ADR, 1e-9)
	assert.InDelta(t, 80.0, *rows[0].RevPAR, 1e-9)

	assert.Nil(t, rows[1].OccupancyPct)
	assert.Nil(t, rows[1].ADR)
	assert.Nil(t, rows[1].RevPAR)

	for _, r := range rows {
		if r.OccupancyPct != nil {
			assert.GreaterOrEqual(t, *r.OccupancyPct, 0.0)
			assert.LessOrEqual(t, *r.OccupancyPct, 100.0)
		}
	}
}

func TestCalculate_NoFactsIsEmptyNotError(t *testing.T) {
	c := NewCalculator(repository.NewMemoryStore(), calendar(), nil)
	rows, err := c.Calculate(context.Background(), rng(t, day(2024, 1, 1), day(2024, 1, 31)), nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAggregate_RecomputesFromSums(t *testing.T) {
	// 1/1 = 100% and 50/100 = 50%; the mean of ratios would be 75%.
	s := seed(t,
		[]models.DailyOccupancyFact{
			{Date: day(2024, 1, 1), RoomTypeID: 1, Available: 1, Occupied: 1},
			{Date: day(2024, 1, 2), RoomTypeID: 1, Available: 100, Occupied: 50},
		},
		[]models.DailyRevenueFact{
			{Date: day(2024, 1, 1), RoomTypeID: 1, Revenue: 100},
			{Date: day(2024, 1, 2), RoomTypeID: 1, Revenue: 2500},
		})
	c := NewCalculator(s, calendar(), nil)

	agg, err := c.Aggregate(context.Background(), rng(t, day(2024, 1, 1), day(2024, 1, 2)), models.GroupByRoomType, nil)
	require.NoError(t, err)
	require.Len(t, agg, 1)
	assert.Nil(t, agg[0].Date)
	assert.Equal(t, int64(1), *agg[0].RoomTypeID)
	assert.Equal(t, 101, agg[0].Available)
	assert.Equal(t, 51, agg[0].Occupied)
	assert.InDelta(t, 51.0/101.0*100, *agg[0].OccupancyPct, 1e-9)
	assert.InDelta(t, 2600.0/51.0, *agg[0].ADR, 1e-9)

	byDate, err := c.Aggregate(context.Background(), rng(t, day(2024, 1, 1), day(2024, 1, 2)), models.GroupByDate, nil)
	require.NoError(t, err)
	require.Len(t, byDate, 2)
	assert.Nil(t, byDate[0].RoomTypeID)
	assert.True(t, byDate[0].Date.Before(*byDate[1].Date))

	_, err = c.Aggregate(context.Background(), rng(t, day(2024, 1, 1), day(2024, 1, 2)), "month", nil)
	assert.Error(t, err)
}

func TestPatterns_GroupsBySeasonAndWeekday(t *testing.T) {
	// 2024-01-01 is a Monday; March is not in the calendar.
	s := seed(t,
		[]models.DailyOccupancyFact{
			{Date: day(2024, 1, 1), RoomTypeID: 1, Available: 10, Occupied: 6},
			{Date: day(2024, 1, 8), RoomTypeID: 1, Available: 10, Occupied: 8},
			{Date: day(2024, 3, 5), RoomTypeID: 2, Available: 0, Occupied: 0},
		},
		[]models.DailyRevenueFact{
			{Date: day(2024, 1, 1), RoomTypeID: 1, Revenue: 600},
			{Date: day(2024, 1, 8), RoomTypeID: 1, Revenue: 1600},
			{Date: day(2024, 3, 5), RoomTypeID: 2, Revenue: 0},
		})
	c := NewCalculator(s, calendar(), nil)

	p, err := c.Patterns(context.Background(), rng(t, day(2024, 1, 1), day(2024, 3, 31)), nil)
	require.NoError(t, err)
	require.False(t, p.Empty())

	require.Len(t, p.BySeason, 2)
	assert.Equal(t, "Alta", p.BySeason[0].Season)
	assert.InDelta(t, 70.0, *p.BySeason[0].MeanOcc, 1e-9)
	assert.InDelta(t, 150.0, *p.BySeason[0].MeanADR, 1e-9)
	assert.Equal(t, models.UnknownSeason, p.BySeason[1].Season)
	assert.Nil(t, p.BySeason[1].MeanOcc)

	require.Len(t, p.ByWeekday, 2)
	assert.Equal(t, 0, *p.ByWeekday[0].Weekday)
	assert.Equal(t, 2, p.ByWeekday[0].Days)
	assert.Equal(t, 1, *p.ByWeekday[1].Weekday)

	require.Len(t, p.ByRoomType, 2)
	assert.Equal(t, "Suite", p.ByRoomType[1].RoomType)
	assert.Len(t, p.ByRoomTypeSeason, 2)
	assert.Len(t, p.ByRoomTypeWeekday, 2)
}

func TestCompareYears_Variation(t *testing.T) {
	id := int64(1)
	occCur, occPrev := 90.0, 60.0
	cur := []models.AggregateRow{{RoomTypeID: &id, Revenue: 90, Occupied: 90, KPIs: models.KPIs{OccupancyPct: &occCur}}}
	prev := []models.AggregateRow{{RoomTypeID: &id, Revenue: 60, Occupied: 60, KPIs: models.KPIs{OccupancyPct: &occPrev}}}

	rows := CompareYears(cur, prev)
	require.Len(t, rows, 1)
	assert.InDelta(t, 50.0, rows[0].VarOccupancy, 1e-9)
	assert.InDelta(t, 50.0, rows[0].VarRevenue, 1e-9)
	assert.InDelta(t, 50.0, rows[0].VarRoomsSold, 1e-9)
	// previous ADR undefined counts as zero
	assert.Equal(t, 0.0, rows[0].VarADR)
}

func TestYearOverYear_ShiftsExactly365Days(t *testing.T) {
	s := seed(t,
		[]models.DailyOccupancyFact{
			{Date: day(2024, 6, 10), RoomTypeID: 1, Available: 10, Occupied: 9},
			{Date: day(2023, 6, 11), RoomTypeID: 1, Available: 10, Occupied: 6},
			{Date: day(2024, 6, 10), RoomTypeID: 2, Available: 2, Occupied: 1},
		},
		[]models.DailyRevenueFact{
			{Date: day(2024, 6, 10), RoomTypeID: 1, Revenue: 900},
			{Date: day(2023, 6, 11), RoomTypeID: 1, Revenue: 600},
			{Date: day(2024, 6, 10), RoomTypeID: 2, Revenue: 100},
		})
	c := NewCalculator(s, calendar(), nil)

	rows, err := c.YearOverYear(context.Background(), rng(t, day(2024, 6, 10), day(2024, 6, 10)), nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NotNil(t, rows[0].Previous)
	assert.InDelta(t, 50.0, rows[0].VarOccupancy, 1e-9)
	assert.InDelta(t, 50.0, rows[0].VarRevenue, 1e-9)

	assert.Nil(t, rows[1].Previous)
	assert.Equal(t, 0.0, rows[1].VarOccupancy)
}
