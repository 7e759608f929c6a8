package kpi

import (
	"context"

	"HotelRevenue/internal/domain/models"
	domrepo "HotelRevenue/internal/domain/repository"
)

// yearShift is exactly 365 days; leap years are not realigned.
const yearShift = -365

// YearOverYear compares each room type's aggregate for r with the same range
// 365 days earlier. Room types without a previous period get zero variations.
func (c *Calculator) YearOverYear(ctx context.Context, r domrepo.DateRange, roomTypeID *int64) ([]models.YoYRow, error) {
	current, err := c.Aggregate(ctx, r, models.GroupByRoomType, roomTypeID)
	if err != nil {
		return nil, err
	}
	if len(current) == 0 {
		return nil, nil
	}
	previous, err := c.Aggregate(ctx, r.Shift(yearShift), models.GroupByRoomType, roomTypeID)
	if err != nil {
		return nil, err
	}
	return CompareYears(current, previous), nil
}

// CompareYears left-joins current aggregates to previous ones on room type.
func CompareYears(current, previous []models.AggregateRow) []models.YoYRow {
	prev := make(map[int64]models.AggregateRow, len(previous))
	for _, p := range previous {
		if p.RoomTypeID != nil {
			prev[*p.RoomTypeID] = p
		}
	}

	out := make([]models.YoYRow, 0, len(current))
	for _, cur := range current {
		if cur.RoomTypeID == nil {
			continue
		}
		row := models.YoYRow{RoomTypeID: *cur.RoomTypeID, RoomType: cur.RoomType, Current: cur}
		if p, ok := prev[*cur.RoomTypeID]; ok {
			p := p
			row.Previous = &p
			row.VarOccupancy = models.Variation(deref(cur.OccupancyPct), deref(p.OccupancyPct))
			row.VarADR = models.Variation(deref(cur.ADR), deref(p.ADR))
			row.VarRevPAR = models.Variation(deref(cur.RevPAR), deref(p.RevPAR))
			row.VarRevenue = models.Variation(cur.Revenue, p.Revenue)
			row.VarRoomsSold = models.Variation(float64(cur.Occupied), float64(p.Occupied))
		}
		out = append(out, row)
	}
	return out
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
