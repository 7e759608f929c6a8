package kpi

import (
	"context"
	"fmt"
	"sort"
	"time"

	"HotelRevenue/internal/domain/models"
	domrepo "HotelRevenue/internal/domain/repository"
	applogger "HotelRevenue/pkg/logger"
)

// Calculator derives KPIs from occupancy and revenue facts.
type Calculator struct {
	facts   domrepo.FactReader
	seasons models.SeasonCalendar
	log     *applogger.Logger
}

func NewCalculator(facts domrepo.FactReader, seasons models.SeasonCalendar, log *applogger.Logger) *Calculator {
	if log == nil {
		log = applogger.Nop()
	}
	return &Calculator{facts: facts, seasons: seasons, log: log}
}

type factKey struct {
	date time.Time
	room int64
}

// Calculate joins occupancy and revenue facts per (date, room type). Only keys
// present on both sides produce a row.
func (c *Calculator) Calculate(ctx context.Context, r domrepo.DateRange, roomTypeID *int64) ([]models.KPIRow, error) {
	occ, err := c.facts.GetOccupancy(ctx, r, roomTypeID)
	if err != nil {
		return nil, fmt.Errorf("read occupancy: %w", err)
	}
	if len(occ) == 0 {
		return nil, nil
	}
	rev, err := c.facts.GetRevenue(ctx, r, roomTypeID)
	if err != nil {
		return nil, fmt.Errorf("read revenue: %w", err)
	}
	names, err := c.roomNames(ctx)
	if err != nil {
		return nil, err
	}

	revenue := make(map[factKey]float64, len(rev))
	for _, f := range rev {
		revenue[factKey{f.Date, f.RoomTypeID}] = f.Revenue
	}

	rows := make([]models.KPIRow, 0, len(occ))
	for _, f := range occ {
		amount, ok := revenue[factKey{f.Date, f.RoomTypeID}]
		if !ok {
			continue
		}
		rows = append(rows, models.KPIRow{
			Date:       f.Date,
			RoomTypeID: f.RoomTypeID,
			RoomType:   names[f.RoomTypeID],
			Available:  f.Available,
			Occupied:   f.Occupied,
			Revenue:    amount,
			KPIs:       models.DeriveKPIs(f.Available, f.Occupied, amount),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].RoomTypeID < rows[j].RoomTypeID
	})

	c.log.Debug("kpis calculated",
		applogger.String("range", r.String()),
		applogger.Int("occupancy_facts", len(occ)),
		applogger.Int("rows", len(rows)))
	return rows, nil
}

func (c *Calculator) roomNames(ctx context.Context) (map[int64]string, error) {
	rooms, err := c.facts.GetRoomTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("read room types: %w", err)
	}
	names := make(map[int64]string, len(rooms))
	for _, rt := range rooms {
		names[rt.ID] = rt.Name
	}
	return names, nil
}

// Aggregate sums counts and revenue per group and recomputes the ratios from the
// sums. Daily ratios are never averaged.
func (c *Calculator) Aggregate(ctx context.Context, r domrepo.DateRange, by models.GroupBy, roomTypeID *int64) ([]models.AggregateRow, error) {
	switch by {
	case models.GroupByRoomType, models.GroupByDate, models.GroupByBoth:
	default:
		return nil, fmt.Errorf("unknown group by %q", by)
	}
	rows, err := c.Calculate(ctx, r, roomTypeID)
	if err != nil {
		return nil, err
	}
	return AggregateRows(rows, by), nil
}

// AggregateRows groups already-joined rows.
func AggregateRows(rows []models.KPIRow, by models.GroupBy) []models.AggregateRow {
	type acc struct {
		row   models.AggregateRow
		order int
	}
	groups := make(map[factKey]*acc)
	for _, row := range rows {
		var k factKey
		switch by {
		case models.GroupByRoomType:
			k.room = row.RoomTypeID
		case models.GroupByDate:
			k.date = row.Date
		default:
			k = factKey{row.Date, row.RoomTypeID}
		}
		g, ok := groups[k]
		if !ok {
			g = &acc{order: len(groups)}
			if by != models.GroupByRoomType {
				d := row.Date
				g.row.Date = &d
			}
			if by != models.GroupByDate {
				id := row.RoomTypeID
				g.row.RoomTypeID = &id
				g.row.RoomType = row.RoomType
			}
			groups[k] = g
		}
		g.row.Available += row.Available
		g.row.Occupied += row.Occupied
		g.row.Revenue += row.Revenue
	}

	out := make([]models.AggregateRow, 0, len(groups))
	for _, g := range groups {
		g.row.KPIs = models.DeriveKPIs(g.row.Available, g.row.Occupied, g.row.Revenue)
		out = append(out, g.row)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != nil && b.Date != nil && !a.Date.Equal(*b.Date) {
			return a.Date.Before(*b.Date)
		}
		if a.RoomTypeID != nil && b.RoomTypeID != nil {
			return *a.RoomTypeID < *b.RoomTypeID
		}
		return false
	})
	return out
}
