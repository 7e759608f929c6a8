package kpi

import (
	"context"
	"sort"

	"HotelRevenue/internal/domain/models"
	domrepo "HotelRevenue/internal/domain/repository"
	"HotelRevenue/pkg/util"
)

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v *float64) {
	if v != nil {
		m.sum += *v
		m.n++
	}
}

func (m mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}

type patternKey struct {
	room    int64
	season  string
	weekday int
}

type patternAcc struct {
	key              patternKey
	name             string
	days             int
	occ, adr, revpar mean
}

type patternGroup struct {
	byRoom, bySeason, byWeekday bool
	groups                      map[patternKey]*patternAcc
}

func newGroup(byRoom, bySeason, byWeekday bool) *patternGroup {
	return &patternGroup{byRoom: byRoom, bySeason: bySeason, byWeekday: byWeekday, groups: make(map[patternKey]*patternAcc)}
}

func (g *patternGroup) add(row models.KPIRow, season string, weekday int) {
	k := patternKey{weekday: -1}
	if g.byRoom {
		k.room = row.RoomTypeID
	}
	if g.bySeason {
		k.season = season
	}
	if g.byWeekday {
		k.weekday = weekday
	}
	a, ok := g.groups[k]
	if !ok {
		a = &patternAcc{key: k, name: row.RoomType}
		g.groups[k] = a
	}
	a.days++
	a.occ.add(row.OccupancyPct)
	a.adr.add(row.ADR)
	a.revpar.add(row.RevPAR)
}

func (g *patternGroup) rows() []models.PatternRow {
	accs := make([]*patternAcc, 0, len(g.groups))
	for _, a := range g.groups {
		accs = append(accs, a)
	}
	sort.Slice(accs, func(i, j int) bool {
		a, b := accs[i].key, accs[j].key
		if a.room != b.room {
			return a.room < b.room
		}
		if a.season != b.season {
			return a.season < b.season
		}
		return a.weekday < b.weekday
	})

	out := make([]models.PatternRow, len(accs))
	for i, a := range accs {
		row := models.PatternRow{
			Days:       a.days,
			MeanOcc:    a.occ.value(),
			MeanADR:    a.adr.value(),
			MeanRevPAR: a.revpar.value(),
		}
		if g.byRoom {
			id := a.key.room
			row.RoomTypeID, row.RoomType = &id, a.name
		}
		if g.bySeason {
			row.Season = a.key.season
		}
		if g.byWeekday {
			wd := a.key.weekday
			row.Weekday = &wd
		}
		out[i] = row
	}
	return out
}

// Patterns averages daily KPIs by room type, season, weekday and their
// room-type cross products. Undefined values are left out of each mean.
func (c *Calculator) Patterns(ctx context.Context, r domrepo.DateRange, roomTypeID *int64) (models.Patterns, error) {
	rows, err := c.Calculate(ctx, r, roomTypeID)
	if err != nil {
		return models.Patterns{}, err
	}
	return PatternsOf(rows, c.seasons), nil
}

// PatternsOf groups joined rows using the month to season calendar.
func PatternsOf(rows []models.KPIRow, seasons models.SeasonCalendar) models.Patterns {
	room := newGroup(true, false, false)
	season := newGroup(false, true, false)
	weekday := newGroup(false, false, true)
	roomSeason := newGroup(true, true, false)
	roomWeekday := newGroup(true, false, true)

	for _, row := range rows {
		s := seasons.Label(row.Date, models.UnknownSeason)
		wd := util.WeekdayIndex(row.Date)
		for _, g := range []*patternGroup{room, season, weekday, roomSeason, roomWeekday} {
			g.add(row, s, wd)
		}
	}

	return models.Patterns{
		ByRoomType:        room.rows(),
		BySeason:          season.rows(),
		ByWeekday:         weekday.rows(),
		ByRoomTypeSeason:  roomSeason.rows(),
		ByRoomTypeWeekday: roomWeekday.rows(),
	}
}

// PatternsFor groups already joined rows with the calculator's calendar.
func (c *Calculator) PatternsFor(rows []models.KPIRow) models.Patterns {
	return PatternsOf(rows, c.seasons)
}
