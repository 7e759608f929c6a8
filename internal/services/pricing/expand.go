package pricing

import (
	"sort"

	"HotelRevenue/internal/domain/models"
	"HotelRevenue/pkg/util"
)

// ExpandConfig holds the fallbacks used while expanding forecasts.
type ExpandConfig struct {
	Seasons         models.SeasonCalendar
	DefaultSeason   string
	DefaultBaseRate float64
}

// Expand crosses each forecast with every channel. Rows come out ordered by
// date, room type and then channel order, with identity factors.
func Expand(forecasts []models.Forecast, rooms map[int64]models.RoomType, channels []string, cfg ExpandConfig) []models.PricingRow {
	sorted := append([]models.Forecast(nil), forecasts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].RoomTypeID < sorted[j].RoomTypeID
	})

	rows := make([]models.PricingRow, 0, len(sorted)*len(channels))
	for _, f := range sorted {
		base := baseRate(f, rooms[f.RoomTypeID], cfg.DefaultBaseRate)
		for _, ch := range channels {
			row := models.PricingRow{
				Date:         util.Day(f.Date),
				RoomTypeID:   f.RoomTypeID,
				Channel:      ch,
				Weekday:      util.WeekdayIndex(f.Date),
				Month:        int(f.Date.Month()),
				Season:       cfg.Seasons.Label(f.Date, cfg.DefaultSeason),
				OccupancyPct: f.OccupancyPct,
				BaseRate:     base,
			}
			row.ResetFactors()
			rows = append(rows, row)
		}
	}
	return rows
}

// baseRate prefers the projected ADR, then the room's configured rate.
func baseRate(f models.Forecast, room models.RoomType, def float64) float64 {
	switch {
	case f.ADR > 0:
		return f.ADR
	case room.BaseRate > 0:
		return room.BaseRate
	case def > 0:
		return def
	default:
		return 100
	}
}
