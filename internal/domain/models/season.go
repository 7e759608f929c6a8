package models

import "time"

// UnknownSeason labels months that no season covers in KPI patterns.
const UnknownSeason = "Desconocida"

// SeasonCalendar maps a month to its season label.
type SeasonCalendar map[time.Month]string

// Label returns the season for t, or def when the month is unmapped.
func (c SeasonCalendar) Label(t time.Time, def string) string {
	if s, ok := c[t.Month()]; ok {
		return s
	}
	return def
}
