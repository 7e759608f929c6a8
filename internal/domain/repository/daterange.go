package repository

import (
	"fmt"
	"time"

	"HotelRevenue/pkg/util"
)

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// NewDateRange truncates both ends to days and rejects inverted ranges.
func NewDateRange(from, to time.Time) (DateRange, error) {
	r := DateRange{From: util.Day(from), To: util.Day(to)}
	if r.To.Before(r.From) {
		return DateRange{}, fmt.Errorf("date range end %s before start %s", util.FormatDate(r.To), util.FormatDate(r.From))
	}
	return r, nil
}

// Contains reports whether d falls within the range.
func (r DateRange) Contains(d time.Time) bool {
	d = util.Day(d)
	return !d.Before(r.From) && !d.After(r.To)
}

// Shift moves both ends by days.
func (r DateRange) Shift(days int) DateRange {
	return DateRange{From: util.AddDays(r.From, days), To: util.AddDays(r.To, days)}
}

// Days returns the number of days covered.
func (r DateRange) Days() int {
	return util.DaysBetween(r.From, r.To) + 1
}

func (r DateRange) String() string {
	return util.FormatDate(r.From) + ".." + util.FormatDate(r.To)
}
