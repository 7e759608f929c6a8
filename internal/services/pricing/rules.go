package pricing

import (
	"HotelRevenue/internal/domain/models"
)

// ApplyVariant writes the variant's factor into its own field of row. It
// reports false for an InvalidRule, which leaves the row untouched.
func ApplyVariant(v models.RuleVariant, row *models.PricingRow) bool {
	switch r := v.(type) {
	case models.SeasonRule:
		row.FactorSeason = lookup(r.Factors, row.Season)
	case models.OccupancyRule:
		row.FactorOccupancy = occupancyFactor(r, row.OccupancyPct)
	case models.ChannelRule:
		row.FactorChannel = lookup(r.Factors, row.Channel)
	case models.WeekdayRule:
		row.FactorWeekday = lookup(r.Factors, row.Weekday)
	default:
		return false
	}
	return true
}

func lookup[K comparable](factors map[K]float64, k K) float64 {
	if f, ok := factors[k]; ok {
		return f
	}
	return 1
}

// occupancyFactor compares a percentage against ratio thresholds.
func occupancyFactor(r models.OccupancyRule, pct float64) float64 {
	switch {
	case pct < r.Low*100:
		return r.LowFactor
	case pct > r.High*100:
		return r.HighFactor
	default:
		return r.MediumFactor
	}
}
