package pricing

import (
	"fmt"

	"HotelRevenue/internal/domain/models"
	"HotelRevenue/pkg/config"
)

// DefaultRules builds the four rules synthesized when the store has none active.
// Channel factors are 1 + commission.
func DefaultRules(p config.PricingConfig, channels []models.Channel) ([]models.PricingRule, error) {
	channelFactors := make(map[string]float64, len(channels))
	for _, ch := range channels {
		channelFactors[ch.Name] = 1 + ch.Commission
	}

	specs := []struct {
		name string
		v    models.RuleVariant
	}{
		{"Season", models.SeasonRule{Factors: p.SeasonFactors}},
		{"Occupancy", models.OccupancyRule{
			Low:          p.MinOccupancyThreshold,
			High:         p.MaxOccupancyThreshold,
			LowFactor:    p.LowOccupancyFactor,
			MediumFactor: 1,
			HighFactor:   p.HighOccupancyFactor,
		}},
		{"Channel", models.ChannelRule{Factors: channelFactors}},
		{"Weekday", models.WeekdayRule{Factors: p.WeekdayFactors}},
	}

	out := make([]models.PricingRule, 0, len(specs))
	for i, s := range specs {
		rule, err := models.NewPricingRule(s.name, s.v, i+1)
		if err != nil {
			return nil, fmt.Errorf("default %s rule: %w", s.name, err)
		}
		out = append(out, rule)
	}
	return out, nil
}
