package config

import "time"

// Reference data for the property the system was first deployed at. Used when the
// YAML file leaves a section empty.

func defaultRoomTypes() []RoomTypeConfig {
	return []RoomTypeConfig{
		{ID: 1, Code: "EST", Name: "Estándar Triple", Capacity: 3, Units: 14, BaseRate: 100},
		{ID: 2, Code: "JRS", Name: "Junior Suite", Capacity: 5, Units: 4, BaseRate: 100},
		{ID: 3, Code: "ESC", Name: "Estándar Cuádruple", Capacity: 4, Units: 26, BaseRate: 100},
		{ID: 4, Code: "ESD", Name: "Estándar Doble", Capacity: 2, Units: 7, BaseRate: 100},
		{ID: 5, Code: "SUI", Name: "Suite", Capacity: 2, Units: 1, BaseRate: 100},
		{ID: 6, Code: "KSP", Name: "King Superior", Capacity: 2, Units: 12, BaseRate: 100},
		{ID: 7, Code: "DSP", Name: "Doble Superior", Capacity: 2, Units: 15, BaseRate: 100},
	}
}

func defaultChannels() []ChannelConfig {
	return []ChannelConfig{
		{Name: "Directo", Commission: 0.0, Priority: 1},
		{Name: "Booking.com", Commission: 0.15, Priority: 2},
		{Name: "Expedia", Commission: 0.18, Priority: 3},
		{Name: "Hotelbeds", Commission: 0.20, Priority: 4},
		{Name: "Despegar", Commission: 0.17, Priority: 5},
	}
}

func defaultSeasons() []SeasonConfig {
	return []SeasonConfig{
		{Name: "Alta", Months: []int{1, 6, 7, 12}},
		{Name: "Media", Months: []int{2, 3, 8, 11}},
		{Name: "Baja", Months: []int{4, 5, 9, 10}},
	}
}

func (c *Config) applyFallbacks() {
	if len(c.RoomTypes) == 0 {
		c.RoomTypes = defaultRoomTypes()
	}
	if len(c.Channels) == 0 {
		c.Channels = defaultChannels()
	}
	if len(c.Seasons) == 0 {
		c.Seasons = defaultSeasons()
	}
	if len(c.Pricing.SeasonFactors) == 0 {
		c.Pricing.SeasonFactors = map[string]float64{"Baja": 0.9, "Media": 1.0, "Alta": 1.2}
	}
	if len(c.Pricing.WeekdayFactors) == 0 {
		c.Pricing.WeekdayFactors = map[int]float64{0: 0.9, 1: 0.9, 2: 0.9, 3: 0.95, 4: 1.1, 5: 1.2, 6: 1.0}
	}
}

// ActiveChannels returns channels with the active flag set (or omitted).
func (c *Config) ActiveChannels() []ChannelConfig {
	out := make([]ChannelConfig, 0, len(c.Channels))
	for _, ch := range c.Channels {
		if ch.IsActive() {
			out = append(out, ch)
		}
	}
	return out
}

// MonthSeasons maps each configured month to its season name.
func (c *Config) MonthSeasons() map[time.Month]string {
	out := make(map[time.Month]string, 12)
	for _, s := range c.Seasons {
		for _, m := range s.Months {
			out[time.Month(m)] = s.Name
		}
	}
	return out
}
