package models

// RoomType is immutable reference data seeded from configuration.
type RoomType struct {
	ID       int64   `json:"id"`
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Capacity int     `json:"capacity"`
	Units    int     `json:"units"`
	BaseRate float64 `json:"base_rate"`
}

// Channel is a distribution channel. Commission feeds the default channel rule.
type Channel struct {
	Name       string  `json:"name"`
	Commission float64 `json:"commission"`
	Priority   int     `json:"priority"`
	Active     bool    `json:"active"`
}

// RoomTypeIndex maps room type IDs for lookups during a run.
func RoomTypeIndex(rooms []RoomType) map[int64]RoomType {
	idx := make(map[int64]RoomType, len(rooms))
	for _, r := range rooms {
		idx[r.ID] = r
	}
	return idx
}
