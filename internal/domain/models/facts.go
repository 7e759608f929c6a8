package models

import "time"

// DailyOccupancyFact is keyed by (Date, RoomTypeID). 0 <= Occupied <= Available.
type DailyOccupancyFact struct {
	Date       time.Time `json:"date"`
	RoomTypeID int64     `json:"room_type_id"`
	Available  int       `json:"available"`
	Occupied   int       `json:"occupied"`
}

// Valid reports whether the fact respects the occupancy bounds.
func (f DailyOccupancyFact) Valid() bool {
	return f.Available >= 0 && f.Occupied >= 0 && f.Occupied <= f.Available
}

// DailyRevenueFact is keyed by (Date, RoomTypeID).
type DailyRevenueFact struct {
	Date       time.Time `json:"date"`
	RoomTypeID int64     `json:"room_type_id"`
	Revenue    float64   `json:"revenue"`
}

// KPIs carries derived ratios. A nil pointer means the ratio is undefined.
type KPIs struct {
	OccupancyPct *float64 `json:"occupancy_pct"`
	ADR          *float64 `json:"adr"`
	RevPAR       *float64 `json:"revpar"`
}

// DeriveKPIs computes occupancy%, ADR and RevPAR from counts and revenue.
func DeriveKPIs(available, occupied int, revenue float64) KPIs {
	var k KPIs
	if available > 0 {
		occ := float64(occupied) / float64(available) * 100
		revpar := revenue / float64(available)
		k.OccupancyPct, k.RevPAR = &occ, &revpar
	}
	if occupied > 0 {
		adr := revenue / float64(occupied)
		k.ADR = &adr
	}
	return k
}

// KPIRow is one (date, room type) join of occupancy and revenue facts.
type KPIRow struct {
	Date       time.Time `json:"date"`
	RoomTypeID int64     `json:"room_type_id"`
	RoomType   string    `json:"room_type"`
	Available  int       `json:"available"`
	Occupied   int       `json:"occupied"`
	Revenue    float64   `json:"revenue"`
	KPIs
}

// GroupBy selects the aggregation dimension.
type GroupBy string

const (
	GroupByRoomType GroupBy = "room_type"
	GroupByDate     GroupBy = "date"
	GroupByBoth     GroupBy = "both"
)

// AggregateRow holds summed counts and ratios recomputed from the sums.
// Date is nil when grouping by room type only; RoomTypeID is nil when grouping by date only.
type AggregateRow struct {
	Date       *time.Time `json:"date,omitempty"`
	RoomTypeID *int64     `json:"room_type_id,omitempty"`
	RoomType   string     `json:"room_type,omitempty"`
	Available  int        `json:"available"`
	Occupied   int        `json:"occupied"`
	Revenue    float64    `json:"revenue"`
	KPIs
}

// PatternRow is a group of mean KPIs. Means skip undefined values.
type PatternRow struct {
	RoomTypeID *int64   `json:"room_type_id,omitempty"`
	RoomType   string   `json:"room_type,omitempty"`
	Season     string   `json:"season,omitempty"`
	Weekday    *int     `json:"weekday,omitempty"`
	Days       int      `json:"days"`
	MeanOcc    *float64 `json:"mean_occupancy_pct"`
	MeanADR    *float64 `json:"mean_adr"`
	MeanRevPAR *float64 `json:"mean_revpar"`
}

// Patterns groups occupancy patterns by each dimension and their cross products.
type Patterns struct {
	ByRoomType        []PatternRow `json:"by_room_type"`
	BySeason          []PatternRow `json:"by_season"`
	ByWeekday         []PatternRow `json:"by_weekday"`
	ByRoomTypeSeason  []PatternRow `json:"by_room_type_season"`
	ByRoomTypeWeekday []PatternRow `json:"by_room_type_weekday"`
}

// Empty reports whether no group has any row.
func (p Patterns) Empty() bool {
	return len(p.ByRoomType) == 0 && len(p.BySeason) == 0 && len(p.ByWeekday) == 0
}

// YoYRow compares a room type's current period aggregate with the period 365 days earlier.
// Variation fields are percentages and are 0 when the previous value is 0 or missing.
type YoYRow struct {
	RoomTypeID   int64         `json:"room_type_id"`
	RoomType     string        `json:"room_type"`
	Current      AggregateRow  `json:"current"`
	Previous     *AggregateRow `json:"previous,omitempty"`
	VarOccupancy float64       `json:"var_occupancy_pct"`
	VarADR       float64       `json:"var_adr"`
	VarRevPAR    float64       `json:"var_revpar"`
	VarRevenue   float64       `json:"var_revenue"`
	VarRoomsSold float64       `json:"var_rooms_sold"`
}

// Variation returns (cur-prev)/prev*100, or 0 when prev is 0.
func Variation(cur, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}
