package models

import (
	"fmt"
	"time"
)

// RecommendationState is the lifecycle of a tariff recommendation.
type RecommendationState string

const (
	StatePending  RecommendationState = "Pending"
	StateApproved RecommendationState = "Approved"
	StateExported RecommendationState = "Exported"
)

// TariffRecommendation is keyed by (Date, RoomTypeID, Channel).
type TariffRecommendation struct {
	ID              int64               `json:"id"`
	Date            time.Time           `json:"date"`
	RoomTypeID      int64               `json:"room_type_id"`
	Channel         string              `json:"channel"`
	BaseRate        float64             `json:"base_rate"`
	RecommendedRate float64             `json:"recommended_rate"`
	ApprovedRate    float64             `json:"approved_rate"`
	State           RecommendationState `json:"state"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	ApprovedAt      *time.Time          `json:"approved_at,omitempty"`
	ExportedAt      *time.Time          `json:"exported_at,omitempty"`
}

// Key renders the natural key, e.g. "2024-07-06/3/Directo".
func (r TariffRecommendation) Key() string {
	return RecommendationKey(r.Date, r.RoomTypeID, r.Channel)
}

func RecommendationKey(date time.Time, roomTypeID int64, channel string) string {
	return fmt.Sprintf("%s/%d/%s", date.Format("2006-01-02"), roomTypeID, channel)
}

// CanTransition reports whether the lifecycle allows from -> to.
// Re-approving an approved rate is allowed so the rate can be corrected.
func CanTransition(from, to RecommendationState) bool {
	switch to {
	case StateApproved:
		return from == StatePending || from == StateApproved
	case StateExported:
		return from == StateApproved || from == StateExported
	default:
		return false
	}
}

// MergeForUpsert applies a fresh recommendation onto an existing one: rates
// are overwritten, approved follows recommended, lifecycle state is kept.
func MergeForUpsert(existing, fresh TariffRecommendation, now time.Time) TariffRecommendation {
	merged := existing
	merged.BaseRate = fresh.BaseRate
	merged.RecommendedRate = fresh.RecommendedRate
	merged.ApprovedRate = fresh.RecommendedRate
	merged.UpdatedAt = now
	return merged
}

// RecommendationFilter selects recommendations. Nil fields do not filter.
type RecommendationFilter struct {
	From       *time.Time
	To         *time.Time
	RoomTypeID *int64
	Channel    *string
	States     []RecommendationState
}

// Match reports whether r passes the filter.
func (f RecommendationFilter) Match(r TariffRecommendation) bool {
	if f.From != nil && r.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && r.Date.After(*f.To) {
		return false
	}
	if f.RoomTypeID != nil && r.RoomTypeID != *f.RoomTypeID {
		return false
	}
	if f.Channel != nil && r.Channel != *f.Channel {
		return false
	}
	if len(f.States) > 0 {
		for _, s := range f.States {
			if r.State == s {
				return true
			}
		}
		return false
	}
	return true
}
