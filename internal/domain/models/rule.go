package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// RuleKind is the persisted discriminator of a pricing rule.
type RuleKind string

const (
	RuleSeason    RuleKind = "season"
	RuleOccupancy RuleKind = "occupancy"
	RuleChannel   RuleKind = "channel"
	RuleWeekday   RuleKind = "weekday"
)

// PricingRule is the stored form of a rule. Params is the kind-specific JSON payload;
// Variant decodes it. Lower Priority wins.
type PricingRule struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Kind      RuleKind        `json:"kind"`
	Params    json.RawMessage `json:"params"`
	Priority  int             `json:"priority"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RuleVariant is the closed set of decoded rules:
// SeasonRule, OccupancyRule, ChannelRule, WeekdayRule and InvalidRule.
type RuleVariant interface {
	Kind() RuleKind
	Params() (json.RawMessage, error)
	isRuleVariant()
}

// SeasonRule maps a season label to a factor.
type SeasonRule struct {
	Factors map[string]float64
}

// OccupancyRule buckets forecast occupancy. Thresholds are ratios in [0,1];
// occupancy below Low uses LowFactor, above High uses HighFactor, otherwise MediumFactor.
type OccupancyRule struct {
	Low          float64
	High         float64
	LowFactor    float64
	MediumFactor float64
	HighFactor   float64
}

// ChannelRule maps a channel name to a factor.
type ChannelRule struct {
	Factors map[string]float64
}

// WeekdayRule maps a weekday index (0=Monday) to a factor.
type WeekdayRule struct {
	Factors map[int]float64
}

// InvalidRule stands in for a rule whose kind is unknown or whose params are
// malformed. It contributes the identity factor.
type InvalidRule struct {
	Declared RuleKind
	Reason   string
}

func (SeasonRule) Kind() RuleKind    { return RuleSeason }
func (OccupancyRule) Kind() RuleKind { return RuleOccupancy }
func (ChannelRule) Kind() RuleKind   { return RuleChannel }
func (WeekdayRule) Kind() RuleKind   { return RuleWeekday }
func (r InvalidRule) Kind() RuleKind { return r.Declared }

func (SeasonRule) isRuleVariant()    {}
func (OccupancyRule) isRuleVariant() {}
func (ChannelRule) isRuleVariant()   {}
func (WeekdayRule) isRuleVariant()   {}
func (InvalidRule) isRuleVariant()   {}

type seasonParams struct {
	Factors map[string]float64 `json:"factors"`
}

type occupancyParams struct {
	Thresholds *struct {
		Low  *float64 `json:"low"`
		High *float64 `json:"high"`
	} `json:"thresholds"`
	Factors *struct {
		Low    *float64 `json:"low"`
		Medium *float64 `json:"medium,omitempty"`
		High   *float64 `json:"high"`
	} `json:"factors"`
}

type channelFactor struct {
	Channel string   `json:"channel"`
	Factor  *float64 `json:"factor"`
}

type channelParams struct {
	Factors []channelFactor `json:"factors"`
}

type weekdayParams struct {
	Factors map[int]float64 `json:"factors"`
}

func (r SeasonRule) Params() (json.RawMessage, error) {
	return json.Marshal(seasonParams{Factors: r.Factors})
}

func (r OccupancyRule) Params() (json.RawMessage, error) {
	return json.Marshal(map[string]map[string]float64{
		"thresholds": {"low": r.Low, "high": r.High},
		"factors":    {"low": r.LowFactor, "medium": r.MediumFactor, "high": r.HighFactor},
	})
}

func (r ChannelRule) Params() (json.RawMessage, error) {
	p := channelParams{Factors: make([]channelFactor, 0, len(r.Factors))}
	for _, name := range sortedKeys(r.Factors) {
		f := r.Factors[name]
		p.Factors = append(p.Factors, channelFactor{Channel: name, Factor: &f})
	}
	return json.Marshal(p)
}

func (r WeekdayRule) Params() (json.RawMessage, error) {
	return json.Marshal(weekdayParams{Factors: r.Factors})
}

func (r InvalidRule) Params() (json.RawMessage, error) {
	return nil, fmt.Errorf("invalid %s rule: %s", r.Declared, r.Reason)
}

// NewPricingRule encodes a variant into its stored form.
func NewPricingRule(name string, v RuleVariant, priority int) (PricingRule, error) {
	params, err := v.Params()
	if err != nil {
		return PricingRule{}, err
	}
	return PricingRule{Name: name, Kind: v.Kind(), Params: params, Priority: priority, Active: true}, nil
}

// Variant decodes Params by Kind. It never fails: problems yield an InvalidRule.
func (r PricingRule) Variant() RuleVariant {
	invalid := func(format string, a ...interface{}) RuleVariant {
		return InvalidRule{Declared: r.Kind, Reason: fmt.Sprintf(format, a...)}
	}

	switch r.Kind {
	case RuleSeason:
		var p seasonParams
		if err := json.Unmarshal(r.Params, &p); err != nil {
			return invalid("decode params: %v", err)
		}
		if p.Factors == nil {
			return invalid("missing factors")
		}
		return SeasonRule{Factors: p.Factors}

	case RuleOccupancy:
		var p occupancyParams
		if err := json.Unmarshal(r.Params, &p); err != nil {
			return invalid("decode params: %v", err)
		}
		if p.Thresholds == nil || p.Thresholds.Low == nil || p.Thresholds.High == nil {
			return invalid("missing thresholds.low or thresholds.high")
		}
		if p.Factors == nil || p.Factors.Low == nil || p.Factors.High == nil {
			return invalid("missing factors.low or factors.high")
		}
		if *p.Thresholds.Low > *p.Thresholds.High {
			return invalid("thresholds.low %.2f above thresholds.high %.2f", *p.Thresholds.Low, *p.Thresholds.High)
		}
		medium := 1.0
		if p.Factors.Medium != nil {
			medium = *p.Factors.Medium
		}
		return OccupancyRule{
			Low:          *p.Thresholds.Low,
			High:         *p.Thresholds.High,
			LowFactor:    *p.Factors.Low,
			MediumFactor: medium,
			HighFactor:   *p.Factors.High,
		}

	case RuleChannel:
		var p channelParams
		if err := json.Unmarshal(r.Params, &p); err != nil {
			return invalid("decode params: %v", err)
		}
		if p.Factors == nil {
			return invalid("missing factors")
		}
		factors := make(map[string]float64, len(p.Factors))
		for i, cf := range p.Factors {
			if cf.Channel == "" || cf.Factor == nil {
				return invalid("factors[%d] needs channel and factor", i)
			}
			factors[cf.Channel] = *cf.Factor
		}
		return ChannelRule{Factors: factors}

	case RuleWeekday:
		var p weekdayParams
		if err := json.Unmarshal(r.Params, &p); err != nil {
			return invalid("decode params: %v", err)
		}
		if p.Factors == nil {
			return invalid("missing factors")
		}
		for day := range p.Factors {
			if day < 0 || day > 6 {
				return invalid("weekday %d out of range 0-6", day)
			}
		}
		return WeekdayRule{Factors: p.Factors}

	default:
		return invalid("unknown rule kind %q", r.Kind)
	}
}
