package pricing

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"HotelRevenue/internal/domain/models"
	domrepo "HotelRevenue/internal/domain/repository"
	applogger "HotelRevenue/pkg/logger"
)

// Store is the persistence the pricing engine needs.
type Store interface {
	domrepo.RuleStore
	domrepo.ForecastStore
	domrepo.RecommendationStore
	GetRoomTypes(ctx context.Context) ([]models.RoomType, error)
}

// Config carries the pricing parameters and reference data.
type Config struct {
	Bounds         Bounds
	DirectChannel  string
	DirectDiscount float64
	Expand         ExpandConfig
	Channels       []models.Channel
	// Defaults are persisted when no active rule exists.
	Defaults []models.PricingRule
}

// Engine evaluates pricing rules over forecasts and upserts recommendations.
type Engine struct {
	store   Store
	cfg     Config
	metrics domrepo.Metrics
	log     *applogger.Logger

	// last snapshot read by ReloadRules, served to LoadRules
	mu    sync.RWMutex
	rules []models.PricingRule

	// upserts are serialized across concurrent callers
	writeMu sync.Mutex
}

func NewEngine(store Store, cfg Config, metrics domrepo.Metrics, log *applogger.Logger) *Engine {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &Engine{store: store, cfg: cfg, metrics: metrics, log: log}
}

// LoadRules returns the last rule snapshot, reading it on first use. Apply
// never uses it; every pricing run takes a fresh snapshot.
func (e *Engine) LoadRules(ctx context.Context) ([]models.PricingRule, error) {
	e.mu.RLock()
	cached := e.rules
	e.mu.RUnlock()
	if cached != nil {
		return append([]models.PricingRule(nil), cached...), nil
	}
	return e.ReloadRules(ctx)
}

// ReloadRules re-reads active rules, seeding the defaults when there are none.
func (e *Engine) ReloadRules(ctx context.Context) ([]models.PricingRule, error) {
	rules, err := e.store.GetActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("read active rules: %w", err)
	}
	if len(rules) == 0 {
		e.log.Info("no active pricing rules, creating defaults", applogger.Int("count", len(e.cfg.Defaults)))
		for _, def := range e.cfg.Defaults {
			r := def
			if _, err := e.store.SaveRule(ctx, &r); err != nil {
				return nil, fmt.Errorf("save default rule %s: %w", r.Name, err)
			}
			rules = append(rules, r)
		}
	}
	SortRules(rules)

	for _, r := range rules {
		if inv, ok := r.Variant().(models.InvalidRule); ok {
			e.log.Warn("pricing rule ignored",
				applogger.Int64("rule_id", r.ID),
				applogger.String("name", r.Name),
				applogger.String("kind", string(inv.Declared)),
				applogger.String("reason", inv.Reason))
			e.metrics.RecordRuleFallback(string(inv.Declared))
		}
	}

	e.mu.Lock()
	e.rules = append([]models.PricingRule(nil), rules...)
	e.mu.Unlock()
	return rules, nil
}

// SortRules orders by priority, then ID.
func SortRules(rules []models.PricingRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})
}

// Price applies rules to rows in place and composes the final rate. Only the
// highest-precedence rule of each kind contributes a factor.
func (e *Engine) Price(rules []models.PricingRule, rows []models.PricingRow) {
	ordered := append([]models.PricingRule(nil), rules...)
	SortRules(ordered)

	seen := make(map[models.RuleKind]bool, 4)
	variants := make([]models.RuleVariant, 0, len(ordered))
	for _, r := range ordered {
		v := r.Variant()
		if _, invalid := v.(models.InvalidRule); invalid {
			continue
		}
		if seen[v.Kind()] {
			e.log.Debug("shadowed pricing rule", applogger.Int64("rule_id", r.ID), applogger.String("kind", string(v.Kind())))
			continue
		}
		seen[v.Kind()] = true
		variants = append(variants, v)
	}

	for i := range rows {
		row := &rows[i]
		row.ResetFactors()
		for _, v := range variants {
			ApplyVariant(v, row)
		}
		Compose(row, e.cfg.Bounds)
		if row.Channel == e.cfg.DirectChannel {
			row.RecommendedRate = DirectDiscount(row.RecommendedRate, e.cfg.DirectDiscount)
		}
	}
}

func (e *Engine) channelNames() []string {
	out := make([]string, 0, len(e.cfg.Channels))
	for _, ch := range e.cfg.Channels {
		if ch.Active {
			out = append(out, ch.Name)
		}
	}
	return out
}

// Apply prices the forecasts in r and upserts one recommendation per row.
func (e *Engine) Apply(ctx context.Context, r domrepo.DateRange, roomTypeID *int64) (models.PricingSummary, error) {
	var summary models.PricingSummary

	rules, err := e.ReloadRules(ctx)
	if err != nil {
		return summary, err
	}
	rooms, err := e.store.GetRoomTypes(ctx)
	if err != nil {
		return summary, fmt.Errorf("read room types: %w", err)
	}
	forecasts, err := e.store.GetForecasts(ctx, r, roomTypeID)
	if err != nil {
		return summary, fmt.Errorf("read forecasts: %w", err)
	}
	if len(forecasts) == 0 {
		return summary, nil
	}

	rows := Expand(forecasts, models.RoomTypeIndex(rooms), e.channelNames(), e.cfg.Expand)
	e.Price(rules, rows)
	summary.Rows = rows

	inserted, updated, err := e.upsert(ctx, rows)
	summary.Inserted, summary.Updated = inserted, updated
	if err != nil {
		return summary, err
	}
	e.log.Info("recommendations upserted",
		applogger.String("range", r.String()),
		applogger.Int("rows", len(rows)),
		applogger.Int("inserted", inserted),
		applogger.Int("updated", updated))
	return summary, nil
}

func (e *Engine) upsert(ctx context.Context, rows []models.PricingRow) (int, int, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	var inserted, updated int
	perChannel := map[string]int{}
	for _, row := range rows {
		existing, err := e.store.GetRecommendation(ctx, row.Date, row.RoomTypeID, row.Channel)
		if err != nil {
			return inserted, updated, fmt.Errorf("read recommendation: %w", err)
		}
		_, err = e.store.UpsertRecommendation(ctx, models.TariffRecommendation{
			Date:            row.Date,
			RoomTypeID:      row.RoomTypeID,
			Channel:         row.Channel,
			BaseRate:        row.BaseRate,
			RecommendedRate: row.RecommendedRate,
		})
		if err != nil {
			return inserted, updated, fmt.Errorf("upsert recommendation: %w", err)
		}
		if existing == nil {
			inserted++
		} else {
			updated++
		}
		perChannel[row.Channel]++
	}
	for ch, n := range perChannel {
		e.metrics.RecordRecommendations(ch, n)
	}
	return inserted, updated, nil
}
