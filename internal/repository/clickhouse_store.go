package repository

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"HotelRevenue/internal/domain/models"
	domrepo "HotelRevenue/internal/domain/repository"
	pkgch "HotelRevenue/pkg/clickhouse"
	applogger "HotelRevenue/pkg/logger"
)

// ClickHouseStore implements Store on ReplacingMergeTree tables. Every write
// is an insert with a newer version; reads use FINAL to see the latest row.
type ClickHouseStore struct {
	client *pkgch.Client
	db     *sql.DB
	dbName string
	l      *applogger.Logger
	mu     sync.Mutex
	now    func() time.Time
}

func NewClickHouseStore(client *pkgch.Client, l *applogger.Logger) *ClickHouseStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseStore{
		client: client,
		db:     client.DB(),
		dbName: client.Database(),
		l:      l,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

var _ domrepo.Store = (*ClickHouseStore)(nil)

func (s *ClickHouseStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx)
}

func (s *ClickHouseStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *ClickHouseStore) Close() error {
	return s.client.Close()
}

func (s *ClickHouseStore) table(name string) string {
	return s.dbName + "." + name
}

func (s *ClickHouseStore) version() uint64 {
	return uint64(s.now().UnixNano())
}

// keyID derives a stable positive ID from a natural key.
func keyID(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}

// insertBatch runs one prepared insert per row inside a transaction, which the
// ClickHouse driver sends as a single block.
func (s *ClickHouseStore) insertBatch(ctx context.Context, query string, n int, args func(i int) []interface{}) error {
	if n == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *ClickHouseStore) SaveRoomTypes(ctx context.Context, rooms []models.RoomType) error {
	v := s.version()
	q := fmt.Sprintf("INSERT INTO %s (id, code, name, capacity, units, base_rate, version)", s.table(pkgch.TableRoomTypes))
	return s.insertBatch(ctx, q, len(rooms), func(i int) []interface{} {
		r := rooms[i]
		return []interface{}{r.ID, r.Code, r.Name, int32(r.Capacity), int32(r.Units), r.BaseRate, v}
	})
}

func (s *ClickHouseStore) SaveOccupancy(ctx context.Context, facts []models.DailyOccupancyFact) error {
	for _, f := range facts {
		if !f.Valid() {
			return fmt.Errorf("occupancy fact %s room %d: occupied %d outside [0,%d]", f.Date.Format("2006-01-02"), f.RoomTypeID, f.Occupied, f.Available)
		}
	}
	v := s.version()
	q := fmt.Sprintf("INSERT INTO %s (date, room_type_id, available, occupied, version)", s.table(pkgch.TableOccupancy))
	return s.insertBatch(ctx, q, len(facts), func(i int) []interface{} {
		f := facts[i]
		return []interface{}{f.Date, f.RoomTypeID, int32(f.Available), int32(f.Occupied), v}
	})
}

func (s *ClickHouseStore) SaveRevenue(ctx context.Context, facts []models.DailyRevenueFact) error {
	v := s.version()
	q := fmt.Sprintf("INSERT INTO %s (date, room_type_id, revenue, version)", s.table(pkgch.TableRevenue))
	return s.insertBatch(ctx, q, len(facts), func(i int) []interface{} {
		f := facts[i]
		return []interface{}{f.Date, f.RoomTypeID, f.Revenue, v}
	})
}

func (s *ClickHouseStore) GetRoomTypes(ctx context.Context) ([]models.RoomType, error) {
	q := fmt.Sprintf("SELECT id, code, name, capacity, units, base_rate FROM %s FINAL ORDER BY id", s.table(pkgch.TableRoomTypes))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("get room types: %w", err)
	}
	defer rows.Close()

	var out []models.RoomType
	for rows.Next() {
		var r models.RoomType
		if err := rows.Scan(&r.ID, &r.Code, &r.Name, &r.Capacity, &r.Units, &r.BaseRate); err != nil {
			return nil, fmt.Errorf("scan room type: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// rangeFilter renders the date and optional room filter shared by fact reads.
func rangeFilter(r domrepo.DateRange, roomTypeID *int64) (string, []interface{}) {
	where := "date >= ? AND date <= ?"
	args := []interface{}{r.From, r.To}
	if roomTypeID != nil {
		where += " AND room_type_id = ?"
		args = append(args, *roomTypeID)
	}
	return where, args
}

func (s *ClickHouseStore) GetOccupancy(ctx context.Context, r domrepo.DateRange, roomTypeID *int64) ([]models.DailyOccupancyFact, error) {
	where, args := rangeFilter(r, roomTypeID)
	q := fmt.Sprintf("SELECT date, room_type_id, available, occupied FROM %s FINAL WHERE %s ORDER BY date, room_type_id",
		s.table(pkgch.TableOccupancy), where)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse get_occupancy query error", applogger.String("range", r.String()), applogger.Error(err))
		return nil, fmt.Errorf("get occupancy: %w", err)
	}
	defer rows.Close()

	var out []models.DailyOccupancyFact
	for rows.Next() {
		var f models.DailyOccupancyFact
		if err := rows.Scan(&f.Date, &f.RoomTypeID, &f.Available, &f.Occupied); err != nil {
			return nil, fmt.Errorf("scan occupancy: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *ClickHouseStore) GetRevenue(ctx context.Context, r domrepo.DateRange, roomTypeID *int64) ([]models.DailyRevenueFact, error) {
	where, args := rangeFilter(r, roomTypeID)
	q := fmt.Sprintf("SELECT date, room_type_id, revenue FROM %s FINAL WHERE %s ORDER BY date, room_type_id",
		s.table(pkgch.TableRevenue), where)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse get_revenue query error", applogger.String("range", r.String()), applogger.Error(err))
		return nil, fmt.Errorf("get revenue: %w", err)
	}
	defer rows.Close()

	var out []models.DailyRevenueFact
	for rows.Next() {
		var f models.DailyRevenueFact
		if err := rows.Scan(&f.Date, &f.RoomTypeID, &f.Revenue); err != nil {
			return nil, fmt.Errorf("scan revenue: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *ClickHouseStore) GetActiveRules(ctx context.Context) ([]models.PricingRule, error) {
	q := fmt.Sprintf("SELECT id, name, kind, params, priority, active, created_at, updated_at FROM %s FINAL WHERE active = 1 ORDER BY priority, id",
		s.table(pkgch.TablePricingRules))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("get active rules: %w", err)
	}
	defer rows.Close()

	var out []models.PricingRule
	for rows.Next() {
		var (
			r      models.PricingRule
			kind   string
			params string
		)
		if err := rows.Scan(&r.ID, &r.Name, &kind, &params, &r.Priority, &r.Active, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		r.Kind = models.RuleKind(kind)
		r.Params = []byte(params)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *ClickHouseStore) SaveRule(ctx context.Context, rule *models.PricingRule) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if rule.ID == 0 {
		q := fmt.Sprintf("SELECT max(id) FROM %s", s.table(pkgch.TablePricingRules))
		var maxID sql.NullInt64
		if err := s.db.QueryRowContext(ctx, q).Scan(&maxID); err != nil {
			return 0, fmt.Errorf("next rule id: %w", err)
		}
		rule.ID = maxID.Int64 + 1
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	q := fmt.Sprintf("INSERT INTO %s (id, name, kind, params, priority, active, created_at, updated_at, version) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		s.table(pkgch.TablePricingRules))
	_, err := s.db.ExecContext(ctx, q, rule.ID, rule.Name, string(rule.Kind), string(rule.Params),
		int32(rule.Priority), boolToUInt8(rule.Active), rule.CreatedAt, rule.UpdatedAt, s.version())
	if err != nil {
		return 0, fmt.Errorf("save rule: %w", err)
	}
	return rule.ID, nil
}

func (s *ClickHouseStore) UpsertForecast(ctx context.Context, f models.Forecast) (int64, error) {
	f.ID = keyID(fmt.Sprintf("%s/%d", f.Date.Format("2006-01-02"), f.RoomTypeID))
	q := fmt.Sprintf(`INSERT INTO %s (id, date, room_type_id, occupancy_pct, occupancy_lower, occupancy_upper, adr, revpar, manually_adjusted, version)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table(pkgch.TableForecasts))
	_, err := s.db.ExecContext(ctx, q, f.ID, f.Date, f.RoomTypeID, f.OccupancyPct, f.OccupancyLower, f.OccupancyUpper,
		f.ADR, f.RevPAR, boolToUInt8(f.ManuallyAdjusted), s.version())
	if err != nil {
		return 0, fmt.Errorf("upsert forecast: %w", err)
	}
	return f.ID, nil
}

func (s *ClickHouseStore) GetForecasts(ctx context.Context, r domrepo.DateRange, roomTypeID *int64) ([]models.Forecast, error) {
	where, args := rangeFilter(r, roomTypeID)
	q := fmt.Sprintf(`SELECT id, date, room_type_id, occupancy_pct, occupancy_lower, occupancy_upper, adr, revpar, manually_adjusted
FROM %s FINAL WHERE %s ORDER BY date, room_type_id`, s.table(pkgch.TableForecasts), where)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("get forecasts: %w", err)
	}
	defer rows.Close()

	var out []models.Forecast
	for rows.Next() {
		var f models.Forecast
		if err := rows.Scan(&f.ID, &f.Date, &f.RoomTypeID, &f.OccupancyPct, &f.OccupancyLower, &f.OccupancyUpper,
			&f.ADR, &f.RevPAR, &f.ManuallyAdjusted); err != nil {
			return nil, fmt.Errorf("scan forecast: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

const recColumns = "id, date, room_type_id, channel, base_rate, recommended_rate, approved_rate, state, created_at, updated_at, approved_at, exported_at"

func scanRecommendation(sc interface{ Scan(...interface{}) error }) (models.TariffRecommendation, error) {
	var (
		r     models.TariffRecommendation
		state string
	)
	err := sc.Scan(&r.ID, &r.Date, &r.RoomTypeID, &r.Channel, &r.BaseRate, &r.RecommendedRate, &r.ApprovedRate,
		&state, &r.CreatedAt, &r.UpdatedAt, &r.ApprovedAt, &r.ExportedAt)
	r.State = models.RecommendationState(state)
	return r, err
}

func (s *ClickHouseStore) writeRecommendation(ctx context.Context, r models.TariffRecommendation) error {
	q := fmt.Sprintf("INSERT INTO %s (%s, version) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table(pkgch.TableRecommendations), recColumns)
	_, err := s.db.ExecContext(ctx, q, r.ID, r.Date, r.RoomTypeID, r.Channel, r.BaseRate, r.RecommendedRate, r.ApprovedRate,
		string(r.State), r.CreatedAt, r.UpdatedAt, r.ApprovedAt, r.ExportedAt, s.version())
	return err
}

func (s *ClickHouseStore) UpsertRecommendation(ctx context.Context, rec models.TariffRecommendation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.GetRecommendation(ctx, rec.Date, rec.RoomTypeID, rec.Channel)
	if err != nil {
		return 0, err
	}
	now := s.now()
	var row models.TariffRecommendation
	if existing != nil {
		row = models.MergeForUpsert(*existing, rec, now)
	} else {
		row = rec
		row.ID = keyID(rec.Key())
		row.State = models.StatePending
		row.ApprovedRate = rec.RecommendedRate
		row.CreatedAt, row.UpdatedAt = now, now
		row.ApprovedAt, row.ExportedAt = nil, nil
	}
	if err := s.writeRecommendation(ctx, row); err != nil {
		return 0, fmt.Errorf("upsert recommendation %s: %w", rec.Key(), err)
	}
	return row.ID, nil
}

func (s *ClickHouseStore) GetRecommendation(ctx context.Context, date time.Time, roomTypeID int64, channel string) (*models.TariffRecommendation, error) {
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE date = ? AND room_type_id = ? AND channel = ?", recColumns, s.table(pkgch.TableRecommendations))
	return s.getOne(ctx, q, date, roomTypeID, channel)
}

func (s *ClickHouseStore) GetRecommendationByID(ctx context.Context, id int64) (*models.TariffRecommendation, error) {
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE id = ?", recColumns, s.table(pkgch.TableRecommendations))
	return s.getOne(ctx, q, id)
}

func (s *ClickHouseStore) getOne(ctx context.Context, q string, args ...interface{}) (*models.TariffRecommendation, error) {
	r, err := scanRecommendation(s.db.QueryRowContext(ctx, q, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recommendation: %w", err)
	}
	return &r, nil
}

func (s *ClickHouseStore) ListRecommendations(ctx context.Context, f models.RecommendationFilter) ([]models.TariffRecommendation, error) {
	var (
		conds []string
		args  []interface{}
	)
	if f.From != nil {
		conds, args = append(conds, "date >= ?"), append(args, *f.From)
	}
	if f.To != nil {
		conds, args = append(conds, "date <= ?"), append(args, *f.To)
	}
	if f.RoomTypeID != nil {
		conds, args = append(conds, "room_type_id = ?"), append(args, *f.RoomTypeID)
	}
	if f.Channel != nil {
		conds, args = append(conds, "channel = ?"), append(args, *f.Channel)
	}
	if len(f.States) > 0 {
		marks := make([]string, len(f.States))
		for i, st := range f.States {
			marks[i] = "?"
			args = append(args, string(st))
		}
		conds = append(conds, "state IN ("+strings.Join(marks, ", ")+")")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	q := fmt.Sprintf("SELECT %s FROM %s FINAL%s ORDER BY date, room_type_id, channel", recColumns, s.table(pkgch.TableRecommendations), where)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	defer rows.Close()

	var out []models.TariffRecommendation
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *ClickHouseStore) MarkApproved(ctx context.Context, id int64, approvedRate float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.GetRecommendationByID(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("recommendation %d: %w", id, models.ErrNotFound)
	}
	if !models.CanTransition(rec.State, models.StateApproved) {
		return fmt.Errorf("recommendation %d %s -> %s: %w", id, rec.State, models.StateApproved, models.ErrInvalidTransition)
	}
	rec.State = models.StateApproved
	rec.ApprovedRate = approvedRate
	rec.ApprovedAt = &at
	rec.UpdatedAt = at
	return s.writeRecommendation(ctx, *rec)
}

func (s *ClickHouseStore) MarkExported(ctx context.Context, ids []int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]models.TariffRecommendation, 0, len(ids))
	for _, id := range ids {
		rec, err := s.GetRecommendationByID(ctx, id)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("recommendation %d: %w", id, models.ErrNotFound)
		}
		if !models.CanTransition(rec.State, models.StateExported) {
			return fmt.Errorf("recommendation %d %s -> %s: %w", id, rec.State, models.StateExported, models.ErrInvalidTransition)
		}
		recs = append(recs, *rec)
	}
	for _, rec := range recs {
		rec.State = models.StateExported
		rec.ExportedAt = &at
		rec.UpdatedAt = at
		if err := s.writeRecommendation(ctx, rec); err != nil {
			return fmt.Errorf("mark exported %d: %w", rec.ID, err)
		}
	}
	return nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
