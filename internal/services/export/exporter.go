package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"HotelRevenue/internal/domain/models"
	domrepo "HotelRevenue/internal/domain/repository"
	applogger "HotelRevenue/pkg/logger"
)

// Store is the persistence the exporter needs.
type Store interface {
	domrepo.RecommendationStore
	GetRoomTypes(ctx context.Context) ([]models.RoomType, error)
}

// Config locates and labels exported workbooks.
type Config struct {
	Dir      string
	Hotel    string
	Channels []string
}

// Filter narrows an export. Without dates only pending exports are selected.
type Filter struct {
	From       *time.Time
	To         *time.Time
	RoomTypeID *int64
	Channel    *string
}

// Exporter writes approved tariffs to a workbook and marks them exported.
type Exporter struct {
	store Store
	cfg   Config
	now   func() time.Time
	log   *applogger.Logger
}

func NewExporter(store Store, cfg Config, log *applogger.Logger) *Exporter {
	if log == nil {
		log = applogger.Nop()
	}
	return &Exporter{store: store, cfg: cfg, now: time.Now, log: log}
}

// PendingExports lists approved recommendations not yet exported.
func (x *Exporter) PendingExports(ctx context.Context) ([]models.TariffRecommendation, error) {
	return x.store.ListRecommendations(ctx, models.RecommendationFilter{States: []models.RecommendationState{models.StateApproved}})
}

func (x *Exporter) selection(f Filter) models.RecommendationFilter {
	sel := models.RecommendationFilter{From: f.From, To: f.To, RoomTypeID: f.RoomTypeID, Channel: f.Channel}
	if f.From == nil && f.To == nil {
		sel.States = []models.RecommendationState{models.StateApproved}
	} else {
		sel.States = []models.RecommendationState{models.StateApproved, models.StateExported}
	}
	return sel
}

// FileName is the workbook name for an export started at t.
func FileName(t time.Time) string {
	return "tarifas_export_" + t.Format("20060102_150405") + ".xlsx"
}

// Export writes the selected recommendations and marks them exported. It
// returns ErrNoData when nothing matches.
func (x *Exporter) Export(ctx context.Context, f Filter) (models.ExportSummary, []int64, error) {
	recs, err := x.store.ListRecommendations(ctx, x.selection(f))
	if err != nil {
		return models.ExportSummary{}, nil, fmt.Errorf("select recommendations: %w", err)
	}
	if len(recs) == 0 {
		return models.ExportSummary{}, nil, models.ErrNoData
	}
	rooms, err := x.store.GetRoomTypes(ctx)
	if err != nil {
		return models.ExportSummary{}, nil, fmt.Errorf("read room types: %w", err)
	}

	at := x.now()
	wb, err := BuildWorkbook(recs, Layout{Hotel: x.cfg.Hotel, Rooms: models.RoomTypeIndex(rooms), Channels: x.cfg.Channels, At: at})
	if err != nil {
		return models.ExportSummary{}, nil, fmt.Errorf("build workbook: %w", err)
	}
	defer wb.Close()

	if err := os.MkdirAll(x.cfg.Dir, 0o755); err != nil {
		return models.ExportSummary{}, nil, fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(x.cfg.Dir, FileName(at))
	if err := wb.SaveAs(path); err != nil {
		return models.ExportSummary{}, nil, fmt.Errorf("save workbook: %w", err)
	}

	ids := make([]int64, 0, len(recs))
	fresh := 0
	for _, r := range recs {
		ids = append(ids, r.ID)
		if r.State != models.StateExported {
			fresh++
		}
	}
	if err := x.store.MarkExported(ctx, ids, at.UTC()); err != nil {
		return models.ExportSummary{Path: path, Rows: len(recs)}, ids, fmt.Errorf("mark exported: %w", err)
	}

	x.log.Info("tariffs exported",
		applogger.String("path", path),
		applogger.Int("rows", len(recs)),
		applogger.Int("newly_exported", fresh))
	return models.ExportSummary{Path: path, Rows: len(recs), Exported: fresh}, ids, nil
}
