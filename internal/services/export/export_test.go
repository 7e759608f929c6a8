package export

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"HotelRevenue/internal/domain/models"
	"HotelRevenue/internal/repository"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func approved(t *testing.T, s *repository.MemoryStore, d time.Time, room int64, channel string, rate float64) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := s.UpsertRecommendation(ctx, models.TariffRecommendation{Date: d, RoomTypeID: room, Channel: channel, BaseRate: rate, RecommendedRate: rate})
	require.NoError(t, err)
	require.NoError(t, s.MarkApproved(ctx, id, rate, d))
	return id
}

func newExporter(t *testing.T, s *repository.MemoryStore) *Exporter {
	t.Helper()
	require.NoError(t, s.SaveRoomTypes(context.Background(), []models.RoomType{
		{ID: 1, Code: "EST", Name: "Estándar"},
		{ID: 2, Code: "SUI", Name: "Suite"},
	}))
	x := NewExporter(s, Config{Dir: t.TempDir(), Hotel: "Hotel Test", Channels: []string{"Directo", "Booking.com"}}, nil)
	x.now = func() time.Time { return time.Date(2024, 7, 1, 9, 30, 5, 0, time.UTC) }
	return x
}

func TestExport_WritesSheetsAndMarksExported(t *testing.T) {
	s := repository.NewMemoryStore()
	x := newExporter(t, s)
	ctx := context.Background()

	approved(t, s, day(2024, 7, 6), 1, "Directo", 247000)
	approved(t, s, day(2024, 7, 6), 1, "Booking.com", 260000)
	approved(t, s, day(2024, 7, 7), 2, "Booking.com", 300000)
	// pending rows are not exported
	_, err := s.UpsertRecommendation(ctx, models.TariffRecommendation{Date: day(2024, 7, 8), RoomTypeID: 1, Channel: "Directo", RecommendedRate: 1})
	require.NoError(t, err)

	sum, ids, err := x.Export(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Rows)
	assert.Equal(t, 3, sum.Exported)
	assert.Len(t, ids, 3)
	assert.Equal(t, "tarifas_export_20240701_093005.xlsx", filepath.Base(sum.Path))

	f, err := excelize.OpenFile(sum.Path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetSummary, "EST", "SUI", SheetPMS}, f.GetSheetList())

	pms, err := f.GetRows(SheetPMS)
	require.NoError(t, err)
	require.Len(t, pms, 5)
	assert.Equal(t, []string{"Fecha", "Código", "Directo", "Booking.com"}, pms[2])
	assert.Equal(t, []string{"06/07/2024", "EST", "247000", "260000"}, pms[3])
	assert.Equal(t, []string{"07/07/2024", "SUI", "0", "300000"}, pms[4])

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, "Tarifas - Hotel Test", summary[0][0])
	assert.Equal(t, []string{"Fecha", "Día", "EST - Directo", "EST - Booking.com", "SUI - Booking.com"}, summary[2])
	assert.Equal(t, "Sábado", summary[3][1])

	pending, err := x.PendingExports(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, _, err = x.Export(ctx, Filter{})
	assert.True(t, errors.Is(err, models.ErrNoData))
}

func TestExport_DateRangeReexports(t *testing.T) {
	s := repository.NewMemoryStore()
	x := newExporter(t, s)
	ctx := context.Background()
	approved(t, s, day(2024, 7, 6), 1, "Directo", 100)
	approved(t, s, day(2024, 8, 6), 1, "Directo", 120)

	_, _, err := x.Export(ctx, Filter{})
	require.NoError(t, err)

	from, to := day(2024, 7, 1), day(2024, 7, 31)
	sum, ids, err := x.Export(ctx, Filter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Rows)
	assert.Equal(t, 0, sum.Exported)
	assert.Len(t, ids, 1)
}

func TestWeekdayName(t *testing.T) {
	assert.Equal(t, "Lunes", WeekdayName(day(2024, 1, 1)))
	assert.Equal(t, "Domingo", WeekdayName(day(2024, 1, 7)))
}
