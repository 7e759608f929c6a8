package export

import (
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"HotelRevenue/internal/domain/models"
	"HotelRevenue/pkg/util"
)

const (
	SheetSummary = "Resumen"
	SheetPMS     = "Zeus_PMS"

	displayDate = "02/01/2006"
	colWidth    = 15
)

var weekdayNames = [7]string{"Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado", "Domingo"}

// WeekdayName returns the display name of a date's weekday.
func WeekdayName(d time.Time) string {
	return weekdayNames[util.WeekdayIndex(d)]
}

// Layout is the reference data a workbook is rendered with.
type Layout struct {
	Hotel    string
	Rooms    map[int64]models.RoomType
	Channels []string
	At       time.Time
}

func (l Layout) code(id int64) string {
	if r, ok := l.Rooms[id]; ok && r.Code != "" {
		return r.Code
	}
	return "UNK"
}

type cellKey struct {
	date    time.Time
	room    int64
	channel string
}

type workbook struct {
	f      *excelize.File
	header int
	layout Layout
	rates  map[cellKey]float64
	dates  []time.Time
	rooms  []int64
}

// BuildWorkbook renders approved rates into the summary, per-room and PMS sheets.
func BuildWorkbook(recs []models.TariffRecommendation, layout Layout) (*excelize.File, error) {
	w := &workbook{f: excelize.NewFile(), layout: layout, rates: make(map[cellKey]float64, len(recs))}
	dateSet, roomSet := map[time.Time]bool{}, map[int64]bool{}
	for _, r := range recs {
		d := util.Day(r.Date)
		w.rates[cellKey{d, r.RoomTypeID, r.Channel}] = r.ApprovedRate
		if !dateSet[d] {
			dateSet[d] = true
			w.dates = append(w.dates, d)
		}
		if !roomSet[r.RoomTypeID] {
			roomSet[r.RoomTypeID] = true
			w.rooms = append(w.rooms, r.RoomTypeID)
		}
	}
	sort.Slice(w.dates, func(i, j int) bool { return w.dates[i].Before(w.dates[j]) })
	sort.Slice(w.rooms, func(i, j int) bool { return w.rooms[i] < w.rooms[j] })

	style, err := w.f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		w.f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	w.header = style

	steps := []func() error{w.summarySheet, w.roomSheets, w.pmsSheet}
	for _, step := range steps {
		if err := step(); err != nil {
			w.f.Close()
			return nil, err
		}
	}
	if err := w.f.DeleteSheet("Sheet1"); err != nil {
		w.f.Close()
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	if idx, err := w.f.GetSheetIndex(SheetSummary); err == nil {
		w.f.SetActiveSheet(idx)
	}
	return w.f, nil
}

// channelsFor lists configured channels first, then any other channel seen for room.
func (w *workbook) channelsFor(room int64) []string {
	out := append([]string(nil), w.layout.Channels...)
	known := make(map[string]bool, len(out))
	for _, c := range out {
		known[c] = true
	}
	var extra []string
	for k := range w.rates {
		if k.room == room && !known[k.channel] {
			known[k.channel] = true
			extra = append(extra, k.channel)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func (w *workbook) has(room int64, channel string) bool {
	for _, d := range w.dates {
		if _, ok := w.rates[cellKey{d, room, channel}]; ok {
			return true
		}
	}
	return false
}

func (w *workbook) newSheet(name, title, subtitle string, header []interface{}) error {
	if _, err := w.f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	if err := w.f.SetCellValue(name, "A1", title); err != nil {
		return err
	}
	if subtitle != "" {
		if err := w.f.SetCellValue(name, "A2", subtitle); err != nil {
			return err
		}
	}
	if err := w.f.SetSheetRow(name, "A3", &header); err != nil {
		return fmt.Errorf("header %s: %w", name, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 3)
	if err != nil {
		return err
	}
	if err := w.f.SetCellStyle(name, "A3", last, w.header); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return w.f.SetColWidth(name, "A", lastCol, colWidth)
}

func (w *workbook) writeRow(sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return w.f.SetSheetRow(sheet, cell, &values)
}

func (w *workbook) rate(d time.Time, room int64, channel string) interface{} {
	if v, ok := w.rates[cellKey{d, room, channel}]; ok {
		return v
	}
	return nil
}

// summarySheet pivots date against (room code, channel).
func (w *workbook) summarySheet() error {
	type column struct {
		room    int64
		channel string
	}
	var cols []column
	header := []interface{}{"Fecha", "Día"}
	for _, room := range w.rooms {
		for _, ch := range w.channelsFor(room) {
			if w.has(room, ch) {
				cols = append(cols, column{room, ch})
				header = append(header, w.layout.code(room)+" - "+ch)
			}
		}
	}
	subtitle := "Exportado el " + w.layout.At.Format("02/01/2006 15:04")
	if err := w.newSheet(SheetSummary, "Tarifas - "+w.layout.Hotel, subtitle, header); err != nil {
		return err
	}
	for i, d := range w.dates {
		values := []interface{}{d.Format(displayDate), WeekdayName(d)}
		for _, c := range cols {
			values = append(values, w.rate(d, c.room, c.channel))
		}
		if err := w.writeRow(SheetSummary, i+4, values); err != nil {
			return err
		}
	}
	return nil
}

// roomSheets writes one date by channel pivot per room code.
func (w *workbook) roomSheets() error {
	for _, room := range w.rooms {
		var channels []string
		for _, ch := range w.channelsFor(room) {
			if w.has(room, ch) {
				channels = append(channels, ch)
			}
		}
		header := []interface{}{"Fecha", "Día"}
		for _, ch := range channels {
			header = append(header, ch)
		}
		name := w.layout.code(room)
		title := "Tarifas - " + w.layout.Rooms[room].Name
		if err := w.newSheet(name, title, "", header); err != nil {
			return err
		}
		row := 4
		for _, d := range w.dates {
			values := []interface{}{d.Format(displayDate), WeekdayName(d)}
			filled := false
			for _, ch := range channels {
				v := w.rate(d, room, ch)
				filled = filled || v != nil
				values = append(values, v)
			}
			if !filled {
				continue
			}
			if err := w.writeRow(name, row, values); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

// pmsSheet lists one row per (date, room) with a column per configured
// channel; missing rates are written as 0.
func (w *workbook) pmsSheet() error {
	header := []interface{}{"Fecha", "Código"}
	for _, ch := range w.layout.Channels {
		header = append(header, ch)
	}
	if err := w.newSheet(SheetPMS, "Tarifas para Zeus PMS - "+w.layout.Hotel, "", header); err != nil {
		return err
	}
	row := 4
	for _, d := range w.dates {
		for _, room := range w.rooms {
			values := []interface{}{d.Format(displayDate), w.layout.code(room)}
			found := false
			for _, ch := range w.layout.Channels {
				v, ok := w.rates[cellKey{d, room, ch}]
				found = found || ok
				values = append(values, v)
			}
			if !found && !w.anyRate(d, room) {
				continue
			}
			if err := w.writeRow(SheetPMS, row, values); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

func (w *workbook) anyRate(d time.Time, room int64) bool {
	for k := range w.rates {
		if k.room == room && k.date.Equal(d) {
			return true
		}
	}
	return false
}
