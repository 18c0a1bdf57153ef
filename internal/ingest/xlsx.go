package ingest

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/yanivmizrachiy/luztedi/internal/classify"
	"github.com/yanivmizrachiy/luztedi/internal/datetime"
	"github.com/yanivmizrachiy/luztedi/internal/identity"
	appLog "github.com/yanivmizrachiy/luztedi/internal/log"
	"github.com/yanivmizrachiy/luztedi/internal/model"
	"github.com/yanivmizrachiy/luztedi/internal/reconcile"
	"github.com/yanivmizrachiy/luztedi/internal/textnorm"
)

// SourceXLSX names workbook import summaries.
const SourceXLSX = "sheet-xlsx"

var hebrewMonths = map[string]time.Month{
	"ינואר":   time.January,
	"פברואר":  time.February,
	"מרץ":     time.March,
	"אפריל":   time.April,
	"מאי":     time.May,
	"יוני":    time.June,
	"יולי":    time.July,
	"אוגוסט":  time.August,
	"ספטמבר":  time.September,
	"אוקטובר": time.October,
	"נובמבר":  time.November,
	"דצמבר":   time.December,
}

var (
	weekdayHeaderRE = regexp.MustCompile(`יום|שבת`)
	dayNumberRE     = regexp.MustCompile(`^\d{1,2}$`)
	eventSplitRE    = regexp.MustCompile(`\s*[•·]\s*`)
	lineSplitRE     = regexp.MustCompile(`\n+`)
)

// Sheet is one worksheet as rows of formatted cell text.
type Sheet struct {
	Name string
	Rows [][]string
}

// XLSXExtractor imports a month-per-sheet workbook laid out as a wall
// calendar: weekday columns, a row of day numbers per week, then rows of
// free-text events under each day.
type XLSXExtractor struct {
	// Today anchors the school year used to date the month sheets.
	Today time.Time
}

func (XLSXExtractor) Source() string          { return SourceXLSX }
func (XLSXExtractor) Mode() reconcile.KeyMode { return reconcile.BySignature }

// Extract opens the workbook at path.
func (x XLSXExtractor) Extract(_ context.Context, path string) (*Extraction, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		sheets = append(sheets, Sheet{Name: name, Rows: rows})
	}
	return x.FromSheets(sheets), nil
}

// FromSheets extracts candidates from already decoded sheets. Sheets whose
// name is not a Hebrew month are ignored.
func (x XLSXExtractor) FromSheets(sheets []Sheet) *Extraction {
	out := &Extraction{}
	for _, sh := range sheets {
		month, ok := hebrewMonths[textnorm.Line(sh.Name)]
		if !ok || len(sh.Rows) == 0 {
			continue
		}
		year := SchoolYearFor(x.Today, month)

		var cols []int
		for i, h := range sh.Rows[0] {
			if weekdayHeaderRE.MatchString(h) {
				cols = append(cols, i)
			}
		}
		if len(cols) == 0 {
			appLog.Debug("xlsx sheet has no weekday columns", "sheet", sh.Name)
			continue
		}

		var week map[int]string
		firstWeek := true
		for _, row := range sh.Rows[1:] {
			if isDateRow(row, cols) {
				week = weekDates(row, cols, year, month, firstWeek)
				firstWeek = false
				continue
			}
			for _, c := range cols {
				date := week[c]
				cell := textnorm.Clean(cellAt(row, c))
				if date == "" || cell == "" {
					continue
				}
				for _, ev := range splitEvents(cell) {
					out.Candidates = append(out.Candidates, xlsxCandidate(ev, date, sh.Name))
				}
			}
		}
	}
	return out
}

// SchoolYearFor dates a month of the school year that contains today.
// The year runs September to August: run in March 2025, September is 2024;
// run in October 2025, September is 2025 and March is 2026.
func SchoolYearFor(today time.Time, month time.Month) int {
	start := today.Year()
	if today.Month() < time.September {
		start--
	}
	if month >= time.September {
		return start
	}
	return start + 1
}

func cellAt(row []string, i int) string {
	if i >= 0 && i < len(row) {
		return row[i]
	}
	return ""
}

func isDateRow(row []string, cols []int) bool {
	any := false
	for _, c := range cols {
		v := textnorm.Line(cellAt(row, c))
		if v == "" {
			continue
		}
		if !dayNumberRE.MatchString(v) {
			return false
		}
		any = true
	}
	return any
}

// weekDates maps each weekday column to its date. Day numbers that wrap
// (30, 31, 1, 2) spill into a neighbouring month: the previous one on the
// first week row of a sheet, the next one on any later row.
func weekDates(row []string, cols []int, year int, month time.Month, firstWeek bool) map[int]string {
	type cell struct{ col, day int }
	var cells []cell
	for _, c := range cols {
		v := textnorm.Line(cellAt(row, c))
		if v == "" {
			continue
		}
		d, _ := strconv.Atoi(v)
		if d < 1 || d > 31 {
			continue
		}
		cells = append(cells, cell{c, d})
	}

	wrap := len(cells)
	for i := 1; i < len(cells); i++ {
		if cells[i].day < cells[i-1].day {
			wrap = i
			break
		}
	}

	out := make(map[int]string, len(cells))
	for i, c := range cells {
		offset := 0
		switch {
		case wrap < len(cells) && firstWeek && i < wrap:
			offset = -1
		case wrap < len(cells) && !firstWeek && i >= wrap:
			offset = 1
		}
		t := time.Date(year, month+time.Month(offset), 1, 0, 0, 0, 0, time.UTC)
		d := time.Date(t.Year(), t.Month(), c.day, 0, 0, 0, 0, time.UTC)
		if d.Month() != t.Month() {
			continue
		}
		out[c.col] = datetime.ISO(d)
	}
	return out
}

func splitEvents(cell string) []string {
	var out []string
	for _, line := range lineSplitRE.Split(strings.ReplaceAll(cell, "\r", ""), -1) {
		for _, part := range eventSplitRE.Split(line, -1) {
			if part = textnorm.Clean(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func xlsxCandidate(ev, date, sheet string) reconcile.Candidate {
	start, end := datetime.ExtractTimeRange(ev)
	r := model.Record{
		Kind:      classify.Kind(ev),
		Date:      date,
		Title:     ev,
		StartTime: start,
		EndTime:   end,
		Notes:     fmt.Sprintf("מקור: XLSX (%s)\nטקסט מקורי: %s", sheet, ev),
	}
	var uncertain []string

	switch r.Kind {
	case model.KindHoliday:
		r.StartTime, r.EndTime = "", ""
		r.Reason = textnorm.FirstNonEmpty(classify.ExtractReason(ev), ev)
	case model.KindExam:
		r.Subject = classify.ExtractSubject(ev)
		if r.Subject == "" {
			r.Subject = classify.Unspecified
			uncertain = append(uncertain, "exam-missing-subject")
		}
	default:
		typ, guessed := classify.Type(ev)
		r.Type = typ
		if guessed {
			uncertain = append(uncertain, "schedule-uncertain-type")
		}
	}

	sig := identity.Signature(r)
	r.ID = identity.IDFromSignature(identity.PrefixXLSX, sig)
	return reconcile.Candidate{
		Record:    r,
		Signature: sig,
		Uncertain: uncertain,
		AuditText: ev,
		Sheet:     sheet,
	}
}
