package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yanivmizrachiy/luztedi/internal/classify"
	"github.com/yanivmizrachiy/luztedi/internal/datetime"
	"github.com/yanivmizrachiy/luztedi/internal/identity"
	"github.com/yanivmizrachiy/luztedi/internal/model"
	"github.com/yanivmizrachiy/luztedi/internal/reconcile"
)

// SourceCSV names CSV import summaries.
const SourceCSV = "sheet-csv"

// Header aliases per field, English and Hebrew. Matching ignores case.
var csvColumns = map[string][]string{
	"date":        {"date", "תאריך"},
	"kind":        {"kind", "סוג", "קטגוריה"},
	"title":       {"title", "כותרת", "שם"},
	"startTime":   {"starttime", "start", "שעת התחלה", "התחלה", "שעה"},
	"endTime":     {"endtime", "end", "שעת סיום", "סיום"},
	"group":       {"group", "קבוצה", "שכבה"},
	"location":    {"location", "מקום"},
	"notes":       {"notes", "הערות"},
	"type":        {"type", "סוג אירוע"},
	"description": {"description", "תיאור"},
	"subject":     {"subject", "מקצוע", "נושא"},
	"className":   {"classname", "class", "כיתה"},
	"reason":      {"reason", "סיבה", "סיבת חופשה"},
}

// CSVExtractor imports a sheet exported as CSV with one record per row
// and explicit kind/type columns. Ids come from the exact row text, so
// re-importing an unchanged sheet is a no-op.
type CSVExtractor struct{}

func (CSVExtractor) Source() string          { return SourceCSV }
func (CSVExtractor) Mode() reconcile.KeyMode { return reconcile.ByID }

// Extract reads the CSV file at path.
func (x CSVExtractor) Extract(_ context.Context, path string) (*Extraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return x.Read(f)
}

// Read parses CSV from r. The first row is the header.
func (CSVExtractor) Read(r io.Reader) (*Extraction, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}
	out := &Extraction{}
	if len(rows) < 2 {
		return out, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	for _, row := range rows[1:] {
		fields := csvRow(header, row)
		if len(fields) == 0 {
			continue
		}
		c, ok := csvCandidate(fields)
		if !ok {
			text := strings.Join(row, " | ")
			if fields["date"] != "" || fields["title"] != "" || datetime.LooksLikeDate(text) {
				out.audit(SourceCSV, "csv-row-unparsed", text, "")
			}
			continue
		}
		out.Candidates = append(out.Candidates, c)
	}
	return out, nil
}

// csvRow maps canonical field names to the first non-blank aliased cell.
func csvRow(header, row []string) map[string]string {
	cells := make(map[string]string, len(header))
	for i, h := range header {
		if i >= len(row) {
			break
		}
		if v := strings.TrimSpace(row[i]); v != "" {
			if _, taken := cells[h]; !taken {
				cells[h] = v
			}
		}
	}
	if len(cells) == 0 {
		return nil
	}

	out := make(map[string]string, len(csvColumns))
	for field, aliases := range csvColumns {
		for _, a := range aliases {
			if v, ok := cells[a]; ok {
				out[field] = v
				break
			}
		}
	}
	return out
}

func csvCandidate(f map[string]string) (reconcile.Candidate, bool) {
	date := f["date"]
	if !datetime.ValidDate(date) {
		return reconcile.Candidate{}, false
	}
	kind := classify.KindFromLabel(f["kind"])
	title := f["title"]
	if kind == "" || title == "" {
		return reconcile.Candidate{}, false
	}

	r := model.Record{
		Kind:     kind,
		Date:     date,
		Title:    title,
		Group:    f["group"],
		Location: f["location"],
		Notes:    f["notes"],
	}
	switch kind {
	case model.KindSchedule:
		r.Type = classify.TypeFromLabel(f["type"])
		if r.Type == "" {
			return reconcile.Candidate{}, false
		}
		r.Description = f["description"]
		r.StartTime = datetime.NormalizeTime(f["startTime"])
		r.EndTime = datetime.NormalizeTime(f["endTime"])
	case model.KindExam:
		r.Subject = f["subject"]
		if r.Subject == "" {
			return reconcile.Candidate{}, false
		}
		r.ClassName = f["className"]
		r.StartTime = datetime.NormalizeTime(f["startTime"])
		r.EndTime = datetime.NormalizeTime(f["endTime"])
	case model.KindHoliday:
		r.Reason = f["reason"]
		if r.Reason == "" {
			return reconcile.Candidate{}, false
		}
	}
	r.ID = identity.RecordID(identity.PrefixCSV, r)

	return reconcile.Candidate{Record: r, AuditText: title}, true
}
