package ingest

import (
	"context"
	"regexp"
	"strings"

	"github.com/yanivmizrachiy/luztedi/internal/classify"
	"github.com/yanivmizrachiy/luztedi/internal/datetime"
	"github.com/yanivmizrachiy/luztedi/internal/identity"
	"github.com/yanivmizrachiy/luztedi/internal/model"
	"github.com/yanivmizrachiy/luztedi/internal/reconcile"
	"github.com/yanivmizrachiy/luztedi/internal/textnorm"
)

// SourceDOCX names document import summaries.
const SourceDOCX = "word-docx"

const (
	noteTableDateGuess = "תאריך משוער (חסרה שנה / נרמול חלקי)"
	noteTableTime      = "שעה לא בפורמט HH:MM-HH:MM (נשמר ב-notes)"
	noteLineDateGuess  = "תאריך משוער (חסר שנה / נרמול חלקי)"
	noteLineTime       = "שעה חלקית / לא זוהה טווח מלא"
	defaultEventTitle  = "אירוע"
)

var hasDigitRE = regexp.MustCompile(`\d`)

// DocExtractor imports a Word (.docx) or HTML document. Tables with
// day/date/time/activity columns are preferred; when no table row yields a
// record the paragraphs are read as dated lines instead.
type DocExtractor struct {
	Year datetime.Year
}

func (DocExtractor) Source() string          { return SourceDOCX }
func (DocExtractor) Mode() reconcile.KeyMode { return reconcile.BySignature }

// Extract decodes the document at path.
func (x DocExtractor) Extract(_ context.Context, path string) (*Extraction, error) {
	doc, err := DecodeDocument(path)
	if err != nil {
		return nil, err
	}
	return x.FromDocument(doc), nil
}

// FromDocument extracts candidates from decoded document content.
func (x DocExtractor) FromDocument(doc Document) *Extraction {
	out := &Extraction{}
	if x.fromTable(doc.Rows, out) {
		return out
	}
	x.fromLines(doc.Lines, out)
	return out
}

type columns struct{ day, date, time, activity int }

func headerColumns(row []string) (columns, bool) {
	c := columns{day: -1, date: -1, time: -1, activity: -1}
	for i, v := range row {
		switch textnorm.Line(v) {
		case "יום":
			c.day = i
		case "תאריך":
			c.date = i
		case "שעה":
			c.time = i
		case "סוג הפעילות", "סוג פעילות", "פעילות":
			c.activity = i
		}
	}
	return c, c.date >= 0 && c.activity >= 0
}

func (x DocExtractor) fromTable(rows [][]string, out *Extraction) bool {
	cols := columns{day: 0, date: 1, time: 2, activity: 3}
	start := 0
	for i, row := range rows {
		if c, ok := headerColumns(row); ok {
			cols, start = c, i+1
			break
		}
	}

	imported := false
	for _, row := range rows[min(start, len(rows)):] {
		if len(row) < 2 {
			continue
		}
		dayText := textnorm.Line(cellAt(row, cols.day))
		dateText := textnorm.Line(cellAt(row, cols.date))
		timeText := textnorm.Line(cellAt(row, cols.time))
		activity := textnorm.Line(cellAt(row, cols.activity))

		// Merged cells can leave the activity column empty.
		if activity == "" {
			for j := len(row) - 1; j >= 0; j-- {
				if v := textnorm.Line(row[j]); v != "" {
					activity = v
					break
				}
			}
		}
		// A time column holding words is the activity.
		if timeText != "" && !hasDigitRE.MatchString(timeText) && (activity == "" || activity == timeText) {
			activity, timeText = timeText, ""
		}

		parts := datetime.ExtractDateRange(dateText, x.Year)
		if activity == "" || len(parts) == 0 {
			if datetime.LooksLikeDate(dateText) || activity != "" {
				out.audit(SourceDOCX, "table-row-unparsed", strings.Join(row, " | "), "")
			}
			continue
		}

		from, to := datetime.ExtractTimeRange(timeText)
		timeUncertain := timeText != "" && (from == "" || to == "")
		base := strings.Join([]string{
			"מקור: Word",
			"יום: " + textnorm.FirstNonEmpty(dayText, classify.Unspecified),
			"תאריך (מקורי): " + textnorm.FirstNonEmpty(dateText, classify.Unspecified),
			"שעה (מקורי): " + textnorm.FirstNonEmpty(timeText, classify.Unspecified),
			"טקסט מקורי: " + activity,
		}, "\n")

		for _, p := range parts {
			var flags []string
			if p.Uncertain {
				flags = append(flags, noteTableDateGuess)
			}
			if timeUncertain {
				flags = append(flags, noteTableTime)
			}
			r := model.Record{
				Date:      p.Date,
				Title:     activity,
				StartTime: from,
				EndTime:   to,
				Notes:     withUncertainty(base, flags),
			}
			c := docCandidate(r, activity, activity, p.Uncertain)
			c.AuditText = strings.Join(row, " | ")
			out.Candidates = append(out.Candidates, c)
			imported = true
		}
	}
	return imported
}

func (x DocExtractor) fromLines(lines []string, out *Extraction) {
	var current datetime.Part
	for _, line := range lines {
		found := datetime.ExtractDate(line, x.Year)
		if found.Date != "" {
			current = found
			if datetime.RemoveDates(line) == "" {
				continue
			}
		}
		if current.Date == "" {
			out.audit(SourceDOCX, "missing-date", line, "")
			continue
		}

		start, end := datetime.ExtractTimeRange(line)
		var flags []string
		if current.Uncertain {
			flags = append(flags, noteLineDateGuess)
		}
		if start != "" && end == "" {
			flags = append(flags, noteLineTime)
		}
		r := model.Record{
			Date:      current.Date,
			Title:     datetime.StripDateTokens(line),
			StartTime: start,
			EndTime:   end,
			Notes:     withUncertainty("מקור: Word\nטקסט מקורי: "+line, flags),
		}
		out.Candidates = append(out.Candidates, docCandidate(r, line, r.Title, current.Uncertain))
	}
}

// docCandidate classifies text and fills the kind-specific fields of r.
// fallback is used for a holiday reason the text does not state.
func docCandidate(r model.Record, text, fallback string, dateGuessed bool) reconcile.Candidate {
	r.Kind = classify.Kind(text)
	var flags []string

	switch r.Kind {
	case model.KindHoliday:
		r.StartTime, r.EndTime = "", ""
		r.Reason = classify.ExtractReason(text)
		if r.Reason == "" {
			r.Reason = textnorm.FirstNonEmpty(fallback, classify.Unspecified)
			if r.Reason == classify.Unspecified {
				flags = append(flags, "holiday-missing-reason")
			}
		}
		r.Title = textnorm.FirstNonEmpty(r.Title, r.Reason)
	case model.KindExam:
		r.Subject = classify.ExtractSubject(text)
		if r.Subject == "" {
			r.Subject = classify.Unspecified
			flags = append(flags, "exam-missing-subject")
		}
		r.Title = textnorm.FirstNonEmpty(r.Title, r.Subject)
	default:
		typ, guessed := classify.Type(text)
		r.Type = typ
		if guessed {
			flags = append(flags, "schedule-uncertain-type")
		}
		r.Title = textnorm.FirstNonEmpty(r.Title, defaultEventTitle)
	}
	if dateGuessed {
		flags = append(flags, string(r.Kind)+"-uncertain")
	}

	r.ID = identity.RecordID(identity.PrefixDOCX, r)
	return reconcile.Candidate{
		Record:    r,
		Signature: identity.Signature(r),
		Uncertain: flags,
		AuditText: text,
	}
}

func withUncertainty(notes string, flags []string) string {
	if len(flags) == 0 {
		return notes
	}
	return notes + "\nאי-ודאות: " + strings.Join(flags, "; ")
}
