// Package datetime pulls calendar dates and clock times out of free text
// and spreadsheet cells.
//
// Recognized date shapes, in priority order: ISO (2025-03-04), D/M/YYYY,
// D.M.YYYY, day ranges inside one month (3-5/3), ranges across months
// (24/3-8/4) and bare D/M. When the text carries no year the caller's Year
// hint supplies one and the result is marked Uncertain unless the hint came
// from the operator.
package datetime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yanivmizrachiy/luztedi/internal/textnorm"
)

const (
	isoLayout = "2006-01-02"

	// maxRangeDays bounds range expansion; a school year never needs more.
	maxRangeDays = 366
)

// Part is one extracted calendar date. Date is empty when nothing usable
// was found.
type Part struct {
	Date      string `json:"date"`
	Uncertain bool   `json:"uncertain"`
}

// Year tells the extractor which year to assume when the text has none.
// Default is operator-supplied and trusted; Fallback (usually the run
// clock's year) is a guess and marks results Uncertain.
type Year struct {
	Default  int
	Fallback int
}

func (y Year) resolve() (year int, uncertain bool, ok bool) {
	if y.Default > 0 {
		return y.Default, false, true
	}
	if y.Fallback > 0 {
		return y.Fallback, true, true
	}
	return 0, true, false
}

var (
	isoInTextRE = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	dmyInTextRE = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	dotInTextRE = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{4})\b`)
	dmInTextRE  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})\b`)

	isoCellRE        = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})$`)
	dmyCellRE        = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	dotCellRE        = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`)
	dayRangeCellRE   = regexp.MustCompile(`^(\d{1,2})\s*[-–]\s*(\d{1,2})/(\d{1,2})(?:/(\d{4}))?$`)
	crossRangeCellRE = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})\s*[-–]\s*(\d{1,2})/(\d{1,2})$`)
	dmCellRE         = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)

	// Times are not allowed to touch another digit, dot or colon so that
	// D.M.YYYY dates never read as H.MM.
	timeRangeRE  = regexp.MustCompile(`(?:^|[^\d.:])(\d{1,2}[:.]\d{2})\s*[–-]\s*(\d{1,2}[:.]\d{2})(?:$|[^\d.:])`)
	singleTimeRE = regexp.MustCompile(`(?:^|[^\d.:])(\d{1,2}[:.]\d{2})(?:$|[^\d.:])`)
	wholeTimeRE  = regexp.MustCompile(`^(\d{1,2})[:.](\d{2})$`)
	isoTimeRE    = regexp.MustCompile(`^\d{2}:\d{2}$`)
	isoDateRE    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	leadingPunctRE = regexp.MustCompile(`^[—–\-:：]+`)
)

// ISO formats t as YYYY-MM-DD in t's own location.
func ISO(t time.Time) string {
	return t.Format(isoLayout)
}

// ParseISO parses a YYYY-MM-DD date at midnight in loc.
func ParseISO(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(isoLayout, s, loc)
}

// ValidDate reports whether s is a real calendar date written YYYY-MM-DD.
func ValidDate(s string) bool {
	if !isoDateRE.MatchString(s) {
		return false
	}
	_, err := time.Parse(isoLayout, s)
	return err == nil
}

// ValidTime reports whether s is a 24h clock time written HH:MM.
func ValidTime(s string) bool {
	if !isoTimeRE.MatchString(s) {
		return false
	}
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[3:])
	return h <= 23 && m <= 59
}

// Minutes converts HH:MM to minutes since midnight; invalid input yields -1.
func Minutes(s string) int {
	if !ValidTime(s) {
		return -1
	}
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[3:])
	return h*60 + m
}

// ExtractDate finds the first date in free text.
func ExtractDate(text string, year Year) Part {
	t := textnorm.Line(text)

	if m := isoInTextRE.FindStringSubmatch(t); m != nil {
		if ValidDate(m[1]) {
			return Part{Date: m[1]}
		}
		return Part{}
	}
	if m := dmyInTextRE.FindStringSubmatch(t); m != nil {
		return fromParts(m[3], m[2], m[1], false)
	}
	if m := dotInTextRE.FindStringSubmatch(t); m != nil {
		return fromParts(m[3], m[2], m[1], false)
	}
	if m := dmInTextRE.FindStringSubmatch(t); m != nil {
		y, uncertain, ok := year.resolve()
		if !ok {
			return Part{Uncertain: true}
		}
		return fromParts(strconv.Itoa(y), m[2], m[1], uncertain)
	}
	return Part{Uncertain: true}
}

// ExtractDateRange interprets a whole cell as a date or a date range and
// returns one Part per covered day. Unrecognized or impossible dates yield
// nil.
func ExtractDateRange(cell string, year Year) []Part {
	t := textnorm.Line(cell)
	if t == "" {
		return nil
	}

	if m := isoCellRE.FindStringSubmatch(t); m != nil {
		if !ValidDate(m[1]) {
			return nil
		}
		return []Part{{Date: m[1]}}
	}
	if m := dmyCellRE.FindStringSubmatch(t); m != nil {
		return single(fromParts(m[3], m[2], m[1], false))
	}
	if m := dotCellRE.FindStringSubmatch(t); m != nil {
		return single(fromParts(m[3], m[2], m[1], false))
	}

	if m := dayRangeCellRE.FindStringSubmatch(t); m != nil {
		y, uncertain, ok := year.resolve()
		if m[4] != "" {
			y, _ = strconv.Atoi(m[4])
			uncertain, ok = false, true
		}
		if !ok {
			return nil
		}
		from, _ := strconv.Atoi(m[1])
		to, _ := strconv.Atoi(m[2])
		month, _ := strconv.Atoi(m[3])
		return dayRange(y, month, from, to, uncertain)
	}

	if m := crossRangeCellRE.FindStringSubmatch(t); m != nil {
		y, uncertain, ok := year.resolve()
		if !ok {
			return nil
		}
		fromDay, _ := strconv.Atoi(m[1])
		fromMonth, _ := strconv.Atoi(m[2])
		toDay, _ := strconv.Atoi(m[3])
		toMonth, _ := strconv.Atoi(m[4])
		return crossRange(y, fromMonth, fromDay, toMonth, toDay, uncertain)
	}

	if m := dmCellRE.FindStringSubmatch(t); m != nil {
		y, uncertain, ok := year.resolve()
		if !ok {
			return nil
		}
		return single(fromParts(strconv.Itoa(y), m[2], m[1], uncertain))
	}

	return nil
}

// LooksLikeDate reports whether text contains a D/M shaped token; rows
// with one are audited when they cannot be imported.
func LooksLikeDate(text string) bool {
	return dmInTextRE.MatchString(text) || isoInTextRE.MatchString(text)
}

// ExtractTimeRange finds a clock range (9:00-10:30, 9.00–10.30) or, failing
// that, a single clock time. Missing values are empty strings.
func ExtractTimeRange(text string) (start, end string) {
	if m := timeRangeRE.FindStringSubmatch(text); m != nil {
		start, end = NormalizeTime(m[1]), NormalizeTime(m[2])
		if start != "" && end != "" && Minutes(end) < Minutes(start) {
			// A reversed range is kept as a start time only.
			end = ""
		}
		return start, end
	}
	if m := singleTimeRE.FindStringSubmatch(text); m != nil {
		return NormalizeTime(m[1]), ""
	}
	return "", ""
}

// NormalizeTime turns "9:05" or "9.05" into "09:05". Anything else,
// including impossible clock values, yields "".
func NormalizeTime(raw string) string {
	m := wholeTimeRE.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return ""
	}
	h, _ := strconv.Atoi(m[1])
	out := fmt.Sprintf("%02d:%s", h, m[2])
	if !ValidTime(out) {
		return ""
	}
	return out
}

// RemoveDates deletes the first date token of each recognized shape.
func RemoveDates(line string) string {
	line = replaceFirst(isoInTextRE, line)
	line = replaceFirst(dmyInTextRE, line)
	line = replaceFirst(dotInTextRE, line)
	line = replaceFirst(dmInTextRE, line)
	return textnorm.Clean(line)
}

// StripDateTokens removes date tokens, a clock range and leading dashes or
// colons, leaving the descriptive part of a line.
func StripDateTokens(line string) string {
	line = RemoveDates(line)
	if loc := timeRangeRE.FindStringSubmatchIndex(line); loc != nil {
		// Drop only the two times and the dash, keep the guard characters.
		line = line[:loc[2]] + line[loc[5]:]
	}
	line = strings.TrimSpace(line)
	line = leadingPunctRE.ReplaceAllString(line, "")
	return textnorm.Clean(line)
}

func replaceFirst(re *regexp.Regexp, s string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + s[loc[1]:]
}

func fromParts(year, month, day string, uncertain bool) Part {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	t, ok := calendarDate(y, m, d)
	if !ok {
		return Part{Uncertain: uncertain}
	}
	return Part{Date: ISO(t), Uncertain: uncertain}
}

func single(p Part) []Part {
	if p.Date == "" {
		return nil
	}
	return []Part{p}
}

// calendarDate builds a UTC date and refuses values time.Date would
// silently roll over (31/2 → 3/3).
func calendarDate(y, m, d int) (time.Time, bool) {
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}

func dayRange(year, month, from, to int, uncertain bool) []Part {
	if _, ok := calendarDate(year, month, from); !ok {
		return nil
	}
	if _, ok := calendarDate(year, month, to); !ok {
		return nil
	}
	step := 1
	if from > to {
		step = -1
	}
	out := make([]Part, 0, abs(to-from)+1)
	for d := from; ; d += step {
		t, _ := calendarDate(year, month, d)
		out = append(out, Part{Date: ISO(t), Uncertain: uncertain})
		if d == to {
			break
		}
	}
	return out
}

func crossRange(year, fromMonth, fromDay, toMonth, toDay int, uncertain bool) []Part {
	start, ok := calendarDate(year, fromMonth, fromDay)
	if !ok {
		return nil
	}
	endYear := year
	if toMonth < fromMonth {
		// 28/12-3/1 runs into the next year.
		endYear++
	}
	end, ok := calendarDate(endYear, toMonth, toDay)
	if !ok || end.Before(start) {
		return nil
	}

	var out []Part
	for cur := start; !cur.After(end) && len(out) < maxRangeDays; cur = cur.AddDate(0, 0, 1) {
		out = append(out, Part{Date: ISO(cur), Uncertain: uncertain})
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
