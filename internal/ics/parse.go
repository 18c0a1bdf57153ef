package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "github.com/yanivmizrachiy/luztedi/internal/log"
)

// Event is one VEVENT as read from a feed. Recurrences are not expanded
// here; see Expand.
type Event struct {
	Source Source

	UID string
	Seq int

	Summary     string
	Description string
	Location    string
	Categories  []string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule      string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID of an overridden instance
}

// IsOverride reports whether the event replaces one instance of a series.
func (e Event) IsOverride() bool { return e.Recurrence != nil }

// ErrEmptyFeed is returned for a zero-length payload.
var ErrEmptyFeed = errors.New("empty ICS body")

// Parse decodes a feed into events. A VEVENT that cannot be read is logged
// and skipped; only a payload that is not a calendar at all fails.
func Parse(src Source, body []byte) ([]Event, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyFeed
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	var events []Event
	for _, ve := range cal.Events() {
		ev, err := readEvent(src, ve)
		if err != nil {
			appLog.Error("ics vevent skipped", err, "id", src.ID)
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parsed", "id", src.ID, "events", len(events))
	return events, nil
}

func readEvent(src Source, ve *ical.VEvent) (Event, error) {
	ev := Event{Source: src}

	ev.UID = propValue(ve, ical.ComponentPropertyUniqueId)
	if ev.UID == "" {
		return ev, errors.New("missing UID")
	}
	if n, err := strconv.Atoi(propValue(ve, ical.ComponentPropertySequence)); err == nil {
		ev.Seq = n
	}

	ev.Summary = unescapeText(propValue(ve, ical.ComponentPropertySummary))
	ev.Description = unescapeText(propValue(ve, ical.ComponentPropertyDescription))
	ev.Location = unescapeText(propValue(ve, ical.ComponentPropertyLocation))
	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		for _, c := range strings.Split(p.Value, ",") {
			if c = strings.TrimSpace(c); c != "" {
				ev.Categories = append(ev.Categories, c)
			}
		}
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return ev, errors.New("missing DTSTART")
	}
	ev.AllDay = isDateValue(dtStart)

	var err error
	if ev.AllDay {
		ev.Start, err = ve.GetAllDayStartAt()
	} else {
		ev.Start, err = ve.GetStartAt()
	}
	if err != nil {
		return ev, err
	}

	if ev.AllDay {
		ev.End, err = ve.GetAllDayEndAt()
	} else {
		ev.End, err = ve.GetEndAt()
	}
	if err != nil || !ev.End.After(ev.Start) {
		// DTEND is optional; an all-day event covers its start day, a timed
		// one is a point in time.
		if ev.AllDay {
			ev.End = ev.Start.AddDate(0, 0, 1)
		} else {
			ev.End = ev.Start
		}
	}

	ev.RRule = propValue(ve, ical.ComponentPropertyRrule)

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := paramLocation(p.ICalParameters, ev.Start.Location())
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, loc); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		loc := paramLocation(p.ICalParameters, ev.Start.Location())
		if t, err := parseICSTime(p.Value, loc); err == nil {
			ev.Recurrence = &t
		}
	}

	return ev, nil
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

// isDateValue reports whether DTSTART carries a DATE rather than a
// DATE-TIME, either by parameter or by shape.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func paramLocation(params map[string][]string, fallback *time.Location) *time.Location {
	if tz, ok := params["TZID"]; ok && len(tz) > 0 {
		if loc, err := time.LoadLocation(tz[0]); err == nil {
			return loc
		}
	}
	if fallback == nil {
		return time.Local
	}
	return fallback
}

// parseICSTime reads the DATE, floating DATE-TIME and UTC DATE-TIME forms.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}
