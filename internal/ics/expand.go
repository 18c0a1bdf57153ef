package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "github.com/yanivmizrachiy/luztedi/internal/log"
)

const defaultMaxOccurrences = 5000

// Occurrence is one dated instance of an event after recurrence expansion.
type Occurrence struct {
	SourceID    string
	UID         string
	Summary     string
	Description string
	Location    string
	Categories  []string
	AllDay      bool
	Start       time.Time
	End         time.Time
}

// Window bounds an expansion. Occurrences are reported in Location.
type Window struct {
	From     time.Time
	To       time.Time
	Location *time.Location

	// MaxPerEvent caps instances per series; zero means 5000.
	MaxPerEvent int
}

// Expansion is the result of Expand.
type Expansion struct {
	Occurrences []Occurrence
	Truncated   []string // UIDs that hit MaxPerEvent
}

// Expand turns events into dated occurrences inside w. RRULE series are
// expanded with EXDATE removal, and RECURRENCE-ID overrides replace the
// instance they name. The result is ordered by start time then UID.
func Expand(events []Event, w Window) (Expansion, error) {
	var out Expansion
	if w.To.Before(w.From) {
		return out, errors.New("expand: window ends before it starts")
	}
	if w.Location == nil {
		w.Location = time.Local
	}
	if w.MaxPerEvent <= 0 {
		w.MaxPerEvent = defaultMaxOccurrences
	}

	series := make(map[string][]Event)
	overrides := make(map[string][]Event)
	var uids []string
	for _, ev := range events {
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, seen := series[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		series[ev.UID] = append(series[ev.UID], ev)
	}

	for _, uid := range uids {
		capped := false
		for _, ev := range series[uid] {
			occ, hit := expandOne(ev, overrides[uid], w)
			capped = capped || hit
			out.Occurrences = append(out.Occurrences, occ...)
		}
		if capped {
			out.Truncated = append(out.Truncated, uid)
			appLog.Error("ics expansion truncated", errors.New("max occurrences reached"), "uid", uid, "cap", w.MaxPerEvent)
		}
	}

	sort.SliceStable(out.Occurrences, func(i, j int) bool {
		a, b := out.Occurrences[i], out.Occurrences[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.UID < b.UID
	})
	return out, nil
}

func expandOne(ev Event, overrides []Event, w Window) ([]Occurrence, bool) {
	if ev.RRule == "" {
		if !overlaps(ev.Start, ev.End, w.From, w.To) {
			return nil, false
		}
		if o, ok := overrideFor(overrides, ev.Start); ok {
			return []Occurrence{occurrence(o, o.Start, o.End, w.Location)}, false
		}
		return []Occurrence{occurrence(ev, ev.Start, ev.End, w.Location)}, false
	}

	rule, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Error("ics rrule rejected", err, "uid", ev.UID, "rrule", ev.RRule)
		return nil, false
	}
	rule.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	starts := set.Between(w.From.In(ev.Start.Location()), w.To.In(ev.Start.Location()), true)
	capped := false
	if len(starts) > w.MaxPerEvent {
		starts = starts[:w.MaxPerEvent]
		capped = true
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]Occurrence, 0, len(starts))
	for _, start := range starts {
		end := start.Add(dur)
		if ev.AllDay {
			start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
			end = start.AddDate(0, 0, max(1, int(dur.Hours()/24)))
		}
		if o, ok := overrideFor(overrides, start); ok {
			out = append(out, occurrence(o, o.Start, o.End, w.Location))
			continue
		}
		out = append(out, occurrence(ev, start, end, w.Location))
	}
	return out, capped
}

func overrideFor(overrides []Event, start time.Time) (Event, bool) {
	for _, o := range overrides {
		if o.Recurrence != nil && o.Recurrence.Equal(start) {
			return o, true
		}
	}
	return Event{}, false
}

func occurrence(ev Event, start, end time.Time, loc *time.Location) Occurrence {
	if ev.AllDay {
		// All-day dates are calendar days, not instants; keep the wall date.
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
	} else {
		start, end = start.In(loc), end.In(loc)
	}
	return Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Categories:  ev.Categories,
		AllDay:      ev.AllDay,
		Start:       start,
		End:         end,
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}

// Days lists the calendar dates (YYYY-MM-DD in the occurrence's location)
// an occurrence covers. A timed occurrence covers only its start day; an
// all-day one covers every day up to but excluding End.
func (o Occurrence) Days() []string {
	first := o.Start.Format("2006-01-02")
	if !o.AllDay {
		return []string{first}
	}
	var out []string
	for d := o.Start; d.Before(o.End) && len(out) < 366; d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format("2006-01-02"))
	}
	if len(out) == 0 {
		out = append(out, first)
	}
	return out
}
