package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/yanivmizrachiy/luztedi/internal/datetime"
	"github.com/yanivmizrachiy/luztedi/internal/model"
)

// ProductID is written as PRODID on every exported calendar.
const ProductID = "-//luztedi//school calendar//HE"

// ExportOptions controls Encode.
type ExportOptions struct {
	Name     string         // X-WR-CALNAME
	Location *time.Location // zone of the record wall times
	// Stamp is written as DTSTAMP on every event. A fixed value keeps the
	// feed byte-identical while the data is unchanged.
	Stamp time.Time
}

// Encode renders every record of ds as a VEVENT. Records without times are
// all-day events; a start without an end lasts one hour.
func Encode(ds model.Dataset, opts ExportOptions) (string, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, k := range model.Kinds {
		for _, r := range *ds.Collection(k) {
			if err := addRecord(cal, r, loc, stamp); err != nil {
				return "", fmt.Errorf("export %s: %w", r.ID, err)
			}
		}
	}
	return cal.Serialize(), nil
}

func addRecord(cal *ical.Calendar, r model.Record, loc *time.Location, stamp time.Time) error {
	day, err := datetime.ParseISO(r.Date, loc)
	if err != nil {
		return err
	}

	ev := cal.AddEvent(r.ID + "@luztedi")
	ev.SetDtStampTime(stamp)
	ev.SetSummary(r.Title)
	if r.Location != "" {
		ev.SetLocation(r.Location)
	}
	if desc := description(r); desc != "" {
		ev.SetDescription(desc)
	}
	ev.SetProperty(ical.ComponentPropertyCategories, strings.Join(categories(r), ","))

	if r.StartTime == "" {
		ev.SetAllDayStartAt(day)
		ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
		return nil
	}

	start := day.Add(time.Duration(datetime.Minutes(r.StartTime)) * time.Minute)
	end := start.Add(time.Hour)
	if r.EndTime != "" {
		end = day.Add(time.Duration(datetime.Minutes(r.EndTime)) * time.Minute)
	}
	ev.SetStartAt(start)
	ev.SetEndAt(end)
	return nil
}

func categories(r model.Record) []string {
	out := []string{string(r.Kind)}
	if r.Type != "" {
		out = append(out, string(r.Type))
	}
	return out
}

func description(r model.Record) string {
	var lines []string
	add := func(label, v string) {
		if v != "" {
			lines = append(lines, label+v)
		}
	}
	add("", r.Description)
	add("מקצוע: ", r.Subject)
	add("כיתה: ", r.ClassName)
	add("סיבה: ", r.Reason)
	add("קבוצה: ", r.Group)
	add("", r.Notes)
	return strings.Join(lines, "\n")
}
