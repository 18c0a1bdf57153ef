// Package dedupe collapses records that describe the same event after
// imports from several sources have accumulated near-duplicates.
package dedupe

import (
	"sort"
	"strings"

	"github.com/yanivmizrachiy/luztedi/internal/model"
	"github.com/yanivmizrachiy/luztedi/internal/textnorm"
)

// KeyFunc maps a record to its grouping key.
type KeyFunc func(model.Record) string

// Result of deduplicating one collection.
type Result struct {
	Out        []model.Record
	RemovedIDs []string
}

// Score ranks how much curated detail a record carries; the highest
// scoring member of a group represents it.
func Score(r model.Record) int {
	s := 0
	if r.StartTime != "" {
		s += 10
	}
	if r.EndTime != "" {
		s += 5
	}
	if r.Description != "" {
		s += 2
	}
	if r.Location != "" {
		s++
	}
	if r.Group != "" {
		s++
	}
	return s + min(3, len(r.Notes)/120)
}

// Dedupe groups records by key in order of first appearance. Each group is
// replaced by its highest scoring member (earliest wins ties) carrying the
// merged notes of every member.
func Dedupe(records []model.Record, key KeyFunc) Result {
	groups := make(map[string][]int)
	var order []string
	for i, r := range records {
		k := key(r)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	res := Result{Out: make([]model.Record, 0, len(order))}
	for _, k := range order {
		members := groups[k]
		if len(members) == 1 {
			res.Out = append(res.Out, records[members[0]])
			continue
		}

		ranked := append([]int(nil), members...)
		sort.SliceStable(ranked, func(a, b int) bool {
			return Score(records[ranked[a]]) > Score(records[ranked[b]])
		})
		best := ranked[0]

		notes := make([]string, 0, len(members))
		for _, i := range members {
			notes = append(notes, records[i].Notes)
		}
		kept := records[best]
		if merged := model.MergeNotes(notes...); merged != "" {
			kept.Notes = merged
		}
		res.Out = append(res.Out, kept)

		for _, i := range members {
			if i != best {
				res.RemovedIDs = append(res.RemovedIDs, records[i].ID)
			}
		}
	}
	return res
}

// ScheduleKey groups schedule entries by date, type and normalized title.
func ScheduleKey(r model.Record) string {
	return strings.Join([]string{"schedule", r.Date, string(r.Type), textnorm.Key(r.Title)}, "|")
}

// ExamKey groups exams by date, subject and normalized title, falling back
// to the subject when the title is blank.
func ExamKey(r model.Record) string {
	title := r.Title
	if strings.TrimSpace(title) == "" {
		title = r.Subject
	}
	return strings.Join([]string{"exam", r.Date, strings.TrimSpace(r.Subject), textnorm.Key(title)}, "|")
}

// HolidayKey groups holidays by date, normalized title and normalized reason.
func HolidayKey(r model.Record) string {
	return strings.Join([]string{"holiday", r.Date, textnorm.Key(r.Title), textnorm.Key(r.Reason)}, "|")
}

// Report describes what Dataset changed.
type Report struct {
	Before  model.CountsByKind `json:"before"`
	After   model.CountsByKind `json:"after"`
	Removed model.CountsByKind `json:"removed"`
}

// Dataset deduplicates every collection of ds and returns the cleaned copy.
// Running it on its own output removes nothing.
func Dataset(ds model.Dataset) (model.Dataset, Report) {
	out := ds.Clone()
	out.Normalize()
	rep := Report{Before: out.Sizes()}

	keys := map[model.Kind]KeyFunc{
		model.KindSchedule: ScheduleKey,
		model.KindExam:     ExamKey,
		model.KindHoliday:  HolidayKey,
	}
	for _, k := range model.Kinds {
		col := out.Collection(k)
		res := Dedupe(*col, keys[k])
		*col = res.Out
		for range res.RemovedIDs {
			rep.Removed.Inc(k)
		}
	}

	rep.After = out.Sizes()
	return out, rep
}
