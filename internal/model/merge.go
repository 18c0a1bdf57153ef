package model

import "sort"

// MergeByID overlays incoming onto base: a record whose id already exists
// in the same collection is replaced in place, anything else is appended.
// Neither argument is modified.
func MergeByID(base, incoming Dataset) Dataset {
	out := base.Clone()
	out.Normalize()
	for _, k := range Kinds {
		col := out.Collection(k)
		pos := make(map[string]int, len(*col))
		for i, r := range *col {
			pos[r.ID] = i
		}
		for _, r := range *incoming.Collection(k) {
			if i, ok := pos[r.ID]; ok {
				(*col)[i] = r
				continue
			}
			pos[r.ID] = len(*col)
			*col = append(*col, r)
		}
	}
	return out
}

// SortForDisplay orders schedule and exams by date then start time and
// holidays by date. Equal keys keep their relative order.
func SortForDisplay(d *Dataset) {
	byDateTime := func(rs []Record) {
		sort.SliceStable(rs, func(i, j int) bool {
			return rs[i].Date+rs[i].StartTime < rs[j].Date+rs[j].StartTime
		})
	}
	byDateTime(d.Schedule)
	byDateTime(d.Exams)
	sort.SliceStable(d.Holidays, func(i, j int) bool {
		return d.Holidays[i].Date < d.Holidays[j].Date
	})
}

// MonthCount is one row of the per-month overview.
type MonthCount struct {
	Month string `json:"month"` // YYYY-MM
	CountsByKind
}

// MonthlyCounts tallies records per calendar month, oldest month first.
func MonthlyCounts(d Dataset) []MonthCount {
	byMonth := map[string]*MonthCount{}
	for _, k := range Kinds {
		for _, r := range *d.Collection(k) {
			if len(r.Date) < 7 {
				continue
			}
			m := r.Date[:7]
			mc, ok := byMonth[m]
			if !ok {
				mc = &MonthCount{Month: m}
				byMonth[m] = mc
			}
			mc.Inc(k)
		}
	}

	out := make([]MonthCount, 0, len(byMonth))
	for _, mc := range byMonth {
		out = append(out, *mc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
