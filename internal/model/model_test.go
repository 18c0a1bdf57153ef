package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeNotes(t *testing.T) {
	assert.Equal(t, "a\nb\nc", MergeNotes("a\n b", "b\nc\n\n"))
	assert.Equal(t, "a\nb", MergeNotes(MergeNotes("a", "b"), "b"))
	assert.Equal(t, "", MergeNotes("", "  \n "))
}

func TestValidate_TimeOrder(t *testing.T) {
	doc := func(start, end string) []byte {
		return []byte(`{"version":1,"schedule":[{"id":"s1","kind":"schedule","date":"2025-03-12","title":"ישיבה","type":"meeting","startTime":"` +
			start + `","endTime":"` + end + `"}],"exams":[],"holidays":[]}`)
	}

	_, err := Validate(doc("10:00", "09:00"))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "schedule[0].endTime", verr.Path)

	ds, err := Validate(doc("09:00", "10:00"))
	require.NoError(t, err)
	assert.Len(t, ds.Schedule, 1)
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		path string
	}{
		{"not object", `[]`, ""},
		{"wrong version", `{"version":2,"schedule":[],"exams":[],"holidays":[]}`, "version"},
		{"missing array", `{"version":1,"schedule":[],"exams":{},"holidays":[]}`, "exams"},
		{"scalar record", `{"version":1,"schedule":[],"exams":[],"holidays":[3]}`, "holidays[0]"},
		{"exam without subject", `{"version":1,"schedule":[],"exams":[{"id":"e","kind":"exam","date":"2025-03-12","title":"מבחן"},{"id":"e2","kind":"exam","date":"2025-03-12","title":"מבחן"}],"holidays":[]}`, "exams[0].subject"},
		{"bad date", `{"version":1,"schedule":[],"exams":[],"holidays":[{"id":"h","kind":"holiday","date":"2025-02-30","title":"x","reason":"y"}]}`, "holidays[0].date"},
		{"wrong kind", `{"version":1,"schedule":[{"id":"s","kind":"exam","date":"2025-03-12","title":"x","type":"meeting"}],"exams":[],"holidays":[]}`, "schedule[0].kind"},
		{"bad type", `{"version":1,"schedule":[{"id":"s","kind":"schedule","date":"2025-03-12","title":"x","type":"party"}],"exams":[],"holidays":[]}`, "schedule[0].type"},
		{"duplicate id", `{"version":1,"schedule":[],"exams":[],"holidays":[{"id":"h","kind":"holiday","date":"2025-03-12","title":"x","reason":"y"},{"id":"h","kind":"holiday","date":"2025-03-13","title":"x","reason":"y"}]}`, "holidays[1].id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate([]byte(tc.doc))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "%v", err)
			assert.Equal(t, tc.path, verr.Path)
		})
	}
}

func TestMergeByID(t *testing.T) {
	base := NewDataset()
	base.Holidays = []Record{
		{ID: "a", Kind: KindHoliday, Date: "2025-04-01", Title: "A", Reason: "r"},
		{ID: "b", Kind: KindHoliday, Date: "2025-04-02", Title: "B", Reason: "r"},
	}
	in := NewDataset()
	in.Holidays = []Record{
		{ID: "b", Kind: KindHoliday, Date: "2025-04-02", Title: "B2", Reason: "r"},
		{ID: "c", Kind: KindHoliday, Date: "2025-04-03", Title: "C", Reason: "r"},
	}

	out := MergeByID(base, in)
	require.Len(t, out.Holidays, 3)
	assert.Equal(t, []string{"A", "B2", "C"}, []string{out.Holidays[0].Title, out.Holidays[1].Title, out.Holidays[2].Title})
	assert.Equal(t, "B", base.Holidays[1].Title)
}

func TestSortForDisplayAndMonthlyCounts(t *testing.T) {
	ds := NewDataset()
	ds.Schedule = []Record{
		{ID: "2", Kind: KindSchedule, Date: "2025-03-12", StartTime: "14:00"},
		{ID: "1", Kind: KindSchedule, Date: "2025-03-12", StartTime: "09:00"},
		{ID: "0", Kind: KindSchedule, Date: "2025-02-01"},
	}
	ds.Holidays = []Record{{ID: "h", Kind: KindHoliday, Date: "2025-03-20"}}

	SortForDisplay(&ds)
	assert.Equal(t, "0", ds.Schedule[0].ID)
	assert.Equal(t, "1", ds.Schedule[1].ID)

	months := MonthlyCounts(ds)
	require.Len(t, months, 2)
	assert.Equal(t, MonthCount{Month: "2025-02", CountsByKind: CountsByKind{Schedule: 1}}, months[0])
	assert.Equal(t, MonthCount{Month: "2025-03", CountsByKind: CountsByKind{Schedule: 2, Holidays: 1}}, months[1])
}

func TestDatasetFindRemove(t *testing.T) {
	ds := NewDataset()
	ds.Exams = []Record{{ID: "e1", Kind: KindExam}, {ID: "e2", Kind: KindExam}}

	r, ok := ds.Find("e2")
	require.True(t, ok)
	assert.Equal(t, KindExam, r.Kind)

	assert.True(t, ds.Remove("e1"))
	assert.False(t, ds.Remove("e1"))
	assert.Len(t, ds.Exams, 1)
}
