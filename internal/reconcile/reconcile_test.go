package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanivmizrachiy/luztedi/internal/identity"
	"github.com/yanivmizrachiy/luztedi/internal/model"
)

func meeting(date, title, notes string) model.Record {
	r := model.Record{
		Kind:  model.KindSchedule,
		Type:  model.TypeMeeting,
		Date:  date,
		Title: title,
		Notes: notes,
	}
	r.ID = identity.IDFromSignature(identity.PrefixXLSX, identity.Signature(r))
	return r
}

func TestApply_AddsThenMergesIdempotently(t *testing.T) {
	cands := []Candidate{
		{Record: meeting("2025-03-12", "ישיבת צוות", "מקור: XLSX (מרץ)")},
		{Record: meeting("2025-03-13", "ישיבת הורים", "")},
	}
	opts := Options{Source: "sheet-xlsx", Today: "2025-03-10", Mode: BySignature}

	first, sum1 := Apply(model.NewDataset(), cands, opts)
	require.Len(t, first.Schedule, 2)
	assert.Equal(t, 2, sum1.Added.Schedule)
	assert.Equal(t, 0, sum1.Merged.Schedule)

	second, sum2 := Apply(first, cands, opts)
	assert.Equal(t, first, second)
	assert.Equal(t, 0, sum2.Added.Total())
	assert.Equal(t, 2, sum2.Merged.Schedule)
}

func TestApply_DoesNotModifyInput(t *testing.T) {
	ds := model.NewDataset()
	_, _ = Apply(ds, []Candidate{{Record: meeting("2025-03-12", "x", "")}}, Options{Mode: BySignature})
	assert.Empty(t, ds.Schedule)
}

func TestApply_SignatureMatchesCosmeticDrift(t *testing.T) {
	existing := meeting("2025-03-12", "ישיבת צוות", "נקבע ידנית")
	existing.ID = "manual-1"
	existing.Location = "חדר מורים"
	ds := model.NewDataset()
	ds.Schedule = append(ds.Schedule, existing)

	drift := meeting("2025-03-12", "  ישיבת   צוות. ", "מקור: XLSX (מרץ)")
	next, sum := Apply(ds, []Candidate{{Record: drift}}, Options{Today: "2025-03-01", Mode: BySignature})

	require.Len(t, next.Schedule, 1)
	got := next.Schedule[0]
	assert.Equal(t, "manual-1", got.ID)
	assert.Equal(t, drift.Title, got.Title)
	assert.Empty(t, got.Location, "fields the candidate leaves empty are cleared")
	assert.Equal(t, "נקבע ידנית\nמקור: XLSX (מרץ)", got.Notes)
	assert.Equal(t, 1, sum.Merged.Schedule)
}

func TestApply_MergeReplacesTimes(t *testing.T) {
	existing := meeting("2025-03-12", "ישיבת צוות", "")
	existing.StartTime, existing.EndTime = "09:00", "10:00"
	ds := model.NewDataset()
	ds.Schedule = append(ds.Schedule, existing)

	moved := existing
	moved.StartTime, moved.EndTime = "11:00", ""
	next, sum := Apply(ds, []Candidate{{Record: moved}}, Options{Mode: ByID})

	require.Len(t, next.Schedule, 1)
	assert.Equal(t, "11:00", next.Schedule[0].StartTime)
	assert.Empty(t, next.Schedule[0].EndTime)
	assert.Equal(t, 1, sum.Merged.Schedule)
	assert.Nil(t, model.ValidateRecord(next.Schedule[0], model.KindSchedule))
}

func TestApply_RejectsUnknownKind(t *testing.T) {
	cands := []Candidate{
		{Record: model.Record{ID: "x", Date: "2025-03-12", Title: "t"}},
		{Record: model.Record{ID: "y", Kind: "party", Date: "2025-03-12", Title: "t"}},
	}
	var (
		next model.Dataset
		sum  Summary
	)
	require.NotPanics(t, func() {
		next, sum = Apply(model.NewDataset(), cands, Options{Mode: BySignature})
	})
	assert.Equal(t, 0, next.Sizes().Total())
	assert.Equal(t, 2, sum.Skipped)
	require.Len(t, sum.Uncertain, 2)
	for _, a := range sum.Uncertain {
		assert.Equal(t, "invalid-record", a.Reason)
		assert.Contains(t, a.Text, "unknown kind")
	}
}

func TestUpsert_RejectsInvalidMerge(t *testing.T) {
	existing := meeting("2025-03-12", "ישיבת צוות", "")
	ds := model.NewDataset()
	ds.Schedule = append(ds.Schedule, existing)
	idx := NewIndex(ds)

	bad := existing
	bad.StartTime, bad.EndTime = "11:00", "10:00"
	outcome, verr := Upsert(&ds, idx, Candidate{Record: bad}, ByID)
	assert.Equal(t, Rejected, outcome)
	require.NotNil(t, verr)
	assert.Equal(t, "endTime", verr.Path)
	assert.Equal(t, existing, ds.Schedule[0])
}

func TestIndex_SameIDAcrossKinds(t *testing.T) {
	ds := model.NewDataset()
	ds.Schedule = append(ds.Schedule, model.Record{ID: "shared", Kind: model.KindSchedule, Type: model.TypeMeeting, Date: "2025-03-12", Title: "ישיבה"})
	ds.Exams = append(ds.Exams, model.Record{ID: "shared", Kind: model.KindExam, Date: "2025-03-13", Title: "מבחן", Subject: "מתמטיקה"})

	// Re-importing the schedule record under a new id must still find it
	// by signature once the exam with the same id has been touched.
	exam := ds.Exams[0]
	exam.Notes = "עודכן"
	sched := ds.Schedule[0]
	sched.ID = "ev-other"
	next, sum := Apply(ds, []Candidate{{Record: exam}, {Record: sched}}, Options{Mode: BySignature})

	assert.Equal(t, 2, sum.Merged.Total())
	require.Len(t, next.Schedule, 1)
	assert.Equal(t, "shared", next.Schedule[0].ID)
}

func TestApply_ByIDIgnoresSignature(t *testing.T) {
	ds := model.NewDataset()
	ds.Schedule = append(ds.Schedule, meeting("2025-03-12", "ישיבת צוות", ""))

	other := meeting("2025-03-12", "ישיבת צוות", "")
	other.ID = "sheet-different"
	next, sum := Apply(ds, []Candidate{{Record: other}}, Options{Mode: ByID})
	assert.Len(t, next.Schedule, 2)
	assert.Equal(t, 1, sum.Added.Schedule)
}

func TestApply_NotesUnionOnRepeatedMerge(t *testing.T) {
	ds := model.NewDataset()
	ds.Schedule = append(ds.Schedule, meeting("2025-03-12", "ישיבה", "a\nb"))
	c := Candidate{Record: meeting("2025-03-12", "ישיבה", "b\nc")}

	next, _ := Apply(ds, []Candidate{c}, Options{Mode: BySignature})
	next, _ = Apply(next, []Candidate{c}, Options{Mode: BySignature})
	assert.Equal(t, "a\nb\nc", next.Schedule[0].Notes)
}

func TestApply_DropsPastDates(t *testing.T) {
	cands := []Candidate{
		{Record: meeting("2025-03-09", "אתמול", "")},
		{Record: meeting("2025-03-10", "היום", "")},
		{Record: meeting("2025-03-11", "מחר", "")},
	}
	next, sum := Apply(model.NewDataset(), cands, Options{Today: "2025-03-10", Mode: BySignature})
	require.Len(t, next.Schedule, 2)
	for _, r := range next.Schedule {
		assert.GreaterOrEqual(t, r.Date, "2025-03-10")
	}
	assert.Equal(t, 1, sum.Skipped)
}

func TestApply_AuditsUncertaintyAndInvalid(t *testing.T) {
	bad := meeting("2025-02-30", "לא קיים", "")
	exam := model.Record{ID: "ev-x", Kind: model.KindExam, Date: "2025-03-20", Title: "מבחן"}

	uncertain := meeting("2025-03-12", "טקס", "")
	cands := []Candidate{
		{Record: bad},
		{Record: exam},
		{Record: uncertain, Uncertain: []string{"schedule-uncertain-type", "schedule-uncertain"}, AuditText: "טקס 12/3", Sheet: "מרץ"},
	}
	pre := []model.AuditEntry{{Source: "word-docx", Reason: "table-row-unparsed", Text: "??"}}
	next, sum := Apply(model.NewDataset(), cands, Options{Source: "sheet-xlsx", Mode: BySignature, SampleLimit: 3, Audit: pre})

	assert.Len(t, next.Schedule, 1)
	assert.Empty(t, next.Exams)
	assert.Equal(t, 5, sum.UncertainCount)
	require.Len(t, sum.Uncertain, 3)
	assert.Equal(t, "table-row-unparsed", sum.Uncertain[0].Reason)
	assert.Equal(t, "invalid-date", sum.Uncertain[1].Reason)
	assert.Equal(t, "invalid-record", sum.Uncertain[2].Reason)
	assert.Equal(t, 2, sum.Skipped)
}

func TestApply_SummaryAlwaysHasAuditArray(t *testing.T) {
	_, sum := Apply(model.NewDataset(), nil, Options{Source: "sheet-csv"})
	assert.NotNil(t, sum.Uncertain)
	assert.Equal(t, "id", sum.Mode)
}
