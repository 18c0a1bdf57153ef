package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanivmizrachiy/luztedi/internal/model"
)

const feed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:weekly-1\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART:20250303T120000Z\r\n" +
	"DTEND:20250303T130000Z\r\n" +
	"RRULE:FREQ=WEEKLY;COUNT=4\r\n" +
	"EXDATE:20250310T120000Z\r\n" +
	"SUMMARY:ישיבת צוות\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:weekly-1\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"RECURRENCE-ID:20250317T120000Z\r\n" +
	"DTSTART:20250317T140000Z\r\n" +
	"DTEND:20250317T150000Z\r\n" +
	"SUMMARY:ישיבת צוות (נדחתה)\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:allday-1\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20250413\r\n" +
	"DTEND;VALUE=DATE:20250415\r\n" +
	"SUMMARY:חופשת פסח\r\n" +
	"CATEGORIES:holiday\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART:20250101T000000Z\r\n" +
	"SUMMARY:no uid\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParse_SkipsBrokenEvents(t *testing.T) {
	events, err := Parse(Source{ID: "school"}, []byte(feed))
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "weekly-1", events[0].UID)
	assert.Equal(t, "FREQ=WEEKLY;COUNT=4", events[0].RRule)
	require.Len(t, events[0].ExDates, 1)
	assert.True(t, events[1].IsOverride())
	assert.True(t, events[2].AllDay)
	assert.Equal(t, []string{"holiday"}, events[2].Categories)

	_, err = Parse(Source{}, nil)
	assert.ErrorIs(t, err, ErrEmptyFeed)
}

func TestExpand_RecurrenceExdateAndOverride(t *testing.T) {
	events, err := Parse(Source{ID: "school"}, []byte(feed))
	require.NoError(t, err)

	w := Window{
		From:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC),
		Location: time.UTC,
	}
	exp, err := Expand(events, w)
	require.NoError(t, err)
	require.Len(t, exp.Occurrences, 4)

	got := make([]string, 0, len(exp.Occurrences))
	for _, o := range exp.Occurrences {
		got = append(got, o.Start.Format("2006-01-02T15:04")+" "+o.Summary)
	}
	assert.Equal(t, []string{
		"2025-03-03T12:00 ישיבת צוות",
		"2025-03-17T14:00 ישיבת צוות (נדחתה)",
		"2025-03-24T12:00 ישיבת צוות",
		"2025-04-13T00:00 חופשת פסח",
	}, got)

	assert.Equal(t, []string{"2025-04-13", "2025-04-14"}, exp.Occurrences[3].Days())
	assert.Equal(t, []string{"2025-03-03"}, exp.Occurrences[0].Days())

	_, err = Expand(events, Window{From: w.To, To: w.From})
	assert.Error(t, err)
}

func TestEncode_RoundTripsThroughParse(t *testing.T) {
	ds := model.NewDataset()
	ds.Schedule = []model.Record{{
		ID: "ev-1", Kind: model.KindSchedule, Type: model.TypeTrip, Date: "2025-03-12",
		Title: "טיול שנתי", StartTime: "08:00", EndTime: "16:00", Location: "גליל",
	}}
	ds.Holidays = []model.Record{{
		ID: "ev-2", Kind: model.KindHoliday, Date: "2025-04-13", Title: "פסח", Reason: "חג",
	}}

	out, err := Encode(ds, ExportOptions{Name: "לוח", Location: time.UTC})
	require.NoError(t, err)
	assert.Contains(t, out, "PRODID:"+ProductID)

	again, err := Encode(ds, ExportOptions{Name: "לוח", Location: time.UTC})
	require.NoError(t, err)
	assert.Equal(t, out, again)

	events, err := Parse(Source{ID: "self"}, []byte(out))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "ev-1@luztedi", events[0].UID)
	assert.Equal(t, "טיול שנתי", events[0].Summary)
	assert.False(t, events[0].AllDay)
	assert.Equal(t, 8*time.Hour, events[0].End.Sub(events[0].Start))
	assert.Equal(t, []string{"schedule", "trip"}, events[0].Categories)

	assert.True(t, events[1].AllDay)
	assert.Equal(t, []string{"holiday"}, events[1].Categories)
}

func TestFetcher_ConditionalRequestsAndFallback(t *testing.T) {
	var hits atomic.Int32
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if down.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), time.Second)
	src := Source{ID: "school", URL: srv.URL + "/private/token.ics"}

	res, err := f.Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, feed, string(res.Body))

	res, err = f.Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)

	down.Store(true)
	res, err = f.Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, int32(3), hits.Load())

	_, err = NewFetcher(t.TempDir(), time.Second).Fetch(context.Background(), src)
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/cal/secret.ics?token=x"))
	assert.True(t, strings.HasPrefix(redactURL("not a url"), "ics://"))
}
