package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanivmizrachiy/luztedi/internal/config"
	"github.com/yanivmizrachiy/luztedi/internal/model"
	"github.com/yanivmizrachiy/luztedi/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataPath = filepath.Join(dir, "schedule.json")
	cfg.OverridePath = filepath.Join(dir, "override.json")
	cfg.Timezone = "UTC"

	base := model.NewDataset()
	base.Schedule = []model.Record{{
		ID: "s1", Kind: model.KindSchedule, Type: model.TypeMeeting,
		Date: "2025-03-03", Title: "ישיבת צוות", StartTime: "12:00",
	}}
	base.Holidays = []model.Record{{
		ID: "h1", Kind: model.KindHoliday, Date: "2025-04-13", Title: "פסח", Reason: "חג",
	}}
	require.NoError(t, store.Save(cfg.DataPath, base))

	srv := httptest.NewServer(NewServer(cfg).Handler())
	t.Cleanup(srv.Close)
	return srv, cfg
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func getData(t *testing.T, base string) dataResponse {
	t.Helper()
	resp, body := do(t, http.MethodGet, base+"/api/data", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out dataResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := do(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestItems_EditsLandInOverride(t *testing.T) {
	srv, cfg := newTestServer(t)

	got := getData(t, srv.URL)
	assert.False(t, got.LocalOverrideApplied)
	assert.Len(t, got.Data.Schedule, 1)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/items",
		`{"kind":"exam","date":"2025-03-20","title":"מבחן במתמטיקה","subject":"מתמטיקה"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created model.Record
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotEmpty(t, created.ID)

	got = getData(t, srv.URL)
	assert.True(t, got.LocalOverrideApplied)
	require.Len(t, got.Data.Exams, 1)

	committed, err := store.Load(cfg.DataPath)
	require.NoError(t, err)
	assert.Empty(t, committed.Exams)

	resp, _ = do(t, http.MethodPut, srv.URL+"/api/items/s1",
		`{"kind":"schedule","type":"trip","date":"2025-03-04","title":"סיור"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = getData(t, srv.URL)
	require.Len(t, got.Data.Schedule, 1)
	assert.Equal(t, model.TypeTrip, got.Data.Schedule[0].Type)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/items/h1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/items/h1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/override", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	got = getData(t, srv.URL)
	assert.False(t, got.LocalOverrideApplied)
	assert.Len(t, got.Data.Holidays, 1)
}

func TestItems_Rejections(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/items",
		`{"kind":"schedule","type":"meeting","date":"2025-03-03","title":"x","startTime":"10:00","endTime":"09:00"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "endTime")

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/items", `{"kind":"party","date":"2025-03-03","title":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/items",
		`{"id":"s1","kind":"schedule","type":"meeting","date":"2025-03-03","title":"x"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, http.MethodPut, srv.URL+"/api/items/nope",
		`{"kind":"schedule","type":"meeting","date":"2025-03-03","title":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.False(t, getData(t, srv.URL).LocalOverrideApplied)
}

func TestPutData_ReplaceMergeAndReject(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodPut, srv.URL+"/api/data",
		`{"version":1,"schedule":[],"exams":[{"id":"e1","kind":"schedule","date":"2025-03-03","title":"x"}],"holidays":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), `"error"`)
	assert.False(t, getData(t, srv.URL).LocalOverrideApplied)

	doc := `{"version":1,"schedule":[],"exams":[{"id":"e1","kind":"exam","date":"2025-03-20","title":"בוחן","subject":"אנגלית"}],"holidays":[]}`

	resp, _ = do(t, http.MethodPut, srv.URL+"/api/data?mode=merge", doc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := getData(t, srv.URL)
	assert.True(t, got.LocalOverrideApplied)
	assert.Len(t, got.Data.Schedule, 1)
	assert.Len(t, got.Data.Exams, 1)

	resp, _ = do(t, http.MethodPut, srv.URL+"/api/data?mode=replace", doc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = getData(t, srv.URL)
	assert.Empty(t, got.Data.Schedule)
	assert.Len(t, got.Data.Exams, 1)

	resp, _ = do(t, http.MethodPut, srv.URL+"/api/data?mode=append", doc)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMonthsAndCalendar(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/months", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var months []model.MonthCount
	require.NoError(t, json.Unmarshal(body, &months))
	require.Len(t, months, 2)
	assert.Equal(t, "2025-03", months[0].Month)
	assert.Equal(t, 1, months[0].Schedule)
	assert.Equal(t, 1, months[1].Holidays)

	resp, body = do(t, http.MethodGet, srv.URL+"/calendar.ics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/calendar"))
	assert.Contains(t, string(body), "UID:s1@luztedi")
	assert.Contains(t, string(body), "UID:h1@luztedi")
}
