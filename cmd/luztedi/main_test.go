package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanivmizrachiy/luztedi/internal/model"
	"github.com/yanivmizrachiy/luztedi/internal/store"
)

type env struct {
	dir    string
	config string
	data   string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("LUZTEDI_SUMMARY_DIR", dir)
	t.Setenv("LUZTEDI_OVERRIDE_PATH", filepath.Join(dir, "override.json"))
	t.Setenv("LUZTEDI_CACHE_DIR", filepath.Join(dir, "cache"))
	return env{
		dir:    dir,
		config: filepath.Join(dir, "luztedi.yaml"),
		data:   filepath.Join(dir, "schedule.json"),
	}
}

func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", e.config, "--data", e.data, "--today", "2025-03-01"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImportCSV_ThenValidateAndDedupe(t *testing.T) {
	e := newEnv(t)
	csvPath := filepath.Join(e.dir, "sheet.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"date,kind,title,type,startTime,endTime\n"+
			"2025-03-12,schedule,טיול שנתי,trip,08:00,16:00\n"+
			"2025-03-12,schedule,טיול  שנתי,trip,,\n"), 0o644))

	out, err := e.run(t, "import", "csv", "--csv", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Added:   schedule=2")
	assert.FileExists(t, filepath.Join(e.dir, "sheet-csv.json"))

	out, err = e.run(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "OK: schedule=2")

	out, err = e.run(t, "dedupe")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed: schedule=1")

	ds, err := store.Load(e.data)
	require.NoError(t, err)
	require.Len(t, ds.Schedule, 1)
	assert.Equal(t, "08:00", ds.Schedule[0].StartTime)
}

func TestImport_FailsBeforeWriting(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "import", "csv", "--csv", filepath.Join(e.dir, "missing.csv"))
	assert.Error(t, err)

	doc := filepath.Join(e.dir, "plan.html")
	require.NoError(t, os.WriteFile(doc, []byte("<p>12/3 ישיבה</p>"), 0o644))
	_, err = e.run(t, "import", "docx", "--docx", doc, "--year", "25")
	assert.ErrorContains(t, err, "four digits")

	_, err = e.run(t, "import", "ics")
	assert.Error(t, err)

	assert.NoFileExists(t, e.data)
}

func TestImportDocx_YearFlag(t *testing.T) {
	e := newEnv(t)
	doc := filepath.Join(e.dir, "plan.html")
	require.NoError(t, os.WriteFile(doc, []byte("<p>12/3 ישיבת צוות</p>"), 0o644))

	_, err := e.run(t, "import", "docx", "--docx", doc, "--year", "2026")
	require.NoError(t, err)

	ds, err := store.Load(e.data)
	require.NoError(t, err)
	require.Len(t, ds.Schedule, 1)
	assert.Equal(t, "2026-03-12", ds.Schedule[0].Date)
	assert.Equal(t, model.TypeMeeting, ds.Schedule[0].Type)
}

func TestExportICSAndConfigInit(t *testing.T) {
	e := newEnv(t)
	ds := model.NewDataset()
	ds.Holidays = []model.Record{{ID: "h1", Kind: model.KindHoliday, Date: "2025-04-13", Title: "פסח", Reason: "חג"}}
	require.NoError(t, store.Save(e.data, ds))

	out, err := e.run(t, "export", "ics")
	require.NoError(t, err)
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "UID:h1@luztedi")

	_, err = e.run(t, "config", "init")
	require.NoError(t, err)
	assert.FileExists(t, e.config)
	_, err = e.run(t, "config", "init")
	assert.Error(t, err)
}
