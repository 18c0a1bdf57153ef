package log

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	return &buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if l == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(l), &m), l)
		out = append(out, m)
	}
	return out
}

func TestInfo_WritesPairs(t *testing.T) {
	buf := capture(t)

	Debug("hidden")
	Info("import complete", "source", "sheet-csv", "added", 3, "dangling")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "import complete", got[0]["message"])
	assert.Equal(t, "luztedi", got[0]["service"])
	assert.Equal(t, "sheet-csv", got[0]["source"])
	assert.EqualValues(t, 3, got[0]["added"])
	assert.NotContains(t, got[0], "dangling")
}

func TestError_StackOnlyForWrappedErrors(t *testing.T) {
	buf := capture(t)

	Error("save failed", pkgerrors.New("disk full"))
	Error("plain", assert.AnError)

	got := lines(t, buf)
	require.Len(t, got, 2)
	assert.Equal(t, "disk full", got[0]["error"])
	assert.Contains(t, got[0], "stack")
	assert.NotContains(t, got[1], "stack")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel(" debug "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestSetLevel_Debug(t *testing.T) {
	buf := capture(t)
	SetLevel(LevelDebug)
	Debug("shown")
	assert.Len(t, lines(t, buf), 1)
}
