package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: LevelInfo, Format: "json"})

	l.Named("risk").With(UserID("user-1")).Info("assessed",
		SubjectType("protocol"), SubjectKey("aave"), RiskLevel("low"), Err(errors.New("boom")))
	l.Debug("hidden")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "risk", entry["logger"])
	assert.Equal(t, "assessed", entry["message"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.Equal(t, "aave", entry["subject_key"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "navigator.log")
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: LevelDebug, File: path, FileMaxSizeMB: 1})

	l.Warn("rotating", RequestID("req-1"))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"request_id":"req-1"`)
	assert.Contains(t, buf.String(), "rotating")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" ERROR "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestContextPropagation(t *testing.T) {
	l := Nop()
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
