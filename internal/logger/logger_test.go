package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Terminal: &buf, MinLevel: "WARN"})
	require.NoError(t, err)

	l.Info("GROUP", "not shown")
	l.Warn("GROUP", "shown")

	out := buf.String()
	assert.NotContains(t, out, "not shown")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "[GROUP")
}

func TestLoggerWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l, err := New(Options{Dir: dir, Service: "test", Terminal: &buf})
	require.NoError(t, err)

	l.LogPayment("MARK_PENDING", "group-1", "member self-reported")
	l.Close()

	files, err := filepath.Glob(filepath.Join(dir, "test-*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry.Category == "PAYMENT" {
			found = true
			assert.Equal(t, "INFO", entry.Level)
			assert.Contains(t, entry.Message, "[MARK_PENDING] group-1")
		}
	}
	assert.True(t, found)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel(""))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel(" error "))
}
