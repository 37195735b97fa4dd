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

func resetLogger(t *testing.T) *bytes.Buffer {
	t.Helper()

	buf := new(bytes.Buffer)
	SetWriter(buf)
	SetLevel("INFO")
	SetFormat("text")
	t.Cleanup(func() {
		SetWriter(os.Stdout)
		SetLevel("INFO")
		SetFormat("text")
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	buf := resetLogger(t)

	SetLevel("WARN")
	Debug("debug %d", 1)
	Info("info %d", 2)
	Warn("warn %d", 3)
	Error("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "[WARN] warn 3")
	assert.Contains(t, out, "[ERROR] error 4")
}

func TestSetLevelIgnoresUnknown(t *testing.T) {
	buf := resetLogger(t)

	SetLevel("debug")
	SetLevel("verbose")
	Debug("still debug")

	assert.Contains(t, buf.String(), "[DEBUG] still debug")
}

func TestJSONFormat(t *testing.T) {
	buf := resetLogger(t)

	SetFormat("json")
	Info("hello %s", "world")

	var line jsonLine
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line))
	assert.Equal(t, "INFO", line.Level)
	assert.Equal(t, "hello world", line.Msg)
	assert.NotEmpty(t, line.Time)
}

func TestSetOutputFile(t *testing.T) {
	resetLogger(t)

	path := filepath.Join(t.TempDir(), "hsha.log")
	require.NoError(t, SetOutput(path))
	t.Cleanup(func() { _ = SetOutput("stdout") })

	Error("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}
