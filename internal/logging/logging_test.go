package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaminmoo/wifictl/internal/config"
)

func TestNewNamesLoggerAfterTag(t *testing.T) {
	var out bytes.Buffer
	log, err := New(config.LoggingConfig{Level: "info", Format: "json", Tag: "cmd_wifi"}, &out, false)
	require.NoError(t, err)

	log.Info("sta scan done")
	log.Debug("hidden")
	require.NoError(t, log.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, "cmd_wifi", entry["logger"])
	assert.Equal(t, "sta scan done", entry["msg"])
	assert.NotContains(t, out.String(), "hidden")
}

func TestNewVerboseEnablesDebug(t *testing.T) {
	var out bytes.Buffer
	log, err := New(config.LoggingConfig{Level: "warn", Tag: "t"}, &out, true)
	require.NoError(t, err)

	log.Debug("visible")
	assert.Contains(t, out.String(), "visible")
}

func TestNewWritesRollingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wifi.log")
	log, err := New(config.LoggingConfig{
		Level: "info",
		Tag:   "cmd_wifi",
		File:  config.FileConfig{Filename: path, MaxSizeMB: 1},
	}, &bytes.Buffer{}, false)
	require.NoError(t, err)

	log.Info("AP mode, lab")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "AP mode, lab")
}

func TestLineWriter(t *testing.T) {
	var lines []string
	w := NewLineWriter(func(s string) { lines = append(lines, s) })

	_, _ = w.Write([]byte("one\ntw"))
	_, _ = w.Write([]byte("o\nthree"))
	assert.Equal(t, []string{"one", "two"}, lines)

	require.NoError(t, w.Sync())
	assert.Equal(t, []string{"one", "two", "three"}, lines)
}
