package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "warn", Writer: &buf})
	require.NoError(t, err)
	l.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	l.Info("hidden")
	l.Warn("room %s", "chat@conf.example")

	assert.Equal(t, "2024-01-02 03:04:05 [WARN] room chat@conf.example\n", buf.String())

	l.SetLevel(LevelDebug)
	l.Debug("now visible")
	assert.Contains(t, buf.String(), "[DEBUG] now visible")
}

func TestPrintfTrimsNewline(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Writer: &buf})
	require.NoError(t, err)

	l.Printf("OK   %s\n", "00001_init.sql")
	l.Fatalf("boom")

	assert.Contains(t, buf.String(), "[INFO] OK   00001_init.sql\n")
	assert.Contains(t, buf.String(), "[ERROR] boom\n")
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "parley.log")
	l, err := New(Config{Level: "debug", File: path})
	require.NoError(t, err)

	l.Error("disk")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[ERROR] disk")
}

func TestPackageLevelDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	require.NoError(t, Init(Config{Level: "debug", Writer: &buf}))
	Debug("a")
	Info("b")
	Warn("c")
	Error("d")

	out := buf.String()
	for _, want := range []string{"[DEBUG] a", "[INFO] b", "[WARN] c", "[ERROR] d"} {
		assert.Contains(t, out, want)
	}

	SetDefault(nil)
	Error("dropped")
	assert.NotContains(t, buf.String(), "dropped")
}
