package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"trace":   TRACE,
		"DEBUG":   DEBUG,
		"":        INFO,
		"warning": WARN,
		" error ": ERROR,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestConsoleLogger_Threshold(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger("world", &buf, WARN)

	l.Info("не должно попасть")
	l.Warn("объект %s пропущен", "Guard_03")

	out := buf.String()
	assert.NotContains(t, out, "не должно попасть")
	assert.Contains(t, out, "[WARN] [world] объект Guard_03 пропущен")
}

func TestNewLogger_WritesFile(t *testing.T) {
	old := LogDir
	LogDir = filepath.Join(t.TempDir(), "logs")
	defer func() { LogDir = old }()

	l, err := NewLogger("storage")
	require.NoError(t, err)
	l.SetLevels(ERROR, DEBUG)
	l.Debug("сохранено %d слотов", 2)
	require.NoError(t, l.Close())

	entries, err := os.ReadDir(LogDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(LogDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG] [storage] сохранено 2 слотов")

	// повторное закрытие безопасно
	assert.NoError(t, l.Close())
}

func TestLoggerManager_SetLogLevelUnknown(t *testing.T) {
	lm := &LoggerManager{loggers: make(map[string]*Logger)}
	err := lm.SetLogLevel("nope", INFO, INFO)
	assert.Error(t, err)
}
