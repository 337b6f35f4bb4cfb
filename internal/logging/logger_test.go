package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newConsoleLogger("region", &buf, WARN)

	l.Info("скрыто")
	l.Warn("⚠️ видно %d", 42)

	out := buf.String()
	assert.NotContains(t, out, "скрыто")
	assert.Contains(t, out, "[WARN] [region] ⚠️ видно 42")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" warning "))
	assert.Equal(t, INFO, ParseLevel("что-то"))
}

func TestNewLoggerWritesFileWhenDirSet(t *testing.T) {
	dir := t.TempDir()
	Configure(Options{Dir: dir, ConsoleLevel: ERROR, FileLevel: DEBUG})
	defer Configure(Options{ConsoleLevel: INFO, FileLevel: DEBUG})

	l, err := NewLogger("storage")
	require.NoError(t, err)
	l.Debug("запись в файл")
	require.NoError(t, l.Close())

	files, err := filepath.Glob(filepath.Join(dir, "storage_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "запись в файл")
}

func TestLoggerManagerReturnsSameLogger(t *testing.T) {
	lm := GetLoggerManager()
	a := lm.MustGetLogger("test-component")
	b := lm.MustGetLogger("test-component")
	assert.Same(t, a, b)
	assert.Same(t, a, GetComponentLogger("test-component"), "удобная функция берет логгер из того же менеджера")
}

func TestLoggerManagerComponentLevel(t *testing.T) {
	lm := GetLoggerManager()
	existing := lm.MustGetLogger("level-existing")

	lm.SetComponentLevel("level-existing", ERROR)
	var buf bytes.Buffer
	existing.mu.Lock()
	existing.consoleLogger.SetOutput(&buf)
	existing.mu.Unlock()
	existing.Warn("скрыто")
	existing.Error("❌ видно")
	assert.NotContains(t, buf.String(), "скрыто", "уровень применяется к уже созданному логгеру")
	assert.Contains(t, buf.String(), "❌ видно")

	lm.SetComponentLevel("level-later", DEBUG)
	later := lm.MustGetLogger("level-later")
	later.mu.Lock()
	defer later.mu.Unlock()
	assert.Equal(t, DEBUG, later.minConsoleLevel, "уровень применяется к логгеру, созданному позже")
}
