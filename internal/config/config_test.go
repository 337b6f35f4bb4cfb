package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutPath(t *testing.T) {
	t.Setenv("REGION_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg, "без файла используются значения по умолчанию")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.yaml")
	data := []byte(`
regions:
  catalog_path: data/catalog.yaml
  idle_threshold: 90s
  max_generation_attempts: 3
server:
  admin_port: 9000
logging:
  components:
    region: debug
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv("REGION_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "data/catalog.yaml", cfg.Regions.CatalogPath)
	assert.Equal(t, 90*time.Second, cfg.Regions.IdleThreshold)
	assert.Equal(t, 3, cfg.Regions.MaxGenerationAttempts)
	assert.Equal(t, 30*time.Second, cfg.Regions.CleanupInterval, "незаданные поля берутся из Default")
	assert.Equal(t, 9000, cfg.Server.GetAdminPort())
	assert.Equal(t, map[string]string{"region": "debug"}, cfg.Logging.Components)
	assert.Equal(t, "info", cfg.Logging.ConsoleLevel, "вложенные поля без значения берутся из Default")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("regions: ["), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestEnvFallbacks(t *testing.T) {
	var s ServerConfig
	t.Setenv("REGION_METRICS_PORT", "")
	assert.Equal(t, 2112, s.GetMetricsPort(), "порт по умолчанию")

	t.Setenv("REGION_METRICS_PORT", "3000")
	assert.Equal(t, 3000, s.GetMetricsPort(), "порт из окружения")

	t.Setenv("REGION_METRICS_PORT", "abc")
	assert.Equal(t, 2112, s.GetMetricsPort(), "некорректное значение игнорируется")

	s.MetricsPort = 4000
	assert.Equal(t, 4000, s.GetMetricsPort(), "конфиг важнее окружения")

	t.Setenv("REGION_NATS_URL", "nats://bus:4222")
	var e EventBusConfig
	assert.Equal(t, "nats://bus:4222", e.GetURL())
	e.URL = "nats://local:4222"
	assert.Equal(t, "nats://local:4222", e.GetURL())
}
