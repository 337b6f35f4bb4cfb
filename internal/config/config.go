package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера регионов.

type Config struct {
	Regions   RegionsConfig   `yaml:"regions"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type RegionsConfig struct {
	CatalogPath           string        `yaml:"catalog_path"`
	IdleThreshold         time.Duration `yaml:"idle_threshold"`
	CleanupInterval       time.Duration `yaml:"cleanup_interval"`
	TickInterval          time.Duration `yaml:"tick_interval"`
	MaxGenerationAttempts int           `yaml:"max_generation_attempts"`
	MaxPositionTests      int           `yaml:"max_position_tests"`
	NaviCellSize          float64       `yaml:"navi_cell_size"`
}

type StorageConfig struct {
	// ArchivePath каталог badger; пусто - архивы не сохраняются
	ArchivePath string `yaml:"archive_path"`
	Compression bool   `yaml:"compression"`
}

type CacheConfig struct {
	// RedisAddr пусто - кэш отключен
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
}

type EventBusConfig struct {
	// URL пусто - шина в памяти
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type ServerConfig struct {
	AdminPort   int    `yaml:"admin_port"`
	MetricsPort int    `yaml:"metrics_port"`
	JWTSecret   string `yaml:"jwt_secret"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type LoggingConfig struct {
	// Dir каталог файлов логов; пусто - только консоль
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
	// Components уровни отдельных компонентов, например region: debug
	Components map[string]string `yaml:"components"`
}

// Default конфигурация без файла
func Default() *Config {
	return &Config{
		Regions: RegionsConfig{
			CatalogPath:           "catalog.yaml",
			IdleThreshold:         5 * time.Minute,
			CleanupInterval:       30 * time.Second,
			TickInterval:          50 * time.Millisecond,
			MaxGenerationAttempts: 10,
			MaxPositionTests:      400,
			NaviCellSize:          64,
		},
		Storage: StorageConfig{Compression: true},
		Cache:   CacheConfig{TTL: 10 * time.Minute},
		EventBus: EventBusConfig{
			Stream:    "REGIONS",
			Retention: 24,
		},
		Telemetry: TelemetryConfig{ServiceName: "mmo-region"},
		Logging: LoggingConfig{
			Dir:          "logs",
			ConsoleLevel: "info",
			FileLevel:    "debug",
		},
	}
}

// GetAdminPort возвращает порт админского API с поддержкой fallback значений
func (s *ServerConfig) GetAdminPort() int {
	return getPortWithEnvFallback(s.AdminPort, "REGION_ADMIN_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "REGION_METRICS_PORT", 2112)
}

// GetJWTSecret секрет админского API: config -> env; пусто отключает проверку токена
func (s *ServerConfig) GetJWTSecret() string {
	return getStringWithEnvFallback(s.JWTSecret, "REGION_JWT_SECRET", "")
}

// GetURL адрес NATS: config -> env
func (e *EventBusConfig) GetURL() string {
	return getStringWithEnvFallback(e.URL, "REGION_NATS_URL", "")
}

// GetRedisAddr адрес Redis: config -> env
func (c *CacheConfig) GetRedisAddr() string {
	return getStringWithEnvFallback(c.RedisAddr, "REGION_REDIS_ADDR", "")
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

func getStringWithEnvFallback(configVal, envVar, defaultVal string) string {
	if configVal != "" {
		return configVal
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return defaultVal
}

// Load читает YAML файл конфигурации поверх значений Default().
// Если path == "", пытается прочитать путь из ENV REGION_CONFIG; без него возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("REGION_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
