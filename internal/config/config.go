package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Storage   StorageConfig   `yaml:"storage"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Console   ConsoleConfig   `yaml:"console"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// WorldConfig откуда брать шаблоны и сцены, и соглашения об игроке
type WorldConfig struct {
	FormsDir     string `yaml:"forms_dir"`
	ScenesDir    string `yaml:"scenes_dir"`
	StartScene   string `yaml:"start_scene"`
	PlayerFormID string `yaml:"player_form"`
	PlayerName   string `yaml:"player_name"`
	PlayerTag    string `yaml:"player_tag"`
	DefaultSpawn string `yaml:"default_spawn"`
	AutosaveSlot string `yaml:"autosave_slot"`
}

// StorageConfig выбор и настройки хранилища сохранений.
// Driver: memory | file | badger | redis | maria | mongo.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"` // каталог для file и badger

	Redis struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"key_prefix"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"redis"`

	MariaDSN string `yaml:"maria_dsn"`

	Mongo struct {
		URI        string `yaml:"uri"`
		Database   string `yaml:"database"`
		Collection string `yaml:"collection"`
	} `yaml:"mongo"`
}

// EventBusConfig шина событий: пустой URL - шина в памяти
type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

// ConsoleConfig REST-консоль разработчика
type ConsoleConfig struct {
	Enabled     bool `yaml:"enabled"`
	Port        int  `yaml:"port"`
	MetricsPort int  `yaml:"metrics_port"`
}

// TelemetryConfig экспорт трассировок OTLP/HTTP
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// LoggingConfig уровни логирования
type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
}

// Default конфигурация по умолчанию: всё в памяти, консоль включена
func Default() *Config {
	return &Config{
		World: WorldConfig{
			FormsDir:     "assets/forms",
			ScenesDir:    "assets/scenes",
			StartScene:   "Town",
			PlayerFormID: "spec_player",
			PlayerName:   "Player",
			PlayerTag:    "Player",
			DefaultSpawn: "DefaultPlayerSpawn",
			AutosaveSlot: "auto",
		},
		Storage: StorageConfig{
			Driver: "memory",
			Path:   "saves",
		},
		EventBus: EventBusConfig{
			Stream:    "WORLDSTATE",
			Retention: 24,
			Buffer:    256,
		},
		Console: ConsoleConfig{Enabled: true},
		Telemetry: TelemetryConfig{
			ServiceName: "commoncore-worldstate",
		},
		Logging: LoggingConfig{
			Dir:          "logs",
			ConsoleLevel: "INFO",
			FileLevel:    "DEBUG",
		},
	}
}

// GetPort возвращает порт консоли с поддержкой fallback значений
func (c *ConsoleConfig) GetPort() int {
	return getPortWithEnvFallback(c.Port, "COMMONCORE_CONSOLE_PORT", 8088)
}

// GetMetricsPort возвращает порт Prometheus метрик с поддержкой fallback значений
func (c *ConsoleConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(c.MetricsPort, "COMMONCORE_METRICS_PORT", 2112)
}

// GetURL адрес NATS: config -> env NATS_URL -> пусто (шина в памяти)
func (e *EventBusConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	return os.Getenv("NATS_URL")
}

// GetEndpoint адрес OTLP коллектора: config -> env OTEL_EXPORTER_OTLP_ENDPOINT -> localhost:4318
func (t *TelemetryConfig) GetEndpoint() string {
	if t.Endpoint != "" {
		return t.Endpoint
	}
	if env := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); env != "" {
		return env
	}
	return "localhost:4318"
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Load читает YAML файл конфигурации поверх Default().
// Если path == "", пытается прочитать из ENV COMMONCORE_CONFIG; без него возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("COMMONCORE_CONFIG")
		if path == "" {
			return cfg, nil // конфиг не задан, используем дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать конфигурацию %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("некорректная конфигурация %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, которые нельзя молча заменить дефолтом
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "file", "badger", "redis", "maria", "mongo":
	default:
		return fmt.Errorf("неизвестный драйвер хранилища %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "maria" && c.Storage.MariaDSN == "" {
		return fmt.Errorf("для драйвера maria нужен storage.maria_dsn")
	}
	return nil
}
