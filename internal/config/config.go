package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL     = "https://api.openweathermap.org/data/2.5"
	DefaultIconBaseURL = "https://openweathermap.org/img/wn"
	DefaultUnits       = "metric"
	DefaultTimeout     = 10 * time.Second
	DefaultServerAddr  = ":8080"

	// PlaceholderAPIKey is used when no key is configured. The provider
	// answers it with a 401, which surfaces as the invalid-key message.
	PlaceholderAPIKey = "your-api-key-here"
)

// History backends
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendMySQL    = "mysql"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

var (
	instance *Config
	loadErr  error
	once     sync.Once
)

type WeatherConfig struct {
	BaseURL     string        `yaml:"base_url"`
	IconBaseURL string        `yaml:"icon_base_url"`
	APIKey      string        `yaml:"api_key"`
	Units       string        `yaml:"units"`
	Timeout     time.Duration `yaml:"timeout"`
}

type HistoryConfig struct {
	Backend    string        `yaml:"backend"`
	StorageKey string        `yaml:"storage_key"`
	MaxEntries int           `yaml:"max_entries"`
	UndoWindow time.Duration `yaml:"undo_window"`
	SQLitePath string        `yaml:"sqlite_path"`
}

type EventsConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	// Group is the consumer group cmd/store joins
	Group string `yaml:"group"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the whole application configuration
type Config struct {
	Weather WeatherConfig `yaml:"weather"`
	History HistoryConfig `yaml:"history"`
	Redis   struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Events EventsConfig `yaml:"events"`
	Server ServerConfig `yaml:"server"`
}

// Load reads a .env file if present, then the YAML file at configPath, then
// applies environment overrides and defaults. Only the first call does work.
func Load(configPath string) (*Config, error) {
	once.Do(func() {
		cfg, err := load(configPath)
		if err != nil {
			loadErr = err
			return
		}
		instance = cfg
	})

	return instance, loadErr
}

func load(configPath string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration built from defaults and the environment
// alone, for running without a config file
func Default() *Config {
	c := &Config{}
	c.applyEnv()
	c.applyDefaults()
	return c
}

func Get() *Config {
	if instance == nil {
		panic("config not loaded - call config.Load() first")
	}
	return instance
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENWEATHER_API_KEY"); v != "" {
		c.Weather.APIKey = v
	}
	if v := os.Getenv("WEATHER_BASE_URL"); v != "" {
		c.Weather.BaseURL = v
	}
	if v := os.Getenv("WEATHER_UNITS"); v != "" {
		c.Weather.Units = v
	}
	if v := os.Getenv("HISTORY_BACKEND"); v != "" {
		c.History.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Events.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

func (c *Config) applyDefaults() {
	if c.Weather.BaseURL == "" {
		c.Weather.BaseURL = DefaultBaseURL
	}
	if c.Weather.IconBaseURL == "" {
		c.Weather.IconBaseURL = DefaultIconBaseURL
	}
	if c.Weather.APIKey == "" {
		c.Weather.APIKey = PlaceholderAPIKey
	}
	if c.Weather.Units == "" {
		c.Weather.Units = DefaultUnits
	}
	if c.Weather.Timeout <= 0 {
		c.Weather.Timeout = DefaultTimeout
	}
	if c.History.Backend == "" {
		c.History.Backend = BackendMemory
	}
	if c.History.StorageKey == "" {
		c.History.StorageKey = "weather-app-search-history"
	}
	if c.History.MaxEntries <= 0 {
		c.History.MaxEntries = 10
	}
	if c.History.UndoWindow <= 0 {
		c.History.UndoWindow = 5 * time.Second
	}
	if c.History.SQLitePath == "" {
		c.History.SQLitePath = "cityweather.db"
	}
	if c.Events.Topic == "" {
		c.Events.Topic = "weather_searches"
	}
	if c.Events.Group == "" {
		c.Events.Group = "cityweather_history"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
}

func (c *Config) validate() error {
	switch c.Weather.Units {
	case "metric", "imperial":
	default:
		return fmt.Errorf("weather.units must be metric or imperial, got %q", c.Weather.Units)
	}

	switch c.History.Backend {
	case BackendMemory, BackendRedis, BackendMySQL, BackendPostgres, BackendSQLite:
	default:
		return fmt.Errorf("history.backend %q is not supported", c.History.Backend)
	}

	return nil
}

// HasAPIKey reports whether a real key was configured
func (c *Config) HasAPIKey() bool {
	return c.Weather.APIKey != "" && c.Weather.APIKey != PlaceholderAPIKey
}
