package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int `yaml:"port"`
		ShutdownSeconds int `yaml:"shutdown_seconds"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console or json
	} `yaml:"log"`

	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`

	RateLimit struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limit"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
		LockTTLSeconds  int    `yaml:"lock_ttl_seconds"`
	} `yaml:"redis"`

	RabbitMQ struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
	} `yaml:"rabbitmq"`

	Telegram struct {
		BotToken      string  `yaml:"bot_token"`
		Managers      []int64 `yaml:"managers"`
		DigestEnabled bool    `yaml:"digest_enabled"`
		DigestHour    int     `yaml:"digest_hour"` // local hour of the next-day digest
	} `yaml:"telegram"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		Timezone       string `yaml:"timezone"`
		MaxAdvanceDays int    `yaml:"max_advance_days"`
	} `yaml:"booking"`

	Reconcile struct {
		IntervalMinutes int `yaml:"interval_minutes"`
	} `yaml:"reconcile"`

	Audit struct {
		Enabled   bool   `yaml:"enabled"`
		ExportDir string `yaml:"export_dir"`
	} `yaml:"audit"`

	EventsConfigPath string `yaml:"events_config_path"`
}

// Load reads the YAML config at path. Values from a .env file in the working
// directory are visible to ${VAR} placeholders.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	// .env is optional.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/slotbook.db"
	}
	if cfg.EventsConfigPath == "" {
		cfg.EventsConfigPath = filepath.Join(filepath.Dir(path), "events.yaml")
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ServerPort() int {
	if c.Server.Port <= 0 {
		return 8080
	}
	return c.Server.Port
}

func (c *Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Server.ShutdownSeconds) * time.Second
}

// BookingLocation is the timezone in which "today" is computed.
func (c *Config) BookingLocation() (*time.Location, error) {
	if c.Booking.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Booking.Timezone)
}

func (c *Config) BookingMaxAdvanceDays() int {
	if c.Booking.MaxAdvanceDays <= 0 {
		return 180
	}
	return c.Booking.MaxAdvanceDays
}

func (c *Config) CacheTTL() time.Duration {
	if c.Redis.CacheTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

func (c *Config) LockTTL() time.Duration {
	if c.Redis.LockTTLSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Redis.LockTTLSeconds) * time.Second
}

func (c *Config) ReconcileInterval() time.Duration {
	if c.Reconcile.IntervalMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.Reconcile.IntervalMinutes) * time.Minute
}

func (c *Config) RateLimitPerSecond() float64 {
	if c.RateLimit.RequestsPerSecond <= 0 {
		return 2
	}
	return c.RateLimit.RequestsPerSecond
}

func (c *Config) RateLimitBurst() int {
	if c.RateLimit.Burst <= 0 {
		return 10
	}
	return c.RateLimit.Burst
}

// DigestHour is the hour managers get tomorrow's reservations. Defaults to 18:00.
func (c *Config) DigestHour() int {
	if c.Telegram.DigestHour <= 0 || c.Telegram.DigestHour > 23 {
		return 18
	}
	return c.Telegram.DigestHour
}
