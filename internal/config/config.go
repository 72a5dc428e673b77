// Package config loads typed configuration the way the teacher's
// internal/config/config.go does (viper, SetDefault per field, env
// override) — the cron-oriented SchedulerConfig is replaced by the
// reconciler/rate-limiter knobs this engine actually needs.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	API        APIConfig        `mapstructure:"api"`
	Site       SiteConfig       `mapstructure:"site"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	LogLevel   string           `mapstructure:"log_level"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// APIConfig holds read-API server settings.
type APIConfig struct {
	Port       int             `mapstructure:"port"`
	Debug      bool            `mapstructure:"debug"`
	CORS       bool            `mapstructure:"cors"`
	CORSOrigin string          `mapstructure:"cors_origin"`
	Limits     APILimitsConfig `mapstructure:"limits"`
}

// APILimitsConfig holds query limits for the list-style endpoints.
type APILimitsConfig struct {
	ListMaxLimit     int `mapstructure:"list_max_limit"`
	CategoryMaxLimit int `mapstructure:"category_max_limit"`
}

// SiteConfig holds the gallery-site connection settings.
type SiteConfig struct {
	Host      string `mapstructure:"host"`
	Cookies   string `mapstructure:"cookies"`
	Proxy     string `mapstructure:"proxy"`
	ThumbDir  string `mapstructure:"thumb_dir"`
	InlineSet string `mapstructure:"inline_set"`
}

// RateLimitConfig holds the two process-wide rate limiter intervals.
type RateLimitConfig struct {
	MainInterval  time.Duration `mapstructure:"main_interval"`
	ThumbInterval time.Duration `mapstructure:"thumb_interval"`
}

// ReconcilerConfig holds the scheduler/reconciler cadence knobs.
type ReconcilerConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	WarmupDelay    time.Duration `mapstructure:"warmup_delay"`
	ThumbIdleSleep time.Duration `mapstructure:"thumb_idle_sleep"`
}

// MetricsConfig holds the engine's Prometheus exposition port. The read
// API process owns no runner/thumb instruments, so /metrics is served
// by the engine alone (spec.md §6 Observability, component J).
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

var globalConfig *Config

// Load loads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("api.port", 8880)
	v.SetDefault("api.debug", false)
	v.SetDefault("api.cors", true)
	v.SetDefault("api.cors_origin", "*")
	v.SetDefault("api.limits.list_max_limit", 25)
	v.SetDefault("api.limits.category_max_limit", 25)
	v.SetDefault("site.host", "e-hentai.org")
	v.SetDefault("site.thumb_dir", "./thumbs")
	v.SetDefault("site.inline_set", "dm_e")
	v.SetDefault("rate_limit.main_interval", 2*time.Second)
	v.SetDefault("rate_limit.thumb_interval", 500*time.Millisecond)
	v.SetDefault("reconciler.poll_interval", 3*time.Second)
	v.SetDefault("reconciler.warmup_delay", 30*time.Second)
	v.SetDefault("reconciler.thumb_idle_sleep", 5*time.Second)
	v.SetDefault("metrics.port", 9091)
	v.SetDefault("log_level", "info")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get returns the last loaded configuration.
func Get() *Config {
	return globalConfig
}
