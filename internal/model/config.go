package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	Address        string        `mapstructure:"address" yaml:"address"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// PipelineConfig controls the notification-to-task cycle.
type PipelineConfig struct {
	// Schedule is a cron spec (e.g., "@every 1m").
	Schedule        string        `mapstructure:"schedule" yaml:"schedule"`
	BatchSize       int           `mapstructure:"batch_size" yaml:"batch_size"`
	DecisionTimeout time.Duration `mapstructure:"decision_timeout" yaml:"decision_timeout"`

	// DedupWindow is how long a created title blocks an identical CREATE
	// from the same source app.
	DedupWindow time.Duration `mapstructure:"dedup_window" yaml:"dedup_window"`
}

// LocationConfig controls query generation and place resolution.
type LocationConfig struct {
	Schedule      string        `mapstructure:"schedule" yaml:"schedule"`
	SearchRadiusM int           `mapstructure:"search_radius_m" yaml:"search_radius_m"`
	MaxResults    int           `mapstructure:"max_results" yaml:"max_results"`
	SearchTimeout time.Duration `mapstructure:"search_timeout" yaml:"search_timeout"`
}

// ProximityConfig controls when a nearby place raises an alert.
type ProximityConfig struct {
	AlertRadiusM int           `mapstructure:"alert_radius_m" yaml:"alert_radius_m"`
	Cooldown     time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
}

// AlertsConfig controls the in-memory outbox.
type AlertsConfig struct {
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// LedgerConfig controls the cooldown-ledger janitor.
type LedgerConfig struct {
	Schedule  string        `mapstructure:"schedule" yaml:"schedule"`
	Retention time.Duration `mapstructure:"retention" yaml:"retention"`

	// NotificationRetention is how long processed notifications are kept
	// before the janitor removes them.
	NotificationRetention time.Duration `mapstructure:"notification_retention" yaml:"notification_retention"`
}

// AIConfig holds settings for the decision collaborator.
type AIConfig struct {
	// Provider is "anthropic" or "openai".
	Provider  string `mapstructure:"provider" yaml:"provider"`
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
}

// PlacesConfig holds the places-search API settings.
type PlacesConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
}

// EmailConfig configures the optional IMAP ingestion cycle.
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
	Mailbox  string `mapstructure:"mailbox" yaml:"mailbox"`
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	DBPath    string          `mapstructure:"db_path" yaml:"db_path"`
	LogLevel  string          `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string          `mapstructure:"log_format" yaml:"log_format"`
	HTTP      HTTPConfig      `mapstructure:"http" yaml:"http"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline"`
	Location  LocationConfig  `mapstructure:"location" yaml:"location"`
	Proximity ProximityConfig `mapstructure:"proximity" yaml:"proximity"`
	Alerts    AlertsConfig    `mapstructure:"alerts" yaml:"alerts"`
	Ledger    LedgerConfig    `mapstructure:"ledger" yaml:"ledger"`
	AI        AIConfig        `mapstructure:"ai" yaml:"ai"`
	Places    PlacesConfig    `mapstructure:"places" yaml:"places"`
	Email     EmailConfig     `mapstructure:"email" yaml:"email"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/taskradar/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "taskradar", "config.yaml")
}

// defaultDBPath places the database next to the default config file.
func defaultDBPath() string {
	return filepath.Join(filepath.Dir(DefaultConfigPath()), "taskradar.db")
}

var defaults = map[string]any{
	"db_path":                       defaultDBPath(),
	"log_level":                     "info",
	"log_format":                    "text",
	"http.address":                  ":8080",
	"http.request_timeout":          15 * time.Second,
	"pipeline.schedule":             "@every 1m",
	"pipeline.batch_size":           10,
	"pipeline.decision_timeout":     30 * time.Second,
	"pipeline.dedup_window":         10 * time.Minute,
	"location.schedule":             "@every 30s",
	"location.search_radius_m":      2000,
	"location.max_results":          10,
	"location.search_timeout":       10 * time.Second,
	"proximity.alert_radius_m":      100,
	"proximity.cooldown":            time.Hour,
	"alerts.ttl":                    10 * time.Minute,
	"ledger.schedule":               "@hourly",
	"ledger.retention":              24 * time.Hour,
	"ledger.notification_retention": 7 * 24 * time.Hour,
	"ai.provider":                   "anthropic",
	"ai.model":                      "claude-sonnet-4-5-20250929",
	"ai.max_tokens":                 1024,
	"ai.base_url":                   "",
	"ai.api_key":                    "",
	"places.base_url":               "https://maps.googleapis.com",
	"places.api_key":                "",
	"email.enabled":                 false,
	"email.host":                    "",
	"email.username":                "",
	"email.password":                "",
	"email.port":                    "993",
	"email.tls":                     true,
	"email.mailbox":                 "INBOX",
	"email.schedule":                "@every 2m",
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with TASKRADAR_ override file values
// (e.g., TASKRADAR_HTTP_ADDRESS). A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TASKRADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Pipeline.BatchSize <= 0 {
		cfg.Pipeline.BatchSize = 10
	}
	if cfg.Location.MaxResults <= 0 {
		cfg.Location.MaxResults = 10
	}

	return cfg, nil
}
