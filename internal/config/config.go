// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/jobsignal/internal/logging"
	"github.com/JakeFAU/jobsignal/internal/scanner"
)

// EnvPrefix namespaces environment overrides, e.g. JOBSIGNAL_SERVER_PORT.
const EnvPrefix = "JOBSIGNAL"

// Storage, archive and event drivers.
const (
	DriverNone     = "none"
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverLocal    = "local"
	DriverGCS      = "gcs"
	DriverPubSub   = "pubsub"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Auth        AuthConfig       `mapstructure:"auth"`
	Provider    ProviderConfig   `mapstructure:"provider"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	Analysis    AnalysisConfig   `mapstructure:"analysis"`
	Dictionary  DictionaryConfig `mapstructure:"dictionary"`
	Storage     StorageConfig    `mapstructure:"storage"`
	Retention   RetentionConfig  `mapstructure:"retention"`
	Archive     ArchiveConfig    `mapstructure:"archive"`
	Events      EventsConfig     `mapstructure:"events"`
	Logging     logging.Config   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int      `mapstructure:"port"`
	RequestTimeoutSeconds  int      `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int      `mapstructure:"shutdown_timeout_seconds"`
	HistoryLimit           int      `mapstructure:"history_limit"`
	CORSOrigins            []string `mapstructure:"cors_origins"`
}

// AuthConfig guards the history and stats routes. Empty disables the check.
type AuthConfig struct {
	AdminKey string `mapstructure:"admin_key"`
}

// ProviderConfig configures the JSearch client.
type ProviderConfig struct {
	APIKey            string `mapstructure:"api_key"`
	BaseURL           string `mapstructure:"base_url"`
	Host              string `mapstructure:"host"`
	NumPages          int    `mapstructure:"num_pages"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	UserAgent         string `mapstructure:"user_agent"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// RateLimitConfig bounds inbound analysis requests per client.
type RateLimitConfig struct {
	AnalyzePerMinute int `mapstructure:"analyze_per_minute"`
}

// AnalysisConfig holds the ranked list sizes.
type AnalysisConfig struct {
	TopCertifications int `mapstructure:"top_certifications"`
	TopSkills         int `mapstructure:"top_skills"`
	TopExperience     int `mapstructure:"top_experience"`
	TopEducation      int `mapstructure:"top_education"`
}

// DictionaryConfig points at an optional reference table override.
type DictionaryConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig selects the scan history backend.
type StorageConfig struct {
	Driver   string         `mapstructure:"driver"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// SQLiteConfig locates the database file.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig controls the pgx pool.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RetentionConfig bounds scan history. Zero disables a limit.
type RetentionConfig struct {
	MaxAgeDays int `mapstructure:"max_age_days"`
	MaxRows    int `mapstructure:"max_rows"`
}

// ArchiveConfig selects where full reports are written.
type ArchiveConfig struct {
	Driver  string           `mapstructure:"driver"`
	Prefix  string           `mapstructure:"prefix"`
	BaseDir string           `mapstructure:"base_dir"`
	GCS     GCSArchiveConfig `mapstructure:"gcs"`
}

// GCSArchiveConfig names the bucket and object prefix.
type GCSArchiveConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// EventsConfig selects the completion event sink.
type EventsConfig struct {
	Driver string       `mapstructure:"driver"`
	PubSub PubSubConfig `mapstructure:"pubsub"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoadDotEnv exports variables from a .env file without overriding the
// environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindCompatEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.request_timeout_seconds", 90)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("server.history_limit", 20)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("auth.admin_key", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "https://jsearch.p.rapidapi.com")
	v.SetDefault("provider.host", "jsearch.p.rapidapi.com")
	v.SetDefault("provider.num_pages", 1)
	v.SetDefault("provider.timeout_seconds", 30)
	v.SetDefault("provider.user_agent", "jobsignal/1.0")
	v.SetDefault("provider.requests_per_minute", 0)
	v.SetDefault("rate_limit.analyze_per_minute", 10)
	v.SetDefault("analysis.top_certifications", 15)
	v.SetDefault("analysis.top_skills", 15)
	v.SetDefault("analysis.top_experience", 8)
	v.SetDefault("analysis.top_education", 8)
	v.SetDefault("dictionary.path", "")
	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.sqlite.path", "scans.db")
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.table", "scans")
	v.SetDefault("retention.max_age_days", 0)
	v.SetDefault("retention.max_rows", 0)
	v.SetDefault("archive.driver", DriverNone)
	v.SetDefault("archive.prefix", "reports")
	v.SetDefault("archive.base_dir", "")
	v.SetDefault("archive.gcs.bucket", "")
	v.SetDefault("archive.gcs.prefix", "")
	v.SetDefault("events.driver", DriverNone)
	v.SetDefault("events.pubsub.project_id", "")
	v.SetDefault("events.pubsub.topic", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// bindCompatEnv accepts the unprefixed variable names older deployments use.
// The prefixed name wins when both are set.
func bindCompatEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"provider.api_key":       "RAPIDAPI_KEY",
		"retention.max_age_days": "SCAN_RETENTION_DAYS",
		"retention.max_rows":     "MAX_SCAN_ROWS",
		"auth.admin_key":         "ADMIN_API_KEY",
		"environment":            "ENVIRONMENT",
		"server.port":            "PORT",
		"server.cors_origins":    "CORS_ORIGINS",
	}
	for key, legacy := range bindings {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Provider.NumPages <= 0 {
		return fmt.Errorf("provider.num_pages must be > 0")
	}
	if c.Provider.TimeoutSeconds <= 0 {
		return fmt.Errorf("provider.timeout_seconds must be > 0")
	}
	if c.Provider.RequestsPerMinute < 0 || c.RateLimit.AnalyzePerMinute < 0 {
		return fmt.Errorf("rate limits must be >= 0")
	}
	if c.Retention.MaxAgeDays < 0 || c.Retention.MaxRows < 0 {
		return fmt.Errorf("retention limits must be >= 0")
	}
	a := c.Analysis
	if a.TopCertifications < 0 || a.TopSkills < 0 || a.TopExperience < 0 || a.TopEducation < 0 {
		return fmt.Errorf("analysis top-n values must be >= 0")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	switch c.Archive.Driver {
	case DriverNone, DriverMemory:
	case DriverLocal:
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir is required for the local driver")
		}
	case DriverGCS:
		if c.Archive.GCS.Bucket == "" {
			return fmt.Errorf("archive.gcs.bucket is required for the gcs driver")
		}
	default:
		return fmt.Errorf("unknown archive.driver %q", c.Archive.Driver)
	}

	switch c.Events.Driver {
	case DriverNone, DriverMemory:
	case DriverPubSub:
		if c.Events.PubSub.ProjectID == "" || c.Events.PubSub.Topic == "" {
			return fmt.Errorf("events.pubsub.project_id and events.pubsub.topic are required for the pubsub driver")
		}
	default:
		return fmt.Errorf("unknown events.driver %q", c.Events.Driver)
	}
	return nil
}

// RetentionPolicy converts the retention section for the scan stores.
func (c Config) RetentionPolicy() scanner.RetentionPolicy {
	return scanner.RetentionPolicy{MaxAgeDays: c.Retention.MaxAgeDays, MaxRows: c.Retention.MaxRows}
}

// RequestTimeout is the per-request budget for POST /analyze-jobs.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful HTTP shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// ProviderTimeout bounds a single provider call.
func (c Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}
