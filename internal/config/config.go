// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Browser BrowserConfig `mapstructure:"browser"`
	DB      DBConfig      `mapstructure:"db"`
	Server  ServerConfig  `mapstructure:"server"`
	Publish PublishConfig `mapstructure:"publish"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig controls the structured-data source.
type APIConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	PageSize    int           `mapstructure:"page_size"`
	PageDelay   time.Duration `mapstructure:"page_delay"`
	DetailDelay time.Duration `mapstructure:"detail_delay"`
	UserAgent   string        `mapstructure:"user_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RetryConfig is the transport retry budget.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

// BrowserConfig controls the rendered-page enrichment mode.
type BrowserConfig struct {
	Workers         int           `mapstructure:"workers"`
	GamesPerSession int           `mapstructure:"games_per_session"`
	ProxyURL        string        `mapstructure:"proxy_url"`
	GameURLBase     string        `mapstructure:"game_url_base"`
	Headless        bool          `mapstructure:"headless"`
	NavTimeout      time.Duration `mapstructure:"nav_timeout"`
	MarkerTimeout   time.Duration `mapstructure:"marker_timeout"`
	RecordDelay     time.Duration `mapstructure:"record_delay"`
}

// DBConfig controls access to the relational store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// ServerConfig controls the optional ops HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// PublishConfig controls ingestion event publishing.
type PublishConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ArchiveConfig controls raw rendered-page archiving.
type ArchiveConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	Bucket  string `mapstructure:"bucket"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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
	v.SetDefault("api.base_url", "https://api.gamalytic.com")
	v.SetDefault("api.page_size", 50)
	v.SetDefault("api.page_delay", "1s")
	v.SetDefault("api.detail_delay", "100ms")
	v.SetDefault("api.user_agent", "Mozilla/5.0")
	v.SetDefault("api.timeout", "30s")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "60s")
	v.SetDefault("retry.multiplier", 2.0)

	v.SetDefault("browser.workers", 10)
	v.SetDefault("browser.games_per_session", 500)
	v.SetDefault("browser.game_url_base", "https://gamalytic.com/game")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout", "45s")
	v.SetDefault("browser.marker_timeout", "20s")
	v.SetDefault("browser.record_delay", "1s")

	// Keys without a natural default still need registering, or environment
	// overrides are invisible to Unmarshal.
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("browser.proxy_url", "")

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)

	v.SetDefault("publish.enabled", false)
	v.SetDefault("publish.project_id", "")
	v.SetDefault("publish.topic", "")

	v.SetDefault("archive.backend", "none")
	v.SetDefault("archive.dir", "")
	v.SetDefault("archive.bucket", "")

	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.API.PageSize <= 0 {
		return fmt.Errorf("api.page_size must be > 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1")
	}
	if c.Browser.Workers <= 0 {
		return fmt.Errorf("browser.workers must be > 0")
	}
	if c.Browser.GamesPerSession <= 0 {
		return fmt.Errorf("browser.games_per_session must be > 0")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	if c.Publish.Enabled && (c.Publish.ProjectID == "" || c.Publish.Topic == "") {
		return fmt.Errorf("publish.project_id and publish.topic must be set when publishing is enabled")
	}
	switch c.Archive.Backend {
	case "none", "memory":
	case "local":
		if c.Archive.Dir == "" {
			return fmt.Errorf("archive.dir must be set for the local backend")
		}
	case "gcs":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown archive.backend %q", c.Archive.Backend)
	}
	return nil
}
