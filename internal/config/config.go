// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CIProxyURL is the local proxy used when the CI environment variable is set
// and no explicit proxy is configured.
const CIProxyURL = "http://127.0.0.1:8118"

// Storage, artifact and publisher backend names.
const (
	BackendPubSub   = "gcp"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendLocal    = "local"
	BackendGCS      = "gcs"
	BackendNone     = "none"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	EDB       EDBConfig       `mapstructure:"edb"`
	Seret     SeretConfig     `mapstructure:"seret"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// LoggingConfig toggles zap development features and the file sink.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
}

// HTTPConfig configures the outbound fetcher.
type HTTPConfig struct {
	UserAgent   string            `mapstructure:"user_agent"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	Delay       time.Duration     `mapstructure:"delay"`
	ProxyURL    string            `mapstructure:"proxy_url"`
	Headers     map[string]string `mapstructure:"headers"`
	MaxBodySize int               `mapstructure:"max_body_size"`
	// RequestsPerSecond throttles fetches per host; zero disables throttling.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// CrawlerConfig governs the run engine.
type CrawlerConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	Topic         string        `mapstructure:"topic"`
}

// EDBConfig points the EDB source at its listing. Empty URLs fall back to the
// source package defaults.
type EDBConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	BaseURL      string `mapstructure:"base_url"`
	SearchURL    string `mapstructure:"search_url"`
	StartPage    int    `mapstructure:"start_page"`
	NearEndPages int    `mapstructure:"near_end_pages"`
}

// SeretConfig points the Seret source at its sitemap.
type SeretConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	SitemapURL  string `mapstructure:"sitemap_url"`
	MoviePrefix string `mapstructure:"movie_prefix"`
}

// StorageConfig selects the record and cache store.
type StorageConfig struct {
	Backend  string         `mapstructure:"backend"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig controls access to the relational database.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MoviesTable     string        `mapstructure:"movies_table"`
	CacheTable      string        `mapstructure:"cache_table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// ArtifactsConfig selects where raw sitemaps are archived.
type ArtifactsConfig struct {
	Backend string          `mapstructure:"backend"`
	Dir     string          `mapstructure:"dir"`
	Local   LocalBlobConfig `mapstructure:"local"`
	GCS     GCSBlobConfig   `mapstructure:"gcs"`
}

// LocalBlobConfig configures the filesystem artifact store.
type LocalBlobConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// GCSBlobConfig configures the Cloud Storage artifact store.
type GCSBlobConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for record notifications. Backend "memory"
// records notifications in process instead of publishing to GCP.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig controls the operator HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
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
	cfg.applyEnvironment(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "log.log")
	v.SetDefault("http.user_agent", "Mozilla/5.0")
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.delay", "0s")
	v.SetDefault("http.proxy_url", "")
	v.SetDefault("http.max_body_size", 64<<20)
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("crawler.concurrency", 1)
	v.SetDefault("crawler.retry_attempts", 3)
	v.SetDefault("crawler.retry_delay", "10s")
	v.SetDefault("crawler.topic", "")
	v.SetDefault("edb.enabled", true)
	v.SetDefault("edb.base_url", "")
	v.SetDefault("edb.search_url", "")
	v.SetDefault("edb.start_page", 1)
	v.SetDefault("edb.near_end_pages", 3)
	v.SetDefault("seret.enabled", true)
	v.SetDefault("seret.sitemap_url", "")
	v.SetDefault("seret.movie_prefix", "")
	v.SetDefault("storage.backend", BackendPostgres)
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.movies_table", "movies")
	v.SetDefault("storage.postgres.cache_table", "site_cache")
	v.SetDefault("storage.postgres.max_conns", 4)
	v.SetDefault("storage.postgres.min_conns", 0)
	v.SetDefault("storage.postgres.max_conn_lifetime", "30m")
	v.SetDefault("artifacts.backend", BackendLocal)
	v.SetDefault("artifacts.dir", "sitemaps")
	v.SetDefault("artifacts.local.base_dir", "artifacts")
	v.SetDefault("artifacts.gcs.bucket", "")
	v.SetDefault("artifacts.gcs.prefix", "")
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("pubsub.backend", BackendPubSub)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
}

// applyEnvironment applies overrides that do not follow the CRAWLER_ prefix.
func (c *Config) applyEnvironment(getenv func(string) string) {
	if c.HTTP.ProxyURL == "" && getenv("CI") != "" {
		c.HTTP.ProxyURL = CIProxyURL
	}
	if c.PubSub.Enabled && c.Crawler.Topic == "" {
		c.Crawler.Topic = c.PubSub.TopicName
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.Concurrency <= 0 {
		return errors.New("crawler.concurrency must be > 0")
	}
	if c.Crawler.RetryAttempts <= 0 {
		return errors.New("crawler.retry_attempts must be > 0")
	}
	if c.Crawler.RetryDelay < 0 {
		return errors.New("crawler.retry_delay must be >= 0")
	}
	if c.HTTP.Timeout <= 0 {
		return errors.New("http.timeout must be > 0")
	}
	if c.HTTP.Delay < 0 {
		return errors.New("http.delay must be >= 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return errors.New("http.requests_per_second must be >= 0")
	}
	if c.EDB.StartPage < 0 {
		return errors.New("edb.start_page must be >= 0")
	}
	if c.EDB.NearEndPages < 0 {
		return errors.New("edb.near_end_pages must be >= 0")
	}
	if !c.EDB.Enabled && !c.Seret.Enabled {
		return errors.New("at least one of edb.enabled or seret.enabled must be true")
	}
	switch c.Storage.Backend {
	case BackendPostgres:
		if c.Storage.Postgres.DSN == "" {
			return errors.New("storage.postgres.dsn must be set for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	switch c.Artifacts.Backend {
	case BackendLocal:
		if c.Artifacts.Local.BaseDir == "" {
			return errors.New("artifacts.local.base_dir must be set for the local backend")
		}
	case BackendGCS:
		if c.Artifacts.GCS.Bucket == "" {
			return errors.New("artifacts.gcs.bucket must be set for the gcs backend")
		}
	case BackendMemory, BackendNone:
	default:
		return fmt.Errorf("artifacts.backend %q is not supported", c.Artifacts.Backend)
	}
	if c.PubSub.Enabled {
		if c.PubSub.TopicName == "" {
			return errors.New("pubsub.topic_name must be set when pubsub is enabled")
		}
		switch c.PubSub.Backend {
		case BackendPubSub:
			if c.PubSub.ProjectID == "" {
				return errors.New("pubsub.project_id must be set for the gcp backend")
			}
		case BackendMemory:
		default:
			return fmt.Errorf("pubsub.backend %q is not supported", c.PubSub.Backend)
		}
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.New("metrics.addr must be set when metrics are enabled")
	}
	return nil
}

// RetryPolicy converts retry settings into the engine's fixed policy values.
func (c Config) RetryPolicy() (attempts int, delay time.Duration) {
	return c.Crawler.RetryAttempts, c.Crawler.RetryDelay
}
