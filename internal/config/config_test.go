package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CRAWLER_STORAGE_BACKEND", "memory")
	t.Setenv("CI", "")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "log.log", cfg.Logging.File)
	require.Equal(t, "Mozilla/5.0", cfg.HTTP.UserAgent)
	require.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	require.Equal(t, 1, cfg.Crawler.Concurrency)
	require.Equal(t, 3, cfg.Crawler.RetryAttempts)
	require.Equal(t, 10*time.Second, cfg.Crawler.RetryDelay)
	require.True(t, cfg.EDB.Enabled)
	require.True(t, cfg.Seret.Enabled)
	require.Equal(t, 3, cfg.EDB.NearEndPages)
	require.Equal(t, "sitemaps", cfg.Artifacts.Dir)
	require.Equal(t, BackendLocal, cfg.Artifacts.Backend)
	require.Equal(t, BackendPubSub, cfg.PubSub.Backend)
	require.Empty(t, cfg.HTTP.ProxyURL)

	attempts, delay := cfg.RetryPolicy()
	require.Equal(t, 3, attempts)
	require.Equal(t, 10*time.Second, delay)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Setenv("CI", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
logging:
  development: true
  level: debug
  file: crawl.log
http:
  user_agent: test-agent
  timeout: 5s
  delay: 250ms
  requests_per_second: 2.5
  headers:
    Accept-Language: he-IL
crawler:
  concurrency: 4
  retry_attempts: 5
  retry_delay: 2s
edb:
  start_page: 7
  near_end_pages: 2
seret:
  enabled: false
storage:
  backend: postgres
  postgres:
    dsn: postgres://crawler@localhost/movies
    movies_table: films
    max_conns: 8
artifacts:
  backend: gcs
  gcs:
    bucket: movie-artifacts
    prefix: raw
pubsub:
  enabled: true
  project_id: proj
  topic_name: movies
metrics:
  enabled: true
  addr: ":9100"
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.True(t, cfg.Logging.Development)
	require.Equal(t, "crawl.log", cfg.Logging.File)
	require.Equal(t, "test-agent", cfg.HTTP.UserAgent)
	require.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	require.Equal(t, 250*time.Millisecond, cfg.HTTP.Delay)
	require.InDelta(t, 2.5, cfg.HTTP.RequestsPerSecond, 0.0001)
	require.Equal(t, 1, cfg.HTTP.Burst)
	require.Equal(t, "he-IL", cfg.HTTP.Headers["accept-language"])
	require.Equal(t, 4, cfg.Crawler.Concurrency)
	require.Equal(t, 5, cfg.Crawler.RetryAttempts)
	require.Equal(t, 7, cfg.EDB.StartPage)
	require.False(t, cfg.Seret.Enabled)
	require.Equal(t, "films", cfg.Storage.Postgres.MoviesTable)
	require.Equal(t, "site_cache", cfg.Storage.Postgres.CacheTable)
	require.EqualValues(t, 8, cfg.Storage.Postgres.MaxConns)
	require.Equal(t, "movie-artifacts", cfg.Artifacts.GCS.Bucket)
	require.Equal(t, "movies", cfg.Crawler.Topic)
	require.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("CRAWLER_STORAGE_BACKEND", "memory")
	t.Setenv("CRAWLER_CRAWLER_CONCURRENCY", "6")
	t.Setenv("CRAWLER_HTTP_PROXY_URL", "http://proxy.internal:3128")
	t.Setenv("CI", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 6, cfg.Crawler.Concurrency)
	require.Equal(t, "http://proxy.internal:3128", cfg.HTTP.ProxyURL)
}

func TestLoadCIProxy(t *testing.T) {
	t.Setenv("CRAWLER_STORAGE_BACKEND", "memory")
	t.Setenv("CI", "1")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, CIProxyURL, cfg.HTTP.ProxyURL)
}

func TestLoadMemoryPublisherNeedsNoProject(t *testing.T) {
	t.Setenv("CRAWLER_STORAGE_BACKEND", "memory")
	t.Setenv("CRAWLER_PUBSUB_ENABLED", "true")
	t.Setenv("CRAWLER_PUBSUB_BACKEND", "memory")
	t.Setenv("CRAWLER_PUBSUB_TOPIC_NAME", "movies")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, BackendMemory, cfg.PubSub.Backend)
	require.Empty(t, cfg.PubSub.ProjectID)
	require.Equal(t, "movies", cfg.Crawler.Topic)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("CRAWLER_STORAGE_BACKEND", "postgres")
	t.Setenv("CRAWLER_STORAGE_POSTGRES_DSN", "")

	_, err := Load("")
	require.ErrorContains(t, err, "storage.postgres.dsn")
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		HTTP:      HTTPConfig{Timeout: time.Second},
		Crawler:   CrawlerConfig{Concurrency: 1, RetryAttempts: 3},
		EDB:       EDBConfig{Enabled: true},
		Seret:     SeretConfig{Enabled: true},
		Storage:   StorageConfig{Backend: BackendMemory},
		Artifacts: ArtifactsConfig{Backend: BackendNone},
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "invalid concurrency", mutate: func(c *Config) { c.Crawler.Concurrency = 0 }, want: "crawler.concurrency"},
		{name: "invalid retry attempts", mutate: func(c *Config) { c.Crawler.RetryAttempts = 0 }, want: "crawler.retry_attempts"},
		{name: "negative retry delay", mutate: func(c *Config) { c.Crawler.RetryDelay = -time.Second }, want: "crawler.retry_delay"},
		{name: "invalid timeout", mutate: func(c *Config) { c.HTTP.Timeout = 0 }, want: "http.timeout"},
		{name: "negative delay", mutate: func(c *Config) { c.HTTP.Delay = -time.Second }, want: "http.delay"},
		{name: "negative rps", mutate: func(c *Config) { c.HTTP.RequestsPerSecond = -1 }, want: "http.requests_per_second"},
		{name: "negative start page", mutate: func(c *Config) { c.EDB.StartPage = -1 }, want: "edb.start_page"},
		{name: "no sources", mutate: func(c *Config) { c.EDB.Enabled = false; c.Seret.Enabled = false }, want: "at least one"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Backend = "mysql" }, want: "storage.backend"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Backend = BackendPostgres }, want: "storage.postgres.dsn"},
		{name: "unknown artifacts", mutate: func(c *Config) { c.Artifacts.Backend = "s3" }, want: "artifacts.backend"},
		{name: "local without base dir", mutate: func(c *Config) { c.Artifacts.Backend = BackendLocal }, want: "artifacts.local.base_dir"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Artifacts.Backend = BackendGCS }, want: "artifacts.gcs.bucket"},
		{name: "pubsub without topic", mutate: func(c *Config) { c.PubSub = PubSubConfig{Enabled: true, Backend: BackendPubSub, ProjectID: "p"} }, want: "pubsub.topic_name"},
		{name: "gcp pubsub without project", mutate: func(c *Config) { c.PubSub = PubSubConfig{Enabled: true, Backend: BackendPubSub, TopicName: "movies"} }, want: "pubsub.project_id"},
		{name: "unknown pubsub backend", mutate: func(c *Config) { c.PubSub = PubSubConfig{Enabled: true, Backend: "kafka", TopicName: "movies"} }, want: "pubsub.backend"},
		{name: "metrics without addr", mutate: func(c *Config) { c.Metrics.Enabled = true }, want: "metrics.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
