// Package postgres provides the Postgres-backed movie and cache store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/moviedb-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Default table names.
const (
	DefaultMoviesTable = "movies"
	DefaultCacheTable  = "site_cache"
)

// Config controls the Postgres connection pool and table names.
type Config struct {
	DSN             string
	MoviesTable     string
	CacheTable      string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// Store persists movie records and cache entries in Postgres.
type Store struct {
	pool   pool
	movies string
	cache  string
}

var _ crawler.Store = (*Store)(nil)

// New connects to Postgres using cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewWithPool(p, cfg.MoviesTable, cfg.CacheTable)
	if err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, moviesTable, cacheTable string) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if moviesTable == "" {
		moviesTable = DefaultMoviesTable
	}
	if cacheTable == "" {
		cacheTable = DefaultCacheTable
	}
	for _, name := range []string{moviesTable, cacheTable} {
		if !validTableName.MatchString(name) {
			return nil, fmt.Errorf("invalid table name %q", name)
		}
	}
	return &Store{pool: p, movies: moviesTable, cache: cacheTable}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureIndexes creates the tables and lookup indexes if they are missing.
// It is safe to call on every start.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	source             text NOT NULL,
	id                 text NOT NULL,
	url                text NOT NULL,
	priority           double precision NOT NULL,
	name               text NOT NULL,
	english_name       text NOT NULL,
	keywords           text[] NOT NULL DEFAULT '{}',
	description        text NOT NULL,
	image_url          text,
	year               integer,
	premiere           date,
	premiere_estimated boolean NOT NULL DEFAULT false,
	scraped_at         timestamptz NOT NULL,
	PRIMARY KEY (source, id)
)`, s.movies),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	source     text NOT NULL,
	id         text NOT NULL,
	priority   double precision NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (source, id)
)`, s.cache),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_premiere_idx ON %[1]s (premiere)`, s.movies),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_year_idx ON %[1]s (year)`, s.movies),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure indexes: %w", err)
		}
	}
	return nil
}

// BatchGetCacheEntries returns the cache entries for ids in one round trip.
func (s *Store) BatchGetCacheEntries(ctx context.Context, source string, ids []string) ([]crawler.CacheEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT id, priority FROM %s WHERE source = $1 AND id = ANY($2)`, s.cache)
	rows, err := s.pool.Query(ctx, query, source, ids)
	if err != nil {
		return nil, fmt.Errorf("query cache entries: %w", err)
	}
	defer rows.Close()

	var entries []crawler.CacheEntry
	for rows.Next() {
		entry := crawler.CacheEntry{Source: source}
		if err := rows.Scan(&entry.ID, &entry.Priority); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache entries: %w", err)
	}
	return entries, nil
}

// PutCacheEntry records the priority a site was last handled at.
func (s *Store) PutCacheEntry(ctx context.Context, entry crawler.CacheEntry) error {
	query := fmt.Sprintf(`
INSERT INTO %s (source, id, priority, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (source, id) DO UPDATE
SET priority = EXCLUDED.priority, updated_at = EXCLUDED.updated_at`, s.cache)
	if _, err := s.pool.Exec(ctx, query, entry.Source, entry.ID, entry.Priority); err != nil {
		return fmt.Errorf("upsert cache entry %s/%s: %w", entry.Source, entry.ID, err)
	}
	return nil
}

// UpsertMovie inserts or replaces the record keyed by (source, id).
func (s *Store) UpsertMovie(ctx context.Context, record crawler.Record) error {
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	source,
	id,
	url,
	priority,
	name,
	english_name,
	keywords,
	description,
	image_url,
	year,
	premiere,
	premiere_estimated,
	scraped_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
ON CONFLICT (source, id) DO UPDATE SET
	url = EXCLUDED.url,
	priority = EXCLUDED.priority,
	name = EXCLUDED.name,
	english_name = EXCLUDED.english_name,
	keywords = EXCLUDED.keywords,
	description = EXCLUDED.description,
	image_url = EXCLUDED.image_url,
	year = EXCLUDED.year,
	premiere = EXCLUDED.premiere,
	premiere_estimated = EXCLUDED.premiere_estimated,
	scraped_at = EXCLUDED.scraped_at`, s.movies)

	keywords := record.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	args := []any{
		record.Source,
		record.ID,
		record.URL,
		record.Priority,
		record.Name,
		record.EnglishName,
		keywords,
		record.Description,
		record.ImageURL,
		record.Year,
		premiereArg(record.Premiere),
		record.PremiereEstimated,
		record.ScrapedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert movie %s/%s: %w", record.Source, record.ID, err)
	}
	return nil
}

// premiereArg maps the zero time to NULL.
func premiereArg(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
