package main

import (
	"context"
	"fmt"
	"net/http"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/moviedb-crawler/internal/config"
	"github.com/JakeFAU/moviedb-crawler/internal/crawler"
	"github.com/JakeFAU/moviedb-crawler/internal/hash/sha256"
	memorypublisher "github.com/JakeFAU/moviedb-crawler/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/moviedb-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/moviedb-crawler/internal/source/edb"
	"github.com/JakeFAU/moviedb-crawler/internal/source/seret"
	gcsstorage "github.com/JakeFAU/moviedb-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/moviedb-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/moviedb-crawler/internal/storage/memory"
	"github.com/JakeFAU/moviedb-crawler/internal/storage/postgres"
)

// closer collects shutdown hooks in reverse order of construction.
type closer []func()

func (c *closer) add(fn func()) { *c = append(*c, fn) }

func (c closer) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func buildStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (crawler.Store, error) {
	var store crawler.Store
	switch cfg.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory store; records are discarded on exit")
		store = memorystorage.NewMovieStore()
	case config.BackendPostgres:
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MoviesTable:     cfg.Postgres.MoviesTable,
			CacheTable:      cfg.Postgres.CacheTable,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		store = pg
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	return store, nil
}

// buildBlobStore returns nil when artifacts are disabled.
func buildBlobStore(ctx context.Context, cfg config.ArtifactsConfig, closers *closer) (crawler.BlobStore, error) {
	switch cfg.Backend {
	case config.BackendNone, "":
		return nil, nil
	case config.BackendMemory:
		return memorystorage.NewBlobStore(), nil
	case config.BackendLocal:
		blobs, err := localstorage.New(localstorage.Config{BaseDir: cfg.Local.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local blob store: %w", err)
		}
		return blobs, nil
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		closers.add(func() { _ = client.Close() })
		blobs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.GCS.Bucket, Prefix: cfg.GCS.Prefix})
		if err != nil {
			return nil, fmt.Errorf("init gcs blob store: %w", err)
		}
		return blobs, nil
	default:
		return nil, fmt.Errorf("unsupported artifacts backend %q", cfg.Backend)
	}
}

// buildPublisher returns nil when notifications are disabled.
func buildPublisher(ctx context.Context, cfg config.PubSubConfig, logger *zap.Logger, closers *closer) (crawler.Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Backend {
	case config.BackendMemory:
		logger.Warn("recording notifications in memory; nothing is sent to pubsub")
		pub := memorypublisher.New(logger)
		closers.add(pub.Close)
		return pub, nil
	case config.BackendPubSub, "":
		client, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub client: %w", err)
		}
		pub := pubsubpublisher.New(client)
		closers.add(func() {
			pub.Close()
			_ = client.Close()
		})
		return pub, nil
	default:
		return nil, fmt.Errorf("unsupported pubsub backend %q", cfg.Backend)
	}
}

func fetcherHeaders(headers map[string]string) http.Header {
	if len(headers) == 0 {
		return nil
	}
	h := make(http.Header, len(headers))
	for k, v := range headers {
		h.Set(k, v)
	}
	return h
}

// sourceDeps carries the collaborators shared by every source.
type sourceDeps struct {
	fetcher crawler.Fetcher
	blobs   crawler.BlobStore
	clock   crawler.Clock
	retry   crawler.RetryPolicy
	logger  *zap.Logger
}

// buildSources returns the enabled sources in run order: Seret, then EDB.
func buildSources(cfg config.Config, deps sourceDeps) []crawler.Source {
	var sources []crawler.Source
	if cfg.Seret.Enabled {
		logger := deps.logger.Named(seret.Name)
		enum := seret.NewEnumerator(deps.fetcher, deps.blobs, sha256.New(), deps.clock, seret.Config{
			SitemapURL:  cfg.Seret.SitemapURL,
			MoviePrefix: cfg.Seret.MoviePrefix,
			ArtifactDir: cfg.Artifacts.Dir,
		}, logger)
		sources = append(sources, crawler.Source{
			Name:       seret.Name,
			Enumerator: crawler.NewRetryingEnumerator(enum, deps.retry, logger),
			Extractor:  seret.NewExtractor(deps.fetcher, logger),
			SortByID:   true,
		})
	}
	if cfg.EDB.Enabled {
		logger := deps.logger.Named(edb.Name)
		edbCfg := edb.Config{
			BaseURL:      cfg.EDB.BaseURL,
			SearchURL:    cfg.EDB.SearchURL,
			StartPage:    cfg.EDB.StartPage,
			NearEndPages: cfg.EDB.NearEndPages,
		}
		sources = append(sources, crawler.Source{
			Name:       edb.Name,
			Enumerator: edb.NewEnumerator(deps.fetcher, edbCfg, deps.retry, logger),
			Extractor:  edb.NewExtractor(deps.fetcher, edbCfg, logger),
		})
	}
	return sources
}
