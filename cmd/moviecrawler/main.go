package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/moviedb-crawler/internal/api"
	"github.com/JakeFAU/moviedb-crawler/internal/clock/system"
	"github.com/JakeFAU/moviedb-crawler/internal/config"
	"github.com/JakeFAU/moviedb-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/moviedb-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/moviedb-crawler/internal/id/uuid"
	"github.com/JakeFAU/moviedb-crawler/internal/logging"
	"github.com/JakeFAU/moviedb-crawler/internal/metrics"
	"github.com/JakeFAU/moviedb-crawler/internal/policy/ratelimit"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
		File:        cfg.Logging.File,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := 0
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("crawl finished with errors", zap.Error(err))
		code = 1
	}
	stop()
	if syncErr := logger.Sync(); syncErr != nil {
		fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
	}
	os.Exit(code)
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	var closers closer
	defer closers.run()

	store, err := buildStore(ctx, cfg.Storage, logger.Named("store"))
	if err != nil {
		return err
	}
	closers.add(store.Close)

	blobs, err := buildBlobStore(ctx, cfg.Artifacts, &closers)
	if err != nil {
		return err
	}
	publisher, err := buildPublisher(ctx, cfg.PubSub, logger.Named("publisher"), &closers)
	if err != nil {
		return err
	}

	baseFetcher, err := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.HTTP.UserAgent,
		Headers:     fetcherHeaders(cfg.HTTP.Headers),
		ProxyURL:    cfg.HTTP.ProxyURL,
		Timeout:     cfg.HTTP.Timeout,
		Delay:       cfg.HTTP.Delay,
		MaxBodySize: cfg.HTTP.MaxBodySize,
	})
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}
	fetcher := ratelimit.NewFetcher(baseFetcher, ratelimit.New(ratelimit.Config{
		RPS:   cfg.HTTP.RequestsPerSecond,
		Burst: cfg.HTTP.Burst,
	}))
	if cfg.HTTP.ProxyURL != "" {
		logger.Info("using proxy", zap.String("proxy", cfg.HTTP.ProxyURL))
	}

	clock := system.New()
	board := api.NewRunBoard(clock.Now)
	if cfg.Metrics.Enabled {
		shutdown := startOpsServer(cfg.Metrics.Addr, api.NewServer(board, logger.Named("api")), logger)
		closers.add(shutdown)
	}

	sources := buildSources(cfg, sourceDeps{
		fetcher: fetcher,
		blobs:   blobs,
		clock:   clock,
		retry:   crawler.NewFixedRetryPolicy(cfg.RetryPolicy()),
		logger:  logger,
	})

	engine := crawler.NewEngine(
		crawler.EngineConfig{Concurrency: cfg.Crawler.Concurrency, Topic: cfg.Crawler.Topic},
		store,
		store,
		publisher,
		crawler.Observers{metrics.Observer{Now: clock.Now}, board},
		uuid.New(),
		clock,
		logger.Named("engine"),
	)

	stats, err := engine.RunAll(ctx, sources...)
	for _, s := range stats {
		logger.Info("source summary",
			zap.String("source", s.Source),
			zap.Int("candidates", s.Candidates),
			zap.Int("pending", s.Pending),
			zap.Int("recorded", s.Recorded),
			zap.Int("skipped", s.Skipped),
			zap.Int("failed", s.Failed),
			zap.Duration("duration", s.Duration),
		)
	}
	if err != nil {
		return fmt.Errorf("run sources: %w", err)
	}
	return nil
}

func startOpsServer(addr string, server *api.Server, logger *zap.Logger) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("ops server started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server error", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("ops server shutdown error", zap.Error(err))
		}
	}
}
