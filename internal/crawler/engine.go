package crawler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source bundles the per-site collaborators of one crawl pipeline.
type Source struct {
	Name       string
	Enumerator Enumerator
	Extractor  Extractor
	// SortByID orders pending sites by ascending id; otherwise enumeration
	// order is kept.
	SortByID bool
}

// EngineConfig controls Engine behavior.
type EngineConfig struct {
	Concurrency int
	Topic       string
}

// Engine drives sources through enumerate, reconcile, extract, and record.
type Engine struct {
	cfg       EngineConfig
	cache     CacheStore
	sink      RecordSink
	publisher Publisher
	observer  RunObserver
	idGen     IDGenerator
	clock     Clock
	logger    *zap.Logger
}

// NewEngine constructs an Engine. publisher, observer, and idGen may be nil.
func NewEngine(
	cfg EngineConfig,
	cache CacheStore,
	sink RecordSink,
	publisher Publisher,
	observer RunObserver,
	idGen IDGenerator,
	clock Clock,
	logger *zap.Logger,
) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if clock == nil {
		clock = utcClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:       cfg,
		cache:     cache,
		sink:      sink,
		publisher: publisher,
		observer:  observer,
		idGen:     idGen,
		clock:     clock,
		logger:    logger,
	}
}

// RunAll runs each source in turn. A failed source does not prevent the
// following ones from running; the failures are joined into the returned error.
func (e *Engine) RunAll(ctx context.Context, sources ...Source) ([]RunStats, error) {
	all := make([]RunStats, 0, len(sources))
	var errs []error
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		stats, err := e.Run(ctx, src)
		all = append(all, stats)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return all, errors.Join(errs...)
}

// Run crawls one source. Only enumeration failure (or cancellation) is
// returned as an error; per-site failures are logged and counted.
func (e *Engine) Run(ctx context.Context, src Source) (RunStats, error) {
	start := e.clock.Now()
	stats := RunStats{RunID: e.newRunID(), Source: src.Name}
	logger := e.logger.With(zap.String("source", src.Name), zap.String("run_id", stats.RunID))

	candidates, err := src.Enumerator.Enumerate(ctx)
	if err != nil {
		stats.Duration = e.clock.Now().Sub(start)
		logger.Error("enumeration failed; aborting run", zap.Error(err))
		e.observeRun(stats, err)
		return stats, fmt.Errorf("enumerate %s: %w", src.Name, err)
	}
	stats.Candidates = len(candidates)

	pending := NewReconciler(e.cache, logger).Filter(ctx, src.Name, candidates)
	if src.SortByID {
		pending = slices.Clone(pending)
		slices.SortStableFunc(pending, func(a, b Site) int {
			return strings.Compare(a.ID, b.ID)
		})
	}
	stats.Pending = len(pending)
	logger.Info("found new sites",
		zap.Int("candidates", stats.Candidates),
		zap.Int("pending", stats.Pending),
	)

	var counters runCounters
	total := len(pending)
	if e.cfg.Concurrency == 1 {
		for i, site := range pending {
			if ctx.Err() != nil {
				break
			}
			e.handleSite(ctx, logger, src, site, i+1, total, &counters)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(e.cfg.Concurrency)
		for i, site := range pending {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				e.handleSite(ctx, logger, src, site, i+1, total, &counters)
				return nil
			})
		}
		_ = g.Wait()
	}

	stats.Recorded = int(counters.recorded.Load())
	stats.Skipped = int(counters.skipped.Load())
	stats.Failed = int(counters.failed.Load())
	stats.Duration = e.clock.Now().Sub(start)

	if err := ctx.Err(); err != nil {
		logger.Warn("run interrupted", zap.Error(err))
		e.observeRun(stats, err)
		return stats, fmt.Errorf("run %s: %w", src.Name, err)
	}
	logger.Info("run finished",
		zap.Int("recorded", stats.Recorded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Duration("duration", stats.Duration),
	)
	e.observeRun(stats, nil)
	return stats, nil
}

func (e *Engine) handleSite(
	ctx context.Context,
	logger *zap.Logger,
	src Source,
	site Site,
	index int,
	total int,
	counters *runCounters,
) {
	began := e.clock.Now()
	outcome := e.extract(ctx, src.Extractor, site, index, total)
	kind := e.apply(ctx, logger, src.Name, site, outcome)
	done := counters.add(kind)

	if e.observer != nil {
		e.observer.ObserveSite(src.Name, kind, e.clock.Now().Sub(began))
	}
	logger.Info("site processed",
		zap.String("progress", fmt.Sprintf("%d/%d", done, total)),
		zap.String("id", site.ID),
		zap.Stringer("outcome", kind),
	)
}

// extract isolates the extractor so a panic on one page only fails that page.
func (e *Engine) extract(ctx context.Context, ex Extractor, site Site, index, total int) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Failed(fmt.Errorf("extractor panic: %v", r))
		}
	}()
	return ex.Extract(ctx, site, index, total)
}

func (e *Engine) apply(ctx context.Context, logger *zap.Logger, source string, site Site, outcome Outcome) OutcomeKind {
	siteFields := []zap.Field{
		zap.String("id", site.ID),
		zap.String("url", site.URL),
		zap.Float64("priority", site.Priority),
	}
	entry := CacheEntry{Source: source, ID: site.ID, Priority: site.Priority}

	switch outcome.Kind {
	case OutcomeRecorded:
		if outcome.Record == nil {
			logger.Error("extractor returned no record", siteFields...)
			return OutcomeFailed
		}
		rec := *outcome.Record
		rec.Source = source
		if rec.ScrapedAt.IsZero() {
			rec.ScrapedAt = e.clock.Now()
		}
		if err := e.sink.UpsertMovie(ctx, rec); err != nil {
			logger.Error("failed to upsert movie", append(siteFields, zap.Error(err))...)
			return OutcomeFailed
		}
		if err := e.cache.PutCacheEntry(ctx, entry); err != nil {
			logger.Warn("failed to update cache entry", append(siteFields, zap.Error(err))...)
		}
		e.publish(ctx, logger, rec)
		return OutcomeRecorded
	case OutcomeSkipped:
		logger.Warn("skipping site and adding to cache", append(siteFields, zap.String("reason", outcome.Reason))...)
		if err := e.cache.PutCacheEntry(ctx, entry); err != nil {
			logger.Error("failed to update cache entry", append(siteFields, zap.Error(err))...)
		}
		return OutcomeSkipped
	default:
		err := outcome.Err
		if err == nil {
			err = errors.New("unknown extraction failure")
		}
		logger.Error("failed to handle site", append(siteFields, zap.Error(err))...)
		return OutcomeFailed
	}
}

func (e *Engine) publish(ctx context.Context, logger *zap.Logger, rec Record) {
	if e.publisher == nil || e.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"source":     rec.Source,
		"id":         rec.ID,
		"url":        rec.URL,
		"name":       rec.Name,
		"premiere":   rec.Premiere.Format(time.DateOnly),
		"scraped_at": rec.ScrapedAt.Format(time.RFC3339),
	}
	if _, err := e.publisher.Publish(ctx, e.cfg.Topic, payload); err != nil {
		logger.Warn("publish record failed", zap.String("id", rec.ID), zap.Error(err))
	}
}

func (e *Engine) newRunID() string {
	if e.idGen == nil {
		return ""
	}
	id, err := e.idGen.NewID()
	if err != nil {
		e.logger.Warn("generate run id failed", zap.Error(err))
		return ""
	}
	return id
}

func (e *Engine) observeRun(stats RunStats, err error) {
	if e.observer != nil {
		e.observer.ObserveRun(stats, err)
	}
}

type runCounters struct {
	recorded atomic.Int64
	skipped  atomic.Int64
	failed   atomic.Int64
	done     atomic.Int64
}

func (c *runCounters) add(kind OutcomeKind) int64 {
	switch kind {
	case OutcomeRecorded:
		c.recorded.Add(1)
	case OutcomeSkipped:
		c.skipped.Add(1)
	default:
		c.failed.Add(1)
	}
	return c.done.Add(1)
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

// Observers fans notifications out to several RunObservers.
type Observers []RunObserver

// ObserveSite implements RunObserver.
func (o Observers) ObserveSite(source string, kind OutcomeKind, took time.Duration) {
	for _, obs := range o {
		obs.ObserveSite(source, kind, took)
	}
}

// ObserveRun implements RunObserver.
func (o Observers) ObserveRun(stats RunStats, err error) {
	for _, obs := range o {
		obs.ObserveRun(stats, err)
	}
}
