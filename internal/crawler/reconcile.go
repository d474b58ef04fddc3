package crawler

import (
	"context"

	"go.uber.org/zap"
)

// Reconcile drops candidates whose cached priority shows they are current.
//
// With no cache entries at all every candidate is returned. Otherwise a
// candidate is kept when it has no entry, when its priority exceeds
// HighPriority, or when its priority differs from the cached one. The drift
// rule is a heuristic: a page that moved in ranking may have changed.
func Reconcile(candidates []Site, cached []CacheEntry) []Site {
	if len(cached) == 0 {
		return candidates
	}
	seen := make(map[string]float64, len(cached))
	for _, entry := range cached {
		seen[entry.ID] = entry.Priority
	}
	out := make([]Site, 0, len(candidates))
	for _, site := range candidates {
		prev, ok := seen[site.ID]
		if !ok || site.Priority > HighPriority || site.Priority != prev {
			out = append(out, site)
		}
	}
	return out
}

// Reconciler filters candidates against a CacheStore.
type Reconciler struct {
	store  CacheStore
	logger *zap.Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(store CacheStore, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{store: store, logger: logger}
}

// Filter looks up cache entries for exactly the candidate ids in one batch and
// applies Reconcile. A failed lookup is treated as an empty cache.
func (r *Reconciler) Filter(ctx context.Context, source string, candidates []Site) []Site {
	if len(candidates) == 0 || r.store == nil {
		return candidates
	}
	ids := make([]string, len(candidates))
	for i, site := range candidates {
		ids[i] = site.ID
	}
	cached, err := r.store.BatchGetCacheEntries(ctx, source, ids)
	if err != nil {
		r.logger.Warn("cache lookup failed; crawling all candidates",
			zap.String("source", source),
			zap.Int("candidates", len(candidates)),
			zap.Error(err),
		)
		return candidates
	}
	return Reconcile(candidates, cached)
}
