package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata. Non-2xx statuses
// are returned as responses, not errors; transport failures are errors.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Enumerator produces the full candidate set for one source.
type Enumerator interface {
	Enumerate(ctx context.Context) ([]Site, error)
}

// Extractor turns one site into an Outcome. index and total are the 1-based
// position of the site within the current run and are used for logging only.
type Extractor interface {
	Extract(ctx context.Context, site Site, index, total int) Outcome
}

// CacheStore persists the last priority seen per site.
type CacheStore interface {
	BatchGetCacheEntries(ctx context.Context, source string, ids []string) ([]CacheEntry, error)
	PutCacheEntry(ctx context.Context, entry CacheEntry) error
}

// RecordSink upserts extracted records by (source, id).
type RecordSink interface {
	UpsertMovie(ctx context.Context, record Record) error
}

// Store is the persistent store consumed by the engine.
type Store interface {
	CacheStore
	RecordSink
	EnsureIndexes(ctx context.Context) error
	Close()
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes record notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for artifact naming.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// RetryPolicy decides whether and when a failed operation is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// RunObserver receives per-site and per-run notifications (metrics).
type RunObserver interface {
	ObserveSite(source string, kind OutcomeKind, took time.Duration)
	ObserveRun(stats RunStats, err error)
}
