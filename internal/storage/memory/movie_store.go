package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/JakeFAU/moviedb-crawler/internal/crawler"
)

// MovieStore is a thread-safe in-memory crawler.Store.
type MovieStore struct {
	mu      sync.RWMutex
	records map[string]crawler.Record
	cache   map[string]float64
}

var _ crawler.Store = (*MovieStore)(nil)

// NewMovieStore creates an empty store.
func NewMovieStore() *MovieStore {
	return &MovieStore{
		records: make(map[string]crawler.Record),
		cache:   make(map[string]float64),
	}
}

func key(source, id string) string {
	return source + "\x00" + id
}

// EnsureIndexes is a no-op.
func (s *MovieStore) EnsureIndexes(context.Context) error { return nil }

// Close is a no-op.
func (s *MovieStore) Close() {}

// BatchGetCacheEntries returns the entries present for ids.
func (s *MovieStore) BatchGetCacheEntries(_ context.Context, source string, ids []string) ([]crawler.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crawler.CacheEntry
	for _, id := range ids {
		if p, ok := s.cache[key(source, id)]; ok {
			out = append(out, crawler.CacheEntry{Source: source, ID: id, Priority: p})
		}
	}
	return out, nil
}

// PutCacheEntry overwrites the entry for (source, id).
func (s *MovieStore) PutCacheEntry(_ context.Context, entry crawler.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key(entry.Source, entry.ID)] = entry.Priority
	return nil
}

// UpsertMovie replaces the record for (source, id).
func (s *MovieStore) UpsertMovie(_ context.Context, record crawler.Record) error {
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}
	record.Keywords = slices.Clone(record.Keywords)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key(record.Source, record.ID)] = record
	return nil
}

// Movie returns the stored record for (source, id).
func (s *MovieStore) Movie(source, id string) (crawler.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key(source, id)]
	return rec, ok
}

// Movies returns every stored record ordered by source then id.
func (s *MovieStore) Movies() []crawler.Record {
	s.mu.RLock()
	out := make([]crawler.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b crawler.Record) int {
		if c := strings.Compare(a.Source, b.Source); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}
