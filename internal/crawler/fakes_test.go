package crawler

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]float64
	puts    []CacheEntry
	lookups int
	getErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]float64{}}
}

func (c *fakeCache) BatchGetCacheEntries(_ context.Context, source string, ids []string) ([]CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	if c.getErr != nil {
		return nil, c.getErr
	}
	var out []CacheEntry
	for _, id := range ids {
		if p, ok := c.entries[source+"/"+id]; ok {
			out = append(out, CacheEntry{Source: source, ID: id, Priority: p})
		}
	}
	return out, nil
}

func (c *fakeCache) PutCacheEntry(_ context.Context, entry CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Source+"/"+entry.ID] = entry.Priority
	c.puts = append(c.puts, entry)
	return nil
}

type fakeSink struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func (s *fakeSink) UpsertMovie(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type staticEnumerator struct {
	sites []Site
	err   error
	calls int
}

func (e *staticEnumerator) Enumerate(context.Context) ([]Site, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.sites, nil
}

// scriptedExtractor returns outcomes keyed by site id and records call order.
type scriptedExtractor struct {
	mu       sync.Mutex
	outcomes map[string]Outcome
	panicOn  string
	seen     []string
}

func (x *scriptedExtractor) Extract(_ context.Context, site Site, _, _ int) Outcome {
	x.mu.Lock()
	x.seen = append(x.seen, site.ID)
	x.mu.Unlock()
	if site.ID == x.panicOn {
		panic("boom")
	}
	if out, ok := x.outcomes[site.ID]; ok {
		return out
	}
	return Recorded(Record{ID: site.ID, URL: site.URL, Priority: site.Priority, Name: "movie " + site.ID})
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeIDGen struct{ id string }

func (g fakeIDGen) NewID() (string, error) {
	if g.id == "" {
		return "", errors.New("no id")
	}
	return g.id, nil
}

type recordingObserver struct {
	mu    sync.Mutex
	sites map[OutcomeKind]int
	runs  []RunStats
	errs  []error
}

func (o *recordingObserver) ObserveSite(_ string, kind OutcomeKind, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sites == nil {
		o.sites = map[OutcomeKind]int{}
	}
	o.sites[kind]++
}

func (o *recordingObserver) ObserveRun(stats RunStats, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, stats)
	o.errs = append(o.errs, err)
}
