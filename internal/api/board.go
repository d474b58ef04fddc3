package api

import (
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/moviedb-crawler/internal/crawler"
)

// RunStatus is the operator view of one source's progress.
type RunStatus struct {
	Source     string            `json:"source"`
	State      string            `json:"state"`
	Processed  map[string]int    `json:"processed"`
	LastRun    *crawler.RunStats `json:"last_run,omitempty"`
	LastError  string            `json:"last_error,omitempty"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// Run states reported by RunBoard.
const (
	StateRunning   = "running"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
)

// RunBoard tracks per-source run progress. It implements crawler.RunObserver.
type RunBoard struct {
	mu      sync.RWMutex
	now     func() time.Time
	sources map[string]*RunStatus
}

// NewRunBoard returns an empty board. A nil now defaults to time.Now.
func NewRunBoard(now func() time.Time) *RunBoard {
	if now == nil {
		now = time.Now
	}
	return &RunBoard{now: now, sources: make(map[string]*RunStatus)}
}

// ObserveSite counts a processed site and marks the source as running.
func (b *RunBoard) ObserveSite(source string, kind crawler.OutcomeKind, _ time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.entry(source)
	st.State = StateRunning
	st.Processed[kind.String()]++
}

// ObserveRun stores the final stats of a source run.
func (b *RunBoard) ObserveRun(stats crawler.RunStats, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.entry(stats.Source)
	s := stats
	st.LastRun = &s
	finished := b.now().UTC()
	st.FinishedAt = &finished
	st.LastError = ""
	st.State = StateSucceeded
	if err != nil {
		st.State = StateFailed
		st.LastError = err.Error()
	}
	st.Processed = make(map[string]int)
}

// Status returns a snapshot for one source.
func (b *RunBoard) Status(source string) (RunStatus, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.sources[source]
	if !ok {
		return RunStatus{}, false
	}
	return st.clone(), true
}

// Statuses returns snapshots for every known source ordered by name.
func (b *RunBoard) Statuses() []RunStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]RunStatus, 0, len(b.sources))
	for _, st := range b.sources {
		out = append(out, st.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

func (b *RunBoard) entry(source string) *RunStatus {
	st, ok := b.sources[source]
	if !ok {
		st = &RunStatus{Source: source, Processed: make(map[string]int)}
		b.sources[source] = st
	}
	return st
}

func (s *RunStatus) clone() RunStatus {
	cp := *s
	cp.Processed = make(map[string]int, len(s.Processed))
	for k, v := range s.Processed {
		cp.Processed[k] = v
	}
	if s.LastRun != nil {
		run := *s.LastRun
		cp.LastRun = &run
	}
	if s.FinishedAt != nil {
		at := *s.FinishedAt
		cp.FinishedAt = &at
	}
	return cp
}
