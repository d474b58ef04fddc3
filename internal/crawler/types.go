package crawler

import (
	"net/http"
	"time"
)

// HighPriority is the threshold above which a candidate is always re-fetched.
const HighPriority = 0.8

// Site identifies one crawlable page discovered by an Enumerator.
type Site struct {
	ID       string  `json:"id"`
	URL      string  `json:"url"`
	Priority float64 `json:"priority"`
}

// CacheEntry is the last known priority at which a site was processed or
// found non-canonical.
type CacheEntry struct {
	Source   string  `json:"source"`
	ID       string  `json:"id"`
	Priority float64 `json:"priority"`
}

// Record is the structured movie metadata extracted from one page.
type Record struct {
	Source            string    `json:"source"`
	ID                string    `json:"id"`
	URL               string    `json:"url"`
	Priority          float64   `json:"priority"`
	Name              string    `json:"name"`
	EnglishName       string    `json:"english_name"`
	Keywords          []string  `json:"keywords"`
	Description       string    `json:"description"`
	ImageURL          *string   `json:"image_url,omitempty"`
	Year              *int      `json:"year,omitempty"`
	Premiere          time.Time `json:"premiere"`
	PremiereEstimated bool      `json:"premiere_estimated"` // Premiere fell back to January 1 of Year.
	ScrapedAt         time.Time `json:"scraped_at"`
}

// OutcomeKind tags the result of one extraction.
type OutcomeKind int

// Extraction outcomes.
const (
	OutcomeFailed OutcomeKind = iota
	OutcomeRecorded
	OutcomeSkipped
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRecorded:
		return "recorded"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Outcome is returned by an Extractor for a single site.
type Outcome struct {
	Kind   OutcomeKind
	Record *Record
	Reason string
	Err    error
}

// Recorded wraps a successfully extracted record.
func Recorded(rec Record) Outcome {
	return Outcome{Kind: OutcomeRecorded, Record: &rec}
}

// Skipped signals an expected, non-error skip such as a non-canonical page.
func Skipped(reason string) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason}
}

const notCanonicalReason = "page is not canonical"

// NotCanonical skips a page whose declared canonical URL differs from the
// requested one.
func NotCanonical(declared string) Outcome {
	return Skipped(notCanonicalReason + ": declared " + declared)
}

// Failed wraps an extraction error.
func Failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err}
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// OK reports whether the response carries a 2xx status.
func (r FetchResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RunStats summarizes one source run.
type RunStats struct {
	RunID      string        `json:"run_id"`
	Source     string        `json:"source"`
	Candidates int           `json:"candidates"`
	Pending    int           `json:"pending"`
	Recorded   int           `json:"recorded"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration"`
}
