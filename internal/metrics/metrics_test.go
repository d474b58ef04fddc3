package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/JakeFAU/moviedb-crawler/internal/crawler"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard https", "https://www.EDB.co.il/title/1/", "www.edb.co.il"},
		{"no scheme", "www.seret.co.il/movies", "www.seret.co.il"},
		{"host with port", "127.0.0.1:8118", "127.0.0.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestStatusClass(t *testing.T) {
	cases := map[int]string{200: "2xx", 301: "3xx", 404: "4xx", 503: "5xx", 0: "error", 999: "error"}
	for code, want := range cases {
		if got := StatusClass(code); got != want {
			t.Errorf("StatusClass(%d) = %q; want %q", code, got, want)
		}
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := sitesTotal
	Init()
	if sitesTotal != first || first == nil {
		t.Fatal("Init() should register collectors exactly once")
	}
}

func TestObserveFetch(t *testing.T) {
	Init()
	before := testutil.ToFloat64(fetchesTotal.WithLabelValues("www.seret.co.il", "2xx"))
	bytesBefore := testutil.ToFloat64(fetchBytesTotal.WithLabelValues("www.seret.co.il"))

	ObserveFetch("https://www.seret.co.il/Sitemapsite.xml", 200, 1024)

	if got := testutil.ToFloat64(fetchesTotal.WithLabelValues("www.seret.co.il", "2xx")); got != before+1 {
		t.Errorf("fetches = %f; want %f", got, before+1)
	}
	if got := testutil.ToFloat64(fetchBytesTotal.WithLabelValues("www.seret.co.il")); got != bytesBefore+1024 {
		t.Errorf("bytes = %f; want %f", got, bytesBefore+1024)
	}
}

func TestObserverRecordsRun(t *testing.T) {
	Init()
	obs := Observer{Now: func() time.Time { return time.Unix(1700000000, 0) }}
	before := testutil.ToFloat64(sitesTotal.WithLabelValues("metrics-test", "recorded"))
	failedBefore := testutil.ToFloat64(runsTotal.WithLabelValues("metrics-test", "failed"))

	obs.ObserveSite("metrics-test", crawler.OutcomeRecorded, time.Second)
	obs.ObserveRun(crawler.RunStats{Source: "metrics-test", Candidates: 10, Pending: 4, Duration: 3 * time.Second}, nil)
	obs.ObserveRun(crawler.RunStats{Source: "metrics-test"}, errors.New("sitemap down"))

	if got := testutil.ToFloat64(sitesTotal.WithLabelValues("metrics-test", "recorded")); got != before+1 {
		t.Errorf("sites = %f; want %f", got, before+1)
	}
	if got := testutil.ToFloat64(runsTotal.WithLabelValues("metrics-test", "failed")); got != failedBefore+1 {
		t.Errorf("failed runs = %f; want %f", got, failedBefore+1)
	}
	if got := testutil.ToFloat64(lastRunTimestampSeconds.WithLabelValues("metrics-test")); got != 1700000000 {
		t.Errorf("last run = %f", got)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"https://www.edb.co.il", "https://www.seret.co.il", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}

func TestObserveRateLimitDelay(t *testing.T) {
	Init()
	before := testutil.CollectAndCount(rateLimitDelaySeconds)

	ObserveRateLimitDelay("rate-limit-test.example", 250*time.Millisecond)

	if got := testutil.CollectAndCount(rateLimitDelaySeconds); got != before+1 {
		t.Fatalf("expected a new series, got %d (before %d)", got, before)
	}
}
