// Package main hosts the moviecrawler entrypoint.
//
// A run walks each enabled source in turn (Seret, then EDB):
//   - Enumerate: Seret reads its XML sitemap (archived to the artifact store
//     first); EDB walks its paginated listing, retrying each page.
//   - Reconcile: candidates are compared with the site_cache table and only
//     sites that are new, previously seen at a different priority, or above
//     the high-priority threshold are kept.
//   - Extract and record: each pending site is fetched and parsed; records are
//     upserted into the movies table, and the cache entry is written once the
//     site is recorded or found non-canonical.
//
// Operational notes:
//   - Exit code is 1 when a source could not be enumerated after retries.
//     Per-site failures are logged and counted but do not change the code.
//   - Logs go to stderr and, by default, log.log. Set CI to route traffic
//     through the local proxy at 127.0.0.1:8118.
//   - With metrics.enabled the ops server exposes /healthz, /readyz, /metrics,
//     and /v1/runs for the duration of the run.
//
// Run locally: go run ./cmd/moviecrawler -config config.yaml, or rely on
// CRAWLER_* environment overrides alone.
package main
