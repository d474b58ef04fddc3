// Package api hosts the operator HTTP surface for a running crawl. Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/runs and /v1/runs/{source} for the latest run summary per source,
//     fed by RunBoard as the engine finishes each source.
package api
