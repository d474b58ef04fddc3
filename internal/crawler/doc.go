// Package crawler implements the incremental crawl-and-reconcile engine: the
// shared value types, the collaborator contracts, the cache reconciler, the
// enumeration retry wrapper, and the orchestrator that drives one source
// through enumerate, reconcile, extract, and record.
package crawler
