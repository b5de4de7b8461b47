// Package crawler implements the crawl orchestration engine: the frontier and
// dedup bookkeeping, the two-level concurrency governor, the robots politeness
// gate, the fetch pipeline with its render decision, and the worker pool that
// drives a bounded breadth-first traversal.
package crawler
