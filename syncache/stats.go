package syncache

import "sync/atomic"

// Stats is a point-in-time snapshot of the engine's counters.
type Stats struct {
	// Hits counts requests served from a fresh cached value with no
	// network activity.
	Hits int64
	// Misses counts requests that had to go through the fetch path
	// (absent, stale, or errored entries).
	Misses int64
	// SharedFetches counts callers that piggybacked on another caller's
	// in-flight fetch instead of issuing their own.
	SharedFetches int64
	// Fetches counts fetch executions that actually invoked the transport
	// (one per deduplicated group, regardless of retries).
	Fetches int64
	// Retries counts individual retry attempts beyond the first try.
	Retries int64
	// FetchErrors counts fetches that exhausted their retry budget or were
	// rejected by the transport.
	FetchErrors int64
	// Refetches counts background revalidations triggered by subscription
	// liveness checks, invalidation, focus, or reconnect.
	Refetches int64
	// Invalidations counts entries marked stale by invalidation calls.
	Invalidations int64
	// Prefetches counts speculative fetches issued by the prefetch
	// scheduler after its delay elapsed on a cache miss.
	Prefetches int64
	// Evictions counts entries removed by the garbage collector.
	Evictions int64
}

type stats struct {
	hits          atomic.Int64
	misses        atomic.Int64
	sharedFetches atomic.Int64
	fetches       atomic.Int64
	retries       atomic.Int64
	fetchErrors   atomic.Int64
	refetches     atomic.Int64
	invalidations atomic.Int64
	prefetches    atomic.Int64
	evictions     atomic.Int64
}

func (s *stats) snapshot() Stats {
	return Stats{
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		SharedFetches: s.sharedFetches.Load(),
		Fetches:       s.fetches.Load(),
		Retries:       s.retries.Load(),
		FetchErrors:   s.fetchErrors.Load(),
		Refetches:     s.refetches.Load(),
		Invalidations: s.invalidations.Load(),
		Prefetches:    s.prefetches.Load(),
		Evictions:     s.evictions.Load(),
	}
}
