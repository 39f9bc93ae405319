// Package syncache keeps a client-held copy of server state correct,
// fresh, and non-redundant under concurrent reads and writes, with bounded
// memory and network cost. It is the data layer behind long-lived
// application sessions: consumers read through it by key, editors
// invalidate through it after writes, and a background collector keeps the
// working set small.
//
// # Client
//
// One [Client] is created at process start and shared by every consumer:
//
//	client := syncache.New(ctx,
//	    syncache.WithLogger(log),
//	    syncache.WithGCInterval(time.Minute),
//	)
//	defer client.Close()
//
// Keys are structured, ordered segment sequences built with [K]:
//
//	key := syncache.K("teacher", teacherID)
//
// Structured keys make prefix invalidation natural:
// InvalidateByPrefix(K("teacher")) hits every teacher-derived entry and
// nothing else.
//
// # Reading
//
// [Client.Fetch] is the one-shot read-through path. [Client.Watch]
// additionally subscribes, which pins the entry against garbage
// collection and delivers refreshed values as they land:
//
//	sub, err := client.Watch(key, fetchTeacher, syncache.ClassModerate)
//	if err != nil {
//	    return err
//	}
//	defer sub.Close()
//	render(sub.Snapshot())
//	for res := range sub.Updates() {
//	    render(res)
//	}
//
// Reads follow stale-while-revalidate semantics throughout: a stale value
// is served immediately while a background fetch revalidates it, and a
// consumer with a previous value never sees a blank state — not even when
// revalidation fails.
//
// # Deduplication and retries
//
// Concurrent requests for the same key share a single transport call; at
// most one fetch is ever in flight per key. Transient failures retry with
// capped exponential backoff. Failures marked with [AsClientRejection]
// are terminal and never retried; the transport applies the mark at its
// boundary.
//
// # Policies
//
// Every read names a [Class] — volatile, moderate, static, or an
// application-defined class registered on a [Resolver] (optionally loaded
// from YAML). The class resolves to a [Policy]: how long data stays
// fresh, how long unused entries are retained, and whether window focus,
// network reconnect, or a new subscriber should trigger revalidation.
// Resolving an unknown class is a configuration error and fails
// synchronously, unlike fetch failures, which surface as entry status.
//
// # Invalidation and prefetch
//
// [Client.InvalidateExact], [Client.InvalidateByPrefix], and
// [Client.InvalidateAll] mark entries stale; entries with live
// subscribers are refetched in the background, fire-and-forget.
// [Client.PrefetchOnIntent] warms the cache after a cancellable delay,
// modelling hover intent, without creating a subscription.
//
// The companion package autosave debounces local edits into single-flight
// saves and invalidates the corresponding read keys on success, closing
// the write-back loop.
package syncache
