package syncache

import (
	"context"
	"sync"
	"time"
)

// FetchFunc loads the value for one key from the backing transport. The
// engine treats the transport as opaque: any non-nil error is a failure,
// classified only by the client-rejection mark (see AsClientRejection).
type FetchFunc func(ctx context.Context) (any, error)

// Status describes where an entry is in its fetch lifecycle.
type Status int

const (
	StatusIdle Status = iota
	StatusFetching
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusFetching:
		return "fetching"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is an immutable snapshot of a cache entry. HasData distinguishes
// a cached nil from "never populated". During revalidation Data still holds
// the previous value, so consumers can render stale data instead of a
// blank state.
type Result struct {
	Key       Key
	Data      any
	HasData   bool
	Status    Status
	IsStale   bool
	FetchedAt time.Time
	Err       error
}

// entry is owned by the store; every field is guarded by store.mu. Data
// and fetch function survive error transitions so stale values keep being
// served while revalidation fails.
type entry struct {
	key         Key
	data        any
	hasData     bool
	status      Status
	fetchedAt   time.Time
	createdAt   time.Time
	stale       bool
	policy      Policy
	subscribers int
	fetch       FetchFunc
	err         error
}

// refetchTarget carries what the client needs to re-run a fetch for an
// entry outside the store lock.
type refetchTarget struct {
	key    Key
	fetch  FetchFunc
	policy Policy
}

// store is the authoritative entry table. One mutex guards the whole
// table; every operation completes fully before the next begins, which is
// the entire write discipline the engine needs. Update listeners are
// invoked outside the lock with a snapshot.
type store struct {
	mu        sync.Mutex
	entries   map[string]*entry
	listeners map[string]map[string]func(Result)
	now       func() time.Time
}

func newStore(now func() time.Time) *store {
	return &store{
		entries:   make(map[string]*entry),
		listeners: make(map[string]map[string]func(Result)),
		now:       now,
	}
}

// snapshotLocked renders an entry as a Result. Staleness is computed at
// read time: the explicit flag (set by invalidation) or age beyond the
// policy's StaleTime, whichever comes first.
func (s *store) snapshotLocked(e *entry) Result {
	stale := e.stale
	if !stale && e.hasData && s.now().Sub(e.fetchedAt) > e.policy.StaleTime {
		stale = true
	}
	return Result{
		Key:       e.key.clone(),
		Data:      e.data,
		HasData:   e.hasData,
		Status:    e.status,
		IsStale:   stale,
		FetchedAt: e.fetchedAt,
		Err:       e.err,
	}
}

func (s *store) get(key Key) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key.String()]
	if !ok {
		return Result{}, false
	}
	return s.snapshotLocked(e), true
}

// set creates or overwrites the entry for key with a successful value and
// notifies that key's update listeners. The policy binds only on creation;
// an existing entry keeps the policy it was created with.
func (s *store) set(key Key, data any, policy Policy) {
	s.mu.Lock()
	e, ok := s.entries[key.String()]
	if !ok {
		e = &entry{key: key.clone(), policy: policy, createdAt: s.now()}
		s.entries[key.String()] = e
	}
	e.data = data
	e.hasData = true
	e.status = StatusSuccess
	e.fetchedAt = s.now()
	e.stale = false
	e.err = nil
	res := s.snapshotLocked(e)
	notify := s.listenersLocked(key)
	s.mu.Unlock()
	for _, fn := range notify {
		fn(res)
	}
}

func (s *store) remove(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key.String()]
	if ok {
		delete(s.entries, key.String())
	}
	return ok
}

func (s *store) findMatching(pred func(Key) bool) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Result
	for _, e := range s.entries {
		if pred(e.key) {
			out = append(out, s.snapshotLocked(e))
		}
	}
	return out
}

func (s *store) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// ensureLocked returns the entry for key, creating an idle placeholder if
// none exists. The fetch function is refreshed whenever a caller supplies
// one, so invalidation-triggered refetches use the most recent fetcher.
func (s *store) ensureLocked(key Key, policy Policy, fetch FetchFunc) *entry {
	e, ok := s.entries[key.String()]
	if !ok {
		e = &entry{key: key.clone(), policy: policy, createdAt: s.now()}
		s.entries[key.String()] = e
	}
	if fetch != nil {
		e.fetch = fetch
	}
	return e
}

// beginFetch transitions an entry (creating it if needed) to fetching.
func (s *store) beginFetch(key Key, policy Policy, fetch FetchFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensureLocked(key, policy, fetch)
	e.status = StatusFetching
}

// failFetch records a terminal fetch failure. Prior data is deliberately
// retained: a stale value beats no value.
func (s *store) failFetch(key Key, err error) {
	s.mu.Lock()
	e, ok := s.entries[key.String()]
	if !ok {
		s.mu.Unlock()
		return
	}
	e.status = StatusError
	e.err = err
	res := s.snapshotLocked(e)
	notify := s.listenersLocked(key)
	s.mu.Unlock()
	for _, fn := range notify {
		fn(res)
	}
}

// markStaleMatching flags every matching entry stale. It returns the
// number of entries marked and, for entries with live subscribers and a
// known fetcher, the targets to refetch in the background.
func (s *store) markStaleMatching(pred func(Key) bool) (int, []refetchTarget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	marked := 0
	var targets []refetchTarget
	for _, e := range s.entries {
		if !pred(e.key) {
			continue
		}
		e.stale = true
		marked++
		if e.subscribers > 0 && e.fetch != nil {
			targets = append(targets, refetchTarget{key: e.key, fetch: e.fetch, policy: e.policy})
		}
	}
	return marked, targets
}

// fetcher returns the stored fetch function and policy for key.
func (s *store) fetcher(key Key) (FetchFunc, Policy, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key.String()]
	if !ok || e.fetch == nil {
		return nil, Policy{}, false
	}
	return e.fetch, e.policy, true
}

// subscribe registers a listener for key and bumps its subscriber count,
// creating a placeholder entry if the key has never been seen. It returns
// the entry snapshot and whether this was the 0 -> 1 transition.
func (s *store) subscribe(key Key, policy Policy, fetch FetchFunc, id string, notify func(Result)) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensureLocked(key, policy, fetch)
	e.subscribers++
	first := e.subscribers == 1
	ls, ok := s.listeners[key.String()]
	if !ok {
		ls = make(map[string]func(Result))
		s.listeners[key.String()] = ls
	}
	ls[id] = notify
	return s.snapshotLocked(e), first
}

func (s *store) unsubscribe(key Key, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ls, ok := s.listeners[key.String()]; ok {
		delete(ls, id)
		if len(ls) == 0 {
			delete(s.listeners, key.String())
		}
	}
	if e, ok := s.entries[key.String()]; ok && e.subscribers > 0 {
		e.subscribers--
	}
}

func (s *store) listenersLocked(key Key) []func(Result) {
	ls := s.listeners[key.String()]
	if len(ls) == 0 {
		return nil
	}
	out := make([]func(Result), 0, len(ls))
	for _, fn := range ls {
		out = append(out, fn)
	}
	return out
}

// needsRefreshLocked decides whether a liveness check should refetch the
// entry: never populated, explicitly or implicitly stale, or sitting in a
// failed state.
func (s *store) needsRefreshLocked(e *entry) bool {
	if e.fetch == nil {
		return false
	}
	if !e.hasData || e.status == StatusError {
		return true
	}
	return s.snapshotLocked(e).IsStale
}

// livenessTargets returns refetch targets for every subscribed entry whose
// policy passes flag and that currently needs a refresh. Used by the
// window-focus and network-reconnect triggers.
func (s *store) livenessTargets(flag func(Policy) bool) []refetchTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	var targets []refetchTarget
	for _, e := range s.entries {
		if e.subscribers == 0 || !flag(e.policy) {
			continue
		}
		if s.needsRefreshLocked(e) {
			targets = append(targets, refetchTarget{key: e.key, fetch: e.fetch, policy: e.policy})
		}
	}
	return targets
}

// sweep removes entries with no subscribers that have been idle past their
// retention window and returns how many were removed. Age is measured from
// the last successful fetch, or from creation for entries that never
// populated.
func (s *store) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for ks, e := range s.entries {
		if e.subscribers > 0 || e.status == StatusFetching {
			continue
		}
		since := e.createdAt
		if e.hasData {
			since = e.fetchedAt
		}
		if now.Sub(since) > e.policy.RetentionTime {
			delete(s.entries, ks)
			removed++
		}
	}
	return removed
}
