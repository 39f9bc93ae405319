package syncache

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription represents one live consumer of a cache key. While open it
// pins the entry against garbage collection and receives entry updates.
// Always Close a subscription when the consumer goes away; Close is
// idempotent.
type Subscription struct {
	id      string
	key     Key
	client  *Client
	updates chan Result
	once    sync.Once
}

// Watch subscribes to key, returning immediately with whatever the cache
// currently holds available via Snapshot. If the entry is missing, stale,
// or errored — or the class policy asks for a refetch on mount — a
// background fetch is started; its result arrives on Updates. This is the
// stale-while-revalidate read path: consumers render cached data first and
// refresh when new data lands.
func (c *Client) Watch(key Key, fetch FetchFunc, class Class) (*Subscription, error) {
	if err := c.ctx.Err(); err != nil {
		return nil, ErrClosed
	}
	policy, err := c.resolver.Resolve(class)
	if err != nil {
		return nil, err
	}
	sub := &Subscription{
		id:      uuid.NewString(),
		key:     key.clone(),
		client:  c,
		updates: make(chan Result, 16),
	}
	res, first := c.store.subscribe(sub.key, policy, fetch, sub.id, sub.notify)

	needsRefresh := !res.HasData || res.IsStale || res.Status == StatusError
	if res.Status != StatusFetching && (needsRefresh || (first && policy.RefetchOnMount)) {
		go c.refetch(refetchTarget{key: sub.key, fetch: fetch, policy: policy})
	}
	return sub, nil
}

// notify delivers an entry update without ever blocking the store. If the
// consumer is not draining, older updates are dropped; Snapshot always has
// the latest state.
func (s *Subscription) notify(res Result) {
	select {
	case s.updates <- res:
	default:
	}
}

// Updates delivers entry snapshots as fetches and saves settle.
func (s *Subscription) Updates() <-chan Result {
	return s.updates
}

// Snapshot returns the entry's current state.
func (s *Subscription) Snapshot() Result {
	res, _ := s.client.store.get(s.key)
	return res
}

// Key returns the subscribed key.
func (s *Subscription) Key() Key {
	return s.key.clone()
}

// Close releases the subscription. The entry becomes eligible for garbage
// collection once no other subscriber holds it; an in-flight fetch is not
// cancelled and will still populate the cache.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.client.store.unsubscribe(s.key, s.id)
	})
}

// NotifyFocus re-runs the liveness check for every subscribed entry whose
// policy sets RefetchOnFocus. Wire this to whatever "window regained
// focus" signal the host application has.
func (c *Client) NotifyFocus() {
	c.runLivenessCheck(func(p Policy) bool { return p.RefetchOnFocus })
}

// NotifyReconnect re-runs the liveness check for every subscribed entry
// whose policy sets RefetchOnReconnect. Wire this to the host's network
// reconnection signal.
func (c *Client) NotifyReconnect() {
	c.runLivenessCheck(func(p Policy) bool { return p.RefetchOnReconnect })
}

func (c *Client) runLivenessCheck(flag func(Policy) bool) {
	if c.ctx.Err() != nil {
		return
	}
	for _, target := range c.store.livenessTargets(flag) {
		go c.refetch(target)
	}
}
