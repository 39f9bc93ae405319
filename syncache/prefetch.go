package syncache

import (
	"time"
)

// PrefetchOnIntent schedules a speculative fetch for key after delay, for
// pointer-hover style intent signals. The returned cancel function stops
// the prefetch if it has not fired yet; cancelling after the delay has
// elapsed is harmless. When the timer fires the cache is checked first —
// an existing entry, fresh or not, suppresses the fetch entirely.
//
// Prefetched data creates no subscription: the entry sits at zero
// subscribers and is garbage collected like any other unused entry.
func (c *Client) PrefetchOnIntent(key Key, fetch FetchFunc, class Class, delay time.Duration) (cancel func(), err error) {
	policy, err := c.resolver.Resolve(class)
	if err != nil {
		return nil, err
	}
	k := key.clone()
	timer := time.AfterFunc(delay, func() {
		if c.ctx.Err() != nil {
			return
		}
		if _, ok := c.store.get(k); ok {
			return
		}
		c.stats.prefetches.Add(1)
		if _, err := c.coord.request(c.ctx, k, fetch, policy); err != nil {
			c.log.WithField("key", k.String()).WithError(err).Debug("prefetch failed")
		}
	})
	return func() { timer.Stop() }, nil
}
