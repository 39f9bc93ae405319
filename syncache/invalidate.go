package syncache

// InvalidateExact marks the entry for key stale. If the entry has live
// subscribers, exactly one background refetch is started; its failure is
// recorded on the entry, never returned here. Invalidating an already
// stale entry is a no-op beyond that refetch trigger.
func (c *Client) InvalidateExact(key Key) {
	c.invalidate(func(k Key) bool { return k.Equal(key) })
}

// InvalidateByPrefix marks every entry whose key starts with prefix stale.
// InvalidateByPrefix(K("teacher")) covers K("teacher"), K("teacher", id),
// K("teacher", id, "schedule"), and nothing else.
func (c *Client) InvalidateByPrefix(prefix Key) {
	c.invalidate(func(k Key) bool { return k.HasPrefix(prefix) })
}

// InvalidateAll marks every entry stale.
func (c *Client) InvalidateAll() {
	c.invalidate(func(Key) bool { return true })
}

func (c *Client) invalidate(pred func(Key) bool) {
	marked, targets := c.store.markStaleMatching(pred)
	c.stats.invalidations.Add(int64(marked))
	if c.ctx.Err() != nil {
		return
	}
	for _, target := range targets {
		go c.refetch(target)
	}
}
