package syncache

import "time"

// run is the garbage collection loop. Entries with subscribers are never
// collected regardless of age; everything else goes once idle past its
// retention window. This bounds memory over a long-lived session without
// penalizing actively viewed data.
func (c *Client) run() {
	defer c.waitGroup.Done()
	ticker := time.NewTicker(c.gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if removed := c.store.sweep(); removed > 0 {
				c.stats.evictions.Add(int64(removed))
				c.log.WithField("removed", removed).Debug("gc sweep")
			}
		}
	}
}
