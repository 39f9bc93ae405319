package syncache

import (
	"context"
	"math/rand"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// RetryConfig controls how the fetch coordinator retries transient
// failures. Client rejections (see AsClientRejection) and context
// cancellation are never retried.
type RetryConfig struct {
	// MaxAttempts is the total attempt ceiling including the first try.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential growth of the delay.
	MaxBackoff time.Duration

	// BackoffMultiplier scales the delay after each failed attempt.
	BackoffMultiplier float64

	// Jitter randomizes each delay between 50% and 100% of its nominal
	// value to avoid synchronized retry bursts.
	Jitter bool
}

// DefaultRetryConfig returns the retry parameters used when a Client is
// constructed without WithRetry.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       4,
		InitialBackoff:    250 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// coordinator is the single gateway to the transport. It owns the
// cache-hit fast path, per-key deduplication of concurrent fetches, the
// retry loop, and writing settled results back into the store.
type coordinator struct {
	store *store
	stats *stats
	retry RetryConfig
	log   logrus.FieldLogger
	group singleflight.Group
}

// request returns the value for key, from cache when fresh, otherwise via
// the transport. N concurrent callers for the same key produce exactly one
// transport call; every caller receives the same settled result.
func (c *coordinator) request(ctx context.Context, key Key, fetch FetchFunc, policy Policy) (any, error) {
	if res, ok := c.store.get(key); ok && res.Status == StatusSuccess && !res.IsStale {
		c.stats.hits.Add(1)
		return res.Data, nil
	}
	c.stats.misses.Add(1)

	data, err, shared := c.group.Do(key.String(), func() (any, error) {
		c.store.beginFetch(key, policy, fetch)
		c.stats.fetches.Add(1)
		data, err := c.fetchWithRetry(ctx, key, fetch)
		if err != nil {
			c.stats.fetchErrors.Add(1)
			c.store.failFetch(key, err)
			return nil, err
		}
		c.store.set(key, data, policy)
		return data, nil
	})
	if shared {
		c.stats.sharedFetches.Add(1)
	}
	return data, err
}

// fetchWithRetry runs the transport call with exponential backoff.
func (c *coordinator) fetchWithRetry(ctx context.Context, key Key, fetch FetchFunc) (any, error) {
	backoff := c.retry.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		data, err := fetch(ctx)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if IsClientRejection(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, errors.Wrap(lastErr, "syncache: fetch cancelled")
		}
		if attempt == c.retry.MaxAttempts {
			break
		}

		c.stats.retries.Add(1)
		delay := backoff
		if c.retry.Jitter {
			delay = delay/2 + time.Duration(rand.Int63n(int64(delay/2)+1))
		}
		c.log.WithFields(logrus.Fields{
			"key":     key.String(),
			"attempt": attempt,
			"delay":   delay,
		}).WithError(err).Debug("fetch failed, retrying")

		select {
		case <-ctx.Done():
			return nil, errors.Wrap(lastErr, "syncache: fetch cancelled")
		case <-time.After(delay):
		}

		backoff = time.Duration(float64(backoff) * c.retry.BackoffMultiplier)
		if backoff > c.retry.MaxBackoff {
			backoff = c.retry.MaxBackoff
		}
	}

	return nil, errors.Wrapf(lastErr, "syncache: fetch %s failed after %d attempts", key, c.retry.MaxAttempts)
}
