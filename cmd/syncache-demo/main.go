// syncache-demo drives the cache engine against a simulated backend:
// watched keys, hover prefetches, invalidation bursts, and a debounced
// auto-save session, with the final counters logged at the end.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/conservo/go-sync/autosave"
	"github.com/conservo/go-sync/syncache"
)

type options struct {
	keys     int
	duration time.Duration
	failRate float64
	logLevel string
}

// backend simulates the remote service: latency, a configurable transient
// failure rate, and a record table mutated by saves.
type backend struct {
	mu       sync.Mutex
	records  map[string]int
	failRate float64
	rng      *rand.Rand
	fetches  int
	saves    int
}

func newBackend(failRate float64) *backend {
	return &backend{
		records:  make(map[string]int),
		failRate: failRate,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *backend) fetch(ctx context.Context, id string) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Duration(5+rand.Intn(20)) * time.Millisecond):
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetches++
	if b.rng.Float64() < b.failRate {
		return nil, fmt.Errorf("backend: transient failure for %s", id)
	}
	return b.records[id], nil
}

func (b *backend) save(ctx context.Context, id string, value int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(10+rand.Intn(30)) * time.Millisecond):
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saves++
	if b.rng.Float64() < b.failRate {
		return fmt.Errorf("backend: transient save failure for %s", id)
	}
	b.records[id] = value
	return nil
}

func run(opts options) error {
	log := logrus.New()
	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	ctx, cancel := context.WithTimeout(context.Background(), opts.duration)
	defer cancel()

	be := newBackend(opts.failRate)
	client := syncache.New(ctx,
		syncache.WithLogger(log),
		syncache.WithGCInterval(500*time.Millisecond),
		syncache.WithRetry(syncache.RetryConfig{
			MaxAttempts:       4,
			InitialBackoff:    20 * time.Millisecond,
			MaxBackoff:        200 * time.Millisecond,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		}),
	)
	defer client.Close()

	// Watchers over a small key space, like a dashboard holding several
	// entity views open at once.
	var subs []*syncache.Subscription
	for i := 0; i < opts.keys; i++ {
		id := fmt.Sprintf("teacher-%d", i)
		key := syncache.K("teacher", id)
		sub, err := client.Watch(key, func(ctx context.Context) (any, error) {
			return be.fetch(ctx, id)
		}, syncache.ClassVolatile)
		if err != nil {
			return err
		}
		defer sub.Close()
		subs = append(subs, sub)
	}

	// Hover intent: some prefetches fire, some are cancelled before the
	// delay elapses.
	for i := 0; i < opts.keys; i++ {
		id := fmt.Sprintf("student-%d", i)
		key := syncache.K("student", id)
		cancelPrefetch, err := client.PrefetchOnIntent(key, func(ctx context.Context) (any, error) {
			return be.fetch(ctx, id)
		}, syncache.ClassModerate, 50*time.Millisecond)
		if err != nil {
			return err
		}
		if i%2 == 0 {
			cancelPrefetch()
		}
	}

	// An exam record form with a burst of edits per tick.
	recordID := "bagrut-1"
	session := autosave.New(ctx, 0, func(ctx context.Context, snapshot int) error {
		return be.save(ctx, recordID, snapshot)
	},
		autosave.WithDebounce(100*time.Millisecond),
		autosave.WithLogger(log),
		autosave.WithInvalidate(client, syncache.K("bagrut", recordID)),
	)
	defer session.Close()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	edit := 0
	for {
		select {
		case <-ctx.Done():
			stats := client.Stats()
			log.WithFields(logrus.Fields{
				"hits":          stats.Hits,
				"misses":        stats.Misses,
				"shared":        stats.SharedFetches,
				"fetches":       stats.Fetches,
				"retries":       stats.Retries,
				"refetches":     stats.Refetches,
				"invalidations": stats.Invalidations,
				"prefetches":    stats.Prefetches,
				"evictions":     stats.Evictions,
				"entries":       client.Size(),
				"backendFetch":  be.fetches,
				"backendSave":   be.saves,
			}).Info("done")
			return nil
		case <-ticker.C:
			// Edit burst: several edits, one save.
			for i := 0; i < 5; i++ {
				edit++
				session.Edit(edit)
			}
			for _, sub := range subs {
				res := sub.Snapshot()
				log.WithFields(logrus.Fields{
					"key":    res.Key.String(),
					"status": res.Status.String(),
					"stale":  res.IsStale,
				}).Debug("watch state")
			}
			if edit%25 == 0 {
				client.InvalidateByPrefix(syncache.K("teacher"))
			}
			if edit%40 == 0 {
				client.NotifyFocus()
			}
		}
	}
}

func main() {
	opts := options{}
	root := &cobra.Command{
		Use:   "syncache-demo",
		Short: "Exercise the cache and auto-save engine against a simulated backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	root.Flags().IntVar(&opts.keys, "keys", 8, "number of watched keys")
	root.Flags().DurationVar(&opts.duration, "duration", 5*time.Second, "how long to run")
	root.Flags().Float64Var(&opts.failRate, "fail-rate", 0.1, "simulated transient failure rate (0..1)")
	root.Flags().StringVar(&opts.logLevel, "log-level", "info", "logrus level")
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
