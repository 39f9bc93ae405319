package syncache

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

type config struct {
	logger     logrus.FieldLogger
	resolver   *Resolver
	retry      RetryConfig
	gcInterval time.Duration
	clock      func() time.Time
}

// Option configures a Client.
type Option func(*config)

func defaultConfig() config {
	silent := logrus.New()
	silent.SetOutput(io.Discard)
	return config{
		logger:     silent,
		resolver:   NewResolver(),
		retry:      DefaultRetryConfig(),
		gcInterval: time.Minute,
		clock:      time.Now,
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *config) {
		c.logger = log
	}
}

// WithResolver replaces the built-in policy resolver.
func WithResolver(r *Resolver) Option {
	return func(c *config) {
		c.resolver = r
	}
}

// WithRetry replaces the fetch retry parameters.
func WithRetry(retry RetryConfig) Option {
	return func(c *config) {
		c.retry = retry
	}
}

// WithGCInterval sets how often the garbage collector sweeps.
func WithGCInterval(interval time.Duration) Option {
	return func(c *config) {
		c.gcInterval = interval
	}
}

// WithClock overrides the time source. Intended for tests that need to
// drive staleness and retention deterministically.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.clock = now
	}
}

// Client is the process-wide cache and synchronization engine. Create one
// at process start, share it across all consumers, and Close it on
// shutdown. All methods are safe for concurrent use.
type Client struct {
	ctx        context.Context
	cancel     context.CancelFunc
	waitGroup  sync.WaitGroup
	once       sync.Once
	store      *store
	coord      *coordinator
	resolver   *Resolver
	log        logrus.FieldLogger
	stats      stats
	gcInterval time.Duration
}

// New creates a Client and starts its garbage collection loop. The loop
// stops when parent is cancelled or Close is called.
func New(parent context.Context, opts ...Option) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx, cancel := context.WithCancel(parent)
	c := &Client{
		ctx:        ctx,
		cancel:     cancel,
		resolver:   cfg.resolver,
		log:        cfg.logger,
		gcInterval: cfg.gcInterval,
	}
	c.store = newStore(cfg.clock)
	c.coord = &coordinator{
		store: c.store,
		stats: &c.stats,
		retry: cfg.retry,
		log:   cfg.logger,
	}
	c.waitGroup.Add(1)
	go c.run()
	return c
}

// Close stops the garbage collector and rejects further operations.
// In-flight fetches are allowed to settle.
func (c *Client) Close() {
	c.once.Do(func() {
		c.cancel()
		c.waitGroup.Wait()
	})
}

// Fetch is the one-shot read-through path: fresh cached data when
// available, otherwise a (deduplicated, retried) transport call. It does
// not subscribe; use Watch for consumers that stay interested in the key.
func (c *Client) Fetch(ctx context.Context, key Key, fetch FetchFunc, class Class) (any, error) {
	if err := c.ctx.Err(); err != nil {
		return nil, ErrClosed
	}
	policy, err := c.resolver.Resolve(class)
	if err != nil {
		return nil, err
	}
	return c.coord.request(ctx, key, fetch, policy)
}

// Peek returns the current entry snapshot for key without any fetch or
// subscription side effects.
func (c *Client) Peek(key Key) (Result, bool) {
	return c.store.get(key)
}

// Size returns the number of live cache entries.
func (c *Client) Size() int {
	return c.store.len()
}

// Stats returns a snapshot of the engine counters.
func (c *Client) Stats() Stats {
	return c.stats.snapshot()
}

// refetch runs one background revalidation. Errors never propagate to
// whoever triggered the refetch; they land on the entry as StatusError.
func (c *Client) refetch(target refetchTarget) {
	c.stats.refetches.Add(1)
	if _, err := c.coord.request(c.ctx, target.key, target.fetch, target.policy); err != nil {
		c.log.WithField("key", target.key.String()).WithError(err).Debug("background refetch failed")
	}
}

// Get is a typed wrapper around Client.Fetch.
func Get[T any](ctx context.Context, c *Client, key Key, fetch FetchFunc, class Class) (T, error) {
	data, err := c.Fetch(ctx, key, fetch, class)
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := data.(T)
	if !ok {
		var zero T
		return zero, errors.Newf("syncache: cannot convert cached value of type %T to %T", data, zero)
	}
	return typed, nil
}
