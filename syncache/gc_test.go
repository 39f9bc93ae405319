package syncache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepRemovesIdleEntries(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	// Long interval: the sweeps in this test are driven manually.
	client := New(ctx, WithClock(clock.Now), WithGCInterval(time.Hour), WithRetry(fastRetry()))
	defer client.Close()

	key := K("teacher", 1)
	_, err := client.Fetch(ctx, key, func(ctx context.Context) (any, error) { return "data", nil }, ClassModerate)
	require.NoError(t, err)

	// Inside the retention window nothing is collected.
	assert.Equal(t, 0, client.store.sweep())
	_, ok := client.Peek(key)
	assert.True(t, ok)

	moderate, err := client.resolver.Resolve(ClassModerate)
	require.NoError(t, err)
	clock.Advance(moderate.RetentionTime + time.Second)
	assert.Equal(t, 1, client.store.sweep())
	_, ok = client.Peek(key)
	assert.False(t, ok)
}

func TestSweepExemptsSubscribedEntries(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	client := New(ctx, WithClock(clock.Now), WithGCInterval(time.Hour), WithRetry(fastRetry()))
	defer client.Close()

	key := K("teacher", 1)
	sub, err := client.Watch(key, func(ctx context.Context) (any, error) { return "data", nil }, ClassModerate)
	require.NoError(t, err)
	waitFor(t, time.Second, func() bool { return sub.Snapshot().Status == StatusSuccess })

	clock.Advance(365 * 24 * time.Hour)
	assert.Equal(t, 0, client.store.sweep())
	_, ok := client.Peek(key)
	assert.True(t, ok)

	// Once the subscriber goes away the entry is collectable again.
	sub.Close()
	assert.Equal(t, 1, client.store.sweep())
	_, ok = client.Peek(key)
	assert.False(t, ok)
}

func TestSweepUsesCreationTimeForUnpopulatedEntries(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	client := New(ctx, WithClock(clock.Now), WithGCInterval(time.Hour), WithRetry(fastRetry()))
	defer client.Close()

	// A failed fetch leaves an entry with no data; it ages from creation.
	key := K("teacher", 1)
	_, err := client.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return nil, AsClientRejection(assert.AnError)
	}, ClassModerate)
	require.Error(t, err)
	_, ok := client.Peek(key)
	require.True(t, ok)

	moderate, err := client.resolver.Resolve(ClassModerate)
	require.NoError(t, err)
	clock.Advance(moderate.RetentionTime + time.Second)
	assert.Equal(t, 1, client.store.sweep())
}

func TestBackgroundSweepLoop(t *testing.T) {
	ctx := context.Background()
	client := New(ctx,
		WithGCInterval(10*time.Millisecond),
		WithRetry(fastRetry()),
		WithResolver(func() *Resolver {
			r := NewResolver()
			r.Register("blink", Policy{StaleTime: time.Millisecond, RetentionTime: 5 * time.Millisecond})
			return r
		}()),
	)
	defer client.Close()

	key := K("teacher", 1)
	_, err := client.Fetch(ctx, key, func(ctx context.Context) (any, error) { return "data", nil }, "blink")
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool {
		_, ok := client.Peek(key)
		return !ok
	})
	assert.GreaterOrEqual(t, client.Stats().Evictions, int64(1))
}
