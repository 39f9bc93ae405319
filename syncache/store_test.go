package syncache

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	clock := newFakeClock()
	s := newStore(clock.Now)
	key := K("teacher", 1)
	policy := Policy{StaleTime: 5 * time.Second, RetentionTime: time.Minute}

	_, ok := s.get(key)
	assert.False(t, ok)

	s.set(key, "A", policy)
	res, ok := s.get(key)
	require.True(t, ok)
	assert.Equal(t, "A", res.Data)
	assert.True(t, res.HasData)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.False(t, res.IsStale)
	assert.Equal(t, clock.Now(), res.FetchedAt)
}

func TestStoreStalenessWindow(t *testing.T) {
	clock := newFakeClock()
	s := newStore(clock.Now)
	key := K("teacher", 1)
	s.set(key, "A", Policy{StaleTime: 5 * time.Second, RetentionTime: time.Minute})

	clock.Advance(4 * time.Second)
	res, ok := s.get(key)
	require.True(t, ok)
	assert.Equal(t, "A", res.Data)
	assert.False(t, res.IsStale)

	clock.Advance(2 * time.Second)
	res, ok = s.get(key)
	require.True(t, ok)
	assert.Equal(t, "A", res.Data)
	assert.True(t, res.IsStale)
}

func TestStoreSetClearsStale(t *testing.T) {
	clock := newFakeClock()
	s := newStore(clock.Now)
	key := K("teacher", 1)
	policy := Policy{StaleTime: time.Second, RetentionTime: time.Minute}
	s.set(key, "A", policy)
	s.markStaleMatching(func(k Key) bool { return k.Equal(key) })

	res, _ := s.get(key)
	assert.True(t, res.IsStale)

	s.set(key, "B", policy)
	res, _ = s.get(key)
	assert.False(t, res.IsStale)
	assert.Equal(t, "B", res.Data)
}

func TestStoreFailFetchKeepsPriorData(t *testing.T) {
	clock := newFakeClock()
	s := newStore(clock.Now)
	key := K("teacher", 1)
	policy := Policy{StaleTime: time.Second, RetentionTime: time.Minute}
	s.set(key, "A", policy)

	s.failFetch(key, errors.New("backend down"))
	res, ok := s.get(key)
	require.True(t, ok)
	assert.Equal(t, StatusError, res.Status)
	assert.True(t, res.HasData)
	assert.Equal(t, "A", res.Data)
	assert.Error(t, res.Err)
}

func TestStoreFindMatching(t *testing.T) {
	clock := newFakeClock()
	s := newStore(clock.Now)
	policy := Policy{StaleTime: time.Second, RetentionTime: time.Minute}
	s.set(K("teacher", 1), "A", policy)
	s.set(K("teacher", 2), "B", policy)
	s.set(K("student", 1), "C", policy)

	matches := s.findMatching(func(k Key) bool { return k.HasPrefix(K("teacher")) })
	assert.Len(t, matches, 2)
	all := s.findMatching(func(Key) bool { return true })
	assert.Len(t, all, 3)
	assert.Equal(t, 3, s.len())

	assert.True(t, s.remove(K("student", 1)))
	assert.False(t, s.remove(K("student", 1)))
	assert.Equal(t, 2, s.len())
}

func TestStoreSubscribeNotifies(t *testing.T) {
	clock := newFakeClock()
	s := newStore(clock.Now)
	key := K("teacher", 1)
	policy := Policy{StaleTime: time.Minute, RetentionTime: time.Minute}

	var got []Result
	res, first := s.subscribe(key, policy, nil, "sub-1", func(r Result) { got = append(got, r) })
	assert.True(t, first)
	assert.False(t, res.HasData)
	assert.Equal(t, StatusIdle, res.Status)

	_, second := s.subscribe(key, policy, nil, "sub-2", func(Result) {})
	assert.False(t, second)

	s.set(key, "A", policy)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Data)

	s.unsubscribe(key, "sub-1")
	s.set(key, "B", policy)
	assert.Len(t, got, 1)
}
