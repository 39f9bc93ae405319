package syncache

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverBuiltins(t *testing.T) {
	r := NewResolver()
	for _, class := range []Class{ClassVolatile, ClassModerate, ClassStatic} {
		policy, err := r.Resolve(class)
		require.NoError(t, err)
		assert.Greater(t, policy.RetentionTime, time.Duration(0))
		assert.GreaterOrEqual(t, policy.RetentionTime, policy.StaleTime)
	}
	volatile, err := r.Resolve(ClassVolatile)
	require.NoError(t, err)
	static, err := r.Resolve(ClassStatic)
	require.NoError(t, err)
	assert.Less(t, volatile.StaleTime, static.StaleTime)
	assert.True(t, volatile.RefetchOnFocus)
	assert.False(t, static.RefetchOnFocus)
}

func TestResolverUnknownClass(t *testing.T) {
	r := NewResolver()
	_, err := r.Resolve("made-up")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownClass))
}

func TestResolverRegister(t *testing.T) {
	r := NewResolver()
	r.Register("exam-session", Policy{StaleTime: time.Second, RetentionTime: time.Minute})
	policy, err := r.Resolve("exam-session")
	require.NoError(t, err)
	assert.Equal(t, time.Second, policy.StaleTime)
}

func TestResolverLoadClasses(t *testing.T) {
	r := NewResolver()
	err := r.LoadClasses([]byte(`
classes:
  volatile:
    stale_time: 10s
    retention_time: 2m
    refetch_on_focus: true
    refetch_on_mount: true
  reference:
    stale_time: 1d
    retention_time: 2d
`))
	require.NoError(t, err)

	volatile, err := r.Resolve(ClassVolatile)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, volatile.StaleTime)
	assert.Equal(t, 2*time.Minute, volatile.RetentionTime)
	assert.True(t, volatile.RefetchOnMount)
	assert.False(t, volatile.RefetchOnReconnect)

	reference, err := r.Resolve("reference")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, reference.StaleTime)
	assert.Equal(t, 48*time.Hour, reference.RetentionTime)

	// Built-ins not mentioned in the file stay intact.
	_, err = r.Resolve(ClassStatic)
	assert.NoError(t, err)
}

func TestResolverLoadClassesBadInput(t *testing.T) {
	r := NewResolver()
	assert.Error(t, r.LoadClasses([]byte("classes: [not, a, map]")))
	assert.Error(t, r.LoadClasses([]byte("classes:\n  broken:\n    stale_time: soon\n    retention_time: 1m")))
}
