package syncache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyConstruction(t *testing.T) {
	assert.Equal(t, Key{"teacher", "42"}, K("teacher", 42))
	assert.Equal(t, Key{"teacher", "42"}, K("teacher", "42"))
	assert.Equal(t, "teacher/42", K("teacher", 42).String())
	assert.Equal(t, Key{}, K())
}

func TestKeyEqual(t *testing.T) {
	assert.True(t, K("teacher", 1).Equal(K("teacher", 1)))
	assert.False(t, K("teacher", 1).Equal(K("teacher", 2)))
	assert.False(t, K("teacher", 1).Equal(K("teacher")))
	assert.False(t, K("teacher").Equal(K("student")))
	assert.True(t, K().Equal(Key{}))
}

func TestKeyHasPrefix(t *testing.T) {
	key := K("teacher", 7, "schedule")
	assert.True(t, key.HasPrefix(K("teacher")))
	assert.True(t, key.HasPrefix(K("teacher", 7)))
	assert.True(t, key.HasPrefix(key))
	assert.True(t, key.HasPrefix(K()))
	assert.False(t, key.HasPrefix(K("student")))
	assert.False(t, key.HasPrefix(K("teacher", 8)))
	assert.False(t, K("teacher").HasPrefix(key))
}

func TestKeyClone(t *testing.T) {
	key := K("teacher", 1)
	cloned := key.clone()
	cloned[1] = "2"
	assert.Equal(t, "1", key[1])
}
