package syncache

import (
	"fmt"
	"strings"
)

// Key identifies a logical resource as an ordered sequence of segments,
// e.g. K("teacher", teacherID). Keys are compared structurally: two keys
// are equal when they have the same length and the same segments in order.
type Key []string

// K builds a Key from arbitrary parts. Non-string parts are rendered with
// their default fmt formatting, so K("student", 42) and K("student", "42")
// produce the same key.
func K(parts ...any) Key {
	key := make(Key, len(parts))
	for i, part := range parts {
		if s, ok := part.(string); ok {
			key[i] = s
			continue
		}
		key[i] = fmt.Sprintf("%v", part)
	}
	return key
}

// Equal reports whether k and other have identical segments.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether the first len(prefix) segments of k equal
// prefix. Every key is prefixed by the empty key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// String renders the key as its slash-joined segments. The rendered form
// indexes the entry table and the in-flight fetch group, so it must be
// stable for a given key.
func (k Key) String() string {
	return strings.Join(k, "/")
}

// clone returns an independent copy so store-held keys cannot be mutated
// through a caller-retained slice.
func (k Key) clone() Key {
	out := make(Key, len(k))
	copy(out, k)
	return out
}
