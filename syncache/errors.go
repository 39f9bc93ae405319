package syncache

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrUnknownClass is returned by Resolver.Resolve for a class that was
	// never registered. This is a programming error: unlike fetch failures
	// it propagates synchronously to the caller and is never retried.
	ErrUnknownClass = errors.New("syncache: unknown policy class")

	// ErrClosed is returned for operations on a closed Client.
	ErrClosed = errors.New("syncache: client closed")

	// errClientRejected marks errors the transport classified as
	// non-retryable (validation failures, auth rejections, 4xx-style
	// responses).
	errClientRejected = errors.New("client rejected")

	// ErrSaveConflict is reserved for concurrent-editor conflicts reported
	// by a save capability. It currently classifies as a client rejection:
	// retrying the identical payload cannot resolve the conflict.
	ErrSaveConflict = errors.Mark(errors.New("syncache: save conflict"), errClientRejected)
)

// AsClientRejection marks err as a terminal client-side rejection. The
// fetch coordinator will not retry errors carrying this mark; everything
// else is treated as a transient network failure and retried with backoff.
// Transports own the classification rule and apply the mark at the
// boundary, e.g.:
//
//	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
//	    return nil, syncache.AsClientRejection(errors.Newf("status %d", resp.StatusCode))
//	}
func AsClientRejection(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, errClientRejected)
}

// IsClientRejection reports whether err carries the client-rejection mark
// anywhere in its chain.
func IsClientRejection(err error) bool {
	return errors.Is(err, errClientRejected)
}
