// Package blobstore defines the opaque key-value contract that segstore's
// chunk layer persists against, plus an in-memory reference implementation
// and a disk-backed one.
//
// Implementations must hand out values that are semantically independent of
// the stored value: mutating bytes returned from Get must never be visible
// to a later Get of the same key, and mutating the slice passed to Set must
// never be visible to the stored value either.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound names the missing-key condition for implementations that
// report it as an error. Neither [Memory] nor [Disk] returns it: both report
// a missing key through Get's ok=false.
var ErrNotFound = errors.New("blobstore: key not found")

// Store is the pluggable persistence backend for colstore chunks and table
// meta snapshots.
//
// No ordering is assumed between concurrent Set calls to unrelated keys.
// Implementations must provide read-your-writes consistency: once a Set for
// a key returns, a subsequent Get for that same key observes it.
type Store interface {
	// Get returns the bytes stored at key, or ok=false if the key has never
	// been set. The returned slice is a deep copy the caller owns.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Set stores data at key, replacing any previous value. The
	// implementation must deep-copy data; the caller may reuse or mutate it
	// after Set returns.
	Set(ctx context.Context, key string, data []byte) error
}
