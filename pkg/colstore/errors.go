package colstore

import "errors"

// Error classification for colstore operations.
//
// Invariant-violation errors are unrecoverable for the sequence that raised
// them: callers should discard the sequence rather than retry.
// Store-failure errors simply propagate from the underlying
// [blobstore.Store] and may be retried once the backing issue clears.
var (
	// ErrInvariant indicates an internal invariant was violated (a segment
	// with no slot in its loaded chunk, or a loaded slot whose length does
	// not match the segment's recorded count). Unrecoverable: discard the
	// sequence.
	ErrInvariant = errors.New("colstore: invariant violation")

	// ErrInvalidInput indicates invalid arguments (mismatched
	// targets/values lengths in InsertManyAt).
	ErrInvalidInput = errors.New("colstore: invalid input")
)
