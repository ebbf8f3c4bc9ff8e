package colstore

import (
	"fmt"

	"github.com/google/uuid"
)

// newChunkKey mints a fresh, collision-resistant blob key for a chunk
// commit. UUIDv7 embeds a millisecond timestamp in its high bits and fills
// the rest with randomness, so commits are naturally time-ordered without
// requiring callers to parse the key's shape.
//
// Grounded on the teacher's internal/store/ids.go NewUUIDv7 helper.
func newChunkKey(seqID string, cidx int) string {
	id, err := uuid.NewV7()
	if err != nil {
		// crypto/rand failure is effectively unrecoverable for the process;
		// fall back to the all-random v4 form, which itself panics if
		// randomness is still unavailable.
		id = uuid.New()
	}

	return fmt.Sprintf("%s/chunk/%d/%s", seqID, cidx, id.String())
}
