package colstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/segstore/segstore/pkg/blobstore"
)

// chunkStore is the copy-on-write chunk layer shared by [IndexedSequence]
// and [OrderedSequence]. It owns the append-only cidx->key table and an
// in-process decode cache, keyed by chunk index.
//
// Sequence-level mutation (InsertAt, InsertManyAt, splits) is still
// single-writer, like the rest of colstore. But load and commit are called
// concurrently across distinct chunk indices from [base.ensureLoadedMany]
// and [base.flush], so the key table and decode cache themselves need their
// own lock: mu guards keys and cache, while the blocking store round trip in
// load/commit runs with it released, so concurrent loads of distinct chunks
// still overlap instead of serializing behind the bookkeeping.
type chunkStore[T any] struct {
	store     blobstore.Store
	seqID     string
	chunkSize int // C; always >= 1 (C <= 0 is normalized to 1 at construction)

	mu    sync.Mutex
	keys  []string      // keys[cidx] = current blob key, "" if never committed
	cache map[int][][]T // decoded slot arrays per cidx
}

func newChunkStore[T any](store blobstore.Store, seqID string, chunkSize int) *chunkStore[T] {
	if chunkSize <= 0 {
		chunkSize = 1
	}

	return &chunkStore[T]{
		store:     store,
		seqID:     seqID,
		chunkSize: chunkSize,
		cache:     make(map[int][][]T),
	}
}

func (cs *chunkStore[T]) ensureKeysLen(n int) {
	for len(cs.keys) < n {
		cs.keys = append(cs.keys, "")
	}
}

// load returns the C slot arrays for chunk cidx, loading from the store (or
// returning C empty slots for a never-written chunk) on first access and
// serving from the in-process cache thereafter. The store round trip itself
// runs without mu held, so concurrent loads of distinct chunks (see
// [base.ensureLoadedMany]) overlap instead of queuing behind one another.
func (cs *chunkStore[T]) load(ctx context.Context, cidx int) ([][]T, error) {
	cs.mu.Lock()

	if slots, ok := cs.cache[cidx]; ok {
		cs.mu.Unlock()
		return slots, nil
	}

	cs.ensureKeysLen(cidx + 1)
	key := cs.keys[cidx]

	cs.mu.Unlock()

	if key == "" {
		return cs.storeSlots(cidx, make([][]T, cs.chunkSize)), nil
	}

	data, ok, err := cs.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("colstore: load chunk %d: %w", cidx, err)
	}

	var slots [][]T

	if !ok {
		slots = make([][]T, cs.chunkSize)
	} else {
		payload, err := gobDecode[T](data)
		if err != nil {
			return nil, fmt.Errorf("colstore: load chunk %d: %w", cidx, err)
		}

		slots = payload.Slots
		for len(slots) < cs.chunkSize {
			slots = append(slots, nil)
		}
	}

	return cs.storeSlots(cidx, slots), nil
}

// storeSlots records slots as cidx's cached decode and returns it, unless a
// concurrent load for the same cidx already won the race and cached first,
// in which case every caller converges on whichever slots arrived first.
func (cs *chunkStore[T]) storeSlots(cidx int, slots [][]T) [][]T {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if existing, ok := cs.cache[cidx]; ok {
		return existing
	}

	cs.cache[cidx] = slots

	return slots
}

// commit writes a new chunk blob for cidx combining the current contents
// (loaded fresh if not already cached) with overrides, keyed by slot index
// within the chunk. Slots not present in overrides are preserved verbatim.
// Returns the new key.
func (cs *chunkStore[T]) commit(ctx context.Context, cidx int, overrides map[int][]T) (string, error) {
	current, err := cs.load(ctx, cidx)
	if err != nil {
		return "", err
	}

	newSlots := make([][]T, len(current))
	copy(newSlots, current)

	for slot, values := range overrides {
		cp := make([]T, len(values))
		copy(cp, values)
		newSlots[slot] = cp
	}

	data, err := gobEncode(chunkPayload[T]{Slots: newSlots})
	if err != nil {
		return "", err
	}

	newKey := newChunkKey(cs.seqID, cidx)
	if err := cs.store.Set(ctx, newKey, data); err != nil {
		return "", fmt.Errorf("colstore: commit chunk %d: %w", cidx, err)
	}

	cs.mu.Lock()
	cs.ensureKeysLen(cidx + 1)
	cs.keys[cidx] = newKey
	cs.cache[cidx] = newSlots
	cs.mu.Unlock()

	return newKey, nil
}

// keysSnapshot returns a copy of the current chunk key table, safe for a
// caller to retain as part of a meta snapshot.
func (cs *chunkStore[T]) keysSnapshot() []string {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	out := make([]string, len(cs.keys))
	copy(out, cs.keys)

	return out
}

// reset replaces the key table with keys and drops the decode cache, so a
// rehydrated sequence starts with no resident chunk payloads.
func (cs *chunkStore[T]) reset(keys []string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.keys = append([]string(nil), keys...)
	cs.cache = make(map[int][][]T)
}

// slotFor returns the (chunk index, slot-within-chunk) coordinates for a
// segment index.
func (cs *chunkStore[T]) slotFor(segIdx int) (cidx, slot int) {
	return segIdx / cs.chunkSize, segIdx % cs.chunkSize
}

// size returns C, the configured number of segment slots per chunk.
func (cs *chunkStore[T]) size() int { return cs.chunkSize }
