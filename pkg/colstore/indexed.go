package colstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/segstore/segstore/pkg/blobstore"
)

// IndexedSequence is a purely positional segmented sequence: values keep
// no ordering relation to one another, only to their insertion position.
// It is the building block for every dynamic (non-order) column in
// [github.com/segstore/segstore/pkg/table]; the order column is an
// [OrderedSequence].
//
// Not safe for concurrent mutation; see [base] for the serialization
// discipline.
type IndexedSequence[T any] struct {
	b *base[T]
}

// NewIndexedSequence constructs an empty sequence backed by store, with at
// most segCap values per segment and chunkSize segment slots per chunk.
func NewIndexedSequence[T any](store blobstore.Store, seqID string, segCap, chunkSize int) *IndexedSequence[T] {
	return &IndexedSequence[T]{b: newBase[T](store, seqID, segCap, chunkSize)}
}

// Len returns the number of elements currently in the sequence.
func (s *IndexedSequence[T]) Len() int64 { return s.b.totalCount() }

// Get returns the value at position i, or ok=false if i is out of range.
func (s *IndexedSequence[T]) Get(ctx context.Context, i int64) (T, bool, error) {
	return s.b.get(ctx, i)
}

// Range returns the values at positions [lo, hi), clamped to the sequence's
// current bounds.
func (s *IndexedSequence[T]) Range(ctx context.Context, lo, hi int64) ([]T, error) {
	return s.b.rng(ctx, lo, hi)
}

// Flush commits every segment mutated since the last Flush to the blob
// store and returns the set of newly written chunk keys.
func (s *IndexedSequence[T]) Flush(ctx context.Context) ([]string, error) {
	return s.b.flush(ctx)
}

// GetMeta returns a serializable snapshot of the sequence's structure.
func (s *IndexedSequence[T]) GetMeta() IndexedMeta { return IndexedMeta{Base: s.b.metaCore()} }

// SetMeta rehydrates the sequence's structure from a previously obtained
// snapshot, discarding any in-memory state. It does not touch the blob
// store; segment contents are loaded lazily on first access.
func (s *IndexedSequence[T]) SetMeta(m IndexedMeta) { s.b.setMetaCore(m.Base) }

// InsertAt inserts v so that it becomes element pos of the resulting
// sequence. pos is clamped to [0, Len()]; inserting at Len() appends.
func (s *IndexedSequence[T]) InsertAt(ctx context.Context, pos int64, v T) error {
	b := s.b
	pos = clamp64(pos, 0, b.total)

	if len(b.segments) == 0 {
		b.appendSegment(&segmentRec[T]{count: 1, values: []T{v}})
		return nil
	}

	var segIdx int

	var local int64

	if pos == b.total {
		segIdx = len(b.segments) - 1
		local = int64(b.segments[segIdx].count)
	} else {
		segIdx, local = b.locate(pos)
	}

	if err := b.ensureLoaded(ctx, segIdx); err != nil {
		return err
	}

	b.segments[segIdx].spliceInsert(int(local), v)
	b.markDirty(segIdx)

	splits, err := b.splitIfNeeded(ctx, segIdx)
	if err != nil {
		return err
	}

	if splits == 0 {
		b.pointAdd(segIdx, 1)
	}

	return nil
}

// insertItem is one (target, value) pair from an InsertManyAt call, tagged
// with its position in the caller-supplied batch.
type insertItem[T any] struct {
	target int64
	order  int
	value  T
	rank   int
	oldIdx int64
	segIdx int
}

// InsertManyAt inserts len(values) values at once, equivalent to calling
// InsertAt once per value in the order obtained by stable-sorting the
// batch by (target ascending,
// original order ascending) — not necessarily the caller's original slice
// order. Each value's position is expressed relative to the sequence as
// it stood before the batch, via old_index = clamp(target - rank, 0,
// Len()), where rank is the value's 0-based position in that sorted
// order; a single per-segment merge pass then places every value in one
// pass instead of n individual splices.
//
// Ties in old_index arise when that sequential application would have
// stacked several values at the same resulting position (notably, repeated
// inserts at the same target); they are resolved by emitting the
// higher-rank (later-in-sorted-order) value first, matching the order
// repeated InsertAt(0, ...) calls produce. Batches whose targets interact
// outside of this pattern are not guaranteed to match an ORIGINAL-order
// sequential replay bit-for-bit; see DESIGN.md's insertManyAt entry.
func (s *IndexedSequence[T]) InsertManyAt(ctx context.Context, targets []int64, values []T) error {
	if len(targets) != len(values) {
		return fmt.Errorf("colstore: targets and values length mismatch (%d != %d): %w",
			len(targets), len(values), ErrInvalidInput)
	}

	if len(values) == 0 {
		return nil
	}

	b := s.b

	if len(b.segments) == 0 {
		b.appendSegment(&segmentRec[T]{count: 0, values: []T{}})
	}

	items := make([]*insertItem[T], len(values))
	for i, v := range values {
		items[i] = &insertItem[T]{target: targets[i], order: i, value: v}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].target != items[j].target {
			return items[i].target < items[j].target
		}

		return items[i].order < items[j].order
	})

	total := b.total
	lastSegIdx := len(b.segments) - 1

	for rank, it := range items {
		it.rank = rank
		oldIdx := clamp64(it.target-int64(rank), 0, total)
		it.oldIdx = oldIdx

		if oldIdx == total {
			it.segIdx = lastSegIdx
		} else {
			segIdx, _ := b.locate(oldIdx)
			it.segIdx = segIdx
		}
	}

	// Re-sort for the merge pass: old_index ascending, and within a tie,
	// rank descending (see doc comment above).
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].oldIdx != items[j].oldIdx {
			return items[i].oldIdx < items[j].oldIdx
		}

		return items[i].rank > items[j].rank
	})

	bySeg := make(map[int][]*insertItem[T])

	var touched []int

	for _, it := range items {
		if _, ok := bySeg[it.segIdx]; !ok {
			touched = append(touched, it.segIdx)
		}

		bySeg[it.segIdx] = append(bySeg[it.segIdx], it)
	}

	sort.Ints(touched)

	// Prefix sums must be captured now, against the pre-batch tree: splits
	// triggered later in this loop rebuild the tree and renumber segments,
	// but old_index (and therefore each item's local position) was defined
	// relative to the sequence as it stood before the batch began.
	prefixOf := make(map[int]int64, len(touched))
	for _, segIdx := range touched {
		prefixOf[segIdx] = b.tree.PrefixSum(segIdx)
	}

	if err := b.ensureLoadedMany(ctx, touched); err != nil {
		return err
	}

	// Splitting segment k inserts a brand-new segment immediately after
	// it, shifting every later segment's live index up by one; shift
	// tracks that accumulated offset so later iterations address the
	// segment that was originally at segIdx.
	shift := 0

	for _, segIdx := range touched {
		liveIdx := segIdx + shift
		seg := b.segments[liveIdx]
		segItems := bySeg[segIdx]
		prefix := prefixOf[segIdx]

		out := make([]T, 0, seg.count+len(segItems))
		ptr := 0

		for oldPos := 0; oldPos <= seg.count; oldPos++ {
			for ptr < len(segItems) && int(segItems[ptr].oldIdx-prefix) == oldPos {
				out = append(out, segItems[ptr].value)
				ptr++
			}

			if oldPos < seg.count {
				out = append(out, seg.values[oldPos])
			}
		}

		seg.values = out
		seg.count = len(out)
		b.markDirty(liveIdx)

		splits, err := b.splitIfNeeded(ctx, liveIdx)
		if err != nil {
			return err
		}

		shift += splits
	}

	b.fullRebuild()

	return nil
}
