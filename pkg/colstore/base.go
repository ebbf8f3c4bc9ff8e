package colstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/segstore/segstore/internal/fanout"
	"github.com/segstore/segstore/internal/fenwick"
	"github.com/segstore/segstore/pkg/blobstore"
)

// base is the Fenwick-indexed segmented substrate shared by
// [IndexedSequence] and [OrderedSequence].
//
// Not safe for concurrent mutation. At most one mutating operation per
// sequence may be in progress at a time; callers must serialize at the
// sequence boundary. Concurrent reads while a mutation is in flight are
// unsupported.
type base[T any] struct {
	segCap int // S; maximum values per segment
	chunks *chunkStore[T]

	segments []*segmentRec[T]
	tree     *fenwick.Tree
	total    int64

	dirty map[int]bool // segment indices with unflushed mutations

	rebuildCount int // test-observable; incremented by fullRebuild
}

func newBase[T any](store blobstore.Store, seqID string, segCap, chunkSize int) *base[T] {
	if segCap <= 0 {
		segCap = 1
	}

	b := &base[T]{
		segCap: segCap,
		chunks: newChunkStore[T](store, seqID, chunkSize),
		tree:   fenwick.Build(nil),
		dirty:  make(map[int]bool),
	}

	return b
}

// totalCount returns the number of logical elements in the sequence.
func (b *base[T]) totalCount() int64 { return b.total }

// markDirty records that segIdx has unflushed mutations.
func (b *base[T]) markDirty(segIdx int) { b.dirty[segIdx] = true }

// fullRebuild recomputes the Fenwick tree (and total) from the segments'
// current counts. Called whenever the segment list itself changes (a
// split, an appended segment, SetMeta) and once at the end of every
// InsertManyAt; a single InsertAt or Insert without a split uses pointAdd
// instead.
func (b *base[T]) fullRebuild() {
	counts := make([]int64, len(b.segments))
	for i, s := range b.segments {
		counts[i] = int64(s.count)
	}

	b.tree = fenwick.Build(counts)
	b.total = b.tree.Total()
	b.rebuildCount++
}

// pointAdd applies a point update to the Fenwick tree for a single-element
// change in an existing segment (no structural change), the fast path for
// single insertAt calls that avoids a full tree rebuild.
func (b *base[T]) pointAdd(segIdx int, delta int64) {
	b.tree.Add(segIdx, delta)
	b.total += delta
}

// locate resolves a global position into (segment index, local position)
// using the Fenwick tree's canonical descent.
func (b *base[T]) locate(i int64) (segIdx int, local int64) {
	return b.tree.Locate(i)
}

// appendSegment appends a brand-new, already-loaded segment to the end of
// the segment list. Used for the "empty sequence" fast path.
func (b *base[T]) appendSegment(seg *segmentRec[T]) {
	b.segments = append(b.segments, seg)
	b.markDirty(len(b.segments) - 1)
	b.fullRebuild()
}

// insertSegmentAt splices a new segment into the list at idx (shifting
// everything from idx onward right by one), without rebuilding the tree;
// its caller, splitSegment, rebuilds the tree once the split is complete.
func (b *base[T]) insertSegmentAt(idx int, seg *segmentRec[T]) {
	b.segments = append(b.segments, nil)
	copy(b.segments[idx+1:], b.segments[idx:])
	b.segments[idx] = seg
}

// ensureLoaded makes sure segIdx's working array is resident in memory,
// loading it from the chunk layer if necessary, deep-copying the slot out
// of the chunk cache so the working array never aliases it.
func (b *base[T]) ensureLoaded(ctx context.Context, segIdx int) error {
	seg := b.segments[segIdx]
	if seg.loaded() {
		return nil
	}

	cidx, slot := b.chunks.slotFor(segIdx)

	slots, err := b.chunks.load(ctx, cidx)
	if err != nil {
		return err
	}

	if slot >= len(slots) {
		return fmt.Errorf("colstore: segment %d has no chunk slot: %w", segIdx, ErrInvariant)
	}

	values := slots[slot]
	if len(values) != seg.count {
		return fmt.Errorf("colstore: segment %d loaded length %d != count %d: %w",
			segIdx, len(values), seg.count, ErrInvariant)
	}

	cp := make([]T, len(values))
	copy(cp, values)
	seg.values = cp

	return nil
}

// ensureLoadedMany preloads every segment in segIdxs concurrently: range,
// scan, and insertManyAt must never await one segment's load before
// starting the next.
func (b *base[T]) ensureLoadedMany(ctx context.Context, segIdxs []int) error {
	_, err := fanout.All(len(segIdxs), func(i int) (struct{}, error) {
		return struct{}{}, b.ensureLoaded(ctx, segIdxs[i])
	})

	return err
}

// get returns the value at global position i, or ok=false if out of range;
// an out-of-range position is not an error.
func (b *base[T]) get(ctx context.Context, i int64) (T, bool, error) {
	var zero T

	if i < 0 || i >= b.total {
		return zero, false, nil
	}

	segIdx, local := b.locate(i)

	if err := b.ensureLoaded(ctx, segIdx); err != nil {
		return zero, false, err
	}

	return b.segments[segIdx].values[local], true, nil
}

// rng returns the values at global positions [a, b), clamped to
// [0, total], pre-loading every touched segment concurrently.
func (b *base[T]) rng(ctx context.Context, a, c int64) ([]T, error) {
	a = clamp64(a, 0, b.total)
	c = clamp64(c, 0, b.total)

	if c <= a {
		return []T{}, nil
	}

	startSeg, startLocal := b.locate(a)

	var touched []int

	remaining := c - a
	local := startLocal

	for segIdx := startSeg; remaining > 0 && segIdx < len(b.segments); segIdx++ {
		touched = append(touched, segIdx)

		avail := int64(b.segments[segIdx].count) - local
		if avail > remaining {
			avail = remaining
		}

		remaining -= avail
		local = 0
	}

	if err := b.ensureLoadedMany(ctx, touched); err != nil {
		return nil, err
	}

	out := make([]T, 0, c-a)
	remaining = c - a
	local = startLocal

	for _, segIdx := range touched {
		seg := b.segments[segIdx]

		avail := int64(seg.count) - local
		if avail > remaining {
			avail = remaining
		}

		out = append(out, seg.values[local:local+avail]...)
		remaining -= avail
		local = 0
	}

	return out, nil
}

// splitSegment halves segment idx in place, inserting the upper half as a
// brand-new segment at idx+1.
//
// Splitting shifts the chunk-slot coordinates (segIdx/chunkSize) of every
// segment from idx onward, since those coordinates are derived from
// position alone. Segments not yet resident in memory must therefore be
// loaded (under their pre-split coordinates) before the shift, and every
// segment from idx onward is marked dirty so flush rewrites it under its
// new coordinates.
func (b *base[T]) splitSegment(ctx context.Context, idx int) error {
	oldLen := len(b.segments)

	for p := idx + 1; p < oldLen; p++ {
		if err := b.ensureLoaded(ctx, p); err != nil {
			return err
		}
	}

	seg := b.segments[idx]
	mid := seg.count / 2

	left := append([]T(nil), seg.values[:mid]...)
	right := append([]T(nil), seg.values[mid:]...)

	b.segments[idx] = &segmentRec[T]{count: len(left), values: left}
	b.insertSegmentAt(idx+1, &segmentRec[T]{count: len(right), values: right})

	newDirty := make(map[int]bool, len(b.dirty))
	for d := range b.dirty {
		if d < idx {
			newDirty[d] = true
		}
	}

	b.dirty = newDirty
	for p := idx; p <= oldLen; p++ {
		b.markDirty(p)
	}

	b.fullRebuild()

	return nil
}

// splitIfNeeded splits segIdx repeatedly until every resulting segment fits
// within segCap, returning how many splits occurred (0 if none).
func (b *base[T]) splitIfNeeded(ctx context.Context, segIdx int) (int, error) {
	splits := 0

	for b.segments[segIdx].count > b.segCap {
		if err := b.splitSegment(ctx, segIdx); err != nil {
			return splits, err
		}

		splits++
	}

	return splits, nil
}

// baseMeta is the serializable snapshot of a base's structural state:
// enough to rehydrate the segment list and chunk key table without
// touching the blob store.
type baseMeta struct {
	SegCap    int
	ChunkSize int
	SegCounts []int
	ChunkKeys []string
}

// clone returns a deep copy of m, so mutating the returned SegCounts or
// ChunkKeys slice never affects m's.
func (m baseMeta) clone() baseMeta {
	return baseMeta{
		SegCap:    m.SegCap,
		ChunkSize: m.ChunkSize,
		SegCounts: append([]int(nil), m.SegCounts...),
		ChunkKeys: append([]string(nil), m.ChunkKeys...),
	}
}

func (b *base[T]) metaCore() baseMeta {
	counts := make([]int, len(b.segments))
	for i, s := range b.segments {
		counts[i] = s.count
	}

	return baseMeta{
		SegCap:    b.segCap,
		ChunkSize: b.chunks.size(),
		SegCounts: counts,
		ChunkKeys: b.chunks.keysSnapshot(),
	}
}

// setMetaCore rehydrates the segment list (as unloaded placeholders) and
// chunk key table from m, discarding any in-memory state.
func (b *base[T]) setMetaCore(m baseMeta) {
	b.segCap = m.SegCap
	if b.segCap <= 0 {
		b.segCap = 1
	}

	b.segments = make([]*segmentRec[T], len(m.SegCounts))
	for i, c := range m.SegCounts {
		b.segments[i] = &segmentRec[T]{count: c}
	}

	b.chunks.reset(m.ChunkKeys)
	b.dirty = make(map[int]bool)
	b.fullRebuild()
}

// flush writes every dirty segment's chunk, grouping segments by chunk
// index so each affected chunk is committed exactly once per flush, then
// clears the dirty set. Commits for distinct chunks run concurrently.
// Idempotent: with no dirty segments it is a no-op returning an empty key
// list.
func (b *base[T]) flush(ctx context.Context) ([]string, error) {
	if len(b.dirty) == 0 {
		return []string{}, nil
	}

	byChunk := make(map[int]map[int][]T)

	for segIdx := range b.dirty {
		cidx, slot := b.chunks.slotFor(segIdx)

		if byChunk[cidx] == nil {
			byChunk[cidx] = make(map[int][]T)
		}

		byChunk[cidx][slot] = b.segments[segIdx].values
	}

	cidxs := make([]int, 0, len(byChunk))
	for cidx := range byChunk {
		cidxs = append(cidxs, cidx)
	}

	sort.Ints(cidxs)

	newKeys, err := fanout.All(len(cidxs), func(i int) (string, error) {
		return b.chunks.commit(ctx, cidxs[i], byChunk[cidxs[i]])
	})
	if err != nil {
		return nil, err
	}

	b.dirty = make(map[int]bool)

	return newKeys, nil
}

func clamp64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
