package colstore

import (
	"context"
	"sort"

	"github.com/segstore/segstore/pkg/blobstore"
)

// Ordered constrains the element types usable with [OrderedSequence]:
// anything with a natural total order that < can express. The two
// concrete column types a table needs, numbers and strings, both satisfy
// it.
type Ordered interface {
	~float64 | ~string
}

// OrderedSequence is a segmented sequence that keeps its elements sorted
// at all times: Insert places a value by lower bound rather than by
// caller-supplied position, and segments themselves stay sorted by their
// own [min, max] bounds so Scan and GetIndex can binary-search straight to
// the relevant segments.
//
// Not safe for concurrent mutation; see [base] for the serialization
// discipline.
type OrderedSequence[T Ordered] struct {
	b *base[T]

	// bounds[i] is the (min, max) of segment i's values, valid only when
	// segments[i].count > 0. Kept in lockstep with b.segments.
	bounds []segBounds[T]
}

type segBounds[T Ordered] struct {
	min, max T
	empty    bool
}

// NewOrderedSequence constructs an empty sequence backed by store, with at
// most segCap values per segment and chunkSize segment slots per chunk.
func NewOrderedSequence[T Ordered](store blobstore.Store, seqID string, segCap, chunkSize int) *OrderedSequence[T] {
	return &OrderedSequence[T]{b: newBase[T](store, seqID, segCap, chunkSize)}
}

// Len returns the number of elements currently in the sequence.
func (s *OrderedSequence[T]) Len() int64 { return s.b.totalCount() }

// Get returns the value at position i (in sorted order), or ok=false if i
// is out of range.
func (s *OrderedSequence[T]) Get(ctx context.Context, i int64) (T, bool, error) {
	return s.b.get(ctx, i)
}

// Range returns the values at positions [lo, hi) in sorted order.
func (s *OrderedSequence[T]) Range(ctx context.Context, lo, hi int64) ([]T, error) {
	return s.b.rng(ctx, lo, hi)
}

// Flush commits every segment mutated since the last Flush to the blob
// store and returns the set of newly written chunk keys.
func (s *OrderedSequence[T]) Flush(ctx context.Context) ([]string, error) {
	return s.b.flush(ctx)
}

// GetMeta returns a serializable snapshot of the sequence's structure.
func (s *OrderedSequence[T]) GetMeta() OrderedMeta[T] {
	mins := make([]T, len(s.bounds))
	maxes := make([]T, len(s.bounds))

	for i, bd := range s.bounds {
		mins[i] = bd.min
		maxes[i] = bd.max
	}

	return OrderedMeta[T]{Base: s.b.metaCore(), Mins: mins, Maxes: maxes}
}

// SetMeta rehydrates the sequence's structure from a previously obtained
// snapshot, discarding any in-memory state.
func (s *OrderedSequence[T]) SetMeta(m OrderedMeta[T]) {
	s.b.setMetaCore(m.Base)

	s.bounds = make([]segBounds[T], len(s.b.segments))
	for i := range s.bounds {
		if i < len(m.Mins) {
			s.bounds[i] = segBounds[T]{min: m.Mins[i], max: m.Maxes[i], empty: s.b.segments[i].count == 0}
		}
	}
}

// segmentFor returns the index of the segment that owns (or, for an empty
// sequence, that should receive) v, found by binary search over segment
// bounds.
func (s *OrderedSequence[T]) segmentFor(v T) int {
	return sort.Search(len(s.bounds), func(i int) bool {
		return !s.bounds[i].empty && !(s.bounds[i].max < v)
	})
}

// Insert places v at its lower-bound position: the first position whose
// existing value is not less than v. A value equal to existing ones is
// therefore placed before all of them.
// Returns the global position v now occupies, which the table layer uses
// to keep sibling columns aligned.
func (s *OrderedSequence[T]) Insert(ctx context.Context, v T) (int64, error) {
	b := s.b

	if len(b.segments) == 0 {
		b.appendSegment(&segmentRec[T]{count: 1, values: []T{v}})
		s.bounds = []segBounds[T]{{min: v, max: v}}

		return 0, nil
	}

	segIdx := s.segmentFor(v)
	if segIdx == len(b.segments) {
		segIdx = len(b.segments) - 1
	}

	if err := b.ensureLoaded(ctx, segIdx); err != nil {
		return 0, err
	}

	seg := b.segments[segIdx]

	local := sort.Search(seg.count, func(i int) bool {
		return !(seg.values[i] < v)
	})

	// Captured before any structural change: point_add(segIdx, ...) only
	// ever affects PrefixSum(k) for k > segIdx, and a later split only
	// regroups segments from segIdx onward without moving v itself, so
	// this sum plus local is v's final global position either way.
	position := b.tree.PrefixSum(segIdx) + int64(local)

	seg.spliceInsert(local, v)
	b.markDirty(segIdx)
	s.updateBoundsAfterInsert(segIdx, v)

	splits, err := b.splitIfNeeded(ctx, segIdx)
	if err != nil {
		return 0, err
	}

	if splits == 0 {
		b.pointAdd(segIdx, 1)
	} else {
		s.recomputeBoundsFrom(segIdx)
	}

	return position, nil
}

func (s *OrderedSequence[T]) updateBoundsAfterInsert(segIdx int, v T) {
	bd := &s.bounds[segIdx]
	if bd.empty {
		bd.min, bd.max, bd.empty = v, v, false
		return
	}

	if v < bd.min {
		bd.min = v
	}

	if bd.max < v {
		bd.max = v
	}
}

// recomputeBoundsFrom rebuilds the bounds slice in lockstep with
// s.b.segments after a split has changed the segment count, starting from
// segIdx (the split point) onward; everything before segIdx is untouched
// by a split and keeps its existing bounds entry.
func (s *OrderedSequence[T]) recomputeBoundsFrom(segIdx int) {
	newBounds := make([]segBounds[T], len(s.b.segments))
	copy(newBounds, s.bounds[:segIdx])

	for i := segIdx; i < len(s.b.segments); i++ {
		seg := s.b.segments[i]
		if seg.count == 0 {
			newBounds[i] = segBounds[T]{empty: true}
			continue
		}

		minV, maxV := seg.values[0], seg.values[0]
		for _, v := range seg.values {
			if v < minV {
				minV = v
			}

			if maxV < v {
				maxV = v
			}
		}

		newBounds[i] = segBounds[T]{min: minV, max: maxV}
	}

	s.bounds = newBounds
}

// Scan returns every value v with lo <= v < hi, in sorted order.
func (s *OrderedSequence[T]) Scan(ctx context.Context, lo, hi T) ([]T, error) {
	if !(lo < hi) {
		return []T{}, nil
	}

	start := sort.Search(len(s.bounds), func(i int) bool {
		return !s.bounds[i].empty && !(s.bounds[i].max < lo)
	})

	var touched []int

	for i := start; i < len(s.bounds); i++ {
		bd := s.bounds[i]
		if bd.empty {
			continue
		}

		if !(bd.min < hi) {
			break
		}

		touched = append(touched, i)
	}

	if err := s.b.ensureLoadedMany(ctx, touched); err != nil {
		return nil, err
	}

	out := []T{}

	for _, segIdx := range touched {
		for _, v := range s.b.segments[segIdx].values {
			if lo <= v && v < hi {
				out = append(out, v)
			}
		}
	}

	return out, nil
}

// GetIndex returns the lower-bound global position of v: the position of
// the first element not less than v, exactly what Insert(v) would have
// returned had v been inserted instead of looked up. It uses the same
// segment routing and in-segment lower-bound search Insert does, so a
// value that isn't present still yields the position where it would land.
func (s *OrderedSequence[T]) GetIndex(ctx context.Context, v T) (int64, error) {
	if len(s.b.segments) == 0 {
		return 0, nil
	}

	segIdx := s.segmentFor(v)
	if segIdx == len(s.b.segments) {
		segIdx = len(s.b.segments) - 1
	}

	if err := s.b.ensureLoaded(ctx, segIdx); err != nil {
		return 0, err
	}

	seg := s.b.segments[segIdx]

	local := sort.Search(seg.count, func(i int) bool {
		return !(seg.values[i] < v)
	})

	return s.b.tree.PrefixSum(segIdx) + int64(local), nil
}
