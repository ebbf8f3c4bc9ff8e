// Package fenwick implements a binary indexed tree over segment counts,
// giving colstore's segmented sequences O(log S) positional navigation.
package fenwick

// Tree is a 0-indexed Fenwick (binary indexed) tree over a fixed number of
// buckets, one per segment in the owning sequence's segment list. It
// supports point updates and prefix sums in O(log n).
//
// The zero Tree is not usable; construct one with [New] or [Build].
type Tree struct {
	// bits holds the Fenwick tree itself. bits[i] (1-indexed internally)
	// accumulates the range (i - lowbit(i), i].
	bits []int64
	n    int
}

// New returns an empty Fenwick tree sized for n buckets, all zero.
func New(n int) *Tree {
	return &Tree{bits: make([]int64, n+1), n: n}
}

// Build constructs a Fenwick tree from per-bucket counts using the
// canonical "add lower-bit to next" linear-time construction, used
// whenever a structural change (segment split) invalidates the existing
// tree wholesale rather than by a single point update.
func Build(counts []int64) *Tree {
	n := len(counts)
	t := &Tree{bits: make([]int64, n+1), n: n}

	copy(t.bits[1:], counts)

	for i := 1; i <= n; i++ {
		j := i + (i & -i)
		if j <= n {
			t.bits[j] += t.bits[i]
		}
	}

	return t
}

// Len returns the number of buckets the tree covers.
func (t *Tree) Len() int { return t.n }

// PrefixSum returns the sum of counts over buckets [0, k). k must be in
// [0, Len()].
func (t *Tree) PrefixSum(k int) int64 {
	var sum int64
	for i := k; i > 0; i -= i & -i {
		sum += t.bits[i]
	}

	return sum
}

// Total returns the sum of all bucket counts, equivalent to
// PrefixSum(Len()).
func (t *Tree) Total() int64 {
	return t.PrefixSum(t.n)
}

// Add applies a point update of delta to bucket k (0-indexed). k must be in
// [0, Len()).
func (t *Tree) Add(k int, delta int64) {
	for i := k + 1; i <= t.n; i += i & -i {
		t.bits[i] += delta
	}
}

// Locate finds the unique (bucket, local) such that
// PrefixSum(bucket) <= i < PrefixSum(bucket+1), with
// local = i - PrefixSum(bucket). i must be in [0, Total()).
//
// This is the canonical Fenwick descent: start from the greatest power of
// two <= Len(), and for each bit from high to low, include the
// corresponding bucket if doing so keeps the cumulative sum <= i.
func (t *Tree) Locate(i int64) (bucket int, local int64) {
	pos := 0

	var cumulative int64

	highBit := highestPowerOfTwoLE(t.n)

	for bit := highBit; bit > 0; bit >>= 1 {
		next := pos + bit
		if next <= t.n && cumulative+t.bits[next] <= i {
			pos = next
			cumulative += t.bits[next]
		}
	}

	return pos, i - cumulative
}

// highestPowerOfTwoLE returns the largest power of two <= n, or 0 if n <= 0.
func highestPowerOfTwoLE(n int) int {
	p := 1
	for p*2 <= n {
		p *= 2
	}

	if p > n {
		return 0
	}

	return p
}
