package colstore

import (
	"context"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/segstore/segstore/pkg/blobstore"
)

func newTestOrdered(t *testing.T, segCap, chunkSize int) *OrderedSequence[float64] {
	t.Helper()

	return NewOrderedSequence[float64](blobstore.NewMemory(), "seq", segCap, chunkSize)
}

func orderedValues(t *testing.T, ctx context.Context, s *OrderedSequence[float64]) []float64 {
	t.Helper()

	out, err := s.Range(ctx, 0, s.Len())
	require.NoError(t, err)

	return out
}

func Test_OrderedSequence_Insert_Keeps_Sorted_Order(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestOrdered(t, 3, 4)

	for _, v := range []float64{5, 1, 4, 2, 3} {
		_, err := s.Insert(ctx, v)
		require.NoError(t, err)
	}

	require.Equal(t, []float64{1, 2, 3, 4, 5}, orderedValues(t, ctx, s))
}

func Test_OrderedSequence_Insert_Returns_Global_Position(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestOrdered(t, 3, 4)

	// Each value's reported position must be immediately correct against
	// the sequence as it stands right after that insert, even though
	// later inserts of smaller values will go on to shift it.
	for _, v := range []float64{50, 10, 40, 20, 30} {
		pos, err := s.Insert(ctx, v)
		require.NoError(t, err)

		got, ok, err := s.Get(ctx, pos)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, v, got)
	}
}

func Test_OrderedSequence_Insert_Keeps_Duplicates_Sorted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestOrdered(t, 8, 4)

	for _, v := range []float64{2, 1, 2, 1, 2} {
		_, err := s.Insert(ctx, v)
		require.NoError(t, err)
	}

	require.Equal(t, []float64{1, 1, 2, 2, 2}, orderedValues(t, ctx, s))
}

func Test_OrderedSequence_Insert_Splits_And_Stays_Sorted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestOrdered(t, 2, 10)

	rng := rand.New(rand.NewSource(3))

	want := make([]float64, 0, 40)

	for i := 0; i < 40; i++ {
		v := float64(rng.Intn(1000))
		want = append(want, v)
		_, err := s.Insert(ctx, v)
		require.NoError(t, err)
	}

	sort.Float64s(want)

	require.Equal(t, want, orderedValues(t, ctx, s))

	for _, seg := range s.b.segments {
		require.LessOrEqual(t, seg.count, 2)
	}
}

func Test_OrderedSequence_Scan_Returns_Half_Open_Range(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestOrdered(t, 3, 4)

	for _, v := range []float64{1, 2, 3, 4, 5, 6} {
		_, err := s.Insert(ctx, v)
		require.NoError(t, err)
	}

	got, err := s.Scan(ctx, 2, 5)
	require.NoError(t, err)
	require.Equal(t, []float64{2, 3, 4}, got)
}

func Test_OrderedSequence_Scan_Empty_Range_Returns_Empty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestOrdered(t, 3, 4)
	_, err := s.Insert(ctx, 1)
	require.NoError(t, err)

	got, err := s.Scan(ctx, 5, 5)
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = s.Scan(ctx, 5, 1)
	require.NoError(t, err)
	require.Empty(t, got)
}

func Test_OrderedSequence_Scan_Spans_Multiple_Segments(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestOrdered(t, 2, 10)

	for i := 0; i < 20; i++ {
		_, err := s.Insert(ctx, float64(i))
		require.NoError(t, err)
	}

	got, err := s.Scan(ctx, 5, 15)
	require.NoError(t, err)

	want := make([]float64, 0, 10)
	for i := 5; i < 15; i++ {
		want = append(want, float64(i))
	}

	require.Equal(t, want, got)
}

func Test_OrderedSequence_GetIndex_Finds_Present_Value(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestOrdered(t, 3, 4)

	for _, v := range []float64{10, 30, 20, 40} {
		_, err := s.Insert(ctx, v)
		require.NoError(t, err)
	}

	idx, err := s.GetIndex(ctx, 20)
	require.NoError(t, err)
	require.EqualValues(t, 1, idx)
}

// GetIndex is a lower-bound search, not an exact-match lookup: a value
// that falls between two present values returns the position it would
// occupy if inserted, matching what Insert would have returned.
func Test_OrderedSequence_GetIndex_Returns_Lower_Bound_For_Absent_Value(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestOrdered(t, 3, 4)
	_, err := s.Insert(ctx, 1)
	require.NoError(t, err)
	_, err = s.Insert(ctx, 3)
	require.NoError(t, err)

	idx, err := s.GetIndex(ctx, 2)
	require.NoError(t, err)
	require.EqualValues(t, 1, idx)
}

func Test_OrderedSequence_GetIndex_Past_Largest_Value_Returns_Length(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestOrdered(t, 3, 4)
	_, err := s.Insert(ctx, 1)
	require.NoError(t, err)
	_, err = s.Insert(ctx, 3)
	require.NoError(t, err)

	idx, err := s.GetIndex(ctx, 10)
	require.NoError(t, err)
	require.EqualValues(t, 2, idx)
}

func Test_OrderedSequence_GetIndex_On_Empty_Sequence_Returns_Zero(t *testing.T) {
	t.Parallel()

	idx, err := newTestOrdered(t, 3, 4).GetIndex(context.Background(), 5)
	require.NoError(t, err)
	require.EqualValues(t, 0, idx)
}

func Test_OrderedSequence_GetIndex_Finds_First_Of_Duplicates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestOrdered(t, 8, 4)

	for _, v := range []float64{1, 5, 5, 5, 9} {
		_, err := s.Insert(ctx, v)
		require.NoError(t, err)
	}

	idx, err := s.GetIndex(ctx, 5)
	require.NoError(t, err)
	require.EqualValues(t, 1, idx)
}

func Test_OrderedSequence_Flush_Then_SetMeta_Rehydrates_Same_Contents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := blobstore.NewMemory()

	s := NewOrderedSequence[float64](store, "seq", 3, 4)
	for i := 0; i < 15; i++ {
		_, err := s.Insert(ctx, float64(14-i))
		require.NoError(t, err)
	}

	_, err := s.Flush(ctx)
	require.NoError(t, err)

	meta := s.GetMeta()

	rehydrated := NewOrderedSequence[float64](store, "seq", 3, 4)
	rehydrated.SetMeta(meta)

	require.Equal(t, orderedValues(t, ctx, s), orderedValues(t, ctx, rehydrated))

	got, err := rehydrated.Scan(ctx, 3, 8)
	require.NoError(t, err)
	require.Equal(t, []float64{3, 4, 5, 6, 7}, got)
}

func Test_OrderedSequence_Strings_Sort_Lexically(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewOrderedSequence[string](blobstore.NewMemory(), "seq", 3, 4)

	for _, v := range []string{"banana", "apple", "cherry"} {
		_, err := s.Insert(ctx, v)
		require.NoError(t, err)
	}

	out, err := s.Range(ctx, 0, s.Len())
	require.NoError(t, err)
	require.Equal(t, []string{"apple", "banana", "cherry"}, out)
}
