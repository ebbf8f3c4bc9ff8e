package colstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/segstore/segstore/pkg/blobstore"
)

func Test_ChunkStore_Load_Returns_Empty_Slots_For_Never_Written_Chunk(t *testing.T) {
	t.Parallel()

	cs := newChunkStore[int](blobstore.NewMemory(), "seq", 4)

	slots, err := cs.load(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, slots, 4)

	for _, s := range slots {
		require.Nil(t, s)
	}
}

func Test_ChunkStore_Commit_Preserves_Untouched_Slots(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cs := newChunkStore[int](blobstore.NewMemory(), "seq", 3)

	key1, err := cs.commit(ctx, 0, map[int][]int{0: {1, 2, 3}})
	require.NoError(t, err)
	require.NotEmpty(t, key1)

	key2, err := cs.commit(ctx, 0, map[int][]int{1: {9}})
	require.NoError(t, err)
	require.NotEqual(t, key1, key2, "commit must mint a new key")

	slots, err := cs.load(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, slots[0], "untouched slot 0 must survive verbatim")
	require.Equal(t, []int{9}, slots[1])
	require.Nil(t, slots[2])
}

func Test_ChunkStore_Commit_Survives_Reload_From_Store(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := blobstore.NewMemory()

	cs := newChunkStore[string](store, "seq", 2)
	_, err := cs.commit(ctx, 0, map[int][]string{0: {"a", "b"}, 1: {"c"}})
	require.NoError(t, err)

	fresh := newChunkStore[string](store, "seq", 2)
	fresh.reset(cs.keysSnapshot())

	slots, err := fresh.load(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, slots[0])
	require.Equal(t, []string{"c"}, slots[1])
}

func Test_ChunkStore_SlotFor_Maps_Segment_Index_To_Chunk_And_Slot(t *testing.T) {
	t.Parallel()

	cs := newChunkStore[int](blobstore.NewMemory(), "seq", 4)

	cases := []struct {
		segIdx    int
		cidx, slot int
	}{
		{0, 0, 0},
		{3, 0, 3},
		{4, 1, 0},
		{9, 2, 1},
	}

	for _, c := range cases {
		cidx, slot := cs.slotFor(c.segIdx)
		require.Equal(t, c.cidx, cidx)
		require.Equal(t, c.slot, slot)
	}
}
