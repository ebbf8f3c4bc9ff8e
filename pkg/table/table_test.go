package table_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/segstore/segstore/pkg/blobstore"
	"github.com/segstore/segstore/pkg/table"
	"github.com/segstore/segstore/pkg/value"
)

func newTestTable(t *testing.T) (*table.Table, blobstore.Store) {
	t.Helper()

	store := blobstore.NewMemory()

	tbl, err := table.New(store, "id", value.Number, 3, 4)
	require.NoError(t, err)

	return tbl, store
}

func Test_Table_Insert_Then_Get_Round_Trips_A_Row(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tbl, _ := newTestTable(t)

	require.NoError(t, tbl.Insert(ctx, []table.Row{
		{"id": value.Num(1), "name": value.Str("alice"), "score": value.Num(99)},
	}))

	row, ok, err := tbl.Get(ctx, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, table.Row{"id": value.Num(1), "name": value.Str("alice"), "score": value.Num(99)}, row)
}

// S5. Table alignment with dynamic columns: insert([{id:2,name:"bob"}]) then
// insert([{id:1,score:10}]); range(0, 2) must yield ordered rows
// [{id:1,score:10}, {id:2,name:"bob"}] with missing fields absent.
func Test_Table_S5_Aligns_Dynamic_Columns_Across_Out_Of_Order_Inserts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tbl, _ := newTestTable(t)

	require.NoError(t, tbl.Insert(ctx, []table.Row{{"id": value.Num(2), "name": value.Str("bob")}}))
	require.NoError(t, tbl.Insert(ctx, []table.Row{{"id": value.Num(1), "score": value.Num(10)}}))

	rows, err := tbl.Range(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, table.Row{"id": value.Num(1), "score": value.Num(10)}, rows[0])
	require.Equal(t, table.Row{"id": value.Num(2), "name": value.Str("bob")}, rows[1])
}

func Test_Table_Insert_Pads_Preexisting_Columns_With_Missing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tbl, _ := newTestTable(t)

	require.NoError(t, tbl.Insert(ctx, []table.Row{{"id": value.Num(1), "name": value.Str("a")}}))
	require.NoError(t, tbl.Insert(ctx, []table.Row{{"id": value.Num(2)}}))
	require.NoError(t, tbl.Insert(ctx, []table.Row{{"id": value.Num(3), "name": value.Str("c")}}))

	row, ok, err := tbl.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, table.Row{"id": value.Num(2)}, row)
	require.NotContains(t, row, "name")
}

func Test_Table_Insert_Missing_Order_Key_Rejects_Row_But_Keeps_Earlier_Ones(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tbl, _ := newTestTable(t)

	err := tbl.Insert(ctx, []table.Row{
		{"id": value.Num(1), "name": value.Str("a")},
		{"name": value.Str("no id")},
	})
	require.Error(t, err)
	require.ErrorIs(t, err, table.ErrMissingOrderKey)

	row, ok, gerr := tbl.Get(ctx, 0)
	require.NoError(t, gerr)
	require.True(t, ok)
	require.Equal(t, value.Num(1), row["id"])
}

func Test_Table_Insert_Rejects_Column_Type_Change(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tbl, _ := newTestTable(t)

	require.NoError(t, tbl.Insert(ctx, []table.Row{{"id": value.Num(1), "tag": value.Str("x")}}))

	err := tbl.Insert(ctx, []table.Row{{"id": value.Num(2), "tag": value.Num(5)}})
	require.Error(t, err)
	require.ErrorIs(t, err, table.ErrTypeMismatch)
}

func Test_Table_Insert_Rejects_Wrong_Order_Key_Type(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tbl, _ := newTestTable(t)

	err := tbl.Insert(ctx, []table.Row{{"id": value.Str("not a number")}})
	require.Error(t, err)
	require.ErrorIs(t, err, table.ErrTypeMismatch)
}

func Test_Table_Range_Limit_Negative_Means_To_End(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tbl, _ := newTestTable(t)

	for i := int64(0); i < 5; i++ {
		require.NoError(t, tbl.Insert(ctx, []table.Row{{"id": value.Num(float64(i))}}))
	}

	rows, err := tbl.Range(ctx, 2, -1)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, value.Num(2), rows[0]["id"])
	require.Equal(t, value.Num(4), rows[2]["id"])
}

func Test_Table_Flush_Then_SetMeta_Rehydrates_Same_Rows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tbl, store := newTestTable(t)

	require.NoError(t, tbl.Insert(ctx, []table.Row{
		{"id": value.Num(2), "name": value.Str("bob")},
		{"id": value.Num(1), "score": value.Num(10)},
	}))

	require.NoError(t, tbl.Flush(ctx, "meta/t1"))

	meta := tbl.GetMeta()

	rehydrated, err := table.New(store, "id", value.Number, 3, 4)
	require.NoError(t, err)
	require.NoError(t, rehydrated.SetMeta(meta))

	want, err := tbl.Range(ctx, 0, -1)
	require.NoError(t, err)

	got, err := rehydrated.Range(ctx, 0, -1)
	require.NoError(t, err)

	require.Equal(t, want, got)
}

// Test_Table_Flush_Writes_Meta_Byte_Identical_To_GetMeta confirms that
// decoding the bytes Flush actually wrote to the store reproduces the same
// snapshot GetMeta hands back in memory. Meta nests maps of maps of
// colstore metas, which makes a plain require.Equal failure hard to read on
// a regression; cmp.Diff pinpoints exactly which nested field moved.
func Test_Table_Flush_Writes_Meta_Byte_Identical_To_GetMeta(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tbl, store := newTestTable(t)

	require.NoError(t, tbl.Insert(ctx, []table.Row{
		{"id": value.Num(2), "name": value.Str("bob")},
		{"id": value.Num(1), "score": value.Num(10)},
	}))
	require.NoError(t, tbl.Flush(ctx, "meta/t1"))

	data, ok, err := store.Get(ctx, "meta/t1")
	require.NoError(t, err)
	require.True(t, ok)

	fromStore, err := table.DecodeMeta(data)
	require.NoError(t, err)

	fromMemory := tbl.GetMeta()

	if diff := cmp.Diff(fromMemory, fromStore); diff != "" {
		t.Errorf("meta written to store differs from GetMeta() (-memory +store):\n%s", diff)
	}
}

func Test_Table_SetMeta_Rejects_Order_Kind_Mismatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tbl, store := newTestTable(t)

	require.NoError(t, tbl.Insert(ctx, []table.Row{{"id": value.Num(1)}}))
	require.NoError(t, tbl.Flush(ctx, "meta/t1"))

	meta := tbl.GetMeta()

	stringTable, err := table.New(store, "id", value.String, 3, 4)
	require.NoError(t, err)

	err = stringTable.SetMeta(meta)
	require.Error(t, err)
	require.ErrorIs(t, err, table.ErrTypeMismatch)
}

// S6. Atomic flush rollback: a table with one column whose flush fails on
// demand. Commit v1, mutate, attempt flush -> fails; store.get(metaKey) ==
// v1; getMeta() == v1.
func Test_Table_S6_Atomic_Flush_Rollback_On_Column_Failure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &failOnSecondSetStore{Store: blobstore.NewMemory()}

	tbl, err := table.New(store, "id", value.Number, 3, 4)
	require.NoError(t, err)

	require.NoError(t, tbl.Insert(ctx, []table.Row{{"id": value.Num(1), "score": value.Num(1)}}))
	require.NoError(t, tbl.Flush(ctx, "meta/t1"))

	v1, ok, err := store.Get(ctx, "meta/t1")
	require.NoError(t, err)
	require.True(t, ok)

	metaV1 := tbl.GetMeta()

	require.NoError(t, tbl.Insert(ctx, []table.Row{{"id": value.Num(2), "score": value.Num(2)}}))

	store.failNext.Store(true)

	err = tbl.Flush(ctx, "meta/t1")
	require.Error(t, err)

	got, ok, gerr := store.Get(ctx, "meta/t1")
	require.NoError(t, gerr)
	require.True(t, ok)
	require.Equal(t, v1, got)

	require.Equal(t, metaV1, tbl.GetMeta())
}

// failOnSecondSetStore fails exactly one Set call once armed, simulating
// one column's chunk commit failing mid-flush while the fan-out's other
// concurrent commits may still land; the table's meta write must never
// follow a failed column flush regardless of which commit failed.
type failOnSecondSetStore struct {
	blobstore.Store
	failNext atomic.Bool
}

func (s *failOnSecondSetStore) Set(ctx context.Context, key string, data []byte) error {
	if s.failNext.CompareAndSwap(true, false) {
		return errors.New("blobstore: injected failure")
	}

	return s.Store.Set(ctx, key, data)
}
