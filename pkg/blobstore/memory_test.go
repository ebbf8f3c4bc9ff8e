package blobstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/segstore/segstore/pkg/blobstore"
)

func Test_Memory_Get_Returns_NotOK_For_Unset_Key(t *testing.T) {
	t.Parallel()

	m := blobstore.NewMemory()

	data, ok, err := m.Get(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, data)
}

func Test_Memory_Set_Then_Get_Roundtrips(t *testing.T) {
	t.Parallel()

	m := blobstore.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("hello")))

	data, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), data)
}

func Test_Memory_Get_Does_Not_Alias_Stored_Value(t *testing.T) {
	t.Parallel()

	m := blobstore.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("hello")))

	data, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	data[0] = 'X'

	data2, _, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data2, "mutating a returned slice must not affect the store")
}

func Test_Memory_Set_Does_Not_Alias_Caller_Buffer(t *testing.T) {
	t.Parallel()

	m := blobstore.NewMemory()
	ctx := context.Background()

	buf := []byte("hello")
	require.NoError(t, m.Set(ctx, "k", buf))

	buf[0] = 'X'

	data, _, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data, "mutating the caller's buffer after Set must not affect the store")
}

func Test_Memory_Set_Overwrites_Previous_Value(t *testing.T) {
	t.Parallel()

	m := blobstore.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v1")))
	require.NoError(t, m.Set(ctx, "k", []byte("v2")))

	data, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v2"), data)
}
