package boltdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/bookclub/internal/client/storage"
)

func createTestKVStorage(t *testing.T) *Storage {
	t.Helper()

	store, err := New(context.Background(), filepath.Join(t.TempDir(), "kv_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestStorage_KV(t *testing.T) {
	ctx := context.Background()
	store := createTestKVStorage(t)

	_, err := store.Get(ctx, "snapshot/livros")
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "snapshot/livros", []byte(`[{"id":"a"}]`)))
	got, err := store.Get(ctx, "snapshot/livros")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a"}]`, string(got))

	// последняя запись побеждает
	require.NoError(t, store.Set(ctx, "snapshot/livros", []byte(`[]`)))
	got, err = store.Get(ctx, "snapshot/livros")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	require.NoError(t, store.Delete(ctx, "snapshot/livros"))
	_, err = store.Get(ctx, "snapshot/livros")
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)

	// удаление отсутствующего ключа не ошибка
	assert.NoError(t, store.Delete(ctx, "missing"))
}

func TestStorage_KV_Closed(t *testing.T) {
	ctx := context.Background()
	store, err := New(ctx, filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	assert.ErrorIs(t, store.Set(ctx, "k", []byte("v")), storage.ErrStorageClosed)
	assert.ErrorIs(t, store.Delete(ctx, "k"), storage.ErrStorageClosed)
	_, err = store.GetAuth(ctx)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
