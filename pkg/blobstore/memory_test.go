package blobstore

import (
	"context"
	"errors"
	"sort"
	"testing"

	"expense-tracker/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateContainerIfNotExists(ctx))

	require.NoError(t, store.Put(ctx, "a", []byte("one")))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "one", string(got))

	ok, err := store.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a"), "deleting twice is not an error")

	_, err = store.Get(ctx, "a")
	assert.True(t, errors.Is(err, ErrNotFound))

	ok, err = store.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "k", data))
	data[0] = 'z'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestMemoryStore_PutIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ok, err := store.PutIfAbsent(ctx, "k", []byte("first"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.PutIfAbsent(ctx, "k", []byte("second"))
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := store.Get(ctx, "k")
	assert.Equal(t, "first", string(got))
}

func TestMemoryStore_ListKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, store.Put(ctx, k, nil))
	}

	var keys []string
	for k, err := range store.ListKeys(ctx) {
		require.NoError(t, err)
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	t.Run("tolerates deletes mid-scan", func(t *testing.T) {
		seen := 0
		for k, err := range store.ListKeys(ctx) {
			require.NoError(t, err)
			require.NoError(t, store.Delete(ctx, k))
			seen++
		}
		assert.Equal(t, 3, seen)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("early stop", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "x", nil))
		require.NoError(t, store.Put(ctx, "y", nil))
		count := 0
		for range store.ListKeys(ctx) {
			count++
			break
		}
		assert.Equal(t, 1, count)
	})

	t.Run("cancelled context yields error", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		var gotErr error
		for _, err := range store.ListKeys(cctx) {
			gotErr = err
		}
		assert.ErrorIs(t, gotErr, context.Canceled)
	})
}

func TestBackend_MemoryContainersAreIsolated(t *testing.T) {
	ctx := context.Background()
	backend, err := NewBackend(ctx, &config.StorageConfig{Backend: "memory"}, &config.RedisConfig{}, zap.NewNop())
	require.NoError(t, err)
	defer backend.Close()

	tokens := backend.Container("voice-tokens/")
	receipts := backend.Container("receipts/")
	require.NoError(t, tokens.Put(ctx, "apple.json", []byte("{}")))

	ok, err := receipts.Exists(ctx, "apple.json")
	require.NoError(t, err)
	assert.False(t, ok)

	again := backend.Container("voice-tokens/")
	ok, err = again.Exists(ctx, "apple.json")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBackend_UnknownKind(t *testing.T) {
	_, err := NewBackend(context.Background(), &config.StorageConfig{Backend: "ftp"}, &config.RedisConfig{}, zap.NewNop())
	assert.Error(t, err)
}
