package storage

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreEmpty(t *testing.T) {
	store := NewMemoryStore()

	assert.Empty(t, store.List())

	_, err := store.Get("missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore()

	require.NoError(t, store.Put("leaf-a", []byte("payload")))

	got, err := store.Get("leaf-a")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestMemoryStoreOverwrite(t *testing.T) {
	store := NewMemoryStore()

	require.NoError(t, store.Put("leaf-a", []byte("old")))
	require.NoError(t, store.Put("leaf-a", []byte("new")))

	got, err := store.Get("leaf-a")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()

	require.NoError(t, store.Put("leaf-a", []byte("payload")))
	require.NoError(t, store.Delete("leaf-a"))

	_, err := store.Get("leaf-a")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// Deleting an absent key is a no-op, so a split can clear its
	// parent without checking first.
	assert.NoError(t, store.Delete("leaf-a"))
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Put("leaf-a", []byte("payload")))

	got, err := store.Get("leaf-a")
	require.NoError(t, err)
	got[0] = 'X'

	again, err := store.Get("leaf-a")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), again)
}

func TestMemoryStorePutCopiesValue(t *testing.T) {
	store := NewMemoryStore()

	value := []byte("payload")
	require.NoError(t, store.Put("leaf-a", value))
	value[0] = 'X'

	got, err := store.Get("leaf-a")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestMemoryStoreListSorted(t *testing.T) {
	store := NewMemoryStore()

	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, store.Put(k, []byte(k)))
	}

	assert.Equal(t, []string{"a", "b", "c"}, store.List())
}

func TestMemoryStoreStats(t *testing.T) {
	store := NewMemoryStore()

	assert.Equal(t, StoreStats{}, store.Stats())

	require.NoError(t, store.Put("leaf-a", []byte("12345")))
	require.NoError(t, store.Put("leaf-b", []byte("123")))

	stats := store.Stats()
	assert.Equal(t, 2, stats.Keys)
	assert.Equal(t, 8, stats.Bytes)

	require.NoError(t, store.Delete("leaf-a"))
	stats = store.Stats()
	assert.Equal(t, 1, stats.Keys)
	assert.Equal(t, 3, stats.Bytes)
}

func TestMemoryStoreConcurrent(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := fmt.Sprintf("leaf-%d-%d", worker, j)
				assert.NoError(t, store.Put(key, []byte(key)))
				got, err := store.Get(key)
				assert.NoError(t, err)
				assert.Equal(t, []byte(key), got)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8*50, store.Stats().Keys)
}
