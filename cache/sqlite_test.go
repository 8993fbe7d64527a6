package cache_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/c360studio/evorao/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "ictv_cache.db")

	store, err := cache.NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, cache.DriverSQLite, store.Driver())

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, cache.ErrNotFound)

	c := cache.New()
	c.Set("Rabies virus", currentResult("Rabies lyssavirus"))
	c.Set("Nothing", nil)
	c.Stamp(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, store.Save(ctx, c))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Nothing", "Rabies virus"}, loaded.Labels())
	assert.Nil(t, mustLookup(t, loaded, "Nothing"))
	assert.Equal(t, "Rabies lyssavirus", mustLookup(t, loaded, "Rabies virus").Entity().Label)
	assert.Equal(t, c.FetchedAt(), loaded.FetchedAt())

	// A second save replaces the stamp and keeps every entry.
	loaded.Set("Zika virus", currentResult("Orthoflavivirus zikaense"))
	loaded.Stamp(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Save(ctx, loaded))

	again, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Len())
	assert.Equal(t, 6, int(again.FetchedAt().Month()))
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ictv_cache.db")

	store, err := cache.NewSQLiteStore(path)
	require.NoError(t, err)
	c := cache.New()
	c.Set("A", nil)
	require.NoError(t, cache.Save(ctx, store, c))
	require.NoError(t, store.Close())

	reopened, err := cache.NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, loaded.Labels())
	assert.False(t, loaded.FetchedAt().IsZero())
}
