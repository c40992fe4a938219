package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb), mr
}

func TestRedisStoreContract(t *testing.T) {
	store, _ := newTestRedisStore(t)
	runHashStoreContract(t, store)
}

func TestRedisStoreWritesNativeHashes(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.HSetBulk(ctx, "analysis:vectors:doc", map[string]string{
		"chunk:0": `{"text":"a","vector":[1]}`,
	}))

	assert.Equal(t, `{"text":"a","vector":[1]}`, mr.HGet("analysis:vectors:doc", "chunk:0"))
}

func TestRedisStoreSurfacesConnectionErrors(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.Close()

	err := store.HSet(context.Background(), "k", "f", "v")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
