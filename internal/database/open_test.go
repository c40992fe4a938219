package database

import (
	"context"
	"testing"

	"study-assistant/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenHashStore(t *testing.T) {
	ctx := context.Background()

	store, closeFn, err := OpenHashStore(ctx, &config.Config{StoreBackend: "memory"}, nil)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &MemoryStore{}, store)

	_, _, err = OpenHashStore(ctx, &config.Config{StoreBackend: "redis"}, nil)
	assert.Error(t, err)

	_, _, err = OpenHashStore(ctx, &config.Config{StoreBackend: "etcd"}, nil)
	assert.Error(t, err)
}
