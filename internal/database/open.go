package database

import (
	"context"
	"errors"
	"fmt"

	"study-assistant/internal/config"

	"github.com/redis/go-redis/v9"
)

// OpenHashStore builds the HashStore selected by STORE_BACKEND. The returned
// close function releases backend connections owned by the store (not rdb).
func OpenHashStore(ctx context.Context, cfg *config.Config, rdb *redis.Client) (HashStore, func(), error) {
	switch cfg.StoreBackend {
	case "redis", "":
		if rdb == nil {
			return nil, nil, errors.New("redis store backend requires a redis client")
		}
		return NewRedisStore(rdb), func() {}, nil

	case "mongo":
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			return nil, nil, err
		}
		store := NewMongoStore(client.Database(cfg.DBName).Collection(cfg.MongoCollection))
		if err := store.EnsureIndexes(ctx); err != nil {
			client.Disconnect(context.Background())
			return nil, nil, err
		}
		return store, func() { client.Disconnect(context.Background()) }, nil

	case "memory":
		return NewMemoryStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}
}
