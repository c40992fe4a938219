package database

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// hashEntry is one field of one hash. Every (key, field) pair is its own document
// so large vector hashes never approach the 16MB document limit.
type hashEntry struct {
	Key   string `bson:"key"`
	Field string `bson:"field"`
	Value string `bson:"value"`
}

// MongoStore emulates hash-map-per-key semantics on a single collection.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(col *mongo.Collection) *MongoStore {
	return &MongoStore{col: col}
}

// EnsureIndexes creates the unique (key, field) index HSet upserts rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "key", Value: 1}, {Key: "field", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create hash indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) HSet(ctx context.Context, key, field, value string) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"key": key, "field": field},
		bson.M{"$set": bson.M{"value": value}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo hset %s: %w", key, err)
	}
	return nil
}

func (s *MongoStore) HGet(ctx context.Context, key, field string) (string, error) {
	var entry hashEntry
	err := s.col.FindOne(ctx, bson.M{"key": key, "field": field}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("mongo hget %s: %w", key, err)
	}
	return entry.Value, nil
}

func (s *MongoStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	cursor, err := s.col.Find(ctx, bson.M{"key": key})
	if err != nil {
		return nil, fmt.Errorf("mongo hgetall %s: %w", key, err)
	}
	defer cursor.Close(ctx)

	var entries []hashEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("mongo hgetall decode %s: %w", key, err)
	}

	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Field] = e.Value
	}
	return out, nil
}

func (s *MongoStore) HLen(ctx context.Context, key string) (int64, error) {
	n, err := s.col.CountDocuments(ctx, bson.M{"key": key})
	if err != nil {
		return 0, fmt.Errorf("mongo hlen %s: %w", key, err)
	}
	return n, nil
}

func (s *MongoStore) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	_, err := s.col.DeleteMany(ctx, bson.M{"key": key, "field": bson.M{"$in": fields}})
	if err != nil {
		return fmt.Errorf("mongo hdel %s: %w", key, err)
	}
	return nil
}

func (s *MongoStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := s.col.DeleteMany(ctx, bson.M{"key": bson.M{"$in": keys}}); err != nil {
		return fmt.Errorf("mongo del: %w", err)
	}
	return nil
}

func (s *MongoStore) HSetBulk(ctx context.Context, key string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	batch := make([]mongo.WriteModel, 0, len(values))
	for field, value := range values {
		batch = append(batch, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"key": key, "field": field}).
			SetUpdate(bson.M{"$set": bson.M{"value": value}}).
			SetUpsert(true))
	}

	if _, err := s.col.BulkWrite(ctx, batch, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("mongo bulk hset %s: %w", key, err)
	}
	return nil
}
