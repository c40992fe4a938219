package services

import (
	"context"
	"errors"
	"sync"

	"study-assistant/internal/ai"
	"study-assistant/internal/database"
)

var errStoreDown = errors.New("store unavailable")

// spyStore counts calls and can fail every operation.
type spyStore struct {
	*database.MemoryStore

	mu    sync.Mutex
	calls int
	fail  bool
}

func newSpyStore() *spyStore {
	return &spyStore{MemoryStore: database.NewMemoryStore()}
}

func (s *spyStore) record() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return errStoreDown
	}
	return nil
}

func (s *spyStore) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *spyStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *spyStore) HSet(ctx context.Context, key, field, value string) error {
	if err := s.record(); err != nil {
		return err
	}
	return s.MemoryStore.HSet(ctx, key, field, value)
}

func (s *spyStore) HGet(ctx context.Context, key, field string) (string, error) {
	if err := s.record(); err != nil {
		return "", err
	}
	return s.MemoryStore.HGet(ctx, key, field)
}

func (s *spyStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if err := s.record(); err != nil {
		return nil, err
	}
	return s.MemoryStore.HGetAll(ctx, key)
}

func (s *spyStore) HLen(ctx context.Context, key string) (int64, error) {
	if err := s.record(); err != nil {
		return 0, err
	}
	return s.MemoryStore.HLen(ctx, key)
}

func (s *spyStore) HDel(ctx context.Context, key string, fields ...string) error {
	if err := s.record(); err != nil {
		return err
	}
	return s.MemoryStore.HDel(ctx, key, fields...)
}

func (s *spyStore) Del(ctx context.Context, keys ...string) error {
	if err := s.record(); err != nil {
		return err
	}
	return s.MemoryStore.Del(ctx, keys...)
}

func (s *spyStore) HSetBulk(ctx context.Context, key string, values map[string]string) error {
	if err := s.record(); err != nil {
		return err
	}
	return s.MemoryStore.HSetBulk(ctx, key, values)
}

func newTestIndex(store database.HashStore) *VectorIndex {
	return NewVectorIndex(store, ai.NewLocalEmbeddings(32))
}
