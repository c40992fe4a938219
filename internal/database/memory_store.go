package database

import (
	"context"
	"sync"
)

// MemoryStore keeps hashes in process memory. Used for tests and STORE_BACKEND=memory.
type MemoryStore struct {
	mu     sync.RWMutex
	hashes map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hashes: make(map[string]map[string]string)}
}

func (s *MemoryStore) HSet(_ context.Context, key, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bucket(key)[field] = value
	return nil
}

func (s *MemoryStore) HGet(_ context.Context, key, field string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.hashes[key][field]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *MemoryStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.hashes[key]))
	for field, value := range s.hashes[key] {
		out[field] = value
	}
	return out, nil
}

func (s *MemoryStore) HLen(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.hashes[key])), nil
}

func (s *MemoryStore) HDel(_ context.Context, key string, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.hashes[key]
	if !ok {
		return nil
	}
	for _, field := range fields {
		delete(bucket, field)
	}
	if len(bucket) == 0 {
		delete(s.hashes, key)
	}
	return nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.hashes, key)
	}
	return nil
}

func (s *MemoryStore) HSetBulk(_ context.Context, key string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.bucket(key)
	for field, value := range values {
		bucket[field] = value
	}
	return nil
}

// bucket must be called with the write lock held.
func (s *MemoryStore) bucket(key string) map[string]string {
	b, ok := s.hashes[key]
	if !ok {
		b = make(map[string]string)
		s.hashes[key] = b
	}
	return b
}
