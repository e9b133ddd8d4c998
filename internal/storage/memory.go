package storage

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func NewMemory() Store {
	return &memoryStore{docs: map[string][]byte{}}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (s *memoryStore) Put(_ context.Context, key string, doc []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	s.docs[key] = append([]byte(nil), doc...)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.docs, key)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Close() error { return nil }
