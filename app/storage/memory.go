package storage

import (
	"context"
	"sort"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStore is a process-local Store used for dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object)}
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[cleaned]
	return ok, nil
}

func (s *MemoryStore) Read(ctx context.Context, key string) ([]byte, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[cleaned]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), obj.Data...), nil
}

func (s *MemoryStore) Write(ctx context.Context, key string, data []byte, contentType string) error {
	cleaned, err := cleanKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[cleaned] = Object{
		Data:        append([]byte(nil), data...),
		ContentType: contentType,
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Object returns a copy of the stored object and whether it exists.
func (s *MemoryStore) Object(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return Object{}, false
	}
	return Object{Data: append([]byte(nil), obj.Data...), ContentType: obj.ContentType}, true
}

func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
