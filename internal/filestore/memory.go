package filestore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	appErr "github.com/pgmiso/sc-landingai/internal/pkg/errors"
)

// MemoryStore is an in-process Store used by tests and as scratch storage
// for ephemeral runs. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func init() {
	Register("memory", func(args interface{}) (Store, error) {
		return NewMemoryStore(), nil
	})
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Type() string {
	return "memory"
}

func (s *MemoryStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_ = ctx
	_ = contentType
	if key == "" {
		return fmt.Errorf("object key is required")
	}
	data := make([]byte, len(body))
	copy(data, body)
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	_ = ctx
	s.mu.RLock()
	data, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", appErr.ErrNotFound, key)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_ = ctx
	s.mu.RLock()
	_, ok := s.objects[key]
	s.mu.RUnlock()
	return ok, nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Len reports the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
