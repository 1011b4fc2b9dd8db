package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps artifacts in process memory. It backs local runs without
// an object store and the workflow tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (s *MemoryStore) Put(_ context.Context, ref string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[ref] = memoryObject{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[ref]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", ref, ErrNotFound)
	}
	return append([]byte(nil), obj.data...), nil
}

// ContentType reports the content type an artifact was stored with.
func (s *MemoryStore) ContentType(ref string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[ref].contentType
}
