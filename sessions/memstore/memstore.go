package memstore

import (
	"sync"

	"github.com/jrsteele09/go-auth-session/sessions"
)

var _ sessions.Store = (*InMemoryStore)(nil)

// InMemoryStore is a map backed sessions.Store
type InMemoryStore struct {
	mu     sync.RWMutex
	values map[sessions.Key]string
}

// New creates an empty in-memory store
func New() *InMemoryStore {
	return &InMemoryStore{
		values: make(map[sessions.Key]string),
	}
}

func (s *InMemoryStore) Get(key sessions.Key) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *InMemoryStore) Set(key sessions.Key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *InMemoryStore) Remove(key sessions.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Keys returns a snapshot of the stored keys
func (s *InMemoryStore) Keys() []sessions.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]sessions.Key, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}
