package memstore

import (
	"maps"
	"sync"

	"github.com/jrsteele09/go-session-watcher/tokenstore"
)

var _ tokenstore.Store = (*MemStore)(nil)

// MemStore keeps values in memory. Nothing survives a restart.
type MemStore struct {
	values map[string]string
	lock   sync.RWMutex
}

func New() *MemStore {
	return &MemStore{
		values: make(map[string]string),
	}
}

func (s *MemStore) Get(key string) (string, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemStore) Set(key, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemStore) SetMany(values map[string]string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	maps.Copy(s.values, values)
	return nil
}

func (s *MemStore) Delete(key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.values, key)
	return nil
}

func (s *MemStore) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	clear(s.values)
	return nil
}

// Len returns the number of stored keys.
func (s *MemStore) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.values)
}
