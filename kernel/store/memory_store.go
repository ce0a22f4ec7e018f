package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/openziti/storelab/kernel/model"
)

// MemoryStore is an in-memory implementation of AuditStore.
type MemoryStore struct {
	mu     sync.RWMutex
	stores map[string]model.Store
	order  []string // insertion order of store ids
	events []model.AuditEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stores: make(map[string]model.Store),
	}
}

func (s *MemoryStore) ListStores() ([]model.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Store, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.stores[id])
	}
	return result, nil
}

func (s *MemoryStore) GetStore(id string) (*model.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stores[id]
	if !ok {
		return nil, fmt.Errorf("store [%s] %w", id, ErrNotFound)
	}
	return &st, nil
}

func (s *MemoryStore) GetStoreByName(name string) (*model.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if st := s.stores[id]; st.Name == name {
			return &st, nil
		}
	}
	return nil, fmt.Errorf("store named [%s] %w", name, ErrNotFound)
}

func (s *MemoryStore) SaveStore(store model.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stores[store.Id]; !ok {
		s.order = append(s.order, store.Id)
	}
	s.stores[store.Id] = store
	return nil
}

func (s *MemoryStore) DeleteStore(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stores[id]; !ok {
		return fmt.Errorf("store [%s] %w", id, ErrNotFound)
	}
	delete(s.stores, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) AppendEvent(event model.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	return nil
}

// ListEvents returns at most limit events, newest first.
func (s *MemoryStore) ListEvents(limit int) ([]model.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return newestFirst(s.events, limit), nil
}

func newestFirst(events []model.AuditEvent, limit int) []model.AuditEvent {
	result := make([]model.AuditEvent, len(events))
	for i, e := range events {
		result[len(events)-1-i] = e
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt.Time)
	})
	if limit >= 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
