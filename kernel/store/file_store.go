package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/openziti/storelab/kernel/model"
)

// FileStore persists the mock backend state as a single JSON document so a
// restarted mock-server keeps its stores.
type FileStore struct {
	Path string
	mu   sync.RWMutex
}

type fileState struct {
	Stores []model.Store      `json:"stores"`
	Events []model.AuditEvent `json:"events"`
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) ListStores() ([]model.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, err := s.loadUnsafe()
	if err != nil {
		return nil, err
	}
	return state.Stores, nil
}

func (s *FileStore) GetStore(id string) (*model.Store, error) {
	stores, err := s.ListStores()
	if err != nil {
		return nil, err
	}
	if st, found := model.FindStore(stores, id); found {
		return &st, nil
	}
	return nil, fmt.Errorf("store [%s] %w", id, ErrNotFound)
}

func (s *FileStore) GetStoreByName(name string) (*model.Store, error) {
	stores, err := s.ListStores()
	if err != nil {
		return nil, err
	}
	for _, st := range stores {
		if st.Name == name {
			return &st, nil
		}
	}
	return nil, fmt.Errorf("store named [%s] %w", name, ErrNotFound)
}

func (s *FileStore) SaveStore(store model.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadUnsafe()
	if err != nil {
		return err
	}
	replaced := false
	for i := range state.Stores {
		if state.Stores[i].Id == store.Id {
			state.Stores[i] = store
			replaced = true
			break
		}
	}
	if !replaced {
		state.Stores = append(state.Stores, store)
	}
	return s.saveUnsafe(state)
}

func (s *FileStore) DeleteStore(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadUnsafe()
	if err != nil {
		return err
	}
	for i := range state.Stores {
		if state.Stores[i].Id == id {
			state.Stores = append(state.Stores[:i], state.Stores[i+1:]...)
			return s.saveUnsafe(state)
		}
	}
	return fmt.Errorf("store [%s] %w", id, ErrNotFound)
}

func (s *FileStore) AppendEvent(event model.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadUnsafe()
	if err != nil {
		return err
	}
	state.Events = append(state.Events, event)
	return s.saveUnsafe(state)
}

func (s *FileStore) ListEvents(limit int) ([]model.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, err := s.loadUnsafe()
	if err != nil {
		return nil, err
	}
	return newestFirst(state.Events, limit), nil
}

func (s *FileStore) loadUnsafe() (*fileState, error) {
	state := &fileState{}
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		state.Stores = []model.Store{}
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}
	if state.Stores == nil {
		state.Stores = []model.Store{}
	}
	return state, nil
}

func (s *FileStore) saveUnsafe(state *fileState) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.WriteFile(s.Path, data, 0644); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	return nil
}
