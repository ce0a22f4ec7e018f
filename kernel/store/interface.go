package store

import (
	"errors"

	"github.com/openziti/storelab/kernel/model"
)

var ErrNotFound = errors.New("not found")

// StateStore holds the orchestrator's store records for the mock backend.
type StateStore interface {
	ListStores() ([]model.Store, error)
	GetStore(id string) (*model.Store, error)
	GetStoreByName(name string) (*model.Store, error)
	SaveStore(store model.Store) error
	DeleteStore(id string) error
}

// AuditStore extends StateStore with the append-only activity log.
type AuditStore interface {
	StateStore
	AppendEvent(event model.AuditEvent) error
	ListEvents(limit int) ([]model.AuditEvent, error)
}
