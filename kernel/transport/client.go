package transport

import (
	"context"

	"github.com/openziti/storelab/kernel/model"
)

// Client is the typed contract of the store orchestrator REST API. It holds
// no business logic and never retries.
type Client interface {
	ListStores(ctx context.Context) ([]model.Store, error)
	CreateStore(ctx context.Context, name string, storeType model.StoreType) (*model.Store, error)
	DeleteStore(ctx context.Context, id string) error
	GetAdminCredentials(ctx context.Context, id string) (*model.AdminCredentials, error)
	ListAuditEvents(ctx context.Context, limit int) ([]model.AuditEvent, error)
}
