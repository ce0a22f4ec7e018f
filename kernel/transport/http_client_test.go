package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openziti/storelab/kernel/model"
	"github.com/openziti/storelab/kernel/server"
	"github.com/openziti/storelab/kernel/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockOrchestrator(t *testing.T) (*HTTPClient, *server.Backend) {
	t.Helper()
	opts := server.DefaultOptions()
	opts.AutoProvision = false
	backend := server.NewBackend(store.NewMemoryStore(), opts)
	srv := httptest.NewServer(server.NewRouter(backend))
	t.Cleanup(func() {
		srv.Close()
		backend.Close()
	})
	return NewHTTPClient(srv.URL+"/", 5*time.Second), backend
}

func TestHTTPClient_StoreLifecycle(t *testing.T) {
	client, backend := newMockOrchestrator(t)
	ctx := context.Background()

	stores, err := client.ListStores(ctx)
	require.NoError(t, err)
	assert.NotNil(t, stores)
	assert.Empty(t, stores)

	created, err := client.CreateStore(ctx, "my-shop", model.TypeWooCommerce)
	require.NoError(t, err)
	assert.Equal(t, "my-shop", created.Name)
	assert.Equal(t, model.StatusProvisioning, created.Status)

	_, err = client.GetAdminCredentials(ctx, created.Id)
	assert.True(t, errors.Is(err, ErrNotReady), "expected not ready, got %v", err)

	require.NoError(t, backend.MarkReady(created.Id))

	creds, err := client.GetAdminCredentials(ctx, created.Id)
	require.NoError(t, err)
	assert.Equal(t, "admin", creds.AdminUser)

	events, err := client.ListAuditEvents(ctx, 20)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.ActionProvisionReady, events[0].Action)

	require.NoError(t, client.DeleteStore(ctx, created.Id))

	err = client.DeleteStore(ctx, created.Id)
	assert.True(t, errors.Is(err, ErrNotFound), "expected not found, got %v", err)
}

func TestHTTPClient_ErrorCategories(t *testing.T) {
	client, _ := newMockOrchestrator(t)
	ctx := context.Background()

	_, err := client.CreateStore(ctx, "taken", model.TypeMedusa)
	require.NoError(t, err)

	_, err = client.CreateStore(ctx, "taken", model.TypeMedusa)
	assert.Equal(t, CategoryConflict, CategoryOf(err))
	assert.Equal(t, "Store with name 'taken' already exists", Detail(err))

	_, err = client.CreateStore(ctx, "x", model.TypeMedusa)
	assert.Equal(t, CategoryValidation, CategoryOf(err))
	assert.Contains(t, Detail(err), "between 3 and 50")

	medusa, err := client.CreateStore(ctx, "medusa-shop", model.TypeMedusa)
	require.NoError(t, err)
	_, err = client.GetAdminCredentials(ctx, medusa.Id)
	assert.Equal(t, CategoryNotReady, CategoryOf(err))
	assert.Equal(t, "Admin credentials are only available for WooCommerce stores", Detail(err))

	_, err = client.GetAdminCredentials(ctx, "nope")
	assert.Equal(t, CategoryNotFound, CategoryOf(err))
}

func TestHTTPClient_ServerFailures(t *testing.T) {
	var requestId atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId.Store(r.Header.Get(RequestIDHeader))
		switch r.URL.Path {
		case "/api/v1/stores":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
		case "/api/v1/audit-events":
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"detail":"Rate limit exceeded"}`))
		default:
			time.Sleep(200 * time.Millisecond)
		}
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, 50*time.Millisecond)
	ctx := context.Background()

	_, err := client.ListStores(ctx)
	assert.Equal(t, CategoryServer, CategoryOf(err))
	assert.Equal(t, "boom", Detail(err))
	assert.NotEmpty(t, requestId.Load())

	_, err = client.ListAuditEvents(ctx, 5)
	assert.Equal(t, CategoryServer, CategoryOf(err))
	assert.Equal(t, "Rate limit exceeded", Detail(err))

	err = client.DeleteStore(ctx, "slow")
	assert.Equal(t, CategoryServer, CategoryOf(err))
	assert.Equal(t, "request timed out", Detail(err))
}

func TestHTTPClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPClient(url, time.Second).ListStores(context.Background())
	assert.Equal(t, CategoryServer, CategoryOf(err))
	assert.Equal(t, "unable to reach server", Detail(err))
}
