package mutation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openziti/storelab/kernel/cache"
	"github.com/openziti/storelab/kernel/model"
	"github.com/openziti/storelab/kernel/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory transport.Client whose calls can be held open.
type fakeClient struct {
	mu          sync.Mutex
	stores      []model.Store
	createErr   error
	deleteErr   error
	creds       map[string]*transport.Error
	deleteCalls atomic.Int32
	credsCalls  atomic.Int32
	createCalls atomic.Int32
	deleteGate  chan struct{}
	listGate    chan struct{}
	credsGate   map[string]chan struct{}
}

func newFakeClient(stores ...model.Store) *fakeClient {
	return &fakeClient{stores: stores, creds: map[string]*transport.Error{}, credsGate: map[string]chan struct{}{}}
}

func (f *fakeClient) ListStores(ctx context.Context) ([]model.Store, error) {
	f.mu.Lock()
	gate := f.listGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Store(nil), f.stores...), nil
}

func (f *fakeClient) CreateStore(ctx context.Context, name string, storeType model.StoreType) (*model.Store, error) {
	f.createCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	st := model.Store{Id: "id-" + name, Name: name, Type: storeType, Status: model.StatusProvisioning}
	f.stores = append(f.stores, st)
	return &st, nil
}

func (f *fakeClient) DeleteStore(ctx context.Context, id string) error {
	f.deleteCalls.Add(1)
	if f.deleteGate != nil {
		<-f.deleteGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, st := range f.stores {
		if st.Id == id {
			f.stores = append(f.stores[:i], f.stores[i+1:]...)
			return nil
		}
	}
	return &transport.Error{Category: transport.CategoryNotFound, Status: 404, Detail: "Store not found"}
}

func (f *fakeClient) GetAdminCredentials(ctx context.Context, id string) (*model.AdminCredentials, error) {
	f.credsCalls.Add(1)
	f.mu.Lock()
	gate := f.credsGate[id]
	failure := f.creds[id]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if failure != nil {
		return nil, failure
	}
	return &model.AdminCredentials{AdminUser: "admin-" + id, AdminPassword: "secret-" + id}, nil
}

func (f *fakeClient) ListAuditEvents(ctx context.Context, limit int) ([]model.AuditEvent, error) {
	return []model.AuditEvent{}, nil
}

func newTestCoordinator(t *testing.T, client *fakeClient) (*Coordinator, *cache.Cache) {
	t.Helper()
	c := cache.New(time.Second)
	c.Register(cache.StoresQuery(), func(ctx context.Context) (any, error) {
		return client.ListStores(ctx)
	})
	c.Register(cache.AuditQuery(20), func(ctx context.Context) (any, error) {
		return client.ListAuditEvents(ctx, 20)
	})
	_, err := c.Refresh(context.Background(), cache.StoresQuery())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return NewCoordinator(client, c), c
}

func cachedStores(t *testing.T, c *cache.Cache) []model.Store {
	t.Helper()
	snap, found := c.Get(cache.StoresQuery())
	require.True(t, found)
	stores, ok := cache.Value[[]model.Store](snap)
	require.True(t, ok)
	return stores
}

func TestCoordinator_CreateRefreshesImmediately(t *testing.T) {
	client := newFakeClient()
	coord, c := newTestCoordinator(t, client)

	coord.SetForm("My-Store", model.TypeWooCommerce)
	assert.Equal(t, "my-store", coord.Form().Name)

	m := coord.Create(context.Background(), "My Store!", model.TypeWooCommerce)
	require.NoError(t, m.Wait(context.Background()))
	assert.Equal(t, StateSucceeded, m.State())

	stores := cachedStores(t, c)
	require.Len(t, stores, 1)
	assert.Equal(t, "mystore", stores[0].Name)
	assert.Equal(t, model.StatusProvisioning, stores[0].Status)

	assert.Equal(t, "", coord.Form().Name, "form is cleared on success")
	assert.False(t, coord.CreatePending())
}

func TestCoordinator_CreateRejectsInvalidInput(t *testing.T) {
	client := newFakeClient()
	coord, _ := newTestCoordinator(t, client)

	m := coord.Create(context.Background(), "!!!", model.TypeWooCommerce)
	<-m.Done()
	assert.Equal(t, StateFailed, m.State())
	assert.True(t, errors.Is(m.Err(), transport.ErrValidation))

	m = coord.Create(context.Background(), "good-name", model.StoreType("magento"))
	<-m.Done()
	assert.True(t, errors.Is(m.Err(), transport.ErrValidation))
	assert.Equal(t, int32(0), client.createCalls.Load())
}

func TestCoordinator_CreateFailurePreservesForm(t *testing.T) {
	client := newFakeClient()
	client.createErr = &transport.Error{Category: transport.CategoryConflict, Status: 409, Detail: "Store with name 'taken' already exists"}
	coord, c := newTestCoordinator(t, client)
	before, _ := c.Get(cache.StoresQuery())

	m := coord.Create(context.Background(), "taken", model.TypeMedusa)
	err := m.Wait(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, transport.ErrConflict))
	assert.Equal(t, "Store with name 'taken' already exists", m.Detail())

	form := coord.Form()
	assert.Equal(t, "taken", form.Name)
	assert.Equal(t, model.TypeMedusa, form.Type)
	assert.Equal(t, "Store with name 'taken' already exists", form.Error)

	after, _ := c.Get(cache.StoresQuery())
	assert.Equal(t, before.Seq, after.Seq, "failed create does not refresh")
}

func TestCoordinator_DoubleDeleteSendsOneRequest(t *testing.T) {
	client := newFakeClient(model.Store{Id: "s1", Name: "one", Type: model.TypeWooCommerce, Status: model.StatusReady})
	client.deleteGate = make(chan struct{})
	coord, c := newTestCoordinator(t, client)

	first := coord.Delete(context.Background(), "s1")
	second := coord.Delete(context.Background(), "s1")
	assert.Same(t, first, second)
	assert.True(t, coord.DeleteDisabled("s1"))
	assert.False(t, coord.DeleteDisabled("s2"))
	assert.Equal(t, StatePending, first.State())

	close(client.deleteGate)
	require.NoError(t, first.Wait(context.Background()))
	coord.Wait()

	assert.Equal(t, int32(1), client.deleteCalls.Load())
	assert.False(t, coord.DeleteDisabled("s1"))
	assert.Empty(t, cachedStores(t, c))
}

func TestCoordinator_DeleteStaysClaimedWhileRefreshing(t *testing.T) {
	client := newFakeClient(model.Store{Id: "s1", Name: "one", Type: model.TypeWooCommerce, Status: model.StatusReady})
	coord, c := newTestCoordinator(t, client)

	gate := make(chan struct{})
	client.mu.Lock()
	client.listGate = gate
	client.mu.Unlock()

	first := coord.Delete(context.Background(), "s1")
	require.Eventually(t, func() bool {
		return client.deleteCalls.Load() == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, StatePending, first.State())
	assert.True(t, coord.DeleteDisabled("s1"))
	assert.Same(t, first, coord.Delete(context.Background(), "s1"))

	close(gate)
	require.NoError(t, first.Wait(context.Background()))
	coord.Wait()

	assert.Equal(t, int32(1), client.deleteCalls.Load())
	assert.False(t, coord.DeleteDisabled("s1"))
	assert.Empty(t, cachedStores(t, c))
}

func TestCoordinator_DeleteFailureKeepsSnapshot(t *testing.T) {
	client := newFakeClient(model.Store{Id: "s1", Name: "one", Type: model.TypeWooCommerce, Status: model.StatusReady})
	client.deleteErr = &transport.Error{Category: transport.CategoryServer, Status: 500, Detail: "helm uninstall failed"}
	coord, c := newTestCoordinator(t, client)
	before, _ := c.Get(cache.StoresQuery())

	m := coord.Delete(context.Background(), "s1")
	require.Error(t, m.Wait(context.Background()))
	assert.Equal(t, "helm uninstall failed", m.Detail())
	coord.Wait()

	assert.False(t, coord.DeleteDisabled("s1"), "delete is re-enabled after failure")
	after, _ := c.Get(cache.StoresQuery())
	assert.Equal(t, before.Seq, after.Seq)

	// a new delete after failure is a new mutation
	client.mu.Lock()
	client.deleteErr = nil
	client.mu.Unlock()
	again := coord.Delete(context.Background(), "s1")
	assert.NotSame(t, m, again)
	require.NoError(t, again.Wait(context.Background()))
	assert.Equal(t, int32(2), client.deleteCalls.Load())
}

func TestMutation_FinishIsTerminal(t *testing.T) {
	m := newMutation(KindDelete, "s1")
	assert.Equal(t, StateIdle, m.State())
	m.start()
	m.finish(nil, errors.New("first"))
	m.finish("ignored", nil)
	assert.Equal(t, StateFailed, m.State())
	assert.EqualError(t, m.Err(), "first")
	assert.Nil(t, m.Result())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pending := newMutation(KindCreate, "x")
	assert.ErrorIs(t, pending.Wait(ctx), context.Canceled)
}
