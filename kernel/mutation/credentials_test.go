package mutation

import (
	"context"
	"errors"
	"testing"

	"github.com/openziti/storelab/kernel/model"
	"github.com/openziti/storelab/kernel/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyStore(id string, storeType model.StoreType) model.Store {
	return model.Store{Id: id, Name: "store-" + id, Type: storeType, Status: model.StatusReady, Url: "http://" + id + ".local"}
}

func TestCredentialsView_OpenAndClose(t *testing.T) {
	client := newFakeClient(readyStore("s1", model.TypeWooCommerce))
	coord, _ := newTestCoordinator(t, client)
	view := coord.NewCredentialsView()

	m := view.Open(context.Background(), "s1")
	require.NoError(t, m.Wait(context.Background()))

	snap := view.Current()
	assert.Equal(t, CredentialsLoaded, snap.State)
	require.NotNil(t, snap.Credentials)
	assert.Equal(t, "secret-s1", snap.Credentials.AdminPassword)

	view.Close()
	snap = view.Current()
	assert.Equal(t, CredentialsClosed, snap.State)
	assert.Nil(t, snap.Credentials)
	assert.Equal(t, "", snap.StoreId)
}

func TestCredentialsView_FailureNeverShowsOtherStore(t *testing.T) {
	client := newFakeClient(readyStore("s1", model.TypeWooCommerce), readyStore("s2", model.TypeWooCommerce))
	client.creds["s2"] = &transport.Error{Category: transport.CategoryNotReady, Status: 409, Detail: "Store is not ready"}
	coord, _ := newTestCoordinator(t, client)
	view := coord.NewCredentialsView()

	require.NoError(t, view.Open(context.Background(), "s1").Wait(context.Background()))
	require.NotNil(t, view.Current().Credentials)

	m := view.Open(context.Background(), "s2")
	assert.Nil(t, view.Current().Credentials, "opening clears held credentials")
	require.Error(t, m.Wait(context.Background()))

	snap := view.Current()
	assert.Equal(t, "s2", snap.StoreId)
	assert.Equal(t, CredentialsFailed, snap.State)
	assert.Nil(t, snap.Credentials)
	assert.True(t, errors.Is(snap.Err, transport.ErrNotReady))
}

func TestCredentialsView_DropsSupersededResponse(t *testing.T) {
	client := newFakeClient(readyStore("s1", model.TypeWooCommerce), readyStore("s2", model.TypeWooCommerce))
	gate := make(chan struct{})
	client.credsGate["s1"] = gate
	coord, _ := newTestCoordinator(t, client)
	view := coord.NewCredentialsView()

	slow := view.Open(context.Background(), "s1")
	require.NoError(t, view.Open(context.Background(), "s2").Wait(context.Background()))

	close(gate)
	require.NoError(t, slow.Wait(context.Background()))

	snap := view.Current()
	assert.Equal(t, "s2", snap.StoreId)
	require.NotNil(t, snap.Credentials)
	assert.Equal(t, "admin-s2", snap.Credentials.AdminUser)
}

func TestCredentialsView_GuardsWithoutRequest(t *testing.T) {
	provisioning := readyStore("p1", model.TypeWooCommerce)
	provisioning.Status = model.StatusProvisioning
	client := newFakeClient(provisioning, readyStore("m1", model.TypeMedusa))
	coord, _ := newTestCoordinator(t, client)
	view := coord.NewCredentialsView()

	for _, id := range []string{"p1", "m1"} {
		m := view.Open(context.Background(), id)
		err := m.Wait(context.Background())
		assert.True(t, errors.Is(err, transport.ErrNotReady), "%s: %v", id, err)
		assert.Equal(t, CredentialsFailed, view.Current().State)
	}
	assert.Equal(t, int32(0), client.credsCalls.Load())

	// unknown to the cache: the server decides
	client.creds["x9"] = &transport.Error{Category: transport.CategoryNotFound, Status: 404, Detail: "Store not found"}
	err := view.Open(context.Background(), "x9").Wait(context.Background())
	assert.True(t, errors.Is(err, transport.ErrNotFound))
	assert.Equal(t, int32(1), client.credsCalls.Load())
}
