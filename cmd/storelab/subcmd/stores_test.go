package subcmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/openziti/storelab/kernel/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runStores(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewStoresCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStoresList(t *testing.T) {
	backend := startMockServer(t)
	_, err := backend.CreateStore("shop-one", model.TypeWooCommerce)
	require.NoError(t, err)

	out, err := runStores(t, "", "list", "--audit")
	require.NoError(t, err)
	assert.Contains(t, out, "shop-one")
	assert.Contains(t, out, "PROVISIONING (0m")
	assert.Contains(t, out, "CREATED")
}

func TestStoresList_JSON(t *testing.T) {
	backend := startMockServer(t)
	t.Setenv("STORELAB_OUTPUT", "json")
	_, err := backend.CreateStore("shop-one", model.TypeMedusa)
	require.NoError(t, err)

	out, err := runStores(t, "", "list")
	require.NoError(t, err)

	var doc struct {
		Items []model.Store `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "shop-one", doc.Items[0].Name)
}

func TestStoresList_Unreachable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("STORELAB_SERVER_URL", "http://127.0.0.1:1")

	_, err := runStores(t, "", "list")
	require.Error(t, err)
}

func TestStoresCreate(t *testing.T) {
	backend := startMockServer(t)

	out, err := runStores(t, "", "create", "My Shop!", "--type", "medusa")
	require.NoError(t, err)
	assert.Contains(t, out, "myshop")

	stores, err := backend.ListStores()
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, "myshop", stores[0].Name)
	assert.Equal(t, model.TypeMedusa, stores[0].Type)
}

func TestStoresCreate_Invalid(t *testing.T) {
	startMockServer(t)

	_, err := runStores(t, "", "create", "!!!")
	require.Error(t, err)

	_, err = runStores(t, "", "create", "shop", "--type", "magento")
	require.Error(t, err)
}

func TestStoresDelete(t *testing.T) {
	backend := startMockServer(t)
	st, err := backend.CreateStore("shop-one", model.TypeWooCommerce)
	require.NoError(t, err)

	out, err := runStores(t, "", "delete", st.Id, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "would delete store 'shop-one'")

	out, err = runStores(t, "n\n", "delete", st.Id)
	require.NoError(t, err)
	assert.Contains(t, out, "aborted")

	stores, err := backend.ListStores()
	require.NoError(t, err)
	require.Len(t, stores, 1)

	out, err = runStores(t, "", "delete", st.Id, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted")

	stores, err = backend.ListStores()
	require.NoError(t, err)
	assert.Empty(t, stores)
}

func TestStoresDelete_NotFound(t *testing.T) {
	startMockServer(t)

	_, err := runStores(t, "", "delete", "missing", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStoresCredentials(t *testing.T) {
	backend := startMockServer(t)
	st, err := backend.CreateStore("shop-one", model.TypeWooCommerce)
	require.NoError(t, err)

	_, err = runStores(t, "", "credentials", st.Id)
	require.Error(t, err, "credentials of a provisioning store")

	require.NoError(t, backend.MarkReady(st.Id))
	creds, err := backend.GetAdminCredentials(st.Id)
	require.NoError(t, err)

	out, err := runStores(t, "", "credentials", st.Id)
	require.NoError(t, err)
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, creds.AdminPassword)

	out, err = runStores(t, "", "credentials", st.Id, "--reveal")
	require.NoError(t, err)
	assert.Contains(t, out, creds.AdminPassword)
}

func TestAuditCommand(t *testing.T) {
	backend := startMockServer(t)
	for _, name := range []string{"shop-a", "shop-b", "shop-c"} {
		_, err := backend.CreateStore(name, model.TypeWooCommerce)
		require.NoError(t, err)
	}

	var out bytes.Buffer
	cmd := NewAuditCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--limit", "2"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "shop-c")
	assert.Contains(t, out.String(), "shop-b")
	assert.NotContains(t, out.String(), "shop-a")
}
