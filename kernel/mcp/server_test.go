package mcp

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/openziti/storelab/kernel/model"
	"github.com/openziti/storelab/kernel/server"
	"github.com/openziti/storelab/kernel/session"
	"github.com/openziti/storelab/kernel/store"
	"github.com/openziti/storelab/kernel/transport"
)

func newTestServer(t *testing.T) (*StorelabMCPServer, *server.Backend) {
	t.Helper()
	opts := server.DefaultOptions()
	opts.AutoProvision = false
	backend := server.NewBackend(store.NewMemoryStore(), opts)
	srv := httptest.NewServer(server.NewRouter(backend))
	t.Cleanup(srv.Close)

	s := session.New(transport.NewHTTPClient(srv.URL, 5*time.Second), session.Options{PollInterval: time.Second})
	t.Cleanup(s.Close)
	return NewStorelabMCPServer(s), backend
}

func callArgs(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func decode(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &response); err != nil {
		t.Fatalf("unable to decode result: %v", err)
	}
	return response
}

func TestNewStorelabMCPServer(t *testing.T) {
	srv, _ := newTestServer(t)

	if srv == nil {
		t.Fatal("expected server to be created")
	}
	if srv.session == nil {
		t.Error("expected session to be set")
	}
	if srv.reconciler == nil {
		t.Error("expected reconciler to be set")
	}
}

func TestListStoresHandler(t *testing.T) {
	srv, backend := newTestServer(t)
	if _, err := backend.CreateStore("shop-one", model.TypeWooCommerce); err != nil {
		t.Fatal(err)
	}
	if _, err := backend.CreateStore("shop-two", model.TypeMedusa); err != nil {
		t.Fatal(err)
	}

	result, err := srv.listStoresHandler(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	response := decode(t, result)
	if int(response["count"].(float64)) != 2 {
		t.Errorf("expected 2 stores, got %v", response["count"])
	}
	stats := response["stats"].(map[string]interface{})
	if int(stats["provisioning"].(float64)) != 2 {
		t.Errorf("expected 2 provisioning stores, got %v", stats["provisioning"])
	}
}

func TestCreateStoreHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.createStoreHandler(context.Background(), callArgs(map[string]any{
		"name": "New-Shop",
		"type": "woocommerce",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %v", result.Content)
	}
	response := decode(t, result)
	if response["name"] != "new-shop" {
		t.Errorf("expected normalized name 'new-shop', got %v", response["name"])
	}

	result, err = srv.createStoreHandler(context.Background(), callArgs(map[string]any{
		"name": "new-shop",
		"type": "woocommerce",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error result for duplicate name")
	}
}

func TestDeleteStoreHandler_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.deleteStoreHandler(context.Background(), callArgs(map[string]any{"id": "nonexistent"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error result for nonexistent store")
	}
}

func TestGetAdminCredentialsHandler(t *testing.T) {
	srv, backend := newTestServer(t)
	st, err := backend.CreateStore("creds-shop", model.TypeWooCommerce)
	if err != nil {
		t.Fatal(err)
	}
	if err := backend.MarkReady(st.Id); err != nil {
		t.Fatal(err)
	}

	result, err := srv.getAdminCredentialsHandler(context.Background(), callArgs(map[string]any{"id": st.Id}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %v", result.Content)
	}
	if response := decode(t, result); response["admin_password"] != "********" {
		t.Errorf("expected masked password, got %v", response["admin_password"])
	}

	result, _ = srv.getAdminCredentialsHandler(context.Background(), callArgs(map[string]any{"id": st.Id, "reveal": true}))
	if response := decode(t, result); response["admin_password"] == "********" {
		t.Error("expected revealed password")
	}
}

func TestListAuditEventsHandler(t *testing.T) {
	srv, backend := newTestServer(t)
	for _, name := range []string{"audit-a", "audit-b", "audit-c"} {
		if _, err := backend.CreateStore(name, model.TypeMedusa); err != nil {
			t.Fatal(err)
		}
	}

	result, err := srv.listAuditEventsHandler(context.Background(), callArgs(map[string]any{"limit": 2}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response := decode(t, result); int(response["count"].(float64)) != 2 {
		t.Errorf("expected 2 events, got %v", response["count"])
	}
}

func TestApplyManifestHandler_DryRun(t *testing.T) {
	srv, _ := newTestServer(t)

	tmpDir := t.TempDir()
	manifestPath := filepath.Join(tmpDir, "stores.yaml")
	manifest := `
defaults:
  type: woocommerce
stores:
  - name: from-manifest
`
	if err := os.WriteFile(manifestPath, []byte(manifest), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	result, err := srv.applyManifestHandler(context.Background(), callArgs(map[string]any{
		"manifest_path": manifestPath,
		"dry_run":       true,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %v", result.Content)
	}

	response := decode(t, result)
	if response["dry_run"] != true {
		t.Error("expected dry_run to be true")
	}
	if int(response["create"].(float64)) != 1 {
		t.Errorf("expected 1 planned create, got %v", response["create"])
	}
}

func TestStatusHandler(t *testing.T) {
	srv, backend := newTestServer(t)
	if _, err := backend.CreateStore("status-shop", model.TypeWooCommerce); err != nil {
		t.Fatal(err)
	}

	contents, err := srv.statusHandler(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}

	text := contents[0].(mcp.TextResourceContents).Text
	var response struct {
		Stats model.Stats `json:"stats"`
	}
	if err := json.Unmarshal([]byte(text), &response); err != nil {
		t.Fatalf("unable to decode status: %v", err)
	}
	if response.Stats.Total != 1 || response.Stats.Provisioning != 1 {
		t.Errorf("unexpected stats: %+v", response.Stats)
	}
}
