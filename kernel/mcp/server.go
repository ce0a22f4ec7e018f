package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/openziti/storelab/kernel/cache"
	"github.com/openziti/storelab/kernel/engine"
	"github.com/openziti/storelab/kernel/loader"
	"github.com/openziti/storelab/kernel/model"
	"github.com/openziti/storelab/kernel/session"
	"github.com/openziti/storelab/kernel/transport"
)

const statusURI = "storelab://status"

type StorelabMCPServer struct {
	server     *server.MCPServer
	session    *session.Session
	reconciler *engine.Reconciler
}

func NewStorelabMCPServer(s *session.Session) *StorelabMCPServer {
	srv := server.NewMCPServer(
		"Storelab",
		model.Version,
		server.WithResourceCapabilities(true, true),
		server.WithToolCapabilities(true),
	)

	ms := &StorelabMCPServer{
		server:     srv,
		session:    s,
		reconciler: engine.NewReconciler(s.Coordinator),
	}

	ms.registerTools()
	ms.registerResources()

	return ms
}

func (ms *StorelabMCPServer) ServeStdio() error {
	return server.ServeStdio(ms.server)
}

func (ms *StorelabMCPServer) registerTools() {
	ms.server.AddTool(mcp.NewTool("list_stores",
		mcp.WithDescription("List all stores with their status; provisioning stores include elapsed time"),
	), ms.listStoresHandler)

	ms.server.AddTool(mcp.NewTool("create_store",
		mcp.WithDescription("Create a new store; provisioning continues in the background"),
		mcp.WithString("name",
			mcp.Description("Store name (lowercase letters, digits and '-')"),
			mcp.Required(),
		),
		mcp.WithString("type",
			mcp.Description("Store type (woocommerce or medusa)"),
			mcp.Required(),
		),
	), ms.createStoreHandler)

	ms.server.AddTool(mcp.NewTool("delete_store",
		mcp.WithDescription("Delete a store by id"),
		mcp.WithString("id",
			mcp.Description("Store id"),
			mcp.Required(),
		),
	), ms.deleteStoreHandler)

	ms.server.AddTool(mcp.NewTool("get_admin_credentials",
		mcp.WithDescription("Fetch the admin credentials of a READY WooCommerce store"),
		mcp.WithString("id",
			mcp.Description("Store id"),
			mcp.Required(),
		),
		mcp.WithBoolean("reveal",
			mcp.Description("Include the password instead of a mask"),
			mcp.DefaultBool(false),
		),
	), ms.getAdminCredentialsHandler)

	ms.server.AddTool(mcp.NewTool("list_audit_events",
		mcp.WithDescription("List recent audit events, newest first"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of events"),
			mcp.DefaultNumber(model.DefaultAuditLimit),
		),
	), ms.listAuditEventsHandler)

	ms.server.AddTool(mcp.NewTool("apply_manifest",
		mcp.WithDescription("Create (and optionally prune) stores to match a YAML manifest"),
		mcp.WithString("manifest_path",
			mcp.Description("Path to the manifest file"),
			mcp.Required(),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Only report the plan"),
			mcp.DefaultBool(false),
		),
		mcp.WithBoolean("prune",
			mcp.Description("Delete stores missing from the manifest"),
			mcp.DefaultBool(false),
		),
	), ms.applyManifestHandler)
}

func (ms *StorelabMCPServer) registerResources() {
	resource := mcp.NewResource(statusURI, "Storelab Status",
		mcp.WithResourceDescription("Store counts by status"),
		mcp.WithMIMEType("application/json"),
	)
	ms.server.AddResource(resource, ms.statusHandler)
}

type storeView struct {
	model.Store
	AdminUrl string `json:"admin_url,omitempty"`
	Elapsed  string `json:"elapsed,omitempty"`
}

func (ms *StorelabMCPServer) listStoresHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := ms.session.Cache.Refresh(ctx, ms.session.StoresQuery())
	if err != nil {
		return nil, err
	}
	stores, _ := cache.Value[[]model.Store](snap)
	if snap.Err != nil && !snap.HasValue {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list stores: %s", transport.Detail(snap.Err))), nil
	}

	views := make([]storeView, 0, len(stores))
	for _, s := range stores {
		views = append(views, storeView{Store: s, AdminUrl: s.AdminURL(), Elapsed: ms.session.Elapsed.Display(s.Id)})
	}
	response := map[string]any{
		"count":  len(views),
		"stores": views,
		"stats":  model.CountByStatus(stores),
	}
	if snap.Err != nil {
		response["warning"] = "showing stale data: " + transport.Detail(snap.Err)
	}
	return jsonResult(response)
}

func (ms *StorelabMCPServer) createStoreHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name argument is required"), nil
	}
	storeType, err := request.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError("type argument is required"), nil
	}

	m := ms.session.Coordinator.Create(ctx, name, model.StoreType(storeType))
	if err := m.Wait(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create store: %s", transport.Detail(err))), nil
	}
	return jsonResult(m.Result())
}

func (ms *StorelabMCPServer) deleteStoreHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id argument is required"), nil
	}

	m := ms.session.Coordinator.Delete(ctx, id)
	if err := m.Wait(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete store [%s]: %s", id, transport.Detail(err))), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Store '%s' deleted.", id)), nil
}

func (ms *StorelabMCPServer) getAdminCredentialsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id argument is required"), nil
	}
	reveal := request.GetBool("reveal", false)

	view := ms.session.Coordinator.NewCredentialsView()
	defer view.Close()

	if err := view.Open(ctx, id).Wait(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch credentials: %s", transport.Detail(err))), nil
	}
	current := view.Current()
	if current.Credentials == nil {
		return mcp.NewToolResultError("credentials are no longer available"), nil
	}
	return jsonResult(current.Credentials.Render(reveal))
}

func (ms *StorelabMCPServer) listAuditEventsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", model.DefaultAuditLimit)
	if limit <= 0 {
		return mcp.NewToolResultError("limit must be positive"), nil
	}

	events, err := ms.session.Client.ListAuditEvents(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list audit events: %s", transport.Detail(err))), nil
	}
	return jsonResult(map[string]any{
		"count":  len(events),
		"events": events,
	})
}

func (ms *StorelabMCPServer) applyManifestHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("manifest_path")
	if err != nil {
		return mcp.NewToolResultError("manifest_path argument is required"), nil
	}
	dryRun := request.GetBool("dry_run", false)
	prune := request.GetBool("prune", false)

	manifest, err := loader.LoadManifest(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load manifest: %v", err)), nil
	}
	current, err := ms.session.Client.ListStores(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list stores: %s", transport.Detail(err))), nil
	}
	plan := engine.ComputePlan(manifest, current, prune)

	response := map[string]any{
		"dry_run":   dryRun,
		"create":    len(plan.ToCreate),
		"delete":    len(plan.ToDelete),
		"unchanged": len(plan.Unchanged),
		"conflicts": len(plan.Conflicts),
	}
	if dryRun {
		return jsonResult(response)
	}

	result, err := ms.reconciler.Apply(ctx, plan)
	response["created"] = result.Created
	response["deleted"] = result.Deleted
	response["failed"] = result.Failed
	if err != nil {
		response["error"] = err.Error()
	}
	return jsonResult(response)
}

func (ms *StorelabMCPServer) statusHandler(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	snap, err := ms.session.Cache.Refresh(ctx, ms.session.StoresQuery())
	if err != nil {
		return nil, err
	}
	if snap.Err != nil && !snap.HasValue {
		return nil, fmt.Errorf("failed to list stores: %w", snap.Err)
	}
	stores, _ := cache.Value[[]model.Store](snap)

	data, err := json.Marshal(map[string]any{
		"stats": model.CountByStatus(stores),
		"stale": snap.Err != nil,
	})
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      statusURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
