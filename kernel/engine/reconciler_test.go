package engine

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openziti/storelab/kernel/cache"
	"github.com/openziti/storelab/kernel/model"
	"github.com/openziti/storelab/kernel/mutation"
	"github.com/openziti/storelab/kernel/server"
	"github.com/openziti/storelab/kernel/store"
	"github.com/openziti/storelab/kernel/transport"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func provisioning(id string, created time.Time) model.Store {
	return model.Store{Id: id, Name: "store-" + id, Type: model.TypeWooCommerce, Status: model.StatusProvisioning, CreatedAt: model.NewTimestamp(created)}
}

func withStatus(s model.Store, status model.StoreStatus) model.Store {
	s.Status = status
	return s
}

func TestReconciler_Diff_NoChanges(t *testing.T) {
	stores := []model.Store{provisioning("s1", t0), withStatus(provisioning("s2", t0), model.StatusReady)}
	running := map[string]model.Timestamp{"s1": model.NewTimestamp(t0)}

	diff := ComputeDiff(stores, running)

	if !diff.Empty() {
		t.Errorf("expected empty diff, got %+v", diff)
	}
}

func TestReconciler_Diff_CreateNew(t *testing.T) {
	stores := []model.Store{provisioning("s1", t0), provisioning("s2", t0), provisioning("s2", t0)}
	running := map[string]model.Timestamp{"s1": model.NewTimestamp(t0)}

	diff := ComputeDiff(stores, running)

	if len(diff.ToCreate) != 1 {
		t.Fatalf("expected 1 create, got %d", len(diff.ToCreate))
	}
	if diff.ToCreate[0].Id != "s2" {
		t.Errorf("expected s2 to be created, got %s", diff.ToCreate[0].Id)
	}
}

func TestReconciler_Diff_Delete(t *testing.T) {
	stores := []model.Store{withStatus(provisioning("s1", t0), model.StatusReady)}
	running := map[string]model.Timestamp{
		"s1": model.NewTimestamp(t0),
		"s2": model.NewTimestamp(t0),
	}

	diff := ComputeDiff(stores, running)

	if len(diff.ToDelete) != 2 {
		t.Fatalf("expected 2 deletes, got %d", len(diff.ToDelete))
	}
	if diff.ToDelete[0] != "s1" || diff.ToDelete[1] != "s2" {
		t.Errorf("expected [s1 s2], got %v", diff.ToDelete)
	}
}

func TestReconciler_Diff_Update(t *testing.T) {
	stores := []model.Store{provisioning("s1", t0.Add(time.Minute))}
	running := map[string]model.Timestamp{"s1": model.NewTimestamp(t0)}

	diff := ComputeDiff(stores, running)

	if len(diff.ToUpdate) != 1 || len(diff.ToCreate) != 0 || len(diff.ToDelete) != 0 {
		t.Errorf("expected a single update, got %+v", diff)
	}
}

func TestComputePlan(t *testing.T) {
	manifest := &model.Manifest{Stores: []model.StoreSpec{
		{Name: "keep", Type: model.TypeWooCommerce},
		{Name: "new-one", Type: model.TypeMedusa},
		{Name: "retyped", Type: model.TypeMedusa},
	}}
	current := []model.Store{
		{Id: "1", Name: "keep", Type: model.TypeWooCommerce, Status: model.StatusReady},
		{Id: "2", Name: "retyped", Type: model.TypeWooCommerce, Status: model.StatusReady},
		{Id: "3", Name: "orphan", Type: model.TypeWooCommerce, Status: model.StatusFailed},
		{Id: "4", Name: "leaving", Type: model.TypeWooCommerce, Status: model.StatusDeleting},
	}

	plan := ComputePlan(manifest, current, false)
	if len(plan.ToCreate) != 1 || plan.ToCreate[0].Name != "new-one" {
		t.Errorf("expected new-one to be created, got %v", plan.ToCreate)
	}
	if len(plan.Unchanged) != 1 || len(plan.Conflicts) != 1 {
		t.Errorf("expected 1 unchanged and 1 conflict, got %d and %d", len(plan.Unchanged), len(plan.Conflicts))
	}
	if len(plan.ToDelete) != 0 {
		t.Errorf("expected no deletes without prune, got %d", len(plan.ToDelete))
	}

	plan = ComputePlan(manifest, current, true)
	if len(plan.ToDelete) != 1 || plan.ToDelete[0].Name != "orphan" {
		t.Errorf("expected orphan to be pruned, got %v", plan.ToDelete)
	}
}

func newTestReconciler(t *testing.T) (*Reconciler, *cache.Cache, *transport.HTTPClient) {
	t.Helper()
	opts := server.DefaultOptions()
	opts.AutoProvision = false
	backend := server.NewBackend(store.NewMemoryStore(), opts)
	srv := httptest.NewServer(server.NewRouter(backend))
	t.Cleanup(srv.Close)

	client := transport.NewHTTPClient(srv.URL, 5*time.Second)
	c := cache.New(5 * time.Second)
	t.Cleanup(c.Close)
	c.Register(cache.StoresQuery(), func(ctx context.Context) (any, error) {
		return client.ListStores(ctx)
	})
	return NewReconciler(mutation.NewCoordinator(client, c)), c, client
}

func TestReconciler_Apply(t *testing.T) {
	r, c, client := newTestReconciler(t)
	ctx := context.Background()

	manifest := &model.Manifest{Stores: []model.StoreSpec{
		{Name: "apply-one", Type: model.TypeWooCommerce},
		{Name: "apply-two", Type: model.TypeMedusa},
	}}
	result, err := r.Apply(ctx, ComputePlan(manifest, nil, false))
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if result.Created != 2 {
		t.Errorf("expected 2 created, got %d", result.Created)
	}

	snap, _ := c.Get(cache.StoresQuery())
	stores, _ := cache.Value[[]model.Store](snap)
	if len(stores) != 2 {
		t.Errorf("expected the cache to hold 2 stores after apply, got %d", len(stores))
	}

	// a second apply against the refreshed list is a no-op
	current, err := client.ListStores(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	plan := ComputePlan(manifest, current, true)
	result2, err := r.Apply(ctx, plan)
	if err != nil {
		t.Fatalf("second apply failed: %v", err)
	}
	if result2.Created != 0 || result2.Deleted != 0 {
		t.Errorf("second apply should change nothing, got %+v", result2)
	}
	if result2.Unchanged != 2 {
		t.Errorf("expected 2 unchanged, got %d", result2.Unchanged)
	}
}

func TestReconciler_ApplyReportsFailures(t *testing.T) {
	r, _, _ := newTestReconciler(t)

	plan := Plan{
		ToCreate: []model.StoreSpec{{Name: "ok-store", Type: model.TypeWooCommerce}},
		ToDelete: []model.Store{{Id: "does-not-exist", Name: "ghost"}},
	}
	result, err := r.Apply(context.Background(), plan)
	if err == nil {
		t.Fatal("expected an error when an operation fails")
	}
	if result.Created != 1 || result.Failed != 1 {
		t.Errorf("expected 1 created and 1 failed, got %+v", result)
	}
}
