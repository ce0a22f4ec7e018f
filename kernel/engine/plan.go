package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/openziti/storelab/kernel/model"
	"github.com/openziti/storelab/kernel/mutation"
	"github.com/sirupsen/logrus"
)

// Plan is what `apply` will do to move the server's stores to a manifest.
type Plan struct {
	ToCreate  []model.StoreSpec
	ToDelete  []model.Store
	Unchanged []model.Store
	// Conflicts exist under the desired name with a different type. Types are
	// immutable, so they are reported and left alone.
	Conflicts []model.Store
}

func (p Plan) Empty() bool {
	return len(p.ToCreate) == 0 && len(p.ToDelete) == 0
}

// ComputePlan diffs manifest against current by store name. With prune,
// stores absent from the manifest are deleted.
func ComputePlan(manifest *model.Manifest, current []model.Store, prune bool) Plan {
	var plan Plan

	byName := make(map[string]model.Store, len(current))
	for _, s := range current {
		byName[s.Name] = s
	}

	wanted := make(map[string]bool, len(manifest.Stores))
	for _, spec := range manifest.Stores {
		wanted[spec.Name] = true
		existing, found := byName[spec.Name]
		switch {
		case !found:
			plan.ToCreate = append(plan.ToCreate, spec)
		case existing.Type != spec.Type:
			plan.Conflicts = append(plan.Conflicts, existing)
		default:
			plan.Unchanged = append(plan.Unchanged, existing)
		}
	}

	if prune {
		for _, s := range current {
			if !wanted[s.Name] && s.Status != model.StatusDeleting {
				plan.ToDelete = append(plan.ToDelete, s)
			}
		}
	}

	sort.Slice(plan.ToDelete, func(i, j int) bool { return plan.ToDelete[i].Name < plan.ToDelete[j].Name })
	return plan
}

type Result struct {
	Created   int
	Deleted   int
	Unchanged int
	Failed    int
}

// Reconciler executes plans through the mutation coordinator.
type Reconciler struct {
	Coordinator *mutation.Coordinator
}

func NewReconciler(c *mutation.Coordinator) *Reconciler {
	return &Reconciler{Coordinator: c}
}

func (r *Reconciler) Apply(ctx context.Context, plan Plan) (*Result, error) {
	result := &Result{Unchanged: len(plan.Unchanged)}

	var pending []*mutation.Mutation
	for _, spec := range plan.ToCreate {
		logrus.Infof("creating store [%s] (%s)", spec.Name, spec.Type)
		pending = append(pending, r.Coordinator.Create(ctx, spec.Name, spec.Type))
	}
	for _, s := range plan.ToDelete {
		logrus.Infof("deleting store [%s] (%s)", s.Name, s.Id)
		pending = append(pending, r.Coordinator.Delete(ctx, s.Id))
	}

	for _, m := range pending {
		if err := m.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			logrus.Errorf("%s of [%s] failed: %s", m.Kind, m.Target, m.Detail())
			result.Failed++
			continue
		}
		switch m.Kind {
		case mutation.KindCreate:
			result.Created++
		case mutation.KindDelete:
			result.Deleted++
		}
	}

	if result.Failed > 0 {
		return result, fmt.Errorf("%d of %d operations failed", result.Failed, len(pending))
	}
	return result, nil
}
