package engine

import (
	"sort"

	"github.com/openziti/storelab/kernel/model"
)

// Diff is the change to the running timer set needed to match a stores
// snapshot.
type Diff struct {
	// ToCreate are stores newly in PROVISIONING.
	ToCreate []model.Store
	// ToDelete are timer ids whose store left PROVISIONING or disappeared.
	ToDelete []string
	// ToUpdate are running timers whose store now reports a different
	// created_at; they are restarted.
	ToUpdate []model.Store
}

func (d Diff) Empty() bool {
	return len(d.ToCreate) == 0 && len(d.ToDelete) == 0 && len(d.ToUpdate) == 0
}

// ComputeDiff compares the PROVISIONING stores of a snapshot with the running
// timers, keyed by store id with the created_at each timer counts from.
func ComputeDiff(stores []model.Store, running map[string]model.Timestamp) Diff {
	var diff Diff

	desired := make(map[string]bool)
	for _, s := range stores {
		if s.Status != model.StatusProvisioning || desired[s.Id] {
			continue
		}
		desired[s.Id] = true
		createdAt, isRunning := running[s.Id]
		switch {
		case !isRunning:
			diff.ToCreate = append(diff.ToCreate, s)
		case !createdAt.Equal(s.CreatedAt.Time):
			diff.ToUpdate = append(diff.ToUpdate, s)
		}
	}

	for id := range running {
		if !desired[id] {
			diff.ToDelete = append(diff.ToDelete, id)
		}
	}
	sort.Strings(diff.ToDelete)

	return diff
}
