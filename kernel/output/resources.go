package output

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/openziti/storelab/kernel/engine"
	"github.com/openziti/storelab/kernel/model"
)

// StoreList renders a stores snapshot. Elapsed, when set, supplies the
// provisioning timer for a store id.
type StoreList struct {
	Stores  []model.Store
	Elapsed func(id string) string
}

type storeItem struct {
	model.Store `yaml:",inline"`
	AdminUrl    string `json:"admin_url,omitempty" yaml:"admin_url,omitempty"`
	Elapsed     string `json:"elapsed,omitempty" yaml:"elapsed,omitempty"`
}

func (l StoreList) elapsed(s model.Store) string {
	if l.Elapsed == nil || s.Status != model.StatusProvisioning {
		return ""
	}
	return l.Elapsed(s.Id)
}

func (l StoreList) Header() table.Row {
	return table.Row{"ID", "NAME", "TYPE", "STATUS", "URL", "CREATED"}
}

func (l StoreList) Rows() []table.Row {
	rows := make([]table.Row, 0, len(l.Stores))
	for _, s := range l.Stores {
		status := string(s.Status)
		if e := l.elapsed(s); e != "" {
			status += " (" + e + ")"
		}
		url := s.Url
		if url == "" {
			url = "-"
		}
		rows = append(rows, table.Row{s.Id, s.Name, s.Platform().Label(), status, url, s.CreatedAt.Display()})
	}
	return rows
}

func (l StoreList) Document() any {
	items := make([]storeItem, 0, len(l.Stores))
	for _, s := range l.Stores {
		items = append(items, storeItem{Store: s, AdminUrl: s.AdminURL(), Elapsed: l.elapsed(s)})
	}
	return map[string]any{"items": items}
}

type AuditList struct {
	Events []model.AuditEvent
}

func (l AuditList) Header() table.Row {
	return table.Row{"TIME", "STORE", "ACTION", "MESSAGE"}
}

func (l AuditList) Rows() []table.Row {
	rows := make([]table.Row, 0, len(l.Events))
	for _, e := range l.Events {
		rows = append(rows, table.Row{e.CreatedAt.Display(), e.Subject(), e.Action.Short(), e.Message})
	}
	return rows
}

func (l AuditList) Document() any {
	items := l.Events
	if items == nil {
		items = []model.AuditEvent{}
	}
	return map[string]any{"items": items}
}

// Credentials masks the password unless Reveal is set.
type Credentials struct {
	Credentials model.AdminCredentials
	Reveal      bool
}

func (c Credentials) Header() table.Row {
	return table.Row{"FIELD", "VALUE"}
}

func (c Credentials) Rows() []table.Row {
	r := c.Credentials.Render(c.Reveal)
	return []table.Row{
		{"Store URL", r.StoreUrl},
		{"Admin URL", r.AdminUrl},
		{"Username", r.AdminUser},
		{"Password", r.AdminPassword},
		{"Email", r.AdminEmail},
	}
}

func (c Credentials) Document() any {
	return c.Credentials.Render(c.Reveal)
}

// Plan renders what apply will do.
type Plan struct {
	engine.Plan
}

func (p Plan) Header() table.Row {
	return table.Row{"ACTION", "NAME", "TYPE", "DETAIL"}
}

func (p Plan) Rows() []table.Row {
	var rows []table.Row
	for _, s := range p.ToCreate {
		rows = append(rows, table.Row{"create", s.Name, s.Type, ""})
	}
	for _, s := range p.ToDelete {
		rows = append(rows, table.Row{"delete", s.Name, s.Type, s.Id})
	}
	for _, s := range p.Conflicts {
		rows = append(rows, table.Row{"conflict", s.Name, s.Type, "exists with a different type"})
	}
	for _, s := range p.Unchanged {
		rows = append(rows, table.Row{"unchanged", s.Name, s.Type, s.Id})
	}
	return rows
}

func (p Plan) Document() any {
	create := make([]string, 0, len(p.ToCreate))
	for _, s := range p.ToCreate {
		create = append(create, s.Name)
	}
	return map[string]any{
		"create":    create,
		"delete":    storeNames(p.ToDelete),
		"unchanged": storeNames(p.Unchanged),
		"conflicts": storeNames(p.Conflicts),
	}
}

func storeNames(stores []model.Store) []string {
	out := make([]string, 0, len(stores))
	for _, s := range stores {
		out = append(out, s.Name)
	}
	return out
}
