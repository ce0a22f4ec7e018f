// Package tui is the live terminal dashboard. It renders the session's cached
// stores and audit events, the provisioning timers, and drives create, delete
// and credentials intents through the mutation coordinator.
package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/openziti/storelab/kernel/cache"
	"github.com/openziti/storelab/kernel/model"
	"github.com/openziti/storelab/kernel/mutation"
	"github.com/openziti/storelab/kernel/session"
	"github.com/openziti/storelab/kernel/transport"
	"github.com/pkg/errors"
)

type tab int

const (
	tabStores tab = iota
	tabActivity
	tabCount
)

type mode int

const (
	modeBrowse mode = iota
	modeCreate
	modeConfirmDelete
	modeCredentials
)

// changedMsg means a cached collection changed; the model re-reads the session.
type changedMsg struct{}

// tickMsg redraws the elapsed timers.
type tickMsg time.Time

// mutationMsg is delivered once a dispatched mutation has finished.
type mutationMsg struct {
	m *mutation.Mutation
}

const redrawInterval = time.Second

type Model struct {
	session   *session.Session
	serverURL string
	changes   chan struct{}

	activeTab tab
	mode      mode
	width     int
	height    int

	stores     []model.Store
	storesSnap cache.Snapshot
	events     []model.AuditEvent
	auditSnap  cache.Snapshot

	selected      string
	pendingDelete string
	creds         *mutation.CredentialsView
	reveal        bool
	flash         string
}

// New subscribes to s. The subscriptions end when s is closed.
func New(s *session.Session, serverURL string) (Model, error) {
	changes := make(chan struct{}, 1)
	notify := func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	}
	if _, err := s.SubscribeStores(func([]model.Store, cache.Snapshot) { notify() }); err != nil {
		return Model{}, err
	}
	if _, err := s.SubscribeAudit(func([]model.AuditEvent, cache.Snapshot) { notify() }); err != nil {
		return Model{}, err
	}
	return Model{
		session:   s,
		serverURL: serverURL,
		changes:   changes,
		creds:     s.Coordinator.NewCredentialsView(),
	}, nil
}

// Run blocks until the dashboard is quit.
func Run(s *session.Session, serverURL string) error {
	m, err := New(s, serverURL)
	if err != nil {
		return err
	}
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return errors.Wrap(err, "dashboard failed")
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return changedMsg{} },
		waitForChange(m.changes),
		tick(),
	)
}

func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-changes
		return changedMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(redrawInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForMutation(ctx context.Context, mut *mutation.Mutation) tea.Cmd {
	return func() tea.Msg {
		_ = mut.Wait(ctx)
		return mutationMsg{m: mut}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case changedMsg:
		m.pull()
		return m, waitForChange(m.changes)

	case tickMsg:
		return m, tick()

	case mutationMsg:
		m.finished(msg.m)
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeCreate:
			return m.updateCreate(msg)
		case modeConfirmDelete:
			return m.updateConfirmDelete(msg)
		case modeCredentials:
			return m.updateCredentials(msg)
		default:
			return m.updateBrowse(msg)
		}
	}
	return m, nil
}

func (m *Model) pull() {
	m.stores, m.storesSnap = m.session.Stores()
	m.events, m.auditSnap = m.session.AuditEvents()
	if _, found := model.FindStore(m.stores, m.selected); !found {
		m.selected = ""
		if len(m.stores) > 0 {
			m.selected = m.stores[0].Id
		}
	}
}

func (m *Model) finished(mut *mutation.Mutation) {
	switch mut.Kind {
	case mutation.KindCreate:
		if mut.State() == mutation.StateSucceeded {
			m.flash = fmt.Sprintf("Store '%s' created, provisioning started", mut.Target)
			if m.mode == modeCreate {
				m.mode = modeBrowse
			}
		} else {
			m.flash = "Create failed: " + mut.Detail()
		}
	case mutation.KindDelete:
		if mut.State() == mutation.StateSucceeded {
			m.flash = fmt.Sprintf("Store '%s' deleted", mut.Target)
		} else {
			m.flash = "Delete failed: " + mut.Detail()
		}
	}
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.creds.Close()
		return m, tea.Quit
	case "tab":
		m.activeTab = (m.activeTab + 1) % tabCount
	case "up", "k":
		m.move(-1)
	case "down", "j":
		m.move(1)
	case "r":
		m.flash = ""
		s := m.session
		return m, func() tea.Msg {
			_ = s.Refresh(s.Context())
			return nil
		}
	case "n":
		m.mode = modeCreate
		m.flash = ""
	case "d":
		if m.selected == "" {
			return m, nil
		}
		if m.session.Coordinator.DeleteDisabled(m.selected) {
			m.flash = "Delete already in progress"
			return m, nil
		}
		m.pendingDelete = m.selected
		m.mode = modeConfirmDelete
	case "c":
		if m.selected == "" {
			return m, nil
		}
		m.reveal = false
		m.mode = modeCredentials
		ctx := m.session.Context()
		return m, waitForMutation(ctx, m.creds.Open(ctx, m.selected))
	}
	return m, nil
}

func (m *Model) move(delta int) {
	if len(m.stores) == 0 {
		return
	}
	idx := 0
	for i, s := range m.stores {
		if s.Id == m.selected {
			idx = i
			break
		}
	}
	idx += delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(m.stores) {
		idx = len(m.stores) - 1
	}
	m.selected = m.stores[idx].Id
}

func (m Model) updateCreate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	coord := m.session.Coordinator
	form := coord.Form()
	switch msg.Type {
	case tea.KeyCtrlC:
		m.creds.Close()
		return m, tea.Quit
	case tea.KeyEsc:
		m.mode = modeBrowse
	case tea.KeyTab:
		coord.SetForm(form.Name, nextType(form.Type))
	case tea.KeyBackspace:
		if len(form.Name) > 0 {
			coord.SetForm(form.Name[:len(form.Name)-1], "")
		}
	case tea.KeyEnter:
		if coord.CreatePending() {
			return m, nil
		}
		ctx := m.session.Context()
		return m, waitForMutation(ctx, coord.Create(ctx, form.Name, form.Type))
	case tea.KeyRunes:
		coord.SetForm(form.Name+string(msg.Runes), "")
	}
	return m, nil
}

func nextType(current model.StoreType) model.StoreType {
	types := model.StoreTypes()
	for i, t := range types {
		if t == current {
			return types[(i+1)%len(types)]
		}
	}
	return types[0]
}

func (m Model) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		id := m.pendingDelete
		m.pendingDelete = ""
		m.mode = modeBrowse
		ctx := m.session.Context()
		return m, waitForMutation(ctx, m.session.Coordinator.Delete(ctx, id))
	case "ctrl+c":
		m.creds.Close()
		return m, tea.Quit
	default:
		m.pendingDelete = ""
		m.mode = modeBrowse
	}
	return m, nil
}

func (m Model) updateCredentials(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "p":
		m.reveal = !m.reveal
	case "esc", "c", "q":
		m.creds.Close()
		m.reveal = false
		m.mode = modeBrowse
	case "ctrl+c":
		m.creds.Close()
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) selectedStore() (model.Store, bool) {
	return model.FindStore(m.stores, m.selected)
}

func snapshotError(snap cache.Snapshot) string {
	if snap.Err == nil {
		return ""
	}
	return transport.Detail(snap.Err)
}
