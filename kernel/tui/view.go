package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/openziti/storelab/kernel/model"
	"github.com/openziti/storelab/kernel/mutation"
	"github.com/openziti/storelab/kernel/transport"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 2)

	headerCellStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("238"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			PaddingLeft(1)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3")).
			PaddingLeft(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).
			Bold(true).
			PaddingLeft(1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("57")).
			Padding(0, 1)

	statusColors = map[model.StoreStatus]lipgloss.Color{
		model.StatusReady:        lipgloss.Color("2"),
		model.StatusProvisioning: lipgloss.Color("3"),
		model.StatusFailed:       lipgloss.Color("1"),
		model.StatusDeleting:     lipgloss.Color("5"),
	}
)

var tabNames = []string{"Stores", "Activity"}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading…"
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("  Storelab  "))
	sb.WriteString("\n")

	var tabParts []string
	for i, name := range tabNames {
		label := fmt.Sprintf(" %d: %s ", i+1, name)
		if tab(i) == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
	}
	sb.WriteString(strings.Join(tabParts, ""))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("─", m.width))
	sb.WriteString("\n")

	var content string
	switch m.mode {
	case modeCreate:
		content = m.renderCreate()
	case modeConfirmDelete:
		content = m.renderConfirmDelete()
	case modeCredentials:
		content = m.renderCredentials()
	default:
		if m.activeTab == tabActivity {
			content = m.renderActivity()
		} else {
			content = m.renderStores()
		}
	}
	contentHeight := m.height - 6
	if contentHeight < 1 {
		contentHeight = 1
	}
	sb.WriteString(clipLines(content, contentHeight))
	sb.WriteString("\n")

	sb.WriteString(strings.Repeat("─", m.width))
	sb.WriteString("\n")
	sb.WriteString(m.renderStatus())
	return sb.String()
}

func (m Model) renderStores() string {
	if m.storesSnap.Seq == 0 {
		return dimStyle.Render("  loading stores…")
	}
	if !m.storesSnap.HasValue && m.storesSnap.Err != nil {
		return errorStyle.Render("Unable to load stores: " + snapshotError(m.storesSnap))
	}

	var sb strings.Builder
	if m.storesSnap.Err != nil {
		sb.WriteString(warningStyle.Render("⚠ showing stale data: " + snapshotError(m.storesSnap)))
		sb.WriteString("\n")
	}
	st := model.CountByStatus(m.stores)
	sb.WriteString(fmt.Sprintf(" total %d  ready %d  provisioning %d  failed %d  deleting %d\n",
		st.Total, st.Ready, st.Provisioning, st.Failed, st.Deleting))

	if len(m.stores) == 0 {
		sb.WriteString(dimStyle.Render("  No stores yet. Press n to create one."))
		return sb.String()
	}

	sb.WriteString(headerCellStyle.Render(fmt.Sprintf("  %-24s %-12s %-22s %s", "NAME", "TYPE", "STATUS", "URL")))
	for _, s := range m.stores {
		sb.WriteString("\n")
		status := string(s.Status)
		if elapsed := m.session.Elapsed.Display(s.Id); elapsed != "" && s.Status == model.StatusProvisioning {
			status += " " + elapsed
		}
		if m.session.Coordinator.DeleteDisabled(s.Id) {
			status += " (deleting)"
		}
		url := s.AdminURL()
		if url == "" {
			url = "-"
		}
		statusCell := lipgloss.NewStyle().Foreground(statusColors[s.Status]).Render(fmt.Sprintf("%-22s", status))
		line := fmt.Sprintf("%-24s %-12s ", s.Name, s.Platform().Label()) + statusCell + " " + url
		if s.Id == m.selected {
			sb.WriteString(selectedStyle.Render("> " + line))
		} else {
			sb.WriteString("  " + line)
		}
		if s.Status == model.StatusFailed && s.StatusMessage != "" {
			sb.WriteString("\n")
			sb.WriteString(dimStyle.Render("    " + s.StatusMessage))
		}
	}
	return sb.String()
}

func (m Model) renderActivity() string {
	if m.auditSnap.Seq == 0 {
		return dimStyle.Render("  loading activity…")
	}
	if !m.auditSnap.HasValue && m.auditSnap.Err != nil {
		return errorStyle.Render("Unable to load activity: " + snapshotError(m.auditSnap))
	}
	var sb strings.Builder
	if m.auditSnap.Err != nil {
		sb.WriteString(warningStyle.Render("⚠ showing stale data: " + snapshotError(m.auditSnap)))
		sb.WriteString("\n")
	}
	if len(m.events) == 0 {
		sb.WriteString(dimStyle.Render("  No activity yet."))
		return sb.String()
	}
	sb.WriteString(headerCellStyle.Render(fmt.Sprintf("  %-19s %-20s %-18s %s", "TIME", "STORE", "ACTION", "MESSAGE")))
	for _, e := range m.events {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("  %-19s %-20s %-18s %s", e.CreatedAt.Display(), e.Subject(), e.Action.Short(), e.Message))
	}
	return sb.String()
}

func (m Model) renderCreate() string {
	form := m.session.Coordinator.Form()
	var sb strings.Builder
	sb.WriteString("New store\n\n")
	sb.WriteString(fmt.Sprintf("Name: %s▏\n", form.Name))
	var types []string
	for _, t := range model.StoreTypes() {
		label := model.PlatformFor(t).Label()
		if t == form.Type {
			label = "[" + label + "]"
		}
		types = append(types, label)
	}
	sb.WriteString("Type: " + strings.Join(types, " ") + "\n")
	if m.session.Coordinator.CreatePending() {
		sb.WriteString("\n" + dimStyle.Render("creating…"))
	} else if form.Error != "" {
		sb.WriteString("\n" + errorStyle.Render(form.Error))
	}
	sb.WriteString("\n\n" + dimStyle.Render("enter: create  tab: change type  esc: cancel"))
	return panelStyle.Render(sb.String())
}

func (m Model) renderConfirmDelete() string {
	name := m.pendingDelete
	if s, found := model.FindStore(m.stores, m.pendingDelete); found {
		name = s.Name
	}
	return panelStyle.Render(fmt.Sprintf("Delete store '%s'? This removes all of its data.\n\n%s",
		name, dimStyle.Render("y: delete  any other key: cancel")))
}

func (m Model) renderCredentials() string {
	current := m.creds.Current()
	var sb strings.Builder
	name := current.StoreId
	if s, found := model.FindStore(m.stores, current.StoreId); found {
		name = s.Name
	}
	sb.WriteString(fmt.Sprintf("Admin credentials for '%s'\n\n", name))
	switch current.State {
	case mutation.CredentialsLoading:
		sb.WriteString(dimStyle.Render("loading…"))
	case mutation.CredentialsFailed:
		sb.WriteString(errorStyle.Render(transport.Detail(current.Err)))
	case mutation.CredentialsLoaded:
		if current.Credentials != nil {
			c := current.Credentials.Render(m.reveal)
			sb.WriteString(fmt.Sprintf("Admin URL: %s\nUsername:  %s\nPassword:  %s\nEmail:     %s",
				c.AdminUrl, c.AdminUser, c.AdminPassword, c.AdminEmail))
		}
	}
	sb.WriteString("\n\n" + dimStyle.Render("p: show/hide password  esc: close"))
	return panelStyle.Render(sb.String())
}

func (m Model) renderStatus() string {
	if m.flash != "" {
		return statusBarStyle.Render(m.flash)
	}
	parts := []string{fmt.Sprintf("server: %s", m.serverURL)}
	if !m.storesSnap.FetchedAt.IsZero() {
		parts = append(parts, fmt.Sprintf("last refresh: %s", m.storesSnap.FetchedAt.Format("15:04:05")))
	}
	parts = append(parts, "q: quit  tab: switch  n: new  d: delete  c: credentials  r: refresh")
	return statusBarStyle.Render(strings.Join(parts, "  |  "))
}

func clipLines(s string, maxLines int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= maxLines {
		return s
	}
	return strings.Join(lines[:maxLines], "\n")
}
