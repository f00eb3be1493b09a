package dashboard

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/table"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/agent462/corral/internal/grouper"
	"github.com/agent462/corral/internal/inventory"
)

// Online states shown in the table.
const (
	onlineUnknown = "…"
	onlineYes     = "online"
	onlineNo      = "offline"
)

// hostEntry tracks per-host state shown in the table.
type hostEntry struct {
	Key     string
	Name    string
	Online  string
	LastCmd string
	RC      string
	Status  string // "ok", "differs", "error", "failed", "unreachable", ""
}

// hostTable wraps a bubbles/table with host state tracking.
type hostTable struct {
	table   table.Model
	entries []hostEntry
	width   int
	height  int
}

func newHostTable(keys *inventory.Keys, width, height int) hostTable {
	var entries []hostEntry
	if keys != nil {
		for _, k := range keys.Keys() {
			entries = append(entries, hostEntry{Key: k, Name: keys.DisplayName(k), Online: onlineUnknown})
		}
	}

	// Subtract 2 for the outer pane border so rows fit inside the content area.
	contentWidth := width - 2

	t := table.New(
		table.WithColumns(columns(contentWidth)),
		table.WithRows(buildRows(entries)),
		table.WithFocused(false),
		table.WithWidth(contentWidth),
		table.WithHeight(height-3), // account for border + header border-bottom
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorSubtle).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	// The default keymap binds letters that collide with global keys.
	km := table.DefaultKeyMap()
	km.PageDown = key.NewBinding(key.WithKeys("pgdown"))
	km.PageUp = key.NewBinding(key.WithKeys("pgup"))
	km.HalfPageDown = key.NewBinding(key.WithKeys("ctrl+d"))
	km.HalfPageUp = key.NewBinding(key.WithKeys("ctrl+u"))
	km.GotoTop = key.NewBinding(key.WithKeys("home"))
	km.GotoBottom = key.NewBinding(key.WithKeys("end"))
	t.KeyMap = km

	return hostTable{
		table:   t,
		entries: entries,
		width:   contentWidth,
		height:  height,
	}
}

func (h *hostTable) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	h.table, cmd = h.table.Update(msg)
	return cmd
}

func (h *hostTable) View() string {
	return h.table.View()
}

func (h *hostTable) Focus() {
	h.table.Focus()
}

func (h *hostTable) Blur() {
	h.table.Blur()
}

// SelectedHost returns the inventory key under the cursor.
func (h *hostTable) SelectedHost() string {
	i := h.table.Cursor()
	if i < 0 || i >= len(h.entries) {
		return ""
	}
	return h.entries[i].Key
}

func (h *hostTable) Resize(width, height int) {
	h.width = width - 2 // content width inside pane border
	h.height = height
	h.table.SetWidth(h.width)
	h.table.SetHeight(height - 3)
	h.table.SetColumns(columns(h.width))
}

// columns sizes the fixed columns and gives the host name the remainder.
func columns(width int) []table.Column {
	// Subtract cell padding: 1 left + 1 right per column.
	w := max(width-10, 30)

	onlineW := 7
	statusW := 11
	rcW := 3
	remaining := max(w-onlineW-statusW-rcW, 10)
	hostW := max(remaining*60/100, 8)
	cmdW := max(remaining-hostW, 6)

	return []table.Column{
		{Title: "Host", Width: hostW},
		{Title: "Online", Width: onlineW},
		{Title: "Last", Width: statusW},
		{Title: "Cmd", Width: cmdW},
		{Title: "RC", Width: rcW},
	}
}

func (h *hostTable) UpdateHealth(status map[string]bool) {
	for i := range h.entries {
		online, ok := status[h.entries[i].Key]
		switch {
		case !ok:
		case online:
			h.entries[i].Online = onlineYes
		default:
			h.entries[i].Online = onlineNo
		}
	}
	h.table.SetRows(buildRows(h.entries))
}

func (h *hostTable) UpdateResults(command string, grouped *grouper.GroupedResults) {
	hostStatus := make(map[string]string)
	hostRC := make(map[string]string)

	for _, g := range grouped.Groups {
		status := "ok"
		if !g.IsNorm {
			status = "differs"
		}
		if g.RC != 0 {
			status = "error"
		}
		for _, host := range g.Hosts {
			hostStatus[host] = status
			hostRC[host] = fmt.Sprintf("%d", g.RC)
		}
	}
	for _, r := range grouped.Facts {
		hostStatus[r.Host] = "ok"
	}
	for _, r := range grouped.Failed {
		hostStatus[r.Host] = "failed"
		if r.Unreachable {
			hostStatus[r.Host] = "unreachable"
		}
		if r.RC != nil {
			hostRC[r.Host] = fmt.Sprintf("%d", *r.RC)
		}
	}

	for i := range h.entries {
		k := h.entries[i].Key
		if s, ok := hostStatus[k]; ok {
			h.entries[i].Status = s
			h.entries[i].LastCmd = truncate(command, 18)
			h.entries[i].RC = hostRC[k]
		}
	}

	h.table.SetRows(buildRows(h.entries))
}

// OnlineCount returns the number of hosts that answered the last check.
func (h *hostTable) OnlineCount() int {
	n := 0
	for _, e := range h.entries {
		if e.Online == onlineYes {
			n++
		}
	}
	return n
}

func buildRows(entries []hostEntry) []table.Row {
	rows := make([]table.Row, len(entries))
	for i, e := range entries {
		rows[i] = table.Row{e.Name, e.Online, e.Status, e.LastCmd, e.RC}
	}
	return rows
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
