package dashboard

import (
	"fmt"
	"time"

	"charm.land/lipgloss/v2"
)

// renderStatusBar builds the bottom status bar showing reachability counts
// and keybind hints.
func renderStatusBar(totalHosts, onlineHosts, width int, lastCheck time.Time, checkErr error, busy bool) string {
	left := fmt.Sprintf(" %d hosts", totalHosts)

	online := statusOnline.Render(fmt.Sprintf("%d online", onlineHosts))
	offline := ""
	if n := totalHosts - onlineHosts; n > 0 && !lastCheck.IsZero() {
		offline = statusOffline.Render(fmt.Sprintf(" %d offline", n))
	}
	left += " │ " + online + offline

	switch {
	case checkErr != nil:
		left += " │ " + statusOffline.Render("check failed")
	case busy:
		left += " │ running…"
	case !lastCheck.IsZero():
		left += " │ checked " + lastCheck.Format("15:04:05")
	}

	right := helpKeyStyle.Render("Tab") + helpDescStyle.Render(" focus") +
		"  " + helpKeyStyle.Render("r") + helpDescStyle.Render(" refresh") +
		"  " + helpKeyStyle.Render("?") + helpDescStyle.Render(" help") +
		"  " + helpKeyStyle.Render("q") + helpDescStyle.Render(" quit") + " "

	gap := max(width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	middle := fmt.Sprintf("%*s", gap, "")

	return statusBarStyle.Width(width).Render(left + middle + right)
}

// renderHelpOverlay builds a full-screen help overlay.
func renderHelpOverlay(width, height int) string {
	help := `
  Keyboard Shortcuts
  ──────────────────

  Tab          Cycle focus: hosts → output → input
  q / Ctrl+C   Quit (when not typing)
  j / k        Navigate host table up/down
  Enter        Host table: show host output
               Command input: run command
  Esc          Back to grouped output
  r            Refresh reachability now
  ?            Toggle this help

  Input
  ─────
  :ping        Refresh reachability now
  @all         All hosts (default)
  @ok          Hosts in the norm group
  @differs     Hosts that differ from the norm
  @failed      Failed hosts
  @unreachable Unreachable hosts
  @pattern*    Glob match on host names
`

	style := lipgloss.NewStyle().
		Width(width-4).
		Height(height-2).
		Padding(1, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorCyan)

	return style.Render(help)
}
