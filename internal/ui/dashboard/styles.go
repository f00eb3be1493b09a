package dashboard

import (
	"charm.land/lipgloss/v2"
)

// Color palette.
var (
	colorGreen  = lipgloss.Color("#04B575")
	colorRed    = lipgloss.Color("#FF4672")
	colorYellow = lipgloss.Color("#FDFF90")
	colorCyan   = lipgloss.Color("#00E5FF")
	colorSubtle = lipgloss.Color("#626262")
	colorWhite  = lipgloss.Color("#FFFFFF")
)

// Pane border and layout styles.
var (
	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSubtle)

	focusedPaneStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorCyan)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorWhite).
			Background(lipgloss.Color("#333333")).
			Padding(0, 1)

	statusOnline = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	statusOffline = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	groupHeaderNorm = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	groupHeaderDiffer = lipgloss.NewStyle().
				Foreground(colorYellow).
				Bold(true)

	groupHeaderError = lipgloss.NewStyle().
				Foreground(colorRed).
				Bold(true)

	hostNameStyle = lipgloss.NewStyle().
			Foreground(colorCyan)

	subtleStyle = lipgloss.NewStyle().
			Foreground(colorSubtle)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(colorSubtle)
)
