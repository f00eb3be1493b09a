package dashboard

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/agent462/corral/internal/grouper"
	"github.com/agent462/corral/internal/inventory"
	"github.com/agent462/corral/internal/normalize"
)

// outputPane wraps a bubbles/viewport for displaying grouped command results.
type outputPane struct {
	viewport     viewport.Model
	width        int
	height       int
	expandedHost string // when non-empty, show only this host's output
	keys         *inventory.Keys
	warnings     []string // dangerous patterns in the last command
}

func newOutputPane(width, height int) outputPane {
	contentWidth := width - 2 // account for pane border
	vp := viewport.New(
		viewport.WithWidth(contentWidth),
		viewport.WithHeight(height-2), // account for border
	)
	o := outputPane{
		viewport: vp,
		width:    contentWidth,
		height:   height,
	}
	o.setContent("No results yet. Type a command below.")
	return o
}

func (o *outputPane) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	o.viewport, cmd = o.viewport.Update(msg)
	return cmd
}

func (o *outputPane) View() string {
	// The viewport pads lines but does not truncate.
	if o.width > 0 {
		return lipgloss.NewStyle().MaxWidth(o.width).Render(o.viewport.View())
	}
	return o.viewport.View()
}

// setContent truncates each line to the viewport width (ANSI-aware) so
// terminal wrapping cannot inflate the visual height.
func (o *outputPane) setContent(s string) {
	if o.width <= 0 {
		o.viewport.SetContent(s)
		return
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = ansi.Truncate(line, o.width, "")
	}
	o.viewport.SetContent(strings.Join(lines, "\n"))
}

func (o *outputPane) Resize(width, height int) {
	o.width = width - 2 // content width inside pane border
	o.height = height
	o.viewport.SetWidth(o.width)
	o.viewport.SetHeight(height - 2)
}

func (o *outputPane) name(key string) string {
	if o.keys == nil {
		return key
	}
	return o.keys.DisplayName(key)
}

// SetError shows a run that never produced results.
func (o *outputPane) SetError(command string, err error) {
	o.expandedHost = ""
	o.warnings = nil
	o.setContent(groupHeaderError.Render("run failed: "+command) + "\n\n" + err.Error())
	o.viewport.GotoTop()
}

// SetWarnings records the dangerous patterns of the command whose results
// are shown next. They head the grouped view.
func (o *outputPane) SetWarnings(hits []string) {
	o.warnings = hits
}

func (o *outputPane) SetGroupedResults(grouped *grouper.GroupedResults, results []normalize.Result, keys *inventory.Keys) {
	o.keys = keys
	if grouped == nil {
		o.setContent("No results yet. Type a command below.")
		return
	}
	if o.expandedHost != "" {
		o.renderHostOutput(o.expandedHost, results)
		return
	}
	o.renderGrouped(grouped)
}

func (o *outputPane) ExpandHost(key string, results []normalize.Result) {
	o.expandedHost = key
	o.renderHostOutput(key, results)
}

func (o *outputPane) CollapseHost(grouped *grouper.GroupedResults) {
	o.expandedHost = ""
	if grouped != nil {
		o.renderGrouped(grouped)
	}
}

func (o *outputPane) IsExpanded() bool {
	return o.expandedHost != ""
}

func (o *outputPane) renderGrouped(grouped *grouper.GroupedResults) {
	var b strings.Builder

	if len(o.warnings) > 0 {
		b.WriteString(groupHeaderError.Render("warning: dangerous command ("+strings.Join(o.warnings, ", ")+")") + "\n\n")
	}

	succeeded := len(grouped.Facts)
	nonZero := 0
	unreachable := 0

	for _, g := range grouped.Groups {
		if g.RC != 0 {
			nonZero += len(g.Hosts)
		} else {
			succeeded += len(g.Hosts)
		}
		o.writeGroup(&b, &g, len(grouped.Groups))
		b.WriteString("\n")
	}

	for _, r := range grouped.Facts {
		b.WriteString(hostNameStyle.Render(o.name(r.Host)) + "\n")
		writeFacts(&b, r.Summary)
		b.WriteString("\n")
	}

	for _, r := range grouped.Failed {
		label := "1 host failed:"
		if r.Unreachable {
			label = "1 host unreachable:"
			unreachable++
		}
		msg := r.Msg
		if msg == "" {
			msg = "unknown error"
		}
		b.WriteString(groupHeaderError.Render(label) + "\n")
		b.WriteString("  " + hostNameStyle.Render(o.name(r.Host)) + " (" + msg + ")\n\n")
	}

	summary := fmt.Sprintf("%d succeeded", succeeded)
	if nonZero > 0 {
		summary += fmt.Sprintf(", %d non-zero exit", nonZero)
	}
	if failed := len(grouped.Failed) - unreachable; failed > 0 {
		summary += fmt.Sprintf(", %d failed", failed)
	}
	if unreachable > 0 {
		summary += fmt.Sprintf(", %d unreachable", unreachable)
	}
	b.WriteString(summary + "\n")

	o.setContent(b.String())
	o.viewport.GotoTop()
}

func (o *outputPane) renderHostOutput(key string, results []normalize.Result) {
	var b strings.Builder

	b.WriteString(hostNameStyle.Render("── "+o.name(key)+" ──") + "\n\n")

	r, ok := findResult(key, results)
	if !ok {
		b.WriteString("(no result for this host)")
		o.setContent(b.String())
		return
	}

	switch {
	case !r.OK:
		state := "failed"
		if r.Unreachable {
			state = "unreachable"
		}
		b.WriteString(groupHeaderError.Render(state+": "+r.Msg) + "\n")
	case r.HasFacts():
		writeFacts(&b, r.Summary)
	case r.Stdout == nil:
		b.WriteString(subtleStyle.Render("(no output reported)") + "\n")
	default:
		if s := strings.TrimRight(*r.Stdout, "\n"); s != "" {
			b.WriteString(s + "\n")
		}
	}

	if stderr := strings.TrimRight(r.StderrString(), "\n"); stderr != "" {
		b.WriteString("\n" + groupHeaderError.Render("stderr:") + "\n" + stderr + "\n")
	}
	if r.RC != nil {
		b.WriteString(fmt.Sprintf("\nrc: %d\n", *r.RC))
	}

	o.setContent(b.String())
	o.viewport.GotoTop()
}

func (o *outputPane) writeGroup(b *strings.Builder, g *grouper.OutputGroup, totalGroups int) {
	hostCount := len(g.Hosts)
	hostWord := "hosts"
	if hostCount == 1 {
		hostWord = "host"
	}

	if g.RC != 0 {
		label := fmt.Sprintf("%d %s exited with code %d:", hostCount, hostWord, g.RC)
		b.WriteString(groupHeaderError.Render(label))
	} else if g.IsNorm {
		var label string
		if totalGroups == 1 && hostCount == 1 {
			label = fmt.Sprintf("%d %s:", hostCount, hostWord)
		} else {
			label = fmt.Sprintf("%d %s identical:", hostCount, hostWord)
		}
		b.WriteString(groupHeaderNorm.Render(label))
	} else {
		verb := "differ"
		if hostCount == 1 {
			verb = "differs"
		}
		label := fmt.Sprintf("%d %s %s:", hostCount, hostWord, verb)
		b.WriteString(groupHeaderDiffer.Render(label))
	}
	b.WriteString("\n")

	names := make([]string, len(g.Hosts))
	for i, h := range g.Hosts {
		names[i] = o.name(h)
	}
	b.WriteString("  " + hostNameStyle.Render(strings.Join(names, ", ")) + "\n")

	if g.Stdout == nil {
		b.WriteString("  " + subtleStyle.Render("(no output reported)") + "\n")
	} else if stdout := strings.TrimRight(*g.Stdout, "\n"); stdout != "" {
		for _, line := range strings.Split(stdout, "\n") {
			b.WriteString("  " + line + "\n")
		}
	}

	if g.Stderr != nil {
		if stderr := strings.TrimRight(*g.Stderr, "\n"); stderr != "" {
			for _, line := range strings.Split(stderr, "\n") {
				b.WriteString("  " + groupHeaderError.Render("stderr: "+line) + "\n")
			}
		}
	}
}

// writeFacts lists summary fields, showing N/A for anything not reported.
func writeFacts(b *strings.Builder, s *normalize.FactSummary) {
	if s == nil {
		s = &normalize.FactSummary{}
	}
	field := func(label string, v *string) {
		val := "N/A"
		if v != nil && *v != "" {
			val = *v
		}
		b.WriteString(fmt.Sprintf("  %-10s %s\n", label, val))
	}
	number := func(label string, v *int64, unit string) {
		val := "N/A"
		if v != nil {
			val = fmt.Sprintf("%d%s", *v, unit)
		}
		b.WriteString(fmt.Sprintf("  %-10s %s\n", label, val))
	}
	field("os", s.Distribution)
	field("version", s.DistributionVersion)
	field("kernel", s.Kernel)
	field("arch", s.Architecture)
	field("cpu", s.ProcessorModel)
	number("cores", s.ProcessorCores, "")
	number("memory", s.MemTotalMB, " MB")
	field("ipv4", s.DefaultIPv4)
	for _, iface := range s.Interfaces {
		b.WriteString(fmt.Sprintf("  %-10s %s\n", iface.Name, iface.IPv4))
	}
}

func findResult(key string, results []normalize.Result) (normalize.Result, bool) {
	for _, r := range results {
		if r.Host == key {
			return r, true
		}
	}
	return normalize.Result{}, false
}
