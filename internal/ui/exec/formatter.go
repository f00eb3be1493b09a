package exec

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agent462/corral/internal/grouper"
	"github.com/agent462/corral/internal/inventory"
	"github.com/agent462/corral/internal/normalize"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

// notAvailable is shown for a fact the engine did not report.
const notAvailable = "N/A"

// Formatter formats run results for terminal display.
type Formatter struct {
	JSON       bool
	ErrorsOnly bool
	Color      bool
	// Keys maps inventory keys back to display names. Nil shows keys.
	Keys *inventory.Keys
}

// NewFormatter creates a Formatter with the given options.
func NewFormatter(jsonOutput, errorsOnly, color bool) *Formatter {
	return &Formatter{
		JSON:       jsonOutput,
		ErrorsOnly: errorsOnly,
		Color:      color,
	}
}

func (f *Formatter) name(key string) string {
	if f.Keys == nil {
		return key
	}
	return f.Keys.DisplayName(key)
}

func (f *Formatter) names(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = f.name(k)
	}
	return out
}

// Format renders grouped results as a human-readable string.
func (f *Formatter) Format(grouped *grouper.GroupedResults) string {
	var b strings.Builder

	succeeded := 0
	nonZero := 0
	failed := 0
	unreachable := 0

	for _, g := range grouped.Groups {
		if g.RC != 0 {
			nonZero += len(g.Hosts)
		} else {
			succeeded += len(g.Hosts)
		}
		if !f.ErrorsOnly || g.RC != 0 {
			f.writeGroup(&b, &g, len(grouped.Groups))
			b.WriteString("\n")
		}
	}

	if len(grouped.Facts) > 0 && !f.ErrorsOnly {
		b.WriteString(f.FormatFacts(grouped.Facts))
		b.WriteString("\n")
	}
	succeeded += len(grouped.Facts)

	for _, r := range grouped.Failed {
		if r.Unreachable {
			unreachable++
		} else {
			failed++
		}
		f.writeFailed(&b, r)
		b.WriteString("\n")
	}

	b.WriteString(f.summaryLine(succeeded, nonZero, failed, unreachable))
	b.WriteString("\n")

	return b.String()
}

// FormatByHost renders results one host at a time in result order.
func (f *Formatter) FormatByHost(results []normalize.Result) string {
	var b strings.Builder
	for _, r := range results {
		if f.ErrorsOnly && r.OK && (r.RC == nil || *r.RC == 0) {
			continue
		}
		header := "=== " + f.name(r.Host) + " ==="
		switch {
		case r.Unreachable:
			b.WriteString(f.colorize(header+" unreachable", colorRed))
		case !r.OK:
			b.WriteString(f.colorize(header+" failed", colorRed))
		default:
			b.WriteString(f.colorize(header, colorCyan))
		}
		b.WriteString("\n")

		switch {
		case !r.OK:
			writeIndented(&b, r.Msg, "", func(s string) string { return s })
		case r.HasFacts():
			writeIndented(&b, factsLine(r.Summary), "", func(s string) string { return s })
		default:
			f.writeOutput(&b, r.Stdout, r.Stderr)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// jsonResult is the JSON form of a result. Absent output encodes as null.
type jsonResult struct {
	Host        string                 `json:"host"`
	Name        string                 `json:"name"`
	OK          bool                   `json:"ok"`
	Unreachable bool                   `json:"unreachable,omitempty"`
	Stdout      *string                `json:"stdout"`
	Stderr      *string                `json:"stderr"`
	RC          *int                   `json:"rc"`
	Msg         string                 `json:"msg,omitempty"`
	Facts       *normalize.FactSummary `json:"facts,omitempty"`
}

// FormatJSON serializes results as a JSON array.
func (f *Formatter) FormatJSON(results []normalize.Result) ([]byte, error) {
	out := make([]jsonResult, len(results))
	for i, r := range results {
		out[i] = jsonResult{
			Host:        r.Host,
			Name:        f.name(r.Host),
			OK:          r.OK,
			Unreachable: r.Unreachable,
			Stdout:      r.Stdout,
			Stderr:      r.Stderr,
			RC:          r.RC,
			Msg:         r.Msg,
			Facts:       r.Summary,
		}
	}
	return json.MarshalIndent(out, "", "  ")
}

// FormatFacts renders fact summaries as a table, one row per host.
func (f *Formatter) FormatFacts(results []normalize.Result) string {
	headers := []string{"HOST", "OS", "KERNEL", "ARCH", "CPUS", "MEMORY", "IPV4", "UPTIME"}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		s := r.Summary
		if s == nil {
			s = &normalize.FactSummary{}
		}
		rows = append(rows, []string{
			f.name(r.Host),
			osName(s),
			str(s.Kernel),
			str(s.Architecture),
			num(s.ProcessorCores, ""),
			memory(s),
			str(s.DefaultIPv4),
			uptime(s.UptimeSeconds),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, v := range row {
			widths[i] = max(widths[i], len(v))
		}
	}
	line := func(values []string) string {
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = fmt.Sprintf("%-*s", widths[i], v)
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	var b strings.Builder
	b.WriteString(f.colorize(line(headers), colorCyan))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(line(row))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatSkipped describes servers left out of the inventory. It returns ""
// when nothing was skipped.
func (f *Formatter) FormatSkipped(skipped []inventory.Skipped) string {
	if len(skipped) == 0 {
		return ""
	}
	var b strings.Builder
	for _, s := range skipped {
		b.WriteString(f.colorize(fmt.Sprintf("skipped %s (%s)", s.Name, s.Reason), colorYellow))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatWarnings flags a command line that matched the dangerous pattern
// list. It returns "" when there are no hits.
func (f *Formatter) FormatWarnings(hits []string) string {
	if len(hits) == 0 {
		return ""
	}
	return f.colorize("warning: dangerous command ("+strings.Join(hits, ", ")+")", colorRed) + "\n"
}

func (f *Formatter) writeGroup(b *strings.Builder, g *grouper.OutputGroup, totalGroups int) {
	hostCount := len(g.Hosts)
	hostWord := "hosts"
	if hostCount == 1 {
		hostWord = "host"
	}

	if g.RC != 0 {
		label := fmt.Sprintf(" %d %s exited with code %d:", hostCount, hostWord, g.RC)
		b.WriteString(f.colorize(label, colorRed))
	} else if g.IsNorm {
		var label string
		if totalGroups == 1 && hostCount == 1 {
			label = fmt.Sprintf(" %d %s:", hostCount, hostWord)
		} else {
			label = fmt.Sprintf(" %d %s identical:", hostCount, hostWord)
		}
		b.WriteString(f.colorize(label, colorGreen))
	} else {
		verb := "differ"
		if hostCount == 1 {
			verb = "differs"
		}
		label := fmt.Sprintf(" %d %s %s:", hostCount, hostWord, verb)
		b.WriteString(f.colorize(label, colorYellow))
	}
	b.WriteString("\n")

	b.WriteString("   " + f.colorize(strings.Join(f.names(g.Hosts), ", "), colorCyan))
	b.WriteString("\n")

	f.writeOutput(b, g.Stdout, g.Stderr)
}

// writeOutput writes indented stdout and stderr. Absent stdout is called out
// so it is not mistaken for empty output.
func (f *Formatter) writeOutput(b *strings.Builder, stdout, stderr *string) {
	if stdout == nil {
		b.WriteString("   " + f.colorize("(no output reported)", colorDim) + "\n")
	} else {
		writeIndented(b, *stdout, "", func(s string) string { return s })
	}
	if stderr != nil {
		writeIndented(b, *stderr, "stderr: ", func(s string) string { return f.colorize(s, colorRed) })
	}
}

func writeIndented(b *strings.Builder, text, prefix string, style func(string) string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		b.WriteString("   ")
		b.WriteString(style(prefix + line))
		b.WriteString("\n")
	}
}

func (f *Formatter) writeFailed(b *strings.Builder, r normalize.Result) {
	label := " 1 host failed:"
	if r.Unreachable {
		label = " 1 host unreachable:"
	}
	b.WriteString(f.colorize(label, colorRed))
	b.WriteString("\n")

	msg := r.Msg
	if msg == "" {
		msg = "unknown error"
	}
	b.WriteString("   ")
	b.WriteString(f.colorize(f.name(r.Host), colorCyan))
	b.WriteString(fmt.Sprintf(" (%s)", msg))
	b.WriteString("\n")
}

func (f *Formatter) summaryLine(succeeded, nonZero, failed, unreachable int) string {
	parts := []string{
		fmt.Sprintf("%d succeeded", succeeded),
	}
	if nonZero > 0 {
		parts = append(parts, fmt.Sprintf("%d non-zero exit", nonZero))
	}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", failed))
	}
	if unreachable > 0 {
		parts = append(parts, fmt.Sprintf("%d unreachable", unreachable))
	}
	return strings.Join(parts, ", ")
}

func (f *Formatter) colorize(text, color string) string {
	if !f.Color {
		return text
	}
	return color + text + colorReset
}

func factsLine(s *normalize.FactSummary) string {
	if s == nil {
		return notAvailable
	}
	return fmt.Sprintf("%s, kernel %s, %s CPUs, %s, up %s",
		osName(s), str(s.Kernel), num(s.ProcessorCores, ""), memory(s), uptime(s.UptimeSeconds))
}

func str(p *string) string {
	if p == nil || *p == "" {
		return notAvailable
	}
	return *p
}

func num(p *int64, unit string) string {
	if p == nil {
		return notAvailable
	}
	return fmt.Sprintf("%d%s", *p, unit)
}

func osName(s *normalize.FactSummary) string {
	if s.Distribution == nil {
		return notAvailable
	}
	if s.DistributionVersion == nil {
		return *s.Distribution
	}
	return *s.Distribution + " " + *s.DistributionVersion
}

func memory(s *normalize.FactSummary) string {
	if s.MemTotalMB == nil {
		return notAvailable
	}
	if s.MemFreeMB == nil {
		return fmt.Sprintf("%d MB", *s.MemTotalMB)
	}
	return fmt.Sprintf("%d/%d MB free", *s.MemFreeMB, *s.MemTotalMB)
}

func uptime(p *int64) string {
	if p == nil {
		return notAvailable
	}
	d := time.Duration(*p) * time.Second
	days := int(d.Hours()) / 24
	if days > 0 {
		return fmt.Sprintf("%dd%dh", days, int(d.Hours())%24)
	}
	return d.Truncate(time.Minute).String()
}
