package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/agent462/corral/internal/executor"
	"github.com/agent462/corral/internal/grouper"
	"github.com/agent462/corral/internal/inventory"
	"github.com/agent462/corral/internal/normalize"
	"github.com/agent462/corral/internal/selector"
	execui "github.com/agent462/corral/internal/ui/exec"
)

// Executor is the subset of executor.Executor the REPL drives.
type Executor interface {
	Inventory() (*inventory.Inventory, error)
	Shell(ctx context.Context, hostSelector, command string) (*executor.Run, error)
	Ping(ctx context.Context, hostSelector string) (*executor.Run, error)
	GatherFacts(ctx context.Context, hostSelector string) (*executor.Run, error)
}

// Reloader re-reads the server sources.
type Reloader interface {
	Reload() error
}

// HistoryEntry records a single command execution in the REPL.
type HistoryEntry struct {
	Input     string // full input line including selector
	HostCount int
	OKCount   int
	DiffCount int
	FailCount int
}

// Config holds the settings for creating a REPL session.
type Config struct {
	Exec  Executor
	Fleet Reloader // nil disables :reload
	In    io.Reader
	Out   io.Writer
	Err   io.Writer
	Color bool
}

// REPL is an interactive session that runs commands across the fleet.
type REPL struct {
	exec      Executor
	fleet     Reloader
	formatter *execui.Formatter
	in        *bufio.Reader
	out       io.Writer
	errOut    io.Writer

	// Mutable state from last command.
	lastResults []normalize.Result
	lastGrouped *grouper.GroupedResults
	history     []HistoryEntry
}

// New creates a REPL with the given configuration. Nil streams default to
// the process's standard streams.
func New(c Config) *REPL {
	r := &REPL{
		exec:      c.Exec,
		fleet:     c.Fleet,
		formatter: execui.NewFormatter(false, false, c.Color),
		out:       c.Out,
		errOut:    c.Err,
	}
	in := c.In
	if in == nil {
		in = os.Stdin
	}
	r.in = bufio.NewReader(in)
	if r.out == nil {
		r.out = os.Stdout
	}
	if r.errOut == nil {
		r.errOut = os.Stderr
	}
	return r
}

// Run starts the interactive loop. It returns nil on clean exit (EOF or :quit).
func (r *REPL) Run(ctx context.Context) error {
	// Capture SIGINT so it doesn't kill the process.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	for {
		drainSignals(sigCh)
		if err := ctx.Err(); err != nil {
			return nil
		}

		fmt.Fprint(r.out, r.prompt())

		line, err := r.in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			if drainSignals(sigCh) {
				fmt.Fprintln(r.out)
				continue
			}
			return fmt.Errorf("read input: %w", err)
		}

		// A signal during the read discards the line.
		if drainSignals(sigCh) {
			fmt.Fprintln(r.out)
			continue
		}

		if quit := r.Handle(ctx, line); quit {
			return nil
		}
	}
}

// Handle processes one input line. It returns true when the session should
// end.
func (r *REPL) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if n, ok := ParseHistoryRef(line); ok {
		if n > len(r.history) {
			fmt.Fprintf(r.errOut, "no history entry %d\n", n)
			return false
		}
		line = r.history[n-1].Input
		fmt.Fprintln(r.out, line)
	}

	if strings.HasPrefix(line, ":") {
		return r.handleCommand(ctx, line)
	}

	sel, cmd := selector.ParseInput(line)
	if cmd == "" {
		fmt.Fprintln(r.errOut, "no command specified")
		return false
	}
	r.execute(ctx, line, sel, func(ctx context.Context, pattern string) (*executor.Run, error) {
		return r.exec.Shell(ctx, pattern, cmd)
	})
	return false
}

// execute resolves sel, runs fn under a per-command interrupt context and
// prints the grouped results.
func (r *REPL) execute(ctx context.Context, input, sel string, fn func(context.Context, string) (*executor.Run, error)) {
	inv, err := r.exec.Inventory()
	if err != nil {
		fmt.Fprintf(r.errOut, "inventory: %v\n", err)
		return
	}
	state := selector.NewState(inv.Keys)
	state.Grouped = r.lastGrouped

	hosts, err := selector.Resolve(sel, state)
	if err != nil {
		fmt.Fprintf(r.errOut, "selector error: %v\n", err)
		return
	}
	if len(hosts) == 0 {
		fmt.Fprintln(r.errOut, "no hosts match selector")
		return
	}

	// Ctrl-C cancels only the current command.
	execCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	run, err := fn(execCtx, selector.Pattern(hosts, state.AllHosts))
	stop()
	if err != nil {
		fmt.Fprintf(r.errOut, "run failed: %v\n", err)
		return
	}

	results := normalize.Collapse(run.Results())
	grouped := grouper.Group(results)
	r.formatter.Keys = run.Keys
	fmt.Fprint(r.errOut, r.formatter.FormatWarnings(run.Warnings))
	fmt.Fprint(r.out, r.formatter.Format(grouped))

	r.lastResults = results
	r.lastGrouped = grouped
	r.addHistory(input, grouped)
}

func (r *REPL) prompt() string {
	n := 0
	if inv, err := r.exec.Inventory(); err == nil {
		n = inv.Keys.Len()
	}
	return fmt.Sprintf("corral [%d %s]> ", n, plural("host", n))
}

func (r *REPL) addHistory(input string, grouped *grouper.GroupedResults) {
	entry := HistoryEntry{Input: input}

	for _, g := range grouped.Groups {
		switch {
		case g.RC != 0:
			entry.FailCount += len(g.Hosts)
		case g.IsNorm:
			entry.OKCount += len(g.Hosts)
		default:
			entry.DiffCount += len(g.Hosts)
		}
	}
	entry.OKCount += len(grouped.Facts)
	entry.FailCount += len(grouped.Failed)
	entry.HostCount = entry.OKCount + entry.DiffCount + entry.FailCount

	r.history = append(r.history, entry)
}

// handleCommand processes a colon-prefixed REPL command.
// Returns true if the REPL should exit.
func (r *REPL) handleCommand(ctx context.Context, line string) bool {
	cmd, args := ParseColonCommand(line)
	sel := strings.Join(args, ",")

	switch cmd {
	case ":quit", ":q":
		return true

	case ":help":
		fmt.Fprintf(r.out, "commands: [@selector] <shell command>, !N, %s\n", strings.Join(ValidCommands(), ", "))

	case ":history", ":h":
		r.showHistory()

	case ":hosts":
		r.showHosts()

	case ":ping":
		r.execute(ctx, line, sel, r.exec.Ping)

	case ":facts":
		r.execute(ctx, line, sel, r.exec.GatherFacts)

	case ":last":
		r.showLast()

	case ":export":
		if len(args) == 0 {
			fmt.Fprintln(r.errOut, "usage: :export <file>")
			return false
		}
		if err := r.exportJSON(args[0]); err != nil {
			fmt.Fprintf(r.errOut, "export: %v\n", err)
		} else {
			fmt.Fprintf(r.out, "exported to %s\n", args[0])
		}

	case ":reload":
		if r.fleet == nil {
			fmt.Fprintln(r.errOut, "reload is not available")
			return false
		}
		if err := r.fleet.Reload(); err != nil {
			fmt.Fprintf(r.errOut, "reload: %v\n", err)
			return false
		}
		r.lastResults = nil
		r.lastGrouped = nil
		fmt.Fprintln(r.out, "servers reloaded")
		r.showHosts()

	default:
		fmt.Fprintf(r.errOut, "unknown command %q (try %s)\n", cmd, strings.Join(ValidCommands(), ", "))
	}

	return false
}

func (r *REPL) showHistory() {
	if len(r.history) == 0 {
		fmt.Fprintln(r.out, "no history")
		return
	}
	for i, e := range r.history {
		fmt.Fprintln(r.out, FormatHistoryEntry(i+1, e))
	}
}

// hostStatus reports a host's outcome in the last run.
func (r *REPL) hostStatus(key string) string {
	if r.lastGrouped == nil {
		return "-"
	}
	for _, h := range r.lastGrouped.UnreachableHosts() {
		if h == key {
			return "unreachable"
		}
	}
	for _, h := range r.lastGrouped.FailedHosts() {
		if h == key {
			return "failed"
		}
	}
	for _, h := range r.lastGrouped.DiffersHosts() {
		if h == key {
			return "differs"
		}
	}
	for _, h := range r.lastGrouped.OKHosts() {
		if h == key {
			return "ok"
		}
	}
	return "-"
}

func (r *REPL) showHosts() {
	inv, err := r.exec.Inventory()
	if err != nil {
		fmt.Fprintf(r.errOut, "inventory: %v\n", err)
		return
	}
	for _, k := range inv.Keys.Keys() {
		fmt.Fprintf(r.out, "  %-24s %-24s %s\n", k, inv.Keys.DisplayName(k), r.hostStatus(k))
	}
	fmt.Fprint(r.out, r.formatter.FormatSkipped(inv.Skipped))
}

func (r *REPL) showLast() {
	if r.lastGrouped == nil {
		fmt.Fprintln(r.errOut, "no previous command results")
		return
	}
	fmt.Fprint(r.out, r.formatter.Format(r.lastGrouped))
}

func (r *REPL) exportJSON(filename string) error {
	if r.lastResults == nil {
		return fmt.Errorf("no results to export")
	}

	data, err := r.formatter.FormatJSON(r.lastResults)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, append(data, '\n'), 0644)
}

func plural(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func drainSignals(ch <-chan os.Signal) bool {
	drained := false
	for {
		select {
		case <-ch:
			drained = true
		default:
			return drained
		}
	}
}

// FormatHistoryEntry formats a single history entry for display.
func FormatHistoryEntry(index int, e HistoryEntry) string {
	input := e.Input
	if len(input) > 40 {
		input = input[:37] + "..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, " %-4d %-42s (%d %s",
		index, input, e.HostCount, plural("host", e.HostCount))

	var parts []string
	if e.OKCount > 0 {
		parts = append(parts, fmt.Sprintf("%d ok", e.OKCount))
	}
	if e.DiffCount > 0 {
		parts = append(parts, fmt.Sprintf("%d differs", e.DiffCount))
	}
	if e.FailCount > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", e.FailCount))
	}
	if len(parts) > 0 {
		fmt.Fprintf(&b, ", %s", strings.Join(parts, ", "))
	}
	b.WriteString(")")
	return b.String()
}

// ParseColonCommand parses a colon-command into its name and arguments.
func ParseColonCommand(line string) (cmd string, args []string) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}

// ValidCommands returns the list of valid colon-command names.
func ValidCommands() []string {
	return []string{":quit", ":q", ":help", ":history", ":h", ":hosts", ":ping", ":facts", ":last", ":export", ":reload"}
}

// ParseHistoryRef checks if a string is a history reference like "!3".
// Returns the 1-based index and true if it is, or 0 and false otherwise.
func ParseHistoryRef(s string) (int, bool) {
	if !strings.HasPrefix(s, "!") || len(s) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
