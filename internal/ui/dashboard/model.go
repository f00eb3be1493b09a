// Package dashboard is the full-screen fleet view: a host table with
// reachability, a grouped output pane and a command line.
package dashboard

import (
	"context"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/agent462/corral/internal/executor"
	"github.com/agent462/corral/internal/grouper"
	"github.com/agent462/corral/internal/inventory"
	"github.com/agent462/corral/internal/normalize"
	"github.com/agent462/corral/internal/selector"
)

// Executor is the subset of executor.Executor the dashboard drives.
type Executor interface {
	Inventory() (*inventory.Inventory, error)
	Shell(ctx context.Context, hostSelector, command string) (*executor.Run, error)
	Ping(ctx context.Context, hostSelector string) (*executor.Run, error)
}

// pane identifies which sub-model has focus.
type pane int

const (
	paneHostTable pane = iota
	paneOutput
	paneCommandInput
)

// Config holds the parameters needed to create a dashboard Model.
type Config struct {
	Context         context.Context // cancels in-flight runs; defaults to Background
	Executor        Executor
	RefreshInterval time.Duration
}

// Model is the root Bubble Tea model for the dashboard.
type Model struct {
	ctx      context.Context
	executor Executor
	keys     *inventory.Keys

	hostTable    hostTable
	outputPane   outputPane
	commandInput commandInput

	focused     pane
	showHelp    bool
	lastResults []normalize.Result
	lastGrouped *grouper.GroupedResults
	lastCommand string
	lastCheck   time.Time
	checkErr    error
	running     bool
	checking    bool
	refresh     time.Duration

	width  int
	height int
}

// New creates a dashboard Model. It fails when the inventory cannot be built.
func New(cfg Config) (Model, error) {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 30 * time.Second
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}

	inv, err := cfg.Executor.Inventory()
	if err != nil {
		return Model{}, err
	}

	return Model{
		ctx:          cfg.Context,
		executor:     cfg.Executor,
		keys:         inv.Keys,
		hostTable:    newHostTable(inv.Keys, 40, 20),
		outputPane:   newOutputPane(40, 20),
		commandInput: newCommandInput(80),
		focused:      paneCommandInput,
		refresh:      cfg.RefreshInterval,
	}, nil
}

// Init starts the first reachability check and focuses the input.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return healthTickMsg{} },
		m.commandInput.Focus(),
	)
}

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case execResultMsg:
		m.running = false
		m.lastCommand = msg.Command
		if msg.Err != nil {
			m.outputPane.SetError(msg.Command, msg.Err)
			return m, nil
		}
		if msg.Keys != nil {
			m.keys = msg.Keys
		}
		m.lastResults = msg.Results
		m.lastGrouped = msg.Grouped
		m.hostTable.UpdateResults(msg.Command, msg.Grouped)
		m.outputPane.SetWarnings(msg.Warnings)
		m.outputPane.SetGroupedResults(msg.Grouped, msg.Results, m.keys)
		return m, nil

	case healthTickMsg:
		return m.startCheck()

	case healthCheckMsg:
		m.checking = false
		m.lastCheck = msg.At
		m.checkErr = msg.Err
		m.hostTable.UpdateHealth(msg.Status)
		return m, healthTickCmd(m.refresh)
	}

	// Forward to focused pane.
	var cmd tea.Cmd
	switch m.focused {
	case paneHostTable:
		cmd = m.hostTable.Update(msg)
	case paneOutput:
		cmd = m.outputPane.Update(msg)
	case paneCommandInput:
		cmd = m.commandInput.Update(msg)
	}
	return m, cmd
}

// startCheck runs a reachability check unless one is already in flight.
// Ticks that arrive during a check are dropped; the running check schedules
// the next tick when it finishes.
func (m Model) startCheck() (tea.Model, tea.Cmd) {
	if m.checking {
		return m, nil
	}
	m.checking = true
	return m, healthCheckCmd(m.ctx, m.executor, m.keys.Keys())
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	key := msg.Key()

	if m.showHelp {
		if key.Code == tea.KeyEscape || msg.String() == "?" {
			m.showHelp = false
		}
		return m, nil
	}

	// Global keys, except while typing into the command input.
	typing := m.focused == paneCommandInput && m.commandInput.Value() != ""
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case msg.String() == "q" && !typing:
		return m, tea.Quit
	case msg.String() == "?" && !typing:
		m.showHelp = true
		return m, nil
	case msg.String() == "r" && !typing:
		return m.startCheck()
	}

	if key.Code == tea.KeyTab {
		return m.cycleFocus()
	}

	switch m.focused {
	case paneHostTable:
		return m.handleHostTableKey(msg)
	case paneOutput:
		return m.handleOutputKey(msg)
	default:
		return m.handleCommandInputKey(msg)
	}
}

func (m Model) handleHostTableKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.Key().Code {
	case tea.KeyEnter:
		host := m.hostTable.SelectedHost()
		if host != "" && m.lastGrouped != nil {
			m.outputPane.ExpandHost(host, m.lastResults)
		}
		return m, nil
	case tea.KeyEscape:
		m.outputPane.CollapseHost(m.lastGrouped)
		return m, nil
	}

	// Navigation goes to the table.
	cmd := m.hostTable.Update(msg)
	return m, cmd
}

func (m Model) handleOutputKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if msg.Key().Code == tea.KeyEscape && m.outputPane.IsExpanded() {
		m.outputPane.CollapseHost(m.lastGrouped)
		return m, nil
	}

	// Scrolling goes to the viewport.
	cmd := m.outputPane.Update(msg)
	return m, cmd
}

func (m Model) handleCommandInputKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if msg.Key().Code == tea.KeyEnter {
		input := m.commandInput.Value()
		if input == "" {
			return m, nil
		}
		m.commandInput.Reset()
		if input == ":ping" {
			return m.startCheck()
		}
		cmd := m.executeCommand(input)
		if cmd != nil {
			m.running = true
		}
		return m, cmd
	}

	cmd := m.commandInput.Update(msg)
	return m, cmd
}

// cycleFocus moves focus to the next pane. Focusing the input returns its
// cursor blink command.
func (m Model) cycleFocus() (Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focused {
	case paneHostTable:
		m.hostTable.Blur()
		m.focused = paneOutput
	case paneOutput:
		m.focused = paneCommandInput
		cmd = m.commandInput.Focus()
	case paneCommandInput:
		m.commandInput.Blur()
		m.focused = paneHostTable
		m.hostTable.Focus()
	}
	return m, cmd
}

// executeCommand resolves the selector now and returns a command that runs
// the shell line in the background.
func (m Model) executeCommand(input string) tea.Cmd {
	sel, command := selector.ParseInput(input)
	if command == "" {
		return nil
	}

	state := selector.NewState(m.keys)
	state.Grouped = m.lastGrouped
	hosts, err := selector.Resolve(sel, state)
	if err == nil && len(hosts) == 0 {
		err = errNoHosts
	}
	if err != nil {
		return func() tea.Msg {
			return execResultMsg{Command: command, Err: err}
		}
	}

	ctx := m.ctx
	exec := m.executor
	pattern := selector.Pattern(hosts, state.AllHosts)
	return func() tea.Msg {
		run, err := exec.Shell(ctx, pattern, command)
		if err != nil {
			return execResultMsg{Command: command, Err: err}
		}
		results := run.Results()
		return execResultMsg{
			Command:  command,
			Results:  results,
			Grouped:  grouper.Group(results),
			Keys:     run.Keys,
			Duration: run.Duration,
			Warnings: run.Warnings,
		}
	}
}

// layout returns the pane sizes for the current window.
func (m Model) layout() (tableWidth, outputWidth, mainHeight int) {
	tableWidth = m.width * 40 / 100
	outputWidth = m.width - tableWidth
	statusHeight := 1
	inputHeight := 3
	mainHeight = max(m.height-statusHeight-inputHeight, 5)
	return tableWidth, outputWidth, mainHeight
}

func (m *Model) resize() {
	tableWidth, outputWidth, mainHeight := m.layout()
	m.hostTable.Resize(tableWidth, mainHeight)
	m.outputPane.Resize(outputWidth, mainHeight)
	m.commandInput.Resize(m.width)
}

// View renders the full dashboard.
func (m Model) View() tea.View {
	if m.width == 0 || m.height == 0 {
		return tea.NewView("Loading...")
	}

	v := tea.NewView(m.renderContent())
	v.AltScreen = true
	v.MouseMode = tea.MouseModeCellMotion
	return v
}

func (m Model) renderContent() string {
	if m.showHelp {
		return renderHelpOverlay(m.width, m.height)
	}

	tableWidth, outputWidth, mainHeight := m.layout()

	// lipgloss v2 Width/Height include the border.
	tableStyle := paneStyle
	if m.focused == paneHostTable {
		tableStyle = focusedPaneStyle
	}
	outputStyle := paneStyle
	if m.focused == paneOutput {
		outputStyle = focusedPaneStyle
	}
	inputStyle := paneStyle
	if m.focused == paneCommandInput {
		inputStyle = focusedPaneStyle
	}

	mainRow := lipgloss.JoinHorizontal(lipgloss.Top,
		tableStyle.Width(tableWidth).Height(mainHeight).Render(m.hostTable.View()),
		outputStyle.Width(outputWidth).Height(mainHeight).Render(m.outputPane.View()),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		mainRow,
		inputStyle.Width(m.width).Render(m.commandInput.View()),
		renderStatusBar(m.keys.Len(), m.hostTable.OnlineCount(), m.width, m.lastCheck, m.checkErr, m.running || m.checking),
	)
}
