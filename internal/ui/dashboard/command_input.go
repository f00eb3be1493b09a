package dashboard

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/agent462/corral/internal/preset"
	"github.com/agent462/corral/internal/selector"
)

// commandInput is the corral> line. While typing it flags commands that
// match the dangerous pattern list and shows which selector will be used.
type commandInput struct {
	input textinput.Model
	width int
}

func newCommandInput(width int) commandInput {
	ti := textinput.New()
	ti.Prompt = "corral> "
	ti.Placeholder = "[@selector] command, or :ping"
	ti.SetWidth(width - 4) // account for border/padding
	ti.Focus()

	return commandInput{
		input: ti,
		width: width,
	}
}

func (c *commandInput) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return cmd
}

// Warnings returns the dangerous patterns in the current line.
func (c *commandInput) Warnings() []string {
	return preset.Dangerous(c.input.Value())
}

// hint describes the pending line: a dangerous-command warning takes
// precedence over the selector target.
func (c *commandInput) hint() string {
	value := c.input.Value()
	if value == "" || strings.HasPrefix(value, ":") {
		return ""
	}
	if hits := c.Warnings(); len(hits) > 0 {
		return groupHeaderError.Render("! " + strings.Join(hits, ", "))
	}
	sel, command := selector.ParseInput(value)
	if command == "" {
		return ""
	}
	if sel == "" {
		sel = "@all"
	}
	return subtleStyle.Render("-> " + sel)
}

// View renders the input with its hint right of the text. The input shrinks
// so the line never wraps.
func (c *commandInput) View() string {
	hint := c.hint()
	if hint == "" {
		return c.input.View()
	}
	ti := c.input
	ti.SetWidth(max(c.width-6-ansi.StringWidth(hint), 10))
	return ti.View() + "  " + hint
}

func (c *commandInput) Value() string {
	return c.input.Value()
}

func (c *commandInput) Reset() {
	c.input.Reset()
}

func (c *commandInput) Focus() tea.Cmd {
	return c.input.Focus()
}

func (c *commandInput) Blur() {
	c.input.Blur()
}

func (c *commandInput) Resize(width int) {
	c.width = width
	c.input.SetWidth(width - 4)
}
