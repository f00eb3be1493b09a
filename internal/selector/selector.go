// Package selector resolves @-selectors such as @all, @failed or @web* to
// inventory keys.
package selector

import (
	"fmt"
	"path"
	"strings"

	"github.com/agent462/corral/internal/grouper"
	"github.com/agent462/corral/internal/inventory"
)

// State holds the context needed for selector resolution:
// the inventory keys, their display names, and (optionally) the grouped
// results from the last run.
type State struct {
	AllHosts     []string                // inventory keys
	DisplayNames map[string]string       // key -> display name
	Grouped      *grouper.GroupedResults // nil if nothing has run yet
}

// NewState builds a State from inventory keys.
func NewState(keys *inventory.Keys) *State {
	s := &State{
		AllHosts:     keys.Keys(),
		DisplayNames: make(map[string]string, keys.Len()),
	}
	for _, k := range s.AllHosts {
		s.DisplayNames[k] = keys.DisplayName(k)
	}
	return s
}

// ParseInput splits a REPL input line into a selector part and a command part.
// If the input starts with @, the comma-separated list of @-prefixed tokens
// is the selector (spaces around commas are tolerated). The rest is the command.
// Otherwise the selector is empty, implying @all.
func ParseInput(input string) (sel, command string) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "@") {
		return "", input
	}

	// Consume @-prefixed tokens separated by commas (with optional spaces).
	i := 0
	for {
		// Skip whitespace before token.
		for i < len(input) && input[i] == ' ' {
			i++
		}
		if i >= len(input) || input[i] != '@' {
			break
		}
		// Advance past this selector token.
		for i < len(input) && input[i] != ' ' && input[i] != ',' {
			i++
		}

		// Look ahead past whitespace for a comma.
		j := i
		for j < len(input) && input[j] == ' ' {
			j++
		}
		if j >= len(input) || input[j] != ',' {
			break // no comma → end of selector list
		}
		// Found comma; verify the next non-space char is @.
		j++ // skip comma
		k := j
		for k < len(input) && input[k] == ' ' {
			k++
		}
		if k >= len(input) || input[k] != '@' {
			break // trailing comma, not a combined selector
		}
		i = j // advance past comma; loop will skip whitespace
	}

	sel = strings.TrimSpace(input[:i])
	if i >= len(input) {
		return sel, ""
	}
	return sel, strings.TrimSpace(input[i:])
}

// Resolve maps a selector string to a list of inventory keys, deduplicated,
// in the order the selectors produce them. An empty selector is @all.
func Resolve(sel string, state *State) ([]string, error) {
	if sel == "" || sel == "@all" {
		return state.AllHosts, nil
	}

	parts := strings.Split(sel, ",")
	seen := make(map[string]bool)
	var result []string

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		hosts, err := resolveSingle(part, state)
		if err != nil {
			return nil, err
		}
		for _, h := range hosts {
			if !seen[h] {
				seen[h] = true
				result = append(result, h)
			}
		}
	}

	return result, nil
}

func resolveSingle(sel string, state *State) ([]string, error) {
	if !strings.HasPrefix(sel, "@") {
		return nil, fmt.Errorf("invalid selector %q: must start with @", sel)
	}
	name := sel[1:]

	switch name {
	case "all":
		return state.AllHosts, nil
	case "ok", "differs", "failed", "unreachable":
		if state.Grouped == nil {
			return nil, fmt.Errorf("@%s: no previous command results", name)
		}
	}

	switch name {
	case "ok":
		return state.Grouped.OKHosts(), nil
	case "differs":
		return state.Grouped.DiffersHosts(), nil
	case "failed":
		return state.Grouped.FailedHosts(), nil
	case "unreachable":
		return state.Grouped.UnreachableHosts(), nil
	}
	return matchHosts(name, state)
}

// matchHosts returns keys whose key or display name matches the glob pattern.
func matchHosts(pattern string, state *State) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	var matched []string
	for _, h := range state.AllHosts {
		if ok, _ := path.Match(pattern, h); ok {
			matched = append(matched, h)
			continue
		}
		if name, has := state.DisplayNames[h]; has {
			if ok, _ := path.Match(pattern, name); ok {
				matched = append(matched, h)
			}
		}
	}

	if len(matched) == 0 {
		return nil, fmt.Errorf("no hosts match @%s", pattern)
	}

	return matched, nil
}

// Pattern turns resolved keys into an engine host selector: "all" when keys
// covers every host, otherwise the comma-joined keys.
func Pattern(keys, all []string) string {
	if len(keys) == len(all) && len(all) > 0 {
		set := make(map[string]bool, len(keys))
		for _, k := range keys {
			set[k] = true
		}
		covered := true
		for _, k := range all {
			if !set[k] {
				covered = false
				break
			}
		}
		if covered {
			return "all"
		}
	}
	return strings.Join(keys, ",")
}
