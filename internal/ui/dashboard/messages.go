package dashboard

import (
	"errors"
	"time"

	"github.com/agent462/corral/internal/grouper"
	"github.com/agent462/corral/internal/inventory"
	"github.com/agent462/corral/internal/normalize"
)

// execResultMsg is sent when a command finishes running across hosts.
type execResultMsg struct {
	Command  string
	Results  []normalize.Result
	Grouped  *grouper.GroupedResults
	Keys     *inventory.Keys
	Duration time.Duration
	Warnings []string // dangerous patterns in the command
	Err      error
}

// healthCheckMsg carries the reachability of each inventory key.
type healthCheckMsg struct {
	Status map[string]bool
	At     time.Time
	Err    error
}

// healthTickMsg triggers a new reachability check.
type healthTickMsg struct{}

var errNoHosts = errors.New("no hosts match selector")
