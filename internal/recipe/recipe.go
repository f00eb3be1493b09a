// Package recipe runs multi-step command sequences where each step can
// target the hosts that succeeded, failed or differed in the step before.
package recipe

import (
	"context"
	"fmt"

	"github.com/agent462/corral/internal/executor"
	"github.com/agent462/corral/internal/grouper"
	"github.com/agent462/corral/internal/inventory"
	"github.com/agent462/corral/internal/normalize"
	"github.com/agent462/corral/internal/selector"
)

// Executor is the part of the execution façade a recipe needs.
// *executor.Executor implements it.
type Executor interface {
	Inventory() (*inventory.Inventory, error)
	Shell(ctx context.Context, hostSelector, command string) (*executor.Run, error)
}

// Step represents a single command in a recipe, optionally scoped to a selector.
type Step struct {
	Selector string // "" means @all
	Command  string
}

// StepResult holds the outcome of executing a single recipe step.
type StepResult struct {
	Step    Step
	Hosts   []string // inventory keys the step ran on
	Skipped bool     // the selector matched no hosts
	Run     *executor.Run
	Results []normalize.Result
	Grouped *grouper.GroupedResults
}

// ParseStep parses a raw step string into a Step using selector.ParseInput.
func ParseStep(raw string) Step {
	sel, cmd := selector.ParseInput(raw)
	return Step{Selector: sel, Command: cmd}
}

// ParseSteps parses every raw step.
func ParseSteps(raw []string) []Step {
	steps := make([]Step, len(raw))
	for i, s := range raw {
		steps[i] = ParseStep(s)
	}
	return steps
}

// Runner executes recipe steps sequentially with selector propagation.
type Runner struct {
	exec Executor
}

// New creates a Runner over exec.
func New(exec Executor) *Runner {
	return &Runner{exec: exec}
}

// Run executes steps sequentially. After each step the selector state is
// updated with that step's grouped results, so @ok, @failed and @differs in
// step N refer to step N-1. A step whose selector matches no hosts is
// recorded as skipped and leaves an empty result set for the next step.
func (r *Runner) Run(ctx context.Context, steps []Step) ([]StepResult, error) {
	inv, err := r.exec.Inventory()
	if err != nil {
		return nil, err
	}
	state := selector.NewState(inv.Keys)

	results := make([]StepResult, 0, len(steps))

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("recipe cancelled: %w", err)
		}
		if step.Command == "" {
			return results, fmt.Errorf("step %q has no command", step.Selector)
		}

		hosts, err := selector.Resolve(step.Selector, state)
		if err != nil {
			return results, fmt.Errorf("step %q: %w", step.Command, err)
		}

		if len(hosts) == 0 {
			grouped := grouper.Group(nil)
			results = append(results, StepResult{Step: step, Skipped: true, Grouped: grouped})
			state.Grouped = grouped
			continue
		}

		run, err := r.exec.Shell(ctx, selector.Pattern(hosts, state.AllHosts), step.Command)
		if err != nil {
			return results, fmt.Errorf("step %q: %w", step.Command, err)
		}
		hostResults := run.Results()
		grouped := grouper.Group(hostResults)

		results = append(results, StepResult{
			Step:    step,
			Hosts:   hosts,
			Run:     run,
			Results: hostResults,
			Grouped: grouped,
		})

		// Propagate grouped results so the next step can use @ok, @failed, etc.
		state.Grouped = grouped
	}

	return results, nil
}
