package main

import (
	"fmt"
	"sort"
	"strings"

	tea "charm.land/bubbletea/v2"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/agent462/corral/internal/executor"
	"github.com/agent462/corral/internal/inventory"
	"github.com/agent462/corral/internal/normalize"
	"github.com/agent462/corral/internal/preset"
	"github.com/agent462/corral/internal/recipe"
	"github.com/agent462/corral/internal/ui/dashboard"
	"github.com/agent462/corral/internal/ui/repl"
)

// runRecipe runs steps and prints each step's grouped output.
func (a *app) runRecipe(cmd *cobra.Command, steps []recipe.Step) error {
	results, err := recipe.New(a.exec).Run(cmd.Context(), steps)
	for i, sr := range results {
		fmt.Fprintf(a.stdout, "== step %d: %s ==\n", i+1, strings.TrimSpace(sr.Step.Selector+" "+sr.Step.Command))
		if sr.Skipped {
			fmt.Fprintln(a.stdout, "skipped: no hosts matched")
			continue
		}
		f := a.formatter(sr.Run.Keys)
		fmt.Fprint(a.stderr, f.FormatWarnings(sr.Run.Warnings))
		fmt.Fprint(a.stdout, f.Format(sr.Grouped))
	}
	if err != nil {
		return err
	}
	if len(results) > 0 {
		last := results[len(results)-1]
		if !last.Skipped {
			return checkResults(last.Results)
		}
	}
	return nil
}

func newServiceCmd(a *app) *cobra.Command {
	actions := make([]string, 0, len(preset.ServiceActions())+1)
	for _, act := range preset.ServiceActions() {
		actions = append(actions, string(act))
	}
	actions = append(actions, "status")

	return &cobra.Command{
		Use:   "service <" + strings.Join(actions, "|") + "> <service> [@selector...]",
		Short: "Control a systemd service and verify it afterwards",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, service := args[0], args[1]
			sel, err := selectorArgs(args[2:])
			if err != nil {
				return err
			}
			if action == "status" {
				return a.serviceStatus(cmd, service, sel)
			}

			r, err := recipe.ServiceRecipe(preset.ServiceAction(action), service)
			if err != nil {
				return err
			}
			steps := recipe.ParseSteps(r.Steps)
			if sel != "" {
				steps[0].Selector = sel
			}
			return a.runRecipe(cmd, steps)
		},
	}
}

// serviceStatus prints one line per host saying whether service is running.
func (a *app) serviceStatus(cmd *cobra.Command, service, sel string) error {
	command, err := preset.ServiceStatusCommand(service)
	if err != nil {
		return err
	}
	pattern, err := a.pattern(sel)
	if err != nil {
		return err
	}
	run, err := a.exec.Shell(cmd.Context(), pattern, command)
	if err != nil {
		return err
	}
	if a.cfg.Defaults.Output == "json" {
		return a.render(run)
	}

	notRunning := 0
	for _, r := range normalize.Collapse(run.Results()) {
		state := "running"
		switch {
		case r.Unreachable:
			state = "unreachable: " + r.Msg
		case !preset.ServiceRunning(r.StdoutString()):
			state = "not running"
		}
		if state != "running" {
			notRunning++
		}
		fmt.Fprintf(a.stdout, "%-24s %s\n", run.Keys.DisplayName(r.Host), state)
	}
	if notRunning > 0 {
		return &hostFailureError{failed: notRunning}
	}
	return nil
}

func newRecipeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipe",
		Short: "List and run multi-step recipes",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List built-in and configured recipes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				merged := recipe.MergedRecipes(a.cfg)
				names := make([]string, 0, len(merged))
				for name := range merged {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					source := "config"
					if _, isUser := a.cfg.Recipes[name]; !isUser {
						source = "builtin"
					}
					fmt.Fprintf(a.stdout, "%-16s %-8s %s\n", name, source, merged[name].Description)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "run <name>",
			Short: "Run a recipe",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, _, ok := recipe.ResolveRecipe(args[0], a.cfg)
				if !ok {
					return fmt.Errorf("unknown recipe %q", args[0])
				}
				return a.runRecipe(cmd, recipe.ParseSteps(r.Steps))
			},
		},
	)
	return cmd
}

// redacted is written in place of passwords when printing an inventory.
const redacted = "********"

func newInventoryCmd(a *app) *cobra.Command {
	var write, showSecrets bool
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Print the inventory built from the current servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inv, err := a.exec.Inventory()
			if err != nil {
				return err
			}
			a.warnSkipped(inv.Skipped)

			if write {
				path := a.exec.InventoryPath()
				if err := inv.Write(path); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "wrote %d %s to %s\n", inv.Keys.Len(), plural("host", inv.Keys.Len()), path)
				return nil
			}

			if !showSecrets {
				inv = redact(inv)
			}
			data, err := inv.Marshal()
			if err != nil {
				return err
			}
			_, err = a.stdout.Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "write the inventory to engine.inventory_path instead of printing it")
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print passwords instead of masking them")
	return cmd
}

// redact returns a copy of inv with passwords masked.
func redact(inv *inventory.Inventory) *inventory.Inventory {
	out := *inv
	hosts := make(map[string]inventory.Host, len(inv.Document.All.Hosts))
	for k, h := range inv.Document.All.Hosts {
		if h.AnsiblePassword != "" {
			h.AnsiblePassword = redacted
		}
		hosts[k] = h
	}
	out.Document.All.Hosts = hosts
	return &out
}

func newPresetsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List quick commands, monitor metrics, log files and service actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := a.stdout
			section := func(title string) { fmt.Fprintf(w, "%s:\n", title) }

			section("quick commands")
			for _, c := range preset.QuickCommands() {
				fmt.Fprintf(w, "  %-12s %s\n", c.Name, c.Command)
			}
			section("monitor metrics")
			for _, c := range preset.MonitorMetrics() {
				fmt.Fprintf(w, "  %-12s %s\n", c.Name, c.Command)
			}
			section("log files")
			for _, l := range preset.LogFiles() {
				fmt.Fprintf(w, "  %-14s %s\n", l.Name, l.Path)
			}
			section("services")
			fmt.Fprintf(w, "  %s\n", strings.Join(preset.Services(), ", "))
			section("package actions")
			for _, act := range preset.PackageActions() {
				fmt.Fprintf(w, "  %s\n", act)
			}
			return nil
		},
	}
}

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session := repl.New(repl.Config{
				Exec:  a.exec,
				Fleet: a.fleet,
				In:    cmd.InOrStdin(),
				Out:   a.stdout,
				Err:   a.stderr,
				Color: a.color,
			})
			return session.Run(cmd.Context())
		},
	}
}

// dashboardExecutor returns an executor that logs nothing. The dashboard
// owns the terminal, and log lines on stderr would overwrite it.
func (a *app) dashboardExecutor() *executor.Executor {
	return a.newExecutor(logr.Discard())
}

func newDashboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the full-screen fleet dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := dashboard.New(dashboard.Config{
				Context:         cmd.Context(),
				Executor:        a.dashboardExecutor(),
				RefreshInterval: a.cfg.Defaults.RefreshInterval.Duration,
			})
			if err != nil {
				return err
			}
			_, err = tea.NewProgram(m, tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
}
