package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agent462/corral/internal/normalize"
	"github.com/agent462/corral/internal/parser"
	"github.com/agent462/corral/internal/preset"
	"github.com/agent462/corral/internal/selector"
)

// selectorArgs joins @-prefixed arguments into one selector.
func selectorArgs(args []string) (string, error) {
	for _, arg := range args {
		if !strings.HasPrefix(arg, "@") {
			return "", fmt.Errorf("expected a host selector starting with @, got %q", arg)
		}
	}
	return strings.Join(args, ","), nil
}

func newPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping [@selector...]",
		Short: "Check that hosts are reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := selectorArgs(args)
			if err != nil {
				return err
			}
			pattern, err := a.pattern(sel)
			if err != nil {
				return err
			}
			run, err := a.exec.Ping(cmd.Context(), pattern)
			if err != nil {
				return err
			}
			return a.render(run)
		},
	}
}

func newExecCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exec [@selector] <command...>",
		Short: "Run a shell command on hosts",
		Example: `  corral exec uptime
  corral exec @web* -- df -h /`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, command := selector.ParseInput(strings.Join(args, " "))
			if command == "" {
				return fmt.Errorf("no command given")
			}
			pattern, err := a.pattern(sel)
			if err != nil {
				return err
			}
			run, err := a.exec.Shell(cmd.Context(), pattern, command)
			if err != nil {
				return err
			}
			return a.render(run)
		},
	}
}

// runPreset runs c and renders it as a parsed table when c names a parser
// and the output mode is grouped.
func (a *app) runPreset(cmd *cobra.Command, c preset.Command, sel string) error {
	pattern, err := a.pattern(sel)
	if err != nil {
		return err
	}
	run, err := a.exec.Shell(cmd.Context(), pattern, c.Command)
	if err != nil {
		return err
	}
	if c.Parser == "" || a.cfg.Defaults.Output != "grouped" {
		return a.render(run)
	}

	p, err := parser.Lookup(c.Parser, a.cfg)
	if err != nil {
		return err
	}
	results := normalize.Collapse(run.Results())
	parsed := p.ParseAll(results)
	for _, hp := range parsed {
		hp.Host = run.Keys.DisplayName(hp.Host)
	}
	fmt.Fprint(a.stdout, parser.FormatTable(parsed, a.color))
	return checkResults(results)
}

func newQuickCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "quick <name> [@selector...]",
		Short:     "Run a quick command (" + strings.Join(preset.Names(preset.QuickCommands()), ", ") + ")",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: preset.Names(preset.QuickCommands()),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ok := preset.Lookup(preset.QuickCommands(), args[0])
			if !ok {
				return fmt.Errorf("unknown quick command %q", args[0])
			}
			sel, err := selectorArgs(args[1:])
			if err != nil {
				return err
			}
			return a.runPreset(cmd, c, sel)
		},
	}
}

func newMonitorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor [metric] [@selector...]",
		Short: "Show a monitoring snapshot (" + strings.Join(preset.Names(preset.MonitorMetrics()), ", ") + ")",
		RunE: func(cmd *cobra.Command, args []string) error {
			metrics := preset.MonitorMetrics()
			if len(args) > 0 && !strings.HasPrefix(args[0], "@") {
				c, ok := preset.Lookup(metrics, args[0])
				if !ok {
					return fmt.Errorf("unknown metric %q", args[0])
				}
				metrics = []preset.Command{c}
				args = args[1:]
			}
			sel, err := selectorArgs(args)
			if err != nil {
				return err
			}

			var firstErr error
			for _, c := range metrics {
				fmt.Fprintf(a.stdout, "== %s ==\n", c.Label)
				if err := a.runPreset(cmd, c, sel); err != nil && firstErr == nil {
					firstErr = err
				}
				if err := cmd.Context().Err(); err != nil {
					return err
				}
			}
			return firstErr
		},
	}
}

func newFactsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "facts [@selector...]",
		Short: "Gather system information",
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := selectorArgs(args)
			if err != nil {
				return err
			}
			pattern, err := a.pattern(sel)
			if err != nil {
				return err
			}
			run, err := a.exec.GatherFacts(cmd.Context(), pattern)
			if err != nil {
				return err
			}
			return a.render(run)
		},
	}
}

func newLogsCmd(a *app) *cobra.Command {
	var lines int
	cmd := &cobra.Command{
		Use:   "logs <name|/path> [@selector...]",
		Short: "Show the tail of a log file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if l, ok := preset.LookupLog(path); ok {
				path = l.Path
			} else if !strings.HasPrefix(path, "/") {
				return fmt.Errorf("unknown log %q", path)
			}
			if !cmd.Flags().Changed("lines") && a.cfg.Defaults.LogLines > 0 {
				lines = a.cfg.Defaults.LogLines
			}
			command, err := preset.TailCommand(path, lines)
			if err != nil {
				return err
			}
			sel, err := selectorArgs(args[1:])
			if err != nil {
				return err
			}
			return a.runPreset(cmd, preset.Command{Name: "logs", Command: command}, sel)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "number of lines (default from config)")
	return cmd
}

func newPackageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "package <install|update|remove|search> <names> [@selector...]",
		Short: "Manage apt packages",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var names, sels []string
			for _, arg := range args[1:] {
				if strings.HasPrefix(arg, "@") {
					sels = append(sels, arg)
				} else {
					names = append(names, arg)
				}
			}
			command, err := preset.PackageCommand(preset.PackageAction(args[0]), strings.Join(names, " "))
			if err != nil {
				return err
			}
			return a.runPreset(cmd, preset.Command{Name: "package", Command: command}, strings.Join(sels, ","))
		},
	}
}
