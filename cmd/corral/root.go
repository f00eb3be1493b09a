package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "corral",
		Short: "Run commands across a fleet of servers",
		Long: `corral builds an Ansible inventory from configured and environment-defined
servers and drives ansible-runner to run commands, gather facts and manage
services and packages across them. Results are grouped by identical output.

Host selectors start with @: @all, @web*, @"Server A", or a comma-separated
list of them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/corral/config.yaml)")
	pf.StringVar(&a.envFile, "env-file", "", "dotenv file with SERVER_* variables (overrides env.dotenv)")
	pf.StringVarP(&a.output, "output", "o", "", "output mode: grouped, host or json")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level: trace, debug, info, warn or error")
	pf.StringVar(&a.logFormat, "log-format", "text", "log format: text or json")
	pf.BoolVar(&a.noColor, "no-color", false, "disable colored output")
	pf.BoolVar(&a.errorsOnly, "errors-only", false, "show only failing hosts")
	pf.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9108)")

	root.AddCommand(
		newPingCmd(a),
		newExecCmd(a),
		newQuickCmd(a),
		newFactsCmd(a),
		newMonitorCmd(a),
		newServiceCmd(a),
		newPackageCmd(a),
		newLogsCmd(a),
		newRecipeCmd(a),
		newInventoryCmd(a),
		newPresetsCmd(a),
		newShellCmd(a),
		newDashboardCmd(a),
	)
	return root
}
