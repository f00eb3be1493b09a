package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/agent462/corral/internal/config"
	"github.com/agent462/corral/internal/engine"
	"github.com/agent462/corral/internal/executor"
	"github.com/agent462/corral/internal/grouper"
	"github.com/agent462/corral/internal/inventory"
	"github.com/agent462/corral/internal/logging"
	"github.com/agent462/corral/internal/metrics"
	"github.com/agent462/corral/internal/normalize"
	"github.com/agent462/corral/internal/selector"
	execui "github.com/agent462/corral/internal/ui/exec"
)

// hostFailureError reports that a run finished but some hosts did not
// succeed. The results have already been printed.
type hostFailureError struct {
	failed int
}

func (e *hostFailureError) Error() string {
	return fmt.Sprintf("%d %s did not succeed", e.failed, plural("host", e.failed))
}

// app holds the flags and the components built from them.
type app struct {
	// Flags.
	configPath  string
	envFile     string
	output      string
	logLevel    string
	logFormat   string
	noColor     bool
	errorsOnly  bool
	metricsAddr string

	// Hooks replaced in tests.
	newEngine func(cfg *config.Config, logger logr.Logger) engine.Engine
	environ   func() []string

	cfg      *config.Config
	fleet    *config.Fleet
	exec     *executor.Executor
	logger   logr.Logger
	registry *prometheus.Registry
	recorder *metrics.Recorder
	color    bool
	stdout   io.Writer
	stderr   io.Writer
}

func defaultApp() *app {
	return &app{
		newEngine: func(cfg *config.Config, logger logr.Logger) engine.Engine {
			return engine.NewAnsibleRunner(
				engine.WithBinary(cfg.Engine.Binary),
				engine.WithLogger(logger),
			)
		},
		environ: os.Environ,
	}
}

// setup loads configuration and wires the executor. It runs before every
// subcommand.
func (a *app) setup(cmd *cobra.Command) error {
	a.stdout = cmd.OutOrStdout()
	a.stderr = cmd.ErrOrStderr()

	level, err := logging.ParseLevel(a.logLevel)
	if err != nil {
		return err
	}
	logger, err := logging.Setup(logging.Options{Format: a.logFormat, Level: level, Output: a.stderr})
	if err != nil {
		return err
	}
	a.logger = logger

	if a.configPath != "" {
		a.cfg, err = config.Load(a.configPath)
	} else {
		a.cfg, err = config.LoadDefault()
	}
	if err != nil {
		return err
	}
	if a.envFile != "" {
		a.cfg.Env.DotEnv = a.envFile
	}
	if a.output != "" {
		a.cfg.Defaults.Output = a.output
		if err := a.cfg.Validate(); err != nil {
			return err
		}
	}

	a.fleet, err = config.NewFleet(a.cfg, config.WithEnviron(a.environ))
	if err != nil {
		return fmt.Errorf("loading servers: %w", err)
	}

	a.registry = prometheus.NewRegistry()
	a.recorder = metrics.New(a.registry)
	a.exec = a.newExecutor(logger)

	a.color = !a.noColor && isTerminal(a.stdout)

	if a.metricsAddr != "" {
		go a.serveMetrics(cmd.Context())
	}
	return nil
}

// newExecutor builds an executor over the fleet whose engine and run logs
// go to logger.
func (a *app) newExecutor(logger logr.Logger) *executor.Executor {
	opts := append(executor.ConfigOptions(a.cfg),
		executor.WithLogger(logger),
		executor.WithMetrics(a.recorder),
	)
	return executor.New(a.fleet, a.newEngine(a.cfg, logger), opts...)
}

func (a *app) serveMetrics(ctx context.Context) {
	a.logger.Info("serving metrics", "addr", a.metricsAddr)
	if err := metrics.Serve(ctx, a.metricsAddr, a.registry); err != nil {
		a.logger.Error(err, "metrics server stopped", "addr", a.metricsAddr)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (a *app) formatter(keys *inventory.Keys) *execui.Formatter {
	f := execui.NewFormatter(a.cfg.Defaults.Output == "json", a.errorsOnly, a.color)
	f.Keys = keys
	return f
}

// pattern resolves an @-selector to an engine host pattern. Selectors that
// depend on a previous run are not available from the command line.
func (a *app) pattern(sel string) (string, error) {
	inv, err := a.exec.Inventory()
	if err != nil {
		return "", err
	}
	a.warnSkipped(inv.Skipped)
	state := selector.NewState(inv.Keys)
	hosts, err := selector.Resolve(sel, state)
	if err != nil {
		return "", err
	}
	if len(hosts) == 0 {
		return "", fmt.Errorf("no hosts match %q", sel)
	}
	return selector.Pattern(hosts, state.AllHosts), nil
}

func (a *app) warnSkipped(skipped []inventory.Skipped) {
	if len(skipped) > 0 {
		fmt.Fprint(a.stderr, a.formatter(nil).FormatSkipped(skipped))
	}
}

// render prints a run in the configured output mode and reports hosts that
// failed, were unreachable or exited non-zero.
func (a *app) render(run *executor.Run) error {
	results := normalize.Collapse(run.Results())
	f := a.formatter(run.Keys)
	fmt.Fprint(a.stderr, f.FormatWarnings(run.Warnings))

	switch a.cfg.Defaults.Output {
	case "json":
		data, err := f.FormatJSON(results)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, string(data))
	case "host":
		fmt.Fprint(a.stdout, f.FormatByHost(results))
	default:
		fmt.Fprint(a.stdout, f.Format(grouper.Group(results)))
	}
	return checkResults(results)
}

func checkResults(results []normalize.Result) error {
	failed := 0
	for _, r := range results {
		if !r.OK || (r.RC != nil && *r.RC != 0) {
			failed++
		}
	}
	if failed > 0 {
		return &hostFailureError{failed: failed}
	}
	return nil
}

func plural(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
