// Package executor is the single entry point for running work on the fleet.
// Every call rebuilds the inventory from the current server set, writes it,
// and hands one request to the engine.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/agent462/corral/internal/config"
	"github.com/agent462/corral/internal/engine"
	"github.com/agent462/corral/internal/inventory"
	"github.com/agent462/corral/internal/metrics"
	"github.com/agent462/corral/internal/normalize"
	"github.com/agent462/corral/internal/pathutil"
	"github.com/agent462/corral/internal/preset"
)

// FactsPlaybookName is the file name the fact-gathering playbook is written to.
const FactsPlaybookName = "system_info.yml"

// ErrPlaybookNotFound is returned when a playbook path does not exist.
var ErrPlaybookNotFound = errors.New("playbook not found")

// ServerSource supplies the current server set. *config.Fleet implements it.
type ServerSource interface {
	Servers() map[string]config.ServerConfig
}

// Executor serializes runs against one engine. Calls on the same Executor
// never overlap.
type Executor struct {
	servers ServerSource
	engine  engine.Engine

	privateDataDir string
	inventoryPath  string
	playbookDir    string
	invOpts        inventory.Options
	isolate        bool
	quiet          bool

	logger  logr.Logger
	metrics *metrics.Recorder
	newID   func() string

	mu sync.Mutex
}

// Option configures an Executor.
type Option func(*Executor)

// WithPrivateDataDir sets the engine's private data directory.
func WithPrivateDataDir(dir string) Option {
	return func(e *Executor) {
		if dir != "" {
			e.privateDataDir = dir
		}
	}
}

// WithInventoryPath sets where the inventory is written. Relative paths are
// taken from the private data directory.
func WithInventoryPath(path string) Option {
	return func(e *Executor) {
		if path != "" {
			e.inventoryPath = path
		}
	}
}

// WithPlaybookDir sets the directory generated playbooks are written to.
// Relative paths are taken from the private data directory.
func WithPlaybookDir(dir string) Option {
	return func(e *Executor) {
		if dir != "" {
			e.playbookDir = dir
		}
	}
}

// WithInventoryOptions sets the connection defaults written into inventories.
func WithInventoryOptions(opts inventory.Options) Option {
	return func(e *Executor) {
		e.invOpts = opts
	}
}

// WithIsolatedInventory writes each run's inventory to its own file and
// removes it afterwards, instead of rewriting one shared path.
func WithIsolatedInventory(on bool) Option {
	return func(e *Executor) {
		e.isolate = on
	}
}

// WithQuiet suppresses the engine's console output.
func WithQuiet(on bool) Option {
	return func(e *Executor) {
		e.quiet = on
	}
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithIDFunc overrides how isolated inventory file names are generated.
func WithIDFunc(fn func() string) Option {
	return func(e *Executor) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// ConfigOptions returns the options described by cfg.
func ConfigOptions(cfg *config.Config) []Option {
	return []Option{
		WithPrivateDataDir(cfg.Engine.PrivateDataDir),
		WithInventoryPath(cfg.Engine.InventoryPath),
		WithPlaybookDir(cfg.Engine.PlaybookDir),
		WithInventoryOptions(inventory.OptionsFromConfig(cfg.Inventory)),
		WithIsolatedInventory(cfg.Engine.IsolateInventory),
		WithQuiet(cfg.Engine.Quiet),
	}
}

// New creates an Executor over servers and eng.
func New(servers ServerSource, eng engine.Engine, opts ...Option) *Executor {
	defaults := config.DefaultConfig()
	e := &Executor{
		servers:        servers,
		engine:         eng,
		privateDataDir: defaults.Engine.PrivateDataDir,
		inventoryPath:  defaults.Engine.InventoryPath,
		playbookDir:    defaults.Engine.PlaybookDir,
		invOpts:        inventory.DefaultOptions(),
		quiet:          true,
		logger:         logr.Discard(),
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}

	pdd := pathutil.ExpandHome(e.privateDataDir)
	if abs, err := filepath.Abs(pdd); err == nil {
		pdd = abs
	}
	e.privateDataDir = pdd
	e.inventoryPath = pathutil.Resolve(pdd, e.inventoryPath)
	e.playbookDir = pathutil.Resolve(pdd, e.playbookDir)
	e.invOpts.Logger = e.logger
	return e
}

// Run is the outcome of one engine invocation together with the inventory
// keys it ran against.
type Run struct {
	*engine.RunHandle
	Keys     *inventory.Keys
	Duration time.Duration

	// Warnings lists the dangerous patterns found in a Shell command line.
	// Front ends show them to the user; they never stop a run.
	Warnings []string
}

// Results normalizes the run's events.
func (r *Run) Results() []normalize.Result {
	return normalize.Normalize(r.Events)
}

// InventoryPath returns where runs write the shared inventory.
func (e *Executor) InventoryPath() string {
	return e.inventoryPath
}

// Inventory builds the inventory for the current server set without
// writing it.
func (e *Executor) Inventory() (*inventory.Inventory, error) {
	return inventory.Build(e.servers.Servers(), e.invOpts)
}

// RunAdhoc runs module with args on the hosts named by hostSelector, which is
// "all" or a non-empty comma-separated list of inventory keys; an empty
// selector is a *inventory.ConfigError. args are passed to the engine verbatim.
func (e *Executor) RunAdhoc(ctx context.Context, hostSelector, module, args string) (*Run, error) {
	return e.run(ctx, engine.KindAdhoc, hostSelector, func(req *engine.Request, pattern string) {
		req.Module = module
		req.ModuleArgs = args
		req.HostPattern = pattern
	})
}

// RunPlaybook runs the playbook at path limited to hostSelector. Relative
// paths are taken from the private data directory.
func (e *Executor) RunPlaybook(ctx context.Context, playbookPath, hostSelector string) (*Run, error) {
	path := pathutil.Resolve(e.privateDataDir, playbookPath)
	if _, err := os.Stat(path); err != nil {
		return nil, &inventory.ConfigError{Detail: path, Err: ErrPlaybookNotFound}
	}
	return e.run(ctx, engine.KindPlaybook, hostSelector, func(req *engine.Request, pattern string) {
		req.Playbook = path
		req.Limit = pattern
	})
}

// Shell runs a shell command line. Commands matching the dangerous pattern
// list are not refused; the matches are returned in Run.Warnings.
func (e *Executor) Shell(ctx context.Context, hostSelector, command string) (*Run, error) {
	hits := preset.Dangerous(command)
	if len(hits) > 0 {
		e.logger.Info("running dangerous command", "command", command, "warning", hits)
	}
	run, err := e.RunAdhoc(ctx, hostSelector, "shell", command)
	if err != nil {
		return nil, err
	}
	run.Warnings = hits
	return run, nil
}

// Ping checks reachability of the selected hosts.
func (e *Executor) Ping(ctx context.Context, hostSelector string) (*Run, error) {
	return e.RunAdhoc(ctx, hostSelector, "ping", "")
}

// GatherFacts writes the fact-gathering playbook and runs it.
func (e *Executor) GatherFacts(ctx context.Context, hostSelector string) (*Run, error) {
	path := filepath.Join(e.playbookDir, FactsPlaybookName)
	if err := inventory.WritePlaybook(path, inventory.FactsPlaybook()); err != nil {
		return nil, fmt.Errorf("writing facts playbook: %w", err)
	}
	return e.RunPlaybook(ctx, path, hostSelector)
}

func (e *Executor) run(ctx context.Context, kind, hostSelector string, fill func(*engine.Request, string)) (*Run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	fail := func(err error) (*Run, error) {
		e.metrics.ObserveRun(kind, metrics.StatusError, time.Since(start))
		return nil, err
	}

	inv, err := inventory.Build(e.servers.Servers(), e.invOpts)
	if err != nil {
		return fail(err)
	}
	e.metrics.ObserveInventory(inv.Keys.Len(), len(inv.Skipped))

	pattern, err := inv.Pattern(hostSelector)
	if err != nil {
		return fail(err)
	}

	path := e.inventoryPath
	if e.isolate {
		path = filepath.Join(filepath.Dir(e.inventoryPath), "hosts-"+e.newID()+".yml")
		defer os.Remove(path)
	}
	if err := inv.Write(path); err != nil {
		return fail(&engine.InvocationError{Stage: "inventory", Err: err})
	}

	req := engine.Request{
		PrivateDataDir: e.privateDataDir,
		InventoryPath:  path,
		Quiet:          e.quiet,
	}
	fill(&req, pattern)

	e.logger.V(1).Info("submitting run", "kind", kind, "pattern", pattern, "inventory", path)
	h, err := e.engine.Run(ctx, req)
	if err != nil {
		e.logger.Error(err, "engine run failed", "kind", kind, "pattern", pattern)
		return fail(err)
	}

	elapsed := time.Since(start)
	e.metrics.ObserveRun(kind, string(h.Status), elapsed)
	ok, failed := 0, 0
	for r := range normalize.All(h.Events) {
		switch {
		case r.OK:
			ok++
			e.metrics.ObserveHost(metrics.OutcomeOK)
		case r.Unreachable:
			failed++
			e.metrics.ObserveHost(metrics.OutcomeUnreachable)
		default:
			failed++
			e.metrics.ObserveHost(metrics.OutcomeFailed)
		}
	}
	e.logger.Info("run finished", "kind", kind, "ident", h.Ident, "status", h.Status,
		"ok", ok, "failed", failed, "duration", elapsed.Round(time.Millisecond).String())

	return &Run{RunHandle: h, Keys: inv.Keys, Duration: elapsed}, nil
}
