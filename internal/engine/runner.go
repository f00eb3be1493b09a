package engine

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// maxOutput caps how much of the engine's own console output is kept for
// error messages.
const maxOutput = 4096

// AnsibleRunner runs requests through the ansible-runner command line.
type AnsibleRunner struct {
	binary  string
	identFn func() string
	logger  logr.Logger
}

// RunnerOption configures an AnsibleRunner.
type RunnerOption func(*AnsibleRunner)

// WithBinary sets the ansible-runner executable (name or path).
func WithBinary(path string) RunnerOption {
	return func(r *AnsibleRunner) {
		if path != "" {
			r.binary = path
		}
	}
}

// WithIdentFunc overrides how run idents are generated.
func WithIdentFunc(fn func() string) RunnerOption {
	return func(r *AnsibleRunner) {
		if fn != nil {
			r.identFn = fn
		}
	}
}

// WithLogger sets the logger used for invocation lines.
func WithLogger(l logr.Logger) RunnerOption {
	return func(r *AnsibleRunner) {
		r.logger = l
	}
}

// NewAnsibleRunner creates an AnsibleRunner with the given options.
func NewAnsibleRunner(opts ...RunnerOption) *AnsibleRunner {
	r := &AnsibleRunner{
		binary:  "ansible-runner",
		identFn: func() string { return uuid.NewString() },
		logger:  logr.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Args returns the command line arguments for req under the given ident.
func (r *AnsibleRunner) Args(req Request, ident string) []string {
	args := []string{"run", req.PrivateDataDir, "--ident", ident, "--inventory", req.InventoryPath}
	if req.Playbook != "" {
		args = append(args, "-p", req.Playbook)
		if req.Limit != "" {
			args = append(args, "--limit", req.Limit)
		}
	} else {
		args = append(args, "-m", req.Module)
		if req.ModuleArgs != "" {
			args = append(args, "-a", req.ModuleArgs)
		}
		args = append(args, "--hosts", req.HostPattern)
	}
	if req.Quiet {
		args = append(args, "-q")
	}
	return args
}

// Run invokes ansible-runner and loads the run's artifacts. The engine's
// exit code is not an error on its own: failed hosts make it non-zero while
// still leaving a complete artifact directory.
func (r *AnsibleRunner) Run(ctx context.Context, req Request) (*RunHandle, error) {
	if err := req.Validate(); err != nil {
		return nil, &InvocationError{Stage: "validate", Err: err}
	}

	ident := r.identFn()
	args := r.Args(req, ident)
	r.logger.V(1).Info("invoking engine", "binary", r.binary, "ident", ident, "kind", req.Kind(), "args", args)

	var out tailBuffer
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, &InvocationError{Stage: "start", Ident: ident, Output: out.String(), Err: ctx.Err()}
	}
	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		return nil, &InvocationError{Stage: "start", Ident: ident, Output: out.String(), Err: runErr}
	}

	handle, err := LoadArtifacts(ArtifactDir(req.PrivateDataDir, ident))
	if err != nil {
		return nil, &InvocationError{Stage: "artifacts", Ident: ident, Output: out.String(), Err: err}
	}
	handle.Ident = ident
	if exitErr != nil && handle.RC == 0 {
		handle.RC = exitErr.ExitCode()
	}

	r.logger.V(1).Info("engine finished", "ident", ident, "status", handle.Status,
		"events", len(handle.Events), "duration", time.Since(start).Round(time.Millisecond).String())
	return handle, nil
}

// tailBuffer keeps the last maxOutput bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - maxOutput; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(t.buf.String())
}
