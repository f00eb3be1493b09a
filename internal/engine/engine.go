// Package engine is the boundary to the external automation engine. It
// describes a run request, invokes the engine, and decodes the engine's
// artifacts into typed events.
package engine

import (
	"context"
	"errors"
	"fmt"
)

// Engine executes one request and blocks until the run has finished.
// Per-host failures are reported as events in the handle; an error means
// the run itself could not be performed.
type Engine interface {
	Run(ctx context.Context, req Request) (*RunHandle, error)
}

// Request is a single engine invocation. Exactly one of Module or Playbook
// is set.
type Request struct {
	PrivateDataDir string
	InventoryPath  string

	// Ad-hoc
	HostPattern string
	Module      string
	ModuleArgs  string // passed through verbatim

	// Playbook
	Playbook string
	Limit    string

	Quiet bool
}

// Run kinds, as reported by Request.Kind.
const (
	KindAdhoc    = "adhoc"
	KindPlaybook = "playbook"
)

// Kind returns "adhoc" or "playbook".
func (r Request) Kind() string {
	if r.Playbook != "" {
		return KindPlaybook
	}
	return KindAdhoc
}

// Validate checks that the request names exactly one action.
func (r Request) Validate() error {
	switch {
	case r.PrivateDataDir == "":
		return errors.New("private data dir is required")
	case r.InventoryPath == "":
		return errors.New("inventory path is required")
	case r.Module != "" && r.Playbook != "":
		return errors.New("request sets both module and playbook")
	case r.Module == "" && r.Playbook == "":
		return errors.New("request sets neither module nor playbook")
	case r.Module != "" && r.HostPattern == "":
		return errors.New("ad-hoc request requires a host pattern")
	}
	return nil
}

// Status is the final state of a run.
type Status string

const (
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
)

// RunHandle is the complete outcome of one run. Events are ordered by the
// engine's event counter.
type RunHandle struct {
	Ident  string
	Status Status
	RC     int
	Events []Event
}

// Successful reports whether the engine considered the run successful.
func (h *RunHandle) Successful() bool {
	return h.Status == StatusSuccessful
}

// InvocationError means the engine could not be started or left no usable
// artifacts behind.
type InvocationError struct {
	Stage  string // "validate", "start", "artifacts"
	Ident  string
	Output string // tail of the engine's own output, if any
	Err    error
}

func (e *InvocationError) Error() string {
	msg := fmt.Sprintf("engine %s failed", e.Stage)
	if e.Ident != "" {
		msg += " (run " + e.Ident + ")"
	}
	msg += ": " + e.Err.Error()
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
