package recipe

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/agent462/corral/internal/config"
	"github.com/agent462/corral/internal/engine"
	"github.com/agent462/corral/internal/executor"
)

type staticServers map[string]config.ServerConfig

func (s staticServers) Servers() map[string]config.ServerConfig { return s }

// scriptedEngine answers each ad-hoc request by calling respond once per
// targeted host.
type scriptedEngine struct {
	all     []string
	respond func(host, command string) engine.Event

	mu       sync.Mutex
	requests []engine.Request
}

func (e *scriptedEngine) Run(_ context.Context, req engine.Request) (*engine.RunHandle, error) {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	e.mu.Unlock()

	hosts := e.all
	if req.HostPattern != "all" {
		hosts = strings.Split(req.HostPattern, ",")
	}
	var events []engine.Event
	for _, h := range hosts {
		events = append(events, e.respond(h, req.ModuleArgs))
	}
	return &engine.RunHandle{Status: engine.StatusSuccessful, Events: events}, nil
}

func ok(host, stdout string) engine.Event {
	return &engine.OKEvent{Meta: engine.Meta{Host: host}, Payload: engine.Payload{Stdout: &stdout}}
}

func failed(host string) engine.Event {
	return &engine.FailedEvent{Meta: engine.Meta{Host: host}, Payload: engine.Payload{Msg: "non-zero return code"}}
}

func newRunner(t *testing.T, eng *scriptedEngine, names ...string) *Runner {
	t.Helper()
	servers := staticServers{}
	for _, n := range names {
		servers[n] = config.ServerConfig{Name: n, Host: n + ".lan", User: "root", Password: "pw"}
	}
	exec := executor.New(servers, eng, executor.WithPrivateDataDir(t.TempDir()))
	return New(exec)
}

func TestParseStep(t *testing.T) {
	tests := []struct {
		raw, sel, cmd string
	}{
		{"echo hello", "", "echo hello"},
		{"@web* systemctl restart", "@web*", "systemctl restart"},
		{"@ok,@differs uptime", "@ok,@differs", "uptime"},
	}
	for _, tt := range tests {
		step := ParseStep(tt.raw)
		if step.Selector != tt.sel || step.Command != tt.cmd {
			t.Errorf("ParseStep(%q) = %+v", tt.raw, step)
		}
	}
	if got := ParseSteps([]string{"a", "@ok b"}); len(got) != 2 || got[1].Selector != "@ok" {
		t.Errorf("ParseSteps = %+v", got)
	}
}

func TestRun_BasicExecution(t *testing.T) {
	eng := &scriptedEngine{
		all:     []string{"a", "b", "c"},
		respond: func(host, _ string) engine.Event { return ok(host, "ok from "+host) },
	}
	r := newRunner(t, eng, "a", "b", "c")

	results, err := r.Run(context.Background(), []Step{{Command: "echo hello"}, {Command: "uptime"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 step results, got %d", len(results))
	}
	for i, sr := range results {
		if len(sr.Results) != 3 {
			t.Errorf("step %d: expected 3 host results, got %d", i, len(sr.Results))
		}
		if sr.Run == nil || sr.Grouped == nil {
			t.Errorf("step %d: missing run or grouped results", i)
		}
	}
	if eng.requests[0].HostPattern != "all" {
		t.Errorf("first step pattern = %q, want all", eng.requests[0].HostPattern)
	}
	if eng.requests[1].ModuleArgs != "uptime" {
		t.Errorf("second step args = %q", eng.requests[1].ModuleArgs)
	}
}

func TestRun_SelectorPropagation(t *testing.T) {
	eng := &scriptedEngine{
		all: []string{"a", "b", "c"},
		respond: func(host, command string) engine.Event {
			if command == "systemctl restart nginx" && host == "b" {
				return failed(host)
			}
			return ok(host, "active")
		},
	}
	r := newRunner(t, eng, "a", "b", "c")

	steps := []Step{
		{Command: "systemctl restart nginx"},
		{Selector: "@ok", Command: "systemctl is-active nginx"},
		{Selector: "@failed", Command: "journalctl -u nginx -n 5"},
	}
	results, err := r.Run(context.Background(), steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := eng.requests[1].HostPattern; got != "a,c" {
		t.Errorf("@ok step pattern = %q, want a,c", got)
	}
	// Step 2 had no failures, so @failed in step 3 matches nothing.
	if !results[2].Skipped {
		t.Errorf("step 3 should be skipped, got %+v", results[2])
	}
	if len(eng.requests) != 2 {
		t.Errorf("engine calls = %d, want 2", len(eng.requests))
	}
}

func TestRun_DisplayNameGlob(t *testing.T) {
	eng := &scriptedEngine{
		all:     []string{"Server_A", "Server_B", "db"},
		respond: func(host, _ string) engine.Event { return ok(host, "x") },
	}
	r := newRunner(t, eng, "Server A", "Server B", "db")

	if _, err := r.Run(context.Background(), []Step{ParseStep("@Server* uptime")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := eng.requests[0].HostPattern; got != "Server_A,Server_B" {
		t.Errorf("pattern = %q, want Server_A,Server_B", got)
	}
}

func TestRun_SelectorError(t *testing.T) {
	eng := &scriptedEngine{all: []string{"a"}, respond: func(h, _ string) engine.Event { return ok(h, "") }}
	r := newRunner(t, eng, "a")

	results, err := r.Run(context.Background(), []Step{{Command: "uptime"}, {Selector: "@nomatch", Command: "ls"}})
	if err == nil {
		t.Fatal("expected error for non-matching selector")
	}
	if len(results) != 1 {
		t.Errorf("expected the first step's result to be kept, got %d", len(results))
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	eng := &scriptedEngine{all: []string{"a"}, respond: func(h, _ string) engine.Event { return ok(h, "") }}
	r := newRunner(t, eng, "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, []Step{{Command: "uptime"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(eng.requests) != 0 {
		t.Error("engine should not be called after cancellation")
	}
}

func TestRun_NoServers(t *testing.T) {
	eng := &scriptedEngine{}
	r := newRunner(t, eng)
	if _, err := r.Run(context.Background(), []Step{{Command: "uptime"}}); err == nil {
		t.Error("expected error with no servers")
	}
}
