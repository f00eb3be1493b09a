package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
)

// fakeRunnerScript mimics ansible-runner: it records its arguments and
// writes a status file plus job events into the artifact directory.
const fakeRunnerScript = `#!/bin/sh
pdd="$2"
ident="$4"
printf '%s\n' "$@" > "$pdd/args.txt"
dir="$pdd/artifacts/$ident"
mkdir -p "$dir/job_events"
cat > "$dir/job_events/2-b.json" <<'JSON'
{"uuid": "b", "counter": 2, "event": "runner_on_failed", "event_data": {"host": "B", "res": {"msg": "nope"}}}
JSON
cat > "$dir/job_events/1-a.json" <<'JSON'
{"uuid": "a", "counter": 1, "event": "runner_on_ok", "event_data": {"host": "A", "res": {"stdout": "hi"}}}
JSON
cat > "$dir/job_events/10-stats.json" <<'JSON'
{"uuid": "c", "counter": 10, "event": "playbook_on_stats", "event_data": {}}
JSON
echo failed > "$dir/status"
echo 2 > "$dir/rc"
exit 2
`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ansible-runner")
	if err := os.WriteFile(path, []byte(body), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func fixedIdent() string { return "run-1" }

func TestArgsAdhoc(t *testing.T) {
	r := NewAnsibleRunner()
	got := r.Args(Request{
		PrivateDataDir: "/data",
		InventoryPath:  "/data/inv/hosts.yml",
		HostPattern:    "Server_A,Server_B",
		Module:         "shell",
		ModuleArgs:     "df -h | grep '/dev'",
		Quiet:          true,
	}, "id-1")
	want := []string{
		"run", "/data", "--ident", "id-1", "--inventory", "/data/inv/hosts.yml",
		"-m", "shell", "-a", "df -h | grep '/dev'", "--hosts", "Server_A,Server_B", "-q",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Args() =\n%q\nwant\n%q", got, want)
	}
}

func TestArgsAdhocNoModuleArgs(t *testing.T) {
	r := NewAnsibleRunner()
	got := r.Args(Request{PrivateDataDir: "/d", InventoryPath: "/i", HostPattern: "all", Module: "ping"}, "x")
	for _, a := range got {
		if a == "-a" || a == "-q" {
			t.Errorf("unexpected flag %q in %q", a, got)
		}
	}
}

func TestArgsPlaybook(t *testing.T) {
	r := NewAnsibleRunner()
	got := r.Args(Request{
		PrivateDataDir: "/data",
		InventoryPath:  "/data/hosts.yml",
		Playbook:       "/data/ansible_playbooks/system_info.yml",
		Limit:          "Server_A",
	}, "id-2")
	want := []string{
		"run", "/data", "--ident", "id-2", "--inventory", "/data/hosts.yml",
		"-p", "/data/ansible_playbooks/system_info.yml", "--limit", "Server_A",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Args() =\n%q\nwant\n%q", got, want)
	}
}

func TestRequestValidate(t *testing.T) {
	base := Request{PrivateDataDir: "/d", InventoryPath: "/i"}
	tests := []struct {
		name    string
		mutate  func(*Request)
		wantErr bool
	}{
		{"adhoc", func(r *Request) { r.Module = "ping"; r.HostPattern = "all" }, false},
		{"playbook", func(r *Request) { r.Playbook = "p.yml" }, false},
		{"both", func(r *Request) { r.Module = "ping"; r.Playbook = "p.yml"; r.HostPattern = "all" }, true},
		{"neither", func(r *Request) {}, true},
		{"adhoc without hosts", func(r *Request) { r.Module = "ping" }, true},
		{"no inventory", func(r *Request) { r.Module = "ping"; r.HostPattern = "all"; r.InventoryPath = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			if err := req.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunWithFakeRunner(t *testing.T) {
	bin := writeScript(t, fakeRunnerScript)
	pdd := t.TempDir()
	r := NewAnsibleRunner(WithBinary(bin), WithIdentFunc(fixedIdent))

	h, err := r.Run(context.Background(), Request{
		PrivateDataDir: pdd,
		InventoryPath:  filepath.Join(pdd, "hosts.yml"),
		HostPattern:    "all",
		Module:         "shell",
		ModuleArgs:     "uptime",
		Quiet:          true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.Ident != "run-1" {
		t.Errorf("ident = %q, want run-1", h.Ident)
	}
	if h.Status != StatusFailed || h.Successful() {
		t.Errorf("status = %q, want failed", h.Status)
	}
	if h.RC != 2 {
		t.Errorf("rc = %d, want 2", h.RC)
	}
	if len(h.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(h.Events))
	}
	var counters []int
	for _, ev := range h.Events {
		counters = append(counters, ev.EventMeta().Counter)
	}
	if !reflect.DeepEqual(counters, []int{1, 2, 10}) {
		t.Errorf("event order = %v, want [1 2 10]", counters)
	}
	if _, ok := h.Events[0].(*OKEvent); !ok {
		t.Errorf("event 0 is %T, want *OKEvent", h.Events[0])
	}
	if _, ok := h.Events[1].(*FailedEvent); !ok {
		t.Errorf("event 1 is %T, want *FailedEvent", h.Events[1])
	}

	args, err := os.ReadFile(filepath.Join(pdd, "args.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(args), "--hosts\nall\n") {
		t.Errorf("recorded args missing host pattern:\n%s", args)
	}
}

func TestRunMissingBinary(t *testing.T) {
	r := NewAnsibleRunner(WithBinary(filepath.Join(t.TempDir(), "does-not-exist")))
	_, err := r.Run(context.Background(), Request{
		PrivateDataDir: t.TempDir(),
		InventoryPath:  "/i",
		HostPattern:    "all",
		Module:         "ping",
	})
	var invErr *InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected *InvocationError, got %v", err)
	}
	if invErr.Stage != "start" {
		t.Errorf("stage = %q, want start", invErr.Stage)
	}
}

func TestRunNoStatus(t *testing.T) {
	bin := writeScript(t, "#!/bin/sh\necho 'ERROR! inventory broken'\nexit 1\n")
	r := NewAnsibleRunner(WithBinary(bin), WithIdentFunc(fixedIdent))
	_, err := r.Run(context.Background(), Request{
		PrivateDataDir: t.TempDir(),
		InventoryPath:  "/i",
		HostPattern:    "all",
		Module:         "ping",
	})
	var invErr *InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected *InvocationError, got %v", err)
	}
	if !errors.Is(err, ErrNoStatus) {
		t.Errorf("expected ErrNoStatus, got %v", err)
	}
	if !strings.Contains(invErr.Output, "inventory broken") {
		t.Errorf("output = %q, want engine output", invErr.Output)
	}
}

func TestRunInvalidRequest(t *testing.T) {
	r := NewAnsibleRunner()
	_, err := r.Run(context.Background(), Request{})
	var invErr *InvocationError
	if !errors.As(err, &invErr) || invErr.Stage != "validate" {
		t.Fatalf("expected validate InvocationError, got %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	bin := writeScript(t, "#!/bin/sh\nsleep 5\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewAnsibleRunner(WithBinary(bin))
	_, err := r.Run(ctx, Request{PrivateDataDir: t.TempDir(), InventoryPath: "/i", HostPattern: "all", Module: "ping"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTailBuffer(t *testing.T) {
	var tb tailBuffer
	tb.Write([]byte(strings.Repeat("a", maxOutput)))
	tb.Write([]byte("end"))
	s := tb.String()
	if len(s) != maxOutput {
		t.Errorf("len = %d, want %d", len(s), maxOutput)
	}
	if !strings.HasSuffix(s, "end") {
		t.Error("tail should keep the most recent bytes")
	}
}
