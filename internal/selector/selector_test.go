package selector

import (
	"testing"

	"github.com/agent462/corral/internal/config"
	"github.com/agent462/corral/internal/grouper"
	"github.com/agent462/corral/internal/inventory"
	"github.com/agent462/corral/internal/normalize"
)

func TestParseInput(t *testing.T) {
	tests := []struct {
		input   string
		wantSel string
		wantCmd string
	}{
		{"uptime", "", "uptime"},
		{"@differs df -h /", "@differs", "df -h /"},
		{"@Server_A,@web* systemctl restart nginx", "@Server_A,@web*", "systemctl restart nginx"},
		{"@failed, @differs free -m", "@failed, @differs", "free -m"},
		{"@all", "@all", ""},
		{"  @ok  ls -la  ", "@ok", "ls -la"},
		{"@ok, echo trailing", "@ok", ", echo trailing"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			sel, cmd := ParseInput(tt.input)
			if sel != tt.wantSel {
				t.Errorf("sel = %q, want %q", sel, tt.wantSel)
			}
			if cmd != tt.wantCmd {
				t.Errorf("cmd = %q, want %q", cmd, tt.wantCmd)
			}
		})
	}
}

func stateFromNames(t *testing.T, names ...string) *State {
	t.Helper()
	servers := make(map[string]config.ServerConfig)
	for _, n := range names {
		servers[n] = config.ServerConfig{Name: n, Host: "h", User: "u", Password: "p"}
	}
	inv, err := inventory.Build(servers, inventory.DefaultOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return NewState(inv.Keys)
}

func TestResolve_EmptyAndAll(t *testing.T) {
	state := &State{AllHosts: []string{"a", "b", "c"}}
	for _, sel := range []string{"", "@all"} {
		hosts, err := Resolve(sel, state)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", sel, err)
		}
		assertHosts(t, hosts, []string{"a", "b", "c"})
	}
}

func TestResolve_KeyExact(t *testing.T) {
	state := stateFromNames(t, "Server A", "Server B")
	hosts, err := Resolve("@Server_A", state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertHosts(t, hosts, []string{"Server_A"})
}

func TestResolve_GlobMatchesDisplayName(t *testing.T) {
	state := stateFromNames(t, "Server A", "Server B", "db")
	hosts, err := Resolve("@Server ?", state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertHosts(t, hosts, []string{"Server_A", "Server_B"})
}

func TestResolve_GlobPattern(t *testing.T) {
	state := &State{AllHosts: []string{"pi-garage", "pi-livingroom", "web-01", "web-02"}}
	hosts, err := Resolve("@pi-*", state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertHosts(t, hosts, []string{"pi-garage", "pi-livingroom"})
}

func TestResolve_GlobBrackets(t *testing.T) {
	state := &State{AllHosts: []string{"web-01", "web-02", "web-03", "db-01"}}
	hosts, err := Resolve("@web-0[12]", state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertHosts(t, hosts, []string{"web-01", "web-02"})
}

func previousRun() *grouper.GroupedResults {
	same, other := "same", "other"
	return grouper.Group([]normalize.Result{
		{Host: "a", OK: true, Stdout: &same},
		{Host: "b", OK: true, Stdout: &same},
		{Host: "c", OK: true, Stdout: &other},
		{Host: "d", OK: false},
		{Host: "e", OK: false, Unreachable: true},
	})
}

func TestResolve_ResultSelectors(t *testing.T) {
	state := &State{AllHosts: []string{"a", "b", "c", "d", "e"}, Grouped: previousRun()}
	tests := []struct {
		sel  string
		want []string
	}{
		{"@ok", []string{"a", "b", "c"}},
		{"@differs", []string{"c"}},
		{"@failed", []string{"d", "e"}},
		{"@unreachable", []string{"e"}},
		{"@differs,@failed", []string{"c", "d", "e"}},
		{"@failed,@unreachable", []string{"d", "e"}},
	}
	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			hosts, err := Resolve(tt.sel, state)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertHosts(t, hosts, tt.want)
		})
	}
}

func TestResolve_NoPreviousResults(t *testing.T) {
	state := &State{AllHosts: []string{"a", "b"}}
	for _, sel := range []string{"@ok", "@differs", "@failed", "@unreachable"} {
		if _, err := Resolve(sel, state); err == nil {
			t.Errorf("%s: expected error for no previous results", sel)
		}
	}
}

func TestResolve_Errors(t *testing.T) {
	state := &State{AllHosts: []string{"a", "b"}}
	for _, sel := range []string{"@nonexistent", "nope", "@[bad"} {
		if _, err := Resolve(sel, state); err == nil {
			t.Errorf("Resolve(%q): expected error", sel)
		}
	}
}

func TestPattern(t *testing.T) {
	all := []string{"a", "b", "c"}
	tests := []struct {
		keys []string
		want string
	}{
		{[]string{"a", "b", "c"}, "all"},
		{[]string{"c", "a", "b"}, "all"},
		{[]string{"a", "c"}, "a,c"},
		{[]string{"b"}, "b"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := Pattern(tt.keys, all); got != tt.want {
			t.Errorf("Pattern(%v) = %q, want %q", tt.keys, got, tt.want)
		}
	}
}

func assertHosts(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d hosts %v, want %d hosts %v", len(got), got, len(want), want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("host[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
