package grouper

import (
	"reflect"
	"testing"

	"github.com/agent462/corral/internal/normalize"
)

func out(host, stdout string) normalize.Result {
	return normalize.Result{Host: host, OK: true, Stdout: &stdout}
}

func TestGroupAllIdentical(t *testing.T) {
	results := []normalize.Result{
		out("host-a", "hello\n"),
		out("host-b", "hello\n"),
		out("host-c", "hello\n"),
	}

	gr := Group(results)

	if len(gr.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(gr.Groups))
	}
	if !gr.Groups[0].IsNorm {
		t.Error("single group should be marked as norm")
	}
	if len(gr.Groups[0].Hosts) != 3 {
		t.Errorf("expected 3 hosts in group, got %d", len(gr.Groups[0].Hosts))
	}
	if len(gr.Failed) != 0 {
		t.Errorf("expected 0 failed, got %d", len(gr.Failed))
	}
}

func TestGroupTwoGroups(t *testing.T) {
	results := []normalize.Result{
		out("host-c", "Debian 11\n"),
		out("host-a", "Debian 12\n"),
		out("host-b", "Debian 12\n"),
	}

	gr := Group(results)

	if len(gr.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(gr.Groups))
	}
	norm := gr.Groups[0]
	if !norm.IsNorm || *norm.Stdout != "Debian 12\n" {
		t.Errorf("norm group = %+v, want Debian 12 first", norm)
	}
	if !reflect.DeepEqual(norm.Hosts, []string{"host-a", "host-b"}) {
		t.Errorf("norm hosts = %v", norm.Hosts)
	}
	if gr.Groups[1].IsNorm {
		t.Error("outlier marked as norm")
	}
	if !reflect.DeepEqual(gr.DiffersHosts(), []string{"host-c"}) {
		t.Errorf("DiffersHosts() = %v", gr.DiffersHosts())
	}
}

func TestGroupTieKeepsFirstSeen(t *testing.T) {
	gr := Group([]normalize.Result{out("a", "x"), out("b", "y")})
	if *gr.Groups[0].Stdout != "x" {
		t.Errorf("norm = %q, want first seen group", *gr.Groups[0].Stdout)
	}
}

func TestGroupHostOrderFollowsResults(t *testing.T) {
	gr := Group([]normalize.Result{out("zeta", "same"), out("alpha", "same"), out("mid", "same")})
	want := []string{"zeta", "alpha", "mid"}
	if !reflect.DeepEqual(gr.Groups[0].Hosts, want) {
		t.Errorf("hosts = %v, want %v", gr.Groups[0].Hosts, want)
	}
}

func TestGroupMixedSuccessAndFailure(t *testing.T) {
	results := []normalize.Result{
		out("host-a", "ok"),
		{Host: "host-b", OK: false, Msg: "boom"},
		{Host: "host-c", OK: false, Unreachable: true},
	}
	gr := Group(results)

	if len(gr.Groups) != 1 || len(gr.Failed) != 2 {
		t.Fatalf("groups = %d failed = %d", len(gr.Groups), len(gr.Failed))
	}
	if !reflect.DeepEqual(gr.FailedHosts(), []string{"host-b", "host-c"}) {
		t.Errorf("FailedHosts() = %v", gr.FailedHosts())
	}
	if !reflect.DeepEqual(gr.UnreachableHosts(), []string{"host-c"}) {
		t.Errorf("UnreachableHosts() = %v", gr.UnreachableHosts())
	}
	if !reflect.DeepEqual(gr.OKHosts(), []string{"host-a"}) {
		t.Errorf("OKHosts() = %v", gr.OKHosts())
	}
}

func TestGroupEmptyResults(t *testing.T) {
	gr := Group(nil)
	if len(gr.Groups) != 0 || len(gr.Failed) != 0 || len(gr.Facts) != 0 {
		t.Errorf("expected empty result, got %+v", gr)
	}
}

func TestGroupAbsentAndEmptyDiffer(t *testing.T) {
	results := []normalize.Result{
		{Host: "absent", OK: true},
		out("empty", ""),
	}
	gr := Group(results)
	if len(gr.Groups) != 2 {
		t.Fatalf("expected absent and empty output in separate groups, got %d", len(gr.Groups))
	}
}

func TestGroupDifferentRC(t *testing.T) {
	zero, three := 0, 3
	a := out("a", "x")
	a.RC = &zero
	b := out("b", "x")
	b.RC = &three
	if gr := Group([]normalize.Result{a, b}); len(gr.Groups) != 2 {
		t.Errorf("expected rc to split groups, got %d", len(gr.Groups))
	}
}

func TestGroupDifferentStderr(t *testing.T) {
	errA, errB := "warn a", "warn b"
	a := out("a", "x")
	a.Stderr = &errA
	b := out("b", "x")
	b.Stderr = &errB
	if gr := Group([]normalize.Result{a, b}); len(gr.Groups) != 2 {
		t.Errorf("expected stderr to split groups, got %d", len(gr.Groups))
	}
}

func TestGroupFactsPassThrough(t *testing.T) {
	results := []normalize.Result{
		{Host: "a", OK: true, Facts: map[string]any{"ansible_hostname": "a"}},
		out("b", "x"),
	}
	gr := Group(results)
	if len(gr.Facts) != 1 || gr.Facts[0].Host != "a" {
		t.Errorf("facts = %+v", gr.Facts)
	}
	if !reflect.DeepEqual(gr.OKHosts(), []string{"b", "a"}) {
		t.Errorf("OKHosts() = %v", gr.OKHosts())
	}
}
