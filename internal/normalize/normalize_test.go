package normalize

import (
	"testing"

	"github.com/agent462/corral/internal/engine"
)

func strPtr(s string) *string { return &s }

func okEvent(counter int, host string, p engine.Payload) *engine.OKEvent {
	return &engine.OKEvent{Meta: engine.Meta{Counter: counter, Host: host, Name: "runner_on_ok"}, Payload: p}
}

func failedEvent(counter int, host, msg string) *engine.FailedEvent {
	return &engine.FailedEvent{Meta: engine.Meta{Counter: counter, Host: host, Name: "runner_on_failed"}, Payload: engine.Payload{Msg: msg}}
}

func TestNormalizeEmpty(t *testing.T) {
	got := Normalize(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("Normalize(nil) = %#v, want empty non-nil slice", got)
	}
	got = Normalize([]engine.Event{})
	if got == nil || len(got) != 0 {
		t.Errorf("Normalize([]) = %#v, want empty non-nil slice", got)
	}
}

func TestNormalizePreservesOrder(t *testing.T) {
	events := []engine.Event{
		okEvent(1, "hostA", engine.Payload{Stdout: strPtr("a")}),
		&engine.OtherEvent{Meta: engine.Meta{Counter: 2, Name: "runner_on_start", Host: "hostB"}},
		failedEvent(3, "hostB", "unreachable"),
		okEvent(4, "hostC", engine.Payload{Stdout: strPtr("c")}),
	}

	got := Normalize(events)
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	want := []struct {
		host string
		ok   bool
	}{{"hostA", true}, {"hostB", false}, {"hostC", true}}
	for i, w := range want {
		if got[i].Host != w.host || got[i].OK != w.ok {
			t.Errorf("result[%d] = {%s %v}, want {%s %v}", i, got[i].Host, got[i].OK, w.host, w.ok)
		}
	}
}

func TestNormalizeFailedHasNoOutput(t *testing.T) {
	ev := &engine.FailedEvent{
		Meta:        engine.Meta{Host: "B"},
		Payload:     engine.Payload{Stdout: strPtr("partial"), Msg: "boom", Facts: map[string]any{"x": 1}},
		Unreachable: true,
	}
	got := Normalize([]engine.Event{ev})
	r := got[0]
	if r.OK || r.Stdout != nil || r.Facts != nil {
		t.Errorf("failed result = %+v, want ok=false without stdout or facts", r)
	}
	if r.Msg != "boom" || !r.Unreachable {
		t.Errorf("msg/unreachable not kept: %+v", r)
	}
}

func TestNormalizeAbsentVersusEmpty(t *testing.T) {
	events := []engine.Event{
		okEvent(1, "absent", engine.Payload{}),
		okEvent(2, "empty", engine.Payload{Stdout: strPtr(""), Stderr: strPtr("")}),
	}
	got := Normalize(events)
	if got[0].Stdout != nil || got[0].Stderr != nil || got[0].Facts != nil {
		t.Errorf("absent payload = %+v, want nil stdout/stderr/facts", got[0])
	}
	if got[1].Stdout == nil || *got[1].Stdout != "" {
		t.Errorf("empty stdout = %v, want pointer to empty string", got[1].Stdout)
	}
	if got[1].Stderr == nil {
		t.Error("empty stderr should be present")
	}
}

func TestNormalizeFactsRecord(t *testing.T) {
	ev := okEvent(1, "A", engine.Payload{
		Stdout: strPtr("ignored"),
		Facts:  map[string]any{"ansible_hostname": "web"},
	})
	r := Normalize([]engine.Event{ev})[0]
	if !r.HasFacts() {
		t.Fatal("expected facts record")
	}
	if r.Stdout != nil {
		t.Errorf("facts record should not carry stdout, got %q", *r.Stdout)
	}
	if r.Summary == nil || r.Summary.Hostname == nil || *r.Summary.Hostname != "web" {
		t.Errorf("summary = %+v", r.Summary)
	}
}

func TestAllIsRestartable(t *testing.T) {
	events := []engine.Event{
		okEvent(1, "a", engine.Payload{}),
		okEvent(2, "b", engine.Payload{}),
		okEvent(3, "c", engine.Payload{}),
	}
	seq := All(events)

	var first, second []string
	for r := range seq {
		first = append(first, r.Host)
	}
	for r := range seq {
		second = append(second, r.Host)
		if r.Host == "b" {
			break
		}
	}
	if len(first) != 3 {
		t.Errorf("first pass = %v", first)
	}
	if len(second) != 2 || second[0] != "a" {
		t.Errorf("second pass = %v, want [a b]", second)
	}
}

func TestCollapse(t *testing.T) {
	results := []Result{
		{Host: "a", OK: true, Msg: "first"},
		{Host: "b", OK: false},
		{Host: "a", OK: true, Msg: "second"},
	}
	got := Collapse(results)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Host != "a" || got[0].Msg != "second" {
		t.Errorf("got[0] = %+v, want last result for a", got[0])
	}
	if got[1].Host != "b" {
		t.Errorf("got[1] = %+v", got[1])
	}
}

func TestCounts(t *testing.T) {
	ok, failed := Counts([]Result{{OK: true}, {OK: false}, {OK: true}})
	if ok != 2 || failed != 1 {
		t.Errorf("Counts = %d, %d, want 2, 1", ok, failed)
	}
}
