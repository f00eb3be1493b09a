package normalize

import (
	"encoding/json"
	"testing"

	"github.com/agent462/corral/internal/engine"
)

func TestSummarizeMemTotalIsNumber(t *testing.T) {
	data := []byte(`{"counter": 1, "event": "runner_on_ok", "event_data": {"host": "A",
		"res": {"ansible_facts": {"ansible_memtotal_mb": 2048}}}}`)
	ev, err := engine.DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}

	r := Normalize([]engine.Event{ev})[0]
	if r.Summary == nil || r.Summary.MemTotalMB == nil {
		t.Fatalf("summary missing memtotal: %+v", r.Summary)
	}
	if *r.Summary.MemTotalMB != 2048 {
		t.Errorf("memtotal = %d, want 2048", *r.Summary.MemTotalMB)
	}
}

func TestSummarizeFull(t *testing.T) {
	facts := map[string]any{
		"ansible_distribution":         "Ubuntu",
		"ansible_distribution_version": "22.04",
		"ansible_kernel":               "5.15.0-91-generic",
		"ansible_architecture":         "x86_64",
		"ansible_processor_cores":      json.Number("4"),
		"ansible_processor":            []any{"0", "GenuineIntel", "Intel(R) Xeon(R) CPU"},
		"ansible_memtotal_mb":          json.Number("7961"),
		"ansible_memfree_mb":           json.Number("1024"),
		"ansible_hostname":             "web01",
		"ansible_default_ipv4":         map[string]any{"address": "10.0.0.5"},
		"ansible_uptime_seconds":       json.Number("172800"),
		"ansible_interfaces":           []any{"lo", "eth0", "docker0"},
		"ansible_lo":                   map[string]any{"ipv4": map[string]any{"address": "127.0.0.1"}},
		"ansible_eth0":                 map[string]any{"ipv4": map[string]any{"address": "10.0.0.5"}},
		"ansible_docker0":              map[string]any{"active": false},
	}
	s := Summarize(facts)

	checks := []struct {
		name string
		got  *string
		want string
	}{
		{"distribution", s.Distribution, "Ubuntu"},
		{"version", s.DistributionVersion, "22.04"},
		{"kernel", s.Kernel, "5.15.0-91-generic"},
		{"arch", s.Architecture, "x86_64"},
		{"model", s.ProcessorModel, "Intel(R) Xeon(R) CPU"},
		{"hostname", s.Hostname, "web01"},
		{"ipv4", s.DefaultIPv4, "10.0.0.5"},
	}
	for _, c := range checks {
		if c.got == nil || *c.got != c.want {
			t.Errorf("%s = %v, want %q", c.name, c.got, c.want)
		}
	}
	if s.ProcessorCores == nil || *s.ProcessorCores != 4 {
		t.Errorf("cores = %v", s.ProcessorCores)
	}
	if s.MemFreeMB == nil || *s.MemFreeMB != 1024 {
		t.Errorf("memfree = %v", s.MemFreeMB)
	}
	if s.UptimeSeconds == nil || *s.UptimeSeconds != 172800 {
		t.Errorf("uptime = %v", s.UptimeSeconds)
	}
	if len(s.Interfaces) != 2 || s.Interfaces[1].Name != "eth0" {
		t.Errorf("interfaces = %+v", s.Interfaces)
	}
}

func TestSummarizeAbsentFieldsAreNil(t *testing.T) {
	s := Summarize(map[string]any{})
	if s.Distribution != nil || s.MemTotalMB != nil || s.UptimeSeconds != nil || s.DefaultIPv4 != nil {
		t.Errorf("expected nil fields, got %+v", s)
	}
	if s.Interfaces != nil {
		t.Errorf("interfaces = %v, want nil", s.Interfaces)
	}
}

func TestSummarizeZeroIsNotAbsent(t *testing.T) {
	s := Summarize(map[string]any{"ansible_uptime_seconds": json.Number("0")})
	if s.UptimeSeconds == nil || *s.UptimeSeconds != 0 {
		t.Errorf("uptime = %v, want explicit 0", s.UptimeSeconds)
	}
}

func TestSummarizeInterfaceLimit(t *testing.T) {
	facts := map[string]any{}
	var names []any
	for _, n := range []string{"e0", "e1", "e2", "e3", "e4", "e5", "e6"} {
		names = append(names, n)
		facts["ansible_"+n] = map[string]any{"ipv4": map[string]any{"address": "10.0.0.1"}}
	}
	facts["ansible_interfaces"] = names
	if got := len(Summarize(facts).Interfaces); got != maxInterfaces {
		t.Errorf("interfaces = %d, want %d", got, maxInterfaces)
	}
}
