package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// maxInterfaces caps how many interfaces a summary lists.
const maxInterfaces = 5

// FactSummary is the flattened subset of gathered facts shown to users.
// A nil field means the engine did not report it.
type FactSummary struct {
	Distribution        *string     `json:"distribution,omitempty"`
	DistributionVersion *string     `json:"distribution_version,omitempty"`
	Kernel              *string     `json:"kernel,omitempty"`
	Architecture        *string     `json:"architecture,omitempty"`
	ProcessorCores      *int64      `json:"processor_cores,omitempty"`
	ProcessorModel      *string     `json:"processor_model,omitempty"`
	MemTotalMB          *int64      `json:"memtotal_mb,omitempty"`
	MemFreeMB           *int64      `json:"memfree_mb,omitempty"`
	Hostname            *string     `json:"hostname,omitempty"`
	DefaultIPv4         *string     `json:"default_ipv4,omitempty"`
	UptimeSeconds       *int64      `json:"uptime_seconds,omitempty"`
	Interfaces          []Interface `json:"interfaces,omitempty"`
}

// Interface is a network interface with an IPv4 address.
type Interface struct {
	Name string `json:"name"`
	IPv4 string `json:"ipv4"`
}

// Summarize flattens an ansible_facts mapping.
func Summarize(facts map[string]any) *FactSummary {
	s := &FactSummary{
		Distribution:        factString(facts, "ansible_distribution"),
		DistributionVersion: factString(facts, "ansible_distribution_version"),
		Kernel:              factString(facts, "ansible_kernel"),
		Architecture:        factString(facts, "ansible_architecture"),
		ProcessorCores:      factInt(facts, "ansible_processor_cores"),
		ProcessorModel:      processorModel(facts),
		MemTotalMB:          factInt(facts, "ansible_memtotal_mb"),
		MemFreeMB:           factInt(facts, "ansible_memfree_mb"),
		Hostname:            factString(facts, "ansible_hostname"),
		UptimeSeconds:       factInt(facts, "ansible_uptime_seconds"),
	}
	if def, ok := facts["ansible_default_ipv4"].(map[string]any); ok {
		s.DefaultIPv4 = factString(def, "address")
	}
	s.Interfaces = interfaces(facts)
	return s
}

// processorModel returns the last entry of ansible_processor, which holds
// the model name after the index and vendor entries.
func processorModel(facts map[string]any) *string {
	list, ok := facts["ansible_processor"].([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	if s, ok := list[len(list)-1].(string); ok && s != "" {
		return &s
	}
	return nil
}

func interfaces(facts map[string]any) []Interface {
	names, ok := facts["ansible_interfaces"].([]any)
	if !ok {
		return nil
	}
	var out []Interface
	for i, n := range names {
		if i >= maxInterfaces {
			break
		}
		name, ok := n.(string)
		if !ok {
			continue
		}
		data, ok := facts["ansible_"+name].(map[string]any)
		if !ok {
			continue
		}
		ipv4, ok := data["ipv4"].(map[string]any)
		if !ok {
			continue
		}
		if addr := factString(ipv4, "address"); addr != nil {
			out = append(out, Interface{Name: name, IPv4: *addr})
		}
	}
	return out
}

func factString(m map[string]any, key string) *string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}
	return &s
}

func factInt(m map[string]any, key string) *int64 {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	var n int64
	switch t := v.(type) {
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil {
				return nil
			}
			i = int64(f)
		}
		n = i
	case float64:
		n = int64(t)
	case int:
		n = int64(t)
	case int64:
		n = t
	case string:
		i, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return nil
		}
		n = i
	default:
		return nil
	}
	return &n
}
