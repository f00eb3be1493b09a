package inventory

import "fmt"

// Play is one entry of a playbook document.
type Play struct {
	Name        string           `yaml:"name"`
	Hosts       string           `yaml:"hosts"`
	GatherFacts bool             `yaml:"gather_facts"`
	Tasks       []map[string]any `yaml:"tasks"`
}

// FactsPlaybook returns the fact-gathering playbook: one play over all hosts
// with fact gathering on and a single setup task.
func FactsPlaybook() []Play {
	return []Play{{
		Name:        "Gather system information",
		Hosts:       "all",
		GatherFacts: true,
		Tasks: []map[string]any{
			{"name": "Collect facts", "setup": nil},
		},
	}}
}

// MarshalPlaybook renders plays as YAML.
func MarshalPlaybook(plays []Play) ([]byte, error) {
	return marshalYAML(plays)
}

// WritePlaybook writes plays atomically to path.
func WritePlaybook(path string, plays []Play) error {
	data, err := MarshalPlaybook(plays)
	if err != nil {
		return fmt.Errorf("marshal playbook: %w", err)
	}
	return WriteFile(path, data)
}
