// Package inventory turns the configured server set into the inventory
// document the execution engine reads.
package inventory

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"

	"github.com/agent462/corral/internal/config"
)

// Options controls how servers are rendered into the document.
type Options struct {
	Connection        string
	SSHCommonArgs     string
	PythonInterpreter string

	// IncludeIncomplete writes servers that lack a host, user or credential
	// instead of skipping them.
	IncludeIncomplete bool

	Logger logr.Logger
}

// DefaultOptions returns the connection defaults every inventory carries.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig().Inventory)
}

// OptionsFromConfig builds Options from the inventory section of the config.
func OptionsFromConfig(c config.Inventory) Options {
	return Options{
		Connection:        c.Connection,
		SSHCommonArgs:     c.SSHCommonArgs,
		PythonInterpreter: c.PythonInterpreter,
		IncludeIncomplete: c.IncludeIncomplete,
		Logger:            logr.Discard(),
	}
}

// Host is one entry under all.hosts.
type Host struct {
	AnsibleHost              string `yaml:"ansible_host"`
	AnsibleUser              string `yaml:"ansible_user"`
	AnsiblePassword          string `yaml:"ansible_password,omitempty"`
	AnsiblePort              int    `yaml:"ansible_port,omitempty"`
	AnsibleSSHPrivateKeyFile string `yaml:"ansible_ssh_private_key_file,omitempty"`
}

// Vars are the group variables applied to every host.
type Vars struct {
	Connection        string `yaml:"ansible_connection,omitempty"`
	SSHCommonArgs     string `yaml:"ansible_ssh_common_args,omitempty"`
	PythonInterpreter string `yaml:"ansible_python_interpreter,omitempty"`
}

// Group is the single "all" group.
type Group struct {
	Hosts map[string]Host `yaml:"hosts"`
	Vars  Vars            `yaml:"vars"`
}

// Document is the inventory file layout.
type Document struct {
	All Group `yaml:"all"`
}

// Skipped records a server left out of the inventory.
type Skipped struct {
	Name   string
	Reason string
}

// Inventory is a built document plus the key mapping used to produce it.
// It is disposable: callers rebuild it rather than patching it.
type Inventory struct {
	Document Document
	Keys     *Keys
	Skipped  []Skipped
}

// Keys is the bidirectional mapping between display names and inventory keys.
type Keys struct {
	byName map[string]string
	byKey  map[string]string
	keys   []string // sorted
}

func newKeys() *Keys {
	return &Keys{
		byName: make(map[string]string),
		byKey:  make(map[string]string),
	}
}

func (k *Keys) add(name, key string) {
	k.byName[name] = key
	k.byKey[key] = name
	k.keys = append(k.keys, key)
}

// Key returns the inventory key for a display name.
func (k *Keys) Key(name string) (string, bool) {
	key, ok := k.byName[name]
	return key, ok
}

// Name returns the display name for an inventory key.
func (k *Keys) Name(key string) (string, bool) {
	name, ok := k.byKey[key]
	return name, ok
}

// Has reports whether key is present in the inventory.
func (k *Keys) Has(key string) bool {
	_, ok := k.byKey[key]
	return ok
}

// Keys returns all inventory keys in sorted order.
func (k *Keys) Keys() []string {
	out := make([]string, len(k.keys))
	copy(out, k.keys)
	return out
}

// Len returns the number of hosts.
func (k *Keys) Len() int {
	return len(k.keys)
}

// DisplayName returns the display name for key, falling back to key itself.
func (k *Keys) DisplayName(key string) string {
	if name, ok := k.byKey[key]; ok {
		return name
	}
	return key
}

// Sanitize turns a display name into an inventory key by replacing every
// whitespace rune with an underscore. Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, name)
}

// Build renders servers into an inventory document.
//
// Servers missing a host, user or credential are skipped and reported unless
// IncludeIncomplete is set. Two names that sanitize to the same key, or an
// empty result, yield a *ConfigError.
func Build(servers map[string]config.ServerConfig, opts Options) (*Inventory, error) {
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	inv := &Inventory{
		Document: Document{All: Group{
			Hosts: make(map[string]Host, len(servers)),
			Vars: Vars{
				Connection:        opts.Connection,
				SSHCommonArgs:     opts.SSHCommonArgs,
				PythonInterpreter: opts.PythonInterpreter,
			},
		}},
		Keys: newKeys(),
	}

	for _, name := range names {
		s := servers[name]
		if missing := s.Missing(); len(missing) > 0 && !opts.IncludeIncomplete {
			reason := "missing " + strings.Join(missing, ", ")
			inv.Skipped = append(inv.Skipped, Skipped{Name: name, Reason: reason})
			opts.Logger.Info("skipping server", "server", name, "warning", reason)
			continue
		}

		key := Sanitize(name)
		if other, dup := inv.Keys.Name(key); dup {
			return nil, &ConfigError{
				Detail: fmt.Sprintf("%q and %q both map to %q", other, name, key),
				Err:    ErrKeyCollision,
			}
		}
		inv.Keys.add(name, key)
		inv.Document.All.Hosts[key] = Host{
			AnsibleHost:              s.Host,
			AnsibleUser:              s.User,
			AnsiblePassword:          s.Password,
			AnsiblePort:              s.Port,
			AnsibleSSHPrivateKeyFile: s.IdentityFile,
		}
	}
	sort.Strings(inv.Keys.keys)

	if inv.Keys.Len() == 0 {
		detail := fmt.Sprintf("%d configured, %d skipped", len(servers), len(inv.Skipped))
		return nil, &ConfigError{Detail: detail, Err: ErrNoServers}
	}
	return inv, nil
}

// Marshal renders the document as YAML. Map keys are emitted in sorted order,
// so identical input always yields identical bytes.
func (inv *Inventory) Marshal() ([]byte, error) {
	return marshalYAML(inv.Document)
}

// Write marshals the document and writes it atomically to path.
func (inv *Inventory) Write(path string) error {
	data, err := inv.Marshal()
	if err != nil {
		return fmt.Errorf("marshal inventory: %w", err)
	}
	return WriteFile(path, data)
}

// Pattern validates a host selector against the inventory and returns the
// engine host pattern. The selector is "all" or a non-empty comma-separated
// list of keys; an empty selector is an error, never an implicit "all".
func (inv *Inventory) Pattern(selector string) (string, error) {
	selector = strings.TrimSpace(selector)
	if selector == "all" {
		return "all", nil
	}
	if selector == "" {
		return "", &ConfigError{Detail: "empty selector", Err: ErrUnknownHost}
	}
	parts := strings.Split(selector, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !inv.Keys.Has(p) {
			return "", &ConfigError{Detail: fmt.Sprintf("%q", p), Err: ErrUnknownHost}
		}
		keys = append(keys, p)
	}
	if len(keys) == 0 {
		return "", &ConfigError{Detail: fmt.Sprintf("empty selector %q", selector), Err: ErrUnknownHost}
	}
	return strings.Join(keys, ","), nil
}

func marshalYAML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
