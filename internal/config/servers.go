package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/kevinburke/ssh_config"

	"github.com/agent462/corral/internal/pathutil"
)

// ServerConfig holds the connection details for one logical server.
type ServerConfig struct {
	Name         string // display name, unique within the fleet
	Host         string // address handed to the engine
	User         string
	Password     string
	Port         int    // 0 means the engine default
	IdentityFile string // optional private key, counts as a credential
}

// HasCredential reports whether the server carries a password or key file.
func (s ServerConfig) HasCredential() bool {
	return s.Password != "" || s.IdentityFile != ""
}

// Missing returns the names of the required fields that are empty.
func (s ServerConfig) Missing() []string {
	var missing []string
	if s.Host == "" {
		missing = append(missing, "host")
	}
	if s.User == "" {
		missing = append(missing, "user")
	}
	if !s.HasCredential() {
		missing = append(missing, "credential")
	}
	return missing
}

// Complete reports whether the server is eligible for an inventory.
func (s ServerConfig) Complete() bool {
	return len(s.Missing()) == 0
}

// SSHLookup resolves a key for a host from the user's SSH client config.
// It returns "" when no value is configured.
type SSHLookup func(host, key string) string

// Fleet is the current server set. It is built explicitly from a Config and
// refreshed only through Reload, which re-reads every source and swaps the
// set atomically. Readers always get a snapshot copy.
type Fleet struct {
	cfg       *Config
	environ   func() []string
	sshLookup SSHLookup

	mu      sync.RWMutex
	servers map[string]ServerConfig
}

// FleetOption configures a Fleet.
type FleetOption func(*Fleet)

// WithEnviron overrides the environment source (defaults to os.Environ).
func WithEnviron(fn func() []string) FleetOption {
	return func(f *Fleet) {
		if fn != nil {
			f.environ = fn
		}
	}
}

// WithSSHLookup overrides the SSH client config lookup.
func WithSSHLookup(fn SSHLookup) FleetOption {
	return func(f *Fleet) {
		f.sshLookup = fn
	}
}

// NewFleet creates a Fleet and performs the initial load.
func NewFleet(cfg *Config, opts ...FleetOption) (*Fleet, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	f := &Fleet{
		cfg:       cfg,
		environ:   os.Environ,
		sshLookup: sshConfigGet,
	}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Reload re-reads the static table, the .env file and the environment.
// On error the previous server set is kept.
func (f *Fleet) Reload() error {
	servers := make(map[string]ServerConfig)

	for name, s := range f.cfg.Servers {
		servers[name] = ServerConfig{
			Name:         name,
			Host:         s.Host,
			User:         s.User,
			Password:     s.Password,
			Port:         s.Port,
			IdentityFile: pathutil.ExpandHome(s.IdentityFile),
		}
	}

	if f.cfg.Env.Enabled {
		env, err := f.collectEnv()
		if err != nil {
			return err
		}
		// Environment entries win over the static table.
		for name, s := range FromEnv(env, f.cfg.Env.Prefix) {
			servers[name] = s
		}
	}

	for name, s := range servers {
		if f.cfg.Inventory.UseSSHConfig && f.sshLookup != nil {
			MergeSSHConfig(&s, f.sshLookup)
		}
		if s.User == "" {
			s.User = f.cfg.Env.DefaultUser
		}
		servers[name] = s
	}

	f.mu.Lock()
	f.servers = servers
	f.mu.Unlock()
	return nil
}

// collectEnv merges the .env file under the real environment.
// Variables already set in the process environment take precedence.
func (f *Fleet) collectEnv() (map[string]string, error) {
	env := make(map[string]string)

	if f.cfg.Env.DotEnv != "" {
		dot, err := ReadDotEnv(pathutil.ExpandHome(f.cfg.Env.DotEnv))
		if err != nil {
			return nil, err
		}
		for k, v := range dot {
			env[k] = v
		}
	}

	for _, kv := range f.environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[k] = v
	}
	return env, nil
}

// Servers returns a copy of the current server set keyed by display name.
func (f *Fleet) Servers() map[string]ServerConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]ServerConfig, len(f.servers))
	for k, v := range f.servers {
		out[k] = v
	}
	return out
}

// Names returns the sorted display names of the current server set.
func (f *Fleet) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.servers))
	for name := range f.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of configured servers.
func (f *Fleet) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.servers)
}

// ReadDotEnv reads a .env file. A missing file yields an empty map.
func ReadDotEnv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	return env, nil
}

// FromEnv discovers servers from <prefix><ID>_HOST variables. For each host
// variable the matching _USER, _PASSWORD, _PORT and _IDENTITY_FILE variables
// are read. The display name is the prefix as a word followed by the ID, so
// SERVER_A_HOST becomes "Server A".
func FromEnv(env map[string]string, prefix string) map[string]ServerConfig {
	servers := make(map[string]ServerConfig)
	for key := range env {
		if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, "_HOST") {
			continue
		}
		base := strings.TrimSuffix(key, "_HOST")
		id := strings.TrimPrefix(base, prefix)
		if id == "" {
			continue
		}

		name := envDisplayName(prefix, id)
		s := ServerConfig{
			Name:         name,
			Host:         env[key],
			User:         env[base+"_USER"],
			Password:     env[base+"_PASSWORD"],
			IdentityFile: pathutil.ExpandHome(env[base+"_IDENTITY_FILE"]),
		}
		if p, err := strconv.Atoi(env[base+"_PORT"]); err == nil && p > 0 && p <= 65535 {
			s.Port = p
		}
		servers[name] = s
	}
	return servers
}

// envDisplayName turns ("SERVER_", "A") into "Server A".
func envDisplayName(prefix, id string) string {
	word := strings.Trim(prefix, "_")
	if word == "" {
		return id
	}
	word = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	return word + " " + id
}

// MergeSSHConfig fills in User, Port and IdentityFile from the SSH client
// config when they are not already set. Lookups use the server's address.
func MergeSSHConfig(s *ServerConfig, lookup SSHLookup) {
	if s.Host == "" {
		return
	}

	if s.User == "" {
		if user := lookup(s.Host, "User"); user != "" {
			s.User = user
		}
	}

	if s.Port == 0 {
		if portStr := lookup(s.Host, "Port"); portStr != "" {
			if port, err := strconv.Atoi(portStr); err == nil && port > 0 && port != 22 {
				s.Port = port
			}
		}
	}

	if s.IdentityFile == "" {
		if identity := lookup(s.Host, "IdentityFile"); identity != "" {
			expanded := pathutil.ExpandHome(identity)
			if _, err := os.Stat(expanded); err == nil {
				s.IdentityFile = expanded
			}
		}
	}
}

// sshConfigGet looks up a key for a host in the user's SSH config.
func sshConfigGet(hostname, key string) string {
	val, err := ssh_config.GetStrict(hostname, key)
	if err != nil {
		return ""
	}
	return val
}
