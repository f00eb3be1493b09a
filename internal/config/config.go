package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level corral configuration.
type Config struct {
	Servers   map[string]Server `yaml:"servers,omitempty"`
	Env       EnvSource         `yaml:"env"`
	Engine    Engine            `yaml:"engine"`
	Inventory Inventory         `yaml:"inventory"`
	Defaults  Defaults          `yaml:"defaults"`
	Recipes   map[string]Recipe `yaml:"recipes,omitempty"`
	Parsers   map[string]Parser `yaml:"parsers,omitempty"`
}

// Server is a statically configured host entry.
type Server struct {
	Host         string `yaml:"host"`
	User         string `yaml:"user,omitempty"`
	Password     string `yaml:"password,omitempty"`
	Port         int    `yaml:"port,omitempty"`
	IdentityFile string `yaml:"identity_file,omitempty"`
}

// EnvSource controls discovery of servers from environment variables.
type EnvSource struct {
	Enabled     bool   `yaml:"enabled"`
	Prefix      string `yaml:"prefix"`       // e.g. "SERVER_" for SERVER_A_HOST
	DotEnv      string `yaml:"dotenv"`       // optional .env file, missing is fine
	DefaultUser string `yaml:"default_user"` // used when <PREFIX><NAME>_USER is unset
}

// Engine holds the settings handed to the execution engine.
type Engine struct {
	Binary           string `yaml:"binary"`
	PrivateDataDir   string `yaml:"private_data_dir"`
	InventoryPath    string `yaml:"inventory_path"` // relative to private_data_dir
	PlaybookDir      string `yaml:"playbook_dir"`   // relative to private_data_dir
	IsolateInventory bool   `yaml:"isolate_inventory"`
	Quiet            bool   `yaml:"quiet"`
}

// Inventory holds connection defaults written into every inventory document.
type Inventory struct {
	Connection        string `yaml:"connection"`
	SSHCommonArgs     string `yaml:"ssh_common_args"`
	PythonInterpreter string `yaml:"python_interpreter"`
	IncludeIncomplete bool   `yaml:"include_incomplete"`
	UseSSHConfig      bool   `yaml:"use_ssh_config"`
}

// Recipe defines a named multi-step command sequence.
type Recipe struct {
	Description string   `yaml:"description,omitempty"`
	Steps       []string `yaml:"steps"`
}

// Parser defines named field-extraction rules for structured output parsing.
type Parser struct {
	Description string        `yaml:"description,omitempty"`
	Extract     []ExtractRule `yaml:"extract"`
}

// ExtractRule defines how to extract a single field from command output.
type ExtractRule struct {
	Field   string `yaml:"field"`
	Pattern string `yaml:"pattern,omitempty"` // regex with capture group
	Column  int    `yaml:"column,omitempty"`  // extract column by index (1-based)
}

// Defaults holds presentation and refresh defaults.
type Defaults struct {
	Output          string   `yaml:"output"` // "grouped", "host" or "json"
	RefreshInterval Duration `yaml:"refresh_interval"`
	LogLines        int      `yaml:"log_lines"`
}

// Duration wraps time.Duration to support YAML unmarshaling from strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dur
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Servers: make(map[string]Server),
		Env: EnvSource{
			Enabled:     true,
			Prefix:      "SERVER_",
			DotEnv:      ".env",
			DefaultUser: "root",
		},
		Engine: Engine{
			Binary:         "ansible-runner",
			PrivateDataDir: ".",
			InventoryPath:  filepath.Join("ansible_inventory", "hosts.yml"),
			PlaybookDir:    "ansible_playbooks",
			Quiet:          true,
		},
		Inventory: Inventory{
			Connection:        "ssh",
			SSHCommonArgs:     "-o StrictHostKeyChecking=no",
			PythonInterpreter: "/usr/bin/python3",
			UseSSHConfig:      true,
		},
		Defaults: Defaults{
			Output:          "grouped",
			RefreshInterval: Duration{30 * time.Second},
			LogLines:        20,
		},
	}
}

// DefaultConfigPath returns the default config file path.
// Respects $XDG_CONFIG_HOME if set, otherwise falls back to ~/.config.
func DefaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir != "" {
		return filepath.Join(configDir, "corral", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "corral", "config.yaml")
}

// Load reads and parses a config YAML file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadDefault loads the config from the default path (~/.config/corral/config.yaml).
// If the file does not exist, it returns the default config.
func LoadDefault() (*Config, error) {
	path := DefaultConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Save writes the config to the given file path as YAML.
// It creates parent directories if they don't exist.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// The file may carry passwords.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks the config for logical errors.
func (c *Config) Validate() error {
	validOutputModes := map[string]bool{"grouped": true, "host": true, "json": true}
	if c.Defaults.Output != "" && !validOutputModes[c.Defaults.Output] {
		return fmt.Errorf("invalid output mode %q, must be one of: grouped, host, json", c.Defaults.Output)
	}
	if c.Defaults.RefreshInterval.Duration < 0 {
		return fmt.Errorf("refresh interval must be non-negative, got %s", c.Defaults.RefreshInterval)
	}
	if c.Defaults.LogLines < 0 {
		return fmt.Errorf("log_lines must be non-negative, got %d", c.Defaults.LogLines)
	}

	if c.Engine.Binary == "" {
		return fmt.Errorf("engine binary must not be empty")
	}
	if c.Engine.InventoryPath == "" {
		return fmt.Errorf("engine inventory_path must not be empty")
	}
	if c.Env.Enabled && c.Env.Prefix == "" {
		return fmt.Errorf("env prefix must not be empty when env discovery is enabled")
	}

	for name, srv := range c.Servers {
		if name == "" {
			return fmt.Errorf("server with empty name")
		}
		if srv.Port < 0 || srv.Port > 65535 {
			return fmt.Errorf("server %q port %d out of range", name, srv.Port)
		}
	}

	nameRe := regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	for name, recipe := range c.Recipes {
		if !nameRe.MatchString(name) {
			return fmt.Errorf("recipe name %q must match [a-zA-Z0-9_-]+", name)
		}
		if len(recipe.Steps) == 0 {
			return fmt.Errorf("recipe %q has no steps", name)
		}
	}

	for name, parser := range c.Parsers {
		if !nameRe.MatchString(name) {
			return fmt.Errorf("parser name %q must match [a-zA-Z0-9_-]+", name)
		}
		if len(parser.Extract) == 0 {
			return fmt.Errorf("parser %q has no extract rules", name)
		}
		for i, rule := range parser.Extract {
			if rule.Field == "" {
				return fmt.Errorf("parser %q rule %d has empty field name", name, i)
			}
			if rule.Pattern == "" && rule.Column == 0 {
				return fmt.Errorf("parser %q rule %d (%s) must have pattern or column", name, i, rule.Field)
			}
		}
	}

	return nil
}
