package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agent462/corral/internal/config"
)

// BuiltinParsers returns the built-in parsers keyed by name.
func BuiltinParsers() map[string]*OutputParser {
	return map[string]*OutputParser{
		"disk":   BuiltinDisk(),
		"free":   BuiltinFree(),
		"uptime": BuiltinUptime(),
	}
}

// Lookup returns the parser called name. A parser defined in cfg overrides
// the built-in with the same name.
func Lookup(name string, cfg *config.Config) (*OutputParser, error) {
	if cfg != nil {
		if p, ok := cfg.Parsers[name]; ok {
			return New(p.Extract)
		}
	}
	if p, ok := BuiltinParsers()[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("unknown parser %q", name)
}

// dfRootColumn matches column i (0-based) of the df line mounted on /.
func dfRootColumn(i int) *regexp.Regexp {
	cols := make([]string, 6)
	for c := range cols {
		cols[c] = `\S+`
	}
	cols[5] = `/`
	cols[i] = "(" + cols[i] + ")"
	return regexp.MustCompile(`(?m)^` + strings.Join(cols, `\s+`) + `\s*$`)
}

// BuiltinDisk parses "df -h" output for the root filesystem.
// Fields: filesystem, size, used, avail, use_pct, mount
func BuiltinDisk() *OutputParser {
	fields := []string{"filesystem", "size", "used", "avail", "use_pct", "mount"}
	rules := make([]rule, len(fields))
	for i, f := range fields {
		rules[i] = rule{field: f, re: dfRootColumn(i)}
	}
	return &OutputParser{rules: rules}
}

// BuiltinFree parses the "Mem:" line of "free -m" (or -h) output.
// Fields: total, used, free, available
func BuiltinFree() *OutputParser {
	return &OutputParser{
		rules: []rule{
			{field: "total", re: regexp.MustCompile(`(?m)^Mem:\s+(\S+)`)},
			{field: "used", re: regexp.MustCompile(`(?m)^Mem:\s+\S+\s+(\S+)`)},
			{field: "free", re: regexp.MustCompile(`(?m)^Mem:\s+\S+\s+\S+\s+(\S+)`)},
			{field: "available", re: regexp.MustCompile(`(?m)^Mem:(?:\s+\S+){5}\s+(\S+)`)},
		},
	}
}

// BuiltinUptime parses "uptime" output.
// Fields: uptime, users, load1, load5, load15
func BuiltinUptime() *OutputParser {
	return &OutputParser{
		rules: []rule{
			{field: "uptime", re: regexp.MustCompile(`up\s+(.+?),\s+\d+\s+user`)},
			{field: "users", re: regexp.MustCompile(`(\d+)\s+users?`)},
			{field: "load1", re: regexp.MustCompile(`load average:\s+([^,\s]+)`)},
			{field: "load5", re: regexp.MustCompile(`load average:\s+[^,\s]+,\s+([^,\s]+)`)},
			{field: "load15", re: regexp.MustCompile(`load average:\s+[^,\s]+,\s+[^,\s]+,\s+(\S+)`)},
		},
	}
}
