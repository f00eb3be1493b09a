package recipe

import (
	"github.com/agent462/corral/internal/config"
	"github.com/agent462/corral/internal/preset"
)

var builtins = map[string]config.Recipe{
	"disk-check": {
		Description: "Check disk usage on root filesystem",
		Steps:       []string{"df -h /"},
	},
	"uptime": {
		Description: "Show uptime and load averages",
		Steps:       []string{"uptime"},
	},
	"reboot-check": {
		Description: "Check if hosts require a reboot",
		Steps: []string{
			`test -f /var/run/reboot-required && echo "REBOOT REQUIRED" || echo "no reboot needed"`,
		},
	},
	"os-version": {
		Description: "Show OS version across the fleet",
		Steps: []string{
			`grep PRETTY_NAME /etc/os-release 2>/dev/null | cut -d= -f2 | tr -d '"' || uname -sr`,
		},
	},
	"user-audit": {
		Description: "List users with login shells",
		Steps: []string{
			`grep -v -e '/nologin$' -e '/false$' /etc/passwd | cut -d: -f1,7`,
		},
	},
	"log-tail": {
		Description: "Show recent error log entries",
		Steps: []string{
			"journalctl -p err --no-pager -n 20 2>/dev/null || tail -n 20 /var/log/syslog",
		},
	},
	"ssh-check": {
		Description: "Check the ssh service; show full status where it differs",
		Steps: []string{
			"systemctl is-active ssh",
			"@differs,@failed systemctl status ssh --no-pager",
		},
	},
}

// BuiltinRecipes returns a copy of the built-in recipes keyed by name.
func BuiltinRecipes() map[string]config.Recipe {
	out := make(map[string]config.Recipe, len(builtins))
	for name, r := range builtins {
		out[name] = r
	}
	return out
}

// IsBuiltin reports whether name is a built-in recipe.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

// ResolveRecipe looks up a recipe by name. User-defined recipes in cfg
// override built-ins. It returns the recipe, whether a built-in exists for
// that name, and whether the recipe was found at all.
func ResolveRecipe(name string, cfg *config.Config) (config.Recipe, bool, bool) {
	b, isBuiltin := builtins[name]
	if cfg != nil {
		if r, ok := cfg.Recipes[name]; ok {
			return r, isBuiltin, true
		}
	}
	return b, isBuiltin, isBuiltin
}

// MergedRecipes returns built-in recipes merged with user-defined recipes.
// User recipes override built-ins with the same name.
func MergedRecipes(cfg *config.Config) map[string]config.Recipe {
	merged := BuiltinRecipes()
	if cfg != nil {
		for name, r := range cfg.Recipes {
			merged[name] = r
		}
	}
	return merged
}

// ServiceRecipe expresses a service lifecycle action as a recipe: run the
// action everywhere, then check the unit on the hosts where it succeeded.
func ServiceRecipe(action preset.ServiceAction, service string) (config.Recipe, error) {
	cmd, err := preset.ServiceCommand(action, service)
	if err != nil {
		return config.Recipe{}, err
	}
	verify, err := preset.ServiceVerifyCommand(service)
	if err != nil {
		return config.Recipe{}, err
	}
	return config.Recipe{
		Description: string(action) + " " + service,
		Steps:       []string{cmd, "@ok " + verify},
	}, nil
}
