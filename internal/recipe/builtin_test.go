package recipe

import (
	"strings"
	"testing"

	"github.com/agent462/corral/internal/config"
	"github.com/agent462/corral/internal/preset"
)

var expectedBuiltins = []string{
	"disk-check",
	"uptime",
	"reboot-check",
	"os-version",
	"user-audit",
	"log-tail",
	"ssh-check",
}

func TestBuiltinRecipes_AllPresent(t *testing.T) {
	builtins := BuiltinRecipes()
	if len(builtins) != len(expectedBuiltins) {
		t.Errorf("expected %d built-in recipes, got %d", len(expectedBuiltins), len(builtins))
	}
	for _, name := range expectedBuiltins {
		r, ok := builtins[name]
		if !ok {
			t.Errorf("missing built-in recipe %q", name)
			continue
		}
		if r.Description == "" || len(r.Steps) == 0 {
			t.Errorf("recipe %q incomplete: %+v", name, r)
		}
		if !IsBuiltin(name) {
			t.Errorf("IsBuiltin(%q) = false", name)
		}
	}
	if IsBuiltin("nonexistent") || IsBuiltin("") {
		t.Error("IsBuiltin should be false for unknown names")
	}
}

func TestBuiltinRecipes_ReturnsCopy(t *testing.T) {
	b := BuiltinRecipes()
	delete(b, "uptime")
	if !IsBuiltin("uptime") {
		t.Error("mutating the returned map changed the built-ins")
	}
}

func TestBuiltinRecipes_StepsParse(t *testing.T) {
	for name, r := range BuiltinRecipes() {
		for i, raw := range r.Steps {
			step := ParseStep(raw)
			if step.Command == "" {
				t.Errorf("recipe %q step %d has no command", name, i)
			}
			for _, part := range strings.Split(step.Selector, ",") {
				if part = strings.TrimSpace(part); part != "" && !strings.HasPrefix(part, "@") {
					t.Errorf("recipe %q step %d selector %q invalid", name, i, step.Selector)
				}
			}
		}
	}
}

func TestResolveRecipe(t *testing.T) {
	cfg := &config.Config{Recipes: map[string]config.Recipe{
		"uptime": {Description: "custom", Steps: []string{"uptime -p"}},
		"mine":   {Description: "user only", Steps: []string{"id"}},
	}}

	tests := []struct {
		name        string
		cfg         *config.Config
		wantBuiltin bool
		wantFound   bool
		wantStep    string
	}{
		{"uptime", cfg, true, true, "uptime -p"},
		{"mine", cfg, false, true, "id"},
		{"disk-check", cfg, true, true, "df -h /"},
		{"missing", cfg, false, false, ""},
		{"uptime", nil, true, true, "uptime"},
	}
	for _, tt := range tests {
		r, isBuiltin, found := ResolveRecipe(tt.name, tt.cfg)
		if isBuiltin != tt.wantBuiltin || found != tt.wantFound {
			t.Errorf("ResolveRecipe(%q) builtin=%v found=%v", tt.name, isBuiltin, found)
			continue
		}
		if found && r.Steps[0] != tt.wantStep {
			t.Errorf("ResolveRecipe(%q) step = %q, want %q", tt.name, r.Steps[0], tt.wantStep)
		}
	}
}

func TestMergedRecipes(t *testing.T) {
	cfg := &config.Config{Recipes: map[string]config.Recipe{
		"uptime": {Steps: []string{"uptime -p"}},
		"mine":   {Steps: []string{"id"}},
	}}
	merged := MergedRecipes(cfg)
	if len(merged) != len(expectedBuiltins)+1 {
		t.Errorf("merged = %d recipes", len(merged))
	}
	if merged["uptime"].Steps[0] != "uptime -p" {
		t.Error("user recipe should override built-in")
	}
	if len(MergedRecipes(nil)) != len(expectedBuiltins) {
		t.Error("nil config should yield the built-ins")
	}
}

func TestServiceRecipe(t *testing.T) {
	r, err := ServiceRecipe(preset.ServiceRestart, "nginx")
	if err != nil {
		t.Fatalf("ServiceRecipe: %v", err)
	}
	if len(r.Steps) != 2 {
		t.Fatalf("steps = %v", r.Steps)
	}
	if r.Steps[0] != "systemctl restart nginx" {
		t.Errorf("step 0 = %q", r.Steps[0])
	}
	verify := ParseStep(r.Steps[1])
	if verify.Selector != "@ok" || verify.Command != "systemctl is-active nginx" {
		t.Errorf("verify step = %+v", verify)
	}

	if _, err := ServiceRecipe("enable", "nginx"); err == nil {
		t.Error("expected error for unknown action")
	}
}
