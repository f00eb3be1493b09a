package pathutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := []struct {
		in, want string
	}{
		{"~", home},
		{"~/.ssh/id_rsa", filepath.Join(home, ".ssh/id_rsa")},
		{"/abs/path", "/abs/path"},
		{"rel/path", "rel/path"},
		{"~other/x", "~other/x"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExpandHome(tt.in); got != tt.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"/data", "inv/hosts.yml", "/data/inv/hosts.yml"},
		{"/data", "/etc/hosts.yml", "/etc/hosts.yml"},
		{"/data/", "", "/data"},
		{"/data", "/a/../b", "/b"},
	}
	for _, tt := range tests {
		if got := Resolve(tt.base, tt.path); got != tt.want {
			t.Errorf("Resolve(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}
