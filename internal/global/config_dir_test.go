package global

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfigDir_UsesOverride(t *testing.T) {
	t.Setenv("ITP_CONFIG_DIR", "/tmp/itpsession-config-test")
	got, err := DefaultConfigDir()
	if err != nil {
		t.Fatalf("DefaultConfigDir returned error: %v", err)
	}
	if got != "/tmp/itpsession-config-test" {
		t.Fatalf("expected override path, got %q", got)
	}
}

func TestDefaultConfigDir_UnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ITP_CONFIG_DIR", "")
	t.Setenv("HOME", home)
	got, err := DefaultConfigDir()
	if err != nil {
		t.Fatalf("DefaultConfigDir returned error: %v", err)
	}
	if want := filepath.Join(home, ".config", "itpsession"); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
