package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr :8080, got %q", cfg.Server.Addr)
	}
	if cfg.Witness.FreeMonthlyInvites != 5 {
		t.Errorf("expected default invite cap 5, got %d", cfg.Witness.FreeMonthlyInvites)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owemi.toml")
	content := `
[server]
addr = ":9090"

[witness]
free_monthly_invites = 10
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected addr :9090, got %q", cfg.Server.Addr)
	}
	if cfg.Witness.FreeMonthlyInvites != 10 {
		t.Errorf("expected invite cap 10, got %d", cfg.Witness.FreeMonthlyInvites)
	}
	// Untouched sections keep their defaults.
	if cfg.Database.Path != "owemi.sqlite3" {
		t.Errorf("expected default database path, got %q", cfg.Database.Path)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owemi.toml")
	content := `
[witness]
free_monthly_invites = -1
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for negative invite cap")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}
