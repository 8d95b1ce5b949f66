package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/khanglvm/profile-qa/internal/config"
)

func TestRunInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile-qa.yaml")

	var out bytes.Buffer
	if err := runInit(&out, path, "./kb.yaml", false); err != nil {
		t.Fatalf("runInit() failed: %v", err)
	}
	if !strings.Contains(out.String(), "✓ Wrote "+path) {
		t.Errorf("Unexpected output:\n%s", out.String())
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Config not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("Expected mode 0600, got %o", info.Mode().Perm())
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("Written config does not load: %v", err)
	}
	if cfg.Knowledge.Path != "./kb.yaml" {
		t.Errorf("Expected knowledge path ./kb.yaml, got %q", cfg.Knowledge.Path)
	}
	if cfg.Engines.QueryTimeout != config.Default().Engines.QueryTimeout {
		t.Errorf("Query timeout did not round-trip: %v", cfg.Engines.QueryTimeout)
	}
}

func TestRunInitRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile-qa.json")
	if err := os.WriteFile(path, []byte(`{"log": {"level": "debug"}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	err := runInit(&out, path, "", false)
	if err == nil || !strings.Contains(err.Error(), "--force") {
		t.Fatalf("Expected an overwrite error mentioning --force, got %v", err)
	}

	if err := runInit(&out, path, "", true); err != nil {
		t.Fatalf("runInit(force) failed: %v", err)
	}
	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Errorf("Expected a backup of the previous config: %v", err)
	}
}

func TestNewInitCmd(t *testing.T) {
	cmd := NewInitCmd()

	if cmd.Use != "init" {
		t.Errorf("Expected Use='init', got %q", cmd.Use)
	}
	for _, flag := range []string{"force", "knowledge"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("Flag %q not registered", flag)
		}
	}
}
