package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/khanglvm/profile-qa/internal/logging"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Knowledge.Path == "" {
		t.Error("Default knowledge path should be set")
	}
	if !cfg.Engines.FallbackEnabled {
		t.Error("Default FallbackEnabled should be true")
	}
	if cfg.Engines.ConfidenceBoost != 0.1 {
		t.Errorf("Default ConfidenceBoost should be 0.1, got %v", cfg.Engines.ConfidenceBoost)
	}
	if cfg.Engines.QueryTimeout != 15*time.Second {
		t.Errorf("Default QueryTimeout should be 15s, got %v", cfg.Engines.QueryTimeout)
	}
	if cfg.Retrieval.MaxResults != 3 {
		t.Errorf("Default MaxResults should be 3, got %d", cfg.Retrieval.MaxResults)
	}
	if cfg.Retrieval.Threshold.Base != 0.25 {
		t.Errorf("Default base threshold should be 0.25, got %v", cfg.Retrieval.Threshold.Base)
	}
	if cfg.Escalation.MaxAttempts != 2 {
		t.Errorf("Default MaxAttempts should be 2, got %d", cfg.Escalation.MaxAttempts)
	}
	if cfg.Storage.Retention != 30*24*time.Hour {
		t.Errorf("Default Retention should be 30 days, got %v", cfg.Storage.Retention)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestEngineDefinitions(t *testing.T) {
	cfg := Default()

	defs := cfg.EngineDefinitions()
	if len(defs) != 2 {
		t.Fatalf("expected the two default engines, got %d", len(defs))
	}
	if defs[0].Name != KindLexical || defs[1].Name != KindSemantic {
		t.Errorf("unexpected default engine order: %v", defs)
	}

	cfg.Engines.Definitions = []EngineDefinition{
		{Name: "only", Kind: KindLexical, Transport: TransportInProc},
	}
	defs = cfg.EngineDefinitions()
	if len(defs) != 1 || defs[0].Name != "only" {
		t.Errorf("configured definitions should replace defaults, got %v", defs)
	}
}

func TestDerivedConfigs(t *testing.T) {
	cfg := Default()
	cfg.Engines.Primary = KindSemantic
	cfg.ABTesting.Enabled = true
	cfg.Log.Level = "debug"
	cfg.Log.JSON = true

	oc := cfg.OrchestratorConfig()
	if oc.Primary != KindSemantic || !oc.AB.Enabled || !oc.FallbackEnabled {
		t.Errorf("unexpected orchestrator config: %+v", oc)
	}
	if oc.Cache.Size != cfg.Cache.Size {
		t.Errorf("cache size not carried over: got %d", oc.Cache.Size)
	}

	sc := cfg.SearchConfig()
	if sc.MaxResults != cfg.Retrieval.MaxResults || sc.Fusion != cfg.Retrieval.Fusion {
		t.Errorf("unexpected search config: %+v", sc)
	}

	lc := cfg.LoggingConfig()
	if lc.Level != logging.LevelDebug || !lc.JSON {
		t.Errorf("unexpected logging config: %+v", lc)
	}
}

func TestSaveAndLoad(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ".profile-qa.json")

	cfg := Default()
	cfg.Knowledge.Path = "/srv/profile.yaml"
	cfg.Engines.Primary = "remote"
	cfg.Engines.QueryTimeout = 45 * time.Second
	cfg.Engines.Definitions = []EngineDefinition{
		{Name: "local", Kind: KindLexical, Transport: TransportInProc},
		{
			Name:      "remote",
			Kind:      KindSemantic,
			Transport: TransportProcess,
			Command:   "profile-qa",
			Args:      []string{"engine-worker", "--kind", "semantic"},
			Env:       map[string]string{"OPENAI_API_KEY": "sk-test"},
		},
	}
	cfg.Escalation.ContactEmail = "me@example.org"

	if err := Save(cfg, configPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if loaded.Knowledge.Path != "/srv/profile.yaml" {
		t.Errorf("Expected knowledge path '/srv/profile.yaml', got %q", loaded.Knowledge.Path)
	}
	if loaded.Engines.Primary != "remote" {
		t.Errorf("Expected primary 'remote', got %q", loaded.Engines.Primary)
	}
	if loaded.Engines.QueryTimeout != 45*time.Second {
		t.Errorf("Expected query timeout 45s, got %v", loaded.Engines.QueryTimeout)
	}
	if len(loaded.Engines.Definitions) != 2 {
		t.Fatalf("Expected 2 engines, got %d", len(loaded.Engines.Definitions))
	}

	remote := loaded.Engines.Definitions[1]
	if remote.Command != "profile-qa" {
		t.Errorf("Expected command 'profile-qa', got %q", remote.Command)
	}
	if len(remote.Args) != 3 || remote.Args[0] != "engine-worker" {
		t.Errorf("Expected engine-worker args, got %v", remote.Args)
	}
	if remote.Env["OPENAI_API_KEY"] != "sk-test" {
		t.Errorf("Expected env to survive, got %v", remote.Env)
	}
	if loaded.Escalation.ContactEmail != "me@example.org" {
		t.Errorf("Expected contact email 'me@example.org', got %q", loaded.Escalation.ContactEmail)
	}
}

func TestSaveAndLoadYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "profile-qa.yaml")

	cfg := Default()
	cfg.Cache.TTL = 2 * time.Minute
	cfg.ABTesting.Enabled = true

	if err := Save(cfg, configPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if loaded.Cache.TTL != 2*time.Minute {
		t.Errorf("Expected cache ttl 2m, got %v", loaded.Cache.TTL)
	}
	if !loaded.ABTesting.Enabled {
		t.Error("Expected A/B testing to stay enabled")
	}
}

func TestLoadNonExistent(t *testing.T) {
	_, err := LoadFrom("/nonexistent/path/config.json")
	if err == nil {
		t.Error("LoadFrom should fail for non-existent file")
	}
}
