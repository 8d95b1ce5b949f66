/*
Package config loads and saves profile-qa configuration.

Settings are layered: built-in defaults, then the config file
(~/.profile-qa.json, or a YAML file when the extension says so), then
PROFILE_QA_* environment variables. Keys use snake_case sections:

	{
	  "knowledge": {"path": "data/profile.yaml"},
	  "engines": {
	    "primary": "lexical",
	    "fallback_enabled": true,
	    "query_timeout": "15s",
	    "definitions": [
	      {"name": "lexical", "kind": "lexical", "transport": "inproc"},
	      {"name": "semantic", "kind": "semantic", "transport": "process",
	       "command": "profile-qa", "args": ["engine-worker", "--kind", "semantic"]}
	    ]
	  },
	  "ab_testing": {"enabled": true, "strategy": "split", "split": 0.5},
	  "escalation": {"contact_email": "me@example.com"},
	  "log": {"level": "debug"}
	}

An environment variable names the key path in upper case with underscores,
e.g. PROFILE_QA_AB_TESTING_ENABLED=true or PROFILE_QA_ENGINES_QUERY_TIMEOUT=30s.
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/khanglvm/profile-qa/internal/api"
	"github.com/khanglvm/profile-qa/internal/conversation"
	"github.com/khanglvm/profile-qa/internal/embedding"
	"github.com/khanglvm/profile-qa/internal/engine"
	"github.com/khanglvm/profile-qa/internal/escalation"
	"github.com/khanglvm/profile-qa/internal/logging"
	"github.com/khanglvm/profile-qa/internal/orchestrator"
	"github.com/khanglvm/profile-qa/internal/prompt"
	"github.com/khanglvm/profile-qa/internal/search"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PROFILE_QA_"

// Engine kinds and transports.
const (
	KindLexical  = "lexical"
	KindSemantic = "semantic"

	TransportInProc  = "inproc"
	TransportProcess = "process"
)

// Config represents the root configuration structure.
type Config struct {
	Knowledge    KnowledgeConfig          `koanf:"knowledge"`
	Engines      EnginesConfig            `koanf:"engines"`
	ABTesting    orchestrator.ABConfig    `koanf:"ab_testing"`
	Retrieval    RetrievalConfig          `koanf:"retrieval"`
	Prompt       PromptConfig             `koanf:"prompt"`
	Conversation ConversationConfig       `koanf:"conversation"`
	Escalation   escalation.Config        `koanf:"escalation"`
	Cache        orchestrator.CacheConfig `koanf:"cache"`
	Storage      StorageConfig            `koanf:"storage"`
	Embedding    embedding.Config         `koanf:"embedding"`
	Server       api.Config               `koanf:"server"`
	Log          LogConfig                `koanf:"log"`
}

// KnowledgeConfig locates the knowledge base file.
type KnowledgeConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// EnginesConfig controls engine selection and round-trip timeouts.
type EnginesConfig struct {
	Primary         string             `koanf:"primary"`
	FallbackEnabled bool               `koanf:"fallback_enabled"`
	ConfidenceBoost float64            `koanf:"confidence_boost" validate:"gte=0,lte=1"`
	QueryTimeout    time.Duration      `koanf:"query_timeout" validate:"gt=0"`
	InitTimeout     time.Duration      `koanf:"init_timeout" validate:"gt=0"`
	Definitions     []EngineDefinition `koanf:"definitions" validate:"dive"`
}

// EngineDefinition describes one engine and how to reach it.
type EngineDefinition struct {
	Name      string            `koanf:"name" validate:"required"`
	Kind      string            `koanf:"kind" validate:"oneof=lexical semantic"`
	Transport string            `koanf:"transport" validate:"oneof=inproc process"`
	Command   string            `koanf:"command"`
	Args      []string          `koanf:"args"`
	Env       map[string]string `koanf:"env"`
}

// RetrievalConfig tunes the retrieval engine.
type RetrievalConfig struct {
	Threshold     search.ThresholdConfig `koanf:"threshold"`
	Fusion        search.FusionConfig    `koanf:"fusion"`
	MaxResults    int                    `koanf:"max_results" validate:"gte=1,lte=3"`
	RelatedFactor float64                `koanf:"related_factor" validate:"gt=0,lte=1"`
}

// PromptConfig tunes the prompt builder.
type PromptConfig struct {
	Persona    string `koanf:"persona"`
	MaxWords   int    `koanf:"max_words" validate:"gte=1"`
	MaxHistory int    `koanf:"max_history" validate:"gte=0,lte=2"`
}

// ConversationConfig bounds the per-session history.
type ConversationConfig struct {
	MaxTurns      int `koanf:"max_turns" validate:"gte=1"`
	ContextWindow int `koanf:"context_window" validate:"gte=1,ltefield=MaxTurns"`
}

// StorageConfig controls outcome persistence.
type StorageConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
	// Retention is how long outcomes and assignments are kept.
	Retention time.Duration `koanf:"retention" validate:"gte=0"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `koanf:"json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	retrieval := search.DefaultConfig()
	orch := orchestrator.DefaultConfig()

	return &Config{
		Knowledge: KnowledgeConfig{Path: "data/profile.yaml"},
		Engines: EnginesConfig{
			FallbackEnabled: orch.FallbackEnabled,
			ConfidenceBoost: orch.ConfidenceBoost,
			QueryTimeout:    engine.DefaultQueryTimeout,
			InitTimeout:     engine.DefaultInitTimeout,
		},
		ABTesting: orch.AB,
		Retrieval: RetrievalConfig{
			Threshold:     retrieval.Threshold,
			Fusion:        retrieval.Fusion,
			MaxResults:    retrieval.MaxResults,
			RelatedFactor: retrieval.RelatedFactor,
		},
		Prompt: PromptConfig{
			Persona:    prompt.DefaultPersona,
			MaxWords:   prompt.DefaultMaxWords,
			MaxHistory: prompt.DefaultMaxHistory,
		},
		Conversation: ConversationConfig{
			MaxTurns:      conversation.DefaultMaxTurns,
			ContextWindow: conversation.DefaultWindow,
		},
		Escalation: escalation.DefaultConfig(),
		Cache:      orch.Cache,
		Storage: StorageConfig{
			Enabled:   true,
			Retention: 30 * 24 * time.Hour,
		},
		Embedding: embedding.DefaultConfig(),
		Server:    api.DefaultConfig(),
		Log:       LogConfig{Level: string(logging.LevelInfo)},
	}
}

// DefaultEngines runs both reference engines in-process.
func DefaultEngines() []EngineDefinition {
	return []EngineDefinition{
		{Name: KindLexical, Kind: KindLexical, Transport: TransportInProc},
		{Name: KindSemantic, Kind: KindSemantic, Transport: TransportInProc},
	}
}

// EngineDefinitions returns the configured engines, or DefaultEngines when
// none are configured.
func (c *Config) EngineDefinitions() []EngineDefinition {
	if len(c.Engines.Definitions) == 0 {
		return DefaultEngines()
	}
	return c.Engines.Definitions
}

// OrchestratorConfig assembles the orchestrator settings.
func (c *Config) OrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		Primary:         c.Engines.Primary,
		FallbackEnabled: c.Engines.FallbackEnabled,
		ConfidenceBoost: c.Engines.ConfidenceBoost,
		AB:              c.ABTesting,
		Cache:           c.Cache,
	}
}

// SearchConfig assembles the retrieval settings.
func (c *Config) SearchConfig() search.Config {
	return search.Config{
		Threshold:     c.Retrieval.Threshold,
		Fusion:        c.Retrieval.Fusion,
		MaxResults:    c.Retrieval.MaxResults,
		RelatedFactor: c.Retrieval.RelatedFactor,
	}
}

// LoggingConfig assembles the logger settings.
func (c *Config) LoggingConfig() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = logging.ParseLevel(c.Log.Level)
	lc.JSON = c.Log.JSON
	return lc
}

// GetDefaultConfigPath returns the path to ~/.profile-qa.json
func GetDefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".profile-qa.json"), nil
}
