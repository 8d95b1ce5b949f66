/*
Package config provides unit tests for validation functions.
*/
package config

import (
	"errors"
	"strings"
	"testing"
)

func TestIsSelfReference(t *testing.T) {
	tests := []struct {
		name     string
		def      EngineDefinition
		expected bool
	}{
		{
			name:     "Direct binary name match",
			def:      EngineDefinition{Name: "a", Transport: TransportProcess, Command: "profile-qa"},
			expected: true,
		},
		{
			name:     "Full path to binary",
			def:      EngineDefinition{Name: "a", Transport: TransportProcess, Command: "/usr/local/bin/profile-qa", Args: []string{"serve"}},
			expected: true,
		},
		{
			name:     "Worker subcommand",
			def:      EngineDefinition{Name: "a", Transport: TransportProcess, Command: "profile-qa", Args: []string{"engine-worker", "--kind", "lexical"}},
			expected: false,
		},
		{
			name:     "Different binary",
			def:      EngineDefinition{Name: "a", Transport: TransportProcess, Command: "python3", Args: []string{"engine.py"}},
			expected: false,
		},
		{
			name:     "In-process engine",
			def:      EngineDefinition{Name: "a", Transport: TransportInProc, Command: "profile-qa"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsSelfReference(tt.def)
			if result != tt.expected {
				t.Errorf("IsSelfReference() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestValidateEngine(t *testing.T) {
	tests := []struct {
		name    string
		def     EngineDefinition
		wantErr string
	}{
		{
			name: "in-process engine",
			def:  EngineDefinition{Name: "lexical", Kind: KindLexical, Transport: TransportInProc},
		},
		{
			name: "process engine",
			def:  EngineDefinition{Name: "remote", Kind: KindSemantic, Transport: TransportProcess, Command: "profile-qa", Args: []string{"engine-worker"}},
		},
		{
			name:    "process engine without command",
			def:     EngineDefinition{Name: "remote", Kind: KindSemantic, Transport: TransportProcess},
			wantErr: "needs a command",
		},
		{
			name:    "self reference",
			def:     EngineDefinition{Name: "loop", Kind: KindLexical, Transport: TransportProcess, Command: "profile-qa", Args: []string{"serve"}},
			wantErr: "self-reference",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEngine(tt.def)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateEngine() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateEngine() should fail with %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error should contain %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		fields []string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:   "unknown primary",
			mutate: func(c *Config) { c.Engines.Primary = "ghost" },
			fields: []string{"engines.primary", "ghost"},
		},
		{
			name: "duplicate engine names",
			mutate: func(c *Config) {
				c.Engines.Definitions = []EngineDefinition{
					{Name: "x", Kind: KindLexical, Transport: TransportInProc},
					{Name: "x", Kind: KindSemantic, Transport: TransportInProc},
				}
			},
			fields: []string{"duplicate engine"},
		},
		{
			name: "bad engine kind",
			mutate: func(c *Config) {
				c.Engines.Definitions = []EngineDefinition{{Name: "x", Kind: "neural", Transport: TransportInProc}}
			},
			fields: []string{"engines.definitions", "kind", "neural"},
		},
		{
			name:   "window larger than history",
			mutate: func(c *Config) { c.Conversation.ContextWindow = c.Conversation.MaxTurns + 1 },
			fields: []string{"conversation.context_window"},
		},
		{
			name:   "inverted escalation thresholds",
			mutate: func(c *Config) { c.Escalation.LowConfidence = 0.1 },
			fields: []string{"escalation.low_confidence"},
		},
		{
			name:   "missing knowledge path",
			mutate: func(c *Config) { c.Knowledge.Path = "" },
			fields: []string{"knowledge.path: required"},
		},
		{
			name:   "bad embedding provider",
			mutate: func(c *Config) { c.Embedding.Provider = "magic" },
			fields: []string{"embedding.provider", "hashing openai"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			if len(tt.fields) == 0 {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}

			var invalid *InvalidConfigError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidConfigError, got %v", err)
			}
			if len(invalid.Fields) == 0 {
				t.Error("expected at least one field problem")
			}
			for _, want := range tt.fields {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error should contain %q, got:\n%s", want, err.Error())
				}
			}
		})
	}
}
