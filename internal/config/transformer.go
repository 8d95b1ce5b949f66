package config

import (
	"strings"
	"unicode"
)

// splitWords splits a string into words based on separators and case changes.
func splitWords(s string) []string {
	var words []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '-' || r == '_' || r == ' ' || r == '.':
			// Separator - flush current word
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		case unicode.IsUpper(r):
			// Case transition (lowercase → uppercase), or the last capital of
			// an acronym before a lowercase run: ABTesting → AB Testing
			acronymEnd := i+1 < len(runes) && unicode.IsUpper(runes[i-1]) && unicode.IsLower(runes[i+1])
			if i > 0 && current.Len() > 0 && (unicode.IsLower(runes[i-1]) || acronymEnd) {
				words = append(words, current.String())
				current.Reset()
			}
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}

	// Flush remaining
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

// ToEnvVarCase converts a key to SCREAMING_SNAKE_CASE for environment variables.
//
// Examples:
//   - "queryTimeout" → "QUERY_TIMEOUT"
//   - "engines.query_timeout" → "ENGINES_QUERY_TIMEOUT"
//   - "base-url" → "BASE_URL"
func ToEnvVarCase(s string) string {
	words := splitWords(s)
	for i, word := range words {
		words[i] = strings.ToUpper(word)
	}
	return strings.Join(words, "_")
}

// NormalizeEnvVars converts all environment variable keys to SCREAMING_SNAKE_CASE.
// Engine definitions may spell child-process variables in any case.
func NormalizeEnvVars(env map[string]string) map[string]string {
	if env == nil {
		return nil
	}

	normalized := make(map[string]string, len(env))
	for key, value := range env {
		normalized[ToEnvVarCase(key)] = value
	}
	return normalized
}

// EnvVarFor returns the environment variable that overrides a koanf key.
func EnvVarFor(key string) string {
	return EnvPrefix + ToEnvVarCase(key)
}

// envMappings maps the override variable of every known key to its path,
// so section names containing underscores resolve unambiguously.
func envMappings(keys []string) map[string]string {
	m := make(map[string]string, len(keys))
	for _, k := range keys {
		m[EnvVarFor(k)] = k
	}
	return m
}

// transformEnvKey converts an unmapped variable to a koanf path, treating
// the first segment as the section: LOG_LEVEL -> log.level
func transformEnvKey(s string) string {
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '_'
	})

	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}
