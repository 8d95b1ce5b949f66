package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cross-field rules validator
// tags cannot express.
func Validate(cfg *Config) error {
	var fields []string

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &InvalidConfigError{Message: err.Error()}
		}
		for _, fe := range verrs {
			fields = append(fields, describeFieldError(fe))
		}
	}

	defs := cfg.EngineDefinitions()
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		if slices.Contains(names, def.Name) {
			fields = append(fields, fmt.Sprintf("engines.definitions: duplicate engine %q", def.Name))
		}
		names = append(names, def.Name)
		if err := ValidateEngine(def); err != nil {
			fields = append(fields, err.Error())
		}
	}
	if p := cfg.Engines.Primary; p != "" && !slices.Contains(names, p) {
		fields = append(fields, fmt.Sprintf("engines.primary: %q is not a defined engine (have %s)", p, strings.Join(names, ", ")))
	}

	if len(fields) == 0 {
		return nil
	}
	return &InvalidConfigError{
		Fields: fields,
		Hint:   "Fix the listed keys in the config file or the matching PROFILE_QA_* variables",
	}
}

// IsSelfReference reports whether a process engine would start profile-qa
// itself without the engine-worker subcommand, which would recurse.
func IsSelfReference(def EngineDefinition) bool {
	if def.Transport != TransportProcess {
		return false
	}
	binaryName := filepath.Base(os.Args[0])
	cmd := filepath.Base(def.Command)
	if cmd != binaryName && cmd != "profile-qa" {
		return false
	}
	return !slices.Contains(def.Args, "engine-worker")
}

// ValidateEngine checks that an engine definition can be started.
func ValidateEngine(def EngineDefinition) error {
	if def.Transport == TransportProcess && def.Command == "" {
		return fmt.Errorf("engine '%s': process transport needs a command", def.Name)
	}
	if IsSelfReference(def) {
		return fmt.Errorf("engine '%s': self-reference detected (run profile-qa with the engine-worker subcommand)", def.Name)
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	key := toKeyPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return key + ": required"
	case "oneof":
		return fmt.Sprintf("%s: must be one of [%s], got %v", key, fe.Param(), fe.Value())
	case "gtefield", "ltefield":
		return fmt.Sprintf("%s: must be %s %s", key, map[string]string{"gtefield": ">=", "ltefield": "<="}[fe.Tag()], fe.Param())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%s: failed %s=%s, got %v", key, fe.Tag(), fe.Param(), fe.Value())
		}
		return fmt.Sprintf("%s: failed %s, got %v", key, fe.Tag(), fe.Value())
	}
}

// toKeyPath turns Config.Engines.QueryTimeout into engines.query_timeout.
func toKeyPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = strings.ToLower(ToEnvVarCase(p))
	}
	return strings.Join(parts, ".")
}
