package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// Load reads the configuration from the default path. A missing default
// file is not an error: defaults and environment overrides apply.
func Load() (*Config, error) {
	configPath, err := GetDefaultConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFrom(configPath)
	var notFound *ConfigNotFoundError
	if errors.As(err, &notFound) {
		return load(nil)
	}
	return cfg, err
}

// LoadFrom reads config with enhanced error handling
func LoadFrom(path string) (*Config, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	raw, err := parseConfig(path, data)
	if err != nil {
		return nil, &InvalidConfigError{
			Path:    path,
			Message: fmt.Sprintf("parse error: %v", err),
			Hint:    "Restore from .bak file if available",
		}
	}

	cfg, err := load(raw)
	var invalid *InvalidConfigError
	if errors.As(err, &invalid) && invalid.Path == "" {
		invalid.Path = path
	}
	return cfg, err
}

// LoadOrDefault loads path when set, the default file otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	return LoadFrom(path)
}

func readConfigFile(path string) ([]byte, error) {
	// Check file existence first
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigNotFoundError{
				Path: path,
				Hint: "Run 'profile-qa init' to create configuration",
			}
		}
		return nil, fmt.Errorf("failed to access config: %w", err)
	}

	// Check read permissions
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, &PermissionError{
				Path:    path,
				Op:      "read",
				Fix:     getReadPermissionFix(path),
				Details: getPermissionDetails(path),
			}
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return data, nil
}

// parseConfig decodes YAML files by extension and everything else as JSON.
func parseConfig(path string, data []byte) (map[string]any, error) {
	raw := map[string]any{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return raw, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("JSON parse error: %w", err)
		}
	}
	return raw, nil
}

// load layers defaults, the parsed file and the environment, then decodes
// and validates the result.
func load(file map[string]any) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if len(file) > 0 {
		if err := k.Load(rawMap(file), nil); err != nil {
			return nil, fmt.Errorf("failed to apply config file: %w", err)
		}
	}

	envToPath := envMappings(k.Keys())
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			if path, ok := envToPath[key]; ok {
				return path, value
			}
			return transformEnvKey(strings.TrimPrefix(key, EnvPrefix)), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, &InvalidConfigError{
			Message: err.Error(),
			Hint:    "Check value types, durations use Go syntax such as 15s or 5m",
		}
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// rawMap adapts parsed file data to koanf.Provider.
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) {
	return r, nil
}

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, errors.New("ReadBytes not implemented")
}

// getReadPermissionFix returns platform-specific fix command
func getReadPermissionFix(path string) string {
	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("Right-click %s → Properties → Security → Edit permissions", path)
	default: // unix-like
		return fmt.Sprintf("Run: chmod 644 %s", path)
	}
}

// getPermissionDetails checks file ownership and permissions
func getPermissionDetails(path string) string {
	if runtime.GOOS == "windows" {
		return "" // Not applicable on Windows
	}

	info, err := os.Stat(path)
	if err != nil {
		return ""
	}

	return fmt.Sprintf("Current permissions: %04o", info.Mode().Perm())
}
