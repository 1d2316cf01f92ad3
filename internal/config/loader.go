package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"panelsync/pkg/logging"
)

const (
	userConfigDir  = ".config/panelsync"
	configFileName = "config.yaml"
)

// osUserHomeDir is swapped out in tests.
var osUserHomeDir = os.UserHomeDir

// DefaultConfigPath returns $HOME/.config/panelsync/config.yaml.
func DefaultConfigPath() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

// LoadConfig loads and validates configuration.
//
// An explicit path must exist. With an empty path the user config file is
// tried and the built-in defaults are used when it does not exist. The
// returned string is the file that was read, or empty for the defaults.
func LoadConfig(path string) (PanelsyncConfig, string, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultConfigPath()
		if err != nil {
			logging.Warn("ConfigLoader", "%v, using defaults", err)
			return GetDefaultConfig(), "", nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			logging.Info("ConfigLoader", "No config found at %s, using defaults", path)
			return GetDefaultConfig(), "", nil
		}
		return PanelsyncConfig{}, path, NewConfigurationErrorWithDetails(path, baseName(path),
			"io", "cannot read configuration file", err.Error(),
			[]string{"Check that the file exists and is readable", "Omit --config to use the built-in defaults"})
	}

	cfg, err := Parse(data, path)
	if err != nil {
		return PanelsyncConfig{}, path, err
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", path)
	return cfg, path, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
// Targets or bindings present in data replace the default lists.
func Parse(data []byte, path string) (PanelsyncConfig, error) {
	cfg := GetDefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		ce := NewConfigurationErrorWithDetails(path, baseName(path),
			"parse", "malformed YAML", err.Error(),
			[]string{"Durations are written like 50ms or 1s"})
		var te *yaml.TypeError
		if errors.As(err, &te) {
			ce.ErrorType = "type"
		}
		return PanelsyncConfig{}, ce
	}
	applyDefaults(&cfg)

	if errs := Validate(cfg, path); errs.HasErrors() {
		return PanelsyncConfig{}, errs
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML.
func SaveConfig(cfg PanelsyncConfig, path string) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
