package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pkceflow/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/pkceflow"
	configFileName = "config.yaml"

	envPrefix = "PKCEFLOW_"
)

// Overridable in tests.
var (
	osUserHomeDir = os.UserHomeDir
	lookupEnv     = os.LookupEnv
)

// DefaultConfigPath returns ~/.config/pkceflow/config.yaml.
func DefaultConfigPath() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user home directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

// LoadConfig reads the configuration file at configPath, or the default
// path when configPath is empty, applies PKCEFLOW_* environment overrides
// and validates the result.
//
// A missing file at the default path is not an error: defaults and the
// environment are used. A missing file at an explicit path is.
func LoadConfig(configPath string) (Config, error) {
	explicit := configPath != ""
	if !explicit {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		configPath = defaultPath
	}

	cfg := GetDefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, &ConfigurationError{
				FilePath:  configPath,
				ErrorType: ErrorTypeParse,
				Message:   "malformed YAML",
				Err:       err,
			}
		}
		logging.Info("Config", "Loaded configuration from %s", configPath)
	case errors.Is(err, os.ErrNotExist) && !explicit:
		logging.Debug("Config", "No config file at %s, using defaults and environment", configPath)
	default:
		return Config{}, &ConfigurationError{
			FilePath:  configPath,
			ErrorType: ErrorTypeIO,
			Message:   "cannot read config file",
			Err:       err,
		}
	}

	applyEnvOverrides(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyEnvOverrides replaces client fields with PKCEFLOW_* variables that
// are set, even when set to the empty string.
func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		name   string
		target *string
	}{
		{"CLIENT_ID", &cfg.Client.ClientID},
		{"CLIENT_SECRET", &cfg.Client.ClientSecret},
		{"REDIRECT_URI", &cfg.Client.RedirectURI},
		{"AUTHORIZATION_URL", &cfg.Client.AuthorizationURL},
		{"TOKEN_URL", &cfg.Client.TokenURL},
		{"SCOPE", &cfg.Client.Scope},
		{"AUDIENCE", &cfg.Client.Audience},
		{"CONNECTION", &cfg.Client.Connection},
		{"ORGANISATION", &cfg.Client.Organisation},
	}

	for _, o := range overrides {
		if v, ok := lookupEnv(envPrefix + o.name); ok {
			*o.target = strings.TrimSpace(v)
			logging.Debug("Config", "Using %s%s from environment", envPrefix, o.name)
		}
	}
}
