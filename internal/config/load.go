package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/tonimelisma/casefill/internal/credfile"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> credentials file -> environment -> CLI flags.
// The returned Config has passed ValidateResolved.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	cfgPath := ConfigPath(env, cli)

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	if err := applyCredentialsFile(cfg); err != nil {
		return nil, err
	}

	applyEnv(cfg, env)
	applyCLI(cfg, cli)

	ResolvePaths(cfg)

	if err := ValidateResolved(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// ResolvePaths expands ~/ in local file paths and fills in the default
// run history location. Commands that never talk to the service (runs)
// call it directly instead of Resolve.
func ResolvePaths(cfg *Config) {
	cfg.Logging.LogFile = expandTilde(cfg.Logging.LogFile)

	cfg.State.DBPath = expandTilde(cfg.State.DBPath)
	if cfg.State.DBPath == "" {
		cfg.State.DBPath = DefaultDBPath()
	}
}

// ConfigPath picks the config file location: CLI > env > default.
func ConfigPath(env EnvOverrides, cli CLIOverrides) string {
	if cli.ConfigPath != "" {
		return cli.ConfigPath
	}

	if env.ConfigPath != "" {
		return env.ConfigPath
	}

	return DefaultConfigPath()
}

// applyCredentialsFile overlays values from server.credentials_file, or
// from the default location written by `casefill login` when unset.
// A missing default file is not an error; a missing explicit one is.
func applyCredentialsFile(cfg *Config) error {
	path := expandTilde(cfg.Server.CredentialsFile)
	explicit := path != ""

	if !explicit {
		path = DefaultCredentialsPath()
		if path == "" {
			return nil
		}
	}

	creds, err := credfile.Load(path)
	if err != nil {
		return err
	}

	if creds == nil {
		if explicit {
			return fmt.Errorf("server.credentials_file: %s does not exist", path)
		}

		return nil
	}

	cfg.Server.CredentialsFile = path
	setIfNonEmpty(&cfg.Server.Host, creds.Host)
	setIfNonEmpty(&cfg.Server.Username, creds.Username)
	setIfNonEmpty(&cfg.Server.Password, creds.Password)

	if creds.Port != 0 {
		cfg.Server.Port = creds.Port
	}

	return nil
}

func applyEnv(cfg *Config, env EnvOverrides) {
	setIfNonEmpty(&cfg.Server.Host, env.Host)
	setIfNonEmpty(&cfg.Server.Username, env.Username)
	setIfNonEmpty(&cfg.Server.Password, env.Password)

	if env.Port != 0 {
		cfg.Server.Port = env.Port
	}
}

func applyCLI(cfg *Config, cli CLIOverrides) {
	if cli.Host != nil {
		cfg.Server.Host = *cli.Host
	}

	if cli.Port != nil {
		cfg.Server.Port = *cli.Port
	}

	if cli.Username != nil {
		cfg.Server.Username = *cli.Username
	}

	if cli.Password != nil {
		cfg.Server.Password = *cli.Password
	}
}

func setIfNonEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// expandTilde replaces a leading ~/ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[2:])
}
