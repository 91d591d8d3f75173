// Package config implements TOML configuration loading, validation, and
// path resolution for casefill. Values follow a layered override chain:
// defaults -> config file -> credentials file -> environment -> CLI flags.
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Fill    FillConfig    `toml:"fill"`
	Check   CheckConfig   `toml:"check"`
	Clear   ClearConfig   `toml:"clear"`
	Network NetworkConfig `toml:"network"`
	Logging LoggingConfig `toml:"logging"`
	State   StateConfig   `toml:"state"`
}

// ServerConfig locates the Caramel service and the account used against it.
// credentials_file points at a key:value file (host, port, username,
// password) whose non-empty values override the ones set here.
type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Username        string `toml:"username"`
	Password        string `toml:"password"`
	CredentialsFile string `toml:"credentials_file"`
}

// FillConfig tunes the convergence loop.
type FillConfig struct {
	Concurrency       int     `toml:"concurrency"`
	Tolerance         float64 `toml:"tolerance"`
	MaxSample         int     `toml:"max_sample"`
	StalePollInterval string  `toml:"stale_poll_interval"`
	StalePollAttempts int     `toml:"stale_poll_attempts"`
	StaleBackoff      string  `toml:"stale_backoff"`
	PurgePollInterval string  `toml:"purge_poll_interval"`
	PurgePollAttempts int     `toml:"purge_poll_attempts"`
	MaxCycles         int     `toml:"max_cycles"`
}

// CheckConfig tunes the folder count report.
type CheckConfig struct {
	Concurrency int     `toml:"concurrency"`
	Tolerance   float64 `toml:"tolerance"`
}

// ClearConfig tunes folder deletion. The service struggles with parallel
// deletes, so the default is a single worker.
type ClearConfig struct {
	Concurrency int `toml:"concurrency"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	ConnectTimeout    string  `toml:"connect_timeout"`
	RequestTimeout    string  `toml:"request_timeout"`
	UserAgent         string  `toml:"user_agent"`
	MaxRetries        int     `toml:"max_retries"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// LoggingConfig controls log output: level, format, and destination.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`
}

// StateConfig controls the local run history database.
type StateConfig struct {
	DBPath     string `toml:"db_path"`
	RecordRuns bool   `toml:"record_runs"`
}

// CLIOverrides holds values from CLI flags. Pointer fields distinguish
// "not specified" (nil) from "explicitly set to the zero value".
type CLIOverrides struct {
	ConfigPath string
	Host       *string
	Port       *int
	Username   *string
	Password   *string
}
