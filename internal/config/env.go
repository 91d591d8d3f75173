package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variable names for overrides. The CARAMEL_* names are shared
// with other tooling for the same service.
const (
	EnvConfig   = "CASEFILL_CONFIG"
	EnvHost     = "CARAMEL_HOST"
	EnvPort     = "CARAMEL_PORT"
	EnvUsername = "CARAMEL_USERNAME"
	EnvPassword = "CARAMEL_PASSWORD"
)

// EnvOverrides holds values derived from environment variables. Empty
// strings and a zero Port mean "not set".
type EnvOverrides struct {
	ConfigPath string
	Host       string
	Port       int
	Username   string
	Password   string
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. A non-numeric CARAMEL_PORT is an error rather than silently
// ignored.
func ReadEnvOverrides() (EnvOverrides, error) {
	env := EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		Host:       os.Getenv(EnvHost),
		Username:   os.Getenv(EnvUsername),
		Password:   os.Getenv(EnvPassword),
	}

	if raw := os.Getenv(EnvPort); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return env, fmt.Errorf("%s: invalid port %q", EnvPort, raw)
		}

		env.Port = port
	}

	return env, nil
}
