package config

import (
	"errors"
	"fmt"
	"time"
)

// Validation range constants.
const (
	minPort            = 1
	maxPort            = 65535
	minConcurrency     = 1
	maxConcurrency     = 100
	minSample          = 1
	maxSample          = 10_000
	minPollAttempts    = 1
	minConnectTimeout  = 1 * time.Second
	minRequestTimeout  = 1 * time.Second
	maxCheckTolerance  = 1.0
	maxFillTolerance   = 1.0
	minPollIntervalOK  = time.Duration(0)
	minRequestsPerSec  = 0.0
	minRetries         = 0
	minCycles          = 0
	validLogFormatText = "text"
	validLogFormatJSON = "json"
)

// Validate checks all configuration values and returns all errors found.
// Every error is accumulated so users can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateFill(&cfg.Fill)...)
	errs = append(errs, validateCheck(&cfg.Check)...)
	errs = append(errs, validateConcurrency("clear.concurrency", cfg.Clear.Concurrency)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

// ValidateResolved checks constraints that only hold on the merged result
// of the override chain. The host may come from any layer, so its absence
// is only an error here.
func ValidateResolved(cfg *Config) error {
	var errs []error

	if cfg.Server.Host == "" {
		errs = append(errs, fmt.Errorf("server.host: required (set it in the config file, %s, or --host)", EnvHost))
	}

	if err := Validate(cfg); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateServer(s *ServerConfig) []error {
	if s.Port < minPort || s.Port > maxPort {
		return []error{fmt.Errorf("server.port: must be between %d and %d, got %d", minPort, maxPort, s.Port)}
	}

	return nil
}

func validateFill(f *FillConfig) []error {
	var errs []error

	errs = append(errs, validateConcurrency("fill.concurrency", f.Concurrency)...)

	if f.Tolerance <= 0 || f.Tolerance > maxFillTolerance {
		errs = append(errs, fmt.Errorf("fill.tolerance: must be in (0, 1], got %g", f.Tolerance))
	}

	if f.MaxSample < minSample || f.MaxSample > maxSample {
		errs = append(errs, fmt.Errorf("fill.max_sample: must be between %d and %d, got %d",
			minSample, maxSample, f.MaxSample))
	}

	errs = append(errs, validateDurationMin("fill.stale_poll_interval", f.StalePollInterval, minPollIntervalOK)...)
	errs = append(errs, validateDurationMin("fill.purge_poll_interval", f.PurgePollInterval, minPollIntervalOK)...)

	if f.StalePollAttempts < minPollAttempts {
		errs = append(errs, fmt.Errorf("fill.stale_poll_attempts: must be >= %d, got %d",
			minPollAttempts, f.StalePollAttempts))
	}

	if f.PurgePollAttempts < minPollAttempts {
		errs = append(errs, fmt.Errorf("fill.purge_poll_attempts: must be >= %d, got %d",
			minPollAttempts, f.PurgePollAttempts))
	}

	if f.StaleBackoff != BackoffFixed && f.StaleBackoff != BackoffExponential {
		errs = append(errs, fmt.Errorf("fill.stale_backoff: must be %q or %q, got %q",
			BackoffFixed, BackoffExponential, f.StaleBackoff))
	}

	if f.MaxCycles < minCycles {
		errs = append(errs, fmt.Errorf("fill.max_cycles: must be >= %d, got %d", minCycles, f.MaxCycles))
	}

	return errs
}

func validateCheck(c *CheckConfig) []error {
	errs := validateConcurrency("check.concurrency", c.Concurrency)

	if c.Tolerance <= 0 || c.Tolerance >= maxCheckTolerance {
		errs = append(errs, fmt.Errorf("check.tolerance: must be in (0, 1), got %g", c.Tolerance))
	}

	return errs
}

func validateConcurrency(field string, n int) []error {
	if n < minConcurrency || n > maxConcurrency {
		return []error{fmt.Errorf("%s: must be between %d and %d, got %d",
			field, minConcurrency, maxConcurrency, n)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("network.connect_timeout", n.ConnectTimeout, minConnectTimeout)...)
	errs = append(errs, validateDurationMin("network.request_timeout", n.RequestTimeout, minRequestTimeout)...)

	if n.MaxRetries < minRetries {
		errs = append(errs, fmt.Errorf("network.max_retries: must be >= %d, got %d", minRetries, n.MaxRetries))
	}

	if n.RequestsPerSecond < minRequestsPerSec {
		errs = append(errs, fmt.Errorf("network.requests_per_second: must be >= 0, got %g", n.RequestsPerSecond))
	}

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.LogLevel] {
		errs = append(errs, fmt.Errorf("logging.log_level: must be one of debug, info, warn, error; got %q", l.LogLevel))
	}

	if l.LogFormat != validLogFormatText && l.LogFormat != validLogFormatJSON {
		errs = append(errs, fmt.Errorf("logging.log_format: must be text or json; got %q", l.LogFormat))
	}

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)}
	}

	return nil
}
