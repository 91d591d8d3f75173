package config

// Default values for configuration options. These are "layer 0" of the
// override chain.
const (
	defaultPort              = 80
	defaultFillConcurrency   = 10
	defaultFillTolerance     = 0.98
	defaultMaxSample         = 10_000
	defaultStalePollInterval = "1s"
	defaultStalePollAttempts = 10
	defaultStaleBackoff      = BackoffFixed
	defaultPurgePollInterval = "500ms"
	defaultPurgePollAttempts = 24
	defaultCheckConcurrency  = 8
	defaultCheckTolerance    = 0.03
	defaultClearConcurrency  = 1
	defaultConnectTimeout    = "10s"
	defaultRequestTimeout    = "60s"
	defaultMaxRetries        = 5
	defaultLogLevel          = "info"
	defaultLogFormat         = "text"
)

// Stale backoff policy names.
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// DefaultConfig returns a Config populated with all default values.
// It is the starting point for TOML decoding, so unset fields keep their
// defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: defaultPort,
		},
		Fill: FillConfig{
			Concurrency:       defaultFillConcurrency,
			Tolerance:         defaultFillTolerance,
			MaxSample:         defaultMaxSample,
			StalePollInterval: defaultStalePollInterval,
			StalePollAttempts: defaultStalePollAttempts,
			StaleBackoff:      defaultStaleBackoff,
			PurgePollInterval: defaultPurgePollInterval,
			PurgePollAttempts: defaultPurgePollAttempts,
		},
		Check: CheckConfig{
			Concurrency: defaultCheckConcurrency,
			Tolerance:   defaultCheckTolerance,
		},
		Clear: ClearConfig{
			Concurrency: defaultClearConcurrency,
		},
		Network: NetworkConfig{
			ConnectTimeout: defaultConnectTimeout,
			RequestTimeout: defaultRequestTimeout,
			MaxRetries:     defaultMaxRetries,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		State: StateConfig{
			RecordRuns: true,
		},
	}
}
