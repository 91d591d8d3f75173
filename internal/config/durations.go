package config

import "time"

// The accessors below assume the Config passed Validate; an unparsable
// value falls back to zero.

// StalePollDuration returns fill.stale_poll_interval as a time.Duration.
func (f *FillConfig) StalePollDuration() time.Duration {
	return parseDurationOrZero(f.StalePollInterval)
}

// PurgePollDuration returns fill.purge_poll_interval as a time.Duration.
func (f *FillConfig) PurgePollDuration() time.Duration {
	return parseDurationOrZero(f.PurgePollInterval)
}

// ConnectTimeoutDuration returns network.connect_timeout.
func (n *NetworkConfig) ConnectTimeoutDuration() time.Duration {
	return parseDurationOrZero(n.ConnectTimeout)
}

// RequestTimeoutDuration returns network.request_timeout.
func (n *NetworkConfig) RequestTimeoutDuration() time.Duration {
	return parseDurationOrZero(n.RequestTimeout)
}

func parseDurationOrZero(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}

	return d
}
