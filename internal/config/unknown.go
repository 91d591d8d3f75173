package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys maps each section to its valid keys.
var knownKeys = map[string][]string{
	"server": {"host", "port", "username", "password", "credentials_file"},
	"fill": {
		"concurrency", "tolerance", "max_sample", "stale_poll_interval", "stale_poll_attempts",
		"stale_backoff", "purge_poll_interval", "purge_poll_attempts", "max_cycles",
	},
	"check":   {"concurrency", "tolerance"},
	"clear":   {"concurrency"},
	"network": {"connect_timeout", "request_timeout", "user_agent", "max_retries", "requests_per_second"},
	"logging": {"log_level", "log_format", "log_file"},
	"state":   {"db_path", "record_runs"},
}

// knownSections is the sorted list of section names, for deterministic
// suggestions.
var knownSections = func() []string {
	names := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		names = append(names, k)
	}

	sort.Strings(names)

	return names
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	reported := make(map[string]bool)

	for _, key := range md.Undecoded() {
		// An unknown table also reports each of its keys; one error per
		// unknown section is enough.
		if _, known := knownKeys[key[0]]; !known {
			if reported[key[0]] {
				continue
			}

			reported[key[0]] = true
		}

		errs = append(errs, unknownKeyError(key))
	}

	return errors.Join(errs...)
}

// unknownKeyError describes one undecoded key, suggesting the closest
// known section or key.
func unknownKeyError(key toml.Key) error {
	full := key.String()

	if len(key) == 1 {
		if _, isSection := knownKeys[key[0]]; !isSection {
			if s := closestMatch(key[0], knownSections); s != "" {
				return fmt.Errorf("unknown config section %q — did you mean %q?", key[0], s)
			}
		}

		return fmt.Errorf("unknown config key %q (keys belong in a section such as [fill])", full)
	}

	section, field := key[0], strings.Join(key[1:], ".")

	known, ok := knownKeys[section]
	if !ok {
		if s := closestMatch(section, knownSections); s != "" {
			return fmt.Errorf("unknown config section %q — did you mean %q?", section, s)
		}

		return fmt.Errorf("unknown config section %q", section)
	}

	if s := closestMatch(field, known); s != "" {
		return fmt.Errorf("unknown config key %q — did you mean %q?", full, section+"."+s)
	}

	return fmt.Errorf("unknown config key %q", full)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Single-row optimization avoids allocating a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
