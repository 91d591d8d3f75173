// Package testutil provides shared environment helpers for E2E tests.
// It depends only on stdlib so the e2e package, which drives the built
// binary, does not pull in internal packages.
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AllowedCasesEnv lists the cases E2E tests may mutate, comma separated.
const AllowedCasesEnv = "CASEFILL_E2E_ALLOWED_CASES"

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly).
// Existing env vars take precedence over .env values.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// ValidateAllowlist exits the process unless the case named by caseEnvVar
// appears in CASEFILL_E2E_ALLOWED_CASES. Fill and clear are destructive,
// so a typo must never reach a production case.
func ValidateAllowlist(caseEnvVar string) string {
	allowlist := os.Getenv(AllowedCasesEnv)
	if allowlist == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", AllowedCasesEnv)
		fmt.Fprintln(os.Stderr, "Set it in .env or as an environment variable.")
		fmt.Fprintf(os.Stderr, "Example: %s=e2e-scratch\n", AllowedCasesEnv)
		os.Exit(1)
	}

	testCase := os.Getenv(caseEnvVar)
	if testCase == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", caseEnvVar)
		os.Exit(1)
	}

	for _, a := range strings.Split(allowlist, ",") {
		if strings.TrimSpace(a) == testCase {
			return testCase
		}
	}

	fmt.Fprintf(os.Stderr, "FATAL: %s=%q is not in %s=%q\n",
		caseEnvVar, testCase, AllowedCasesEnv, allowlist)
	os.Exit(1)

	return ""
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}
