package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/tonimelisma/casefill/internal/config"
)

const (
	lockFilePerms = 0o644
	lockDirPerms  = 0o755
	lockDirName   = "locks"
)

// errRunLocked is returned when another process holds the run lock for
// the same server.
var errRunLocked = errors.New("another casefill run against this server is active")

// runLockPath returns the lock file for a server. Mutating runs (fill,
// clear) against the same host:port are serialized through it; two fills
// racing on one case would oversample its folders.
func runLockPath(dataDir string, s *config.ServerConfig) string {
	name := strings.NewReplacer("/", "_", ":", "_").Replace(serverAddr(s)) + ".lock"

	return filepath.Join(dataDir, lockDirName, name)
}

// acquireRunLock takes a non-blocking exclusive flock on path and writes
// the current PID into it. The returned release func unlocks and removes
// the file.
func acquireRunLock(path string) (release func(), err error) {
	if path == "" {
		return nil, errors.New("run lock path is empty: cannot determine data directory")
	}

	dir := filepath.Dir(path)
	if mkdirErr := os.MkdirAll(dir, lockDirPerms); mkdirErr != nil {
		return nil, fmt.Errorf("creating lock directory: %w", mkdirErr)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFilePerms)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()

		if pid, readErr := readLockPID(path); readErr == nil {
			return nil, fmt.Errorf("%w (pid %d holds %s)", errRunLocked, pid, path)
		}

		return nil, fmt.Errorf("%w (could not lock %s)", errRunLocked, path)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncating lock file: %w", err)
	}

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing lock file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("syncing lock file: %w", err)
	}

	return func() {
		os.Remove(path)
		f.Close()
	}, nil
}

// readLockPID reads the PID written by the lock holder.
func readLockPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading lock file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in %s: %w", path, err)
	}

	return pid, nil
}
