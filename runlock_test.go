package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/casefill/internal/config"
)

func TestAcquireRunLock_WritesPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "host.lock")

	release, err := acquireRunLock(path)
	require.NoError(t, err)

	defer release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquireRunLock_SecondAcquisitionFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.lock")

	release, err := acquireRunLock(path)
	require.NoError(t, err)

	defer release()

	release2, err := acquireRunLock(path)
	require.Error(t, err)
	assert.Nil(t, release2)
	assert.ErrorIs(t, err, errRunLocked)
	assert.Contains(t, err.Error(), "pid "+strconv.Itoa(os.Getpid()))
}

func TestAcquireRunLock_ReleaseRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.lock")

	release, err := acquireRunLock(path)
	require.NoError(t, err)

	release()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Lock can be taken again.
	release, err = acquireRunLock(path)
	require.NoError(t, err)
	release()
}

func TestAcquireRunLock_EmptyPath(t *testing.T) {
	release, err := acquireRunLock("")
	assert.Error(t, err)
	assert.Nil(t, release)
}

func TestRunLockPath_PerServer(t *testing.T) {
	a := runLockPath("/data", &config.ServerConfig{Host: "caramel.local", Port: 80})
	b := runLockPath("/data", &config.ServerConfig{Host: "caramel.local", Port: 8080})

	assert.Equal(t, filepath.Join("/data", "locks", "caramel.local_80.lock"), a)
	assert.NotEqual(t, a, b)
}
