package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/casefill/internal/config"
	"github.com/tonimelisma/casefill/internal/runlog"
)

func TestPrintRunList(t *testing.T) {
	start := time.Date(2020, time.June, 1, 9, 0, 0, 0, time.Local)

	var buf bytes.Buffer

	printRunList(&buf, []runlog.Run{
		{
			ID: "r1", Command: "fill", Cases: []string{"a", "b"}, Target: 5000, Purge: true,
			StartedAt: start, FinishedAt: start.Add(90 * time.Second),
			Succeeded: 10, Failed: 1, Outcome: runlog.OutcomeFailed,
		},
		{ID: "r2", Command: "clear", Cases: []string{"c"}, StartedAt: start},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[1], "5,000 (purge)")
	assert.Contains(t, lines[1], "1m30s")
	assert.Contains(t, lines[1], "failed")
	assert.Contains(t, lines[2], "running")
}

func TestPrintRunDetail(t *testing.T) {
	start := time.Date(2020, time.June, 1, 9, 0, 0, 0, time.Local)

	var buf bytes.Buffer

	printRunDetail(&buf, &runlog.Run{
		ID: "r1", Command: "fill", Host: "h:80", Cases: []string{"a"}, Target: 100, Concurrency: 4, Peak: 3,
		StartedAt: start, FinishedAt: start.Add(2 * time.Second), Outcome: runlog.OutcomeCompleted,
	}, []runlog.FolderRecord{
		{Case: "a", FolderID: "7", Status: "done", Initial: 0, Final: 99, Mutations: 1, Duration: 250 * time.Millisecond},
	})

	out := buf.String()
	assert.Contains(t, out, "Concurrency: 4 (peak 3)")
	assert.Contains(t, out, "Outcome:     completed")
	assert.Contains(t, out, "a     7       done")
	assert.Contains(t, out, "250ms")
}

func TestRuns_EmptyHistory(t *testing.T) {
	testEnv(t)

	stdout, _, err := execute(t, "-q", "--json", "runs")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", stdout)
}

func TestRuns_UnknownID(t *testing.T) {
	testEnv(t)

	store, err := runlog.Open(context.Background(), config.DefaultDBPath(), nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, _, err = execute(t, "-q", "runs", "does-not-exist")
	assert.ErrorIs(t, err, runlog.ErrRunNotFound)
}
