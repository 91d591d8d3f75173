package main

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/casefill/internal/config"
	"github.com/tonimelisma/casefill/internal/converge"
	"github.com/tonimelisma/casefill/internal/runlog"
)

func TestParseCases(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"alpha", []string{"alpha"}},
		{"alpha,beta", []string{"alpha", "beta"}},
		{",alpha, beta,,", []string{"alpha", "beta"}},
	}

	for _, tt := range tests {
		got, err := parseCases(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got)
	}

	_, err := parseCases(" , ")
	assert.ErrorIs(t, err, converge.ErrInvalidConfig)
}

func TestFillSettings(t *testing.T) {
	fc := config.DefaultConfig().Fill
	fc.Tolerance = 0.95
	fc.MaxSample = 500

	s := fillSettings(&fc, 2000, 7, true, 12)
	require.NoError(t, s.Validate())
	assert.Equal(t, converge.Target{Count: 2000, Tolerance: 0.95}, s.Target)
	assert.Equal(t, 7, s.Concurrency)
	assert.Equal(t, 500, s.MaxSample)
	assert.True(t, s.Purge)
	assert.Equal(t, 12, s.MaxCycles)
	assert.Equal(t, converge.FixedBackoff{Delay: time.Second, Attempts: 10}, s.StaleBackoff)
	assert.Equal(t, converge.FixedBackoff{Delay: 500 * time.Millisecond, Attempts: 24}, s.PurgeBackoff)

	fc.StaleBackoff = config.BackoffExponential
	s = fillSettings(&fc, 2000, 7, false, 0)

	exp, ok := s.StaleBackoff.(converge.ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, time.Second, exp.Base)
	assert.Equal(t, 10, exp.Attempts)
}

func TestSummarizeAndOutcome(t *testing.T) {
	clean := []converge.CaseReport{{Succeeded: 3, Peak: 2}, {Succeeded: 4, Peak: 3}}
	sum := summarize(clean, nil)
	assert.Equal(t, runlog.Summary{Succeeded: 7, Peak: 3, Outcome: runlog.OutcomeCompleted}, sum)
	assert.NoError(t, runOutcome(nil, clean))

	partial := []converge.CaseReport{{Succeeded: 3, Failed: 1}}
	assert.Equal(t, runlog.OutcomeFailed, summarize(partial, nil).Outcome)
	assert.ErrorIs(t, runOutcome(nil, partial), errFoldersFailed)

	interrupted := []converge.CaseReport{{Succeeded: 1, Canceled: 2}}
	assert.Equal(t, runlog.OutcomeInterrupted, summarize(interrupted, nil).Outcome)
}

func TestFill_EndToEnd(t *testing.T) {
	testEnv(t)

	fake := newFakeCaramel()
	fake.addCase("alpha", 1000, 0, 50, 100)
	fake.addCase("beta", 1000, 10)

	srv := httptest.NewServer(fake)
	defer srv.Close()

	args := append(serverArgs(t, srv), "--json", "fill", "-c", "alpha,beta", "-d", "100", "-t", "2")

	stdout, _, err := execute(t, args...)
	require.NoError(t, err)

	var out fillOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, 100, out.Target)
	assert.NotEmpty(t, out.RunID)
	require.Len(t, out.Cases, 2)
	assert.Equal(t, "alpha", out.Cases[0].Case)
	assert.Equal(t, 3, out.Cases[0].Succeeded)
	assert.Equal(t, 1, out.Cases[1].Succeeded)
	assert.Equal(t, runlog.OutcomeCompleted, out.Totals.Outcome)

	for _, id := range []string{"1", "2", "3"} {
		assert.GreaterOrEqual(t, fake.count("alpha", id), 98, "folder %s", id)
	}

	// The folder already at target was never sampled.
	assert.Equal(t, 0, out.Cases[0].Results[2].Mutations)

	// The run is in the history.
	stdout, _, err = execute(t, "--json", "runs")
	require.NoError(t, err)

	var runs []runlog.Run
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, out.RunID, runs[0].ID)
	assert.Equal(t, "fill", runs[0].Command)
	assert.Equal(t, []string{"alpha", "beta"}, runs[0].Cases)
	assert.Equal(t, 4, runs[0].Succeeded)
	assert.Equal(t, runlog.OutcomeCompleted, runs[0].Outcome)
}

func TestFill_PreflightFailureTouchesNothing(t *testing.T) {
	testEnv(t)

	fake := newFakeCaramel()
	fake.addCase("alpha", 1000, 0, 0)
	fake.addCase("thin", 40, 0)

	srv := httptest.NewServer(fake)
	defer srv.Close()

	args := append(serverArgs(t, srv), "fill", "-c", "alpha,thin", "-d", "50")

	_, _, err := execute(t, args...)
	require.Error(t, err)
	assert.ErrorIs(t, err, converge.ErrInsufficientDocuments)
	assert.Zero(t, fake.samples)

	var pfErr *converge.PreflightError
	require.True(t, errors.As(err, &pfErr))
	assert.Equal(t, "thin", pfErr.Case)
}

func TestFill_UnknownCase(t *testing.T) {
	testEnv(t)

	srv := httptest.NewServer(newFakeCaramel())
	defer srv.Close()

	_, _, err := execute(t, append(serverArgs(t, srv), "fill", "-c", "nope", "-d", "5")...)
	assert.ErrorIs(t, err, converge.ErrCaseNotFound)
}

func TestFill_InvalidThreadCount(t *testing.T) {
	testEnv(t)

	srv := httptest.NewServer(newFakeCaramel())
	defer srv.Close()

	_, _, err := execute(t, append(serverArgs(t, srv), "fill", "-c", "a", "-d", "5", "-t", "101")...)
	assert.ErrorIs(t, err, converge.ErrInvalidConfig)
}

func TestFill_RequiresHost(t *testing.T) {
	testEnv(t)

	_, _, err := execute(t, "-q", "fill", "-c", "a", "-d", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.host")
}
