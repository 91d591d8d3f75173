package converge

import (
	"context"
	"fmt"
	stdsync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/casefill/internal/caramel"
)

func makeFolders(n int) []caramel.Folder {
	folders := make([]caramel.Folder, n)
	for i := range folders {
		folders[i] = caramel.Folder{Case: "caseA", ID: fmt.Sprintf("f%03d", i)}
	}

	return folders
}

func TestDispatcher_NeverExceedsLimit(t *testing.T) {
	var (
		inFlight atomic.Int32
		peak     atomic.Int32
		seen     stdsync.Map
	)

	job := func(_ context.Context, folder caramel.Folder) Result {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)

		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}

		_, dup := seen.LoadOrStore(folder.ID, true)
		assert.False(t, dup, "folder %s dispatched twice", folder.ID)

		time.Sleep(2 * time.Millisecond)

		return Result{Folder: folder, Status: StatusDone}
	}

	d := NewDispatcher(5, testLogger())
	report := d.Run(context.Background(), makeFolders(50), job, nil)

	assert.LessOrEqual(t, peak.Load(), int32(5))
	assert.LessOrEqual(t, report.Peak, 5)
	assert.Positive(t, report.Peak)
	assert.Equal(t, 50, report.Succeeded)
	assert.Zero(t, inFlight.Load())
}

func TestDispatcher_ResultsInListingOrder(t *testing.T) {
	folders := makeFolders(20)

	job := func(_ context.Context, folder caramel.Folder) Result {
		return Result{Folder: folder, Status: StatusDone}
	}

	var (
		mu       stdsync.Mutex
		callback int
	)

	report := NewDispatcher(4, testLogger()).Run(context.Background(), folders, job, func(Result) {
		mu.Lock()
		callback++
		mu.Unlock()
	})

	require.Len(t, report.Results, 20)

	for i, res := range report.Results {
		assert.Equal(t, folders[i], res.Folder)
	}

	assert.Equal(t, 20, callback)
}

func TestDispatcher_FailuresDoNotStopSiblings(t *testing.T) {
	job := func(_ context.Context, folder caramel.Folder) Result {
		if folder.ID == "f003" {
			return Result{Folder: folder, Status: StatusFailed, Err: ErrTransport}
		}

		return Result{Folder: folder, Status: StatusDone}
	}

	report := NewDispatcher(2, testLogger()).Run(context.Background(), makeFolders(8), job, nil)

	assert.Equal(t, 7, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Results[3].Err, ErrTransport)
}

func TestDispatcher_RecoversPanicAndReleasesSlot(t *testing.T) {
	job := func(_ context.Context, folder caramel.Folder) Result {
		if folder.ID == "f000" {
			panic("boom")
		}

		return Result{Folder: folder, Status: StatusDone}
	}

	d := NewDispatcher(1, testLogger())
	report := d.Run(context.Background(), makeFolders(3), job, nil)

	assert.Equal(t, StatusFailed, report.Results[0].Status)
	assert.Contains(t, report.Results[0].Err.Error(), "boom")
	assert.Equal(t, 2, report.Succeeded, "the single slot was released after the panic")
	assert.Equal(t, 1, d.Peak())
}

func TestDispatcher_CanceledContextSkipsQueuedFolders(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32

	job := func(_ context.Context, folder caramel.Folder) Result {
		calls.Add(1)
		return Result{Folder: folder, Status: StatusDone}
	}

	report := NewDispatcher(3, testLogger()).Run(ctx, makeFolders(10), job, nil)

	assert.Zero(t, calls.Load())
	assert.Equal(t, 10, report.Canceled)

	for _, res := range report.Results {
		assert.Equal(t, StatusCanceled, res.Status)
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
}

func TestDispatcher_CancelMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := func(_ context.Context, folder caramel.Folder) Result {
		if folder.ID == "f004" {
			cancel()
		}

		return Result{Folder: folder, Status: StatusDone}
	}

	report := NewDispatcher(1, testLogger()).Run(ctx, makeFolders(10), job, nil)

	assert.Equal(t, 5, report.Succeeded)
	assert.Equal(t, 5, report.Canceled)
}

func TestDispatcher_EmptyListing(t *testing.T) {
	report := NewDispatcher(5, testLogger()).Run(context.Background(), nil, nil, nil)

	assert.Empty(t, report.Results)
	assert.Zero(t, report.Peak)
}

func TestNewDispatcher_ClampsWorkers(t *testing.T) {
	assert.Equal(t, 1, NewDispatcher(0, nil).Workers())
	assert.Equal(t, 100, NewDispatcher(500, nil).Workers())
	assert.Equal(t, 7, NewDispatcher(7, nil).Workers())
}
