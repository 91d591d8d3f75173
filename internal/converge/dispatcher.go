package converge

import (
	"context"
	"fmt"
	"log/slog"
	stdsync "sync"
	"sync/atomic"

	"github.com/tonimelisma/casefill/internal/caramel"
)

// Job processes one folder. It must honor ctx at every blocking call.
type Job func(ctx context.Context, folder caramel.Folder) Result

// DispatchReport collects the results of one Dispatcher.Run, in the order
// the folders were supplied.
type DispatchReport struct {
	Results   []Result
	Succeeded int
	Failed    int
	Canceled  int
	Peak      int
}

// Dispatcher runs a Job for every folder on a fixed pool of workers fed
// from a task queue. At most `workers` jobs are in flight at any time, and
// every folder is handled by exactly one worker.
type Dispatcher struct {
	workers int
	logger  *slog.Logger

	inFlight atomic.Int32
	peak     atomic.Int32
}

type task struct {
	index  int
	folder caramel.Folder
}

// NewDispatcher creates a Dispatcher with the given worker count, clamped
// to MinConcurrency..MaxConcurrency.
func NewDispatcher(workers int, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	workers = max(MinConcurrency, min(workers, MaxConcurrency))

	return &Dispatcher{workers: workers, logger: logger}
}

// Workers returns the pool size.
func (d *Dispatcher) Workers() int {
	return d.workers
}

// Peak returns the highest number of simultaneously running jobs seen
// since the Dispatcher was created.
func (d *Dispatcher) Peak() int {
	return int(d.peak.Load())
}

// Run queues every folder in order and blocks until all are processed.
// onResult, if non-nil, is called once per folder as it finishes; calls
// are serialized. After ctx is canceled, folders not yet started are
// reported as canceled without running the job.
func (d *Dispatcher) Run(
	ctx context.Context, folders []caramel.Folder, job Job, onResult func(Result),
) DispatchReport {
	report := DispatchReport{Results: make([]Result, len(folders))}
	if len(folders) == 0 {
		return report
	}

	queue := make(chan task, len(folders))
	for i, f := range folders {
		queue <- task{index: i, folder: f}
	}

	close(queue)

	var (
		wg stdsync.WaitGroup
		mu stdsync.Mutex
	)

	workers := min(d.workers, len(folders))

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for t := range queue {
				var res Result
				if err := ctx.Err(); err != nil {
					res = Result{Folder: t.folder, Status: StatusCanceled, Err: err}
				} else {
					res = d.execute(ctx, t.folder, job)
				}

				mu.Lock()
				report.Results[t.index] = res
				tally(&report, &res)

				if onResult != nil {
					onResult(res)
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	report.Peak = d.Peak()

	d.logger.Debug("dispatch finished",
		slog.Int("folders", len(folders)),
		slog.Int("workers", workers),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
		slog.Int("canceled", report.Canceled),
		slog.Int("peak", report.Peak),
	)

	return report
}

// execute runs one job inside the in-flight gauge. The slot is released
// on every exit path, including a panic in the job.
func (d *Dispatcher) execute(ctx context.Context, folder caramel.Folder, job Job) (res Result) {
	d.acquire()
	defer d.release()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatcher: panic in folder job",
				slog.String("case", folder.Case),
				slog.String("folder_id", folder.ID),
				slog.Any("panic", r),
			)

			res = Result{Folder: folder, Status: StatusFailed, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	return job(ctx, folder)
}

func (d *Dispatcher) acquire() {
	n := d.inFlight.Add(1)

	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (d *Dispatcher) release() {
	d.inFlight.Add(-1)
}

func tally(report *DispatchReport, res *Result) {
	switch {
	case res.OK():
		report.Succeeded++
	case res.Status == StatusCanceled:
		report.Canceled++
	default:
		report.Failed++
	}
}
