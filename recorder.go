package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tonimelisma/casefill/internal/converge"
	"github.com/tonimelisma/casefill/internal/runlog"
)

// runRecorder persists folder results of one run. It satisfies
// converge.Recorder.
type runRecorder struct {
	store *runlog.Store
	runID string
}

func (r *runRecorder) Record(ctx context.Context, res converge.Result) error {
	rec := runlog.FolderRecord{
		RunID:     r.runID,
		Case:      res.Folder.Case,
		FolderID:  res.Folder.ID,
		Status:    string(res.Status),
		Initial:   res.Initial,
		Final:     res.Final,
		Mutations: res.Mutations,
		Requested: res.Requested,
		Purged:    res.Purged,
		Duration:  res.Duration,
	}

	if res.Err != nil {
		rec.Error = res.Err.Error()
	}

	return r.store.RecordFolder(ctx, rec)
}

// startRun opens the run log and begins a run when state.record_runs is
// on. A run log that cannot be opened is logged and skipped: history is
// not worth failing a fill over. The returned recorder is nil when
// nothing is recorded.
func startRun(ctx context.Context, cc *CLIContext, run runlog.Run) *runRecorder {
	if !cc.Cfg.State.RecordRuns {
		return nil
	}

	store, err := runlog.Open(ctx, cc.Cfg.State.DBPath, cc.Logger)
	if err != nil {
		cc.Logger.Warn("run history disabled", slog.String("error", err.Error()))
		return nil
	}

	run.Host = serverAddr(&cc.Cfg.Server)

	id, err := store.BeginRun(ctx, run)
	if err != nil {
		cc.Logger.Warn("run history disabled", slog.String("error", err.Error()))
		store.Close()

		return nil
	}

	cc.Logger.Debug("run started", slog.String("run_id", id), slog.String("command", run.Command))

	return &runRecorder{store: store, runID: id}
}

// finish writes the run totals and closes the store. Safe on a nil
// recorder.
func (r *runRecorder) finish(ctx context.Context, logger *slog.Logger, reports []converge.CaseReport, runErr error) {
	if r == nil {
		return
	}

	defer r.store.Close()

	sum := summarize(reports, runErr)

	if err := r.store.FinishRun(context.WithoutCancel(ctx), r.runID, sum); err != nil {
		logger.Warn("finishing run record", slog.String("run_id", r.runID), slog.String("error", err.Error()))
	}
}

// summarize totals case reports into a run summary.
func summarize(reports []converge.CaseReport, runErr error) runlog.Summary {
	var sum runlog.Summary

	for i := range reports {
		sum.Succeeded += reports[i].Succeeded
		sum.Failed += reports[i].Failed
		sum.Canceled += reports[i].Canceled
		sum.Peak = max(sum.Peak, reports[i].Peak)
	}

	switch {
	case errors.Is(runErr, context.Canceled) || sum.Canceled > 0:
		sum.Outcome = runlog.OutcomeInterrupted
	case runErr != nil || sum.Failed > 0:
		sum.Outcome = runlog.OutcomeFailed
	default:
		sum.Outcome = runlog.OutcomeCompleted
	}

	return sum
}
