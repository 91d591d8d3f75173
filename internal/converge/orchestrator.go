package converge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tonimelisma/casefill/internal/caramel"
)

// CasePlan is a validated case ready for dispatch.
type CasePlan struct {
	Case      string
	Folders   []caramel.Folder
	Documents int // -1 when the document total was not read
}

// Observer receives progress callbacks. FolderFinished calls are
// serialized per case.
type Observer interface {
	CaseStarted(plan CasePlan)
	FolderFinished(res Result)
	CaseFinished(report CaseReport)
}

// Recorder persists per-folder results, e.g. to the run log.
type Recorder interface {
	Record(ctx context.Context, res Result) error
}

type nopObserver struct{}

func (nopObserver) CaseStarted(CasePlan) {}

func (nopObserver) FolderFinished(Result) {}

func (nopObserver) CaseFinished(CaseReport) {}

// Orchestrator validates cases and feeds their folders to a Dispatcher,
// one case at a time.
type Orchestrator struct {
	client   ResourceClient
	logger   *slog.Logger
	observer Observer
	recorder Recorder

	// newController builds the per-run controller. Tests swap it to
	// inject sleep functions.
	newController func(settings Settings) *Controller
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithObserver sets the progress observer.
func WithObserver(obs Observer) OrchestratorOption {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithRecorder sets where per-folder results are persisted.
func WithRecorder(rec Recorder) OrchestratorOption {
	return func(o *Orchestrator) {
		o.recorder = rec
	}
}

// NewOrchestrator creates an Orchestrator over the given client.
func NewOrchestrator(client ResourceClient, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		client:   client,
		logger:   logger,
		observer: nopObserver{},
	}

	o.newController = func(settings Settings) *Controller {
		return NewController(o.client, settings, o.logger)
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Preflight lists every case and, when minDocuments > 0, checks that the
// case holds at least that many documents. It touches no folder. The first
// failing case aborts with a *PreflightError.
func (o *Orchestrator) Preflight(ctx context.Context, cases []string, minDocuments int) ([]CasePlan, error) {
	plans := make([]CasePlan, 0, len(cases))

	for _, name := range cases {
		folders, err := o.client.ListFolders(ctx, name)
		if err != nil {
			return nil, preflightFailure(ctx, name, err)
		}

		plan := CasePlan{Case: name, Folders: folders, Documents: -1}

		if minDocuments > 0 {
			docs, err := o.client.CaseDocumentCount(ctx, name)
			if err != nil {
				return nil, preflightFailure(ctx, name, err)
			}

			plan.Documents = docs

			if docs < minDocuments {
				return nil, &PreflightError{
					Case: name,
					Kind: ErrInsufficientDocuments,
					Err: fmt.Errorf("not enough case documents to add to folders: need %d, have %d",
						minDocuments, docs),
				}
			}
		}

		o.logger.Info("case validated",
			slog.String("case", name),
			slog.Int("folders", len(folders)),
			slog.Int("documents", plan.Documents),
		)

		plans = append(plans, plan)
	}

	return plans, nil
}

func preflightFailure(ctx context.Context, caseName string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	return &PreflightError{Case: caseName, Kind: classify(err, true), Err: err}
}

// Fill brings every folder of every case to the target count. All cases
// pass pre-flight before the first folder is touched. Per-folder failures
// are reported in the CaseReports and do not stop the run; cancellation
// returns the reports gathered so far together with the context error.
func (o *Orchestrator) Fill(ctx context.Context, cases []string, settings Settings) ([]CaseReport, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	plans, err := o.Preflight(ctx, cases, settings.Target.Count)
	if err != nil {
		return nil, err
	}

	ctrl := o.newController(settings)

	return o.dispatchAll(ctx, plans, settings.Concurrency, ctrl.Converge)
}

// Clear deletes every folder of every case. There is no convergence loop;
// each folder is a single DELETE.
func (o *Orchestrator) Clear(ctx context.Context, cases []string, concurrency int) ([]CaseReport, error) {
	if err := ValidateConcurrency(concurrency); err != nil {
		return nil, err
	}

	plans, err := o.Preflight(ctx, cases, 0)
	if err != nil {
		return nil, err
	}

	return o.dispatchAll(ctx, plans, concurrency, o.deleteFolder)
}

func (o *Orchestrator) deleteFolder(ctx context.Context, folder caramel.Folder) Result {
	res := Result{Folder: folder, Status: StatusDeleted}

	if err := o.client.DeleteFolder(ctx, folder.Case, folder.ID); err != nil {
		res.Err = folderError("delete", err)
		res.Status = StatusFailed

		if ctx.Err() != nil {
			res.Status = StatusCanceled
		}
	}

	return res
}

func (o *Orchestrator) dispatchAll(
	ctx context.Context, plans []CasePlan, concurrency int, job Job,
) ([]CaseReport, error) {
	reports := make([]CaseReport, 0, len(plans))

	for _, plan := range plans {
		o.observer.CaseStarted(plan)

		d := NewDispatcher(concurrency, o.logger)
		dr := d.Run(ctx, plan.Folders, job, func(res Result) {
			o.record(ctx, &res)
			o.observer.FolderFinished(res)
		})

		report := CaseReport{
			Case:      plan.Case,
			Documents: plan.Documents,
			Folders:   len(plan.Folders),
			Results:   dr.Results,
			Succeeded: dr.Succeeded,
			Failed:    dr.Failed,
			Canceled:  dr.Canceled,
			Peak:      dr.Peak,
		}

		o.observer.CaseFinished(report)
		reports = append(reports, report)

		if err := ctx.Err(); err != nil {
			return reports, err
		}
	}

	return reports, nil
}

// record logs a folder failure and persists the result. Persisting uses a
// context detached from cancellation so interrupted runs are still logged.
func (o *Orchestrator) record(ctx context.Context, res *Result) {
	if res.Err != nil && !errors.Is(res.Err, context.Canceled) {
		o.logger.Warn("folder failed",
			slog.String("case", res.Folder.Case),
			slog.String("folder_id", res.Folder.ID),
			slog.String("error", res.Err.Error()),
		)
	}

	if o.recorder == nil {
		return
	}

	if err := o.recorder.Record(context.WithoutCancel(ctx), *res); err != nil {
		o.logger.Error("recording folder result",
			slog.String("case", res.Folder.Case),
			slog.String("folder_id", res.Folder.ID),
			slog.String("error", err.Error()),
		)
	}
}
