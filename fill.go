package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/casefill/internal/config"
	"github.com/tonimelisma/casefill/internal/converge"
	"github.com/tonimelisma/casefill/internal/runlog"
)

// Exponential stale backoff shape; the base delay and attempt count come
// from [fill].
const (
	staleBackoffFactor = 2.0
	maxStaleDelay      = 30 * time.Second
)

func newFillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Bring every folder of the given cases to a target document count",
		Long: `Add random case documents to every folder of each case until the folder
holds at least the tolerance fraction (default 98%) of the target count.

All cases are validated first: each must exist, be readable with the given
credentials, and hold at least the target number of documents. No folder is
touched if any case fails validation.

Examples:
  casefill fill -c alpha,beta -d 5000
  casefill fill -c alpha -d 5000 -t 25 --purge`,
		RunE: runFill,
		Args: cobra.NoArgs,
	}

	cmd.Flags().StringP("cases", "c", "", "case names, comma separated")
	cmd.Flags().IntP("doc-count", "d", 0, "target documents per folder")
	cmd.Flags().IntP("thread-count", "t", 0, "folders processed concurrently, 1-100 (default from config)")
	cmd.Flags().Bool("purge", false, "empty folders above the target before filling")
	cmd.Flags().Int("max-cycles", 0, "stop a folder after this many sample cycles (0 = unbounded)")

	_ = cmd.MarkFlagRequired("cases")
	_ = cmd.MarkFlagRequired("doc-count")

	return cmd
}

// fillOutput is the JSON shape of a fill run.
type fillOutput struct {
	RunID  string         `json:"run_id,omitempty"`
	Target int            `json:"target,omitempty"`
	Floor  float64        `json:"floor,omitempty"`
	Cases  []caseJSON     `json:"cases"`
	Totals runlog.Summary `json:"totals"`
}

type caseJSON struct {
	Case      string       `json:"case"`
	Documents int          `json:"documents,omitempty"`
	Folders   int          `json:"folders"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Canceled  int          `json:"canceled"`
	Peak      int          `json:"peak_workers"`
	Results   []folderJSON `json:"results"`
}

type folderJSON struct {
	FolderID   string `json:"folder_id"`
	Status     string `json:"status"`
	Initial    int    `json:"initial"`
	Final      int    `json:"final"`
	Mutations  int    `json:"mutations"`
	Requested  int    `json:"requested"`
	Purged     bool   `json:"purged,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

func runFill(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	cases, err := parseCases(flagString(cmd, "cases"))
	if err != nil {
		return err
	}

	target, _ := cmd.Flags().GetInt("doc-count")
	purge, _ := cmd.Flags().GetBool("purge")

	concurrency := cc.Cfg.Fill.Concurrency
	if cmd.Flags().Changed("thread-count") {
		concurrency, _ = cmd.Flags().GetInt("thread-count")
	}

	maxCycles := cc.Cfg.Fill.MaxCycles
	if cmd.Flags().Changed("max-cycles") {
		maxCycles, _ = cmd.Flags().GetInt("max-cycles")
	}

	settings := fillSettings(&cc.Cfg.Fill, target, concurrency, purge, maxCycles)
	if err := settings.Validate(); err != nil {
		return err
	}

	printServerBanner(cc)
	cc.Statusf("Plan to bring folders in case(s) to within %g%% (%s) of %s random documents\n",
		settings.Target.Tolerance*100, formatCount(int(settings.Target.Floor())), formatCount(target))

	release, err := acquireRunLock(runLockPath(filepath.Dir(cc.Cfg.State.DBPath), &cc.Cfg.Server))
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := shutdownContext(cmd.Context(), cc.Logger)
	defer stop()

	rec := startRun(ctx, cc, runlog.Run{
		Command:     "fill",
		Cases:       cases,
		Target:      target,
		Concurrency: concurrency,
		Purge:       purge,
	})

	opts := []converge.OrchestratorOption{
		converge.WithObserver(newProgressPrinter(cmd.ErrOrStderr(), cc.Flags.Quiet, "filled")),
	}
	if rec != nil {
		opts = append(opts, converge.WithRecorder(rec))
	}

	orch := converge.NewOrchestrator(newCaramelClient(cc.Cfg, cc.Logger), cc.Logger, opts...)

	reports, runErr := orch.Fill(ctx, cases, settings)
	rec.finish(ctx, cc.Logger, reports, runErr)

	var pfErr *converge.PreflightError
	if errors.As(runErr, &pfErr) {
		return runErr
	}

	if err := printRunReports(cmd.OutOrStdout(), cc, rec, &settings.Target, reports); err != nil {
		return err
	}

	return runOutcome(runErr, reports)
}

// fillSettings builds the immutable run settings from the [fill] section
// and per-invocation flags.
func fillSettings(fc *config.FillConfig, target, concurrency int, purge bool, maxCycles int) converge.Settings {
	s := converge.DefaultSettings(target)
	s.Target.Tolerance = fc.Tolerance
	s.Concurrency = concurrency
	s.MaxSample = fc.MaxSample
	s.Purge = purge
	s.MaxCycles = maxCycles
	s.PurgeBackoff = converge.FixedBackoff{Delay: fc.PurgePollDuration(), Attempts: fc.PurgePollAttempts}

	switch fc.StaleBackoff {
	case config.BackoffExponential:
		s.StaleBackoff = converge.ExponentialBackoff{
			Base:     fc.StalePollDuration(),
			Max:      maxStaleDelay,
			Factor:   staleBackoffFactor,
			Attempts: fc.StalePollAttempts,
		}
	default:
		s.StaleBackoff = converge.FixedBackoff{Delay: fc.StalePollDuration(), Attempts: fc.StalePollAttempts}
	}

	return s
}

// parseCases splits a comma-separated case list, ignoring empty entries
// from stray or trailing commas.
func parseCases(raw string) ([]string, error) {
	var cases []string

	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cases = append(cases, c)
		}
	}

	if len(cases) == 0 {
		return nil, fmt.Errorf("%w: at least one case name is required", converge.ErrInvalidConfig)
	}

	return cases, nil
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

// printServerBanner echoes the connection parameters before any request.
func printServerBanner(cc *CLIContext) {
	cc.Statusf("Host name: %s\n", cc.Cfg.Server.Host)
	cc.Statusf("Port number: %d\n", cc.Cfg.Server.Port)
	cc.Statusf("User name: %s\n", cc.Cfg.Server.Username)
}

// printRunReports writes the final per-case results of fill or clear.
// target is nil for clear.
func printRunReports(
	w io.Writer, cc *CLIContext, rec *runRecorder, target *converge.Target, reports []converge.CaseReport,
) error {
	if cc.Flags.JSON {
		out := fillOutput{Cases: make([]caseJSON, 0, len(reports)), Totals: summarize(reports, nil)}

		if rec != nil {
			out.RunID = rec.runID
		}

		if target != nil {
			out.Target = target.Count
			out.Floor = target.Floor()
		}

		for i := range reports {
			out.Cases = append(out.Cases, toCaseJSON(&reports[i]))
		}

		return printJSON(w, out)
	}

	for i := range reports {
		failed := failedRows(&reports[i])
		if len(failed) == 0 {
			continue
		}

		fmt.Fprintf(w, "Folders not completed in '%s':\n", reports[i].Case)
		printTable(w, []string{"FOLDER", "STATUS", "COUNT", "ERROR"}, failed)
	}

	if rec != nil {
		cc.Statusf("Run %s recorded.\n", rec.runID)
	}

	return nil
}

func failedRows(report *converge.CaseReport) [][]string {
	var rows [][]string

	for i := range report.Results {
		res := &report.Results[i]
		if res.OK() {
			continue
		}

		msg := ""
		if res.Err != nil {
			msg = res.Err.Error()
		}

		rows = append(rows, []string{res.Folder.ID, string(res.Status), formatCount(res.Final), msg})
	}

	return rows
}

func toCaseJSON(r *converge.CaseReport) caseJSON {
	cj := caseJSON{
		Case:      r.Case,
		Folders:   r.Folders,
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
		Canceled:  r.Canceled,
		Peak:      r.Peak,
		Results:   make([]folderJSON, 0, len(r.Results)),
	}

	if r.Documents > 0 {
		cj.Documents = r.Documents
	}

	for i := range r.Results {
		res := &r.Results[i]
		fj := folderJSON{
			FolderID:   res.Folder.ID,
			Status:     string(res.Status),
			Initial:    res.Initial,
			Final:      res.Final,
			Mutations:  res.Mutations,
			Requested:  res.Requested,
			Purged:     res.Purged,
			DurationMS: res.Duration.Milliseconds(),
		}

		if res.Err != nil {
			fj.Error = res.Err.Error()
		}

		cj.Results = append(cj.Results, fj)
	}

	return cj
}

// runOutcome maps a finished run to the command's error: cancellation is
// reported as such, per-folder failures as errFoldersFailed.
func runOutcome(runErr error, reports []converge.CaseReport) error {
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("interrupted: %w", runErr)
		}

		return runErr
	}

	for i := range reports {
		if reports[i].Failed > 0 || reports[i].Canceled > 0 {
			return errFoldersFailed
		}
	}

	return nil
}
