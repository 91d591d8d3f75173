package main

import (
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/casefill/internal/converge"
	"github.com/tonimelisma/casefill/internal/runlog"
)

func newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every folder of the given cases",
		Long: `Delete every folder (up to 10,000 per case) of each case. Folders are
deleted through the same bounded worker pool as fill; the default of one
worker is deliberate, as the service handles parallel deletes poorly.

Examples:
  casefill clear -c scratch
  casefill clear -c scratch,scratch2 -t 4`,
		RunE: runClear,
		Args: cobra.NoArgs,
	}

	cmd.Flags().StringP("cases", "c", "", "case names, comma separated")
	cmd.Flags().IntP("thread-count", "t", 0, "concurrent deletes, 1-100 (default from config)")

	_ = cmd.MarkFlagRequired("cases")

	return cmd
}

func runClear(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	cases, err := parseCases(flagString(cmd, "cases"))
	if err != nil {
		return err
	}

	concurrency := cc.Cfg.Clear.Concurrency
	if cmd.Flags().Changed("thread-count") {
		concurrency, _ = cmd.Flags().GetInt("thread-count")
	}

	if err := converge.ValidateConcurrency(concurrency); err != nil {
		return err
	}

	printServerBanner(cc)

	release, err := acquireRunLock(runLockPath(filepath.Dir(cc.Cfg.State.DBPath), &cc.Cfg.Server))
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := shutdownContext(cmd.Context(), cc.Logger)
	defer stop()

	rec := startRun(ctx, cc, runlog.Run{Command: "clear", Cases: cases, Concurrency: concurrency})

	opts := []converge.OrchestratorOption{
		converge.WithObserver(newProgressPrinter(cmd.ErrOrStderr(), cc.Flags.Quiet, "deleted")),
	}
	if rec != nil {
		opts = append(opts, converge.WithRecorder(rec))
	}

	orch := converge.NewOrchestrator(newCaramelClient(cc.Cfg, cc.Logger), cc.Logger, opts...)

	reports, runErr := orch.Clear(ctx, cases, concurrency)
	rec.finish(ctx, cc.Logger, reports, runErr)

	var pfErr *converge.PreflightError
	if errors.As(runErr, &pfErr) {
		return runErr
	}

	if err := printRunReports(cmd.OutOrStdout(), cc, rec, nil, reports); err != nil {
		return err
	}

	return runOutcome(runErr, reports)
}
