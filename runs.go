package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/casefill/internal/config"
	"github.com/tonimelisma/casefill/internal/runlog"
)

const defaultRunsLimit = 20

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show recorded fill and clear runs",
		Long: `List recent runs from the local run history, newest first. With a run ID,
show that run's per-folder results.

Examples:
  casefill runs
  casefill runs --limit 5
  casefill runs 0f8e4c1a-2b7d-4e59-9a31-5c6d7e8f9a0b --json`,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE:        runRuns,
		Args:        cobra.MaximumNArgs(1),
	}

	cmd.Flags().Int("limit", defaultRunsLimit, "maximum runs to list (0 = all)")

	return cmd
}

func runRuns(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())

	cfg, err := config.LoadOrDefault(config.ConfigPath(cc.Env, config.CLIOverrides{ConfigPath: cc.Flags.ConfigPath}))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	config.ResolvePaths(cfg)

	if _, err := os.Stat(cfg.State.DBPath); errors.Is(err, fs.ErrNotExist) {
		if len(args) == 1 {
			return fmt.Errorf("%w: %s", runlog.ErrRunNotFound, args[0])
		}

		if cc.Flags.JSON {
			return printJSON(cmd.OutOrStdout(), []runlog.Run{})
		}

		cc.Statusf("No runs recorded yet.\n")

		return nil
	}

	ctx := cmd.Context()

	store, err := runlog.Open(ctx, cfg.State.DBPath, cc.Logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		run, err := store.GetRun(ctx, args[0])
		if err != nil {
			return err
		}

		folders, err := store.FolderResults(ctx, run.ID)
		if err != nil {
			return err
		}

		if cc.Flags.JSON {
			return printJSON(cmd.OutOrStdout(), struct {
				Run     runlog.Run            `json:"run"`
				Folders []runlog.FolderRecord `json:"folders"`
			}{*run, folders})
		}

		printRunDetail(cmd.OutOrStdout(), run, folders)

		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")

	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		if runs == nil {
			runs = []runlog.Run{}
		}

		return printJSON(cmd.OutOrStdout(), runs)
	}

	if len(runs) == 0 {
		cc.Statusf("No runs recorded yet.\n")
		return nil
	}

	printRunList(cmd.OutOrStdout(), runs)

	return nil
}

func printRunList(w io.Writer, runs []runlog.Run) {
	rows := make([][]string, 0, len(runs))

	for i := range runs {
		r := &runs[i]
		rows = append(rows, []string{
			r.ID,
			r.Command,
			strings.Join(r.Cases, ","),
			targetCell(r),
			formatTime(r.StartedAt),
			runDuration(r),
			strconv.Itoa(r.Succeeded),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Canceled),
			outcomeCell(r),
		})
	}

	printTable(w, []string{"RUN", "COMMAND", "CASES", "TARGET", "STARTED", "TOOK", "OK", "FAILED", "CANCELED", "OUTCOME"}, rows)
}

func printRunDetail(w io.Writer, r *runlog.Run, folders []runlog.FolderRecord) {
	fmt.Fprintf(w, "Run:         %s\n", r.ID)
	fmt.Fprintf(w, "Command:     %s\n", r.Command)
	fmt.Fprintf(w, "Host:        %s\n", r.Host)
	fmt.Fprintf(w, "Cases:       %s\n", strings.Join(r.Cases, ","))
	fmt.Fprintf(w, "Target:      %s\n", targetCell(r))
	fmt.Fprintf(w, "Concurrency: %d (peak %d)\n", r.Concurrency, r.Peak)
	fmt.Fprintf(w, "Started:     %s\n", formatTime(r.StartedAt))
	fmt.Fprintf(w, "Took:        %s\n", runDuration(r))
	fmt.Fprintf(w, "Outcome:     %s\n", outcomeCell(r))

	if len(folders) == 0 {
		return
	}

	fmt.Fprintln(w)

	rows := make([][]string, 0, len(folders))
	for i := range folders {
		f := &folders[i]
		rows = append(rows, []string{
			f.Case, f.FolderID, f.Status, formatCount(f.Initial), formatCount(f.Final),
			strconv.Itoa(f.Mutations), formatDuration(f.Duration), f.Error,
		})
	}

	printTable(w, []string{"CASE", "FOLDER", "STATUS", "INITIAL", "FINAL", "SAMPLES", "TOOK", "ERROR"}, rows)
}

func targetCell(r *runlog.Run) string {
	if r.Target == 0 {
		return "-"
	}

	cell := formatCount(r.Target)
	if r.Purge {
		cell += " (purge)"
	}

	return cell
}

func runDuration(r *runlog.Run) string {
	if r.FinishedAt.IsZero() {
		return "-"
	}

	return formatDuration(r.FinishedAt.Sub(r.StartedAt))
}

func outcomeCell(r *runlog.Run) string {
	if r.Outcome == "" {
		return "running"
	}

	return r.Outcome
}
