package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/casefill/internal/converge"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report folder document counts",
		Long: `Read the document count of every folder in each case. With --doc-count,
only folders outside the tolerance band (default ±3%) of that count are
listed, along with folders whose count could not be read.

Examples:
  casefill check -c alpha
  casefill check -c alpha,beta -d 5000 --json`,
		RunE: runCheck,
		Args: cobra.NoArgs,
	}

	cmd.Flags().StringP("cases", "c", "", "case names, comma separated")
	cmd.Flags().IntP("doc-count", "d", 0, "expected documents per folder (list only outliers)")
	cmd.Flags().IntP("thread-count", "t", 0, "concurrent count reads, 1-100 (default from config)")

	_ = cmd.MarkFlagRequired("cases")

	return cmd
}

type checkFolderJSON struct {
	Case     string `json:"case"`
	FolderID string `json:"folder_id"`
	Count    int    `json:"count"`
	Outlier  bool   `json:"outlier"`
	Error    string `json:"error,omitempty"`
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	cases, err := parseCases(flagString(cmd, "cases"))
	if err != nil {
		return err
	}

	expected, _ := cmd.Flags().GetInt("doc-count")

	concurrency := cc.Cfg.Check.Concurrency
	if cmd.Flags().Changed("thread-count") {
		concurrency, _ = cmd.Flags().GetInt("thread-count")
	}

	printServerBanner(cc)

	ctx, stop := shutdownContext(cmd.Context(), cc.Logger)
	defer stop()
	orch := converge.NewOrchestrator(newCaramelClient(cc.Cfg, cc.Logger), cc.Logger)

	reports, err := orch.Check(ctx, cases, converge.CheckOptions{
		Expected:    expected,
		Tolerance:   cc.Cfg.Check.Tolerance,
		Concurrency: concurrency,
	})
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printCheckJSON(cmd.OutOrStdout(), reports, expected > 0)
	}

	for i := range reports {
		printCheckReport(cmd.OutOrStdout(), cc, &reports[i], expected, cc.Cfg.Check.Tolerance)
	}

	return nil
}

// printCheckReport lists a case's folders: every folder without an
// expected count, only outliers with one.
func printCheckReport(w io.Writer, cc *CLIContext, r *converge.CheckReport, expected int, tol float64) {
	cc.Statusf("Working on '%s': contains %s folders.\n", r.Case, formatCount(len(r.Folders)))

	folders := r.Folders
	if expected > 0 {
		cc.Statusf("Listing folders outside %g%% of %s documents...\n", tol*100, formatCount(expected))
		folders = r.Outliers()
	}

	if len(folders) > 0 {
		rows := make([][]string, 0, len(folders))

		for _, fc := range folders {
			count := formatCount(fc.Count)
			if fc.Err != nil {
				count = "error: " + fc.Err.Error()
			}

			rows = append(rows, []string{r.Case, fc.Folder.ID, count})
		}

		printTable(w, []string{"CASE", "FOLDER", "DOCUMENTS"}, rows)
	}

	cc.Statusf("Done checking '%s'!\n", r.Case)
}

func printCheckJSON(w io.Writer, reports []converge.CheckReport, outliersOnly bool) error {
	out := []checkFolderJSON{}

	for i := range reports {
		folders := reports[i].Folders
		if outliersOnly {
			folders = reports[i].Outliers()
		}

		for _, fc := range folders {
			fj := checkFolderJSON{
				Case:     reports[i].Case,
				FolderID: fc.Folder.ID,
				Count:    fc.Count,
				Outlier:  fc.Outlier,
			}

			if fc.Err != nil {
				fj.Error = fc.Err.Error()
			}

			out = append(out, fj)
		}
	}

	if err := printJSON(w, out); err != nil {
		return fmt.Errorf("check: %w", err)
	}

	return nil
}
