package converge

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/casefill/internal/caramel"
)

// DefaultCheckTolerance flags folders more than 3% away from the expected
// count.
const DefaultCheckTolerance = 0.03

// FolderCount is one folder's observed document count.
type FolderCount struct {
	Folder  caramel.Folder
	Count   int
	Err     error
	Outlier bool // outside the band, or unreadable
}

// CheckReport lists a case's folder counts in listing order.
type CheckReport struct {
	Case    string
	Folders []FolderCount
}

// Outliers returns the folders flagged as outside the expected band.
func (r *CheckReport) Outliers() []FolderCount {
	var out []FolderCount

	for _, fc := range r.Folders {
		if fc.Outlier {
			out = append(out, fc)
		}
	}

	return out
}

// CheckOptions controls Check.
type CheckOptions struct {
	Expected    int     // 0 = no expectation, nothing is an outlier unless unreadable
	Tolerance   float64 // fraction either side of Expected
	Concurrency int
}

// Check reads the document count of every folder of every case. Reads
// within a case run concurrently; a failed read is reported on that folder
// rather than aborting the case.
func (o *Orchestrator) Check(ctx context.Context, cases []string, opts CheckOptions) ([]CheckReport, error) {
	if err := ValidateConcurrency(opts.Concurrency); err != nil {
		return nil, err
	}

	if opts.Expected < 0 || opts.Tolerance < 0 || opts.Tolerance >= 1 {
		return nil, fmt.Errorf("%w: expected count %d with tolerance %g", ErrInvalidConfig, opts.Expected, opts.Tolerance)
	}

	plans, err := o.Preflight(ctx, cases, 0)
	if err != nil {
		return nil, err
	}

	reports := make([]CheckReport, 0, len(plans))

	for _, plan := range plans {
		report := CheckReport{Case: plan.Case, Folders: make([]FolderCount, len(plan.Folders))}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Concurrency)

		for i, folder := range plan.Folders {
			g.Go(func() error {
				n, readErr := o.client.FolderCount(gctx, folder.Case, folder.ID)
				if readErr != nil && gctx.Err() != nil {
					return gctx.Err()
				}

				fc := FolderCount{Folder: folder, Count: n}
				if readErr != nil {
					fc.Err = folderError("reading count", readErr)
					fc.Outlier = true
				} else {
					fc.Outlier = !withinBand(n, opts.Expected, opts.Tolerance)
				}

				report.Folders[i] = fc

				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return reports, err
		}

		reports = append(reports, report)
	}

	return reports, nil
}

// withinBand reports whether n lies strictly inside expected*(1±tol).
// Without an expectation every count is acceptable.
func withinBand(n, expected int, tol float64) bool {
	if expected <= 0 {
		return true
	}

	lo := float64(expected) * (1 - tol)
	hi := float64(expected) * (1 + tol)

	return lo < float64(n) && float64(n) < hi
}
