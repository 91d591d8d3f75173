package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/tonimelisma/casefill/internal/converge"
)

// progressPrinter reports case and folder progress on stderr. On a
// terminal it keeps a single self-overwriting line per case; otherwise it
// prints only the case banners and summaries so logs stay readable.
// FolderFinished is already serialized by the dispatcher; the mutex guards
// against a future caller that is not.
type progressPrinter struct {
	w     io.Writer
	quiet bool
	tty   bool
	verb  string // "filled", "deleted"

	mu     sync.Mutex
	total  int
	done   int
	failed int
}

func newProgressPrinter(w io.Writer, quiet bool, verb string) *progressPrinter {
	return &progressPrinter{w: w, quiet: quiet, tty: isTerminal(w), verb: verb}
}

func (p *progressPrinter) CaseStarted(plan converge.CasePlan) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total, p.done, p.failed = len(plan.Folders), 0, 0

	if p.quiet {
		return
	}

	fmt.Fprintf(p.w, "Working on '%s':\n", plan.Case)

	if plan.Documents >= 0 {
		fmt.Fprintf(p.w, "\tcontains %s documents\n", formatCount(plan.Documents))
	}

	fmt.Fprintf(p.w, "\tcontains %s folders.\n", formatCount(len(plan.Folders)))
}

func (p *progressPrinter) FolderFinished(res converge.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++

	if !res.OK() {
		p.failed++
	}

	if p.quiet || !p.tty {
		return
	}

	fmt.Fprintf(p.w, "\r\t%s/%s folders %s, %d failed",
		formatCount(p.done), formatCount(p.total), p.verb, p.failed)
}

func (p *progressPrinter) CaseFinished(report converge.CaseReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.quiet {
		return
	}

	if p.tty && p.total > 0 {
		fmt.Fprintln(p.w)
	}

	fmt.Fprintf(p.w, "Done with '%s': %d %s, %d failed, %d canceled (peak %d workers).\n",
		report.Case, report.Succeeded, p.verb, report.Failed, report.Canceled, report.Peak)
}
