package converge

import (
	"context"
	"errors"
	"fmt"

	"github.com/tonimelisma/casefill/internal/caramel"
)

// Error taxonomy. Pre-flight kinds abort a run before any folder is
// touched; the others are reported per folder.
var (
	ErrCaseNotFound          = errors.New("converge: case not found")
	ErrUnauthorized          = errors.New("converge: unauthorized")
	ErrTransport             = errors.New("converge: transport error")
	ErrInsufficientDocuments = errors.New("converge: not enough case documents")
	ErrInvalidConfig         = errors.New("converge: invalid configuration")
	ErrCycleLimit            = errors.New("converge: cycle limit reached")
)

// PreflightError reports why a case failed validation. errors.Is matches
// both the taxonomy kind and the underlying cause.
type PreflightError struct {
	Case string
	Kind error
	Err  error
}

func (e *PreflightError) Error() string {
	switch {
	case errors.Is(e.Kind, ErrCaseNotFound):
		return fmt.Sprintf("case %q could not be found, check the case name's spelling", e.Case)
	case errors.Is(e.Kind, ErrUnauthorized):
		return "unauthorized: invalid login credentials, check user name and password"
	case errors.Is(e.Err, caramel.ErrUnreachable):
		return fmt.Sprintf("case %q: host not reachable: %v", e.Case, e.Err)
	default:
		return fmt.Sprintf("case %q: %v", e.Case, e.Err)
	}
}

func (e *PreflightError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// classify maps a client error onto the taxonomy. A not-found is only a
// missing case when it comes from a case-level request; on a folder it is
// an ordinary per-folder failure.
func classify(err error, caseLevel bool) error {
	switch {
	case errors.Is(err, caramel.ErrUnauthorized):
		return ErrUnauthorized
	case caseLevel && errors.Is(err, caramel.ErrNotFound):
		return ErrCaseNotFound
	default:
		return ErrTransport
	}
}

// folderError tags a per-folder failure with its taxonomy kind. Context
// errors pass through untouched so callers can detect cancellation.
func folderError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%s: %w: %w", op, classify(err, false), err)
}
