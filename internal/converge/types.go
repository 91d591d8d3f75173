package converge

import (
	"context"
	"fmt"
	"time"

	"github.com/tonimelisma/casefill/internal/caramel"
)

// ResourceClient is the slice of the Caramel API the engine needs.
// Defined at the consumer; *caramel.Client satisfies it.
type ResourceClient interface {
	ListFolders(ctx context.Context, caseName string) ([]caramel.Folder, error)
	CaseDocumentCount(ctx context.Context, caseName string) (int, error)
	FolderCount(ctx context.Context, caseName, folderID string) (int, error)
	Sample(ctx context.Context, caseName, folderID string, n int) error
	Purge(ctx context.Context, caseName, folderID string) error
	DeleteFolder(ctx context.Context, caseName, folderID string) error
}

// Concurrency limits accepted for a run.
const (
	MinConcurrency = 1
	MaxConcurrency = 100
)

// DefaultTolerance accepts a folder once it holds 98% of the target.
const DefaultTolerance = 0.98

// Target is the desired document count of every folder in a run.
type Target struct {
	Count     int
	Tolerance float64
}

// Reached reports whether count is close enough to the target to stop.
func (t Target) Reached(count int) bool {
	if float64(count)/float64(t.Count) >= t.Tolerance {
		return true
	}

	return count >= t.Count
}

// Floor is the lowest count the tolerance band accepts.
func (t Target) Floor() float64 {
	return float64(t.Count) * t.Tolerance
}

// Validate rejects non-positive targets and tolerances outside (0, 1].
func (t Target) Validate() error {
	if t.Count <= 0 {
		return fmt.Errorf("%w: document count must be greater than 0, got %d", ErrInvalidConfig, t.Count)
	}

	if t.Tolerance <= 0 || t.Tolerance > 1 {
		return fmt.Errorf("%w: tolerance must be in (0, 1], got %g", ErrInvalidConfig, t.Tolerance)
	}

	return nil
}

// Settings is the immutable configuration of a fill run. It is built once
// and passed by value to every folder execution.
type Settings struct {
	Target       Target
	Concurrency  int
	MaxSample    int
	Purge        bool
	MaxCycles    int // 0 = unbounded
	StaleBackoff Backoff
	PurgeBackoff Backoff
}

// DefaultSettings returns settings for the given target count with every
// other knob at its default.
func DefaultSettings(count int) Settings {
	return Settings{
		Target:       Target{Count: count, Tolerance: DefaultTolerance},
		Concurrency:  10,
		MaxSample:    caramel.MaxSampleSize,
		StaleBackoff: DefaultStaleBackoff(),
		PurgeBackoff: DefaultPurgeBackoff(),
	}
}

// Validate checks the settings before any remote call is made.
func (s Settings) Validate() error {
	if err := s.Target.Validate(); err != nil {
		return err
	}

	if err := ValidateConcurrency(s.Concurrency); err != nil {
		return err
	}

	if s.MaxSample < 1 || s.MaxSample > caramel.MaxSampleSize {
		return fmt.Errorf("%w: max sample must be between 1 and %d, got %d",
			ErrInvalidConfig, caramel.MaxSampleSize, s.MaxSample)
	}

	if s.MaxCycles < 0 {
		return fmt.Errorf("%w: max cycles must not be negative, got %d", ErrInvalidConfig, s.MaxCycles)
	}

	if s.StaleBackoff == nil || s.PurgeBackoff == nil {
		return fmt.Errorf("%w: backoff policies must be set", ErrInvalidConfig)
	}

	return nil
}

// ValidateConcurrency checks a worker count against 1..100.
func ValidateConcurrency(n int) error {
	if n < MinConcurrency || n > MaxConcurrency {
		return fmt.Errorf("%w: thread count must be a number between %d and %d, got %d",
			ErrInvalidConfig, MinConcurrency, MaxConcurrency, n)
	}

	return nil
}

// State is the per-folder convergence state. It is owned by the single
// execution processing that folder.
type State struct {
	Observed       int
	Previous       int
	HasPrevious    bool
	UnchangedReads int
	Cycles         int
}

// Status is the terminal state of one folder execution.
type Status string

// Folder statuses.
const (
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
	StatusDeleted  Status = "deleted"
)

// Result is the outcome of one folder execution.
type Result struct {
	Folder    caramel.Folder
	Status    Status
	Initial   int
	Final     int
	Mutations int
	Requested int
	Purged    bool
	Err       error
	Duration  time.Duration
}

// OK reports whether the folder finished without error.
func (r *Result) OK() bool {
	return r.Status == StatusDone || r.Status == StatusDeleted
}

// CaseReport aggregates one case's run.
type CaseReport struct {
	Case      string
	Documents int
	Folders   int
	Results   []Result
	Succeeded int
	Failed    int
	Canceled  int
	Peak      int
}
