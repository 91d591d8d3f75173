package converge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tonimelisma/casefill/internal/caramel"
)

// Controller converges one folder at a time. A single Controller is shared
// by all workers of a run; it holds no per-folder state.
type Controller struct {
	client   ResourceClient
	settings Settings
	poller   *Poller
	resetter *Resetter
	logger   *slog.Logger
	nowFunc  func() time.Time
}

// NewController creates a Controller for the given run settings.
func NewController(client ResourceClient, settings Settings, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		client:   client,
		settings: settings,
		poller:   NewPoller(client, settings.StaleBackoff, logger),
		resetter: NewResetter(client, settings.PurgeBackoff, logger),
		logger:   logger,
		nowFunc:  time.Now,
	}
}

// setSleep replaces the sleep function of the poller and resetter.
func (c *Controller) setSleep(fn func(ctx context.Context, d time.Duration) error) {
	c.poller.sleepFunc = fn
	c.resetter.sleepFunc = fn
}

// Converge runs Start -> Reset (optional) -> Converging -> Done for one
// folder. Errors end this folder only and are returned in the Result.
func (c *Controller) Converge(ctx context.Context, folder caramel.Folder) Result {
	start := c.nowFunc()
	res := Result{Folder: folder}

	st, err := c.run(ctx, folder, &res)

	res.Final = st.Observed
	res.Duration = c.nowFunc().Sub(start)

	switch {
	case err == nil:
		res.Status = StatusDone
	case ctx.Err() != nil:
		res.Status = StatusCanceled
		res.Err = err
	default:
		res.Status = StatusFailed
		res.Err = err
	}

	return res
}

func (c *Controller) run(ctx context.Context, folder caramel.Folder, res *Result) (State, error) {
	var st State

	target := c.settings.Target

	initial, err := c.client.FolderCount(ctx, folder.Case, folder.ID)
	if err != nil {
		return st, folderError("reading initial count", err)
	}

	res.Initial = initial
	st.Observed = initial
	fresh := true

	if c.settings.Purge && initial > target.Count {
		out, resetErr := c.resetter.Run(ctx, folder)
		if resetErr != nil {
			return st, resetErr
		}

		res.Purged = true
		st.Observed = out.Count
		fresh = out.Polls > 0
	}

	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		if !fresh {
			count, rereads, readErr := c.poller.Read(ctx, folder, st.Previous, st.HasPrevious)
			if readErr != nil {
				if errors.Is(readErr, context.Canceled) || errors.Is(readErr, context.DeadlineExceeded) {
					return st, readErr
				}

				return st, folderError("reading count", readErr)
			}

			st.Observed = count
			st.UnchangedReads = rereads
		}

		fresh = false

		if target.Reached(st.Observed) {
			c.logger.Debug("folder converged",
				slog.String("case", folder.Case),
				slog.String("folder_id", folder.ID),
				slog.Int("count", st.Observed),
				slog.Int("target", target.Count),
				slog.Int("cycles", st.Cycles),
			)

			return st, nil
		}

		if c.settings.MaxCycles > 0 && st.Cycles >= c.settings.MaxCycles {
			return st, fmt.Errorf("%w: %d samples issued, count %d of %d",
				ErrCycleLimit, st.Cycles, st.Observed, target.Count)
		}

		chunk := min(target.Count-st.Observed, c.settings.MaxSample)

		c.logger.Debug("sampling documents",
			slog.String("case", folder.Case),
			slog.String("folder_id", folder.ID),
			slog.Int("count", st.Observed),
			slog.Int("amount", chunk),
			slog.Int("cycle", st.Cycles+1),
		)

		if err := c.client.Sample(ctx, folder.Case, folder.ID, chunk); err != nil {
			return st, folderError("sample", err)
		}

		res.Mutations++
		res.Requested += chunk
		st.Previous = st.Observed
		st.HasPrevious = true
		st.Cycles++
	}
}
