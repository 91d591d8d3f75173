package converge

import (
	"context"
	"log/slog"
	"time"

	"github.com/tonimelisma/casefill/internal/caramel"
)

// CountReader reads a folder's visible document count.
type CountReader interface {
	FolderCount(ctx context.Context, caseName, folderID string) (int, error)
}

// Poller compensates for read-after-write lag. After a sample, the first
// reads often still show the pre-sample count; the poller keeps re-reading
// while that is the case, up to the policy's attempt bound, then accepts
// whatever it sees. It cannot tell "not visible yet" from "no effect".
type Poller struct {
	reader    CountReader
	policy    Backoff
	logger    *slog.Logger
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a Poller with the given re-read policy.
func NewPoller(reader CountReader, policy Backoff, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		reader:    reader,
		policy:    policy,
		logger:    logger,
		sleepFunc: timeSleep,
	}
}

// Read returns the folder's count and the number of re-reads spent waiting
// for it to move away from previous. Without a previous value it reads once.
func (p *Poller) Read(ctx context.Context, folder caramel.Folder, previous int, hasPrevious bool) (int, int, error) {
	count, err := p.reader.FolderCount(ctx, folder.Case, folder.ID)
	if err != nil {
		return 0, 0, err
	}

	if !hasPrevious {
		return count, 0, nil
	}

	rereads := 0
	for count == previous && rereads < p.policy.MaxAttempts() {
		delay := p.policy.NextDelay(rereads)
		if err := p.sleepFunc(ctx, delay); err != nil {
			return count, rereads, err
		}

		rereads++

		count, err = p.reader.FolderCount(ctx, folder.Case, folder.ID)
		if err != nil {
			return 0, rereads, err
		}
	}

	if count == previous && rereads > 0 {
		p.logger.Debug("count unchanged after sample, accepting",
			slog.String("case", folder.Case),
			slog.String("folder_id", folder.ID),
			slog.Int("count", count),
			slog.Int("rereads", rereads),
		)
	}

	return count, rereads, nil
}

// timeSleep waits for the given duration or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
