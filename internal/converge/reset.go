package converge

import (
	"context"
	"log/slog"
	"time"

	"github.com/tonimelisma/casefill/internal/caramel"
)

// Purger empties a folder and reads its count back.
type Purger interface {
	CountReader
	Purge(ctx context.Context, caseName, folderID string) error
}

// ResetOutcome describes one purge attempt.
type ResetOutcome struct {
	Polls   int  // count reads after the purge request
	Count   int  // last observed count
	Drained bool // count reached zero within the poll bound
}

// Resetter runs the optional purge phase for folders above target.
type Resetter struct {
	client    Purger
	policy    Backoff
	logger    *slog.Logger
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewResetter creates a Resetter that polls according to policy.
func NewResetter(client Purger, policy Backoff, logger *slog.Logger) *Resetter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resetter{
		client:    client,
		policy:    policy,
		logger:    logger,
		sleepFunc: timeSleep,
	}
}

// Run purges the folder, then polls until the count reads zero or the
// policy's attempts are used up. Running out of polls is not an error:
// the caller continues from the last observed count.
func (r *Resetter) Run(ctx context.Context, folder caramel.Folder) (ResetOutcome, error) {
	var out ResetOutcome

	if err := r.client.Purge(ctx, folder.Case, folder.ID); err != nil {
		return out, folderError("purge", err)
	}

	for out.Polls < r.policy.MaxAttempts() {
		if err := r.sleepFunc(ctx, r.policy.NextDelay(out.Polls)); err != nil {
			return out, err
		}

		out.Polls++

		count, err := r.client.FolderCount(ctx, folder.Case, folder.ID)
		if err != nil {
			return out, folderError("reading count after purge", err)
		}

		out.Count = count

		if count == 0 {
			out.Drained = true

			r.logger.Debug("folder purged",
				slog.String("case", folder.Case),
				slog.String("folder_id", folder.ID),
				slog.Int("polls", out.Polls),
			)

			return out, nil
		}
	}

	r.logger.Warn("purge not visible within poll bound, continuing",
		slog.String("case", folder.Case),
		slog.String("folder_id", folder.ID),
		slog.Int("count", out.Count),
		slog.Int("polls", out.Polls),
	)

	return out, nil
}
