package history

import (
	"context"
	"time"
)

// Logger is the subset of the structured logger the pruner needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// RunPruner enforces the retention cap: it prunes aged history rows once
// immediately and then at every interval tick, until ctx is cancelled.
// Blocks; run it in a goroutine.
func RunPruner(ctx context.Context, repo *SQLiteRepository, retention, interval time.Duration, logger Logger) {
	prune := func() {
		deleted, err := repo.Prune(ctx, retention)
		if err != nil {
			logger.Warn("routing history prune failed", "error", err)
			return
		}
		if deleted > 0 {
			logger.Info("routing history pruned",
				"deleted", deleted,
				"retention", retention.String(),
			)
		}
	}

	prune()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
