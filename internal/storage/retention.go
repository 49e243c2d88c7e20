package storage

import (
	"context"
	"time"
)

// PruneOlderThan deletes counters older than days full days before now.
// days <= 0 keeps everything.
func PruneOlderThan(ctx context.Context, s Storage, days int, now time.Time) (int, error) {
	if days <= 0 {
		return 0, nil
	}
	return s.PruneBefore(ctx, Day(now.AddDate(0, 0, -days)))
}
