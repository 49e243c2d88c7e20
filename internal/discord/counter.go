package discord

import (
	"context"
	"time"

	"katu-bot/internal/storage"
	"katu-bot/pkg/metrics"
)

// CountMessage adds one message to the author's counter for the UTC day of
// now. It reports whether this was the author's first message that day.
func CountMessage(ctx context.Context, store storage.Storage, now time.Time, guildID, userID, username string) (bool, error) {
	c, err := store.IncrementMessageCount(ctx, storage.Day(now), guildID, userID, username)
	if err != nil {
		return false, err
	}
	metrics.MessagesCounted.Inc()
	return c.Count == 1, nil
}
