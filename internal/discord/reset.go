package discord

import (
	"context"
	"time"

	"katu-bot/internal/storage"

	"go.uber.org/zap"
)

// NextMidnightUTC returns the first 00:00 UTC strictly after now.
func NextMidnightUTC(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// RunDailyReset calls onReset with the new counter date at every UTC
// midnight until ctx is done. Counters are keyed by date, so the reset
// itself needs no data change.
func RunDailyReset(ctx context.Context, now func() time.Time, onReset func(ctx context.Context, date string)) error {
	if now == nil {
		now = time.Now
	}
	for {
		t := now()
		timer := time.NewTimer(NextMidnightUTC(t).Sub(t))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			onReset(ctx, storage.Day(now()))
		}
	}
}

// DailyReset announces the new counting day to every guild and prunes
// counters past the retention horizon.
func (b *Bot) DailyReset(ctx context.Context, date string) {
	b.log.Info("daily reset", zap.String("date", date))
	b.logs.Broadcast(ctx, b.GuildIDs(), "🔄 Reset diario realizado - Comenzando conteo para "+date)

	days := b.cfg.Storage.CountRetentionDays
	removed, err := storage.PruneOlderThan(ctx, b.store, days, b.now())
	if err != nil {
		b.log.Error("failed to prune old counters", zap.Int("retention_days", days), zap.Error(err))
		return
	}
	if removed > 0 {
		b.log.Info("pruned old counters", zap.Int("removed", removed), zap.Int("retention_days", days))
	}
}
