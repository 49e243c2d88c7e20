package chat

import (
	"context"
	"time"
)

// Sink is where answers go. Reply threads onto the triggering message,
// Send posts a plain follow-up in the same channel.
type Sink interface {
	Reply(ctx context.Context, text string) error
	Send(ctx context.Context, text string) error
	Typing(ctx context.Context) error
}

// Deliver sends the first chunk as a reply and the rest as follow-ups,
// pausing delay between chunks.
func Deliver(ctx context.Context, sink Sink, chunks []string, delay time.Duration) error {
	for i, chunk := range chunks {
		if i == 0 {
			if err := sink.Reply(ctx, chunk); err != nil {
				return err
			}
			continue
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		if err := sink.Send(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// keepTyping refreshes the typing indicator until done is closed.
func keepTyping(ctx context.Context, sink Sink, interval time.Duration, done <-chan struct{}) {
	_ = sink.Typing(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = sink.Typing(ctx)
		}
	}
}
