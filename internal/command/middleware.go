package command

import (
	"context"
	"time"

	"katu-bot/pkg/cmd"
	"katu-bot/pkg/metrics"

	"go.uber.org/zap"
)

const defaultFailure = "❌ Ha ocurrido un error. Inténtalo más tarde."

// WithGuildOnly skips commands sent outside a guild.
func WithGuildOnly() cmd.Middleware {
	return func(next cmd.Command) cmd.Command {
		return cmd.Wrap(next, func(ctx context.Context, inv *cmd.Invocation) error {
			c, err := contextOf(inv)
			if err != nil {
				return err
			}
			if c.GuildID == "" {
				return nil
			}
			return next.Run(ctx, inv)
		})
	}
}

// WithAdminOnly replies denied to non-administrators instead of running.
func WithAdminOnly(denied string) cmd.Middleware {
	return func(next cmd.Command) cmd.Command {
		return cmd.Wrap(next, func(ctx context.Context, inv *cmd.Invocation) error {
			c, err := contextOf(inv)
			if err != nil {
				return err
			}
			if !c.IsAdmin {
				return c.Out.Reply(ctx, denied)
			}
			return next.Run(ctx, inv)
		})
	}
}

// WithCommandLog logs every execution, records its metric and turns a
// failure into the command's apology reply.
func WithCommandLog(log *zap.Logger) cmd.Middleware {
	return func(next cmd.Command) cmd.Command {
		return cmd.Wrap(next, func(ctx context.Context, inv *cmd.Invocation) error {
			start := time.Now()
			err := next.Run(ctx, inv)
			metrics.RecordCommand(next.Name(), err)

			fields := []zap.Field{
				zap.String("command", next.Name()),
				zap.Strings("args", inv.Args),
				zap.Duration("took", time.Since(start)),
			}
			c, cerr := contextOf(inv)
			if cerr == nil {
				fields = append(fields, zap.String("guild", c.GuildID), zap.String("user", c.Author.ID))
			}
			if err == nil {
				log.Info("command executed", fields...)
				return nil
			}

			log.Error("command failed", append(fields, zap.Error(err))...)
			if cerr == nil {
				msg := defaultFailure
				if f, ok := cmd.Root(next).(failer); ok {
					msg = f.FailureMessage()
				}
				if rerr := c.Out.Reply(ctx, msg); rerr != nil {
					log.Warn("failed to send failure reply", zap.Error(rerr))
				}
			}
			return err
		})
	}
}
