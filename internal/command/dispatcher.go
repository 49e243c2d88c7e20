package command

import (
	"context"
	"fmt"
	"strings"

	"katu-bot/pkg/cmd"

	"go.uber.org/zap"
)

// Dispatcher parses prefix commands and runs them from a registry.
type Dispatcher struct {
	registry *cmd.Registry
	prefix   string
	log      *zap.Logger
}

func NewDispatcher(r *cmd.Registry, prefix string, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{registry: r, prefix: prefix, log: log.Named("command")}
}

// Dispatch runs the command in content. It reports whether content
// carried the prefix; such messages are commands even when unknown and
// are not counted.
func (d *Dispatcher) Dispatch(ctx context.Context, content string, c *Context) (bool, error) {
	if !d.IsCommand(content) {
		return false, nil
	}
	name, args, ok := cmd.Parse(d.prefix, content)
	if !ok {
		return true, nil
	}
	command := d.registry.Get(name)
	if command == nil {
		d.log.Debug("unknown command", zap.String("command", name), zap.String("guild", c.GuildID))
		return true, nil
	}
	if err := command.Run(ctx, &cmd.Invocation{Name: name, Args: args, Data: c}); err != nil {
		return true, fmt.Errorf("command %s: %w", command.Name(), err)
	}
	return true, nil
}

// IsCommand reports whether content starts with the command prefix.
func (d *Dispatcher) IsCommand(content string) bool {
	content = strings.TrimSpace(content)
	return len(content) >= len(d.prefix) && strings.EqualFold(content[:len(d.prefix)], d.prefix)
}

// Register adds every command to r with the standard middleware stack.
func Register(r *cmd.Registry, deps Deps) error {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	log := deps.Logger.Named("command")

	guarded := func(c cmd.Command, extra ...cmd.Middleware) cmd.Command {
		mws := append([]cmd.Middleware{WithCommandLog(log), WithGuildOnly()}, extra...)
		return cmd.Apply(c, mws...)
	}

	commands := []cmd.Command{
		guarded(&RankingCommand{deps: deps}),
		guarded(&MyStatsCommand{deps: deps}),
		guarded(&StatsCommand{deps: deps}),
		guarded(&SetLogCommand{deps: deps},
			WithAdminOnly("❌ Solo los administradores pueden configurar el canal de logs.")),
		guarded(&RemoveLogCommand{deps: deps},
			WithAdminOnly("❌ Solo los administradores pueden desactivar los logs.")),
		guarded(&HelpCommand{deps: deps, registry: r}),
		guarded(&ResetChatCommand{deps: deps}),
		guarded(&AIStatsCommand{deps: deps}),
	}
	for _, c := range commands {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
