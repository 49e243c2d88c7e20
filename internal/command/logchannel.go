package command

import (
	"context"
	"fmt"

	"katu-bot/pkg/cmd"
)

// SetLogCommand points the guild's bot log at a mentioned text channel.
type SetLogCommand struct {
	deps Deps
}

func (c *SetLogCommand) Name() string        { return "setlog" }
func (c *SetLogCommand) Description() string { return "Configurar canal de logs" }
func (c *SetLogCommand) Category() string    { return categoryAdmins }
func (c *SetLogCommand) Usage() string       { return "setlog #canal" }
func (c *SetLogCommand) FailureMessage() string {
	return "❌ Error al configurar el canal de logs. Inténtalo más tarde."
}

func (c *SetLogCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	mc, err := contextOf(inv)
	if err != nil {
		return err
	}
	if len(mc.Channels) == 0 {
		return mc.Out.Reply(ctx, fmt.Sprintf("❌ Debes mencionar un canal. Ejemplo: `%ssetlog #bot-logs`", c.deps.Prefix))
	}
	channel := mc.Channels[0]
	if !channel.Text {
		return mc.Out.Reply(ctx, "❌ El canal debe ser un canal de texto.")
	}

	if _, err := c.deps.Store.SetLogChannel(ctx, mc.GuildID, channel.ID); err != nil {
		return err
	}
	embed := newEmbed("✅ Canal de Logs Configurado", fmt.Sprintf("Canal de logs establecido en <#%s>", channel.ID), mc.Now)
	if err := mc.Out.ReplyEmbed(ctx, embed); err != nil {
		return err
	}
	logToGuild(ctx, c.deps, mc, "✅ Canal de logs configurado por "+mc.Author.Username)
	return nil
}

// RemoveLogCommand disables the guild's bot log.
type RemoveLogCommand struct {
	deps Deps
}

func (c *RemoveLogCommand) Name() string        { return "removelog" }
func (c *RemoveLogCommand) Description() string { return "Desactivar logs del bot" }
func (c *RemoveLogCommand) Category() string    { return categoryAdmins }
func (c *RemoveLogCommand) Usage() string       { return "removelog" }
func (c *RemoveLogCommand) FailureMessage() string {
	return "❌ Error al desactivar los logs. Inténtalo más tarde."
}

func (c *RemoveLogCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	mc, err := contextOf(inv)
	if err != nil {
		return err
	}
	cfg, ok, err := c.deps.Store.GuildConfig(ctx, mc.GuildID)
	if err != nil {
		return err
	}
	if !ok || cfg.LogChannelID == "" {
		return mc.Out.Reply(ctx, "❌ No hay un canal de logs configurado.")
	}

	// the last line goes out while the channel is still configured
	logToGuild(ctx, c.deps, mc, "❌ Logs desactivados por "+mc.Author.Username)

	if _, err := c.deps.Store.SetLogChannel(ctx, mc.GuildID, ""); err != nil {
		return err
	}
	return mc.Out.ReplyEmbed(ctx, newEmbed("✅ Logs Desactivados", "El canal de logs ha sido desactivado.", mc.Now))
}
