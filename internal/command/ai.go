package command

import (
	"context"
	"fmt"
	"strconv"

	"katu-bot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

const aiDisabledText = "❌ El chat con IA está desactivado."

// ResetChatCommand forgets the caller's conversation with the bot.
type ResetChatCommand struct {
	deps Deps
}

func (c *ResetChatCommand) Name() string        { return "resetchat" }
func (c *ResetChatCommand) Description() string { return "Reiniciar tu conversación con Katu" }
func (c *ResetChatCommand) Category() string    { return categoryUsers }
func (c *ResetChatCommand) Usage() string       { return "resetchat" }

func (c *ResetChatCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	mc, err := contextOf(inv)
	if err != nil {
		return err
	}
	if c.deps.Mind == nil {
		return mc.Out.Reply(ctx, aiDisabledText)
	}
	c.deps.Mind.ClearHistory(mc.Author.ID, mc.GuildID)
	return mc.Out.ReplyEmbed(ctx, newEmbed("🧹 Conversación Reiniciada",
		"He olvidado nuestra conversación anterior. ¡Empecemos de nuevo!", mc.Now))
}

// AIStatsCommand summarizes the guild's conversations.
type AIStatsCommand struct {
	deps Deps
}

func (c *AIStatsCommand) Name() string        { return "aistats" }
func (c *AIStatsCommand) Description() string { return "Ver estadísticas del chat con IA" }
func (c *AIStatsCommand) Category() string    { return categoryUsers }
func (c *AIStatsCommand) Usage() string       { return "aistats" }

func (c *AIStatsCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	mc, err := contextOf(inv)
	if err != nil {
		return err
	}
	if c.deps.Mind == nil {
		return mc.Out.Reply(ctx, aiDisabledText)
	}
	s := c.deps.Mind.Stats(mc.GuildID)
	embed := newEmbed("🧠 Estadísticas de IA", "", mc.Now)
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "💬 Conversaciones", Value: strconv.Itoa(s.TotalConversations), Inline: true},
		{Name: "📨 Respuestas recientes", Value: strconv.Itoa(s.TotalResponses), Inline: true},
		{Name: "🎯 Confianza media", Value: fmt.Sprintf("%.0f%%", s.AverageConfidence*100), Inline: true},
		{Name: "⏱️ Última hora", Value: strconv.Itoa(s.RecentActivity), Inline: true},
	}
	return mc.Out.ReplyEmbed(ctx, embed)
}
