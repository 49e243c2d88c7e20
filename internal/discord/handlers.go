package discord

import (
	"context"

	"katu-bot/internal/chat"
	"katu-bot/internal/command"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// onReady is called when the bot is ready
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	ctx := b.runContext()
	b.log.Info("bot ready", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))

	if err := s.UpdateWatchStatus(0, presenceText); err != nil {
		b.log.Warn("failed to set presence", zap.Error(err))
	}

	var active []string
	for _, g := range r.Guilds {
		if b.leaveIfBlacklisted(s, g.ID) {
			continue
		}
		active = append(active, g.ID)
	}
	b.logs.Broadcast(ctx, active, "🚀 Katu Bot iniciado y listo para contar mensajes")
}

// onGuildCreate fires for every guild at startup and when the bot joins one.
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.leaveIfBlacklisted(s, g.ID) {
		return
	}
	// guilds in the ready payload arrive here too, already announced
	if !g.JoinedAt.After(b.startedAt) {
		return
	}
	b.log.Info("bot added to guild", zap.String("guild", g.ID), zap.String("name", g.Name))
	b.logs.Log(b.runContext(), g.ID, "➕ Katu Bot añadido al servidor "+g.Name)
}

func (b *Bot) onGuildDelete(_ *discordgo.Session, g *discordgo.GuildDelete) {
	name := ""
	if g.BeforeDelete != nil {
		name = g.BeforeDelete.Name
	}
	b.log.Info("bot removed from guild", zap.String("guild", g.ID), zap.String("name", name))
}

func (b *Bot) leaveIfBlacklisted(s *discordgo.Session, guildID string) bool {
	if !b.isGuildBlacklisted(guildID) {
		return false
	}
	b.log.Info("leaving blacklisted guild", zap.String("guild", guildID))
	if err := s.GuildLeave(guildID); err != nil {
		b.log.Error("failed to leave guild", zap.String("guild", guildID), zap.Error(err))
	}
	return true
}

// onMessageCreate is called when a message is created
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.WebhookID != "" || m.GuildID == "" {
		return
	}
	ctx := b.runContext()
	sink := newMessageSink(s, m.Message, b.logs)

	if b.commands.IsCommand(m.Content) {
		if _, err := b.commands.Dispatch(ctx, m.Content, b.commandContext(s, m.Message, sink)); err != nil {
			b.log.Debug("command returned error", zap.Error(err))
		}
		return
	}

	b.countMessage(ctx, m.Message)

	if b.chat == nil {
		return
	}
	in := chat.Inbound{
		GuildID:     m.GuildID,
		ChannelID:   m.ChannelID,
		MessageID:   m.ID,
		AuthorID:    m.Author.ID,
		DisplayName: DisplayName(m.Message),
		Content:     m.Content,
		AuthorIsBot: m.Author.Bot,
		MentionsBot: MentionsUser(m.Message, s.State.User.ID),
	}
	if _, err := b.chat.Handle(ctx, in, sink); err != nil {
		b.log.Warn("conversation failed", zap.String("guild", m.GuildID), zap.Error(err))
	}
}

// countMessage adds m to today's counters and announces the author's
// first message of the day.
func (b *Bot) countMessage(ctx context.Context, m *discordgo.Message) {
	first, err := CountMessage(ctx, b.store, b.now(), m.GuildID, m.Author.ID, m.Author.Username)
	if err != nil {
		b.log.Error("failed to count message", zap.String("guild", m.GuildID), zap.String("user", m.Author.ID), zap.Error(err))
		return
	}
	if first {
		b.logs.Log(ctx, m.GuildID, "👋 Nuevo usuario detectado: "+m.Author.Username+" envió su primer mensaje del día")
	}
}

func (b *Bot) commandContext(s *discordgo.Session, m *discordgo.Message, out command.Replier) *command.Context {
	c := &command.Context{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Author:    command.User{ID: m.Author.ID, Username: m.Author.Username},
		Mentions:  mentionedUsers(m, s.State.User.ID),
		Now:       b.now(),
		Out:       out,
	}
	if g := guild(s, m.GuildID); g != nil {
		c.GuildName = g.Name
		c.GuildIconURL = g.IconURL("")
		var roles []string
		if m.Member != nil {
			roles = m.Member.Roles
		}
		c.IsAdmin = IsAdministrator(g, m.Author.ID, roles)
	}
	for _, id := range ChannelMentionIDs(m.Content) {
		ch := command.Channel{ID: id}
		if resolved := channel(s, id); resolved != nil && resolved.GuildID == m.GuildID {
			ch.Text = IsTextChannel(resolved.Type)
		}
		c.Channels = append(c.Channels, ch)
	}
	return c
}
