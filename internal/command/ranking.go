package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"katu-bot/internal/storage"
	"katu-bot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	// RankingLimit is how many users the ranking command fetches.
	RankingLimit = 100
	// PageSize is how many ranking lines fit in one embed.
	PageSize = 20

	rankLookup = 1000
)

// RankingCommand shows the most active users of the day.
type RankingCommand struct {
	deps Deps
}

func (c *RankingCommand) Name() string        { return "ranking" }
func (c *RankingCommand) Aliases() []string   { return []string{"top"} }
func (c *RankingCommand) Description() string { return "Ver top 100 usuarios más activos del día" }
func (c *RankingCommand) Category() string    { return categoryUsers }
func (c *RankingCommand) Usage() string       { return "ranking" }
func (c *RankingCommand) FailureMessage() string {
	return "❌ Error al obtener el ranking. Inténtalo más tarde."
}

func (c *RankingCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	mc, err := contextOf(inv)
	if err != nil {
		return err
	}
	date := mc.Today()

	ranking, err := c.deps.Store.DailyRanking(ctx, date, mc.GuildID, RankingLimit)
	if err != nil {
		return err
	}
	total, err := c.deps.Store.TotalMessages(ctx, date, mc.GuildID)
	if err != nil {
		return err
	}

	if len(ranking) == 0 {
		return mc.Out.ReplyEmbed(ctx, newEmbed("📊 Ranking Diario",
			"No hay datos de mensajes para hoy. ¡Empezad a chatear!", mc.Now))
	}

	page := 1
	if len(inv.Args) > 0 {
		if n, err := strconv.Atoi(inv.Args[0]); err == nil {
			page = n
		}
	}
	if err := mc.Out.ReplyEmbed(ctx, RankingEmbed(ranking, page, total, date, mc)); err != nil {
		return err
	}

	logToGuild(ctx, c.deps, mc, fmt.Sprintf("📊 %s solicitó el ranking diario", mc.Author.Username))
	return nil
}

// RankingEmbed renders one page of ranking. Out-of-range pages are clamped.
func RankingEmbed(ranking []storage.MessageCount, page, total int, date string, mc *Context) *discordgo.MessageEmbed {
	pages := (len(ranking) + PageSize - 1) / PageSize
	page = max(1, min(page, pages))
	start := (page - 1) * PageSize
	entries := ranking[start:min(start+PageSize, len(ranking))]

	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "%s **%s** - %d mensajes\n", medal(start+i+1), e.Username, e.Count)
	}
	if b.Len() == 0 {
		b.WriteString("No hay datos de mensajes para hoy.")
	}

	embed := newEmbed(fmt.Sprintf("📊 Top %d Usuarios Activos - %s", len(entries), date), b.String(), mc.Now)
	embed.Footer.Text = footerText + " • Total messages processed: " + Thousands(total)
	if pages > 1 {
		embed.Footer.Text = fmt.Sprintf("%s • Página %d de %d • Total messages: %s", footerText, page, pages, Thousands(total))
	}
	if mc.GuildIconURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: mc.GuildIconURL}
	}
	return embed
}

// MyStatsCommand shows the caller's count and rank.
type MyStatsCommand struct {
	deps Deps
}

func (c *MyStatsCommand) Name() string        { return "mystats" }
func (c *MyStatsCommand) Description() string { return "Ver tus estadísticas personales" }
func (c *MyStatsCommand) Category() string    { return categoryUsers }
func (c *MyStatsCommand) Usage() string       { return "mystats" }
func (c *MyStatsCommand) FailureMessage() string {
	return "❌ Error al obtener tus estadísticas. Inténtalo más tarde."
}

func (c *MyStatsCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	mc, err := contextOf(inv)
	if err != nil {
		return err
	}
	embed, err := userStats(ctx, c.deps.Store, mc, mc.Author,
		"📈 Tus Estadísticas", "No tienes mensajes registrados hoy. ¡Envía algunos mensajes!")
	if err != nil {
		return err
	}
	return mc.Out.ReplyEmbed(ctx, embed)
}

// StatsCommand shows the count and rank of a mentioned user.
type StatsCommand struct {
	deps Deps
}

func (c *StatsCommand) Name() string        { return "stats" }
func (c *StatsCommand) Description() string { return "Ver estadísticas de otro usuario" }
func (c *StatsCommand) Category() string    { return categoryUsers }
func (c *StatsCommand) Usage() string       { return "stats @usuario" }
func (c *StatsCommand) FailureMessage() string {
	return "❌ Error al obtener las estadísticas del usuario. Inténtalo más tarde."
}

func (c *StatsCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	mc, err := contextOf(inv)
	if err != nil {
		return err
	}
	if len(mc.Mentions) == 0 {
		return mc.Out.Reply(ctx, fmt.Sprintf("❌ Debes mencionar a un usuario. Ejemplo: `%sstats @usuario`", c.deps.Prefix))
	}
	target := mc.Mentions[0]
	embed, err := userStats(ctx, c.deps.Store, mc, target,
		"📈 Estadísticas de "+target.Username, "Este usuario no tiene mensajes registrados hoy.")
	if err != nil {
		return err
	}
	return mc.Out.ReplyEmbed(ctx, embed)
}

func userStats(ctx context.Context, store storage.Storage, mc *Context, u User, emptyTitle, emptyText string) (*discordgo.MessageEmbed, error) {
	date := mc.Today()
	count, ok, err := store.MessageCount(ctx, date, mc.GuildID, u.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return newEmbed(emptyTitle, emptyText, mc.Now), nil
	}
	ranking, err := store.DailyRanking(ctx, date, mc.GuildID, rankLookup)
	if err != nil {
		return nil, err
	}
	return statsEmbed(u.Username, count.Count, storage.Rank(ranking, u.ID), len(ranking), date, mc.Now), nil
}

// logToGuild posts message to the guild's log channel when one is set.
// Failures are logged and never reach the caller.
func logToGuild(ctx context.Context, deps Deps, mc *Context, message string) {
	cfg, ok, err := deps.Store.GuildConfig(ctx, mc.GuildID)
	if err != nil {
		deps.Logger.Warn("failed to load guild config", zap.String("guild", mc.GuildID), zap.Error(err))
		return
	}
	if !ok || cfg.LogChannelID == "" {
		return
	}
	if err := mc.Out.SendLog(ctx, cfg.LogChannelID, message); err != nil {
		deps.Logger.Warn("failed to send log message", zap.String("guild", mc.GuildID), zap.Error(err))
	}
}
