// Package discord connects the counters, commands and conversation
// handler to a Discord gateway session.
package discord

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"katu-bot/internal/chat"
	"katu-bot/internal/command"
	"katu-bot/internal/config"
	"katu-bot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const presenceText = "Contando mensajes diarios..."

// Conversation answers chat messages. *chat.Handler implements it.
type Conversation interface {
	Handle(ctx context.Context, m chat.Inbound, sink chat.Sink) (bool, error)
}

// Options wire a Bot.
type Options struct {
	Config   *config.Config
	Store    storage.Storage
	Commands *command.Dispatcher
	// Chat is nil when conversational replies are disabled.
	Chat   Conversation
	Logger *zap.Logger
}

// Bot is a Discord bot
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	store    storage.Storage
	commands *command.Dispatcher
	chat     Conversation
	logs     *LogChannel
	log      *zap.Logger
	now      func() time.Time

	// startedAt separates guilds joined while running from those replayed at startup.
	startedAt time.Time

	mu  sync.RWMutex
	ctx context.Context
}

func NewBot(opts Options) *Bot {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	log := opts.Logger.Named("discord")
	b := &Bot{
		cfg:      opts.Config,
		store:    opts.Store,
		commands: opts.Commands,
		chat:     opts.Chat,
		log:      log,
		now:      time.Now,
		ctx:      context.Background(),
	}
	b.logs = NewLogChannel(opts.Store, b.sendLogEmbed, log)
	return b
}

// Run opens the gateway session and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	b.dg = dg
	b.startedAt = b.now()
	b.setContext(ctx)

	b.configureIntents()
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onMessageCreate)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onGuildDelete)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	b.log.Info("shutdown signal received, closing session")
	return nil
}

// configureIntents asks for guild and message events including content.
func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent
}

func (b *Bot) setContext(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ctx = ctx
}

// runContext is the context handed to event handlers.
func (b *Bot) runContext() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

// Logs returns the guild log channel writer.
func (b *Bot) Logs() *LogChannel { return b.logs }

// GuildIDs lists the guilds in the session state.
func (b *Bot) GuildIDs() []string {
	if b.dg == nil {
		return nil
	}
	b.dg.State.RLock()
	defer b.dg.State.RUnlock()
	ids := make([]string, 0, len(b.dg.State.Guilds))
	for _, g := range b.dg.State.Guilds {
		ids = append(ids, g.ID)
	}
	return ids
}

// GuildCount is the number of guilds the bot is in.
func (b *Bot) GuildCount() int { return len(b.GuildIDs()) }

func (b *Bot) isGuildBlacklisted(guildID string) bool {
	return slices.Contains(b.cfg.DiscordGuildBlacklist, guildID)
}

func (b *Bot) sendLogEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	if b.dg == nil {
		return errNoSession
	}
	_, err := b.dg.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	return err
}
