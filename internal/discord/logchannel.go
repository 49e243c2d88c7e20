package discord

import (
	"context"
	"errors"
	"time"

	"katu-bot/internal/command"
	"katu-bot/internal/storage"
	"katu-bot/pkg/util"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const broadcastWorkers = 4

var errNoSession = errors.New("discord: session not open")

// EmbedSender posts an embed to a channel.
type EmbedSender func(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error

// LogChannel writes bot events to each guild's configured log channel.
// Delivery is best effort: failures are logged and never returned.
type LogChannel struct {
	store storage.Storage
	send  EmbedSender
	log   *zap.Logger
	now   func() time.Time
}

func NewLogChannel(store storage.Storage, send EmbedSender, log *zap.Logger) *LogChannel {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogChannel{store: store, send: send, log: log, now: time.Now}
}

// Log posts message to guildID's log channel, if it has one.
func (l *LogChannel) Log(ctx context.Context, guildID, message string) {
	cfg, ok, err := l.store.GuildConfig(ctx, guildID)
	if err != nil {
		l.log.Warn("failed to load guild config", zap.String("guild", guildID), zap.Error(err))
		return
	}
	if !ok || cfg.LogChannelID == "" {
		return
	}
	l.LogTo(ctx, cfg.LogChannelID, message)
}

// LogTo posts message to channelID.
func (l *LogChannel) LogTo(ctx context.Context, channelID, message string) {
	if err := l.send(ctx, channelID, command.LogEmbed(message, l.now())); err != nil {
		l.log.Warn("failed to send log message", zap.String("channel", channelID), zap.Error(err))
	}
}

// Broadcast posts message to the log channel of every guild in guildIDs.
func (l *LogChannel) Broadcast(ctx context.Context, guildIDs []string, message string) {
	err := util.Parallel(ctx, guildIDs, broadcastWorkers, func(ctx context.Context, guildID string) error {
		l.Log(ctx, guildID, message)
		return nil
	})
	if err != nil {
		l.log.Warn("broadcast interrupted", zap.Error(err))
	}
}
