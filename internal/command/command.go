// Package command implements the bot's prefix commands on top of pkg/cmd.
package command

import (
	"context"
	"errors"
	"time"

	"katu-bot/internal/mind"
	"katu-bot/internal/storage"
	"katu-bot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	categoryUsers  = "👥 Comandos para Usuarios"
	categoryAdmins = "⚙️ Comandos para Administradores"
)

// errNoContext is returned when a command runs without a *Context payload.
var errNoContext = errors.New("command: invocation carries no context")

// User is a chat user as seen by commands.
type User struct {
	ID       string
	Username string
}

// Channel is a mentioned channel resolved by the adapter.
type Channel struct {
	ID   string
	Text bool
}

// Replier sends command output back to the platform.
type Replier interface {
	Reply(ctx context.Context, text string) error
	ReplyEmbed(ctx context.Context, embed *discordgo.MessageEmbed) error
	// SendLog posts a log line to channelID.
	SendLog(ctx context.Context, channelID, text string) error
}

// Context is the payload of every command invocation.
type Context struct {
	GuildID      string
	GuildName    string
	GuildIconURL string
	ChannelID    string
	Author       User
	IsAdmin      bool
	Mentions     []User
	Channels     []Channel
	Now          time.Time
	Out          Replier
}

// Today is the counter date of the invocation.
func (c *Context) Today() string { return storage.Day(c.Now) }

// Mind is the part of the conversation engine commands use.
type Mind interface {
	ClearHistory(userID, guildID string)
	Stats(guildID string) mind.ConversationStats
}

// Deps are shared by every command.
type Deps struct {
	Store  storage.Storage
	Mind   Mind // nil when AI is disabled
	Prefix string
	Logger *zap.Logger
}

// Described is implemented by commands listed in the help embed.
type Described interface {
	Category() string
	Usage() string
}

// failer is implemented by commands with their own failure reply.
type failer interface {
	FailureMessage() string
}

func contextOf(inv *cmd.Invocation) (*Context, error) {
	c, ok := inv.Data.(*Context)
	if !ok || c == nil {
		return nil, errNoContext
	}
	return c, nil
}
