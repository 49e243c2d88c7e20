package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// messenger is the part of *discordgo.Session a sink needs.
type messenger interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

// messageSink answers in the channel of one triggering message. It serves
// both conversational chunks and command output.
type messageSink struct {
	api     messenger
	message *discordgo.Message
	logs    *LogChannel
}

func newMessageSink(api messenger, m *discordgo.Message, logs *LogChannel) *messageSink {
	return &messageSink{api: api, message: m, logs: logs}
}

// noPings keeps replies from notifying anyone but the replied-to author.
var noPings = &discordgo.MessageAllowedMentions{RepliedUser: true}

func (s *messageSink) send(ctx context.Context, data *discordgo.MessageSend) error {
	data.AllowedMentions = noPings
	_, err := s.api.ChannelMessageSendComplex(s.message.ChannelID, data, discordgo.WithContext(ctx))
	return err
}

func (s *messageSink) Reply(ctx context.Context, text string) error {
	return s.send(ctx, &discordgo.MessageSend{Content: text, Reference: s.message.Reference()})
}

func (s *messageSink) Send(ctx context.Context, text string) error {
	return s.send(ctx, &discordgo.MessageSend{Content: text})
}

func (s *messageSink) Typing(ctx context.Context) error {
	return s.api.ChannelTyping(s.message.ChannelID, discordgo.WithContext(ctx))
}

func (s *messageSink) ReplyEmbed(ctx context.Context, embed *discordgo.MessageEmbed) error {
	return s.send(ctx, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}, Reference: s.message.Reference()})
}

func (s *messageSink) SendLog(ctx context.Context, channelID, text string) error {
	s.logs.LogTo(ctx, channelID, text)
	return nil
}
