package discord

import (
	"regexp"

	"katu-bot/internal/command"

	"github.com/bwmarrin/discordgo"
)

var channelMention = regexp.MustCompile(`<#(\d+)>`)

// ChannelMentionIDs returns the channel IDs mentioned in content, in order.
func ChannelMentionIDs(content string) []string {
	var ids []string
	for _, m := range channelMention.FindAllStringSubmatch(content, -1) {
		ids = append(ids, m[1])
	}
	return ids
}

// IsTextChannel reports whether messages can be posted to channels of type t.
func IsTextChannel(t discordgo.ChannelType) bool {
	switch t {
	case discordgo.ChannelTypeGuildText,
		discordgo.ChannelTypeGuildNews,
		discordgo.ChannelTypeGuildNewsThread,
		discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread,
		discordgo.ChannelTypeGuildVoice:
		return true
	default:
		return false
	}
}

// DisplayName prefers the guild nickname, then the global name.
func DisplayName(m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

// MentionsUser reports whether userID is among the mentioned users.
func MentionsUser(m *discordgo.Message, userID string) bool {
	for _, u := range m.Mentions {
		if u.ID == userID {
			return true
		}
	}
	return false
}

func mentionedUsers(m *discordgo.Message, botID string) []command.User {
	users := make([]command.User, 0, len(m.Mentions))
	for _, u := range m.Mentions {
		if u.ID == botID {
			continue
		}
		users = append(users, command.User{ID: u.ID, Username: u.Username})
	}
	return users
}
