package discord

import (
	"github.com/bwmarrin/discordgo"
)

// IsAdministrator reports whether userID owns the guild or holds a role
// with the Administrator permission. The @everyone role counts too.
func IsAdministrator(guild *discordgo.Guild, userID string, roleIDs []string) bool {
	if guild == nil || userID == "" {
		return false
	}
	if userID == guild.OwnerID {
		return true
	}
	held := make(map[string]bool, len(roleIDs)+1)
	held[guild.ID] = true
	for _, id := range roleIDs {
		held[id] = true
	}
	for _, role := range guild.Roles {
		if held[role.ID] && role.Permissions&discordgo.PermissionAdministrator != 0 {
			return true
		}
	}
	return false
}

// guild resolves a guild from state, falling back to the REST API.
func guild(s *discordgo.Session, guildID string) *discordgo.Guild {
	g, err := s.State.Guild(guildID)
	if err == nil && g != nil {
		return g
	}
	g, err = s.Guild(guildID)
	if err != nil {
		return nil
	}
	return g
}

// channel resolves a channel from state, falling back to the REST API.
func channel(s *discordgo.Session, channelID string) *discordgo.Channel {
	c, err := s.State.Channel(channelID)
	if err == nil && c != nil {
		return c
	}
	c, err = s.Channel(channelID)
	if err != nil {
		return nil
	}
	return c
}
