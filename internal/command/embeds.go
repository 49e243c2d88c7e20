package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	// EmbedColor is the brand color of every embed.
	EmbedColor = 0x8207DB

	footerText    = "Powered by Katu Bot"
	LogFooterText = "Katu Bot Log"
)

func newEmbed(title, description string, now time.Time) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       EmbedColor,
		Timestamp:   now.UTC().Format(time.RFC3339),
		Footer:      &discordgo.MessageEmbedFooter{Text: footerText},
	}
}

// LogEmbed is the embed posted to log channels.
func LogEmbed(message string, now time.Time) *discordgo.MessageEmbed {
	e := newEmbed("", message, now)
	e.Footer.Text = LogFooterText
	return e
}

func statsEmbed(username string, count, rank, total int, date string, now time.Time) *discordgo.MessageEmbed {
	e := newEmbed("📈 Estadísticas de "+username, "", now)
	e.Fields = []*discordgo.MessageEmbedField{
		{Name: "📅 Fecha", Value: date, Inline: true},
		{Name: "💬 Mensajes", Value: strconv.Itoa(count), Inline: true},
		{Name: "🏆 Ranking", Value: "#" + strconv.Itoa(rank) + " de " + strconv.Itoa(total), Inline: true},
	}
	return e
}

func medal(position int) string {
	switch position {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return strconv.Itoa(position) + "."
	}
}

// Thousands formats n with comma group separators: 1234567 -> "1,234,567".
func Thousands(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 && !(neg && b.Len() == 1) {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
