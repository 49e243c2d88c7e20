// Package chat decides which guild messages reach the conversation engine
// and delivers the answers back in platform-sized chunks.
package chat

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Greeting replaces a message that is empty once mentions and the wake
// word are stripped.
const Greeting = "Hello! How can I help you today?"

var userMention = regexp.MustCompile(`<@!?\d+>`)

// Inbound is one platform message as seen by the router.
type Inbound struct {
	GuildID     string
	ChannelID   string
	MessageID   string
	AuthorID    string
	DisplayName string
	Content     string
	AuthorIsBot bool
	MentionsBot bool
}

// Policy is the trigger rule set.
type Policy struct {
	WakeWord string
	// Chance is the probability of answering an unaddressed question.
	Chance float64
	// MinLength is the rune count an unaddressed question must exceed.
	MinLength int
	// Roll returns a number in [0, 1). Nil uses math/rand.
	Roll func() float64
}

// Router applies a Policy to inbound messages.
type Router struct {
	policy Policy
	wake   *regexp.Regexp
}

func NewRouter(p Policy) *Router {
	if p.Roll == nil {
		p.Roll = rand.Float64
	}
	p.WakeWord = strings.TrimSpace(p.WakeWord)
	r := &Router{policy: p}
	if p.WakeWord != "" {
		r.wake = regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(p.WakeWord) + `\s*`)
	}
	return r
}

// ShouldRespond reports whether m should trigger a conversational answer.
// Bot authors and direct messages never do.
func (r *Router) ShouldRespond(m Inbound) bool {
	if m.AuthorIsBot || m.GuildID == "" {
		return false
	}
	if m.MentionsBot {
		return true
	}
	content := strings.TrimSpace(m.Content)
	if r.wake != nil && r.wake.MatchString(content) {
		return true
	}
	if strings.Contains(content, "?") && utf8.RuneCountInString(content) > r.policy.MinLength {
		return r.policy.Roll() < r.policy.Chance
	}
	return false
}

// Clean strips user mentions and a leading wake word from content.
func (r *Router) Clean(content string) string {
	content = strings.TrimSpace(userMention.ReplaceAllString(content, ""))
	if r.wake != nil {
		content = strings.TrimSpace(r.wake.ReplaceAllString(content, ""))
	}
	if content == "" {
		return Greeting
	}
	return content
}
