package mind

import (
	"sync"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation lane.
type Turn struct {
	Role       Role
	Content    string
	OccurredAt time.Time
}

// ConversationKey identifies one lane: a user inside a guild.
type ConversationKey struct {
	GuildID string
	UserID  string
}

// History keeps a bounded, chronological lane of turns per ConversationKey.
// It is safe for concurrent use.
type History struct {
	mu       sync.Mutex
	maxTurns int
	lanes    map[ConversationKey][]Turn
}

// NewHistory returns a store whose lanes keep at most maxTurns turns.
func NewHistory(maxTurns int) *History {
	if maxTurns <= 0 {
		maxTurns = 30
	}
	return &History{
		maxTurns: maxTurns,
		lanes:    make(map[ConversationKey][]Turn),
	}
}

// Append adds turn to the lane, dropping the oldest turns past the cap.
func (h *History) Append(key ConversationKey, turn Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	lane := append(h.lanes[key], turn)
	if over := len(lane) - h.maxTurns; over > 0 {
		lane = append([]Turn(nil), lane[over:]...)
	}
	h.lanes[key] = lane
}

// Recent returns up to n of the latest turns, oldest first.
// The returned slice is a copy.
func (h *History) Recent(key ConversationKey, n int) []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	lane := h.lanes[key]
	if n <= 0 || len(lane) == 0 {
		return nil
	}
	if n > len(lane) {
		n = len(lane)
	}
	out := make([]Turn, n)
	copy(out, lane[len(lane)-n:])
	return out
}

// Len returns the number of turns in the lane.
func (h *History) Len(key ConversationKey) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.lanes[key])
}

// Clear removes the lane entirely.
func (h *History) Clear(key ConversationKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lanes, key)
}

// PurgeOlderThan drops every turn that occurred at or before cutoff and
// deletes lanes left empty. It returns the number of turns removed.
func (h *History) PurgeOlderThan(cutoff time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for key, lane := range h.lanes {
		keep := 0
		for keep < len(lane) && !lane[keep].OccurredAt.After(cutoff) {
			keep++
		}
		if keep == 0 {
			continue
		}
		removed += keep
		if keep == len(lane) {
			delete(h.lanes, key)
			continue
		}
		h.lanes[key] = append([]Turn(nil), lane[keep:]...)
	}
	return removed
}

// Lanes counts lanes in guildID, or in every guild when guildID is empty.
func (h *History) Lanes(guildID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if guildID == "" {
		return len(h.lanes)
	}
	n := 0
	for key := range h.lanes {
		if key.GuildID == guildID {
			n++
		}
	}
	return n
}
