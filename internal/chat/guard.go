package chat

import (
	"sync"
	"time"

	"katu-bot/internal/mind"
)

// Guard lets at most one conversation per key run at a time. A second
// trigger for a busy key is dropped, not queued.
type Guard struct {
	mu       sync.Mutex
	inflight map[mind.ConversationKey]struct{}
	delay    time.Duration
}

// NewGuard creates a Guard whose keys stay busy for delay after Release.
func NewGuard(delay time.Duration) *Guard {
	return &Guard{inflight: make(map[mind.ConversationKey]struct{}), delay: delay}
}

// TryAcquire marks the key busy and reports whether it was free.
func (g *Guard) TryAcquire(guildID, userID string) bool {
	key := mind.ConversationKey{GuildID: guildID, UserID: userID}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[key]; busy {
		return false
	}
	g.inflight[key] = struct{}{}
	return true
}

// Release frees the key once the release delay has passed.
func (g *Guard) Release(guildID, userID string) {
	key := mind.ConversationKey{GuildID: guildID, UserID: userID}
	free := func() {
		g.mu.Lock()
		delete(g.inflight, key)
		g.mu.Unlock()
	}
	if g.delay <= 0 {
		free()
		return
	}
	time.AfterFunc(g.delay, free)
}

// Busy reports whether the key is held.
func (g *Guard) Busy(guildID, userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inflight[mind.ConversationKey{GuildID: guildID, UserID: userID}]
	return busy
}
