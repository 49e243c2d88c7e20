package storage

import (
	"context"
	"sync"
	"time"
)

type countKey struct {
	date, guildID, userID string
}

// Memory keeps everything in process memory. Data is lost on restart.
type Memory struct {
	mu     sync.RWMutex
	counts map[countKey]MessageCount
	guilds map[string]GuildConfig
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		counts: make(map[countKey]MessageCount),
		guilds: make(map[string]GuildConfig),
		now:    time.Now,
	}
}

func (m *Memory) MessageCount(_ context.Context, date, guildID, userID string) (MessageCount, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.counts[countKey{date, guildID, userID}]
	return c, ok, nil
}

func (m *Memory) IncrementMessageCount(_ context.Context, date, guildID, userID, username string) (MessageCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := countKey{date, guildID, userID}
	now := m.now()
	c, ok := m.counts[key]
	if !ok {
		c = MessageCount{Date: date, GuildID: guildID, UserID: userID, CreatedAt: now}
	}
	c.Count++
	c.Username = username
	c.UpdatedAt = now
	m.counts[key] = c
	return c, nil
}

func (m *Memory) DailyRanking(_ context.Context, date, guildID string, limit int) ([]MessageCount, error) {
	m.mu.RLock()
	var out []MessageCount
	for k, c := range m.counts {
		if k.date == date && k.guildID == guildID {
			out = append(out, c)
		}
	}
	m.mu.RUnlock()

	sortRanking(out)
	return limitRanking(out, limit), nil
}

func (m *Memory) TotalMessages(_ context.Context, date, guildID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for k, c := range m.counts {
		if k.date == date && k.guildID == guildID {
			total += c.Count
		}
	}
	return total, nil
}

func (m *Memory) GuildConfig(_ context.Context, guildID string) (GuildConfig, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.guilds[guildID]
	return g, ok, nil
}

func (m *Memory) SetLogChannel(_ context.Context, guildID, channelID string) (GuildConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	g, ok := m.guilds[guildID]
	if !ok {
		g = GuildConfig{GuildID: guildID, Timezone: DefaultTimezone, CreatedAt: now}
	}
	g.LogChannelID = channelID
	g.UpdatedAt = now
	m.guilds[guildID] = g
	return g, nil
}

func (m *Memory) PruneBefore(_ context.Context, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.counts {
		if k.date < date {
			delete(m.counts, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Close() error { return nil }
