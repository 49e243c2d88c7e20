package storage

import (
	"context"
	"time"

	"katu-bot/internal/datastore"

	"go.uber.org/zap"
)

// guildRecord is the JSON document kept per guild. Records are treated as
// immutable once stored: writers build a new record so readers never see
// a map being mutated.
type guildRecord struct {
	Config GuildConfig                        `json:"config"`
	Days   map[string]map[string]MessageCount `json:"days,omitempty"` // date -> user id -> count
}

func (r guildRecord) withCount(c MessageCount) guildRecord {
	days := make(map[string]map[string]MessageCount, len(r.Days)+1)
	for d, users := range r.Days {
		days[d] = users
	}
	users := make(map[string]MessageCount, len(r.Days[c.Date])+1)
	for id, u := range r.Days[c.Date] {
		users[id] = u
	}
	users[c.UserID] = c
	days[c.Date] = users
	r.Days = days
	return r
}

// withoutDaysBefore returns r without days before date and how many
// counters were dropped.
func (r guildRecord) withoutDaysBefore(date string) (guildRecord, int) {
	dropped := 0
	days := make(map[string]map[string]MessageCount, len(r.Days))
	for d, users := range r.Days {
		if d < date {
			dropped += len(users)
			continue
		}
		days[d] = users
	}
	r.Days = days
	return r, dropped
}

// File persists counters and settings to one JSON document per guild.
type File struct {
	store *datastore.Store[guildRecord]
	now   func() time.Time
}

// OpenFile loads or creates the JSON file at path.
func OpenFile(path string, log *zap.Logger) (*File, error) {
	cfg := datastore.DefaultConfig(path)
	cfg.Logger = log
	store, err := datastore.Open[guildRecord](cfg)
	if err != nil {
		return nil, err
	}
	return &File{store: store, now: time.Now}, nil
}

func (f *File) MessageCount(_ context.Context, date, guildID, userID string) (MessageCount, bool, error) {
	rec, _ := f.store.Get(guildID)
	c, ok := rec.Days[date][userID]
	return c, ok, nil
}

func (f *File) IncrementMessageCount(_ context.Context, date, guildID, userID, username string) (MessageCount, error) {
	var out MessageCount
	err := f.store.Update(guildID, func(rec guildRecord, _ bool) (guildRecord, bool) {
		now := f.now()
		c, ok := rec.Days[date][userID]
		if !ok {
			c = MessageCount{Date: date, GuildID: guildID, UserID: userID, CreatedAt: now}
		}
		c.Count++
		c.Username = username
		c.UpdatedAt = now
		out = c
		return rec.withCount(c), true
	})
	return out, err
}

func (f *File) DailyRanking(_ context.Context, date, guildID string, limit int) ([]MessageCount, error) {
	rec, _ := f.store.Get(guildID)
	users := rec.Days[date]
	out := make([]MessageCount, 0, len(users))
	for _, c := range users {
		out = append(out, c)
	}
	sortRanking(out)
	return limitRanking(out, limit), nil
}

func (f *File) TotalMessages(_ context.Context, date, guildID string) (int, error) {
	rec, _ := f.store.Get(guildID)
	total := 0
	for _, c := range rec.Days[date] {
		total += c.Count
	}
	return total, nil
}

func (f *File) GuildConfig(_ context.Context, guildID string) (GuildConfig, bool, error) {
	rec, ok := f.store.Get(guildID)
	if !ok || rec.Config.GuildID == "" {
		return GuildConfig{}, false, nil
	}
	return rec.Config, true, nil
}

func (f *File) SetLogChannel(_ context.Context, guildID, channelID string) (GuildConfig, error) {
	var out GuildConfig
	err := f.store.Update(guildID, func(rec guildRecord, _ bool) (guildRecord, bool) {
		now := f.now()
		if rec.Config.GuildID == "" {
			rec.Config = GuildConfig{GuildID: guildID, Timezone: DefaultTimezone, CreatedAt: now}
		}
		rec.Config.LogChannelID = channelID
		rec.Config.UpdatedAt = now
		out = rec.Config
		return rec, true
	})
	return out, err
}

func (f *File) PruneBefore(_ context.Context, date string) (int, error) {
	var guilds []string
	f.store.Range(func(key string, _ guildRecord) bool {
		guilds = append(guilds, key)
		return true
	})

	total := 0
	for _, id := range guilds {
		err := f.store.Update(id, func(rec guildRecord, ok bool) (guildRecord, bool) {
			if !ok {
				return rec, false
			}
			pruned, n := rec.withoutDaysBefore(date)
			total += n
			return pruned, len(pruned.Days) > 0 || pruned.Config.GuildID != ""
		})
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (f *File) Close() error { return f.store.Close() }
