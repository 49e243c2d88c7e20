// Package storage keeps the daily message counters and per-guild settings.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"katu-bot/internal/config"

	"go.uber.org/zap"
)

// DayLayout is the format of every date key, always in UTC.
const DayLayout = "2006-01-02"

// DefaultTimezone is stored on new guild configs.
const DefaultTimezone = "UTC"

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("storage: unknown driver")

const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// MessageCount is one user's message total for one day in one guild.
type MessageCount struct {
	Date      string    `json:"date" bson:"date"`
	GuildID   string    `json:"guildId" bson:"guildId"`
	UserID    string    `json:"userId" bson:"userId"`
	Username  string    `json:"username" bson:"username"`
	Count     int       `json:"messageCount" bson:"messageCount"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// GuildConfig holds a guild's settings. An empty LogChannelID means logging is off.
type GuildConfig struct {
	GuildID      string    `json:"guildId" bson:"guildId"`
	LogChannelID string    `json:"logChannelId,omitempty" bson:"logChannelId,omitempty"`
	Timezone     string    `json:"timezone" bson:"timezone"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Storage is implemented by every backend. Lookups that find nothing
// return the zero value and false, not an error.
type Storage interface {
	// MessageCount returns the user's counter for date.
	MessageCount(ctx context.Context, date, guildID, userID string) (MessageCount, bool, error)
	// IncrementMessageCount adds one message and refreshes the username.
	IncrementMessageCount(ctx context.Context, date, guildID, userID, username string) (MessageCount, error)
	// DailyRanking lists counters for date, highest first. limit <= 0 means all.
	DailyRanking(ctx context.Context, date, guildID string, limit int) ([]MessageCount, error)
	// TotalMessages sums every counter of the guild for date.
	TotalMessages(ctx context.Context, date, guildID string) (int, error)

	GuildConfig(ctx context.Context, guildID string) (GuildConfig, bool, error)
	// SetLogChannel stores channelID; an empty channelID disables logging.
	SetLogChannel(ctx context.Context, guildID, channelID string) (GuildConfig, error)

	// PruneBefore deletes counters dated strictly before date.
	PruneBefore(ctx context.Context, date string) (int, error)
	Close() error
}

// Day returns the date key for t.
func Day(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// Rank returns the 1-based position of userID in ranking, or 0.
func Rank(ranking []MessageCount, userID string) int {
	for i, c := range ranking {
		if c.UserID == userID {
			return i + 1
		}
	}
	return 0
}

// sortRanking orders by count descending, then user ID for stable output.
func sortRanking(counts []MessageCount) {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].UserID < counts[j].UserID
	})
}

func limitRanking(counts []MessageCount, limit int) []MessageCount {
	if limit > 0 && len(counts) > limit {
		return counts[:limit]
	}
	return counts
}

// ResolveDriver picks the backend for cfg: the explicit driver when set,
// otherwise mongo, postgres, file and memory in that order of availability.
func ResolveDriver(cfg config.StorageConfig) string {
	if cfg.Driver != "" {
		return cfg.Driver
	}
	switch {
	case cfg.MongoURI != "":
		return DriverMongo
	case cfg.DatabaseURL != "":
		return DriverPostgres
	case cfg.Path != "":
		return DriverFile
	default:
		return DriverMemory
	}
}

// Open connects the backend selected by cfg.
func Open(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (Storage, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("storage")
	driver := ResolveDriver(cfg)

	var (
		s   Storage
		err error
	)
	switch driver {
	case DriverMemory:
		s = NewMemory()
	case DriverFile:
		s, err = OpenFile(cfg.Path, log)
	case DriverSQLite:
		s, err = OpenSQLite(ctx, cfg.Path)
	case DriverPostgres:
		s, err = OpenPostgres(ctx, cfg.DatabaseURL)
	case DriverMongo:
		s, err = OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", driver, err)
	}
	log.Info("storage ready", zap.String("driver", driver))
	return s, nil
}
