package storage

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	// Database drivers.
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS daily_message_counts (
		date TEXT NOT NULL,
		guild_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		username TEXT NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (date, guild_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_daily_message_counts_guild_date
		ON daily_message_counts (guild_id, date)`,
	`CREATE TABLE IF NOT EXISTS guild_configs (
		guild_id TEXT PRIMARY KEY,
		log_channel_id TEXT NOT NULL DEFAULT '',
		timezone TEXT NOT NULL DEFAULT 'UTC',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
}

const countColumns = `date, guild_id, user_id, username, message_count, created_at, updated_at`

// SQL stores counters in PostgreSQL or SQLite. Timestamps are unix
// milliseconds so both dialects share one schema.
type SQL struct {
	db       *sql.DB
	postgres bool
	now      func() time.Time
}

// OpenSQLite opens (and creates) the SQLite database at dsn.
func OpenSQLite(ctx context.Context, dsn string) (*SQL, error) {
	if dsn == "" {
		return nil, errors.New("sqlite dsn required")
	}
	// modernc.org/sqlite expects each pragma prefixed with _pragma=.
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite db with dsn: %s", dsn)
	}
	// Single writer: one connection avoids SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return newSQL(ctx, db, false)
}

// OpenPostgres connects to the PostgreSQL database at dsn.
func OpenPostgres(ctx context.Context, dsn string) (*SQL, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres db")
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return newSQL(ctx, db, true)
}

func newSQL(ctx context.Context, db *sql.DB, postgres bool) (*SQL, error) {
	s := &SQL{db: db, postgres: postgres, now: time.Now}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to apply schema")
		}
	}
	return nil
}

// rebind turns ? placeholders into $n for PostgreSQL.
func (s *SQL) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCount(row rowScanner) (MessageCount, error) {
	var (
		c                MessageCount
		created, updated int64
	)
	if err := row.Scan(&c.Date, &c.GuildID, &c.UserID, &c.Username, &c.Count, &created, &updated); err != nil {
		return MessageCount{}, err
	}
	c.CreatedAt = time.UnixMilli(created).UTC()
	c.UpdatedAt = time.UnixMilli(updated).UTC()
	return c, nil
}

func (s *SQL) MessageCount(ctx context.Context, date, guildID, userID string) (MessageCount, bool, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+countColumns+` FROM daily_message_counts WHERE date = ? AND guild_id = ? AND user_id = ?`),
		date, guildID, userID)
	c, err := scanCount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return MessageCount{}, false, nil
	}
	if err != nil {
		return MessageCount{}, false, errors.Wrap(err, "failed to get message count")
	}
	return c, true, nil
}

func (s *SQL) IncrementMessageCount(ctx context.Context, date, guildID, userID, username string) (MessageCount, error) {
	now := s.now().UnixMilli()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return MessageCount{}, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO daily_message_counts (`+countColumns+`)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (date, guild_id, user_id) DO UPDATE SET
			message_count = daily_message_counts.message_count + 1,
			username = excluded.username,
			updated_at = excluded.updated_at`),
		date, guildID, userID, username, now, now); err != nil {
		return MessageCount{}, errors.Wrap(err, "failed to increment message count")
	}

	c, err := scanCount(tx.QueryRowContext(ctx, s.rebind(
		`SELECT `+countColumns+` FROM daily_message_counts WHERE date = ? AND guild_id = ? AND user_id = ?`),
		date, guildID, userID))
	if err != nil {
		return MessageCount{}, errors.Wrap(err, "failed to read message count")
	}
	if err := tx.Commit(); err != nil {
		return MessageCount{}, errors.Wrap(err, "failed to commit message count")
	}
	return c, nil
}

func (s *SQL) DailyRanking(ctx context.Context, date, guildID string, limit int) ([]MessageCount, error) {
	query := `SELECT ` + countColumns + ` FROM daily_message_counts
		WHERE date = ? AND guild_id = ?
		ORDER BY message_count DESC, user_id ASC`
	args := []any{date, guildID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query daily ranking")
	}
	defer rows.Close()

	var out []MessageCount
	for rows.Next() {
		c, err := scanCount(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan daily ranking")
		}
		out = append(out, c)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate daily ranking")
}

func (s *SQL) TotalMessages(ctx context.Context, date, guildID string) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT COALESCE(SUM(message_count), 0) FROM daily_message_counts WHERE date = ? AND guild_id = ?`),
		date, guildID).Scan(&total)
	if err != nil {
		return 0, errors.Wrap(err, "failed to sum messages")
	}
	return total, nil
}

func (s *SQL) GuildConfig(ctx context.Context, guildID string) (GuildConfig, bool, error) {
	var (
		g                GuildConfig
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT guild_id, log_channel_id, timezone, created_at, updated_at FROM guild_configs WHERE guild_id = ?`),
		guildID).Scan(&g.GuildID, &g.LogChannelID, &g.Timezone, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return GuildConfig{}, false, nil
	}
	if err != nil {
		return GuildConfig{}, false, errors.Wrapf(err, "failed to get guild config %s", guildID)
	}
	g.CreatedAt = time.UnixMilli(created).UTC()
	g.UpdatedAt = time.UnixMilli(updated).UTC()
	return g, true, nil
}

func (s *SQL) SetLogChannel(ctx context.Context, guildID, channelID string) (GuildConfig, error) {
	now := s.now().UnixMilli()
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO guild_configs (guild_id, log_channel_id, timezone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (guild_id) DO UPDATE SET
			log_channel_id = excluded.log_channel_id,
			updated_at = excluded.updated_at`),
		guildID, channelID, DefaultTimezone, now, now)
	if err != nil {
		return GuildConfig{}, errors.Wrapf(err, "failed to set log channel for guild %s", guildID)
	}
	g, _, err := s.GuildConfig(ctx, guildID)
	return g, err
}

func (s *SQL) PruneBefore(ctx context.Context, date string) (int, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM daily_message_counts WHERE date < ?`), date)
	if err != nil {
		return 0, errors.Wrap(err, "failed to prune message counts")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count pruned rows")
	}
	return int(n), nil
}

func (s *SQL) Close() error { return s.db.Close() }
