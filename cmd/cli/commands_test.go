package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"katu-bot/internal/config"
	"katu-bot/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, cfg *config.Config, store storage.Storage, args ...string) (string, error) {
	t.Helper()
	load := func() (*config.Config, error) { return cfg, nil }
	open := func(context.Context, *config.Config) (storage.Storage, error) { return store, nil }
	root := newRootCmd(load, open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func seeded(t *testing.T) *storage.Memory {
	t.Helper()
	store := storage.NewMemory()
	ctx := context.Background()
	for _, u := range []struct{ id, name string }{{"u1", "ana"}, {"u2", "beto"}, {"u2", "beto"}} {
		_, err := store.IncrementMessageCount(ctx, "2025-07-14", "g1", u.id, u.name)
		require.NoError(t, err)
	}
	_, err := store.IncrementMessageCount(ctx, "2025-06-01", "g1", "u1", "ana")
	require.NoError(t, err)
	return store
}

func TestRankingCommand(t *testing.T) {
	out, err := run(t, &config.Config{}, seeded(t), "ranking", "g1", "--date", "2025-07-14")
	require.NoError(t, err)
	assert.Contains(t, out, "Ranking 2025-07-14 for guild g1 (3 messages)")
	assert.Contains(t, out, "  1. beto (u2) - 2\n  2. ana (u1) - 1\n")

	out, err = run(t, &config.Config{}, seeded(t), "ranking", "g2", "--date", "2025-07-14")
	require.NoError(t, err)
	assert.Contains(t, out, "no messages")

	_, err = run(t, &config.Config{}, seeded(t), "ranking", "g1", "--date", "14/07/2025")
	assert.Error(t, err)
}

func TestStatsCommand(t *testing.T) {
	out, err := run(t, &config.Config{}, seeded(t), "stats", "g1", "u1", "--date", "2025-07-14")
	require.NoError(t, err)
	assert.Contains(t, out, "ana on 2025-07-14: 1 messages, rank #2 of 2")

	out, err = run(t, &config.Config{}, seeded(t), "stats", "g1", "u9", "--date", "2025-07-14")
	require.NoError(t, err)
	assert.Equal(t, "no messages from u9 on 2025-07-14\n", out)
}

func TestPruneCommand(t *testing.T) {
	store := seeded(t)
	cfg := &config.Config{}

	_, err := run(t, cfg, store, "prune")
	assert.Error(t, err, "retention disabled by default")

	days := int(time.Since(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)).Hours()/24) + 1
	cfg.Storage.CountRetentionDays = days
	out, err := run(t, cfg, store, "prune")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1 counters")

	_, ok, err := store.MessageCount(context.Background(), "2025-07-14", "g1", "u1")
	require.NoError(t, err)
	assert.True(t, ok, "recent counters survive")
}

func TestConfigCheck(t *testing.T) {
	cfg := &config.Config{DiscordToken: "token", CommandPrefix: ".k"}
	out, err := run(t, cfg, nil, "config", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration ok")
	assert.Contains(t, out, "storage driver: memory")
	assert.Contains(t, out, "ai: disabled")

	_, err = run(t, &config.Config{CommandPrefix: ".k"}, nil, "config", "check")
	assert.ErrorIs(t, err, config.ErrInvalidConfiguration)
}

func TestDocsCommand(t *testing.T) {
	out, err := run(t, &config.Config{CommandPrefix: "!k "}, nil, "docs")
	require.NoError(t, err)
	assert.Contains(t, out, "# Katu Bot")
	assert.Contains(t, out, "`!k ranking`, `!k top`")
}
