package discord

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"katu-bot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// genai pulls in opencensus, which starts its view worker at init.
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

func TestNextMidnightUTC(t *testing.T) {
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2025, 7, 14, 18, 30, 0, 0, time.UTC), time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC), time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		// 01:30 in UTC+2 is still the previous UTC day
		{time.Date(2025, 3, 1, 1, 30, 0, 0, time.FixedZone("EET", 2*3600)), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NextMidnightUTC(tc.now), tc.now.String())
	}
}

func TestRunDailyResetStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunDailyReset(ctx, nil, func(context.Context, string) {
			t.Error("reset must not fire")
		})
	}()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("daily reset did not stop")
	}
}

func TestRunDailyResetFires(t *testing.T) {
	// a clock one millisecond before midnight makes the first timer short
	midnight := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	calls := 0
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return midnight.Add(-time.Millisecond)
		}
		return midnight.Add(time.Duration(calls) * time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dates := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- RunDailyReset(ctx, now, func(_ context.Context, date string) {
			select {
			case dates <- date:
			default:
			}
		})
	}()

	select {
	case d := <-dates:
		assert.Equal(t, "2025-07-15", d)
	case <-time.After(time.Second):
		t.Fatal("reset did not fire")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestChannelMentionIDs(t *testing.T) {
	assert.Equal(t, []string{"123", "456"}, ChannelMentionIDs(".ksetlog <#123> y <#456>"))
	assert.Nil(t, ChannelMentionIDs(".ksetlog #general"))
	assert.Nil(t, ChannelMentionIDs("<@123>"))
}

func TestIsTextChannel(t *testing.T) {
	assert.True(t, IsTextChannel(discordgo.ChannelTypeGuildText))
	assert.True(t, IsTextChannel(discordgo.ChannelTypeGuildNews))
	assert.True(t, IsTextChannel(discordgo.ChannelTypeGuildPublicThread))
	assert.False(t, IsTextChannel(discordgo.ChannelTypeGuildCategory))
	assert.False(t, IsTextChannel(discordgo.ChannelTypeGuildStageVoice))
	assert.False(t, IsTextChannel(discordgo.ChannelTypeGuildForum))
}

func TestDisplayNameAndMentions(t *testing.T) {
	m := &discordgo.Message{
		Author:   &discordgo.User{ID: "u1", Username: "ana_99", GlobalName: "Ana"},
		Mentions: []*discordgo.User{{ID: "bot", Username: "Katu"}, {ID: "u2", Username: "beto"}},
	}
	assert.Equal(t, "Ana", DisplayName(m))
	m.Member = &discordgo.Member{Nick: "Anita"}
	assert.Equal(t, "Anita", DisplayName(m))
	m.Member = nil
	m.Author.GlobalName = ""
	assert.Equal(t, "ana_99", DisplayName(m))

	assert.True(t, MentionsUser(m, "bot"))
	assert.False(t, MentionsUser(m, "u1"))

	users := mentionedUsers(m, "bot")
	require.Len(t, users, 1)
	assert.Equal(t, "u2", users[0].ID)
	assert.Equal(t, "beto", users[0].Username)
}

func TestIsAdministrator(t *testing.T) {
	g := &discordgo.Guild{
		ID:      "g1",
		OwnerID: "owner",
		Roles: []*discordgo.Role{
			{ID: "g1", Permissions: discordgo.PermissionViewChannel},
			{ID: "mods", Permissions: discordgo.PermissionManageMessages},
			{ID: "admins", Permissions: discordgo.PermissionAdministrator},
		},
	}
	assert.True(t, IsAdministrator(g, "owner", nil))
	assert.True(t, IsAdministrator(g, "u1", []string{"mods", "admins"}))
	assert.False(t, IsAdministrator(g, "u2", []string{"mods"}))
	assert.False(t, IsAdministrator(g, "u3", nil))
	assert.False(t, IsAdministrator(nil, "owner", nil))

	g.Roles[0].Permissions |= discordgo.PermissionAdministrator
	assert.True(t, IsAdministrator(g, "u3", nil), "@everyone with administrator")
}

type sentEmbed struct {
	channelID string
	embed     *discordgo.MessageEmbed
}

type embedRecorder struct {
	mu   sync.Mutex
	sent []sentEmbed
	err  error
}

func (r *embedRecorder) send(_ context.Context, channelID string, e *discordgo.MessageEmbed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentEmbed{channelID, e})
	return r.err
}

func (r *embedRecorder) channels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, s := range r.sent {
		out = append(out, s.channelID)
	}
	sort.Strings(out)
	return out
}

func TestLogChannel(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	_, err := store.SetLogChannel(ctx, "g1", "logs1")
	require.NoError(t, err)
	_, err = store.SetLogChannel(ctx, "g2", "logs2")
	require.NoError(t, err)

	rec := &embedRecorder{}
	logs := NewLogChannel(store, rec.send, zap.NewNop())
	logs.now = func() time.Time { return time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC) }

	logs.Log(ctx, "g1", "👋 hola")
	logs.Log(ctx, "g3", "sin canal")
	require.Len(t, rec.sent, 1)
	assert.Equal(t, "logs1", rec.sent[0].channelID)
	assert.Equal(t, "👋 hola", rec.sent[0].embed.Description)
	assert.Equal(t, "Katu Bot Log", rec.sent[0].embed.Footer.Text)

	logs.Broadcast(ctx, []string{"g1", "g2", "g3"}, "🔄 Reset")
	assert.Equal(t, []string{"logs1", "logs1", "logs2"}, rec.channels())
}

func TestLogChannelSwallowsErrors(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	_, err := store.SetLogChannel(ctx, "g1", "gone")
	require.NoError(t, err)

	rec := &embedRecorder{err: errors.New("unknown channel")}
	logs := NewLogChannel(store, rec.send, nil)
	logs.Broadcast(ctx, []string{"g1"}, "🚀")
	assert.Len(t, rec.sent, 1)
}

func TestCountMessageFirstOfDay(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	now := time.Date(2025, 7, 14, 23, 59, 0, 0, time.UTC)

	first, err := CountMessage(ctx, store, now, "g1", "u1", "ana")
	require.NoError(t, err)
	assert.True(t, first)

	first, err = CountMessage(ctx, store, now, "g1", "u1", "ana")
	require.NoError(t, err)
	assert.False(t, first)

	first, err = CountMessage(ctx, store, now.Add(2*time.Minute), "g1", "u1", "ana")
	require.NoError(t, err)
	assert.True(t, first, "a new UTC day starts a new counter")

	c, ok, err := store.MessageCount(ctx, "2025-07-14", "g1", "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, c.Count)
}

type fakeMessenger struct {
	sent   []*discordgo.MessageSend
	typing int
	err    error
}

func (f *fakeMessenger) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, data)
	return &discordgo.Message{ChannelID: channelID}, f.err
}

func (f *fakeMessenger) ChannelTyping(string, ...discordgo.RequestOption) error {
	f.typing++
	return f.err
}

func TestMessageSink(t *testing.T) {
	ctx := context.Background()
	api := &fakeMessenger{}
	msg := &discordgo.Message{ID: "m1", ChannelID: "c1", GuildID: "g1"}
	sink := newMessageSink(api, msg, NewLogChannel(storage.NewMemory(), (&embedRecorder{}).send, nil))

	require.NoError(t, sink.Reply(ctx, "primero"))
	require.NoError(t, sink.Send(ctx, "segundo"))
	require.NoError(t, sink.ReplyEmbed(ctx, &discordgo.MessageEmbed{Title: "📊"}))
	require.NoError(t, sink.Typing(ctx))

	require.Len(t, api.sent, 3)
	require.NotNil(t, api.sent[0].Reference)
	assert.Equal(t, "m1", api.sent[0].Reference.MessageID)
	assert.Equal(t, "primero", api.sent[0].Content)
	assert.Nil(t, api.sent[1].Reference, "follow-ups are plain messages")
	assert.Equal(t, "📊", api.sent[2].Embeds[0].Title)
	for _, s := range api.sent {
		assert.Empty(t, s.AllowedMentions.Parse, "no mass or user pings")
	}
	assert.Equal(t, 1, api.typing)

	api.err = errors.New("missing access")
	assert.Error(t, sink.Reply(ctx, "x"))
}
