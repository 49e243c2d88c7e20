package mind

import (
	"context"
	"strings"
	"testing"
	"time"

	"katu-bot/internal/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// genai pulls in opencensus, which starts its view worker at init.
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

const joke = "Aquí va un chiste... ¿Qué le dice un gato a otro gato? ¡Miau! Espero que te haya gustado."

func TestGenerateResponseScenario(t *testing.T) {
	stub := &stubCompleter{replies: []stubReply{{text: joke}}}
	f := newFixture(stub)
	key := ConversationKey{GuildID: "G1", UserID: "U1"}

	res := f.engine.GenerateResponse(context.Background(), "cuéntame un chiste", "U1", "G1", "Ana")

	assert.Equal(t, joke, res.Text)
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)
	assert.False(t, res.Fallback)
	assert.False(t, res.Duplicate)
	assert.Equal(t, "resp-1", res.ResponseID)
	assert.Equal(t, f.clock.Now(), res.EmittedAt)
	assert.Equal(t, 1, stub.Calls())

	turns := f.history.Recent(key, 10)
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, "cuéntame un chiste", turns[0].Content)
	assert.Equal(t, RoleAssistant, turns[1].Role)
	assert.Equal(t, joke, turns[1].Content)

	req := stub.requests[0]
	assert.Contains(t, req.UserContent, "Ana: cuéntame un chiste")
	assert.Equal(t, SystemInstruction(DefaultPersonality()), req.SystemInstruction)
	assert.Equal(t, float32(0.9), req.Params.TopP)
	assert.Equal(t, "gemini-2.5-flash", req.Params.Model)

	assert.Equal(t, 1, f.window.Len("G1"))
}

func TestGenerateResponseFallback(t *testing.T) {
	stub := alwaysFail()
	f := newFixture(stub)

	for i := 0; i < 3; i++ {
		res := f.engine.GenerateResponse(context.Background(), "hola", "U1", "G1", "Ana")
		assert.Equal(t, FallbackText, res.Text)
		assert.True(t, res.Fallback)
		assert.InDelta(t, FallbackConfidence, res.Confidence, 1e-9)
		assert.GreaterOrEqual(t, res.Confidence, 0.1)
		assert.LessOrEqual(t, res.Confidence, 1.0)
		assert.NotEmpty(t, res.ResponseID)
	}

	assert.Equal(t, 3, stub.Calls(), "no retry on failure")
	assert.Equal(t, 0, f.window.Len("G1"), "fallbacks are not recorded")
	assert.Equal(t, 3, f.history.Len(ConversationKey{GuildID: "G1", UserID: "U1"}), "only user turns")
	assert.Equal(t, int64(3), f.engine.Totals().Fallbacks)
}

func TestGenerateResponseEmptyTextIsFailure(t *testing.T) {
	stub := alwaysText("   ")
	f := newFixture(stub)

	res := f.engine.GenerateResponse(context.Background(), "hola", "U1", "G1", "Ana")
	assert.True(t, res.Fallback)
	assert.Equal(t, FallbackText, res.Text)
}

func TestGenerateResponseDuplicateRegenerates(t *testing.T) {
	stub := alwaysText(joke)
	f := newFixture(stub)

	first := f.engine.GenerateResponse(context.Background(), "un chiste", "U1", "G1", "Ana")
	require.Equal(t, 1, stub.Calls())

	second := f.engine.GenerateResponse(context.Background(), "otro chiste", "U2", "G1", "Luis")
	assert.Equal(t, 3, stub.Calls(), "primary plus one regeneration")
	assert.NotEqual(t, first.ResponseID, second.ResponseID)
	assert.True(t, second.Duplicate)
	assert.True(t, second.Regenerated)

	regen := stub.requests[2]
	assert.Contains(t, regen.UserContent, joke)
	assert.Contains(t, regen.UserContent, "otro chiste")
	assert.Zero(t, regen.Params.TopP)
	assert.Zero(t, regen.Params.TopK)

	totals := f.engine.Totals()
	assert.Equal(t, int64(2), totals.Responses)
	assert.Equal(t, int64(1), totals.Duplicates)
}

func TestGenerateResponseRegenerationFailureKeepsPrimary(t *testing.T) {
	stub := &stubCompleter{replies: []stubReply{
		{text: joke},
		{text: joke},
		{err: errTransport},
	}}
	f := newFixture(stub)

	f.engine.GenerateResponse(context.Background(), "un chiste", "U1", "G1", "Ana")
	res := f.engine.GenerateResponse(context.Background(), "otro", "U1", "G1", "Ana")

	assert.Equal(t, 3, stub.Calls())
	assert.Equal(t, joke, res.Text)
	assert.True(t, res.Duplicate)
	assert.False(t, res.Regenerated)
	assert.False(t, res.Fallback)

	activity := f.engine.RecentActivity("G1")
	require.Len(t, activity, 2)
	assert.True(t, activity[0].Duplicate, "kept duplicate shows in the feed")
}

func TestGenerateResponseDifferentGuildsDoNotCollide(t *testing.T) {
	stub := alwaysText(joke)
	f := newFixture(stub)

	f.engine.GenerateResponse(context.Background(), "chiste", "U1", "G1", "Ana")
	res := f.engine.GenerateResponse(context.Background(), "chiste", "U1", "G2", "Ana")

	assert.Equal(t, 2, stub.Calls())
	assert.False(t, res.Duplicate)
}

func TestGenerateResponseWindowExpiry(t *testing.T) {
	stub := alwaysText(joke)
	f := newFixture(stub)

	f.engine.GenerateResponse(context.Background(), "chiste", "U1", "G1", "Ana")
	f.clock.Advance(5*time.Minute + time.Millisecond)
	res := f.engine.GenerateResponse(context.Background(), "chiste", "U1", "G1", "Ana")

	assert.Equal(t, 2, stub.Calls())
	assert.False(t, res.Duplicate)
}

func TestGenerateResponseUsesLastTenTurns(t *testing.T) {
	stub := &stubCompleter{}
	for i := 0; i < 20; i++ {
		stub.replies = append(stub.replies, stubReply{text: "respuesta distinta " + string(rune('a'+i))})
	}
	f := newFixture(stub)
	f.window = NewWindow(WindowConfig{Duration: time.Minute, MaxEntries: 20, Threshold: 1}, f.clock.Now)
	f.engine.window = f.window

	for i := 0; i < 8; i++ {
		f.engine.GenerateResponse(context.Background(), "mensaje", "U1", "G1", "Ana")
		f.clock.Advance(2 * time.Minute)
	}

	last := stub.requests[len(stub.requests)-1].UserContent
	lines := strings.Split(strings.TrimPrefix(last, "Historial de conversación reciente:\n"), "\n\n")[0]
	assert.Len(t, strings.Split(lines, "\n"), 10)
}

func TestRememberContextOff(t *testing.T) {
	stub := alwaysText(joke)
	f := newFixture(stub)
	f.engine.opts.Personality.RememberContext = false
	f.history.Append(ConversationKey{GuildID: "G1", UserID: "U1"}, Turn{Role: RoleUser, Content: "secreto"})

	f.engine.GenerateResponse(context.Background(), "hola", "U1", "G1", "Ana")
	assert.NotContains(t, stub.requests[0].UserContent, "secreto")
	assert.Contains(t, stub.requests[0].UserContent, "Ana: hola")
}

func TestClearHistory(t *testing.T) {
	stub := alwaysText(joke)
	f := newFixture(stub)

	f.engine.GenerateResponse(context.Background(), "hola", "U1", "G1", "Ana")
	f.engine.ClearHistory("U1", "G1")

	assert.Equal(t, 0, f.history.Len(ConversationKey{GuildID: "G1", UserID: "U1"}))
	assert.Empty(t, f.engine.RecentActivity("G1"))

	res := f.engine.GenerateResponse(context.Background(), "hola", "U1", "G1", "Ana")
	assert.False(t, res.Duplicate, "forgotten replies no longer count")
}

func TestRecentActivity(t *testing.T) {
	stub := &stubCompleter{}
	for i := 0; i < 12; i++ {
		stub.replies = append(stub.replies, stubReply{text: strings.Repeat(string(rune('a'+i)), 100)})
	}
	f := newFixture(stub)

	for i := 0; i < 12; i++ {
		f.engine.GenerateResponse(context.Background(), "hola", "U1", "G1", "Ana")
		f.clock.Advance(time.Second)
	}

	activity := f.engine.RecentActivity("G1")
	require.Len(t, activity, 10)
	assert.Equal(t, ActivityKindResponse, activity[0].Kind)
	assert.True(t, activity[0].EmittedAt.After(activity[9].EmittedAt), "newest first")
	assert.True(t, strings.HasPrefix(activity[0].Preview, "lll"))
	assert.LessOrEqual(t, len([]rune(activity[0].Preview)), 80)
	assert.True(t, strings.HasSuffix(activity[0].Preview, "..."))
	assert.Empty(t, f.engine.RecentActivity("nobody"))
}

func TestStats(t *testing.T) {
	stub := &stubCompleter{replies: []stubReply{{text: joke}, {text: "Vale."}}}
	f := newFixture(stub)

	empty := f.engine.Stats("G1")
	assert.Equal(t, ConversationStats{AverageConfidence: 0.5}, empty)

	f.engine.GenerateResponse(context.Background(), "hola", "U1", "G1", "Ana")
	f.engine.GenerateResponse(context.Background(), "hola", "U2", "G1", "Luis")

	stats := f.engine.Stats("G1")
	assert.Equal(t, 2, stats.TotalConversations)
	assert.Equal(t, 2, stats.TotalResponses)
	assert.Equal(t, 2, stats.RecentActivity)
	assert.InDelta(t, (0.7+0.6)/2, stats.AverageConfidence, 1e-9)
}

func TestTotalsSuccessRate(t *testing.T) {
	assert.Equal(t, 100.0, Totals{}.SuccessRate())
	assert.InDelta(t, 75.0, Totals{Responses: 3, Fallbacks: 1}.SuccessRate(), 1e-9)
}

func TestSweep(t *testing.T) {
	stub := alwaysText(joke)
	f := newFixture(stub)

	f.engine.GenerateResponse(context.Background(), "hola", "U1", "G1", "Ana")
	f.clock.Advance(25 * time.Hour)

	turns, responses := f.engine.Sweep()
	assert.Equal(t, 2, turns)
	assert.Equal(t, 1, responses)
	assert.Equal(t, 0, f.history.Lanes(""))
}

func TestRunSweeperStops(t *testing.T) {
	f := newFixture(alwaysText(joke))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.engine.RunSweeper(ctx, time.Millisecond) }()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestNewEngineDefaults(t *testing.T) {
	e := NewEngine(alwaysText("x"), NewHistory(0), NewWindow(WindowConfig{}, nil), Options{
		Params: ai.Params{Model: "m", TopP: 0.9, TopK: 40},
	})
	assert.Equal(t, 10, e.opts.ContextTurns)
	assert.Equal(t, 24*time.Hour, e.opts.HistoryRetention)
	assert.Equal(t, "m", e.opts.RegenerateParams.Model)
	assert.Zero(t, e.opts.RegenerateParams.TopK)
	assert.NotEmpty(t, e.opts.NewID())
}
