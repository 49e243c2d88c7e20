package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode"
	"unicode/utf8"

	"katu-bot/internal/mind"

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

type call struct {
	kind string
	text string
}

type fakeSink struct {
	mu       sync.Mutex
	calls    []call
	typing   int
	replyErr error
	sendErr  error
}

func (s *fakeSink) Reply(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call{"reply", text})
	err := s.replyErr
	s.replyErr = nil
	return err
}

func (s *fakeSink) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call{"send", text})
	return s.sendErr
}

func (s *fakeSink) Typing(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing++
	return nil
}

func (s *fakeSink) Calls() []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]call(nil), s.calls...)
}

type responderFunc func(ctx context.Context, message, userID, guildID, displayName string) mind.Result

func (f responderFunc) GenerateResponse(ctx context.Context, message, userID, guildID, displayName string) mind.Result {
	return f(ctx, message, userID, guildID, displayName)
}

func fixed(text string) responderFunc {
	return func(ctx context.Context, message, userID, guildID, displayName string) mind.Result {
		return mind.Result{Text: text, ResponseID: "r1"}
	}
}

func never() float64 { return 1 }

func always() float64 { return 0 }

func TestShouldRespond(t *testing.T) {
	r := NewRouter(Policy{WakeWord: "katu", Chance: 0.1, MinLength: 10, Roll: never})

	cases := []struct {
		name string
		in   Inbound
		want bool
	}{
		{"mention", Inbound{GuildID: "G", Content: "hola", MentionsBot: true}, true},
		{"wake word", Inbound{GuildID: "G", Content: "katu cuéntame un chiste"}, true},
		{"wake word case", Inbound{GuildID: "G", Content: "KATU hola"}, true},
		{"bot author", Inbound{GuildID: "G", Content: "katu hola", AuthorIsBot: true}, false},
		{"direct message", Inbound{Content: "katu hola", MentionsBot: true}, false},
		{"plain chatter", Inbound{GuildID: "G", Content: "buenos días a todos"}, false},
		{"question without luck", Inbound{GuildID: "G", Content: "¿alguien sabe programar?"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.ShouldRespond(tc.in))
		})
	}
}

func TestShouldRespondChance(t *testing.T) {
	lucky := NewRouter(Policy{WakeWord: "katu", Chance: 0.1, MinLength: 10, Roll: always})
	assert.True(t, lucky.ShouldRespond(Inbound{GuildID: "G", Content: "¿alguien sabe programar?"}))
	assert.False(t, lucky.ShouldRespond(Inbound{GuildID: "G", Content: "¿qué tal?"}), "too short")
	assert.False(t, lucky.ShouldRespond(Inbound{GuildID: "G", Content: "una frase larga sin pregunta"}))

	edge := NewRouter(Policy{Chance: 0.1, MinLength: 10, Roll: func() float64 { return 0.1 }})
	assert.False(t, edge.ShouldRespond(Inbound{GuildID: "G", Content: "¿alguien sabe programar?"}))
}

func TestClean(t *testing.T) {
	r := NewRouter(Policy{WakeWord: "katu"})
	assert.Equal(t, "cuéntame un chiste", r.Clean("katu cuéntame un chiste"))
	assert.Equal(t, "hola", r.Clean("<@123> hola"))
	assert.Equal(t, "hola", r.Clean("<@!123>   Katu hola"))
	assert.Equal(t, Greeting, r.Clean("<@123>"))
	assert.Equal(t, Greeting, r.Clean("katu"))
}

func TestGuard(t *testing.T) {
	g := NewGuard(0)
	require.True(t, g.TryAcquire("G", "U"))
	assert.False(t, g.TryAcquire("G", "U"))
	assert.True(t, g.TryAcquire("G", "U2"), "other users are independent")
	assert.True(t, g.TryAcquire("G2", "U"), "other guilds are independent")

	g.Release("G", "U")
	assert.False(t, g.Busy("G", "U"))
	assert.True(t, g.TryAcquire("G", "U"))
}

func TestGuardReleaseDelay(t *testing.T) {
	g := NewGuard(20 * time.Millisecond)
	require.True(t, g.TryAcquire("G", "U"))
	g.Release("G", "U")
	assert.True(t, g.Busy("G", "U"), "held during the release delay")
	assert.Eventually(t, func() bool { return !g.Busy("G", "U") }, time.Second, 5*time.Millisecond)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func TestSplitMessageSentences(t *testing.T) {
	var sb strings.Builder
	for sb.Len() < 4500 {
		sb.WriteString("Esta es una frase de prueba bastante normal. ")
	}
	text := strings.TrimSpace(sb.String())

	chunks := SplitMessage(text, MessageLimit)
	require.Len(t, chunks, 3)
	for _, c := range chunks[:2] {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), MessageLimit)
		assert.True(t, strings.HasSuffix(c, "."), "cut at a sentence end")
	}
	assert.Equal(t, stripSpace(text), stripSpace(strings.Join(chunks, "")))
}

func TestSplitMessageWords(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("palabra ", 600))
	chunks := SplitMessage(text, 100)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100)
		assert.False(t, strings.HasSuffix(c, "palabr"), "no word is split")
	}
	assert.Equal(t, stripSpace(text), stripSpace(strings.Join(chunks, "")))
}

func TestSplitMessageHardCut(t *testing.T) {
	text := strings.Repeat("ñ", 4500)
	chunks := SplitMessage(text, MessageLimit)
	require.Len(t, chunks, 3)
	assert.Equal(t, 2000, utf8.RuneCountInString(chunks[0]))
	assert.Equal(t, 2000, utf8.RuneCountInString(chunks[1]))
	assert.Equal(t, 500, utf8.RuneCountInString(chunks[2]))
}

func TestSplitMessageShort(t *testing.T) {
	assert.Equal(t, []string{"hola"}, SplitMessage("  hola \n", MessageLimit))
	assert.Nil(t, SplitMessage("   ", MessageLimit))
	assert.Equal(t, []string{"a.", "b"}, SplitMessage("a.\nb", 3))
}

func TestDeliverOrder(t *testing.T) {
	sink := &fakeSink{}
	require.NoError(t, Deliver(context.Background(), sink, []string{"uno", "dos", "tres"}, time.Millisecond))
	assert.Equal(t, []call{{"reply", "uno"}, {"send", "dos"}, {"send", "tres"}}, sink.Calls())
}

func TestDeliverCancelled(t *testing.T) {
	sink := &fakeSink{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Deliver(ctx, sink, []string{"uno", "dos"}, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, sink.Calls(), 1)
}

func newTestHandler(r Responder) *Handler {
	return NewHandler(r, Options{Policy: Policy{WakeWord: "katu", Chance: 0.1, MinLength: 10, Roll: never}})
}

func TestHandleDeliversChunks(t *testing.T) {
	long := strings.Repeat("Una frase más para la respuesta. ", 140)
	var got string
	h := newTestHandler(responderFunc(func(ctx context.Context, message, userID, guildID, displayName string) mind.Result {
		got = message
		assert.Equal(t, "U1", userID)
		assert.Equal(t, "G1", guildID)
		assert.Equal(t, "Ana", displayName)
		return mind.Result{Text: long}
	}))
	sink := &fakeSink{}

	taken, err := h.Handle(context.Background(), Inbound{
		GuildID: "G1", AuthorID: "U1", DisplayName: "Ana", Content: "katu cuéntame un chiste",
	}, sink)
	require.NoError(t, err)
	assert.True(t, taken)
	assert.Equal(t, "cuéntame un chiste", got)

	calls := sink.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "reply", calls[0].kind)
	assert.Equal(t, "send", calls[1].kind)
	assert.Equal(t, "send", calls[2].kind)
	assert.GreaterOrEqual(t, sink.typing, 1)
}

func TestHandleIgnored(t *testing.T) {
	h := newTestHandler(fixed("nunca"))
	sink := &fakeSink{}
	taken, err := h.Handle(context.Background(), Inbound{GuildID: "G1", AuthorID: "U1", Content: "hola a todos"}, sink)
	require.NoError(t, err)
	assert.False(t, taken)
	assert.Empty(t, sink.Calls())
}

func TestHandleDropsConcurrentTrigger(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	h := newTestHandler(responderFunc(func(ctx context.Context, message, userID, guildID, displayName string) mind.Result {
		close(started)
		<-unblock
		return mind.Result{Text: "listo"}
	}))
	msg := Inbound{GuildID: "G1", AuthorID: "U1", Content: "katu hola", MentionsBot: true}

	first := make(chan bool, 1)
	go func() {
		taken, _ := h.Handle(context.Background(), msg, &fakeSink{})
		first <- taken
	}()
	<-started

	taken, err := h.Handle(context.Background(), msg, &fakeSink{})
	require.NoError(t, err)
	assert.False(t, taken, "second trigger is dropped")

	close(unblock)
	assert.True(t, <-first)
}

func TestHandleDeliveryFailure(t *testing.T) {
	h := newTestHandler(fixed("respuesta"))
	sink := &fakeSink{replyErr: errors.New("missing access")}

	taken, err := h.Handle(context.Background(), Inbound{GuildID: "G1", AuthorID: "U1", Content: "katu hola"}, sink)
	assert.True(t, taken)
	require.Error(t, err)

	calls := sink.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, call{"reply", DeliveryApology}, calls[1])
}
