package mind

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"katu-bot/internal/ai"
)

// fakeClock is a manually advanced clock shared by stores and engine.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubCompleter answers from a script and records every request.
type stubCompleter struct {
	mu       sync.Mutex
	replies  []stubReply
	fallback stubReply
	requests []ai.Request
}

type stubReply struct {
	text string
	err  error
}

func (s *stubCompleter) Complete(ctx context.Context, req ai.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	r := s.fallback
	if len(s.replies) > 0 {
		r = s.replies[0]
		s.replies = s.replies[1:]
	}
	return r.text, r.err
}

func (s *stubCompleter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func alwaysText(text string) *stubCompleter {
	return &stubCompleter{fallback: stubReply{text: text}}
}

func alwaysFail() *stubCompleter {
	return &stubCompleter{fallback: stubReply{err: fmt.Errorf("%w: boom", ai.ErrCompletionFailed)}}
}

var errTransport = errors.New("transport down")

type engineFixture struct {
	engine  *Engine
	history *History
	window  *Window
	clock   *fakeClock
}

func newFixture(c ai.Completer) *engineFixture {
	clock := newFakeClock()
	history := NewHistory(30)
	window := NewWindow(DefaultWindowConfig(), clock.Now)
	ids := 0
	engine := NewEngine(c, history, window, Options{
		Personality: DefaultPersonality(),
		Params:      ai.Params{Model: "gemini-2.5-flash", Temperature: 0.85, MaxOutputTokens: 1200, TopP: 0.9, TopK: 40},
		Now:         clock.Now,
		NewID: func() string {
			ids++
			return fmt.Sprintf("resp-%d", ids)
		},
	})
	return &engineFixture{engine: engine, history: history, window: window, clock: clock}
}
