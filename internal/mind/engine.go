package mind

import (
	"context"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"katu-bot/internal/ai"
	"katu-bot/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FallbackText is sent when the primary completion fails.
const FallbackText = "Ay, lo siento mucho... parece que algo salió mal por mi parte 😔. " +
	"No sé si es mi conexión o si cometí algún error, pero... ¿podrías intentar preguntarme de nuevo? " +
	"A veces soy un poco torpe con estas cosas técnicas..."

const (
	ActivityKindResponse = "AI_RESPONSE"

	activityLimit  = 10
	previewLength  = 80
	statsLookback  = time.Hour
	neutralAverage = 0.5
)

// Result is the answer to one GenerateResponse call.
type Result struct {
	Text        string
	ResponseID  string
	EmittedAt   time.Time
	Confidence  float64
	Fallback    bool
	Duplicate   bool
	Regenerated bool
}

// Activity is one entry of the dashboard feed.
type Activity struct {
	EmittedAt  time.Time `json:"timestamp"`
	Kind       string    `json:"action"`
	Preview    string    `json:"details"`
	Confidence float64   `json:"confidence"`
	Duplicate  bool      `json:"duplicate"`
}

// ConversationStats summarizes a guild's conversational state.
type ConversationStats struct {
	TotalConversations int     `json:"totalConversations"`
	TotalResponses     int     `json:"totalResponses"`
	AverageConfidence  float64 `json:"averageConfidence"`
	RecentActivity     int     `json:"recentActivity"`
}

// Totals are process-wide counters since start.
type Totals struct {
	Responses     int64 `json:"totalResponses"`
	Duplicates    int64 `json:"duplicatesBlocked"`
	Regenerations int64 `json:"regenerations"`
	Fallbacks     int64 `json:"fallbacks"`
}

// SuccessRate is the share of requests answered without falling back, in percent.
func (t Totals) SuccessRate() float64 {
	all := t.Responses + t.Fallbacks
	if all == 0 {
		return 100
	}
	return float64(t.Responses) / float64(all) * 100
}

// Options configure an Engine. Zero values take the documented defaults.
type Options struct {
	Personality Personality
	// Params drive the primary completion.
	Params ai.Params
	// RegenerateParams drive the variation request. Zero means Params
	// without TopP and TopK.
	RegenerateParams ai.Params
	// ContextTurns is how many turns go into the prompt (10).
	ContextTurns int
	// HistoryRetention is the purge horizon used by Sweep (24h).
	HistoryRetention time.Duration

	Now    func() time.Time
	NewID  func() string
	Logger *zap.Logger
}

// Engine answers chat messages while keeping per-user history and
// suppressing near-duplicate replies within a guild.
type Engine struct {
	completer ai.Completer
	history   *History
	window    *Window
	opts      Options
	log       *zap.Logger

	responses     atomic.Int64
	duplicates    atomic.Int64
	regenerations atomic.Int64
	fallbacks     atomic.Int64
}

// NewEngine wires the stores and the completer together.
func NewEngine(c ai.Completer, history *History, window *Window, opts Options) *Engine {
	if opts.ContextTurns <= 0 {
		opts.ContextTurns = 10
	}
	if opts.HistoryRetention <= 0 {
		opts.HistoryRetention = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RegenerateParams == (ai.Params{}) {
		opts.RegenerateParams = opts.Params
		opts.RegenerateParams.TopP = 0
		opts.RegenerateParams.TopK = 0
	}
	return &Engine{
		completer: c,
		history:   history,
		window:    window,
		opts:      opts,
		log:       opts.Logger.Named("mind"),
	}
}

// Personality returns the active personality.
func (e *Engine) Personality() Personality { return e.opts.Personality }

// Params returns the primary sampling parameters.
func (e *Engine) Params() ai.Params { return e.opts.Params }

// WindowConfig returns the duplicate window bounds.
func (e *Engine) WindowConfig() WindowConfig { return e.window.Config() }

// GenerateResponse answers message from userID in guildID. It never fails:
// a broken primary completion yields FallbackText with confidence 0.1.
// It makes at most two completion calls.
func (e *Engine) GenerateResponse(ctx context.Context, message, userID, guildID, displayName string) Result {
	key := ConversationKey{GuildID: guildID, UserID: userID}
	p := e.opts.Personality
	log := e.log.With(zap.String("guild", guildID), zap.String("user", userID))

	e.history.Append(key, Turn{Role: RoleUser, Content: message, OccurredAt: e.opts.Now()})
	metrics.HistoryLanes.Set(float64(e.history.Lanes("")))

	var transcript []Turn
	if p.RememberContext {
		transcript = e.history.Recent(key, e.opts.ContextTurns)
	}
	prompt := BuildPrompt(p, transcript, displayName, message)

	text, err := e.complete(ctx, "primary", prompt, e.opts.Params)
	if err != nil {
		log.Warn("primary completion failed, sending fallback", zap.Error(err))
		e.fallbacks.Add(1)
		metrics.FallbackResponses.Inc()
		return Result{
			Text:       FallbackText,
			ResponseID: e.opts.NewID(),
			EmittedAt:  e.opts.Now(),
			Confidence: FallbackConfidence,
			Fallback:   true,
		}
	}

	res := Result{Text: text}
	// Check and Record lock the guild lane separately; concurrent users of one guild may both pass.
	if e.window.IsDuplicate(guildID, text) {
		res.Duplicate = true
		e.duplicates.Add(1)
		metrics.DuplicatesDetected.Inc()
		log.Info("duplicate answer detected, regenerating")

		variation := BuildVariationPrompt(p, text, message)
		alt, err := e.complete(ctx, "regenerate", variation, e.opts.RegenerateParams)
		if err != nil {
			log.Warn("regeneration failed, keeping duplicate answer", zap.Error(err))
		} else {
			res.Text = alt
			res.Regenerated = true
			e.regenerations.Add(1)
		}
	}

	res.Confidence = Confidence(p.ConfidenceBaseline, res.Text)
	res.ResponseID = e.opts.NewID()
	res.EmittedAt = e.opts.Now()

	e.history.Append(key, Turn{Role: RoleAssistant, Content: res.Text, OccurredAt: res.EmittedAt})
	e.window.Record(EmittedResponse{
		ID:         res.ResponseID,
		GuildID:    guildID,
		UserID:     userID,
		Text:       res.Text,
		EmittedAt:  res.EmittedAt,
		Confidence: res.Confidence,
		Duplicate:  res.Duplicate && !res.Regenerated,
	})
	e.responses.Add(1)

	log.Debug("answer ready",
		zap.String("response_id", res.ResponseID),
		zap.Float64("confidence", res.Confidence),
		zap.Bool("duplicate", res.Duplicate),
		zap.Bool("regenerated", res.Regenerated))
	return res
}

func (e *Engine) complete(ctx context.Context, kind string, p Prompt, params ai.Params) (string, error) {
	start := time.Now()
	text, err := e.completer.Complete(ctx, ai.Request{
		SystemInstruction: p.SystemInstruction,
		UserContent:       p.UserContent,
		Params:            params,
	})
	if err == nil && strings.TrimSpace(text) == "" {
		err = ai.ErrCompletionFailed
	}
	metrics.RecordCompletion(kind, time.Since(start), err)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// ClearHistory forgets the user's lane and the replies sent to them.
func (e *Engine) ClearHistory(userID, guildID string) {
	e.history.Clear(ConversationKey{GuildID: guildID, UserID: userID})
	e.window.Forget(guildID, userID)
	metrics.HistoryLanes.Set(float64(e.history.Lanes("")))
}

// RecentActivity lists the guild's latest replies, newest first.
func (e *Engine) RecentActivity(guildID string) []Activity {
	recent := e.window.Recent(guildID, activityLimit)
	out := make([]Activity, 0, len(recent))
	for _, r := range recent {
		out = append(out, Activity{
			EmittedAt:  r.EmittedAt,
			Kind:       ActivityKindResponse,
			Preview:    preview(r.Text),
			Confidence: r.Confidence,
			Duplicate:  r.Duplicate,
		})
	}
	return out
}

// Stats summarizes the guild: lanes, replies in the window, their average
// confidence, and how many were sent in the last hour.
func (e *Engine) Stats(guildID string) ConversationStats {
	recent := e.window.Recent(guildID, e.window.Config().MaxEntries)
	stats := ConversationStats{
		TotalConversations: e.history.Lanes(guildID),
		TotalResponses:     len(recent),
		AverageConfidence:  neutralAverage,
	}
	if len(recent) == 0 {
		return stats
	}

	now := e.opts.Now()
	var sum float64
	for _, r := range recent {
		sum += r.Confidence
		if now.Sub(r.EmittedAt) < statsLookback {
			stats.RecentActivity++
		}
	}
	stats.AverageConfidence = sum / float64(len(recent))
	return stats
}

// Totals returns counters accumulated since the engine was created.
func (e *Engine) Totals() Totals {
	return Totals{
		Responses:     e.responses.Load(),
		Duplicates:    e.duplicates.Load(),
		Regenerations: e.regenerations.Load(),
		Fallbacks:     e.fallbacks.Load(),
	}
}

// Sweep purges history older than the retention horizon and expired
// window entries. It is meant to be called on a schedule.
func (e *Engine) Sweep() (turns, responses int) {
	turns = e.history.PurgeOlderThan(e.opts.Now().Add(-e.opts.HistoryRetention))
	responses = e.window.Prune()
	metrics.HistoryLanes.Set(float64(e.history.Lanes("")))
	return turns, responses
}

// RunSweeper calls Sweep every interval until ctx is done.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			turns, responses := e.Sweep()
			if turns > 0 || responses > 0 {
				e.log.Info("swept conversation state",
					zap.Int("turns", turns), zap.Int("responses", responses))
			}
		}
	}
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	r := []rune(text)
	return string(r[:previewLength-3]) + "..."
}
