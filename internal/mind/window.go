package mind

import (
	"sync"
	"time"
)

// EmittedResponse is one reply the bot sent in a guild.
type EmittedResponse struct {
	ID         string
	GuildID    string
	UserID     string
	Text       string
	EmittedAt  time.Time
	Confidence float64
	Duplicate  bool
}

// WindowConfig bounds the response window of every guild.
type WindowConfig struct {
	Duration   time.Duration
	MaxEntries int
	Threshold  float64
}

// DefaultWindowConfig is five minutes, twenty responses, 0.6 similarity.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{Duration: 5 * time.Minute, MaxEntries: 20, Threshold: 0.6}
}

// Window remembers recent responses per guild to detect near-duplicates.
// It is safe for concurrent use.
type Window struct {
	mu      sync.Mutex
	cfg     WindowConfig
	now     func() time.Time
	buckets map[string][]EmittedResponse
}

// NewWindow creates a Window. A nil now uses time.Now.
func NewWindow(cfg WindowConfig, now func() time.Time) *Window {
	def := DefaultWindowConfig()
	if cfg.Duration <= 0 {
		cfg.Duration = def.Duration
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if now == nil {
		now = time.Now
	}
	return &Window{cfg: cfg, now: now, buckets: make(map[string][]EmittedResponse)}
}

// Config returns the window bounds in effect.
func (w *Window) Config() WindowConfig { return w.cfg }

// IsDuplicate reports whether text is at least Threshold-similar to any
// response still inside the guild's window.
func (w *Window) IsDuplicate(guildID, text string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	for _, r := range w.buckets[guildID] {
		if w.live(r, now) && Similarity(text, r.Text) >= w.cfg.Threshold {
			return true
		}
	}
	return false
}

// Record appends r to its guild bucket, then evicts expired entries and
// the oldest entries past MaxEntries.
func (w *Window) Record(r EmittedResponse) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if r.EmittedAt.IsZero() {
		r.EmittedAt = now
	}
	bucket := w.evict(append(w.buckets[r.GuildID], r), now)
	if over := len(bucket) - w.cfg.MaxEntries; over > 0 {
		bucket = append([]EmittedResponse(nil), bucket[over:]...)
	}
	w.store(r.GuildID, bucket)
}

// Recent returns up to n live responses of the guild, newest first.
func (w *Window) Recent(guildID string, n int) []EmittedResponse {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	var out []EmittedResponse
	bucket := w.buckets[guildID]
	for i := len(bucket) - 1; i >= 0 && len(out) < n; i-- {
		if w.live(bucket[i], now) {
			out = append(out, bucket[i])
		}
	}
	return out
}

// Forget drops every response sent to userID in guildID.
func (w *Window) Forget(guildID, userID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var kept []EmittedResponse
	for _, r := range w.buckets[guildID] {
		if r.UserID != userID {
			kept = append(kept, r)
		}
	}
	w.store(guildID, kept)
}

// Prune evicts expired responses in every guild and returns how many went.
func (w *Window) Prune() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	removed := 0
	for guildID, bucket := range w.buckets {
		kept := w.evict(bucket, now)
		removed += len(bucket) - len(kept)
		w.store(guildID, kept)
	}
	return removed
}

// Len returns the number of live responses in the guild.
func (w *Window) Len(guildID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	n := 0
	for _, r := range w.buckets[guildID] {
		if w.live(r, now) {
			n++
		}
	}
	return n
}

func (w *Window) live(r EmittedResponse, now time.Time) bool {
	return now.Sub(r.EmittedAt) < w.cfg.Duration
}

func (w *Window) evict(bucket []EmittedResponse, now time.Time) []EmittedResponse {
	kept := bucket[:0]
	for _, r := range bucket {
		if w.live(r, now) {
			kept = append(kept, r)
		}
	}
	return kept
}

func (w *Window) store(guildID string, bucket []EmittedResponse) {
	if len(bucket) == 0 {
		delete(w.buckets, guildID)
		return
	}
	w.buckets[guildID] = bucket
}
