package dashboard

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"katu-bot/internal/mind"
	"katu-bot/internal/storage"
	"katu-bot/pkg/util"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	defaultRankingLimit = 100
	maxRankingLimit     = 1000
)

type geminiView struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int32   `json:"maxTokens"`
}

type duplicateView struct {
	Enabled       bool    `json:"enabled"`
	WindowMinutes float64 `json:"windowMinutes"`
	MaxResponses  int     `json:"maxResponses"`
	// Threshold is the similarity threshold in percent.
	Threshold float64 `json:"threshold"`
}

type configView struct {
	Prefix              string            `json:"prefix"`
	Enabled             bool              `json:"enabled"`
	ResponseTimeout     float64           `json:"responseTimeout"`
	Gemini              *geminiView       `json:"gemini,omitempty"`
	Personality         *mind.Personality `json:"personality,omitempty"`
	DuplicatePrevention duplicateView     `json:"duplicatePrevention"`
}

type statsView struct {
	DuplicatesBlocked int64   `json:"duplicatesBlocked"`
	Regenerations     int64   `json:"regenerations"`
	Fallbacks         int64   `json:"fallbacks"`
	SuccessRate       float64 `json:"successRate"`
	TotalResponses    int64   `json:"totalResponses"`
	Uptime            string  `json:"uptime"`
}

type rankingView struct {
	Date          string                 `json:"date"`
	GuildID       string                 `json:"guildId"`
	TotalMessages int                    `json:"totalMessages"`
	Ranking       []storage.MessageCount `json:"ranking"`
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"uptime": a.uptime(),
	})
}

func (a *api) uptime() string {
	return util.FormatUptime(a.opts.Now().Sub(a.opts.StartedAt))
}

func (a *api) config(w http.ResponseWriter, r *http.Request) {
	view := configView{
		Prefix:          a.opts.Prefix,
		Enabled:         a.opts.Mind != nil,
		ResponseTimeout: a.opts.ResponseTimeout.Seconds(),
	}
	if m := a.opts.Mind; m != nil {
		p := m.Params()
		personality := m.Personality()
		window := m.WindowConfig()
		view.Gemini = &geminiView{Model: p.Model, Temperature: round2(float64(p.Temperature)), MaxTokens: p.MaxOutputTokens}
		view.Personality = &personality
		view.DuplicatePrevention = duplicateView{
			Enabled:       true,
			WindowMinutes: window.Duration.Minutes(),
			MaxResponses:  window.MaxEntries,
			Threshold:     round2(window.Threshold * 100),
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *api) activity(w http.ResponseWriter, r *http.Request) {
	guildID := r.URL.Query().Get("guildId")
	if guildID == "" {
		writeError(w, http.StatusBadRequest, "Guild ID required")
		return
	}
	activity := []mind.Activity{}
	if a.opts.Mind != nil {
		activity = a.opts.Mind.RecentActivity(guildID)
	}
	writeJSON(w, http.StatusOK, activity)
}

func (a *api) conversations(w http.ResponseWriter, r *http.Request) {
	guildID := r.URL.Query().Get("guildId")
	if guildID == "" {
		writeError(w, http.StatusBadRequest, "Guild ID required")
		return
	}
	stats := mind.ConversationStats{AverageConfidence: 0.5}
	if a.opts.Mind != nil {
		stats = a.opts.Mind.Stats(guildID)
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *api) stats(w http.ResponseWriter, r *http.Request) {
	var totals mind.Totals
	if a.opts.Mind != nil {
		totals = a.opts.Mind.Totals()
	}
	writeJSON(w, http.StatusOK, statsView{
		DuplicatesBlocked: totals.Duplicates,
		Regenerations:     totals.Regenerations,
		Fallbacks:         totals.Fallbacks,
		SuccessRate:       round2(totals.SuccessRate()),
		TotalResponses:    totals.Responses,
		Uptime:            a.uptime(),
	})
}

func (a *api) ranking(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	q := r.URL.Query()

	date := q.Get("date")
	if date == "" {
		date = storage.Day(a.opts.Now())
	} else if _, err := time.Parse(storage.DayLayout, date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	limit := defaultRankingLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRankingLimit)
	}

	ranking, err := a.opts.Store.DailyRanking(r.Context(), date, guildID, limit)
	if err != nil {
		a.log.Error("failed to load ranking", zap.String("guild", guildID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get ranking")
		return
	}
	total, err := a.opts.Store.TotalMessages(r.Context(), date, guildID)
	if err != nil {
		a.log.Error("failed to load total", zap.String("guild", guildID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get ranking")
		return
	}
	if ranking == nil {
		ranking = []storage.MessageCount{}
	}
	writeJSON(w, http.StatusOK, rankingView{Date: date, GuildID: guildID, TotalMessages: total, Ranking: ranking})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
