// Package dashboard serves the read-mostly admin API behind the web
// dashboard: bot configuration, conversation activity, counters and
// Prometheus metrics.
package dashboard

import (
	"net/http"
	"time"

	"katu-bot/internal/ai"
	"katu-bot/internal/mind"
	"katu-bot/internal/storage"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Mind is the read side of the conversation engine. *mind.Engine implements it.
type Mind interface {
	Personality() mind.Personality
	Params() ai.Params
	WindowConfig() mind.WindowConfig
	RecentActivity(guildID string) []mind.Activity
	Stats(guildID string) mind.ConversationStats
	Totals() mind.Totals
}

// Options configure the API.
type Options struct {
	Prefix          string
	ResponseTimeout time.Duration
	// Mind is nil when conversational replies are disabled.
	Mind      Mind
	Store     storage.Storage
	StartedAt time.Time
	// RateLimit is requests per minute and client IP on /api (60).
	RateLimit int
	Now       func() time.Time
	Logger    *zap.Logger
}

type api struct {
	opts Options
	log  *zap.Logger
}

// NewRouter builds the dashboard HTTP handler.
func NewRouter(opts Options) http.Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StartedAt.IsZero() {
		opts.StartedAt = opts.Now()
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 60
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	a := &api{opts: opts, log: opts.Logger.Named("dashboard")}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(logging(a.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		MaxAge:         300,
	}))

	r.Get("/health", a.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.Limit(
			opts.RateLimit,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			}),
		))

		r.Route("/bot", func(r chi.Router) {
			r.Get("/config", a.config)
			r.Get("/activity", a.activity)
			r.Get("/stats", a.stats)
			r.Get("/conversations", a.conversations)
		})
		r.Get("/guilds/{guildID}/ranking", a.ranking)
	})
	return r
}
