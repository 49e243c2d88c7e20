package chat

import (
	"context"
	"sync"
	"time"

	"katu-bot/internal/mind"
	"katu-bot/pkg/metrics"

	"go.uber.org/zap"
)

// DeliveryApology is posted when an answer could not be delivered.
const DeliveryApology = "Meow! I'm having a bit of trouble right now. Can you try again in a moment? 🐱"

const typingInterval = 8 * time.Second

// Responder produces answers. *mind.Engine implements it.
type Responder interface {
	GenerateResponse(ctx context.Context, message, userID, guildID, displayName string) mind.Result
}

// Options configure a Handler.
type Options struct {
	Policy       Policy
	ReleaseDelay time.Duration
	ChunkDelay   time.Duration
	Logger       *zap.Logger
}

// Handler routes inbound messages to a Responder and delivers the result.
type Handler struct {
	router     *Router
	guard      *Guard
	responder  Responder
	chunkDelay time.Duration
	typing     time.Duration
	log        *zap.Logger
}

func NewHandler(r Responder, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Handler{
		router:     NewRouter(opts.Policy),
		guard:      NewGuard(opts.ReleaseDelay),
		responder:  r,
		chunkDelay: opts.ChunkDelay,
		typing:     typingInterval,
		log:        opts.Logger.Named("chat"),
	}
}

// Handle answers m through sink when the policy triggers and no other
// conversation for the same user is running. It reports whether the
// message was taken.
func (h *Handler) Handle(ctx context.Context, m Inbound, sink Sink) (bool, error) {
	if !h.router.ShouldRespond(m) {
		return false, nil
	}
	log := h.log.With(zap.String("guild", m.GuildID), zap.String("user", m.AuthorID))
	if !h.guard.TryAcquire(m.GuildID, m.AuthorID) {
		metrics.TriggersDropped.Inc()
		log.Debug("conversation already in flight, dropping trigger")
		return false, nil
	}
	defer h.guard.Release(m.GuildID, m.AuthorID)

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		keepTyping(ctx, sink, h.typing, done)
	}()

	res := h.responder.GenerateResponse(ctx, h.router.Clean(m.Content), m.AuthorID, m.GuildID, m.DisplayName)
	close(done)
	wg.Wait()

	chunks := SplitMessage(res.Text, MessageLimit)
	if err := Deliver(ctx, sink, chunks, h.chunkDelay); err != nil {
		log.Error("failed to deliver answer", zap.String("response_id", res.ResponseID), zap.Error(err))
		if rerr := sink.Reply(ctx, DeliveryApology); rerr != nil {
			log.Warn("failed to deliver apology", zap.Error(rerr))
		}
		return true, err
	}

	log.Debug("answer delivered",
		zap.String("response_id", res.ResponseID),
		zap.Int("chunks", len(chunks)),
		zap.Float64("confidence", res.Confidence))
	return true, nil
}
