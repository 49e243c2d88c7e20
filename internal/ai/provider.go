package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"katu-bot/internal/config"
	"katu-bot/pkg/retrylimit"

	"golang.org/x/time/rate"
)

// ErrCompletionFailed covers every way a completion can fail: transport,
// timeout, rate limiting, or an empty answer.
var ErrCompletionFailed = errors.New("completion failed")

// Params are the sampling parameters of one completion request.
// Zero TopP or TopK leaves the provider default.
type Params struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	TopP            float32
	TopK            float32
}

// Request is a single-turn completion: a system instruction plus user content.
type Request struct {
	SystemInstruction string
	UserContent       string
	Params            Params
}

// Completer issues exactly one request per call and never retries.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

var presetBaseURLs = map[string]string{
	config.ProviderG4F:          "https://g4f.dev/api/gpt-oss-120b",
	config.ProviderPollinations: "https://text.pollinations.ai/openai",
}

// New builds the Completer for the configured provider, paced by an
// adaptive limiter and bounded by the configured per-call timeout.
func New(ctx context.Context, cfg config.AIConfig) (Completer, error) {
	var c Completer
	switch cfg.Provider {
	case config.ProviderGemini:
		g, err := NewGemini(ctx, cfg.GeminiAPIKey, "")
		if err != nil {
			return nil, err
		}
		c = g
	case config.ProviderOpenAI:
		c = NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	case config.ProviderG4F, config.ProviderPollinations:
		base := cfg.OpenAIBaseURL
		if base == "" {
			base = presetBaseURLs[cfg.Provider]
		}
		c = NewOpenAI(cfg.OpenAIAPIKey, base)
	default:
		return nil, fmt.Errorf("unsupported AI provider %q", cfg.Provider)
	}

	rps := rate.Limit(cfg.RequestsPerSecond)
	if rps <= 0 {
		rps = 2
	}
	lim := retrylimit.NewAdaptiveLimiter(rps, rps/4, rps*2, rps/4, 0.5)
	return WithTimeout(Paced(c, lim), cfg.Timeout), nil
}

// Paced waits on lim before each call and feeds the outcome back into it.
func Paced(c Completer, lim *retrylimit.AdaptiveLimiter) Completer {
	return CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		if err := lim.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: rate limiter: %w", ErrCompletionFailed, err)
		}
		text, err := c.Complete(ctx, req)
		if err != nil {
			if retrylimit.ShouldSlowDown(err) {
				lim.RateLimited()
			}
			return "", err
		}
		lim.Success()
		return text, nil
	})
}

// WithTimeout bounds every call by d. Zero or negative d disables the bound.
func WithTimeout(c Completer, d time.Duration) Completer {
	if d <= 0 {
		return c
	}
	return CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return c.Complete(ctx, req)
	})
}

func failed(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCompletionFailed, provider, err)
}

var errEmpty = errors.New("empty response")

// statusError keeps the HTTP status of a provider error visible to the limiter.
type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string   { return e.err.Error() }
func (e *statusError) Unwrap() error   { return e.err }
func (e *statusError) StatusCode() int { return e.code }
