package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

func TestAdaptiveLimiterBounds(t *testing.T) {
	lim := NewAdaptiveLimiter(2, 1, 4, 1, 0.5)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	lim.now = func() time.Time { return now }

	assert.Equal(t, 2.0, lim.CurrentLimit())

	lim.RateLimited()
	assert.Equal(t, 1.0, lim.CurrentLimit())
	lim.RateLimited()
	assert.Equal(t, 1.0, lim.CurrentLimit(), "never below min")

	lim.Success()
	assert.Equal(t, 1.0, lim.CurrentLimit(), "no recovery right after overload")

	now = now.Add(time.Minute)
	for i := 0; i < 10; i++ {
		lim.Success()
	}
	assert.Equal(t, 4.0, lim.CurrentLimit(), "never above max")
	assert.Equal(t, 4, lim.CurrentBurst())
}

func TestNewAdaptiveLimiterClampsInitial(t *testing.T) {
	assert.Equal(t, 3.0, NewAdaptiveLimiter(10, 1, 3, 1, 0.5).CurrentLimit())
	assert.Equal(t, 1.0, NewAdaptiveLimiter(0, 1, 3, 1, 0.5).CurrentLimit())
}

func TestWaitHonoursContext(t *testing.T) {
	lim := NewAdaptiveLimiter(1, 1, 1, 0, 0.5)
	require.NoError(t, lim.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, lim.Wait(ctx))
}

func TestShouldSlowDown(t *testing.T) {
	assert.False(t, ShouldSlowDown(nil))
	assert.True(t, ShouldSlowDown(errors.New("connection reset")))
	assert.True(t, ShouldSlowDown(statusErr(http.StatusTooManyRequests)))
	assert.True(t, ShouldSlowDown(fmt.Errorf("wrapped: %w", statusErr(http.StatusBadGateway))))
	assert.False(t, ShouldSlowDown(statusErr(http.StatusBadRequest)))
}
