package util

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestParallelVisitsEveryInput(t *testing.T) {
	var sum atomic.Int64
	err := Parallel(context.Background(), []int{1, 2, 3, 4, 5}, 2, func(_ context.Context, n int) error {
		sum.Add(int64(n))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15), sum.Load())
}

func TestParallelFirstError(t *testing.T) {
	boom := errors.New("boom")
	err := Parallel(context.Background(), []string{"a", "b", "c"}, 1, func(_ context.Context, s string) error {
		if s == "b" {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestParallelCancelledParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	err := Parallel(ctx, []int{1, 2, 3}, 3, func(context.Context, int) error {
		calls.Add(1)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParallelLimitsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	err := Parallel(context.Background(), make([]int, 12), 3, func(context.Context, int) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		running.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestParallelEmpty(t *testing.T) {
	assert.NoError(t, Parallel(context.Background(), nil, 4, func(context.Context, int) error {
		return errors.New("never called")
	}))
}

func TestFormatDateTpl(t *testing.T) {
	ts := time.Date(2023, 11, 10, 7, 5, 9, 0, time.UTC)
	assert.Equal(t, "2023.11.10", FormatDateTpl(ts, "YYYY.MM.DD"))
	assert.Equal(t, "10/11/23", FormatDateTpl(ts, "DD/MM/YY"))
	assert.Equal(t, "2023-11-10 07:05:09", FormatDateTpl(ts, "YYYY-MM-DD hh:mm:ss"))
	assert.Equal(t, "", FormatDateTpl(time.Time{}, "YYYY"))
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "0d 0h 0m", FormatUptime(0))
	assert.Equal(t, "0d 0h 0m", FormatUptime(-time.Hour))
	assert.Equal(t, "4d 12h 36m", FormatUptime(4*24*time.Hour+12*time.Hour+36*time.Minute+59*time.Second))
}
