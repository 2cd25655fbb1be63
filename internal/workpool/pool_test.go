package workpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Do_ReturnsResult(t *testing.T) {
	pool := New(2)

	got, err := Run(context.Background(), pool, func() (int, error) {
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestPool_Do_PropagatesError(t *testing.T) {
	pool := New(1)
	boom := errors.New("boom")

	err := pool.Do(context.Background(), func() error { return boom })

	assert.ErrorIs(t, err, boom)
}

func TestPool_Do_RecoversPanic(t *testing.T) {
	pool := New(1)

	err := pool.Do(context.Background(), func() error { panic("bad input") })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad input")
}

func TestPool_Do_BoundsConcurrency(t *testing.T) {
	pool := New(2)
	var running, peak int32

	errs := make(chan error, 6)
	for i := 0; i < 6; i++ {
		go func() {
			errs <- pool.Do(context.Background(), func() error {
				n := atomic.AddInt32(&running, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
		}()
	}
	for i := 0; i < 6; i++ {
		require.NoError(t, <-errs)
	}

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestPool_Do_CancelledContext(t *testing.T) {
	pool := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := pool.Do(ctx, func() error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestPool_NilPoolRunsInline(t *testing.T) {
	var pool *Pool

	got, err := Run(context.Background(), pool, func() (string, error) { return "ok", nil })

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}
