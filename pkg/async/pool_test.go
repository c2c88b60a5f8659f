package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_Basic(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 3, "test", time.Second, nil)

	var count atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(func(ctx context.Context) error {
			count.Add(1)
			return nil
		}, nil))
	}
	pool.Wait()

	assert.Equal(t, int32(10), count.Load())
}

func TestWorkerPool_ReportsErrors(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 2, "test", time.Second, nil)

	results := make(chan error, 2)
	report := func(err error) { results <- err }

	require.NoError(t, pool.Submit(func(ctx context.Context) error { return errors.New("task failed") }, report))
	require.NoError(t, pool.Submit(func(ctx context.Context) error { return nil }, report))
	pool.Wait()
	close(results)

	var failed int
	for err := range results {
		if err != nil {
			failed++
			assert.EqualError(t, err, "task failed")
		}
	}
	assert.Equal(t, 1, failed)
}

func TestWorkerPool_RecoversPanics(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, "panicky", time.Second, nil)

	var panicErr error
	require.NoError(t, pool.Submit(func(ctx context.Context) error { panic("boom") }, func(err error) { panicErr = err }))

	var ran atomic.Bool
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}, nil))
	pool.Wait()

	assert.EqualError(t, panicErr, "panic in panicky: boom")
	assert.True(t, ran.Load(), "worker survives a panicking task")
}

func TestWorkerPool_TaskTimeout(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, "slow", 50*time.Millisecond, nil)

	var taskErr error
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, func(err error) { taskErr = err }))
	pool.Wait()

	assert.ErrorIs(t, taskErr, context.DeadlineExceeded)
}

func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, "test", time.Second, nil)
	require.NoError(t, pool.Shutdown(time.Second))

	err := pool.Submit(func(ctx context.Context) error { return nil }, nil)
	assert.ErrorIs(t, err, ErrPoolClosed)

	// Shutdown is idempotent
	assert.NoError(t, pool.Shutdown(time.Second))
}

func TestWorkerPool_ShutdownTimeout(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, "stuck", time.Minute, nil)

	release := make(chan struct{})
	defer close(release)
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}, nil))

	err := pool.Shutdown(50 * time.Millisecond)
	assert.EqualError(t, err, "worker pool shutdown timed out after 50ms")
}

func TestBatch(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	var sum atomic.Int32
	errs := Batch(context.Background(), items, 2, "sum", time.Second, nil, func(ctx context.Context, n int) error {
		sum.Add(int32(n))
		return nil
	})

	assert.Nil(t, errs)
	assert.Equal(t, int32(15), sum.Load())
}

func TestBatch_ErrorsByIndex(t *testing.T) {
	items := []string{"ok", "bad", "ok", "bad"}

	errs := Batch(context.Background(), items, 3, "check", time.Second, nil, func(ctx context.Context, s string) error {
		if s == "bad" {
			return errors.New("bad item")
		}
		return nil
	})

	require.Len(t, errs, 4)
	assert.NoError(t, errs[0])
	assert.EqualError(t, errs[1], "bad item")
	assert.NoError(t, errs[2])
	assert.EqualError(t, errs[3], "bad item")
}

func TestBatch_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int32
	errs := Batch(ctx, []int{1, 2, 3}, 2, "canceled", time.Second, nil, func(ctx context.Context, n int) error {
		ran.Add(1)
		return nil
	})

	require.Len(t, errs, 3)
	for _, err := range errs {
		assert.Error(t, err)
	}
	assert.Zero(t, ran.Load())
}
