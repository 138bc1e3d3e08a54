package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countJob struct {
	n     *atomic.Int64
	fail  bool
	panic bool
}

func (j *countJob) Execute(ctx context.Context) error {
	if j.panic {
		panic("boom")
	}
	j.n.Add(1)
	if j.fail {
		return errors.New("failed")
	}
	return nil
}

func TestWorkerPool_RunsEveryJob(t *testing.T) {
	var n atomic.Int64
	pool := New(context.Background(), 3)
	assert.Equal(t, 3, pool.Size())

	for i := 0; i < 100; i++ {
		require.NoError(t, pool.Submit(&countJob{n: &n, fail: i%10 == 0}))
	}
	pool.Close()

	assert.Equal(t, int64(100), n.Load())
	assert.Equal(t, Stats{Completed: 90, Failed: 10}, pool.Stats())
}

func TestWorkerPool_PanicDoesNotKillWorkers(t *testing.T) {
	var n atomic.Int64
	pool := New(context.Background(), 1)

	require.NoError(t, pool.Submit(&countJob{n: &n, panic: true}))
	require.NoError(t, pool.Submit(&countJob{n: &n}))
	pool.Close()

	assert.Equal(t, int64(1), n.Load())
	assert.Equal(t, Stats{Completed: 1, Failed: 1}, pool.Stats())
}

func TestWorkerPool_JobFunc(t *testing.T) {
	var n atomic.Int64
	pool := New(context.Background(), 2)
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(JobFunc(func(ctx context.Context) error {
			n.Add(1)
			return nil
		})))
	}
	pool.Close()
	assert.Equal(t, int64(10), n.Load())
}

func TestWorkerPool_SubmitAfterClose(t *testing.T) {
	var n atomic.Int64
	pool := New(context.Background(), 1)
	pool.Close()
	pool.Close()

	assert.ErrorIs(t, pool.Submit(&countJob{n: &n}), ErrPoolClosed)
	assert.Zero(t, n.Load())
}

func TestWorkerPool_DefaultSize(t *testing.T) {
	pool := New(context.Background(), 0)
	defer pool.Close()

	assert.Equal(t, DefaultSize(), pool.Size())
	assert.GreaterOrEqual(t, pool.Size(), 1)
}

func TestWorkerPool_SubmitAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := New(ctx, 1)
	cancel()

	var n atomic.Int64
	// the queue may still accept a buffered job; eventually Submit reports the cancellation
	var err error
	for i := 0; i < 100 && err == nil; i++ {
		err = pool.Submit(&countJob{n: &n})
	}
	assert.ErrorIs(t, err, context.Canceled)
	pool.Close()
}
