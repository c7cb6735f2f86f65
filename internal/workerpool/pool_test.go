package workerpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/durablenotify/notifysvc/internal/domain/queue"
)

type countingProcessor struct {
	mu    sync.Mutex
	calls int
	panicOnce bool
}

func (c *countingProcessor) Process(context.Context, *queue.Handle) {
	c.mu.Lock()
	c.calls++
	shouldPanic := c.panicOnce
	c.panicOnce = false
	c.mu.Unlock()
	if shouldPanic {
		panic("boom")
	}
}

func (c *countingProcessor) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newTestPool(size int, p Processor) *Pool {
	logger := zerolog.Nop()
	return New(size, p, &logger)
}

func TestPool_ProcessesSubmittedHandles(t *testing.T) {
	proc := &countingProcessor{}
	pool := newTestPool(2, proc)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	defer pool.Stop()

	for i := 0; i < 5; i++ {
		pool.Submit(queue.NewHandle(nil, func(context.Context, bool) error { return nil }))
	}

	require.Eventually(t, func() bool { return proc.count() == 5 }, time.Second, 5*time.Millisecond)
}

func TestPool_RecoversFromPanic(t *testing.T) {
	proc := &countingProcessor{panicOnce: true}
	pool := newTestPool(1, proc)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	defer pool.Stop()

	pool.Submit(queue.NewHandle(nil, func(context.Context, bool) error { return nil }))
	require.Eventually(t, func() bool { return proc.count() == 1 }, time.Second, 5*time.Millisecond)

	pool.Submit(queue.NewHandle(nil, func(context.Context, bool) error { return nil }))
	require.Eventually(t, func() bool { return proc.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestPool_StopUnblocksSubmit(t *testing.T) {
	proc := &countingProcessor{}
	pool := newTestPool(0, proc)
	ctx := context.Background()
	pool.Start(ctx)

	pool.Stop()

	done := make(chan struct{})
	go func() {
		pool.Submit(queue.NewHandle(nil, func(context.Context, bool) error { return nil }))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit did not unblock after Stop")
	}
}

func TestPool_JoinReturnsAfterWorkersExit(t *testing.T) {
	proc := &countingProcessor{}
	pool := newTestPool(1, proc)
	ctx := context.Background()
	pool.Start(ctx)
	pool.Stop()

	joinCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, pool.Join(joinCtx))
}

func TestPool_JoinTimesOut(t *testing.T) {
	proc := &countingProcessor{}
	pool := newTestPool(1, proc)
	ctx := context.Background()
	pool.Start(ctx)
	// Deliberately not calling Stop: the worker is still blocked reading
	// submitCh, so Join must time out rather than hang.

	joinCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Join(joinCtx), context.DeadlineExceeded)

	pool.Stop()
}
