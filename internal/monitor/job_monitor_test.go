package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/durablenotify/notifysvc/internal/domain/queue"
)

type takeResult struct {
	handle *queue.Handle
	err    error
}

type fakeJobQueue struct {
	mu      sync.Mutex
	results []takeResult
	idx     int
	started int32
	stopped int32
}

func (f *fakeJobQueue) Start(context.Context) { atomic.AddInt32(&f.started, 1) }
func (f *fakeJobQueue) Stop()                 { atomic.AddInt32(&f.stopped, 1) }

func (f *fakeJobQueue) Take(ctx context.Context) (*queue.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.results) {
		<-ctx.Done()
		return nil, queue.ErrQueueStopped
	}
	r := f.results[f.idx]
	f.idx++
	return r.handle, r.err
}

type fakePool struct {
	mu      sync.Mutex
	submits int
	started int32
	stopped int32
	joined  int32
}

func (f *fakePool) Start(context.Context) { atomic.AddInt32(&f.started, 1) }
func (f *fakePool) Stop()                 { atomic.AddInt32(&f.stopped, 1) }
func (f *fakePool) Submit(*queue.Handle) {
	f.mu.Lock()
	f.submits++
	f.mu.Unlock()
}
func (f *fakePool) Join(context.Context) error {
	atomic.AddInt32(&f.joined, 1)
	return nil
}

func (f *fakePool) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

func newTestMonitor(q *fakeJobQueue, p *fakePool) *JobMonitor {
	logger := zerolog.Nop()
	return New(q, p, &logger)
}

func TestJobMonitor_SubmitsOnSuccessfulTake(t *testing.T) {
	handle := queue.NewHandle(nil, func(context.Context, bool) error { return nil })
	q := &fakeJobQueue{results: []takeResult{{handle: handle}}}
	p := &fakePool{}
	m := newTestMonitor(q, p)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	require.Eventually(t, func() bool { return p.submitCount() == 1 }, time.Second, 5*time.Millisecond)

	m.Stop()
	cancel()
	require.NoError(t, m.Join(context.Background()))
}

func TestJobMonitor_ContinuesOnQueueEmpty(t *testing.T) {
	handle := queue.NewHandle(nil, func(context.Context, bool) error { return nil })
	q := &fakeJobQueue{results: []takeResult{
		{err: queue.ErrQueueEmpty},
		{err: queue.ErrQueueEmpty},
		{handle: handle},
	}}
	p := &fakePool{}
	m := newTestMonitor(q, p)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	require.Eventually(t, func() bool { return p.submitCount() == 1 }, time.Second, 5*time.Millisecond)

	m.Stop()
	cancel()
}

func TestJobMonitor_ExitsOnQueueStopped(t *testing.T) {
	q := &fakeJobQueue{results: []takeResult{{err: queue.ErrQueueStopped}}}
	p := &fakePool{}
	m := newTestMonitor(q, p)

	ctx := context.Background()
	m.Start(ctx)

	joinCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, m.Join(joinCtx))
}

func TestJobMonitor_ContinuesOnUnexpectedError(t *testing.T) {
	handle := queue.NewHandle(nil, func(context.Context, bool) error { return nil })
	q := &fakeJobQueue{results: []takeResult{
		{err: errors.New("transient db error")},
		{handle: handle},
	}}
	p := &fakePool{}
	m := newTestMonitor(q, p)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	require.Eventually(t, func() bool { return p.submitCount() == 1 }, time.Second, 5*time.Millisecond)

	m.Stop()
	cancel()
}
