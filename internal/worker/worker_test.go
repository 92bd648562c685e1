package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// block 占住一个 worker，直到 release 关闭
func block(p *Pool) (started <-chan struct{}, release chan struct{}) {
	s := make(chan struct{})
	release = make(chan struct{})
	p.Submit(func() {
		close(s)
		<-release
	})
	return s, release
}

func TestSubmit_PanicDoesNotKillWorker(t *testing.T) {
	p := NewPool(1, 4)
	defer p.Stop()

	var ran atomic.Bool
	require.True(t, p.Submit(func() { panic("remote client exploded") }))
	done := make(chan struct{})
	require.True(t, p.Submit(func() {
		ran.Store(true)
		close(done)
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task after panic never ran")
	}
	assert.True(t, ran.Load())

	stats := p.GetStats()
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, 1, stats.WorkerCount)
}

func TestStop_DrainsQueuedDeletes(t *testing.T) {
	p := NewPool(1, 10)
	started, release := block(p)
	<-started

	var deleted atomic.Int32
	for i := 0; i < 5; i++ {
		require.True(t, p.Submit(func() { deleted.Add(1) }))
	}

	close(release)
	p.Stop()

	assert.Equal(t, int32(5), deleted.Load())
	assert.Equal(t, uint64(6), p.GetStats().Executed)
}

func TestSubmit_RejectsWhenQueueFull(t *testing.T) {
	p := NewPool(1, 2)
	defer p.Stop()

	started, release := block(p)
	defer close(release)
	<-started

	assert.True(t, p.Submit(func() {}))
	assert.True(t, p.Submit(func() {}))
	assert.False(t, p.Submit(func() {}), "third queued task must be rejected")

	stats := p.GetStats()
	assert.Equal(t, uint64(1), stats.Rejected)
	assert.Equal(t, 2, stats.QueueLen)
	assert.Equal(t, 2, stats.QueueCap)
}

func TestSubmit_Concurrent(t *testing.T) {
	p := NewPool(4, 1000)

	var executed atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				p.Submit(func() { executed.Add(1) })
			}
		}()
	}
	wg.Wait()
	p.Stop()

	stats := p.GetStats()
	assert.Equal(t, int64(stats.Submitted), executed.Load())
	assert.Equal(t, uint64(500), stats.Submitted+stats.Rejected)
}

func TestSubmit_AfterStop(t *testing.T) {
	p := NewPool(1, 1)
	p.Stop()

	assert.False(t, p.Submit(func() {}))
	assert.Equal(t, uint64(1), p.GetStats().Rejected)
}

func TestStop_Idempotent(t *testing.T) {
	p := NewPool(2, 2)
	p.Stop()
	assert.NotPanics(t, p.Stop)
}

func TestSubmit_NilTask(t *testing.T) {
	p := NewPool(1, 2)
	require.True(t, p.Submit(nil))

	done := make(chan struct{})
	require.True(t, p.Submit(func() { close(done) }))
	<-done
	p.Stop()

	assert.Equal(t, uint64(0), p.GetStats().Failed)
}

func TestNewPool_Defaults(t *testing.T) {
	p := NewPool(0, 0)
	defer p.Stop()

	stats := p.GetStats()
	assert.Equal(t, runtime.NumCPU()*2, stats.WorkerCount)
	assert.Equal(t, defaultQueueSize, stats.QueueCap)
	assert.Equal(t, defaultKeepAlive, p.keepAlive)
}

func TestWithMaxWorkers_IgnoresValueBelowCore(t *testing.T) {
	p := NewPool(4, 4, WithMaxWorkers(2))
	defer p.Stop()

	assert.Equal(t, 4, p.max)
}

// TestGrowAndShrink 积压时扩容到 max，空闲 keepAlive 后回落到 core
func TestGrowAndShrink(t *testing.T) {
	p := NewPool(1, 10, WithMaxWorkers(3), WithKeepAlive(50*time.Millisecond))
	defer p.Stop()

	release := make(chan struct{})
	var running atomic.Int32
	for i := 0; i < 5; i++ {
		require.True(t, p.Submit(func() {
			running.Add(1)
			<-release
		}))
	}

	assert.Eventually(t, func() bool { return running.Load() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, p.GetStats().WorkerCount)

	close(release)
	assert.Eventually(t, func() bool { return p.GetStats().WorkerCount == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestRun_ReturnsTaskResult(t *testing.T) {
	p := NewPool(2, 2)
	defer p.Stop()

	errRemote := errors.New("object store said no")
	assert.NoError(t, p.Run(context.Background(), func() error { return nil }))
	assert.ErrorIs(t, p.Run(context.Background(), func() error { return errRemote }), errRemote)
}

func TestRun_PanicBecomesError(t *testing.T) {
	p := NewPool(1, 2)
	defer p.Stop()

	err := p.Run(context.Background(), func() error { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRun_Saturated(t *testing.T) {
	p := NewPool(1, 1)
	defer p.Stop()

	started, release := block(p)
	defer close(release)
	<-started
	require.True(t, p.Submit(func() {}))

	err := p.Run(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrPoolSaturated)
}

func TestRun_ContextCancelled(t *testing.T) {
	p := NewPool(1, 2)
	defer p.Stop()

	release := make(chan struct{})
	var finished atomic.Bool
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Run(ctx, func() error {
		<-release
		finished.Store(true)
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 已接收的任务仍然执行完
	close(release)
	assert.Eventually(t, finished.Load, time.Second, 5*time.Millisecond)
}

func TestGlobalPool(t *testing.T) {
	InitGlobalPool(2, 8)
	first := GetGlobalPool()
	require.NotNil(t, first)

	InitGlobalPool(5, 50)
	assert.Same(t, first, GetGlobalPool(), "second init must be ignored")

	assert.NoError(t, first.Run(context.Background(), func() error { return nil }))
	StopGlobalPool()
	assert.False(t, first.Submit(func() {}))
}
