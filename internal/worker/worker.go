package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ErrPoolSaturated 队列已满或池已停止，任务未被接收
var ErrPoolSaturated = errors.New("worker pool is saturated")

const (
	defaultQueueSize = 1000
	defaultKeepAlive = 30 * time.Second
)

// Stats 协程池统计信息
type Stats struct {
	Submitted   uint64
	Executed    uint64
	Failed      uint64
	Rejected    uint64
	WorkerCount int
	QueueLen    int
	QueueCap    int
}

// Option 协程池可选配置
type Option func(*Pool)

// WithMaxWorkers 队列积压时允许扩容到的最大 worker 数
func WithMaxWorkers(n int) Option {
	return func(p *Pool) {
		if n > p.core {
			p.max = n
		}
	}
}

// WithKeepAlive 扩容出的 worker 空闲多久后退出
func WithKeepAlive(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.keepAlive = d
		}
	}
}

// Pool 有界协程池
// core 个常驻 worker；提交时队列有积压则扩容，最多 max 个；
// 队列满时拒绝任务并返回 false，由调用方决定如何处理
type Pool struct {
	core      int
	max       int
	keepAlive time.Duration

	queue chan func()
	quit  chan struct{}
	wg    sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	workers   atomic.Int32
	submitted atomic.Uint64
	executed  atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
}

var (
	globalPool *Pool
	once       sync.Once
)

// InitGlobalPool 初始化全局协程池
func InitGlobalPool(workers, queueSize int, opts ...Option) {
	once.Do(func() {
		globalPool = NewPool(workers, queueSize, opts...)
	})
}

// GetGlobalPool 获取全局协程池
func GetGlobalPool() *Pool {
	return globalPool
}

// StopGlobalPool 停止全局协程池
func StopGlobalPool() {
	if globalPool != nil {
		globalPool.Stop()
	}
}

// NewPool 创建并启动协程池
func NewPool(workers, queueSize int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	p := &Pool{
		core:      workers,
		max:       workers,
		keepAlive: defaultKeepAlive,
		queue:     make(chan func(), queueSize),
		quit:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < p.core; i++ {
		p.spawn(true)
	}
	log.Printf("[WorkerPool] started with %d core workers (max %d, queue %d)", p.core, p.max, queueSize)
	return p
}

// Submit 非阻塞提交任务，队列满或池已停止时返回 false
func (p *Pool) Submit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		p.rejected.Add(1)
		return false
	}

	select {
	case p.queue <- task:
		p.submitted.Add(1)
	default:
		p.rejected.Add(1)
		log.Println("[WorkerPool] WARN: queue is full, task rejected")
		return false
	}

	if len(p.queue) > 0 {
		p.tryGrow()
	}
	return true
}

// Run 把 fn 交给池执行并等待结果
// 池拒绝时返回 ErrPoolSaturated；ctx 结束时不再等待，但已接收的任务仍会执行完
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	accepted := p.Submit(func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
				done <- err
				panic(r)
			}
			done <- err
		}()
		err = fn()
	})
	if !accepted {
		return ErrPoolSaturated
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop 停止接收新任务，执行完队列中剩余任务后返回
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.quit)
	p.mu.Unlock()

	p.wg.Wait()
	log.Println("[WorkerPool] stopped")
}

// GetStats 获取统计信息
func (p *Pool) GetStats() Stats {
	return Stats{
		Submitted:   p.submitted.Load(),
		Executed:    p.executed.Load(),
		Failed:      p.failed.Load(),
		Rejected:    p.rejected.Load(),
		WorkerCount: int(p.workers.Load()),
		QueueLen:    len(p.queue),
		QueueCap:    cap(p.queue),
	}
}

// tryGrow 有积压且未达上限时增加一个临时 worker
func (p *Pool) tryGrow() {
	for {
		n := p.workers.Load()
		if int(n) >= p.max {
			return
		}
		if p.workers.CompareAndSwap(n, n+1) {
			p.wg.Add(1)
			go p.worker(false)
			return
		}
	}
}

func (p *Pool) spawn(core bool) {
	p.workers.Add(1)
	p.wg.Add(1)
	go p.worker(core)
}

// worker 工作协程；临时 worker 空闲超过 keepAlive 后退出
func (p *Pool) worker(core bool) {
	defer p.wg.Done()
	defer p.workers.Add(-1)

	var idle <-chan time.Time
	var timer *time.Timer
	if !core {
		timer = time.NewTimer(p.keepAlive)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case task := <-p.queue:
			p.execute(task)
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(p.keepAlive)
			}
		case <-idle:
			return
		case <-p.quit:
			p.drain()
			return
		}
	}
}

// drain 停止时执行完队列中剩余的任务
func (p *Pool) drain() {
	for {
		select {
		case task := <-p.queue:
			p.execute(task)
		default:
			return
		}
	}
}

// execute 执行任务并捕获 panic，nil 任务直接跳过
func (p *Pool) execute(task func()) {
	if task == nil {
		return
	}
	defer func() {
		p.executed.Add(1)
		if r := recover(); r != nil {
			p.failed.Add(1)
			log.Printf("[WorkerPool] panic recovered in task: %v", r)
		}
	}()
	task()
}
