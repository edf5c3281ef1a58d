package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/nimasrn/paint-rewards/pkg/logger"
)

var ErrWorkersStopped = errors.New("workers terminated")

// Handler processes one job on the worker with the given index.
type Handler[T any] func(workerIndex int, job T)

// Pool fans jobs out to a fixed number of goroutines over a buffered channel.
// A panicking job is logged and the worker keeps running.
type Pool[T any] struct {
	jobs     chan T
	workers  int
	handle   Handler[T]
	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

func NewPool[T any](bufferSize, workers int) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Pool[T]{
		jobs:    make(chan T, bufferSize),
		workers: workers,
		stop:    make(chan struct{}),
	}
}

func (p *Pool[T]) SetHandler(h Handler[T]) {
	p.handle = h
}

// Backlog is the number of jobs buffered but not yet picked up.
func (p *Pool[T]) Backlog() int {
	return len(p.jobs)
}

// Submit blocks while the buffer is full and gives up once the pool stops or ctx ends.
func (p *Pool[T]) Submit(ctx context.Context, job T) error {
	select {
	case <-p.stop:
		return ErrWorkersStopped
	default:
	}
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stop:
		return ErrWorkersStopped
	}
}

// Run starts the workers and blocks until Stop is called or ctx is cancelled.
func (p *Pool[T]) Run(ctx context.Context) error {
	if p.handle == nil {
		return errors.New("worker handler is not set")
	}
	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.loop(ctx, i)
	}
	p.wg.Wait()
	return ErrWorkersStopped
}

func (p *Pool[T]) loop(ctx context.Context, index int) {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			p.safeHandle(index, job)
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool[T]) safeHandle(index int, job T) {
	defer func() {
		if v := recover(); v != nil {
			logger.Error("[worker] job panicked", "worker", index, "panic", v)
		}
	}()
	p.handle(index, job)
}

// Stop lets every worker finish its current job and then exit.
func (p *Pool[T]) Stop() {
	p.stopOnce.Do(func() {
		logger.Info("[worker] pool stopping")
		close(p.stop)
	})
}
