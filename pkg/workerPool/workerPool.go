// Package workerpool runs CPU-bound jobs on a fixed set of workers. Jobs are
// grouped into rooms; a room collects the results of the jobs submitted
// through it, independent of what else is running on the pool.
package workerpool

import (
	"runtime"
	"sync"
)

type Pool struct {
	taskQueue chan func()
	closeOnce sync.Once
}

type Config struct {
	WorkerCount  int
	GlobalBuffer int
}

func NewPool(config Config) *Pool {
	if config.WorkerCount < 1 {
		config.WorkerCount = runtime.NumCPU() * 3
	}
	if config.GlobalBuffer < 1 {
		config.GlobalBuffer = 10000
	}

	p := &Pool{
		taskQueue: make(chan func(), config.GlobalBuffer),
	}
	for i := 0; i < config.WorkerCount; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for task := range p.taskQueue {
		task()
	}
}

// Close stops the workers once the queued tasks have drained. Submitting
// after Close panics.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.taskQueue)
	})
}

// Room collects the results of a batch of jobs submitted to a pool.
type Room[T any] struct {
	pool       *Pool
	resultChan chan T
	wg         sync.WaitGroup
}

func NewRoom[T any](p *Pool, buffer int) *Room[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &Room[T]{
		pool:       p,
		resultChan: make(chan T, buffer),
	}
}

// Submit queues a job. It blocks when the global buffer is full.
func (r *Room[T]) Submit(job func() T) {
	r.wg.Add(1)
	r.pool.taskQueue <- func() {
		r.resultChan <- job()
		r.wg.Done()
	}
}

// Collect waits for every submitted job and returns the results in
// completion order. The room cannot be reused afterwards.
func (r *Room[T]) Collect() []T {
	go func() {
		r.wg.Wait()
		close(r.resultChan)
	}()

	results := make([]T, 0)
	for result := range r.resultChan {
		results = append(results, result)
	}
	return results
}
