package worker

import (
	"context"
	"sync"
)

type ProcessFunc[J any] func(ctx context.Context, job J)

// Pool runs jobs on a fixed number of goroutines. Every submitted job is
// processed; a cancelled ctx is handed to the processor rather than
// dropping queued work.
type Pool[J any] struct {
	numWorkers int
	jobs       chan J
	processor  ProcessFunc[J]
	wg         sync.WaitGroup
}

func NewPool[J any](numWorkers int, bufferSize int, processor ProcessFunc[J]) *Pool[J] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Pool[J]{
		numWorkers: numWorkers,
		jobs:       make(chan J, bufferSize),
		processor:  processor,
	}
}

func (wp *Pool[J]) Start(ctx context.Context) {
	for i := 1; i <= wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx)
	}
}

func (wp *Pool[J]) worker(ctx context.Context) {
	defer wp.wg.Done()

	for job := range wp.jobs {
		wp.processor(ctx, job)
	}
}

func (wp *Pool[J]) Submit(job J) {
	wp.jobs <- job
}

// Stop closes the queue and waits for queued and in-flight jobs.
func (wp *Pool[J]) Stop() {
	close(wp.jobs)
	wp.wg.Wait()
}

// Each runs fn for every item on at most n goroutines and waits for all of them.
func Each[J any](ctx context.Context, n int, items []J, fn ProcessFunc[J]) {
	if len(items) == 0 {
		return
	}
	if n > len(items) {
		n = len(items)
	}
	pool := NewPool(n, len(items), fn)
	pool.Start(ctx)
	for _, it := range items {
		pool.Submit(it)
	}
	pool.Stop()
}
