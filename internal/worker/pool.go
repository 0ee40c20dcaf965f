package worker

import (
	"context"
	"sync"
)

// Task is a unit of work producing one value. Tasks observe ctx and
// encode their own failures in T.
type Task[T any] func(ctx context.Context) T

// Pool runs tasks on a fixed number of workers
type Pool[T any] struct {
	workers int
}

type indexedTask[T any] struct {
	index int
	task  Task[T]
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool[T any](workers int) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}
	return &Pool[T]{workers: workers}
}

// Workers returns the concurrency bound
func (p *Pool[T]) Workers() int {
	return p.workers
}

// Run executes every task with at most Workers in flight and returns the
// results in submission order. It always waits for every task; tasks
// dispatched after ctx is done still run and see the cancelled ctx.
func (p *Pool[T]) Run(ctx context.Context, tasks []Task[T]) []T {
	results := make([]T, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	workers := p.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	queue := make(chan indexedTask[T], len(tasks))
	for i, task := range tasks {
		queue <- indexedTask[T]{index: i, task: task}
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				// each index is written by exactly one worker
				results[job.index] = job.task(ctx)
			}
		}()
	}
	wg.Wait()

	return results
}

// Map applies fn to every item through a pool and keeps input order
func Map[I, O any](ctx context.Context, workers int, items []I, fn func(ctx context.Context, item I) O) []O {
	tasks := make([]Task[O], len(items))
	for i, item := range items {
		tasks[i] = func(ctx context.Context) O { return fn(ctx, item) }
	}
	return NewPool[O](workers).Run(ctx, tasks)
}
