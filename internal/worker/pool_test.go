package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPool(t *testing.T) {
	if p := NewPool[int](5); p.Workers() != 5 {
		t.Errorf("expected 5 workers, got %d", p.Workers())
	}
	if p := NewPool[int](0); p.Workers() != 1 {
		t.Errorf("expected default 1 worker for 0 input, got %d", p.Workers())
	}
	if p := NewPool[int](-1); p.Workers() != 1 {
		t.Errorf("expected default 1 worker for negative input, got %d", p.Workers())
	}
}

func TestPool_Run_PreservesOrder(t *testing.T) {
	tasks := make([]Task[int], 10)
	for i := range tasks {
		delay := time.Duration(10-i) * time.Millisecond
		tasks[i] = func(ctx context.Context) int {
			time.Sleep(delay)
			return i * i
		}
	}

	results := NewPool[int](4).Run(context.Background(), tasks)

	if len(results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(results))
	}
	for i, r := range results {
		if r != i*i {
			t.Errorf("result %d: expected %d, got %d", i, i*i, r)
		}
	}
}

func TestPool_Run_BoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	tasks := make([]Task[bool], 20)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) bool {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return true
		}
	}

	NewPool[bool](3).Run(context.Background(), tasks)

	if peak > 3 {
		t.Errorf("expected at most 3 concurrent tasks, saw %d", peak)
	}
}

func TestPool_Run_Empty(t *testing.T) {
	results := NewPool[string](2).Run(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestPool_Run_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var executed int32
	tasks := make([]Task[error], 5)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) error {
			atomic.AddInt32(&executed, 1)
			return ctx.Err()
		}
	}

	results := NewPool[error](2).Run(ctx, tasks)

	if executed != 5 {
		t.Errorf("expected every task to run, got %d", executed)
	}
	for i, err := range results {
		if err == nil {
			t.Errorf("task %d: expected cancellation error", i)
		}
	}
}

func TestMap(t *testing.T) {
	out := Map(context.Background(), 2, []string{"a", "bb", "ccc"}, func(ctx context.Context, s string) int {
		return len(s)
	})

	want := []int{1, 2, 3}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("index %d: expected %d, got %d", i, want[i], out[i])
		}
	}
}
