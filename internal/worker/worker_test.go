package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPool_StartStop(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, job int) {
		processed.Add(1)
	}

	pool := NewPool(2, 10, processor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	for i := 0; i < 5; i++ {
		pool.Submit(i)
	}

	pool.Stop()

	if processed.Load() != 5 {
		t.Errorf("expected 5 jobs processed, got %d", processed.Load())
	}
}

func TestPool_ConcurrentSubmit(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, job int) {
		processed.Add(1)
	}

	pool := NewPool(4, 100, processor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		go func(n int) {
			pool.Submit(n)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 100; i++ {
		<-done
	}

	pool.Stop()

	if processed.Load() != 100 {
		t.Errorf("expected 100 jobs processed, got %d", processed.Load())
	}
}

func TestPool_CancelledContextStillDrains(t *testing.T) {
	var sawCancelled atomic.Int64
	var processed atomic.Int64
	processor := func(ctx context.Context, job int) {
		if ctx.Err() != nil {
			sawCancelled.Add(1)
		}
		processed.Add(1)
	}

	pool := NewPool(2, 20, processor)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pool.Start(ctx)

	for i := 0; i < 20; i++ {
		pool.Submit(i)
	}

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool.Stop() timed out")
	}

	if processed.Load() != 20 {
		t.Errorf("expected all 20 jobs handed to the processor, got %d", processed.Load())
	}
	if sawCancelled.Load() != 20 {
		t.Errorf("expected processor to observe cancellation, got %d", sawCancelled.Load())
	}
}

func TestEach_BoundedConcurrency(t *testing.T) {
	var (
		inFlight atomic.Int64
		maxSeen  atomic.Int64
		total    atomic.Int64
	)
	items := make([]int, 50)

	Each(context.Background(), 3, items, func(ctx context.Context, _ int) {
		n := inFlight.Add(1)
		for {
			m := maxSeen.Load()
			if n <= m || maxSeen.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		total.Add(1)
	})

	if total.Load() != 50 {
		t.Errorf("expected 50 items processed, got %d", total.Load())
	}
	if maxSeen.Load() > 3 {
		t.Errorf("expected at most 3 concurrent workers, saw %d", maxSeen.Load())
	}
}

func TestEach_Empty(t *testing.T) {
	called := false
	Each(context.Background(), 4, []int{}, func(ctx context.Context, _ int) { called = true })
	if called {
		t.Error("expected no calls for empty input")
	}
}
