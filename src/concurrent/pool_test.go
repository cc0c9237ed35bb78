package concurrent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestParallelMapPreservesOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	out, err := ParallelMap(context.Background(), items, func(_ context.Context, idx int, v int) (int, error) {
		return v * v, nil
	}, 3)
	if err != nil {
		t.Fatalf("ParallelMap: %v", err)
	}
	for i, v := range items {
		if out[i] != v*v {
			t.Fatalf("out[%d] = %d, want %d", i, out[i], v*v)
		}
	}
}

func TestParallelMapBoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	items := make([]int, 40)
	_, err := ParallelMap(context.Background(), items, func(_ context.Context, _ int, _ int) (struct{}, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		atomic.AddInt32(&inFlight, -1)
		return struct{}{}, nil
	}, 4)
	if err != nil {
		t.Fatalf("ParallelMap: %v", err)
	}
	if peak > 4 {
		t.Fatalf("peak concurrency %d exceeds limit", peak)
	}
}

func TestParallelMapReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	_, err := ParallelMap(context.Background(), []int{1, 2, 3}, func(_ context.Context, _ int, v int) (int, error) {
		if v == 2 {
			return 0, boom
		}
		return v, nil
	}, 1)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestParallelMapCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ParallelMap(ctx, []int{1, 2}, func(_ context.Context, _ int, v int) (int, error) {
		return v, nil
	}, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestParallelMapEmpty(t *testing.T) {
	out, err := ParallelMap(context.Background(), nil, func(_ context.Context, _ int, v int) (int, error) { return v, nil }, 0)
	if err != nil || out != nil {
		t.Fatalf("expected nil, nil; got %v, %v", out, err)
	}
}
