package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunCollectsAllResults(t *testing.T) {
	boom := errors.New("synthesis failed")

	results, err := Run(context.Background(), 3, 10, func(ctx context.Context, i int) (string, error) {
		if i == 4 {
			return "", boom
		}
		return fmt.Sprintf("audio-%d", i), nil
	})

	if err == nil {
		t.Fatal("expected aggregate error")
	}
	var batch *BatchError
	if !errors.As(err, &batch) {
		t.Fatalf("expected *BatchError, got %T", err)
	}
	if len(batch.FailedIndexes) != 1 || batch.FailedIndexes[0] != 4 {
		t.Fatalf("expected exactly task 4 to fail, got %v", batch.FailedIndexes)
	}
	if !strings.Contains(err.Error(), "task 4") {
		t.Fatalf("aggregate error must name task 4: %s", err.Error())
	}

	for i, res := range results {
		if i == 4 {
			if !errors.Is(res.Err, boom) {
				t.Fatalf("task 4: expected the task error, got %v", res.Err)
			}
			continue
		}
		if res.Err != nil {
			t.Fatalf("task %d: unexpected error %v", i, res.Err)
		}
		if res.Value != fmt.Sprintf("audio-%d", i) {
			t.Fatalf("task %d: result keyed to wrong index: %s", i, res.Value)
		}
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	const limit = 3
	var inFlight, peak int64

	_, err := Run(context.Background(), limit, 20, func(ctx context.Context, i int) (struct{}, error) {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := atomic.LoadInt64(&peak); got > limit {
		t.Fatalf("observed %d tasks in flight, limit is %d", got, limit)
	}
}

func TestRunStartsNextAsSlotsFree(t *testing.T) {
	var mu sync.Mutex
	started := make([]int, 0, 6)

	_, err := Run(context.Background(), 2, 6, func(ctx context.Context, i int) (int, error) {
		mu.Lock()
		started = append(started, i)
		mu.Unlock()
		return i, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(started) != 6 {
		t.Fatalf("expected all 6 tasks to run, got %d", len(started))
	}
}

func TestRunEmpty(t *testing.T) {
	results, err := Run(context.Background(), 4, 0, func(ctx context.Context, i int) (int, error) {
		t.Fatal("no task should run")
		return 0, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}
