package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/headingscan/internal/model"
)

// countingFactory returns a pipeline factory whose single step runs fn.
// A nil fn does nothing.
func countingFactory(fn func(ctx context.Context, result *model.CrawlResult) error) func(string) *Pipeline {
	if fn == nil {
		fn = func(context.Context, *model.CrawlResult) error { return nil }
	}
	return func(string) *Pipeline {
		p := New(WithLogger(discardLogger()))
		p.AddStep(StepFunc{StepName: "step", Fn: fn})
		return p
	}
}

// TestBatchProcessorNew tests the BatchProcessor constructor.
func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func(string) *Pipeline { return New() })

		if bp.concurrency != 1 {
			t.Errorf("expected default concurrency 1, got %d", bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("applies WithConcurrency option", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func(string) *Pipeline { return New() }, WithConcurrency(5))

		if bp.concurrency != 5 {
			t.Errorf("expected concurrency 5, got %d", bp.concurrency)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func(string) *Pipeline { return New() }, WithConcurrency(0))

		if bp.concurrency != 1 {
			t.Errorf("expected concurrency 1, got %d", bp.concurrency)
		}
	})

	t.Run("WithBatchLogger nil falls back to default", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func(string) *Pipeline { return New() }, WithBatchLogger(nil))

		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})
}

// TestBatchProcessorProcessBatch tests batch processing.
func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("processes all seeds in input order", func(t *testing.T) {
		t.Parallel()

		var processed atomic.Int32
		bp := NewBatchProcessor(countingFactory(func(_ context.Context, _ *model.CrawlResult) error {
			processed.Add(1)
			return nil
		}), WithConcurrency(3), WithBatchLogger(discardLogger()))

		seeds := []string{
			"https://first.example/",
			"https://second.example/",
			"https://third.example/",
		}

		results, err := bp.ProcessBatch(context.Background(), seeds)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if processed.Load() != 3 {
			t.Errorf("expected 3 processed, got %d", processed.Load())
		}
		for i, r := range results {
			if r.Seed != seeds[i] {
				t.Errorf("result[%d]: got %q, expected %q", i, r.Seed, seeds[i])
			}
		}
	})

	t.Run("passes the seed to the factory", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		seen := make(map[string]bool)
		bp := NewBatchProcessor(func(seed string) *Pipeline {
			mu.Lock()
			seen[seed] = true
			mu.Unlock()
			return New(WithLogger(discardLogger()))
		}, WithBatchLogger(discardLogger()))

		if _, err := bp.ProcessBatch(context.Background(), []string{"https://a.example/", "https://b.example/"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !seen["https://a.example/"] || !seen["https://b.example/"] {
			t.Errorf("factory did not see every seed: %v", seen)
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		bp := NewBatchProcessor(countingFactory(func(_ context.Context, _ *model.CrawlResult) error {
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			current.Add(-1)
			return nil
		}), WithConcurrency(2), WithBatchLogger(discardLogger()))

		seeds := make([]string, 8)
		for i := range seeds {
			seeds[i] = "https://example.com/"
		}

		if _, err := bp.ProcessBatch(context.Background(), seeds); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("peak concurrency was %d, expected <= 2", peak.Load())
		}
	})

	t.Run("continues after individual seed failure", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(countingFactory(func(_ context.Context, result *model.CrawlResult) error {
			if result.Seed == "ftp://bad.example/" {
				return errors.New("invalid seed URL")
			}
			return nil
		}), WithBatchLogger(discardLogger()))

		seeds := []string{"https://first.example/", "ftp://bad.example/", "https://third.example/"}
		results, err := bp.ProcessBatch(context.Background(), seeds)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if results[1].Error == "" {
			t.Error("expected error in second result")
		}
		if results[1].Summary == nil {
			t.Error("expected a summary even for a failed seed")
		}
		if results[0].Error != "" || results[2].Error != "" {
			t.Error("expected other seeds to succeed")
		}
	})

	t.Run("handles context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		var started atomic.Int32

		bp := NewBatchProcessor(countingFactory(func(ctx context.Context, _ *model.CrawlResult) error {
			started.Add(1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
				return nil
			}
		}), WithConcurrency(2), WithBatchLogger(discardLogger()))

		seeds := make([]string, 10)
		for i := range seeds {
			seeds[i] = "https://example.com/"
		}

		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		results, err := bp.ProcessBatch(ctx, seeds)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if started.Load() >= int32(len(seeds)) {
			t.Error("expected some seeds to not start due to cancellation")
		}
		if len(results) != len(seeds) {
			t.Fatalf("expected %d results, got %d", len(seeds), len(results))
		}
		for i, r := range results {
			if r == nil {
				t.Fatalf("result[%d] is nil", i)
			}
			if r.Summary == nil {
				t.Errorf("result[%d] has no summary", i)
			}
		}
	})
}

// TestBatchProcessorProcessBatchWithCallback tests callback-based processing.
func TestBatchProcessorProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	received := make(map[int]string)

	bp := NewBatchProcessor(countingFactory(nil), WithConcurrency(3), WithBatchLogger(discardLogger()))

	seeds := []string{"https://first.example/", "https://second.example/", "https://third.example/"}
	err := bp.ProcessBatchWithCallback(context.Background(), seeds, func(result *model.CrawlResult, index int) {
		mu.Lock()
		received[index] = result.Seed
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(received) != 3 {
		t.Fatalf("expected 3 callbacks, got %d", len(received))
	}
	for i, seed := range seeds {
		if received[i] != seed {
			t.Errorf("callback %d: got %q, expected %q", i, received[i], seed)
		}
	}
}
