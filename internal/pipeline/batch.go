package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/headingscan/internal/model"
)

// BatchProcessor crawls several seeds, at most concurrency at a time. Every
// seed gets a fresh Pipeline from the factory, so no crawl state is shared
// and site settings can differ per seed.
type BatchProcessor struct {
	pipelineFactory func(seed string) *Pipeline
	concurrency     int
	logger          *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the logger for batch events.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets how many seeds are crawled at once. Values below 1
// are ignored; the default of 1 crawls seeds one after another.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor returns a BatchProcessor building pipelines with
// pipelineFactory.
func NewBatchProcessor(pipelineFactory func(seed string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{pipelineFactory: pipelineFactory, concurrency: 1}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch returns one result per seed, in the order of seeds. A seed
// the batch never reached because ctx was cancelled gets an empty result
// terminated as cancelled. The error is non-nil only on cancellation.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, seeds []string) ([]*model.CrawlResult, error) {
	results := make([]*model.CrawlResult, len(seeds))
	err := bp.ProcessBatchWithCallback(ctx, seeds, func(result *model.CrawlResult, index int) {
		results[index] = result
	})

	for i := range results {
		if results[i] == nil {
			results[i] = model.NewCrawlResult(seeds[i])
			results[i].Termination = model.TerminationCancelled
			results[i].Finish()
		}
	}
	return results, err
}

// ProcessBatchWithCallback calls callback with each finished result and the
// index of its seed. Calls come from the crawling goroutines, possibly at
// the same time; each index is delivered at most once.
//
// A failing seed does not stop the others: its error stays in the result.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	seeds []string,
	callback func(result *model.CrawlResult, index int),
) error {
	start := time.Now()
	var failed atomic.Int64
	bp.logger.Info("batch started", "seeds", len(seeds), "concurrency", bp.concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bp.logger.Info("crawling seed", "seed", seed, "index", i+1, "total", len(seeds))

			result := model.NewCrawlResult(seed)
			if err := bp.pipelineFactory(seed).Execute(gctx, result); err != nil {
				failed.Add(1)
				bp.logger.Warn("crawl failed", "seed", seed, "error", err)
				if result.Summary == nil {
					result.Finish()
				}
			}
			callback(result, i)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	bp.logger.Info("batch finished", "seeds", len(seeds), "failed", failed.Load(), "elapsed", time.Since(start))
	return err
}
