package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/headingscan/internal/model"
)

// Step is one stage of the work done for a seed. A step reads and extends
// the CrawlResult left by the steps before it.
//
// Problems with individual pages belong in the result. Do returns an error
// only when the step itself could not run.
type Step interface {
	Do(ctx context.Context, result *model.CrawlResult) error
	Name() string
}

// ErrNoStepFunc is returned by a StepFunc whose Fn is nil.
var ErrNoStepFunc = errors.New("step has no function")

// StepFunc adapts a plain function into a named Step.
type StepFunc struct {
	StepName string
	Fn       func(ctx context.Context, result *model.CrawlResult) error
}

// Do calls Fn.
func (s StepFunc) Do(ctx context.Context, result *model.CrawlResult) error {
	if s.Fn == nil {
		return ErrNoStepFunc
	}
	return s.Fn(ctx, result)
}

// Name returns StepName.
func (s StepFunc) Name() string {
	return s.StepName
}

// Pipeline runs its steps in the order they were added.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. slog.Default() is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps running later steps after one fails. The
// failure is still written to CrawlResult.Error.
//
// Off by default: when the crawl step cannot start there is nothing for
// the summary to work on.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New returns an empty pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends steps in order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps against result. Cancellation is checked between
// steps only: the crawl step watches ctx itself and hands back what it
// gathered, so a cancelled scan still reports partial pages.
//
// Each step that ran, failed or not, is appended to result.PerformedSteps.
func (p *Pipeline) Execute(ctx context.Context, result *model.CrawlResult) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled", "seed", result.Seed, "next_step", step.Name(), "reason", err)
			result.Termination = model.TerminationCancelled
			return err
		}

		start := time.Now()
		err := step.Do(ctx, result)
		result.PerformedSteps = append(result.PerformedSteps, step.Name())

		if err == nil {
			p.logger.Debug("step done", "seed", result.Seed, "step", step.Name(), "elapsed", time.Since(start))
			continue
		}

		p.logger.Error("step failed", "seed", result.Seed, "step", step.Name(), "error", err)
		result.Error = err.Error()
		if !p.continueOnError {
			return err
		}
	}
	return nil
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, len(p.steps))
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	return names
}
