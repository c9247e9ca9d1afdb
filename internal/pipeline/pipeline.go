package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/replywatch/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each reading what earlier steps wrote
// into the shared check aggregate.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry configuration state
// 2. It provides a Name() method for logging and debugging
// 3. It's more extensible for future features (e.g., retries per step)
type Step interface {
	// Do executes the pipeline step.
	// It receives the context for cancellation, and the check to modify.
	Do(ctx context.Context, check *model.Check) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
//
// Design decision: the pipeline stops on the first error. Every step
// feeds the next one (no snapshot means nothing to diff, no diff means
// nothing to classify), so continuing past a failure could only report
// on stale or missing data.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, the default logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence over the check.
// It respects context cancellation between steps and logs each step's
// execution; steps handle their own timeouts internally.
func (p *Pipeline) Execute(ctx context.Context, check *model.Check) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("check cancelled",
				"step", step.Name(),
				"tweet", check.Ref.String(),
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"tweet", check.Ref.String(),
		)

		if err := step.Do(ctx, check); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"tweet", check.Ref.String(),
				"error", err,
			)
			return err
		}
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
