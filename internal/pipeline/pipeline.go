package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StepResult records what happened to one step of a run.
type StepResult struct {
	Name     string
	Policy   Policy
	Output   Output
	Err      error
	Executed bool
}

// Report lists the steps of a run in execution order; steps after an abort are absent.
type Report struct {
	Dir   string
	Steps []StepResult
}

// Invoker folds over an ordered step list, awaiting each step before the next
// and returning on the first mandatory failure. Nothing is rolled back.
type Invoker struct {
	steps   []Step
	runner  Runner
	timeout time.Duration
	logger  *zap.Logger
}

// NewInvoker timeout applies to each step separately; 0 means no limit.
func NewInvoker(steps []Step, runner Runner, timeout time.Duration, logger *zap.Logger) *Invoker {
	return &Invoker{
		steps:   append([]Step(nil), steps...),
		runner:  runner,
		timeout: timeout,
		logger:  logger,
	}
}

// Run executes every step against dir. The error, if any, is a *StepError.
func (inv *Invoker) Run(ctx context.Context, dir string) (*Report, error) {
	report := &Report{Dir: dir}

	for i, step := range inv.steps {
		log := inv.logger.With(
			zap.String("step", step.Name),
			zap.Int("index", i+1),
			zap.Int("total", len(inv.steps)),
			zap.Stringer("policy", step.Policy),
		)
		log.Info("Pipeline step started", zap.String("dir", dir))

		out, err := inv.runStep(ctx, dir, step)
		report.Steps = append(report.Steps, StepResult{
			Name:     step.Name,
			Policy:   step.Policy,
			Output:   out,
			Err:      err,
			Executed: true,
		})

		if out.Stdout != "" {
			log.Info("Pipeline step output", zap.String("stdout", out.Stdout))
		}
		if out.Stderr != "" {
			log.Warn("Pipeline step diagnostics", zap.String("stderr", out.Stderr))
		}
		if out.Truncated {
			log.Warn("Pipeline step output truncated")
		}

		if err != nil {
			if step.Policy == BestEffort {
				log.Warn("Pipeline step failed, continuing", zap.Error(err))
				continue
			}
			log.Error("Pipeline step failed, aborting", zap.Error(err), zap.Int("exit_code", out.ExitCode))
			return report, &StepError{Step: step.Name, Output: out, Err: err}
		}
		log.Info("Pipeline step completed", zap.Duration("duration", out.Duration))
	}

	return report, nil
}

func (inv *Invoker) runStep(ctx context.Context, dir string, step Step) (Output, error) {
	if inv.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.timeout)
		defer cancel()
	}
	return inv.runner.Run(ctx, dir, step)
}
