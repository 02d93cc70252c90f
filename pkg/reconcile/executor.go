package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Mode selects whether a plan is executed for real or only rehearsed.
type Mode string

const (
	// ModeDryRun records every step as "would apply" without invoking
	// the applier. It is the defined safe cancellation point: a caller
	// that wants to abort before mutation simply never runs Apply.
	ModeDryRun Mode = "dry-run"

	// ModeApply dispatches every step to the applier.
	ModeApply Mode = "apply"
)

// Outcome is the result of one executed step.
type Outcome string

const (
	// OutcomeApplied indicates the step took effect.
	OutcomeApplied Outcome = "applied"

	// OutcomeFailed indicates the applier could not perform the step.
	OutcomeFailed Outcome = "failed"

	// OutcomeSkipped indicates the applier declined the step, e.g. the
	// action is unsupported on this host.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeWouldApply indicates a dry-run rehearsal of the step.
	OutcomeWouldApply Outcome = "would-apply"
)

// ApplyResult is what an applier reports back for one step.
type ApplyResult struct {
	// Outcome is Applied, Failed, or Skipped.
	Outcome Outcome `json:"outcome"`

	// Reason explains a failed or skipped step.
	Reason string `json:"reason,omitempty"`
}

// Applier performs the real-world effect of a plan step. Implementations
// live outside the core (package manager, service manager, file copier,
// container runtime) and must honor the context deadline.
type Applier interface {
	Apply(ctx context.Context, step Step) (ApplyResult, error)
}

// ApplierFunc adapts a function to the Applier interface.
type ApplierFunc func(ctx context.Context, step Step) (ApplyResult, error)

// Apply calls the wrapped function.
func (f ApplierFunc) Apply(ctx context.Context, step Step) (ApplyResult, error) {
	return f(ctx, step)
}

// StepResult records the outcome of one step of an execution.
type StepResult struct {
	// Step is the executed step.
	Step Step `json:"step"`

	// Outcome is the execution outcome.
	Outcome Outcome `json:"outcome"`

	// Reason explains the outcome when it is not a plain success.
	Reason string `json:"reason,omitempty"`

	// Duration is how long the step took.
	Duration time.Duration `json:"duration"`
}

// ExecSummary counts step results by outcome.
type ExecSummary struct {
	// Total is the number of steps executed.
	Total int `json:"total"`

	// Applied is the number of applied steps.
	Applied int `json:"applied"`

	// Failed is the number of failed steps.
	Failed int `json:"failed"`

	// Skipped is the number of skipped steps.
	Skipped int `json:"skipped"`

	// WouldApply is the number of dry-run rehearsals.
	WouldApply int `json:"would_apply"`
}

// ExecutionReport aggregates the outcomes of one plan execution.
type ExecutionReport struct {
	// PlanID is the plan that was executed.
	PlanID string `json:"plan_id"`

	// Mode is the execution mode.
	Mode Mode `json:"mode"`

	// StartedAt is when execution began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the total execution time.
	Duration time.Duration `json:"duration"`

	// Results are the per-step outcomes, in plan order.
	Results []StepResult `json:"results"`

	// Summary counts results by outcome.
	Summary ExecSummary `json:"summary"`
}

// Severity classifies the execution: any failed step is an error.
func (r *ExecutionReport) Severity() Severity {
	if r.Summary.Failed > 0 {
		return SeverityError
	}
	return SeverityOK
}

// ExecOptions configures plan execution.
type ExecOptions struct {
	// StepTimeout bounds each applier call. Zero means no bound beyond
	// the run context.
	StepTimeout time.Duration

	// Logger receives per-step log events.
	Logger zerolog.Logger
}

// Execute runs a plan one step at a time, in plan order. Later domains
// assume earlier ones already exist, so execution is strictly sequential.
// A failed step never stops the remaining steps; it raises the report
// severity instead. There are no automatic retries: re-invoking the whole
// reconciliation is idempotent and is the caller's retry mechanism.
func Execute(ctx context.Context, plan *Plan, mode Mode, applier Applier, opts ExecOptions) *ExecutionReport {
	report := &ExecutionReport{
		PlanID:    plan.ID,
		Mode:      mode,
		StartedAt: time.Now().UTC(),
		Results:   make([]StepResult, 0, len(plan.Steps)),
	}

	for _, step := range plan.Steps {
		result := executeStep(ctx, step, mode, applier, opts)
		report.Results = append(report.Results, result)

		report.Summary.Total++
		switch result.Outcome {
		case OutcomeApplied:
			report.Summary.Applied++
		case OutcomeFailed:
			report.Summary.Failed++
		case OutcomeSkipped:
			report.Summary.Skipped++
		case OutcomeWouldApply:
			report.Summary.WouldApply++
		}
	}

	report.Duration = time.Since(report.StartedAt)
	return report
}

func executeStep(ctx context.Context, step Step, mode Mode, applier Applier, opts ExecOptions) StepResult {
	logger := opts.Logger.With().
		Str("domain", step.Domain.String()).
		Str("id", step.ID).
		Str("action", string(step.Action)).
		Logger()

	if mode == ModeDryRun {
		reason := "would " + string(step.Action) + " " + step.ID
		logger.Info().Msg(reason)
		return StepResult{Step: step, Outcome: OutcomeWouldApply, Reason: reason}
	}

	stepCtx := ctx
	if opts.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, opts.StepTimeout)
		defer cancel()
	}

	start := time.Now()
	applied, err := applier.Apply(stepCtx, step)
	elapsed := time.Since(start)

	// A timed-out applier is indistinguishable from a failed one.
	if err != nil {
		logger.Error().Err(err).Dur("elapsed", elapsed).Msg("Step failed")
		return StepResult{Step: step, Outcome: OutcomeFailed, Reason: err.Error(), Duration: elapsed}
	}

	result := StepResult{Step: step, Outcome: applied.Outcome, Reason: applied.Reason, Duration: elapsed}
	if result.Outcome == "" {
		result.Outcome = OutcomeApplied
	}

	switch result.Outcome {
	case OutcomeFailed:
		logger.Error().Str("reason", result.Reason).Dur("elapsed", elapsed).Msg("Step failed")
	case OutcomeSkipped:
		logger.Warn().Str("reason", result.Reason).Dur("elapsed", elapsed).Msg("Step skipped")
	default:
		logger.Info().Dur("elapsed", elapsed).Msg("Step applied")
	}
	return result
}
