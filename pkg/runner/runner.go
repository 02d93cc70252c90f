package runner

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/hostconform/hostconform/pkg/config"
	"github.com/hostconform/hostconform/pkg/exclude"
	"github.com/hostconform/hostconform/pkg/manifest"
	"github.com/hostconform/hostconform/pkg/observe"
	"github.com/hostconform/hostconform/pkg/reconcile"
	"github.com/hostconform/hostconform/pkg/report"
	"github.com/hostconform/hostconform/pkg/stores"
	"github.com/hostconform/hostconform/pkg/telemetry"
)

// Options wires the collaborators of a run. Registry is required; everything
// else may be nil.
type Options struct {
	// Registry holds the per-domain observers.
	Registry *observe.Registry

	// Applier performs plan steps. Required for apply runs, ignored for
	// diff and dry-run.
	Applier reconcile.Applier

	// Pruner authorizes removal of extra items. Nil means extras are
	// reported only.
	Pruner reconcile.Pruner

	// Store persists finished reports. Nil disables history.
	Store stores.Store

	// Metrics receives run and step counters.
	Metrics *telemetry.Metrics

	// Tracer wraps the run phases in spans.
	Tracer *telemetry.Tracer

	// Logger is the run logger.
	Logger zerolog.Logger
}

// Runner drives a full reconciliation: parse, observe, diff, plan, exclude,
// execute, report.
type Runner struct {
	cfg  *config.Config
	opts Options
}

// New creates a runner for the given configuration.
func New(cfg *config.Config, opts Options) *Runner {
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NewMetrics(telemetry.MetricsConfig{})
	}
	return &Runner{cfg: cfg, opts: opts}
}

// Result is the outcome of a run.
type Result struct {
	// Report is the finalized reconciliation report.
	Report *report.Report

	// Plan is the plan after exclusion filtering.
	Plan *reconcile.Plan

	// Manifest is the parsed declared state.
	Manifest *manifest.Set

	// Excluded is the number of plan steps removed by exclusion patterns.
	Excluded int
}

// Diff runs the pipeline up to the plan and never executes anything. It is
// what watch mode and plain drift inspection use.
func (r *Runner) Diff(ctx context.Context) (*Result, error) {
	return r.run(ctx, reconcile.ModeDryRun, false)
}

// Run executes the full pipeline in the given mode. Dry-run rehearses every
// step without invoking the applier.
func (r *Runner) Run(ctx context.Context, mode reconcile.Mode) (*Result, error) {
	return r.run(ctx, mode, true)
}

func (r *Runner) run(ctx context.Context, mode reconcile.Mode, execute bool) (*Result, error) {
	runID := uuid.New().String()
	logger := telemetry.RunLogger(r.opts.Logger, runID)
	start := time.Now()

	reportMode := string(mode)
	if !execute {
		reportMode = "diff"
	}
	r.opts.Metrics.RunStarted(reportMode)
	logger.Info().Str("mode", reportMode).Str("manifest", r.cfg.ManifestPath).Msg("run started")

	set, warnings, err := r.parseManifest(ctx, runID)
	if err != nil {
		return nil, err
	}

	// Exclusion patterns are validated before any observation so a typo
	// fails the run without touching the host.
	patterns, err := exclude.Compile(r.cfg.Exclude)
	if err != nil {
		return nil, err
	}

	hostname := r.cfg.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	rep := report.New(hostname, runID)
	rep.Mode = reportMode
	rep.AddWarnings(warnings)

	domains := r.cfg.Mode.Domains()

	obsCtx, span := r.startPhase(ctx, "observe", runID)
	snap := observe.Gather(obsCtx, r.opts.Registry, domains, r.cfg.ObserveTimeout, logger)
	span.End()

	_, span = r.startPhase(ctx, "diff", runID)
	var diffs []reconcile.DiffResult
	for _, d := range domains {
		if !snap.Available(d) {
			rep.AddUnavailable(d, snap.Unavailable[d])
			r.opts.Metrics.DomainUnavailable(d.String())
			continue
		}
		diff := reconcile.Diff(d, set.Domain(d), snap.Items[d], r.cfg.Detailed)
		rep.AddDiff(diff)
		r.opts.Metrics.Drift(d.String(), len(diff.Missing), len(diff.Changed))
		diffs = append(diffs, diff)
	}
	span.End()

	planCtx, span := r.startPhase(ctx, "plan", runID)
	plan, err := reconcile.BuildPlan(planCtx, diffs, reconcile.PlanOptions{Pruner: r.opts.Pruner})
	span.End()
	if err != nil {
		return nil, err
	}

	plan, excluded := exclude.Filter(plan, patterns)
	rep.ExcludedSteps = excluded
	r.opts.Metrics.StepsExcluded(excluded)
	if excluded > 0 {
		logger.Info().Int("excluded", excluded).Msg("plan steps excluded")
	}

	result := &Result{Plan: plan, Manifest: set, Excluded: excluded}

	if execute {
		execCtx, span := r.startPhase(ctx, "execute", runID)
		exec := reconcile.Execute(execCtx, plan, mode, r.opts.Applier, reconcile.ExecOptions{
			StepTimeout: r.cfg.StepTimeout,
			Logger:      logger,
		})
		span.End()

		for _, sr := range exec.Results {
			r.opts.Metrics.StepExecuted(sr.Step.Domain.String(), string(sr.Step.Action), string(sr.Outcome))
		}
		rep.SetExecution(exec)
	}

	rep.Finalize()
	result.Report = rep

	if r.opts.Store != nil {
		if err := r.opts.Store.SaveReport(ctx, rep); err != nil {
			logger.Warn().Err(err).Msg("failed to persist report")
		}
	}

	status := rep.OverallStatus.String()
	r.opts.Metrics.RunCompleted(status, time.Since(start))
	logger.Info().Str("status", status).Dur("elapsed", time.Since(start)).Msg("run finished")

	return result, nil
}

// Validate parses the manifest and reports its warnings without observing
// anything.
func (r *Runner) Validate(ctx context.Context) (*manifest.Set, []manifest.Warning, error) {
	return r.parseManifest(ctx, "")
}

func (r *Runner) parseManifest(ctx context.Context, runID string) (*manifest.Set, []manifest.Warning, error) {
	_, span := r.startPhase(ctx, "parse", runID)
	defer span.End()

	f, err := os.Open(r.cfg.ManifestPath)
	if err != nil {
		return nil, nil, reconcile.NewParseError("opening manifest", err)
	}
	defer f.Close()

	set, warnings, err := manifest.Parse(f, manifest.ParseOptions{Strict: r.cfg.Strict})
	if err != nil {
		return nil, nil, reconcile.NewParseError("parsing manifest", err)
	}
	return set, warnings, nil
}

func (r *Runner) startPhase(ctx context.Context, phase, runID string) (context.Context, trace.Span) {
	if r.opts.Tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return r.opts.Tracer.StartPhase(ctx, phase, runID)
}
