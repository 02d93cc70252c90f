package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hostconform/hostconform/pkg/manifest"
	"github.com/hostconform/hostconform/pkg/observe"
)

// recordingApplier records every step it sees and answers from a script.
type recordingApplier struct {
	seen    []Step
	results map[string]ApplyResult
	errs    map[string]error
}

func (a *recordingApplier) Apply(ctx context.Context, step Step) (ApplyResult, error) {
	a.seen = append(a.seen, step)
	if err, ok := a.errs[step.Key()]; ok {
		return ApplyResult{}, err
	}
	if res, ok := a.results[step.Key()]; ok {
		return res, nil
	}
	return ApplyResult{Outcome: OutcomeApplied}, nil
}

func testPlan(steps ...Step) *Plan {
	return &Plan{ID: "test-plan", CreatedAt: time.Now(), Steps: steps}
}

func installStep(d manifest.Domain, id string) Step {
	return Step{Domain: d, ID: id, Action: ActionInstall, Reason: "declared but not present"}
}

func TestExecuteDryRunNeverInvokesApplier(t *testing.T) {
	applier := &recordingApplier{}
	plan := testPlan(
		installStep(manifest.DomainPackageOfficial, "vim"),
		installStep(manifest.DomainServiceSystem, "sshd"),
	)

	report := Execute(context.Background(), plan, ModeDryRun, applier, ExecOptions{Logger: zerolog.Nop()})

	if len(applier.seen) != 0 {
		t.Fatalf("applier invoked during dry-run: %+v", applier.seen)
	}
	if report.Summary.WouldApply != 2 || report.Summary.Total != 2 {
		t.Errorf("summary = %+v", report.Summary)
	}
	if !strings.Contains(report.Results[0].Reason, "would install vim") {
		t.Errorf("reason = %q, want 'would install vim'", report.Results[0].Reason)
	}
	if report.Severity() != SeverityOK {
		t.Errorf("severity = %s, want ok", report.Severity())
	}
}

func TestExecuteFailureContinuesAndRaisesSeverity(t *testing.T) {
	applier := &recordingApplier{
		errs: map[string]error{
			"package.official.vim": errors.New("pacman: target not found"),
		},
	}
	plan := testPlan(
		installStep(manifest.DomainPackageOfficial, "vim"),
		installStep(manifest.DomainServiceSystem, "sshd"),
		installStep(manifest.DomainDockerNetwork, "backend"),
	)

	report := Execute(context.Background(), plan, ModeApply, applier, ExecOptions{Logger: zerolog.Nop()})

	// Best-effort continuation: later steps still ran.
	if len(applier.seen) != 3 {
		t.Fatalf("applier saw %d steps, want 3", len(applier.seen))
	}
	if report.Summary.Failed != 1 || report.Summary.Applied != 2 {
		t.Errorf("summary = %+v", report.Summary)
	}
	if report.Severity() != SeverityError {
		t.Errorf("severity = %s, want error", report.Severity())
	}
}

func TestExecuteSkippedStep(t *testing.T) {
	applier := &recordingApplier{
		results: map[string]ApplyResult{
			"package.aur.yay": {Outcome: OutcomeSkipped, Reason: "no AUR helper on this host"},
		},
	}
	plan := testPlan(installStep(manifest.DomainPackageAUR, "yay"))

	report := Execute(context.Background(), plan, ModeApply, applier, ExecOptions{Logger: zerolog.Nop()})

	if report.Summary.Skipped != 1 {
		t.Fatalf("summary = %+v", report.Summary)
	}
	if report.Severity() != SeverityOK {
		t.Errorf("skipped step raised severity to %s", report.Severity())
	}
}

func TestExecuteStepTimeoutBecomesFailure(t *testing.T) {
	slow := ApplierFunc(func(ctx context.Context, step Step) (ApplyResult, error) {
		select {
		case <-ctx.Done():
			return ApplyResult{}, ctx.Err()
		case <-time.After(5 * time.Second):
			return ApplyResult{Outcome: OutcomeApplied}, nil
		}
	})
	plan := testPlan(installStep(manifest.DomainDockerCompose, "paperless"))

	report := Execute(context.Background(), plan, ModeApply, slow, ExecOptions{
		StepTimeout: 20 * time.Millisecond,
		Logger:      zerolog.Nop(),
	})

	if report.Summary.Failed != 1 {
		t.Fatalf("summary = %+v, want one failure", report.Summary)
	}
	if report.Severity() != SeverityError {
		t.Errorf("severity = %s, want error", report.Severity())
	}
}

// Applying a plan against a mutable fake host reaches a fixed point: the
// next diff is empty.
func TestApplyReachesFixedPoint(t *testing.T) {
	installed := map[string]bool{"bash": true}
	applier := ApplierFunc(func(ctx context.Context, step Step) (ApplyResult, error) {
		if step.Action == ActionInstall {
			installed[step.ID] = true
		}
		return ApplyResult{Outcome: OutcomeApplied}, nil
	})

	desired := []manifest.Entry{
		entry(manifest.DomainPackageOfficial, "bash", nil),
		entry(manifest.DomainPackageOfficial, "git", nil),
		entry(manifest.DomainPackageOfficial, "vim", nil),
	}
	snapshot := func() []observe.Item {
		var items []observe.Item
		for id := range installed {
			items = append(items, item(manifest.DomainPackageOfficial, id, nil))
		}
		return items
	}

	diff := Diff(manifest.DomainPackageOfficial, desired, snapshot(), false)
	if len(diff.Missing) != 2 {
		t.Fatalf("initial missing = %d, want 2", len(diff.Missing))
	}

	plan, err := BuildPlan(context.Background(), []DiffResult{diff}, PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	report := Execute(context.Background(), plan, ModeApply, applier, ExecOptions{Logger: zerolog.Nop()})
	if report.Summary.Failed != 0 {
		t.Fatalf("apply failed: %+v", report.Summary)
	}

	again := Diff(manifest.DomainPackageOfficial, desired, snapshot(), false)
	if !again.Empty() {
		t.Fatalf("no fixed point: %+v", again)
	}
	replan, err := BuildPlan(context.Background(), []DiffResult{again}, PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if replan.Len() != 0 {
		t.Fatalf("re-run produced a non-empty plan: %+v", replan.Steps)
	}
}
