package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/hostconform/hostconform/pkg/manifest"
	"github.com/hostconform/hostconform/pkg/observe"
)

type allowAllPruner struct{}

func (allowAllPruner) AllowPrune(ctx context.Context, item observe.Item) (bool, string, error) {
	return true, "test policy", nil
}

type failingPruner struct{}

func (failingPruner) AllowPrune(ctx context.Context, item observe.Item) (bool, string, error) {
	return false, "", errors.New("policy engine unavailable")
}

func TestBuildPlanOrdering(t *testing.T) {
	// Deliberately out of order: compose before packages.
	diffs := []DiffResult{
		{
			Domain: manifest.DomainDockerCompose,
			Missing: []manifest.Entry{
				entry(manifest.DomainDockerCompose, "paperless", nil),
			},
		},
		{
			Domain: manifest.DomainPackageOfficial,
			Missing: []manifest.Entry{
				entry(manifest.DomainPackageOfficial, "vim", nil),
				entry(manifest.DomainPackageOfficial, "git", nil),
			},
		},
		{
			Domain: manifest.DomainServiceSystem,
			Changed: []ChangedPair{
				{
					Desired:  entry(manifest.DomainServiceSystem, "sshd", map[string]string{"state": "enabled"}),
					Observed: item(manifest.DomainServiceSystem, "sshd", map[string]string{"state": "disabled"}),
					Diffs:    []AttrDiff{{Name: "state", Want: "enabled", Got: "disabled"}},
				},
			},
		},
	}

	plan, err := BuildPlan(context.Background(), diffs, PlanOptions{})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	wantKeys := []string{
		"package.official.git",
		"package.official.vim",
		"service.system.sshd",
		"docker.compose.paperless",
	}
	if len(plan.Steps) != len(wantKeys) {
		t.Fatalf("got %d steps, want %d", len(plan.Steps), len(wantKeys))
	}
	for i, key := range wantKeys {
		if plan.Steps[i].Key() != key {
			t.Errorf("step %d = %s, want %s", i, plan.Steps[i].Key(), key)
		}
	}

	if plan.Summary.ToInstall != 3 || plan.Summary.ToRepair != 1 {
		t.Errorf("summary = %+v", plan.Summary)
	}
	if plan.Steps[2].Action != ActionRepair {
		t.Errorf("sshd step action = %s, want repair", plan.Steps[2].Action)
	}
}

func TestBuildPlanExtrasReportedNotRemovedByDefault(t *testing.T) {
	diffs := []DiffResult{
		{
			Domain: manifest.DomainDockerVolume,
			Extra: []observe.Item{
				item(manifest.DomainDockerVolume, "orphaned", nil),
			},
		},
	}

	plan, err := BuildPlan(context.Background(), diffs, PlanOptions{})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Len() != 0 {
		t.Fatalf("unauthorized removal planned: %+v", plan.Steps)
	}
	if plan.Summary.ExtrasReported != 1 {
		t.Errorf("extras reported = %d, want 1", plan.Summary.ExtrasReported)
	}
}

func TestBuildPlanPrunerAuthorizesRemoval(t *testing.T) {
	diffs := []DiffResult{
		{
			Domain: manifest.DomainDockerVolume,
			Extra: []observe.Item{
				item(manifest.DomainDockerVolume, "orphaned", nil),
			},
		},
	}

	plan, err := BuildPlan(context.Background(), diffs, PlanOptions{Pruner: allowAllPruner{}})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Len() != 1 || plan.Steps[0].Action != ActionRemove {
		t.Fatalf("steps = %+v, want one remove", plan.Steps)
	}
	if !plan.Steps[0].Action.IsDestructive() {
		t.Error("remove action not flagged destructive")
	}
}

func TestBuildPlanPrunerErrorIsFatal(t *testing.T) {
	diffs := []DiffResult{
		{
			Domain: manifest.DomainDockerNetwork,
			Extra: []observe.Item{
				item(manifest.DomainDockerNetwork, "stale", nil),
			},
		},
	}

	_, err := BuildPlan(context.Background(), diffs, PlanOptions{Pruner: failingPruner{}})
	if err == nil {
		t.Fatal("expected error from failing pruner")
	}
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Class != ErrorClassApply {
		t.Errorf("error = %v, want apply-class reconcile error", err)
	}
}

func TestBuildPlanDeterministic(t *testing.T) {
	diffs := []DiffResult{
		{
			Domain: manifest.DomainPackageOfficial,
			Missing: []manifest.Entry{
				entry(manifest.DomainPackageOfficial, "zsh", nil),
				entry(manifest.DomainPackageOfficial, "bat", nil),
				entry(manifest.DomainPackageOfficial, "fzf", nil),
			},
		},
	}

	a, err := BuildPlan(context.Background(), diffs, PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := BuildPlan(context.Background(), diffs, PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Steps {
		if a.Steps[i].Key() != b.Steps[i].Key() {
			t.Fatalf("plans differ at step %d: %s vs %s", i, a.Steps[i].Key(), b.Steps[i].Key())
		}
	}
}
