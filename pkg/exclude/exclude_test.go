package exclude

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostconform/hostconform/pkg/manifest"
	"github.com/hostconform/hostconform/pkg/reconcile"
)

func planOf(t *testing.T, diffs []reconcile.DiffResult) *reconcile.Plan {
	t.Helper()
	plan, err := reconcile.BuildPlan(context.Background(), diffs, reconcile.PlanOptions{})
	require.NoError(t, err)
	return plan
}

func missing(d manifest.Domain, ids ...string) reconcile.DiffResult {
	diff := reconcile.DiffResult{Domain: d}
	for _, id := range ids {
		diff.Missing = append(diff.Missing, manifest.Entry{Domain: d, ID: id, Attrs: map[string]string{}})
	}
	return diff
}

func TestCompileInvalidPatternFails(t *testing.T) {
	_, err := Compile([]string{"package.official.[vim"})
	require.Error(t, err)

	var rerr *reconcile.Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, reconcile.ErrorClassExclusion, rerr.Class)
	assert.True(t, reconcile.IsFatal(err))
}

func TestExactPatternMatchesFullKeyOnly(t *testing.T) {
	list, err := Compile([]string{"package.official.vim"})
	require.NoError(t, err)

	_, ok := list.Match("package.official.vim")
	assert.True(t, ok)
	_, ok = list.Match("package.official.vim-runtime")
	assert.False(t, ok)
	_, ok = list.Match("package.aur.vim")
	assert.False(t, ok)
}

// Glob over two official-package installs plus one service step keeps only
// the service step and reports two removals.
func TestFilterGlob(t *testing.T) {
	plan := planOf(t, []reconcile.DiffResult{
		missing(manifest.DomainPackageOfficial, "vim", "git"),
		missing(manifest.DomainServiceSystem, "sshd"),
	})
	require.Equal(t, 3, plan.Len())

	list, err := Compile([]string{"package.official.*"})
	require.NoError(t, err)

	filtered, removed := Filter(plan, list)
	assert.Equal(t, 2, removed)
	require.Equal(t, 1, filtered.Len())
	assert.Equal(t, "service.system.sshd", filtered.Steps[0].Key())
	assert.Equal(t, 1, filtered.Summary.ToInstall)
	assert.Equal(t, plan.Len()-filtered.Len(), removed)
}

func TestFilterQuestionMark(t *testing.T) {
	plan := planOf(t, []reconcile.DiffResult{
		missing(manifest.DomainPackageOfficial, "vi", "vim", "vimb"),
	})

	list, err := Compile([]string{"package.official.vi?"})
	require.NoError(t, err)

	filtered, removed := Filter(plan, list)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, filtered.Len())
}

// No surviving step may match any pattern, and the removal arithmetic must
// hold for arbitrary pattern sets.
func TestFilterCorrectness(t *testing.T) {
	plan := planOf(t, []reconcile.DiffResult{
		missing(manifest.DomainPackageOfficial, "vim", "git", "zsh"),
		missing(manifest.DomainServiceSystem, "sshd", "nginx"),
		missing(manifest.DomainDockerVolume, "pgdata"),
	})

	list, err := Compile([]string{"service.system.*", "docker.volume.pgdata", "package.official.z??"})
	require.NoError(t, err)

	filtered, removed := Filter(plan, list)
	assert.Equal(t, plan.Len()-filtered.Len(), removed)
	for _, step := range filtered.Steps {
		_, ok := list.Match(step.Key())
		assert.False(t, ok, "surviving step %s matches a pattern", step.Key())
	}
}

func TestFilterEmptyListIsNoop(t *testing.T) {
	plan := planOf(t, []reconcile.DiffResult{
		missing(manifest.DomainPackageOfficial, "vim"),
	})

	filtered, removed := Filter(plan, nil)
	assert.Zero(t, removed)
	assert.Same(t, plan, filtered)
}
