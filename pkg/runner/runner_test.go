package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostconform/hostconform/pkg/config"
	"github.com/hostconform/hostconform/pkg/manifest"
	"github.com/hostconform/hostconform/pkg/observe"
	"github.com/hostconform/hostconform/pkg/reconcile"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func fullRegistry(t *testing.T, items map[manifest.Domain][]observe.Item) *observe.Registry {
	t.Helper()
	reg := observe.NewRegistry()
	for _, d := range manifest.Domains {
		observed := items[d]
		require.NoError(t, reg.Register(d, observe.ObserverFunc(
			func(ctx context.Context, domain manifest.Domain) ([]observe.Item, error) {
				return observed, nil
			})))
	}
	return reg
}

func testConfig(manifestPath string) *config.Config {
	cfg := config.Default()
	cfg.ManifestPath = manifestPath
	cfg.Hostname = "testhost"
	return cfg
}

func TestDiffReportsMissingEntry(t *testing.T) {
	path := writeManifest(t, "package.official.vim=installed\n")
	r := New(testConfig(path), Options{
		Registry: fullRegistry(t, nil),
		Logger:   zerolog.Nop(),
	})

	res, err := r.Diff(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "diff", res.Report.Mode)
	assert.Nil(t, res.Report.Execution)
	assert.Equal(t, reconcile.SeverityError, res.Report.OverallStatus)
	require.Len(t, res.Plan.Steps, 1)
	assert.Equal(t, "package.official.vim", res.Plan.Steps[0].Key())
	assert.Equal(t, reconcile.ActionInstall, res.Plan.Steps[0].Action)
}

func TestDiffCleanHost(t *testing.T) {
	path := writeManifest(t, "package.official.vim=installed\n")
	items := map[manifest.Domain][]observe.Item{
		manifest.DomainPackageOfficial: {{Domain: manifest.DomainPackageOfficial, ID: "vim"}},
	}
	r := New(testConfig(path), Options{
		Registry: fullRegistry(t, items),
		Logger:   zerolog.Nop(),
	})

	res, err := r.Diff(context.Background())
	require.NoError(t, err)

	assert.Equal(t, reconcile.SeverityOK, res.Report.OverallStatus)
	assert.Empty(t, res.Plan.Steps)
	assert.Equal(t, 0, res.Report.ExitCode())
}

func TestRunDryRunNeverInvokesApplier(t *testing.T) {
	path := writeManifest(t, "package.official.vim=installed\n")
	called := false
	applier := reconcile.ApplierFunc(func(ctx context.Context, step reconcile.Step) (reconcile.ApplyResult, error) {
		called = true
		return reconcile.ApplyResult{Outcome: reconcile.OutcomeApplied}, nil
	})
	r := New(testConfig(path), Options{
		Registry: fullRegistry(t, nil),
		Applier:  applier,
		Logger:   zerolog.Nop(),
	})

	res, err := r.Run(context.Background(), reconcile.ModeDryRun)
	require.NoError(t, err)

	assert.False(t, called)
	require.NotNil(t, res.Report.Execution)
	assert.Equal(t, 1, res.Report.Execution.Summary.WouldApply)
	assert.Equal(t, "dry-run", res.Report.Mode)
}

func TestRunApplyDispatchesSteps(t *testing.T) {
	path := writeManifest(t, "package.official.vim=installed\nservice.system.nginx=enabled\n")
	var keys []string
	applier := reconcile.ApplierFunc(func(ctx context.Context, step reconcile.Step) (reconcile.ApplyResult, error) {
		keys = append(keys, step.Key())
		return reconcile.ApplyResult{Outcome: reconcile.OutcomeApplied}, nil
	})
	r := New(testConfig(path), Options{
		Registry: fullRegistry(t, nil),
		Applier:  applier,
		Logger:   zerolog.Nop(),
	})

	res, err := r.Run(context.Background(), reconcile.ModeApply)
	require.NoError(t, err)

	// Packages before services, always.
	assert.Equal(t, []string{"package.official.vim", "service.system.nginx"}, keys)
	assert.Equal(t, 2, res.Report.Execution.Summary.Applied)
}

func TestExclusionFiltersPlan(t *testing.T) {
	path := writeManifest(t, "package.official.vim=installed\npackage.official.git=installed\n")
	cfg := testConfig(path)
	cfg.Exclude = []string{"package.official.vim"}
	r := New(cfg, Options{
		Registry: fullRegistry(t, nil),
		Logger:   zerolog.Nop(),
	})

	res, err := r.Diff(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Excluded)
	assert.Equal(t, 1, res.Report.ExcludedSteps)
	require.Len(t, res.Plan.Steps, 1)
	assert.Equal(t, "package.official.git", res.Plan.Steps[0].Key())
}

func TestInvalidExclusionIsFatal(t *testing.T) {
	path := writeManifest(t, "package.official.vim=installed\n")
	cfg := testConfig(path)
	cfg.Exclude = []string{"package.official.[vim"}
	r := New(cfg, Options{
		Registry: fullRegistry(t, nil),
		Logger:   zerolog.Nop(),
	})

	_, err := r.Diff(context.Background())
	require.Error(t, err)
	assert.True(t, reconcile.IsFatal(err))
}

func TestMissingManifestIsFatal(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "absent.txt"))
	r := New(cfg, Options{
		Registry: fullRegistry(t, nil),
		Logger:   zerolog.Nop(),
	})

	_, err := r.Diff(context.Background())
	require.Error(t, err)
	assert.True(t, reconcile.IsFatal(err))
}

func TestUnavailableDomainYieldsWarning(t *testing.T) {
	path := writeManifest(t, "docker.volume.data=present\n")
	reg := observe.NewRegistry()
	for _, d := range manifest.Domains {
		if d == manifest.DomainDockerVolume {
			continue
		}
		require.NoError(t, reg.Register(d, observe.ObserverFunc(
			func(ctx context.Context, domain manifest.Domain) ([]observe.Item, error) {
				return nil, nil
			})))
	}
	r := New(testConfig(path), Options{Registry: reg, Logger: zerolog.Nop()})

	res, err := r.Diff(context.Background())
	require.NoError(t, err)

	assert.Equal(t, reconcile.SeverityWarning, res.Report.OverallStatus)
	assert.Equal(t, 1, res.Report.ExitCode())
	// An unobserved domain produces no plan steps.
	assert.Empty(t, res.Plan.Steps)
}

func TestSystemOnlyModeSkipsDockerDomains(t *testing.T) {
	path := writeManifest(t, "docker.volume.data=present\npackage.official.vim=installed\n")
	cfg := testConfig(path)
	cfg.Mode = config.ModeSystemOnly
	r := New(cfg, Options{
		Registry: fullRegistry(t, nil),
		Logger:   zerolog.Nop(),
	})

	res, err := r.Diff(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Plan.Steps, 1)
	assert.Equal(t, "package.official.vim", res.Plan.Steps[0].Key())
	for _, section := range res.Report.Domains {
		assert.True(t, section.Domain.IsSystem())
	}
}
