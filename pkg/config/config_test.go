package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostconform/hostconform/pkg/manifest"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ModeAll, cfg.Mode)
	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, 30*time.Second, cfg.ObserveTimeout)
	assert.False(t, cfg.DryRun)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conform.yaml")
	data := `
manifest: /etc/conform/manifest.txt
mode: docker-only
detailed: true
exclude:
  - "package.official.*"
format: json
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/etc/conform/manifest.txt", cfg.ManifestPath)
	assert.Equal(t, ModeDockerOnly, cfg.Mode)
	assert.True(t, cfg.Detailed)
	assert.Equal(t, []string{"package.official.*"}, cfg.Exclude)
	assert.Equal(t, "json", cfg.Format)
	// Untouched fields keep their defaults.
	assert.Equal(t, 5*time.Minute, cfg.StepTimeout)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conform.yaml")
	require.NoError(t, os.WriteFile(path, []byte("manifest: /tmp/a\nmode: all\n"), 0o644))

	t.Setenv("CONFORM_MODE", "system-only")
	t.Setenv("CONFORM_EXCLUDE", "service.user.*,docker.volume.tmp")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeSystemOnly, cfg.Mode)
	assert.Equal(t, []string{"service.user.*", "docker.volume.tmp"}, cfg.Exclude)
	assert.Equal(t, "/tmp/a", cfg.ManifestPath)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/conform.yaml")
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.ManifestPath = "/tmp/manifest"
	cfg.Format = "xml"

	assert.Error(t, cfg.Validate())

	cfg.Format = "html"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRequiresManifest(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())
}

func TestModeDomains(t *testing.T) {
	all := ModeAll.Domains()
	assert.Len(t, all, len(manifest.Domains))

	for _, d := range ModeSystemOnly.Domains() {
		assert.True(t, d.IsSystem(), d)
	}
	for _, d := range ModeDockerOnly.Domains() {
		assert.True(t, d.IsDocker(), d)
	}
	assert.Len(t, append(ModeSystemOnly.Domains(), ModeDockerOnly.Domains()...), len(manifest.Domains))
}
