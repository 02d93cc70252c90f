package probe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hostconform/hostconform/pkg/manifest"
	"github.com/hostconform/hostconform/pkg/reconcile"
)

// HostApplier applies plan steps on the local host with the same tooling the
// observer reads from. Every method is idempotent at the tool level:
// re-applying a step that already holds is a no-op for pacman and systemctl.
type HostApplier struct {
	run CommandRunner

	// AurHelper is the pacman-compatible helper used for AUR packages.
	// Empty means AUR steps are skipped.
	AurHelper string

	// Root is prepended to config file paths. Defaults to "/".
	Root string

	logger zerolog.Logger
}

// NewHostApplier creates an applier for the local host.
func NewHostApplier(logger zerolog.Logger) *HostApplier {
	return &HostApplier{run: ExecRunner, Root: "/", logger: logger}
}

// Apply performs one plan step.
func (a *HostApplier) Apply(ctx context.Context, step reconcile.Step) (reconcile.ApplyResult, error) {
	switch step.Domain {
	case manifest.DomainPackageOfficial:
		return a.applyPackage(ctx, "pacman", step)
	case manifest.DomainPackageAUR:
		if a.AurHelper == "" {
			return reconcile.ApplyResult{
				Outcome: reconcile.OutcomeSkipped,
				Reason:  "no AUR helper configured",
			}, nil
		}
		return a.applyPackage(ctx, a.AurHelper, step)
	case manifest.DomainServiceSystem:
		return a.applyService(ctx, step, false)
	case manifest.DomainServiceUser:
		return a.applyService(ctx, step, true)
	case manifest.DomainServiceMasked:
		return a.applyMasked(ctx, step)
	case manifest.DomainConfigFile:
		return a.applyConfigFile(step)
	case manifest.DomainDockerNetwork:
		return a.applyDockerNetwork(ctx, step)
	case manifest.DomainDockerVolume:
		return a.applyDockerVolume(ctx, step)
	case manifest.DomainDockerCompose:
		return a.applyCompose(ctx, step)
	default:
		return reconcile.ApplyResult{}, fmt.Errorf("unknown domain %s", step.Domain)
	}
}

func (a *HostApplier) applyPackage(ctx context.Context, tool string, step reconcile.Step) (reconcile.ApplyResult, error) {
	switch step.Action {
	case reconcile.ActionInstall, reconcile.ActionRepair:
		if _, err := a.run(ctx, tool, "-S", "--noconfirm", "--needed", step.ID); err != nil {
			return reconcile.ApplyResult{}, err
		}
	case reconcile.ActionRemove:
		if _, err := a.run(ctx, tool, "-Rns", "--noconfirm", step.ID); err != nil {
			return reconcile.ApplyResult{}, err
		}
	}
	return reconcile.ApplyResult{Outcome: reconcile.OutcomeApplied}, nil
}

func (a *HostApplier) applyService(ctx context.Context, step reconcile.Step, user bool) (reconcile.ApplyResult, error) {
	unit := step.ID + ".service"
	state := step.Attrs["state"]

	var args []string
	switch {
	case step.Action == reconcile.ActionRemove || state == "disabled":
		args = []string{"disable", "--now", unit}
	case state == "enabled" || state == "":
		// enable --now also restarts a unit that drifted into failure.
		args = []string{"enable", "--now", unit}
	default:
		return reconcile.ApplyResult{
			Outcome: reconcile.OutcomeSkipped,
			Reason:  "unsupported service state " + state,
		}, nil
	}
	if user {
		args = append([]string{"--user"}, args...)
	}
	if _, err := a.run(ctx, "systemctl", args...); err != nil {
		return reconcile.ApplyResult{}, err
	}

	// Enabling does not restart an already-active unit, so a drifted
	// "active" attribute needs an explicit restart.
	if step.Action == reconcile.ActionRepair && state != "disabled" {
		restart := []string{"restart", unit}
		if user {
			restart = append([]string{"--user"}, restart...)
		}
		if _, err := a.run(ctx, "systemctl", restart...); err != nil {
			return reconcile.ApplyResult{}, err
		}
	}
	return reconcile.ApplyResult{Outcome: reconcile.OutcomeApplied}, nil
}

func (a *HostApplier) applyMasked(ctx context.Context, step reconcile.Step) (reconcile.ApplyResult, error) {
	unit := step.ID + ".service"
	verb := "mask"
	if step.Action == reconcile.ActionRemove {
		verb = "unmask"
	}
	if _, err := a.run(ctx, "systemctl", verb, unit); err != nil {
		return reconcile.ApplyResult{}, err
	}
	return reconcile.ApplyResult{Outcome: reconcile.OutcomeApplied}, nil
}

func (a *HostApplier) configPath(id string) string {
	root := a.Root
	if root == "" {
		root = "/"
	}
	return filepath.Join(root, strings.ReplaceAll(id, ".", string(filepath.Separator)))
}

func (a *HostApplier) applyConfigFile(step reconcile.Step) (reconcile.ApplyResult, error) {
	path := a.configPath(step.ID)

	if step.Action == reconcile.ActionRemove {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return reconcile.ApplyResult{}, err
		}
		return reconcile.ApplyResult{Outcome: reconcile.OutcomeApplied}, nil
	}

	source := step.Attrs["source"]
	if source == "" {
		return reconcile.ApplyResult{
			Outcome: reconcile.OutcomeSkipped,
			Reason:  "no source declared for " + step.ID,
		}, nil
	}

	content, err := os.ReadFile(source)
	if err != nil {
		return reconcile.ApplyResult{}, fmt.Errorf("reading source %s: %w", source, err)
	}

	mode := os.FileMode(0o644)
	if m := step.Attrs["mode"]; m != "" {
		parsed, err := strconv.ParseUint(m, 8, 32)
		if err != nil {
			return reconcile.ApplyResult{}, fmt.Errorf("invalid mode %q: %w", m, err)
		}
		mode = os.FileMode(parsed)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return reconcile.ApplyResult{}, err
	}
	if err := os.WriteFile(path, content, mode); err != nil {
		return reconcile.ApplyResult{}, err
	}
	return reconcile.ApplyResult{Outcome: reconcile.OutcomeApplied}, nil
}

func (a *HostApplier) applyDockerNetwork(ctx context.Context, step reconcile.Step) (reconcile.ApplyResult, error) {
	switch step.Action {
	case reconcile.ActionRemove:
		if _, err := a.run(ctx, "docker", "network", "rm", step.ID); err != nil {
			return reconcile.ApplyResult{}, err
		}
	case reconcile.ActionRepair:
		// Driver changes require recreation.
		if _, err := a.run(ctx, "docker", "network", "rm", step.ID); err != nil {
			return reconcile.ApplyResult{}, err
		}
		fallthrough
	case reconcile.ActionInstall:
		args := []string{"network", "create"}
		if driver := step.Attrs["driver"]; driver != "" {
			args = append(args, "--driver", driver)
		}
		args = append(args, step.ID)
		if _, err := a.run(ctx, "docker", args...); err != nil {
			return reconcile.ApplyResult{}, err
		}
	}
	return reconcile.ApplyResult{Outcome: reconcile.OutcomeApplied}, nil
}

func (a *HostApplier) applyDockerVolume(ctx context.Context, step reconcile.Step) (reconcile.ApplyResult, error) {
	switch step.Action {
	case reconcile.ActionRemove:
		if _, err := a.run(ctx, "docker", "volume", "rm", step.ID); err != nil {
			return reconcile.ApplyResult{}, err
		}
	case reconcile.ActionRepair:
		// A volume's driver cannot change in place, and recreating one
		// destroys data. That decision is not this tool's to make.
		return reconcile.ApplyResult{
			Outcome: reconcile.OutcomeSkipped,
			Reason:  "volume driver change requires manual migration",
		}, nil
	case reconcile.ActionInstall:
		args := []string{"volume", "create"}
		if driver := step.Attrs["driver"]; driver != "" {
			args = append(args, "--driver", driver)
		}
		args = append(args, step.ID)
		if _, err := a.run(ctx, "docker", args...); err != nil {
			return reconcile.ApplyResult{}, err
		}
	}
	return reconcile.ApplyResult{Outcome: reconcile.OutcomeApplied}, nil
}

func (a *HostApplier) applyCompose(ctx context.Context, step reconcile.Step) (reconcile.ApplyResult, error) {
	if step.Action == reconcile.ActionRemove {
		if _, err := a.run(ctx, "docker", "compose", "-p", step.ID, "down"); err != nil {
			return reconcile.ApplyResult{}, err
		}
		return reconcile.ApplyResult{Outcome: reconcile.OutcomeApplied}, nil
	}

	source := step.Attrs["source"]
	if source == "" {
		return reconcile.ApplyResult{
			Outcome: reconcile.OutcomeSkipped,
			Reason:  "no compose file declared for " + step.ID,
		}, nil
	}
	if _, err := a.run(ctx, "docker", "compose", "-p", step.ID, "-f", source, "up", "-d"); err != nil {
		return reconcile.ApplyResult{}, err
	}
	return reconcile.ApplyResult{Outcome: reconcile.OutcomeApplied}, nil
}
