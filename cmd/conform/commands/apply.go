package commands

import (
	"github.com/spf13/cobra"

	"github.com/hostconform/hostconform/pkg/reconcile"
)

func newApplyCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Bring the host in line with the manifest",
		Long: `Observe the host, build a plan and execute it: install missing packages,
enable drifted services, restore tracked config files and create missing
docker resources.

Execution is sequential in fixed domain order (packages, services, config
files, docker) and best effort: a failed step is recorded and the rest of
the plan continues. Undeclared resources are only removed when a prune
policy explicitly allows it.`,
		Example: `  # Apply the configured manifest
  conform apply

  # Rehearse without touching the host
  conform apply --dry-run

  # Apply only the docker domains
  conform apply --mode docker-only`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if dryRun {
				cfg.DryRun = true
			}

			a, err := buildApp(ctx, cfg, cmd.Root().Version)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			mode := reconcile.ModeApply
			if cfg.DryRun {
				mode = reconcile.ModeDryRun
			}

			res, err := a.runner.Run(ctx, mode)
			if err != nil {
				return err
			}
			return renderResult(cfg, res.Report)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "rehearse the plan without executing it")

	return cmd
}
