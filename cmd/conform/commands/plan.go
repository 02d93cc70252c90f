package commands

import (
	"github.com/spf13/cobra"

	"github.com/hostconform/hostconform/pkg/reconcile"
)

func newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the drift between manifest and host",
		Long: `Observe the host, diff it against the manifest and print what an apply
would do, without changing anything. Every step is reported as
"would install", "would repair" or "would remove".

The exit code reflects the host state: 0 when clean, 1 when a domain
could not be observed, 2 when drift was found.`,
		Example: `  # Plan against the configured manifest
  conform plan

  # Only system domains, including undeclared resources
  conform plan --mode system-only --detailed

  # Ignore a noisy service
  conform plan -e 'service.user.*'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			a, err := buildApp(ctx, cfg, cmd.Root().Version)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			res, err := a.runner.Run(ctx, reconcile.ModeDryRun)
			if err != nil {
				return err
			}
			return renderResult(cfg, res.Report)
		},
	}
	return cmd
}
