package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hostconform/hostconform/pkg/config"
	"github.com/hostconform/hostconform/pkg/report"
	"github.com/hostconform/hostconform/pkg/stores"
)

func newReportCommand() *cobra.Command {
	var (
		last  int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Browse stored run reports",
		Long: `List past reconciliation runs from the report store, or print one stored
report in full. Requires a store path in the configuration.`,
		Example: `  # List the last ten runs
  conform report --last 10

  # Print one stored report as JSON
  conform report --run 2f9c... -f json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			// Browsing history needs no manifest, so the full config
			// validation is skipped here.
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("format") {
				cfg.Format = formatFlag
			}
			if cfg.StorePath == "" {
				return fmt.Errorf("no report store configured, set store in the config file or CONFORM_STORE")
			}

			store, err := stores.NewSQLiteStore(cfg.StorePath)
			if err != nil {
				return err
			}
			if err := store.Init(ctx); err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(ctx); err != nil {
				return err
			}

			if runID != "" {
				rep, err := store.GetReport(ctx, runID)
				if err != nil {
					return err
				}
				format, err := report.ParseFormat(cfg.Format)
				if err != nil {
					return err
				}
				return report.Render(os.Stdout, rep, format)
			}

			runs, err := store.ListRuns(ctx, last)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no stored runs")
				return nil
			}
			for _, r := range runs {
				fmt.Printf("%s  %-8s  %-7s  %s  %s\n",
					r.Generated.Format("2006-01-02 15:04:05"), r.Mode, r.OverallStatus, r.Hostname, r.ID)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&last, "last", 20, "number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "print the stored report with this run id")

	return cmd
}
