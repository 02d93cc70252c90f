package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hostconform/hostconform/pkg/manifest"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the manifest file",
		Long: `Validate the manifest file without observing the host.

Parsing checks line syntax, domain prefixes and attribute names. Duplicate
keys are reported as warnings; the last occurrence wins. With --strict,
malformed or unrecognized lines fail validation instead of being skipped.`,
		Example: `  # Validate the configured manifest
  conform validate

  # Validate a specific file, failing on any bad line
  conform validate -m ./manifest.txt --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			f, err := os.Open(cfg.ManifestPath)
			if err != nil {
				return err
			}
			defer f.Close()

			set, warnings, err := manifest.Parse(f, manifest.ParseOptions{Strict: cfg.Strict})
			if err != nil {
				return err
			}

			fmt.Printf("%s: %d entries\n", cfg.ManifestPath, set.Len())
			for _, w := range warnings {
				fmt.Println("warning:", w.String())
			}
			if len(warnings) > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	return cmd
}
