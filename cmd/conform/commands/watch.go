package commands

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/hostconform/hostconform/pkg/report"
)

// quietPeriod coalesces the event bursts editors produce when saving.
const quietPeriod = 500 * time.Millisecond

func newWatchCommand(version string) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-check drift whenever the manifest changes",
		Long: `Watch the manifest file and re-run the drift check on every change.
Watch mode never applies anything; it is a live view of how far the host
has drifted from what the manifest declares.`,
		Example: `  # Watch the configured manifest
  conform watch

  # Watch and expose Prometheus metrics
  conform watch --metrics-addr :9477`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			a, err := buildApp(ctx, cfg, version)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if metricsAddr != "" {
				go func() {
					mux := http.NewServeMux()
					mux.Handle("/metrics", a.metrics.Handler())
					if err := http.ListenAndServe(metricsAddr, mux); err != nil {
						a.logger.Error().Err(err).Msg("metrics listener failed")
					}
				}()
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer watcher.Close()

			// Watch the directory: editors replace the file on save,
			// which drops a watch on the file itself.
			manifestPath, err := filepath.Abs(cfg.ManifestPath)
			if err != nil {
				return err
			}
			if err := watcher.Add(filepath.Dir(manifestPath)); err != nil {
				return err
			}

			runOnce := func() {
				if set, perr := parseManifest(cfg); perr == nil {
					a.observer.SetDeclared(set)
				}
				res, rerr := a.runner.Diff(ctx)
				if rerr != nil {
					a.logger.Error().Err(rerr).Msg("drift check failed")
					return
				}
				if err := report.RenderText(os.Stdout, res.Report); err != nil {
					a.logger.Error().Err(err).Msg("rendering report failed")
				}
			}
			runOnce()

			debounce := time.NewTimer(quietPeriod)
			if !debounce.Stop() {
				<-debounce.C
			}

			for {
				select {
				case <-ctx.Done():
					return nil

				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if filepath.Clean(event.Name) != manifestPath {
						continue
					}
					if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
						continue
					}
					debounce.Reset(quietPeriod)

				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					a.logger.Warn().Err(err).Msg("watch error")

				case <-debounce.C:
					a.logger.Info().Str("manifest", cfg.ManifestPath).Msg("manifest changed")
					runOnce()
				}
			}
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}
