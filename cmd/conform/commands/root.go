package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hostconform/hostconform/pkg/config"
	"github.com/hostconform/hostconform/pkg/manifest"
	"github.com/hostconform/hostconform/pkg/observe"
	"github.com/hostconform/hostconform/pkg/policy"
	"github.com/hostconform/hostconform/pkg/probe"
	"github.com/hostconform/hostconform/pkg/reconcile"
	"github.com/hostconform/hostconform/pkg/report"
	"github.com/hostconform/hostconform/pkg/runner"
	"github.com/hostconform/hostconform/pkg/stores"
	"github.com/hostconform/hostconform/pkg/telemetry"
)

var (
	// Global flags
	configPath   string
	manifestPath string
	modeFlag     string
	formatFlag   string
	excludeFlag  []string
	detailedFlag bool
	strictFlag   bool
	verbose      bool
)

// exitError carries the severity-mapped exit code of a finished run.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// Execute runs the root command and returns the process exit code:
// 0 for a clean host, 1 for warnings, 2 for drift or failed steps,
// 3 for a fatal error that prevented the run from finishing.
func Execute(ctx context.Context, version, commit, buildDate string) int {
	rootCmd := newRootCommand(version, commit, buildDate)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 3
	}
	return 0
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "conform",
		Short: "hostconform - declarative host state reconciliation",
		Long: `hostconform compares the declared state of a host (packages, services,
config files and docker resources) against what is actually there, and
reports or repairs the difference.

The manifest is a plain line-oriented file:

  package.official.vim=required
  service.system.sshd=enabled
  config.system.etc.fstab.checksum=abc123
  docker.volume.pgdata=present

Nothing unrecognized is ever removed unless a prune policy explicitly
allows it.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", "", "manifest file path")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "domain selection: all, system-only or docker-only")
	rootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "", "report format: text, json or html")
	rootCmd.PersistentFlags().StringSliceVarP(&excludeFlag, "exclude", "e", nil, "exclusion patterns, repeatable")
	rootCmd.PersistentFlags().BoolVar(&detailedFlag, "detailed", false, "also report undeclared resources")
	rootCmd.PersistentFlags().BoolVar(&strictFlag, "strict", false, "treat malformed manifest lines as fatal")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newReportCommand())
	rootCmd.AddCommand(newWatchCommand(version))
	rootCmd.AddCommand(newVersionCommand(version, commit, buildDate))

	return rootCmd
}

// loadConfig layers the config file, environment and CLI flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("manifest") {
		cfg.ManifestPath = manifestPath
	}
	if flags.Changed("mode") {
		cfg.Mode = config.Mode(modeFlag)
	}
	if flags.Changed("format") {
		cfg.Format = formatFlag
	}
	if flags.Changed("exclude") {
		cfg.Exclude = excludeFlag
	}
	if flags.Changed("detailed") {
		cfg.Detailed = detailedFlag
	}
	if flags.Changed("strict") {
		cfg.Strict = strictFlag
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app bundles the collaborators of one command invocation.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	runner   *runner.Runner
	store    stores.Store
	tracer   *telemetry.Tracer
	metrics  *telemetry.Metrics
	observer *probe.HostObserver
}

// Close releases the app's resources.
func (a *app) Close(ctx context.Context) {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("closing report store")
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("shutting down tracer")
		}
	}
}

// buildApp wires logging, telemetry, observers, applier, policy and store
// into a ready-to-run pipeline.
func buildApp(ctx context.Context, cfg *config.Config, version string) (*app, error) {
	cfg.Telemetry.ServiceVersion = version

	logger, err := telemetry.NewLogger(cfg.Telemetry.Logging)
	if err != nil {
		return nil, err
	}

	metrics := telemetry.NewMetrics(cfg.Telemetry.Metrics)

	tracer, err := telemetry.NewTracer(cfg.Telemetry.Tracing, cfg.Telemetry.ServiceName, version)
	if err != nil {
		return nil, err
	}

	// The config file observer is scoped to the declared set, so the
	// manifest is parsed once up front. The runner re-parses it per run,
	// which also keeps watch mode current.
	declared, err := parseManifest(cfg)
	if err != nil {
		return nil, err
	}

	reg := observe.NewRegistry()
	hostObserver := probe.NewHostObserver(declared, telemetry.ComponentLogger(logger, "observe"))
	if err := hostObserver.RegisterAll(reg); err != nil {
		return nil, err
	}

	applier := probe.NewHostApplier(telemetry.ComponentLogger(logger, "apply"))
	applier.AurHelper = cfg.AurHelper

	var pruner reconcile.Pruner
	if cfg.PolicyDir != "" {
		engine, err := policy.NewEngine(telemetry.ComponentLogger(logger, "policy"))
		if err != nil {
			return nil, err
		}
		if err := engine.LoadDir(cfg.PolicyDir); err != nil {
			return nil, err
		}
		pruner = engine
	}

	var store stores.Store
	if cfg.StorePath != "" {
		sqlStore, err := stores.NewSQLiteStore(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		if err := sqlStore.Init(ctx); err != nil {
			return nil, err
		}
		if err := sqlStore.Migrate(ctx); err != nil {
			return nil, err
		}
		store = sqlStore
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		tracer:   tracer,
		metrics:  metrics,
		observer: hostObserver,
	}
	a.runner = runner.New(cfg, runner.Options{
		Registry: reg,
		Applier:  applier,
		Pruner:   pruner,
		Store:    store,
		Metrics:  metrics,
		Tracer:   tracer,
		Logger:   logger,
	})
	return a, nil
}

func parseManifest(cfg *config.Config) (*manifest.Set, error) {
	f, err := os.Open(cfg.ManifestPath)
	if err != nil {
		return nil, reconcile.NewParseError("opening manifest", err)
	}
	defer f.Close()

	set, _, err := manifest.Parse(f, manifest.ParseOptions{Strict: cfg.Strict})
	if err != nil {
		return nil, reconcile.NewParseError("parsing manifest", err)
	}
	return set, nil
}

// renderResult writes the report and converts its status into the exit
// code contract.
func renderResult(cfg *config.Config, rep *report.Report) error {
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	if err := report.Render(os.Stdout, rep, format); err != nil {
		return err
	}
	if code := rep.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}
