package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hostconform/hostconform/pkg/manifest"
	"github.com/hostconform/hostconform/pkg/telemetry"
)

// Mode selects which domains a run reconciles.
type Mode string

const (
	// ModeAll reconciles every domain.
	ModeAll Mode = "all"

	// ModeSystemOnly reconciles packages, services and config files.
	ModeSystemOnly Mode = "system-only"

	// ModeDockerOnly reconciles the container-runtime domains.
	ModeDockerOnly Mode = "docker-only"
)

// Domains returns the domains covered by the mode, in execution order.
func (m Mode) Domains() []manifest.Domain {
	var out []manifest.Domain
	for _, d := range manifest.Domains {
		switch m {
		case ModeSystemOnly:
			if d.IsSystem() {
				out = append(out, d)
			}
		case ModeDockerOnly:
			if d.IsDocker() {
				out = append(out, d)
			}
		default:
			out = append(out, d)
		}
	}
	return out
}

// Config is the runtime configuration of a reconciliation run. Values come
// from the YAML config file, overridden by CONFORM_* environment variables,
// overridden in turn by CLI flags.
type Config struct {
	// ManifestPath is the manifest file to reconcile against.
	ManifestPath string `yaml:"manifest" env:"MANIFEST" validate:"required"`

	// Mode selects which domains to reconcile.
	Mode Mode `yaml:"mode" env:"MODE" validate:"oneof=all system-only docker-only"`

	// Detailed also reports observed resources the manifest does not
	// declare.
	Detailed bool `yaml:"detailed" env:"DETAILED"`

	// DryRun rehearses the plan without invoking any applier.
	DryRun bool `yaml:"dry_run" env:"DRY_RUN"`

	// Strict makes malformed or unrecognized manifest lines fatal.
	Strict bool `yaml:"strict" env:"STRICT"`

	// Exclude lists exclusion patterns applied to the plan.
	Exclude []string `yaml:"exclude" env:"EXCLUDE" envSeparator:","`

	// Format selects the report output format.
	Format string `yaml:"format" env:"FORMAT" validate:"oneof=text json html"`

	// Hostname overrides the reported hostname.
	Hostname string `yaml:"hostname" env:"HOSTNAME"`

	// PolicyDir holds user prune policies (*.rego). Empty disables
	// pruning entirely.
	PolicyDir string `yaml:"policy_dir" env:"POLICY_DIR"`

	// AurHelper is the pacman-compatible helper used to apply AUR
	// package steps. Empty skips those steps.
	AurHelper string `yaml:"aur_helper" env:"AUR_HELPER"`

	// StorePath is the SQLite report history database. Empty disables
	// history.
	StorePath string `yaml:"store" env:"STORE"`

	// ObserveTimeout bounds each domain observation.
	ObserveTimeout time.Duration `yaml:"observe_timeout" env:"OBSERVE_TIMEOUT"`

	// StepTimeout bounds each applier call.
	StepTimeout time.Duration `yaml:"step_timeout" env:"STEP_TIMEOUT"`

	// Telemetry configures logging, metrics and tracing.
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Mode:           ModeAll,
		Format:         "text",
		ObserveTimeout: 30 * time.Second,
		StepTimeout:    5 * time.Minute,
		Telemetry:      telemetry.DefaultConfig(),
	}
}

// Load builds the configuration: defaults, then the YAML file at path (when
// given), then CONFORM_* environment variables. A .env file in the working
// directory is honored before the environment is read.
func Load(path string) (*Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "CONFORM_"}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return c.Telemetry.Validate()
}
