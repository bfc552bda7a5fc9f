// Package config handles loading and validation of cp2kit configuration.
//
// Configuration lives in an optional cp2kit.yaml next to the input decks.
// Absent file means built-in defaults; an invalid file is an error, never a
// silent fallback.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/glasslab/cp2kit/internal/errors"
	"github.com/glasslab/cp2kit/internal/plan"
)

// ConfigFileName is the expected configuration filename.
const ConfigFileName = "cp2kit.yaml"

// Default run limits.
const (
	DefaultPhaseTimeout = 12 * time.Hour
	MinPhaseTimeout     = 1 * time.Minute
	MaxPhaseTimeout     = 7 * 24 * time.Hour
)

// Duration wraps time.Duration so yaml decoding accepts "2h" / "90m" forms.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Thresholds are the evaluation predicates for one profile.
type Thresholds struct {
	// MaxSCF bounds the mean SCF cycle count per step.
	MaxSCF float64 `yaml:"max_scf"`

	// TargetTempK is the thermostat target temperature in kelvin.
	TargetTempK float64 `yaml:"target_temp_k"`

	// TempToleranceK bounds |temperature_mean - target|.
	TempToleranceK float64 `yaml:"temp_tolerance_k"`

	// MaxTempStdK bounds the temperature standard deviation.
	MaxTempStdK float64 `yaml:"max_temp_std_k"`
}

// Config is the parsed and validated cp2kit.yaml.
type Config struct {
	// Engine is an explicit engine binary path; empty means PATH lookup.
	Engine string `yaml:"engine"`

	// ReportsDir is where evaluation records are written.
	ReportsDir string `yaml:"reports_dir"`

	// PhaseTimeout bounds each phase's wall time.
	PhaseTimeout Duration `yaml:"phase_timeout"`

	// Profiles maps profile names to threshold presets. Built-in compat and
	// fast presets apply when a profile is not listed.
	Profiles map[string]Thresholds `yaml:"profiles"`
}

// DefaultThresholds returns the built-in preset for a profile.
//
// compat mirrors the reference smoke-test expectations; fast loosens the
// SCF bound and temperature spread for quick iteration inputs.
func DefaultThresholds(profile plan.Profile) Thresholds {
	switch profile {
	case plan.ProfileFast:
		return Thresholds{
			MaxSCF:         25,
			TargetTempK:    300,
			TempToleranceK: 75,
			MaxTempStdK:    100,
		}
	default:
		return Thresholds{
			MaxSCF:         12,
			TargetTempK:    300,
			TempToleranceK: 50,
			MaxTempStdK:    50,
		}
	}
}

// DefaultConfig returns the configuration used when cp2kit.yaml is absent.
func DefaultConfig() Config {
	return Config{
		ReportsDir:   "reports",
		PhaseTimeout: Duration(DefaultPhaseTimeout),
		Profiles:     map[string]Thresholds{},
	}
}

// Load reads cp2kit.yaml from dir. A missing file returns defaults with
// found=false. An unreadable or invalid file returns E_INVALID_CONFIG.
func Load(dir string) (Config, bool, error) {
	path := filepath.Join(dir, ConfigFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), false, nil
		}
		return Config{}, false, errors.Wrap(errors.EInvalidConfig, "failed to read "+ConfigFileName, err)
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, false, errors.WrapWithDetails(
			errors.EInvalidConfig,
			"invalid "+ConfigFileName+": "+err.Error(),
			err,
			map[string]string{"config": path},
		)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, false, err
	}
	return cfg, true, nil
}

// Validate checks semantic constraints after parsing.
func Validate(cfg Config) error {
	if cfg.ReportsDir == "" {
		return errors.New(errors.EInvalidConfig, "reports_dir must not be empty")
	}
	if t := cfg.PhaseTimeout.Std(); t != 0 && (t < MinPhaseTimeout || t > MaxPhaseTimeout) {
		return errors.New(errors.EInvalidConfig,
			fmt.Sprintf("phase_timeout must be between %s and %s", MinPhaseTimeout, MaxPhaseTimeout))
	}
	for name, th := range cfg.Profiles {
		if _, err := plan.ParseProfile(name); err != nil {
			return errors.NewWithDetails(
				errors.EInvalidConfig,
				fmt.Sprintf("unknown profile %q in %s", name, ConfigFileName),
				map[string]string{"profile": name},
			)
		}
		if err := validateThresholds(name, th); err != nil {
			return err
		}
	}
	return nil
}

func validateThresholds(profile string, th Thresholds) error {
	if th.MaxSCF <= 0 {
		return thresholdErr(profile, "max_scf must be > 0")
	}
	if th.TargetTempK <= 0 {
		return thresholdErr(profile, "target_temp_k must be > 0")
	}
	if th.TempToleranceK < 0 {
		return thresholdErr(profile, "temp_tolerance_k must be >= 0")
	}
	if th.MaxTempStdK < 0 {
		return thresholdErr(profile, "max_temp_std_k must be >= 0")
	}
	return nil
}

func thresholdErr(profile, msg string) error {
	return errors.NewWithDetails(
		errors.EInvalidConfig,
		msg,
		map[string]string{"profile": profile},
	)
}

// ThresholdsFor resolves the effective thresholds for a profile: the
// configured preset when present, the built-in default otherwise.
func (c Config) ThresholdsFor(profile plan.Profile) Thresholds {
	if th, ok := c.Profiles[string(profile)]; ok {
		return th
	}
	return DefaultThresholds(profile)
}
