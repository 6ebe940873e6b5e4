// Package config loads the engine configuration from YAML and applies it to
// the process-wide logger and metrics registry.
package config

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-gridtopo/pkg/algebra"
	"github.com/dd0wney/cluso-gridtopo/pkg/integrity"
	"github.com/dd0wney/cluso-gridtopo/pkg/logging"
	"github.com/dd0wney/cluso-gridtopo/pkg/metrics"
	"github.com/dd0wney/cluso-gridtopo/pkg/network"
	"github.com/dd0wney/cluso-gridtopo/pkg/validation"
)

// EngineConfig holds the engine configuration
type EngineConfig struct {
	// LogLevel is the minimum level of the default logger (DEBUG, INFO, WARN, ERROR)
	LogLevel string `yaml:"log_level"`

	// DefaultAtol is the absolute tolerance used by network comparisons
	DefaultAtol float64 `yaml:"default_atol" validate:"gte=0"`

	// ValidateMerges makes every merge scan its result for dangling references
	ValidateMerges bool `yaml:"validate_merges"`

	// ReindexLogLevel is the level of the per-type renumbering lines of a merge
	ReindexLogLevel string `yaml:"reindex_log_level"`

	// PlantMergePolicy decides how plant merging treats missing values
	// (sum_available or require_all)
	PlantMergePolicy string `yaml:"plant_merge_policy"`

	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig configures Prometheus instrumentation
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Environment variables overriding file values
const (
	EnvLogLevel = "LOG_LEVEL"
)

var (
	logLevels        = []string{"DEBUG", "INFO", "WARN", "WARNING", "ERROR"}
	plantPolicies    = []string{"sum_available", "require_all"}
	namespacePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// Default returns the configuration used when no file is given
func Default() *EngineConfig {
	return &EngineConfig{
		LogLevel:         "INFO",
		DefaultAtol:      0,
		ReindexLogLevel:  "DEBUG",
		PlantMergePolicy: "sum_available",
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: metrics.DefaultNamespace,
		},
	}
}

// Load reads a YAML configuration file. Missing keys keep their defaults and
// LOG_LEVEL overrides the file's log level.
func Load(path string) (*EngineConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a YAML configuration from r, applies the environment
// overrides and validates the result.
func Parse(r io.Reader) (*EngineConfig, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EngineConfig) applyEnv() {
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.LogLevel = level
	}
}

// Validate checks every field and reports all problems at once
func (c *EngineConfig) Validate() error {
	return validation.NewConfigValidator("config").
		OneOf("log_level", strings.ToUpper(c.LogLevel), logLevels).
		OneOf("reindex_log_level", strings.ToUpper(c.ReindexLogLevel), logLevels).
		OneOf("plant_merge_policy", c.PlantMergePolicy, plantPolicies).
		Struct("default_atol", c).
		When(c.Metrics.Enabled, func(cv *validation.ConfigValidator) {
			cv.Required("metrics.namespace", c.Metrics.Namespace).
				Custom("metrics.namespace", func() error {
					if c.Metrics.Namespace != "" && !namespacePattern.MatchString(c.Metrics.Namespace) {
						return fmt.Errorf("%q is not a valid metric namespace", c.Metrics.Namespace)
					}
					return nil
				})
		}).
		Validate()
}

// Apply installs the default logger writing to w and the default metrics
// registry described by c.
func (c *EngineConfig) Apply(w io.Writer) error {
	if err := logging.Configure(w, c.LogLevel); err != nil {
		return err
	}
	if c.Metrics.Enabled {
		metrics.SetDefaultRegistry(metrics.NewRegistryWithNamespace(c.Metrics.Namespace))
	} else {
		metrics.SetDefaultRegistry(nil)
	}
	logging.DefaultLogger().Debug("engine configured",
		logging.String("log_level", c.LogLevel),
		logging.Bool("metrics", c.Metrics.Enabled),
		logging.String("plant_merge_policy", c.PlantMergePolicy))
	return nil
}

// MergeOptions returns the merge options implied by c
func (c *EngineConfig) MergeOptions() algebra.MergeOptions {
	level, _ := logging.ParseLevel(c.ReindexLogLevel)
	return algebra.MergeOptions{
		Validate:        c.ValidateMerges,
		ReindexLogLevel: level,
	}
}

// EqualOptions returns comparison options using the configured tolerance
func (c *EngineConfig) EqualOptions(exclude ...string) integrity.EqualOptions {
	opts := integrity.EqualOptions{Atol: c.DefaultAtol}
	for _, et := range exclude {
		opts.ExcludeTypes = append(opts.ExcludeTypes, network.ElementType(et))
	}
	return opts
}

// PlantMergeOptions returns plant merging options for the configured policy
func (c *EngineConfig) PlantMergeOptions(addInfo bool) algebra.PlantMergeOptions {
	policy, _ := algebra.ParseMergePolicy(c.PlantMergePolicy)
	return algebra.PlantMergeOptions{Policy: policy, AddInfo: addInfo}
}
