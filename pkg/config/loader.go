package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/observability/logging"
)

// The active configuration is an immutable snapshot behind an atomic pointer.
// Readers never lock; writers construct a full new snapshot, validate it, and
// publish it in one swap. In-flight analyses keep the snapshot they captured.
var current atomic.Pointer[Config]

func init() {
	current.Store(Default())
}

// Load parses the configuration file, applies environment overrides,
// validates the result and publishes it as the active snapshot.
func Load(configPath string) (*Config, error) {
	cfg, err := Parse(configPath)
	if err != nil {
		return nil, err
	}
	if err := Replace(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads and validates a configuration file without touching the active
// snapshot. The file is YAML; JSON defaults files parse too since YAML is a
// superset of JSON.
func Parse(configPath string) (*Config, error) {
	// Resolve symlinks to handle Kubernetes ConfigMap mounts
	resolved, _ := filepath.EvalSymlinks(configPath)
	if resolved == "" {
		resolved = configPath
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Infof("Loaded configuration: algorithm=%s strategy=%s models=%d",
		cfg.DefaultAlgorithm, cfg.ResolutionStrategy, len(cfg.Models))
	return cfg, nil
}

// Replace validates cfg and publishes it as the active snapshot.
// Invalid snapshots are rejected before the swap.
func Replace(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	current.Store(cfg)
	logging.Infof("Configuration snapshot replaced: algorithm=%s strategy=%s",
		cfg.DefaultAlgorithm, cfg.ResolutionStrategy)
	return nil
}

// Get returns the active configuration snapshot. The returned value must be
// treated as read-only; use Clone to derive an updated snapshot.
func Get() *Config {
	return current.Load()
}

// applyEnvOverrides overrides file values from ASH_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("ASH_DEFAULT_ALGORITHM"); ok {
		cfg.DefaultAlgorithm = v
	}
	if v, ok := os.LookupEnv("ASH_RESOLUTION_STRATEGY"); ok {
		cfg.ResolutionStrategy = v
	}
	if v, ok := os.LookupEnv("ASH_DEFAULT_VERBOSITY"); ok {
		cfg.DefaultVerbosity = v
	}
	if v, ok := os.LookupEnv("ASH_ALERT_WEBHOOK_URL"); ok {
		cfg.Alerting.WebhookURL = v
		cfg.Alerting.Enabled = v != ""
	}

	overrideFloat := func(key string, dst *float64) {
		v, ok := os.LookupEnv(key)
		if !ok {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			logging.Warnf("Ignoring %s=%q: %v", key, v, err)
			return
		}
		*dst = f
	}

	overrideFloat("ASH_CRISIS_THRESHOLD", &cfg.Thresholds.Crisis)
	overrideFloat("ASH_MAJORITY_THRESHOLD", &cfg.Thresholds.Majority)
	overrideFloat("ASH_UNANIMOUS_THRESHOLD", &cfg.Thresholds.Unanimous)
	overrideFloat("ASH_DISAGREEMENT_THRESHOLD", &cfg.Thresholds.Disagreement)
	overrideFloat("ASH_SCORE_GAP_THRESHOLD", &cfg.Thresholds.ScoreGap)
	overrideFloat("ASH_INTERVENTION_THRESHOLD", &cfg.Thresholds.Intervention)
}
