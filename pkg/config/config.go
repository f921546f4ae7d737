package config

import (
	"fmt"
	"math"
)

// WeightSumTolerance is how far the configured model weights may drift from
// summing to exactly 1.0 before the configuration is rejected.
const WeightSumTolerance = 0.01

// Config is one immutable configuration snapshot. In-flight analyses keep
// using the snapshot they started with; updates are published as a whole new
// snapshot (see loader.go), never mutated in place.
type Config struct {
	// DefaultAlgorithm selects the consensus algorithm when a request does
	// not override it. One of: weighted_voting, majority_voting, unanimous,
	// conflict_aware.
	DefaultAlgorithm string `yaml:"default_algorithm" json:"default_algorithm"`

	// ResolutionStrategy selects the default conflict resolution strategy.
	// One of: conservative, optimistic, mean, review_flag.
	ResolutionStrategy string `yaml:"resolution_strategy" json:"resolution_strategy"`

	// DefaultVerbosity is the default explanation verbosity.
	// One of: minimal, standard, detailed.
	DefaultVerbosity string `yaml:"default_verbosity" json:"default_verbosity"`

	// Weights maps classifier role to ensemble weight. Must sum to ~1.0.
	Weights map[string]float64 `yaml:"weights" json:"weights"`

	// Thresholds are the tunable decision thresholds, all in [0,1].
	Thresholds Thresholds `yaml:"thresholds" json:"thresholds"`

	// Levels are the crisis level score bands.
	Levels LevelBands `yaml:"levels" json:"levels"`

	// Models configures the external classifier endpoints the orchestrator
	// fans out to when a request carries raw text instead of signals.
	Models []ModelConfig `yaml:"models" json:"models"`

	// Alerting configures the review alert webhook.
	Alerting AlertingConfig `yaml:"alerting" json:"alerting"`
}

// Thresholds holds the tunable decision thresholds.
type Thresholds struct {
	// Crisis is the score at or above which a consensus marks crisis.
	Crisis float64 `yaml:"crisis" json:"crisis"`

	// Majority is the vote fraction majority_voting must exceed.
	Majority float64 `yaml:"majority" json:"majority"`

	// Unanimous is the minimum per-signal score unanimous requires.
	Unanimous float64 `yaml:"unanimous" json:"unanimous"`

	// Disagreement is the score variance above which conflict_aware reports
	// significant disagreement.
	Disagreement float64 `yaml:"disagreement" json:"disagreement"`

	// ScoreGap is the max-min spread that triggers a score_disagreement
	// conflict.
	ScoreGap float64 `yaml:"score_gap" json:"score_gap"`

	// Intervention is the score at or above which intervention is required.
	// Independent from the level bands so it can be tuned separately.
	Intervention float64 `yaml:"intervention" json:"intervention"`

	// IronyConfidence is the minimum irony classifier confidence for the
	// irony/sentiment conflict rule.
	IronyConfidence float64 `yaml:"irony_confidence" json:"irony_confidence"`

	// HighCrisisScore is the crisis classifier score above which the
	// emotion/crisis mismatch rule applies.
	HighCrisisScore float64 `yaml:"high_crisis_score" json:"high_crisis_score"`

	// EmotionScore is the per-emotion score a crisis emotion must reach to
	// count as crisis-consistent.
	EmotionScore float64 `yaml:"emotion_score" json:"emotion_score"`

	// PositiveSentiment is the crisis-signal score below which sentiment is
	// treated as strongly positive.
	PositiveSentiment float64 `yaml:"positive_sentiment" json:"positive_sentiment"`

	// IndicatorLabel is the score a label must reach to appear in the
	// primary indicators.
	IndicatorLabel float64 `yaml:"indicator_label" json:"indicator_label"`

	// Escalation is the single-signal score that forces IMMEDIATE priority.
	Escalation float64 `yaml:"escalation" json:"escalation"`
}

// LevelBands holds the crisis level score bands. Scores at or above a band's
// threshold map to that level; below Low maps to SAFE.
type LevelBands struct {
	Critical float64 `yaml:"critical" json:"critical"`
	High     float64 `yaml:"high" json:"high"`
	Medium   float64 `yaml:"medium" json:"medium"`
	Low      float64 `yaml:"low" json:"low"`
}

// ModelConfig configures one external classifier endpoint.
type ModelConfig struct {
	// Name is the serving name reported in results.
	Name string `yaml:"name" json:"name"`

	// Role is the classifier family: crisis, sentiment, irony or emotion.
	Role string `yaml:"role" json:"role"`

	// Endpoint is the predict URL of the model wrapper.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// TimeoutMs is the per-model response deadline.
	TimeoutMs int `yaml:"timeout_ms" json:"timeout_ms"`
}

// AlertingConfig configures the review alert webhook.
type AlertingConfig struct {
	// Enabled controls whether review alerts are delivered at all.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// WebhookURL is the Discord webhook to post review alerts to.
	WebhookURL string `yaml:"webhook_url" json:"webhook_url"`

	// MinIntervalSeconds throttles alert delivery.
	MinIntervalSeconds int `yaml:"min_interval_seconds" json:"min_interval_seconds"`
}

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		DefaultAlgorithm:   "weighted_voting",
		ResolutionStrategy: "conservative",
		DefaultVerbosity:   "standard",
		Weights: map[string]float64{
			"crisis":    0.50,
			"sentiment": 0.25,
			"irony":     0.15,
			"emotion":   0.10,
		},
		Thresholds: Thresholds{
			Crisis:            0.50,
			Majority:          0.50,
			Unanimous:         0.60,
			Disagreement:      0.15,
			ScoreGap:          0.40,
			Intervention:      0.70,
			IronyConfidence:   0.65,
			HighCrisisScore:   0.70,
			EmotionScore:      0.30,
			PositiveSentiment: 0.20,
			IndicatorLabel:    0.50,
			Escalation:        0.95,
		},
		Levels: LevelBands{
			Critical: 0.85,
			High:     0.70,
			Medium:   0.50,
			Low:      0.30,
		},
		Alerting: AlertingConfig{
			Enabled:            false,
			MinIntervalSeconds: 30,
		},
	}
}

var validAlgorithms = map[string]struct{}{
	"weighted_voting": {},
	"majority_voting": {},
	"unanimous":       {},
	"conflict_aware":  {},
}

var validStrategies = map[string]struct{}{
	"conservative": {},
	"optimistic":   {},
	"mean":         {},
	"review_flag":  {},
}

var validVerbosities = map[string]struct{}{
	"minimal":  {},
	"standard": {},
	"detailed": {},
}

var validRoles = map[string]struct{}{
	"crisis":    {},
	"sentiment": {},
	"irony":     {},
	"emotion":   {},
}

// Validate checks the snapshot for configuration defects. A snapshot that
// fails validation is never published.
func (c *Config) Validate() error {
	if _, ok := validAlgorithms[c.DefaultAlgorithm]; !ok {
		return fmt.Errorf("unknown default_algorithm %q", c.DefaultAlgorithm)
	}
	if _, ok := validStrategies[c.ResolutionStrategy]; !ok {
		return fmt.Errorf("unknown resolution_strategy %q", c.ResolutionStrategy)
	}
	if _, ok := validVerbosities[c.DefaultVerbosity]; !ok {
		return fmt.Errorf("unknown default_verbosity %q", c.DefaultVerbosity)
	}

	if len(c.Weights) == 0 {
		return fmt.Errorf("weights must not be empty")
	}
	sum := 0.0
	for role, w := range c.Weights {
		if _, ok := validRoles[role]; !ok {
			return fmt.Errorf("weights: unknown role %q", role)
		}
		if w < 0 || w > 1 {
			return fmt.Errorf("weights: weight for %q out of range [0,1]: %v", role, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > WeightSumTolerance {
		return fmt.Errorf("weights must sum to 1.0 within %.2f, got %.4f", WeightSumTolerance, sum)
	}

	for name, v := range map[string]float64{
		"crisis":             c.Thresholds.Crisis,
		"majority":           c.Thresholds.Majority,
		"unanimous":          c.Thresholds.Unanimous,
		"disagreement":       c.Thresholds.Disagreement,
		"score_gap":          c.Thresholds.ScoreGap,
		"intervention":       c.Thresholds.Intervention,
		"irony_confidence":   c.Thresholds.IronyConfidence,
		"high_crisis_score":  c.Thresholds.HighCrisisScore,
		"emotion_score":      c.Thresholds.EmotionScore,
		"positive_sentiment": c.Thresholds.PositiveSentiment,
		"indicator_label":    c.Thresholds.IndicatorLabel,
		"escalation":         c.Thresholds.Escalation,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("thresholds.%s out of range [0,1]: %v", name, v)
		}
	}

	bands := c.Levels
	for name, v := range map[string]float64{
		"critical": bands.Critical,
		"high":     bands.High,
		"medium":   bands.Medium,
		"low":      bands.Low,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("levels.%s out of range [0,1]: %v", name, v)
		}
	}
	if !(bands.Critical >= bands.High && bands.High >= bands.Medium && bands.Medium >= bands.Low) {
		return fmt.Errorf("levels must be ordered critical >= high >= medium >= low")
	}

	for i, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("models[%d]: name must not be empty", i)
		}
		if _, ok := validRoles[m.Role]; !ok {
			return fmt.Errorf("models[%d] %s: unknown role %q", i, m.Name, m.Role)
		}
		if m.Endpoint == "" {
			return fmt.Errorf("models[%d] %s: endpoint must not be empty", i, m.Name)
		}
	}

	return nil
}

// Clone returns a deep copy of the snapshot, used to build an updated
// snapshot from the current one without mutating it.
func (c *Config) Clone() *Config {
	out := *c
	out.Weights = make(map[string]float64, len(c.Weights))
	for k, v := range c.Weights {
		out.Weights[k] = v
	}
	out.Models = make([]ModelConfig, len(c.Models))
	copy(out.Models, c.Models)
	return &out
}
