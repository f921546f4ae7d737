/*
Copyright 2025 The Alphabet Cartel.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package aggregation

import (
	"sort"

	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/conflict"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/consensus"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/resolution"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/signal"
)

// SchemaVersion identifies the rich result schema. The legacy projection
// (ToLegacyMap) predates it.
const SchemaVersion = "2"

// Level is the discrete crisis severity band derived from the final score.
type Level string

const (
	LevelSafe     Level = "SAFE"
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"

	// LevelUnknown is reported when zero model signals were available.
	// The engine never silently reports SAFE in that case.
	LevelUnknown Level = "UNKNOWN"
)

// rank orders levels for comparisons; UNKNOWN sits outside the scale.
func (l Level) rank() int {
	switch l {
	case LevelSafe:
		return 0
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	case LevelCritical:
		return 4
	default:
		return -1
	}
}

// Priority is the intervention priority derived from the crisis level.
type Priority string

const (
	PriorityNone      Priority = "NONE"
	PriorityLow       Priority = "LOW"
	PriorityStandard  Priority = "STANDARD"
	PriorityHigh      Priority = "HIGH"
	PriorityImmediate Priority = "IMMEDIATE"
)

// Bands carries the configured score bands and related thresholds.
type Bands struct {
	Critical float64
	High     float64
	Medium   float64
	Low      float64

	// Intervention is independent from the level bands so it can be tuned
	// separately.
	Intervention float64

	// Escalation forces IMMEDIATE priority when any single succeeded signal
	// reaches it, regardless of the consensus level.
	Escalation float64

	// IndicatorLabel is the score a label must reach to appear in the
	// primary indicators.
	IndicatorLabel float64

	// EmotionScore is the per-emotion score threshold for indicator
	// derivation.
	EmotionScore float64
}

// ModelSummary is the per-model slice of an aggregated result.
type ModelSummary struct {
	ModelName    string  `json:"model_name"`
	Role         string  `json:"role"`
	TopLabel     string  `json:"top_label,omitempty"`
	CrisisSignal float64 `json:"crisis_signal"`
	Confidence   float64 `json:"confidence"`
	Weight       float64 `json:"weight"`
	LatencyMs    int64   `json:"latency_ms"`
	Succeeded    bool    `json:"succeeded"`
}

// Performance is the timing and degradation metadata of one analysis.
type Performance struct {
	TotalLatencyMs   int64            `json:"total_latency_ms"`
	ModelLatenciesMs map[string]int64 `json:"model_latencies_ms,omitempty"`
	IsDegraded       bool             `json:"is_degraded"`
	ModelsQueried    int              `json:"models_queried"`
	ModelsSucceeded  int              `json:"models_succeeded"`
}

// Result is the terminal, immutable value of one analysis. It is created
// once per call, never mutated after construction, and safe to serialize
// directly to the API response or to the legacy projection.
type Result struct {
	SchemaVersion string `json:"schema_version"`
	MessageID     string `json:"message_id,omitempty"`

	CrisisScore          float64  `json:"crisis_score"`
	CrisisLevel          Level    `json:"crisis_level"`
	Confidence           float64  `json:"confidence"`
	IsCrisis             bool     `json:"is_crisis"`
	RequiresIntervention bool     `json:"requires_intervention"`
	InterventionPriority Priority `json:"intervention_priority"`
	RequiresReview       bool     `json:"requires_review"`

	Consensus  *consensus.Result   `json:"consensus,omitempty"`
	Conflicts  *conflict.Report    `json:"conflicts,omitempty"`
	Resolution *resolution.Outcome `json:"resolution,omitempty"`

	PrimaryIndicators []string       `json:"primary_indicators,omitempty"`
	ModelSummaries    []ModelSummary `json:"model_summaries,omitempty"`
	Performance       Performance    `json:"performance"`
}

// Aggregate packages consensus, conflict and resolution output into one
// result and derives crisis level and intervention priority. It is pure and
// deterministic given its inputs.
func Aggregate(
	signals []signal.Record,
	cons *consensus.Result,
	report *conflict.Report,
	outcome *resolution.Outcome,
	perf Performance,
	bands Bands,
) *Result {
	score := outcome.ResolvedScore
	level := levelFor(score, bands)

	result := &Result{
		SchemaVersion:        SchemaVersion,
		CrisisScore:          score,
		CrisisLevel:          level,
		Confidence:           cons.Confidence,
		IsCrisis:             level.rank() >= LevelMedium.rank(),
		RequiresIntervention: score >= bands.Intervention,
		InterventionPriority: priorityFor(level, signals, bands),
		RequiresReview:       report.RequiresReview || outcome.FlaggedForReview,
		Consensus:            cons,
		Conflicts:            report,
		Resolution:           outcome,
		PrimaryIndicators:    primaryIndicators(signals, bands),
		ModelSummaries:       summarize(signals),
		Performance:          perf,
	}

	return result
}

// Unknown builds the total-failure result: zero model signals were
// available, so the level is UNKNOWN and review is required rather than
// silently reporting SAFE.
func Unknown(perf Performance) *Result {
	perf.IsDegraded = true
	return &Result{
		SchemaVersion:        SchemaVersion,
		CrisisLevel:          LevelUnknown,
		InterventionPriority: PriorityNone,
		RequiresReview:       true,
		Conflicts:            &conflict.Report{RequiresReview: true},
		Performance:          perf,
	}
}

func levelFor(score float64, bands Bands) Level {
	switch {
	case score >= bands.Critical:
		return LevelCritical
	case score >= bands.High:
		return LevelHigh
	case score >= bands.Medium:
		return LevelMedium
	case score >= bands.Low:
		return LevelLow
	default:
		return LevelSafe
	}
}

func priorityFor(level Level, signals []signal.Record, bands Bands) Priority {
	// Escalation override: a single near-certain signal forces IMMEDIATE
	// even when the consensus level sits below CRITICAL.
	for _, s := range signal.Succeeded(signals) {
		if s.CrisisSignal >= bands.Escalation {
			return PriorityImmediate
		}
	}

	switch level {
	case LevelCritical:
		return PriorityImmediate
	case LevelHigh:
		return PriorityHigh
	case LevelMedium:
		return PriorityStandard
	case LevelLow:
		return PriorityLow
	default:
		return PriorityNone
	}
}

// primaryIndicators derives the display/explanation indicator list: crisis
// labels and crisis emotions above their thresholds, plus sentiment and
// irony markers. Order is deterministic.
func primaryIndicators(signals []signal.Record, bands Bands) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(indicator string) {
		if _, ok := seen[indicator]; ok {
			return
		}
		seen[indicator] = struct{}{}
		out = append(out, indicator)
	}

	if crisis := signal.ByRole(signals, signal.RoleCrisis); crisis != nil {
		if signal.IsCrisisLabel(crisis.TopLabel) && crisis.CrisisSignal > bands.IndicatorLabel {
			add(crisis.TopLabel)
		}
		for _, label := range sortedLabels(crisis.LabelScores) {
			if signal.IsCrisisLabel(label) && crisis.LabelScores[label] > bands.IndicatorLabel {
				add(label)
			}
		}
	}

	if emotion := signal.ByRole(signals, signal.RoleEmotion); emotion != nil {
		for _, label := range signal.CrisisEmotions {
			if emotion.LabelScores[label] > bands.EmotionScore {
				add(label)
			}
		}
	}

	if sentiment := signal.ByRole(signals, signal.RoleSentiment); sentiment != nil {
		if signal.IsNegativeLabel(sentiment.TopLabel) {
			add("negative_sentiment")
		}
	}

	if irony := signal.ByRole(signals, signal.RoleIrony); irony != nil {
		if signal.IsIronicLabel(irony.TopLabel) {
			add("sarcastic_expression")
		}
	}

	return out
}

func sortedLabels(scores map[string]float64) []string {
	labels := make([]string, 0, len(scores))
	for label := range scores {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func summarize(signals []signal.Record) []ModelSummary {
	out := make([]ModelSummary, 0, len(signals))
	for _, s := range signals {
		out = append(out, ModelSummary{
			ModelName:    s.ModelName,
			Role:         string(s.Role),
			TopLabel:     s.TopLabel,
			CrisisSignal: s.CrisisSignal,
			Confidence:   s.RawConfidence,
			Weight:       s.Weight,
			LatencyMs:    s.LatencyMs,
			Succeeded:    s.Succeeded,
		})
	}
	return out
}

// ToLegacyMap is the backward-compatible flattened projection for callers
// that predate the rich schema. It is a pure projection of the result,
// never a separate code path.
func (r *Result) ToLegacyMap() map[string]interface{} {
	return map[string]interface{}{
		"crisis_detected":       r.IsCrisis,
		"severity":              toLowerLevel(r.CrisisLevel),
		"crisis_score":          r.CrisisScore,
		"confidence":            r.Confidence,
		"requires_intervention": r.RequiresIntervention,
	}
}

func toLowerLevel(l Level) string {
	switch l {
	case LevelSafe:
		return "safe"
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}
