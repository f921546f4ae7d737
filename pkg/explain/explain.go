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

// Package explain renders aggregated results into human-readable
// explanations. Rendering is deterministic template substitution; it makes
// no model calls and performs no I/O.
package explain

import (
	"fmt"
	"strings"

	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/aggregation"
)

// Verbosity selects how much detail an explanation carries.
type Verbosity string

const (
	// VerbosityMinimal: crisis level, score, one-sentence summary.
	VerbosityMinimal Verbosity = "minimal"

	// VerbosityStandard adds key factors and the recommended action.
	VerbosityStandard Verbosity = "standard"

	// VerbosityDetailed adds per-model contributions plus confidence and
	// conflict narratives.
	VerbosityDetailed Verbosity = "detailed"
)

// ParseVerbosity validates a verbosity name.
func ParseVerbosity(s string) (Verbosity, error) {
	switch Verbosity(s) {
	case VerbosityMinimal, VerbosityStandard, VerbosityDetailed:
		return Verbosity(s), nil
	default:
		return "", fmt.Errorf("unknown verbosity %q", s)
	}
}

// ModelContribution is one model's share of the final score.
type ModelContribution struct {
	Model  string  `json:"model"`
	Label  string  `json:"label,omitempty"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
	Share  float64 `json:"share"`
}

// RecommendedAction is the action lookup for one intervention priority.
type RecommendedAction struct {
	Action     string `json:"action"`
	Escalation string `json:"escalation"`
	Rationale  string `json:"rationale"`
}

// Explanation is the rendered, human-readable account of a decision.
type Explanation struct {
	Verbosity          Verbosity           `json:"verbosity"`
	DecisionSummary    string              `json:"decision_summary"`
	KeyFactors         []string            `json:"key_factors,omitempty"`
	ModelContributions []ModelContribution `json:"model_contributions,omitempty"`
	RecommendedAction  *RecommendedAction  `json:"recommended_action,omitempty"`
	ConfidenceSummary  string              `json:"confidence_summary,omitempty"`
	ConflictSummary    string              `json:"conflict_summary,omitempty"`
	PlainText          string              `json:"plain_text"`
}

// Generate renders the aggregated result at the requested verbosity.
func Generate(result *aggregation.Result, verbosity Verbosity) (*Explanation, error) {
	if _, err := ParseVerbosity(string(verbosity)); err != nil {
		return nil, err
	}

	out := &Explanation{
		Verbosity:       verbosity,
		DecisionSummary: renderSummary(result),
	}

	if verbosity == VerbosityStandard || verbosity == VerbosityDetailed {
		out.KeyFactors = append([]string(nil), result.PrimaryIndicators...)
		action := actionTable[result.InterventionPriority]
		out.RecommendedAction = &action
	}

	if verbosity == VerbosityDetailed {
		out.ModelContributions = contributions(result)
		out.ConfidenceSummary = confidenceNarrative(result.Confidence)
		if result.Conflicts != nil && result.Conflicts.HasConflicts {
			out.ConflictSummary = conflictNarrative(result)
		}
	}

	out.PlainText = renderPlainText(out)
	return out, nil
}

func renderSummary(result *aggregation.Result) string {
	template, ok := summaryTemplates[result.CrisisLevel]
	if !ok {
		template = summaryTemplates[aggregation.LevelUnknown]
	}
	replacer := strings.NewReplacer(
		"{score}", fmt.Sprintf("%.2f", result.CrisisScore),
		"{confidence}", fmt.Sprintf("%.0f", result.Confidence*100),
		"{level}", string(result.CrisisLevel),
	)
	return replacer.Replace(template)
}

// contributions computes each model's share of the final score from the
// weighted products recorded in the model summaries.
func contributions(result *aggregation.Result) []ModelContribution {
	total := 0.0
	for _, m := range result.ModelSummaries {
		if m.Succeeded {
			total += m.CrisisSignal * m.Weight
		}
	}

	out := make([]ModelContribution, 0, len(result.ModelSummaries))
	for _, m := range result.ModelSummaries {
		if !m.Succeeded {
			continue
		}
		share := 0.0
		if total > 0 {
			share = (m.CrisisSignal * m.Weight) / total
		}
		out = append(out, ModelContribution{
			Model:  m.ModelName,
			Label:  m.TopLabel,
			Score:  m.CrisisSignal,
			Weight: m.Weight,
			Share:  share,
		})
	}
	return out
}

func conflictNarrative(result *aggregation.Result) string {
	parts := make([]string, 0, len(result.Conflicts.Conflicts))
	for _, c := range result.Conflicts.Conflicts {
		parts = append(parts, fmt.Sprintf("%s (%s severity)", strings.ReplaceAll(string(c.Type), "_", " "), c.Severity))
	}
	return fmt.Sprintf("The classifiers disagreed: %s. The resolution strategy adjusted the score from %.2f to %.2f.",
		strings.Join(parts, "; "),
		result.Resolution.OriginalScore,
		result.Resolution.ResolvedScore,
	)
}

func renderPlainText(e *Explanation) string {
	var b strings.Builder
	b.WriteString(e.DecisionSummary)

	if len(e.KeyFactors) > 0 {
		b.WriteString(" Key factors: ")
		b.WriteString(strings.Join(e.KeyFactors, ", "))
		b.WriteString(".")
	}
	if e.RecommendedAction != nil {
		b.WriteString(" Recommended action: ")
		b.WriteString(e.RecommendedAction.Action)
	}
	if e.ConfidenceSummary != "" {
		b.WriteString(" ")
		b.WriteString(e.ConfidenceSummary)
	}
	if e.ConflictSummary != "" {
		b.WriteString(" ")
		b.WriteString(e.ConflictSummary)
	}
	return b.String()
}
