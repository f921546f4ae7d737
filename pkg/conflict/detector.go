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

package conflict

import (
	"fmt"

	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/signal"
)

// Type identifies a disagreement pattern between classifier signals.
type Type string

const (
	// TypeScoreDisagreement fires when the spread between the highest and
	// lowest crisis scores exceeds the configured gap.
	TypeScoreDisagreement Type = "score_disagreement"

	// TypeIronySentiment fires on the mask-of-distress pattern: a
	// positive-leaning sentiment label delivered ironically.
	TypeIronySentiment Type = "irony_sentiment_conflict"

	// TypeEmotionCrisisMismatch fires when the crisis classifier scores high
	// but no crisis-consistent emotion registers.
	TypeEmotionCrisisMismatch Type = "emotion_crisis_mismatch"

	// TypeLabelDisagreement fires when the crisis classifier's top label
	// indicates crisis while sentiment reads strongly positive.
	TypeLabelDisagreement Type = "label_disagreement"
)

// Severity ranks how alarming a conflict is.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Rank orders severities; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Conflict is one detected disagreement. Conflicts are independent findings;
// a single analysis may carry zero or many.
type Conflict struct {
	Type     Type                   `json:"type"`
	Severity Severity               `json:"severity"`
	Details  map[string]interface{} `json:"details"`
}

// Report is the detector's full output for one analysis.
type Report struct {
	HasConflicts    bool       `json:"has_conflicts"`
	Conflicts       []Conflict `json:"conflicts"`
	HighestSeverity Severity   `json:"highest_severity,omitempty"`
	RequiresReview  bool       `json:"requires_review"`
}

// Thresholds are the configurable detection thresholds.
type Thresholds struct {
	// ScoreGap is the max-min spread that triggers score_disagreement.
	ScoreGap float64

	// IronyConfidence is the minimum irony classifier confidence for the
	// irony/sentiment rule.
	IronyConfidence float64

	// HighCrisisScore is the crisis score above which the emotion mismatch
	// rule applies.
	HighCrisisScore float64

	// EmotionScore is the per-emotion score a crisis emotion must reach to
	// count as present.
	EmotionScore float64

	// PositiveSentiment is the crisis-signal score below which sentiment is
	// treated as strongly positive.
	PositiveSentiment float64
}

// Detect inspects the signals for disagreement patterns. It is a pure
// function of signal content and runs on every analysis, independent of
// which consensus algorithm is active.
func Detect(signals []signal.Record, th Thresholds) *Report {
	report := &Report{}

	if c := detectScoreDisagreement(signals, th); c != nil {
		report.Conflicts = append(report.Conflicts, *c)
	}
	if c := detectIronySentiment(signals, th); c != nil {
		report.Conflicts = append(report.Conflicts, *c)
	}
	if c := detectEmotionCrisisMismatch(signals, th); c != nil {
		report.Conflicts = append(report.Conflicts, *c)
	}
	if c := detectLabelDisagreement(signals, th); c != nil {
		report.Conflicts = append(report.Conflicts, *c)
	}

	report.HasConflicts = len(report.Conflicts) > 0
	for _, c := range report.Conflicts {
		if c.Severity.Rank() > report.HighestSeverity.Rank() {
			report.HighestSeverity = c.Severity
		}
	}
	report.RequiresReview = report.HighestSeverity == SeverityHigh

	return report
}

func detectScoreDisagreement(signals []signal.Record, th Thresholds) *Conflict {
	succeeded := signal.Succeeded(signals)
	if len(succeeded) < 2 {
		return nil
	}

	minScore, maxScore := succeeded[0].CrisisSignal, succeeded[0].CrisisSignal
	minModel, maxModel := succeeded[0].ModelName, succeeded[0].ModelName
	for _, s := range succeeded[1:] {
		if s.CrisisSignal < minScore {
			minScore = s.CrisisSignal
			minModel = s.ModelName
		}
		if s.CrisisSignal > maxScore {
			maxScore = s.CrisisSignal
			maxModel = s.ModelName
		}
	}

	gap := maxScore - minScore
	if gap <= th.ScoreGap {
		return nil
	}

	return &Conflict{
		Type:     TypeScoreDisagreement,
		Severity: SeverityHigh,
		Details: map[string]interface{}{
			"gap":       gap,
			"max_score": maxScore,
			"max_model": maxModel,
			"min_score": minScore,
			"min_model": minModel,
		},
	}
}

func detectIronySentiment(signals []signal.Record, th Thresholds) *Conflict {
	sentiment := signal.ByRole(signals, signal.RoleSentiment)
	irony := signal.ByRole(signals, signal.RoleIrony)
	if sentiment == nil || irony == nil {
		return nil
	}

	if !signal.IsPositiveLabel(sentiment.TopLabel) {
		return nil
	}
	if !signal.IsIronicLabel(irony.TopLabel) || irony.RawConfidence <= th.IronyConfidence {
		return nil
	}

	return &Conflict{
		Type:     TypeIronySentiment,
		Severity: SeverityMedium,
		Details: map[string]interface{}{
			"sentiment_label":  sentiment.TopLabel,
			"irony_label":      irony.TopLabel,
			"irony_confidence": irony.RawConfidence,
		},
	}
}

func detectEmotionCrisisMismatch(signals []signal.Record, th Thresholds) *Conflict {
	crisis := signal.ByRole(signals, signal.RoleCrisis)
	emotion := signal.ByRole(signals, signal.RoleEmotion)
	if crisis == nil || emotion == nil {
		return nil
	}

	if crisis.CrisisSignal <= th.HighCrisisScore {
		return nil
	}

	for label, score := range emotion.LabelScores {
		if signal.IsCrisisEmotion(label) && score > th.EmotionScore {
			return nil
		}
	}

	return &Conflict{
		Type:     TypeEmotionCrisisMismatch,
		Severity: SeverityMedium,
		Details: map[string]interface{}{
			"crisis_score":      crisis.CrisisSignal,
			"emotion_top_label": emotion.TopLabel,
		},
	}
}

func detectLabelDisagreement(signals []signal.Record, th Thresholds) *Conflict {
	crisis := signal.ByRole(signals, signal.RoleCrisis)
	sentiment := signal.ByRole(signals, signal.RoleSentiment)
	if crisis == nil || sentiment == nil {
		return nil
	}

	if !signal.IsCrisisLabel(crisis.TopLabel) {
		return nil
	}
	if sentiment.CrisisSignal >= th.PositiveSentiment {
		return nil
	}

	return &Conflict{
		Type:     TypeLabelDisagreement,
		Severity: SeverityMedium,
		Details: map[string]interface{}{
			"crisis_label":    crisis.TopLabel,
			"sentiment_score": sentiment.CrisisSignal,
		},
	}
}

// Summary renders the report's conflicts into a short human-readable line,
// used for review alerts. It never includes message text.
func (r *Report) Summary() string {
	if !r.HasConflicts {
		return "no conflicts detected"
	}
	out := ""
	for i, c := range r.Conflicts {
		if i > 0 {
			out += "; "
		}
		out += fmt.Sprintf("%s (%s)", c.Type, c.Severity)
	}
	return out
}
