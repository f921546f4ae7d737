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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/signal"
)

func defaultThresholds() Thresholds {
	return Thresholds{
		ScoreGap:          0.40,
		IronyConfidence:   0.65,
		HighCrisisScore:   0.70,
		EmotionScore:      0.30,
		PositiveSentiment: 0.20,
	}
}

func TestDetect_ScoreDisagreement(t *testing.T) {
	tests := []struct {
		name     string
		scores   []float64
		expected bool
	}{
		{name: "wide spread triggers", scores: []float64{0.95, 0.10}, expected: true},
		{name: "gap exactly at threshold does not trigger", scores: []float64{0.60, 0.20}, expected: false},
		{name: "tight cluster does not trigger", scores: []float64{0.55, 0.50, 0.60}, expected: false},
		{name: "single signal cannot disagree", scores: []float64{0.95}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := make([]signal.Record, len(tt.scores))
			for i, s := range tt.scores {
				records[i] = signal.Record{ModelName: "m", CrisisSignal: s, Succeeded: true}
			}

			report := Detect(records, defaultThresholds())

			if tt.expected {
				require.True(t, report.HasConflicts)
				assert.Equal(t, TypeScoreDisagreement, report.Conflicts[0].Type)
				assert.Equal(t, SeverityHigh, report.Conflicts[0].Severity)
				assert.True(t, report.RequiresReview, "high severity must require review")
			} else {
				for _, c := range report.Conflicts {
					assert.NotEqual(t, TypeScoreDisagreement, c.Type)
				}
			}
		})
	}
}

// TestDetect_IronySentiment covers the mask-of-distress pattern: "I'm just
// great" said sarcastically.
func TestDetect_IronySentiment(t *testing.T) {
	records := []signal.Record{
		{ModelName: "roberta-sentiment", Role: signal.RoleSentiment, TopLabel: "positive", CrisisSignal: 0.10, Succeeded: true},
		{ModelName: "roberta-irony", Role: signal.RoleIrony, TopLabel: "irony", CrisisSignal: 0.40, RawConfidence: 0.80, Succeeded: true},
	}

	report := Detect(records, defaultThresholds())

	require.True(t, report.HasConflicts)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, TypeIronySentiment, report.Conflicts[0].Type)
	assert.Equal(t, SeverityMedium, report.Conflicts[0].Severity)
	assert.False(t, report.RequiresReview, "medium severity alone does not require review")
}

func TestDetect_IronySentiment_BelowConfidence(t *testing.T) {
	records := []signal.Record{
		{Role: signal.RoleSentiment, TopLabel: "positive", CrisisSignal: 0.10, Succeeded: true},
		{Role: signal.RoleIrony, TopLabel: "irony", RawConfidence: 0.50, Succeeded: true},
	}

	report := Detect(records, defaultThresholds())
	assert.False(t, report.HasConflicts)
}

func TestDetect_EmotionCrisisMismatch(t *testing.T) {
	tests := []struct {
		name          string
		crisisScore   float64
		emotionScores map[string]float64
		expected      bool
	}{
		{
			name:          "high crisis score with no crisis emotions",
			crisisScore:   0.85,
			emotionScores: map[string]float64{"joy": 0.7, "amusement": 0.5},
			expected:      true,
		},
		{
			name:          "high crisis score with matching sadness",
			crisisScore:   0.85,
			emotionScores: map[string]float64{"sadness": 0.6},
			expected:      false,
		},
		{
			name:          "crisis score below gate",
			crisisScore:   0.60,
			emotionScores: map[string]float64{"joy": 0.9},
			expected:      false,
		},
		{
			name:          "crisis emotion below its own threshold",
			crisisScore:   0.85,
			emotionScores: map[string]float64{"fear": 0.1},
			expected:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := []signal.Record{
				{Role: signal.RoleCrisis, TopLabel: "crisis", CrisisSignal: tt.crisisScore, Succeeded: true},
				{Role: signal.RoleEmotion, TopLabel: "joy", LabelScores: tt.emotionScores, CrisisSignal: 0.3, Succeeded: true},
			}

			report := Detect(records, defaultThresholds())

			found := false
			for _, c := range report.Conflicts {
				if c.Type == TypeEmotionCrisisMismatch {
					found = true
					assert.Equal(t, SeverityMedium, c.Severity)
				}
			}
			assert.Equal(t, tt.expected, found)
		})
	}
}

func TestDetect_LabelDisagreement(t *testing.T) {
	records := []signal.Record{
		{Role: signal.RoleCrisis, TopLabel: "crisis", CrisisSignal: 0.55, Succeeded: true},
		{Role: signal.RoleSentiment, TopLabel: "positive", CrisisSignal: 0.10, Succeeded: true},
	}

	report := Detect(records, defaultThresholds())

	found := false
	for _, c := range report.Conflicts {
		if c.Type == TypeLabelDisagreement {
			found = true
			assert.Equal(t, SeverityMedium, c.Severity)
		}
	}
	assert.True(t, found)
}

func TestDetect_NoConflicts(t *testing.T) {
	records := []signal.Record{
		{Role: signal.RoleCrisis, TopLabel: "neutral", CrisisSignal: 0.30, Succeeded: true},
		{Role: signal.RoleSentiment, TopLabel: "neutral", CrisisSignal: 0.35, Succeeded: true},
	}

	report := Detect(records, defaultThresholds())

	assert.False(t, report.HasConflicts)
	assert.Empty(t, report.Conflicts)
	assert.False(t, report.RequiresReview)
	assert.Equal(t, Severity(""), report.HighestSeverity)
}

func TestDetect_MultipleIndependentConflicts(t *testing.T) {
	records := []signal.Record{
		{Role: signal.RoleCrisis, TopLabel: "crisis", CrisisSignal: 0.90, Succeeded: true},
		{Role: signal.RoleSentiment, TopLabel: "positive", CrisisSignal: 0.10, Succeeded: true},
		{Role: signal.RoleIrony, TopLabel: "irony", CrisisSignal: 0.40, RawConfidence: 0.85, Succeeded: true},
		{Role: signal.RoleEmotion, TopLabel: "joy", LabelScores: map[string]float64{"joy": 0.8}, CrisisSignal: 0.20, Succeeded: true},
	}

	report := Detect(records, defaultThresholds())

	require.True(t, report.HasConflicts)
	// score gap 0.8, irony+positive, high crisis without crisis emotion,
	// crisis label against positive sentiment: all four fire independently.
	assert.Len(t, report.Conflicts, 4)
	assert.Equal(t, SeverityHigh, report.HighestSeverity)
	assert.True(t, report.RequiresReview)
}

func TestReportSummary(t *testing.T) {
	report := &Report{
		HasConflicts: true,
		Conflicts: []Conflict{
			{Type: TypeScoreDisagreement, Severity: SeverityHigh},
			{Type: TypeIronySentiment, Severity: SeverityMedium},
		},
	}

	summary := report.Summary()
	assert.Contains(t, summary, "score_disagreement (high)")
	assert.Contains(t, summary, "irony_sentiment_conflict (medium)")
}
