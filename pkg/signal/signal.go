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

package signal

import "strings"

// Role identifies which classifier family produced a signal.
type Role string

const (
	// RoleCrisis is the zero-shot crisis/topic classifier
	RoleCrisis Role = "crisis"

	// RoleSentiment is the sentiment classifier
	RoleSentiment Role = "sentiment"

	// RoleIrony is the irony/sarcasm classifier
	RoleIrony Role = "irony"

	// RoleEmotion is the fine-grained emotion classifier
	RoleEmotion Role = "emotion"
)

// Record is one classifier's normalized output for one message.
// It is immutable once produced and owned by the request that produced it.
type Record struct {
	// ModelName is the serving name of the classifier
	ModelName string `json:"model_name"`

	// Role identifies the classifier family (crisis, sentiment, irony, emotion)
	Role Role `json:"role"`

	// TopLabel is the classifier's highest-scoring label
	TopLabel string `json:"top_label"`

	// CrisisSignal is the crisis-relevance score in [0,1]
	CrisisSignal float64 `json:"crisis_signal"`

	// RawConfidence is the classifier's own confidence in [0,1]
	RawConfidence float64 `json:"raw_confidence"`

	// Weight is the configured ensemble weight in [0,1]
	Weight float64 `json:"weight"`

	// LabelScores carries per-label scores where the classifier exposes them
	// (the emotion classifier in particular)
	LabelScores map[string]float64 `json:"label_scores,omitempty"`

	// LatencyMs is the wall-clock time the classifier call took
	LatencyMs int64 `json:"latency_ms"`

	// Succeeded reports whether the classifier returned within its deadline
	Succeeded bool `json:"succeeded"`
}

// Clamp01 clamps v to the [0,1] interval. Signal scores are always clamped
// on ingestion so downstream components never see out-of-range values.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Normalize returns a copy of r with all bounded fields clamped to [0,1].
func Normalize(r Record) Record {
	r.CrisisSignal = Clamp01(r.CrisisSignal)
	r.RawConfidence = Clamp01(r.RawConfidence)
	r.Weight = Clamp01(r.Weight)
	if len(r.LabelScores) > 0 {
		scores := make(map[string]float64, len(r.LabelScores))
		for label, score := range r.LabelScores {
			scores[label] = Clamp01(score)
		}
		r.LabelScores = scores
	}
	return r
}

// Succeeded filters records down to the subset that completed successfully.
func Succeeded(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Succeeded {
			out = append(out, r)
		}
	}
	return out
}

// ByRole returns the first succeeded record with the given role, or nil.
func ByRole(records []Record, role Role) *Record {
	for i := range records {
		if records[i].Role == role && records[i].Succeeded {
			return &records[i]
		}
	}
	return nil
}

// CrisisEmotions is the fixed set of emotions treated as crisis-consistent
// by the emotion/crisis mismatch rule and the primary-indicator derivation.
var CrisisEmotions = []string{
	"grief",
	"sadness",
	"fear",
	"nervousness",
	"remorse",
	"anger",
	"disappointment",
	"disgust",
}

// IsCrisisEmotion reports whether label is in the crisis emotion set.
func IsCrisisEmotion(label string) bool {
	normalized := strings.ToLower(strings.TrimSpace(label))
	for _, e := range CrisisEmotions {
		if normalized == e {
			return true
		}
	}
	return false
}

var positiveSentimentLabels = map[string]struct{}{
	"positive": {},
	"joy":      {},
	"love":     {},
	"optimism": {},
}

// IsPositiveLabel reports whether a sentiment label is positive-leaning.
func IsPositiveLabel(label string) bool {
	_, ok := positiveSentimentLabels[strings.ToLower(strings.TrimSpace(label))]
	return ok
}

var negativeSentimentLabels = map[string]struct{}{
	"negative": {},
	"sadness":  {},
	"anger":    {},
	"fear":     {},
}

// IsNegativeLabel reports whether a sentiment label is negative-leaning.
func IsNegativeLabel(label string) bool {
	_, ok := negativeSentimentLabels[strings.ToLower(strings.TrimSpace(label))]
	return ok
}

var ironicLabels = map[string]struct{}{
	"irony":     {},
	"ironic":    {},
	"sarcasm":   {},
	"sarcastic": {},
}

// IsIronicLabel reports whether an irony classifier label indicates irony.
func IsIronicLabel(label string) bool {
	_, ok := ironicLabels[strings.ToLower(strings.TrimSpace(label))]
	return ok
}

var crisisIndicatingLabels = map[string]struct{}{
	"crisis":            {},
	"suicidal ideation": {},
	"self-harm":         {},
	"severe distress":   {},
	"emergency":         {},
	"hopelessness":      {},
}

// IsCrisisLabel reports whether a zero-shot classifier label indicates crisis.
func IsCrisisLabel(label string) bool {
	_, ok := crisisIndicatingLabels[strings.ToLower(strings.TrimSpace(label))]
	return ok
}
