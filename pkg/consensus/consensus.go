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

package consensus

import (
	"fmt"
	"math"

	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/signal"
)

// Algorithm selects how the per-model signals are combined into one score.
type Algorithm string

const (
	// AlgorithmWeightedVoting combines scores by configured model weight.
	// Failed signals are excluded and the remaining weights renormalize.
	AlgorithmWeightedVoting Algorithm = "weighted_voting"

	// AlgorithmMajorityVoting has each signal cast a binary crisis vote.
	AlgorithmMajorityVoting Algorithm = "majority_voting"

	// AlgorithmUnanimous marks crisis only when every signal clears the
	// unanimous threshold. Most conservative against false positives,
	// least conservative against false negatives.
	AlgorithmUnanimous Algorithm = "unanimous"

	// AlgorithmConflictAware averages scores and reports significant
	// disagreement when their variance exceeds the disagreement threshold.
	AlgorithmConflictAware Algorithm = "conflict_aware"
)

// ParseAlgorithm validates an algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AlgorithmWeightedVoting, AlgorithmMajorityVoting, AlgorithmUnanimous, AlgorithmConflictAware:
		return Algorithm(s), nil
	default:
		return "", fmt.Errorf("unknown consensus algorithm %q", s)
	}
}

// AgreementLevel classifies how closely the signals agree.
type AgreementLevel string

const (
	AgreementStrong       AgreementLevel = "strong"
	AgreementModerate     AgreementLevel = "moderate"
	AgreementWeak         AgreementLevel = "weak"
	AgreementDisagreement AgreementLevel = "significant_disagreement"
)

// Params carries the configured weights and thresholds the algorithms read.
type Params struct {
	CrisisThreshold       float64
	MajorityThreshold     float64
	UnanimousThreshold    float64
	DisagreementThreshold float64
}

// Result is the output of one consensus computation. It is a function solely
// of the signal records passed in plus the configured thresholds.
type Result struct {
	Algorithm      Algorithm          `json:"algorithm"`
	CrisisScore    float64            `json:"crisis_score"`
	Confidence     float64            `json:"confidence"`
	IsCrisis       bool               `json:"is_crisis"`
	AgreementLevel AgreementLevel     `json:"agreement_level"`
	PerModelScores map[string]float64 `json:"per_model_scores"`
	VoteBreakdown  map[string]bool    `json:"vote_breakdown,omitempty"`
}

// weightSumTolerance mirrors the configuration-level tolerance: the weights
// of all provided signals (succeeded or not) must sum to ~1.0.
const weightSumTolerance = 0.01

// Compute combines the signals into a single consensus result. It fails only
// on configuration errors (unknown algorithm, weights that do not sum within
// tolerance) — never on signal content, which is clamped on ingestion.
func Compute(signals []signal.Record, algorithm Algorithm, p Params) (*Result, error) {
	if _, err := ParseAlgorithm(string(algorithm)); err != nil {
		return nil, err
	}

	if len(signals) > 0 {
		sum := 0.0
		for _, s := range signals {
			sum += s.Weight
		}
		if math.Abs(sum-1.0) > weightSumTolerance {
			return nil, fmt.Errorf("signal weights must sum to 1.0 within %.2f, got %.4f", weightSumTolerance, sum)
		}
	}

	succeeded := signal.Succeeded(signals)
	if len(succeeded) == 0 {
		// Degenerate input. The orchestrator short-circuits before reaching
		// here; returned for completeness with zero score and confidence.
		return &Result{
			Algorithm:      algorithm,
			AgreementLevel: AgreementDisagreement,
			PerModelScores: map[string]float64{},
		}, nil
	}

	scores := make([]float64, 0, len(succeeded))
	perModel := make(map[string]float64, len(succeeded))
	for _, s := range succeeded {
		scores = append(scores, s.CrisisSignal)
		perModel[s.ModelName] = s.CrisisSignal
	}

	result := &Result{
		Algorithm:      algorithm,
		PerModelScores: perModel,
		AgreementLevel: agreementFor(variance(scores)),
	}

	switch algorithm {
	case AlgorithmWeightedVoting:
		computeWeighted(succeeded, p, result)
	case AlgorithmMajorityVoting:
		computeMajority(succeeded, p, result)
	case AlgorithmUnanimous:
		computeUnanimous(scores, succeeded, p, result)
	case AlgorithmConflictAware:
		computeConflictAware(scores, succeeded, p, result)
	}

	return result, nil
}

// computeWeighted implements weighted_voting: score and confidence are the
// weighted means over succeeded signals, with weights renormalized so the
// engine keeps working in degraded mode.
func computeWeighted(succeeded []signal.Record, p Params, result *Result) {
	weightSum := 0.0
	for _, s := range succeeded {
		weightSum += s.Weight
	}
	if weightSum == 0 {
		// All-zero weights degrade to a plain mean.
		for i := range succeeded {
			succeeded[i].Weight = 1
		}
		weightSum = float64(len(succeeded))
	}

	score := 0.0
	confidence := 0.0
	for _, s := range succeeded {
		score += s.CrisisSignal * s.Weight
		confidence += s.RawConfidence * s.Weight
	}
	result.CrisisScore = score / weightSum
	result.Confidence = confidence / weightSum
	result.IsCrisis = result.CrisisScore >= p.CrisisThreshold
}

// computeMajority implements majority_voting: each signal casts a binary
// vote; the vote fraction is both the score and the confidence.
func computeMajority(succeeded []signal.Record, p Params, result *Result) {
	votes := make(map[string]bool, len(succeeded))
	votesFor := 0
	for _, s := range succeeded {
		vote := s.CrisisSignal > p.CrisisThreshold
		votes[s.ModelName] = vote
		if vote {
			votesFor++
		}
	}
	fraction := float64(votesFor) / float64(len(succeeded))
	result.CrisisScore = fraction
	result.Confidence = fraction
	result.IsCrisis = fraction > p.MajorityThreshold
	result.VoteBreakdown = votes
}

// computeUnanimous implements unanimous: crisis only when every signal
// clears the unanimous threshold; otherwise the score collapses to zero.
func computeUnanimous(scores []float64, succeeded []signal.Record, p Params, result *Result) {
	minScore := scores[0]
	for _, s := range scores[1:] {
		if s < minScore {
			minScore = s
		}
	}
	result.Confidence = meanConfidence(succeeded)
	if minScore >= p.UnanimousThreshold {
		result.CrisisScore = mean(scores)
		result.IsCrisis = true
		return
	}
	result.CrisisScore = 0
	result.IsCrisis = false
}

// computeConflictAware implements conflict_aware: a plain mean, with the
// agreement level forced to significant_disagreement when score variance
// exceeds the disagreement threshold. The conflict detector runs on every
// analysis regardless; this algorithm only surfaces the variance signal in
// the consensus result itself.
func computeConflictAware(scores []float64, succeeded []signal.Record, p Params, result *Result) {
	result.CrisisScore = mean(scores)
	result.Confidence = meanConfidence(succeeded)
	result.IsCrisis = result.CrisisScore >= p.CrisisThreshold
	if variance(scores) > p.DisagreementThreshold {
		result.AgreementLevel = AgreementDisagreement
	}
}

// agreementFor bands population variance into an agreement level.
func agreementFor(v float64) AgreementLevel {
	switch {
	case v < 0.05:
		return AgreementStrong
	case v < 0.10:
		return AgreementModerate
	case v < 0.15:
		return AgreementWeak
	default:
		return AgreementDisagreement
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// variance is the population variance of values.
func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}

func meanConfidence(records []signal.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range records {
		sum += r.RawConfidence
	}
	return sum / float64(len(records))
}
