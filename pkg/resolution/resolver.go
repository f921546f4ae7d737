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

package resolution

import (
	"fmt"

	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/conflict"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/consensus"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/signal"
)

// Strategy is the policy for adjusting the consensus score when the
// detector found conflicts.
type Strategy string

const (
	// StrategyConservative never lowers the score below the most alarming
	// single signal. In a life-safety system false negatives are
	// categorically worse than false positives.
	StrategyConservative Strategy = "conservative"

	// StrategyOptimistic is the symmetric opposite, for deployments tuned
	// to reduce alert fatigue at accepted risk.
	StrategyOptimistic Strategy = "optimistic"

	// StrategyMean replaces the score with the plain mean of the signals,
	// ignoring the consensus algorithm's own weighting.
	StrategyMean Strategy = "mean"

	// StrategyReviewFlag resolves conservatively and unconditionally flags
	// the analysis for human review.
	StrategyReviewFlag Strategy = "review_flag"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyConservative, StrategyOptimistic, StrategyMean, StrategyReviewFlag:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown resolution strategy %q", s)
	}
}

// Outcome records how (and whether) the consensus score was adjusted.
type Outcome struct {
	Strategy         Strategy `json:"strategy_used"`
	OriginalScore    float64  `json:"original_score"`
	ResolvedScore    float64  `json:"resolved_score"`
	FlaggedForReview bool     `json:"flagged_for_review"`
}

// Resolve applies the strategy to the consensus score. When the report
// carries no conflicts it is a pure passthrough: the score is unchanged and
// nothing is flagged.
func Resolve(signals []signal.Record, cons *consensus.Result, report *conflict.Report, strategy Strategy) (*Outcome, error) {
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Strategy:      strategy,
		OriginalScore: cons.CrisisScore,
		ResolvedScore: cons.CrisisScore,
	}

	if !report.HasConflicts {
		return outcome, nil
	}

	scores := succeededScores(signals)

	switch strategy {
	case StrategyConservative:
		outcome.ResolvedScore = maxOf(cons.CrisisScore, scores)
	case StrategyOptimistic:
		outcome.ResolvedScore = minOf(cons.CrisisScore, scores)
	case StrategyMean:
		outcome.ResolvedScore = meanOf(scores, cons.CrisisScore)
	case StrategyReviewFlag:
		outcome.ResolvedScore = maxOf(cons.CrisisScore, scores)
		outcome.FlaggedForReview = true
	}

	if report.RequiresReview {
		outcome.FlaggedForReview = true
	}

	return outcome, nil
}

func succeededScores(signals []signal.Record) []float64 {
	succeeded := signal.Succeeded(signals)
	scores := make([]float64, 0, len(succeeded))
	for _, s := range succeeded {
		scores = append(scores, s.CrisisSignal)
	}
	return scores
}

func maxOf(base float64, scores []float64) float64 {
	out := base
	for _, s := range scores {
		if s > out {
			out = s
		}
	}
	return out
}

func minOf(base float64, scores []float64) float64 {
	out := base
	for _, s := range scores {
		if s < out {
			out = s
		}
	}
	return out
}

func meanOf(scores []float64, fallback float64) float64 {
	if len(scores) == 0 {
		return fallback
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
