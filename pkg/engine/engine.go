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

// Package engine orchestrates the ensemble decision pipeline: fan-out to the
// classifier collaborators, consensus, conflict detection, resolution,
// aggregation and explanation.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/aggregation"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/config"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/conflict"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/consensus"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/explain"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/observability/logging"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/observability/metrics"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/resolution"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/signal"
)

// Provider is one external classifier the orchestrator fans out to. The
// implementation owns its own retry and circuit-breaking; the engine only
// requires it to return within the context deadline or fail explicitly.
type Provider interface {
	Name() string
	Role() signal.Role
	Timeout() time.Duration
	Predict(ctx context.Context, text string) (*signal.Record, error)
}

// Notifier delivers review alerts. Implementations are fire-and-forget with
// their own throttling; the engine never blocks on delivery.
type Notifier interface {
	Notify(summary string, severity string)
}

// Options are the per-request knobs of an analysis.
type Options struct {
	// IncludeExplanation attaches a rendered explanation to the result.
	IncludeExplanation bool

	// Verbosity overrides the configured default explanation verbosity.
	Verbosity string

	// Algorithm overrides the configured default consensus algorithm.
	Algorithm string

	// Strategy overrides the configured default resolution strategy.
	Strategy string
}

// Analysis is the engine's terminal output: the aggregated result plus the
// analysis identity and the optional explanation.
type Analysis struct {
	AnalysisID string `json:"analysis_id"`
	MessageID  string `json:"message_id,omitempty"`

	*aggregation.Result

	Explanation *explain.Explanation `json:"explanation,omitempty"`
}

// Engine is the decision engine orchestrator. It is safe for concurrent use;
// each analysis owns its data and captures one configuration snapshot.
type Engine struct {
	providers []Provider
	notifier  Notifier
}

// New creates an engine over the given classifier providers. notifier may be
// nil when alerting is disabled.
func New(providers []Provider, notifier Notifier) *Engine {
	return &Engine{providers: providers, notifier: notifier}
}

// Providers returns the configured classifier providers.
func (e *Engine) Providers() []Provider {
	return e.providers
}

// Analyze fans out the message to all configured classifiers, waits for each
// within its own timeout, and runs the decision pipeline over whatever subset
// returned. It never blocks past the caller's deadline: signals still missing
// at expiry are treated as failed and the analysis proceeds degraded.
func (e *Engine) Analyze(ctx context.Context, messageID, message string, opts Options) (*Analysis, error) {
	if len(e.providers) == 0 {
		return nil, fmt.Errorf("no classifier providers configured")
	}

	cfg := config.Get()
	start := time.Now()
	records := e.collectSignals(ctx, cfg, message)

	return e.analyze(cfg, messageID, records, opts, start)
}

// AnalyzeSignals runs the decision pipeline over already-computed signal
// records. Scores are clamped to [0,1] on ingestion.
func (e *Engine) AnalyzeSignals(_ context.Context, messageID string, records []signal.Record, opts Options) (*Analysis, error) {
	cfg := config.Get()
	start := time.Now()

	normalized := make([]signal.Record, len(records))
	for i, r := range records {
		if r.Weight == 0 {
			r.Weight = cfg.Weights[string(r.Role)]
		}
		normalized[i] = signal.Normalize(r)
	}

	return e.analyze(cfg, messageID, normalized, opts, start)
}

// collectSignals queries all providers in parallel, one goroutine per
// provider, each bounded by the provider's own timeout under the caller's
// deadline. Failed or timed-out providers yield failed records so the
// configured weights stay visible to the consensus weight check.
func (e *Engine) collectSignals(ctx context.Context, cfg *config.Config, message string) []signal.Record {
	records := make([]signal.Record, len(e.providers))
	var wg sync.WaitGroup

	for i, p := range e.providers {
		wg.Add(1)
		go func(idx int, provider Provider) {
			defer wg.Done()

			callCtx := ctx
			var cancel context.CancelFunc
			if timeout := provider.Timeout(); timeout > 0 {
				callCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			start := time.Now()
			record, err := provider.Predict(callCtx, message)
			elapsed := time.Since(start)
			metrics.RecordModelSignal(provider.Name(), elapsed.Seconds(), err != nil)

			if err != nil {
				logging.Warnf("Model %s failed: %v", provider.Name(), err)
				records[idx] = signal.Record{
					ModelName: provider.Name(),
					Role:      provider.Role(),
					Weight:    cfg.Weights[string(provider.Role())],
					LatencyMs: elapsed.Milliseconds(),
					Succeeded: false,
				}
				return
			}

			normalized := signal.Normalize(*record)
			normalized.ModelName = provider.Name()
			normalized.Role = provider.Role()
			normalized.Weight = cfg.Weights[string(provider.Role())]
			normalized.LatencyMs = elapsed.Milliseconds()
			normalized.Succeeded = true
			records[idx] = normalized
		}(i, p)
	}

	wg.Wait()
	return records
}

// analyze is the synchronous decision pipeline: consensus, conflict
// detection, resolution, aggregation, explanation. All stages are pure and
// CPU-only; only signal collection blocks on I/O.
func (e *Engine) analyze(cfg *config.Config, messageID string, records []signal.Record, opts Options, start time.Time) (*Analysis, error) {
	algorithm, strategy, verbosity, err := resolveOptions(cfg, opts)
	if err != nil {
		return nil, err
	}

	analysisID := uuid.NewString()
	succeeded := signal.Succeeded(records)
	perf := performanceOf(records, start)

	// Total failure: never silently report SAFE with zero signals.
	if len(succeeded) == 0 {
		logging.Errorf("Analysis %s: no classifier signals available, flagging for review", analysisID)
		result := aggregation.Unknown(perf)
		e.alert(result.Conflicts, string(conflict.SeverityHigh))
		metrics.RecordReviewFlag()
		metrics.RecordAnalysis(string(algorithm), string(result.CrisisLevel), true, time.Since(start).Seconds())
		analysis := &Analysis{AnalysisID: analysisID, MessageID: messageID, Result: result}
		return e.withExplanation(analysis, opts, verbosity)
	}

	cons, err := consensus.Compute(records, algorithm, consensus.Params{
		CrisisThreshold:       cfg.Thresholds.Crisis,
		MajorityThreshold:     cfg.Thresholds.Majority,
		UnanimousThreshold:    cfg.Thresholds.Unanimous,
		DisagreementThreshold: cfg.Thresholds.Disagreement,
	})
	if err != nil {
		return nil, err
	}

	report := conflict.Detect(records, conflict.Thresholds{
		ScoreGap:          cfg.Thresholds.ScoreGap,
		IronyConfidence:   cfg.Thresholds.IronyConfidence,
		HighCrisisScore:   cfg.Thresholds.HighCrisisScore,
		EmotionScore:      cfg.Thresholds.EmotionScore,
		PositiveSentiment: cfg.Thresholds.PositiveSentiment,
	})
	for _, c := range report.Conflicts {
		metrics.RecordConflict(string(c.Type), string(c.Severity))
	}

	outcome, err := resolution.Resolve(records, cons, report, strategy)
	if err != nil {
		return nil, err
	}
	metrics.RecordResolution(string(strategy))

	result := aggregation.Aggregate(records, cons, report, outcome, perf, aggregation.Bands{
		Critical:       cfg.Levels.Critical,
		High:           cfg.Levels.High,
		Medium:         cfg.Levels.Medium,
		Low:            cfg.Levels.Low,
		Intervention:   cfg.Thresholds.Intervention,
		Escalation:     cfg.Thresholds.Escalation,
		IndicatorLabel: cfg.Thresholds.IndicatorLabel,
		EmotionScore:   cfg.Thresholds.EmotionScore,
	})

	// The alerting collaborator is notified at most once per analysis, with
	// the conflict summary and never the message text.
	if result.RequiresReview {
		metrics.RecordReviewFlag()
		e.alert(report, string(report.HighestSeverity))
	}

	metrics.RecordAnalysis(string(algorithm), string(result.CrisisLevel), perf.IsDegraded, time.Since(start).Seconds())
	logging.Debugf("Analysis %s: level=%s score=%.3f degraded=%v conflicts=%d",
		analysisID, result.CrisisLevel, result.CrisisScore, perf.IsDegraded, len(report.Conflicts))

	analysis := &Analysis{AnalysisID: analysisID, MessageID: messageID, Result: result}
	return e.withExplanation(analysis, opts, verbosity)
}

func (e *Engine) withExplanation(analysis *Analysis, opts Options, verbosity explain.Verbosity) (*Analysis, error) {
	if !opts.IncludeExplanation {
		return analysis, nil
	}
	explanation, err := explain.Generate(analysis.Result, verbosity)
	if err != nil {
		return nil, err
	}
	analysis.Explanation = explanation
	return analysis, nil
}

func (e *Engine) alert(report *conflict.Report, severity string) {
	if e.notifier == nil {
		return
	}
	if severity == "" {
		severity = string(conflict.SeverityHigh)
	}
	e.notifier.Notify(report.Summary(), severity)
}

// resolveOptions merges request overrides over the configured defaults.
// Unknown enum values are validation errors surfaced to the caller, never
// silently defaulted.
func resolveOptions(cfg *config.Config, opts Options) (consensus.Algorithm, resolution.Strategy, explain.Verbosity, error) {
	algorithmName := cfg.DefaultAlgorithm
	if opts.Algorithm != "" {
		algorithmName = opts.Algorithm
	}
	algorithm, err := consensus.ParseAlgorithm(algorithmName)
	if err != nil {
		return "", "", "", err
	}

	strategyName := cfg.ResolutionStrategy
	if opts.Strategy != "" {
		strategyName = opts.Strategy
	}
	strategy, err := resolution.ParseStrategy(strategyName)
	if err != nil {
		return "", "", "", err
	}

	verbosityName := cfg.DefaultVerbosity
	if opts.Verbosity != "" {
		verbosityName = opts.Verbosity
	}
	verbosity, err := explain.ParseVerbosity(verbosityName)
	if err != nil {
		return "", "", "", err
	}

	return algorithm, strategy, verbosity, nil
}

func performanceOf(records []signal.Record, start time.Time) aggregation.Performance {
	latencies := make(map[string]int64, len(records))
	succeededCount := 0
	for _, r := range records {
		latencies[r.ModelName] = r.LatencyMs
		if r.Succeeded {
			succeededCount++
		}
	}
	return aggregation.Performance{
		TotalLatencyMs:   time.Since(start).Milliseconds(),
		ModelLatenciesMs: latencies,
		IsDegraded:       succeededCount < len(records),
		ModelsQueried:    len(records),
		ModelsSucceeded:  succeededCount,
	}
}
