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

package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/aggregation"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/signal"
)

// fakeProvider is an in-memory classifier stub with an optional response
// delay so timeout behavior can be exercised without a network.
type fakeProvider struct {
	name   string
	role   signal.Role
	record signal.Record
	err    error
	delay  time.Duration
}

func (f *fakeProvider) Name() string           { return f.name }
func (f *fakeProvider) Role() signal.Role      { return f.role }
func (f *fakeProvider) Timeout() time.Duration { return 50 * time.Millisecond }

func (f *fakeProvider) Predict(ctx context.Context, _ string) (*signal.Record, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	record := f.record
	return &record, nil
}

// countingNotifier records every alert it receives.
type countingNotifier struct {
	mu         sync.Mutex
	calls      int
	summaries  []string
	severities []string
}

func (n *countingNotifier) Notify(summary string, severity string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.summaries = append(n.summaries, summary)
	n.severities = append(n.severities, severity)
}

func fourProviders(crisis, sentiment, irony, emotion float64) []Provider {
	return []Provider{
		&fakeProvider{name: "bart-mnli", role: signal.RoleCrisis, record: signal.Record{TopLabel: "crisis", CrisisSignal: crisis, RawConfidence: 0.9}},
		&fakeProvider{name: "roberta-sentiment", role: signal.RoleSentiment, record: signal.Record{TopLabel: "negative", CrisisSignal: sentiment, RawConfidence: 0.8}},
		&fakeProvider{name: "roberta-irony", role: signal.RoleIrony, record: signal.Record{TopLabel: "non_irony", CrisisSignal: irony, RawConfidence: 0.7}},
		&fakeProvider{name: "goemotions", role: signal.RoleEmotion, record: signal.Record{TopLabel: "sadness", LabelScores: map[string]float64{"sadness": 0.8}, CrisisSignal: emotion, RawConfidence: 0.6}},
	}
}

func TestAnalyze_FullEnsemble(t *testing.T) {
	engine := New(fourProviders(0.89, 0.75, 0.95, 0.70), nil)

	analysis, err := engine.Analyze(context.Background(), "msg-1", "some message", Options{})
	require.NoError(t, err)

	assert.NotEmpty(t, analysis.AnalysisID)
	assert.Equal(t, "msg-1", analysis.MessageID)
	assert.InDelta(t, 0.845, analysis.CrisisScore, 1e-9)
	assert.Equal(t, aggregation.LevelHigh, analysis.CrisisLevel)
	assert.True(t, analysis.RequiresIntervention)
	assert.False(t, analysis.Performance.IsDegraded)
	assert.Equal(t, 4, analysis.Performance.ModelsQueried)
	assert.Equal(t, 4, analysis.Performance.ModelsSucceeded)
}

func TestAnalyze_DegradedRenormalizes(t *testing.T) {
	providers := fourProviders(0.80, 0.40, 0, 0)
	providers[2].(*fakeProvider).err = errors.New("connection refused")
	providers[3].(*fakeProvider).err = errors.New("connection refused")

	engine := New(providers, nil)
	analysis, err := engine.Analyze(context.Background(), "", "some message", Options{})
	require.NoError(t, err)

	// 0.80*0.50 + 0.40*0.25 over the remaining weight mass 0.75.
	assert.InDelta(t, 0.6667, analysis.CrisisScore, 1e-3)
	assert.True(t, analysis.Performance.IsDegraded)
	assert.Equal(t, 2, analysis.Performance.ModelsSucceeded)
}

func TestAnalyze_SlowProviderTimesOut(t *testing.T) {
	providers := fourProviders(0.80, 0.40, 0.50, 0.50)
	providers[3].(*fakeProvider).delay = time.Second

	engine := New(providers, nil)
	start := time.Now()
	analysis, err := engine.Analyze(context.Background(), "", "some message", Options{})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 500*time.Millisecond, "the slow provider must not block the analysis")
	assert.True(t, analysis.Performance.IsDegraded)
	assert.Equal(t, 3, analysis.Performance.ModelsSucceeded)
}

func TestAnalyze_TotalFailureIsUnknown(t *testing.T) {
	providers := fourProviders(0, 0, 0, 0)
	for _, p := range providers {
		p.(*fakeProvider).err = errors.New("model down")
	}
	notifier := &countingNotifier{}

	engine := New(providers, notifier)
	analysis, err := engine.Analyze(context.Background(), "msg-9", "some message", Options{})
	require.NoError(t, err, "total failure is a degraded result, not an error")

	assert.Equal(t, aggregation.LevelUnknown, analysis.CrisisLevel)
	assert.True(t, analysis.RequiresReview)
	assert.True(t, analysis.Performance.IsDegraded)
	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, "high", notifier.severities[0])
}

func TestAnalyze_NoProviders(t *testing.T) {
	engine := New(nil, nil)
	_, err := engine.Analyze(context.Background(), "", "some message", Options{})
	assert.Error(t, err)
}

func TestAnalyze_AlertsOncePerAnalysis(t *testing.T) {
	// Wide score spread plus label disagreement: multiple conflicts, one
	// of them high severity, must produce exactly one alert.
	providers := fourProviders(0.96, 0.05, 0.90, 0.85)
	notifier := &countingNotifier{}

	engine := New(providers, notifier)
	analysis, err := engine.Analyze(context.Background(), "", "some message", Options{})
	require.NoError(t, err)

	require.True(t, analysis.RequiresReview)
	assert.Equal(t, 1, notifier.calls)
	assert.Contains(t, notifier.summaries[0], "score_disagreement (high)")
	assert.NotContains(t, notifier.summaries[0], "some message", "alerts must never carry message text")
}

func TestAnalyze_IncludesExplanation(t *testing.T) {
	engine := New(fourProviders(0.89, 0.75, 0.95, 0.70), nil)

	analysis, err := engine.Analyze(context.Background(), "", "some message", Options{
		IncludeExplanation: true,
		Verbosity:          "detailed",
	})
	require.NoError(t, err)

	require.NotNil(t, analysis.Explanation)
	assert.NotEmpty(t, analysis.Explanation.PlainText)
	assert.Len(t, analysis.Explanation.ModelContributions, 4)
}

func TestAnalyze_RejectsUnknownOptions(t *testing.T) {
	engine := New(fourProviders(0.5, 0.5, 0.5, 0.5), nil)

	for _, opts := range []Options{
		{Algorithm: "quantum_voting"},
		{Strategy: "coin_flip"},
		{Verbosity: "chatty"},
	} {
		_, err := engine.Analyze(context.Background(), "", "some message", opts)
		assert.Error(t, err, "%+v", opts)
	}
}

func TestAnalyzeSignals_BackfillsWeightsAndClamps(t *testing.T) {
	records := []signal.Record{
		{ModelName: "bart-mnli", Role: signal.RoleCrisis, CrisisSignal: 1.5, Succeeded: true},
		{ModelName: "roberta-sentiment", Role: signal.RoleSentiment, CrisisSignal: -0.2, Succeeded: true},
		{ModelName: "roberta-irony", Role: signal.RoleIrony, CrisisSignal: 0.40, Succeeded: true},
		{ModelName: "goemotions", Role: signal.RoleEmotion, CrisisSignal: 0.40, Succeeded: true},
	}

	engine := New(nil, nil)
	analysis, err := engine.AnalyzeSignals(context.Background(), "msg-2", records, Options{})
	require.NoError(t, err)

	// 1.0*0.50 + 0.0*0.25 + 0.40*0.15 + 0.40*0.10 = 0.60
	assert.InDelta(t, 0.60, analysis.Consensus.CrisisScore, 1e-9)
	assert.Equal(t, "msg-2", analysis.MessageID)
}

func TestAnalyzeSignals_ExplicitWeightsMustSum(t *testing.T) {
	records := []signal.Record{
		{ModelName: "a", Role: signal.RoleCrisis, CrisisSignal: 0.5, Weight: 0.8, Succeeded: true},
		{ModelName: "b", Role: signal.RoleSentiment, CrisisSignal: 0.5, Weight: 0.8, Succeeded: true},
	}

	engine := New(nil, nil)
	_, err := engine.AnalyzeSignals(context.Background(), "", records, Options{})
	assert.Error(t, err)
}

func TestAnalyzeSignals_ZeroRecords(t *testing.T) {
	engine := New(nil, nil)
	analysis, err := engine.AnalyzeSignals(context.Background(), "", nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, aggregation.LevelUnknown, analysis.CrisisLevel)
	assert.True(t, analysis.RequiresReview)
}
