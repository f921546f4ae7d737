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

// Package modelclient implements the HTTP model wrapper collaborator: it
// turns a classifier serving endpoint into a signal provider.
package modelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/config"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/engine"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/signal"
)

const defaultTimeout = 5 * time.Second

// predictRequest is the wire request to a model wrapper endpoint.
type predictRequest struct {
	Text string `json:"text"`
}

// predictResponse is the standardized wire response from a model wrapper.
type predictResponse struct {
	TopLabel     string             `json:"top_label"`
	CrisisSignal float64            `json:"crisis_signal"`
	Confidence   float64            `json:"confidence"`
	LabelScores  map[string]float64 `json:"label_scores,omitempty"`
}

// Client queries one classifier endpoint and normalizes the response into a
// signal record. The wrapper endpoint owns retries and circuit breaking; the
// client only bounds the call with a timeout.
type Client struct {
	name       string
	role       signal.Role
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
}

// New creates a client for one configured model endpoint.
func New(mc config.ModelConfig) *Client {
	timeout := defaultTimeout
	if mc.TimeoutMs > 0 {
		timeout = time.Duration(mc.TimeoutMs) * time.Millisecond
	}
	return &Client{
		name:     mc.Name,
		role:     signal.Role(mc.Role),
		endpoint: mc.Endpoint,
		timeout:  timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BuildProviders creates a provider per configured model.
func BuildProviders(cfg *config.Config) []engine.Provider {
	providers := make([]engine.Provider, 0, len(cfg.Models))
	for _, mc := range cfg.Models {
		providers = append(providers, New(mc))
	}
	return providers
}

// Name returns the model's serving name.
func (c *Client) Name() string { return c.name }

// Role returns the classifier family.
func (c *Client) Role() signal.Role { return c.role }

// Timeout returns the per-model response deadline.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Predict posts the message text to the wrapper endpoint and returns the
// normalized signal record.
func (c *Client) Predict(ctx context.Context, text string) (*signal.Record, error) {
	body, err := json.Marshal(predictRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal predict request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(responseBody))
	}

	var parsed predictResponse
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse predict response: %w", err)
	}

	record := signal.Normalize(signal.Record{
		ModelName:     c.name,
		Role:          c.role,
		TopLabel:      parsed.TopLabel,
		CrisisSignal:  parsed.CrisisSignal,
		RawConfidence: parsed.Confidence,
		LabelScores:   parsed.LabelScores,
		Succeeded:     true,
	})
	return &record, nil
}
