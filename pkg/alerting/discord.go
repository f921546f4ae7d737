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

// Package alerting delivers review alerts to a Discord webhook. Delivery is
// fire-and-forget with its own throttling; callers never block on it. The
// payload carries the conflict summary only, never message text.
package alerting

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/observability/logging"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/observability/metrics"
)

// Discord embed colors per severity.
var severityColors = map[string]int{
	"high":   0xE74C3C,
	"medium": 0xE67E22,
	"low":    0xF1C40F,
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// DiscordNotifier posts review alerts to a Discord webhook.
type DiscordNotifier struct {
	webhookURL  string
	minInterval time.Duration
	httpClient  *http.Client

	mu       sync.Mutex
	lastSent time.Time
}

// NewDiscord creates a notifier for the given webhook URL. minInterval
// throttles delivery; alerts inside the window are dropped, not queued.
func NewDiscord(webhookURL string, minInterval time.Duration) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL:  webhookURL,
		minInterval: minInterval,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Notify posts the alert asynchronously. It returns immediately.
func (n *DiscordNotifier) Notify(summary string, severity string) {
	n.mu.Lock()
	if n.minInterval > 0 && time.Since(n.lastSent) < n.minInterval {
		n.mu.Unlock()
		metrics.RecordAlert("throttled")
		return
	}
	n.lastSent = time.Now()
	n.mu.Unlock()

	go n.send(summary, severity)
}

func (n *DiscordNotifier) send(summary string, severity string) {
	color, ok := severityColors[severity]
	if !ok {
		color = severityColors["high"]
	}

	payload := discordPayload{
		Embeds: []discordEmbed{{
			Title:       "Crisis analysis flagged for review",
			Description: summary,
			Color:       color,
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logging.Errorf("Failed to marshal alert payload: %v", err)
		metrics.RecordAlert("error")
		return
	}

	resp, err := n.httpClient.Post(n.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		logging.Errorf("Failed to deliver review alert: %v", err)
		metrics.RecordAlert("error")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logging.Errorf("Review alert rejected with HTTP %d", resp.StatusCode)
		metrics.RecordAlert("error")
		return
	}
	metrics.RecordAlert("sent")
}

// Noop is a notifier that discards alerts, used when alerting is disabled.
type Noop struct{}

// Notify discards the alert.
func (Noop) Notify(string, string) {}
