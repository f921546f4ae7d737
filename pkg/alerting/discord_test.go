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

package alerting

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotify_DeliversEmbed(t *testing.T) {
	received := make(chan discordPayload, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload discordPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received <- payload
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	notifier := NewDiscord(ts.URL, 0)
	notifier.Notify("score_disagreement (high)", "high")

	select {
	case payload := <-received:
		require.Len(t, payload.Embeds, 1)
		assert.Equal(t, "score_disagreement (high)", payload.Embeds[0].Description)
		assert.Equal(t, severityColors["high"], payload.Embeds[0].Color)
	case <-time.After(2 * time.Second):
		t.Fatal("alert was never delivered")
	}
}

func TestNotify_ThrottlesInsideInterval(t *testing.T) {
	received := make(chan struct{}, 4)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received <- struct{}{}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	notifier := NewDiscord(ts.URL, time.Minute)
	notifier.Notify("first", "high")
	notifier.Notify("second", "high")
	notifier.Notify("third", "medium")

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("first alert was never delivered")
	}

	select {
	case <-received:
		t.Fatal("throttled alert was delivered")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNotify_UnknownSeverityFallsBackToHighColor(t *testing.T) {
	received := make(chan discordPayload, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload discordPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		received <- payload
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	notifier := NewDiscord(ts.URL, 0)
	notifier.Notify("summary", "")

	select {
	case payload := <-received:
		assert.Equal(t, severityColors["high"], payload.Embeds[0].Color)
	case <-time.After(2 * time.Second):
		t.Fatal("alert was never delivered")
	}
}

func TestNoopDiscards(t *testing.T) {
	Noop{}.Notify("anything", "high")
}
