package apiserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/config"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/engine"
)

func testServer() *httptest.Server {
	srv := New(engine.New(nil, nil))
	return httptest.NewServer(srv.setupRoutes())
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func signalsBody() []map[string]interface{} {
	return []map[string]interface{}{
		{"model_name": "bart-mnli", "role": "crisis", "top_label": "crisis", "crisis_signal": 0.89, "raw_confidence": 0.9, "succeeded": true},
		{"model_name": "roberta-sentiment", "role": "sentiment", "top_label": "negative", "crisis_signal": 0.75, "raw_confidence": 0.8, "succeeded": true},
		{"model_name": "roberta-irony", "role": "irony", "top_label": "non_irony", "crisis_signal": 0.95, "raw_confidence": 0.7, "succeeded": true},
		{"model_name": "goemotions", "role": "emotion", "top_label": "sadness", "crisis_signal": 0.70, "raw_confidence": 0.6, "succeeded": true,
			"label_scores": map[string]float64{"sadness": 0.8}},
	}
}

func TestHealth(t *testing.T) {
	ts := testServer()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeBody(t, resp)["status"])
}

func TestAnalyze_WithSignals(t *testing.T) {
	ts := testServer()
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/v1/analyze", map[string]interface{}{
		"message_id": "msg-42",
		"signals":    signalsBody(),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "msg-42", body["message_id"])
	assert.InDelta(t, 0.845, body["crisis_score"].(float64), 1e-6)
	assert.Equal(t, "HIGH", body["crisis_level"])
	assert.NotEmpty(t, body["analysis_id"])
	assert.Nil(t, body["explanation"])
}

func TestAnalyze_LegacyProjection(t *testing.T) {
	ts := testServer()
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/v1/analyze", map[string]interface{}{
		"signals": signalsBody(),
		"options": map[string]interface{}{"legacy": true},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["crisis_detected"])
	assert.Equal(t, "high", body["severity"])
	assert.Equal(t, true, body["requires_intervention"])
	assert.Nil(t, body["analysis_id"], "the legacy projection is flat")
}

func TestAnalyze_WithExplanation(t *testing.T) {
	ts := testServer()
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/v1/analyze", map[string]interface{}{
		"signals": signalsBody(),
		"options": map[string]interface{}{"include_explanation": true, "verbosity": "standard"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	explanation, ok := body["explanation"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, explanation["decision_summary"])
	assert.NotNil(t, explanation["recommended_action"])
}

func TestAnalyze_BadRequests(t *testing.T) {
	ts := testServer()
	defer ts.Close()

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"neither message nor signals", map[string]interface{}{"message_id": "x"}},
		{"unknown algorithm", map[string]interface{}{
			"signals": signalsBody(),
			"options": map[string]interface{}{"consensus_algorithm": "quantum_voting"},
		}},
		{"unknown verbosity", map[string]interface{}{
			"signals": signalsBody(),
			"options": map[string]interface{}{"verbosity": "chatty"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/v1/analyze", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, decodeBody(t, resp)["error"])
		})
	}
}

func TestAnalyze_InvalidJSON(t *testing.T) {
	ts := testServer()
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/analyze", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetConfig(t *testing.T) {
	ts := testServer()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/config/engine")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, config.Get().DefaultAlgorithm, body["default_algorithm"])
}

func TestUpdateConfig(t *testing.T) {
	ts := testServer()
	defer ts.Close()
	t.Cleanup(func() { _ = config.Replace(config.Default()) })

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/config/engine",
		bytes.NewReader([]byte(`{"default_algorithm":"conflict_aware"}`)))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The update is a partial overlay on the active snapshot.
	body := decodeBody(t, resp)
	assert.Equal(t, "conflict_aware", body["default_algorithm"])
	assert.Equal(t, "conservative", body["resolution_strategy"])
	assert.Equal(t, "conflict_aware", config.Get().DefaultAlgorithm)
}

func TestUpdateConfig_RejectsInvalid(t *testing.T) {
	ts := testServer()
	defer ts.Close()

	before := config.Get().DefaultAlgorithm
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/config/engine",
		bytes.NewReader([]byte(`{"default_algorithm":"quantum_voting"}`)))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, before, config.Get().DefaultAlgorithm, "a rejected update must not change the snapshot")
}

func TestModelsInfo(t *testing.T) {
	ts := testServer()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/info/models")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	models, ok := body["models"].([]interface{})
	require.True(t, ok)
	assert.Empty(t, models)
}
