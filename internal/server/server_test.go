package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/llm-router/internal/amproute"
	"github.com/tributary-ai/llm-router/internal/config"
	"github.com/tributary-ai/llm-router/internal/handler"
	"github.com/tributary-ai/llm-router/internal/statestore"
	"github.com/tributary-ai/llm-router/internal/translate"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestServer(t *testing.T, cfg *config.RuntimeConfig) *Server {
	h := handler.New(cfg, statestore.NewMemoryStore(0), nil, translate.New(), amproute.New(nil), &http.Client{}, testLogger())
	s, err := New(cfg, h, testLogger())
	require.NoError(t, err)
	return s
}

func testConfig(masterKey string) *config.RuntimeConfig {
	c := &config.RuntimeConfig{
		Version:      2,
		DefaultModel: "chat.default",
		MasterKey:    masterKey,
		Providers: []config.ProviderSpec{{
			ID:      "primary",
			Enabled: true,
			BaseURL: "http://unused.invalid",
			Formats: []config.WireFormat{config.FormatOpenAI},
			Auth:    config.AuthSpec{Type: "bearer"},
			APIKey:  "test-key",
			Models:  []config.ModelSpec{{ID: "gpt-4o-mini", Enabled: true}},
		}},
		Server: config.ServerConfig{
			OriginRetryAttempts: 1,
			FailureThreshold:    5,
			CooldownMs:          30000,
		},
	}
	config.Normalize(c)
	return c
}

func TestHealthEndpointNeedsNoAuth(t *testing.T) {
	s := newTestServer(t, testConfig("secret"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.setupRoutes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestChatCompletionsRequiresMasterKeyWhenConfigured(t *testing.T) {
	s := newTestServer(t, testConfig("secret"))
	body, _ := json.Marshal(map[string]interface{}{
		"model":    "primary/gpt-4o-mini",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.setupRoutes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatCompletionsAcceptsBearerMasterKey(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}]}`))
	}))
	defer upstream.Close()

	cfg := testConfig("secret")
	cfg.Providers[0].BaseURL = upstream.URL
	s := newTestServer(t, cfg)

	body, _ := json.Marshal(map[string]interface{}{
		"model":    "primary/gpt-4o-mini",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer secret")
	s.setupRoutes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestModelsEndpointListsConfiguredModels(t *testing.T) {
	s := newTestServer(t, testConfig(""))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	s.setupRoutes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Object string `json:"object"`
		Data   []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "list", body.Object)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "primary/gpt-4o-mini", body.Data[0].ID)
}

func TestCORSPreflightHonorsAllowList(t *testing.T) {
	cfg := testConfig("")
	cfg.Server.CORS.AllowedOrigins = []string{"https://example.com"}
	s := newTestServer(t, cfg)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/v1/chat/completions", nil)
	req.Header.Set("Origin", "https://example.com")
	s.setupRoutes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnsupportedContentTypeRejected(t *testing.T) {
	s := newTestServer(t, testConfig(""))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader([]byte("{}")))
	req.Header.Set("Content-Type", "text/plain")
	s.setupRoutes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestOpenAPISpecServed(t *testing.T) {
	s := newTestServer(t, testConfig(""))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	s.setupRoutes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])
}
