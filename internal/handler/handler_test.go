package handler

import (
	"context"
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
	"github.com/tributary-ai/llm-router/internal/statestore"
	"github.com/tributary-ai/llm-router/internal/translate"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func noJitter() float64 { return 0 }

func baseConfig(providers ...config.ProviderSpec) *config.RuntimeConfig {
	c := &config.RuntimeConfig{
		Version:      2,
		DefaultModel: "chat.default",
		Providers:    providers,
		Server: config.ServerConfig{
			OriginRetryAttempts: 1,
			FailureThreshold:    5,
			CooldownMs:          30000,
		},
	}
	config.Normalize(c)
	return c
}

func openAIProvider(id, baseURL string) config.ProviderSpec {
	return config.ProviderSpec{
		ID:      id,
		Enabled: true,
		BaseURL: baseURL,
		Formats: []config.WireFormat{config.FormatOpenAI},
		Auth:    config.AuthSpec{Type: "bearer"},
		APIKey:  "test-key",
		Models: []config.ModelSpec{
			{ID: "gpt-4o-mini", Enabled: true},
		},
	}
}

func newHandler(cfg *config.RuntimeConfig) *Handler {
	return New(cfg, statestore.NewMemoryStore(0), nil, translate.New(), amproute.New(nil), &http.Client{}, testLogger())
}

func chatBody(model string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"model":    model,
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	return body
}

// TestDirectRoute400NoFallback covers a primary that rejects the request as
// invalid: no retry, no fallback, exactly one upstream call.
func TestDirectRoute400NoFallback(t *testing.T) {
	calls := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request"}}`))
	}))
	defer upstream.Close()

	primary := openAIProvider("primary", upstream.URL)
	primary.Models[0].FallbackModels = []string{"fallback/gpt-4o-mini"}
	fallback := openAIProvider("fallback", upstream.URL)

	cfg := baseConfig(primary, fallback)
	h := newHandler(cfg)
	h.jitter = noJitter

	res := h.ServeRequest(context.Background(), Request{
		Path: "/v1/chat/completions",
		Body: chatBody("primary/gpt-4o-mini"),
	})

	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, 1, calls)
}

// TestDirectRoute500FallsBackAfterOneOriginAttempt covers a primary that
// fails once with a retryable server error. With origin-retry-attempts=1
// the origin retry budget is exhausted by that single attempt, so the
// handler falls through to the fallback candidate immediately rather than
// retrying the primary a second time: upstream calls observed are exactly
// one to the primary and one to the fallback.
func TestDirectRoute500FallsBackAfterOneOriginAttempt(t *testing.T) {
	primaryCalls := 0
	primaryUpstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryCalls++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer primaryUpstream.Close()

	fallbackCalls := 0
	fallbackUpstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackCalls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}]}`))
	}))
	defer fallbackUpstream.Close()

	primary := openAIProvider("primary", primaryUpstream.URL)
	primary.Models[0].FallbackModels = []string{"fallback/gpt-4o-mini"}
	fallback := openAIProvider("fallback", fallbackUpstream.URL)

	cfg := baseConfig(primary, fallback)
	h := newHandler(cfg)
	h.jitter = noJitter

	res := h.ServeRequest(context.Background(), Request{
		Path: "/v1/chat/completions",
		Body: chatBody("primary/gpt-4o-mini"),
	})

	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, 1, primaryCalls)
	assert.Equal(t, 1, fallbackCalls)
	assert.Contains(t, res.DebugFields.SelectedCandidate, "fallback")
}

// TestDirectRouteFallsBackOnRateLimited covers a primary that is exhausted
// (rate-limited) causing the handler to fall through to the fallback
// candidate on the very first attempt.
func TestDirectRouteFallsBackOnRateLimited(t *testing.T) {
	primaryCalls := 0
	primaryUpstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryCalls++
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer primaryUpstream.Close()

	fallbackUpstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}]}`))
	}))
	defer fallbackUpstream.Close()

	primary := openAIProvider("primary", primaryUpstream.URL)
	primary.Models[0].FallbackModels = []string{"fallback/gpt-4o-mini"}
	fallback := openAIProvider("fallback", fallbackUpstream.URL)

	cfg := baseConfig(primary, fallback)
	h := newHandler(cfg)
	h.jitter = noJitter

	res := h.ServeRequest(context.Background(), Request{
		Path: "/v1/chat/completions",
		Body: chatBody("primary/gpt-4o-mini"),
	})

	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, 1, primaryCalls)
	assert.Contains(t, res.DebugFields.SelectedCandidate, "fallback")
}

// TestNoPrimaryResolvedReturnsRoutingError covers a route naming a provider
// that isn't configured, surfaced as service-unavailable since the
// candidate is simply absent rather than the request being malformed.
func TestNoPrimaryResolvedReturnsRoutingError(t *testing.T) {
	cfg := baseConfig(openAIProvider("primary", "http://unused.invalid"))
	h := newHandler(cfg)

	res := h.ServeRequest(context.Background(), Request{
		Path: "/v1/chat/completions",
		Body: chatBody("unknown/does-not-exist"),
	})

	assert.Equal(t, http.StatusServiceUnavailable, res.Status)
}

// TestMalformedRouteReferenceReturnsBadRequest covers a route reference that
// fails to parse as either a direct "provider/model" pair or an alias id.
func TestMalformedRouteReferenceReturnsBadRequest(t *testing.T) {
	cfg := baseConfig(openAIProvider("primary", "http://unused.invalid"))
	h := newHandler(cfg)

	res := h.ServeRequest(context.Background(), Request{
		Path: "/v1/chat/completions",
		Body: chatBody("!!!not-a-valid-ref!!!"),
	})

	assert.Equal(t, http.StatusBadRequest, res.Status)
}

// TestInvalidJSONBodyRejected covers the body-validation guard before any
// routing work happens.
func TestInvalidJSONBodyRejected(t *testing.T) {
	cfg := baseConfig(openAIProvider("primary", "http://unused.invalid"))
	h := newHandler(cfg)

	res := h.ServeRequest(context.Background(), Request{
		Path: "/v1/chat/completions",
		Body: []byte("not json"),
	})

	assert.Equal(t, http.StatusBadRequest, res.Status)
}

// TestDebugHeadersDisabledByDefault confirms DebugFields.Enabled mirrors the
// server config flag rather than always being populated.
func TestDebugHeadersDisabledByDefault(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}]}`))
	}))
	defer upstream.Close()

	cfg := baseConfig(openAIProvider("primary", upstream.URL))
	h := newHandler(cfg)

	res := h.ServeRequest(context.Background(), Request{
		Path: "/v1/chat/completions",
		Body: chatBody("primary/gpt-4o-mini"),
	})

	require.Equal(t, http.StatusOK, res.Status)
	assert.False(t, res.DebugFields.Enabled)
}
