package proxy

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chat-relay/internal/types"
	"chat-relay/internal/upstream"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type relayTestConfig struct {
	upstream types.UpstreamConfig
	relay    types.RelayConfig
}

func (c *relayTestConfig) GetAuthConfig() types.AuthConfig {
	return types.AuthConfig{}
}

func (c *relayTestConfig) GetCORSConfig() types.CORSConfig {
	return types.CORSConfig{}
}

func (c *relayTestConfig) GetPerformanceConfig() types.PerformanceConfig {
	return types.PerformanceConfig{}
}

func (c *relayTestConfig) GetLogConfig() types.LogConfig {
	return types.LogConfig{}
}

func (c *relayTestConfig) GetDatabaseConfig() types.DatabaseConfig {
	return types.DatabaseConfig{}
}

func (c *relayTestConfig) GetUpstreamConfig() types.UpstreamConfig {
	return c.upstream
}

func (c *relayTestConfig) GetRelayConfig() types.RelayConfig {
	return c.relay
}

func (c *relayTestConfig) GetEncryptionKey() string {
	return ""
}

func (c *relayTestConfig) GetEffectiveServerConfig() types.ServerConfig {
	return types.ServerConfig{}
}

func (c *relayTestConfig) IsDebugMode() bool {
	return false
}

func (c *relayTestConfig) Validate() error {
	return nil
}

func (c *relayTestConfig) DisplayServerConfig() {}

func (c *relayTestConfig) ReloadConfig() error {
	return nil
}

// newRelayRouter wires a relay server against the given upstream URL.
func newRelayRouter(upstreamURL string) *gin.Engine {
	cfg := &relayTestConfig{
		upstream: types.UpstreamConfig{URL: upstreamURL, ConnectTimeout: 5},
	}
	backend := upstream.NewBackend(cfg, upstream.NewClientManager())
	server := NewServer(cfg, backend, nil)

	router := gin.New()
	router.POST("/v1/chat/completions", server.HandleChatCompletion)
	return router
}

// sseUpstream returns an httptest server that replies with the given SSE
// payload and records the request body it received.
func sseUpstream(t *testing.T, payload string, gotBody *[]byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotBody != nil {
			buf := make([]byte, 4096)
			n, _ := r.Body.Read(buf)
			*gotBody = buf[:n]
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, line := range strings.Split(payload, "\n") {
			_, _ = w.Write([]byte(line + "\n"))
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func relayRequest(router *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHandleChatCompletionStreamsParts(t *testing.T) {
	payload := `data: {"choices":[{"delta":{"content":"Hello"}}]}

data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"search","arguments":"{\"q\":\"cats\"}"}}]}}]}

data: {"choices":[{"delta":{},"finish_reason":"tool_calls"}]}

data: [DONE]`

	var upstreamBody []byte
	backend := sseUpstream(t, payload, &upstreamBody)
	router := newRelayRouter(backend.URL)

	w := relayRequest(router, `{"model":"k2","stream":false,"messages":[]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, `data: {"type":"text","text":"Hello"}`)
	assert.Contains(t, body, `"type":"tool_call"`)
	assert.Contains(t, body, `"name":"search"`)
	assert.Contains(t, body, `"q":"cats"`)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(body), "data: [DONE]"))

	// Non-streaming client requests are upgraded before forwarding.
	assert.True(t, gjson.GetBytes(upstreamBody, "stream").Bool())
	assert.Equal(t, "k2", gjson.GetBytes(upstreamBody, "model").String())
}

func TestHandleChatCompletionThinking(t *testing.T) {
	payload := `data: {"choices":[{"delta":{"reasoning_content":"pondering"}}]}

data: {"choices":[{"delta":{"content":"done"},"finish_reason":"stop"}]}

data: [DONE]`

	backend := sseUpstream(t, payload, nil)
	router := newRelayRouter(backend.URL)

	w := relayRequest(router, `{"model":"k2"}`)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `data: {"type":"thinking","text":"pondering"}`)
	assert.Contains(t, body, `data: {"type":"text","text":"done"}`)
}

func TestHandleChatCompletionInvalidJSON(t *testing.T) {
	backend := sseUpstream(t, "", nil)
	router := newRelayRouter(backend.URL)

	w := relayRequest(router, `{"model":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_JSON")
}

func TestHandleChatCompletionMissingModel(t *testing.T) {
	backend := sseUpstream(t, "", nil)
	router := newRelayRouter(backend.URL)

	w := relayRequest(router, `{"messages":[]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "model is required")
}

func TestHandleChatCompletionUpstreamErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()
	router := newRelayRouter(server.URL)

	w := relayRequest(router, `{"model":"k2"}`)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "UPSTREAM_ERROR")
	assert.Contains(t, w.Body.String(), "rate limited")
}

func TestHandleChatCompletionUnreachableUpstream(t *testing.T) {
	router := newRelayRouter("http://127.0.0.1:1")

	w := relayRequest(router, `{"model":"k2"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "BAD_GATEWAY")
}

func TestHandleChatCompletionProtocolViolation(t *testing.T) {
	payload := `data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"name":"search","arguments":"{\"q\":"}}]}}]}

data: {"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`

	backend := sseUpstream(t, payload, nil)
	router := newRelayRouter(backend.URL)

	w := relayRequest(router, `{"model":"k2"}`)

	// Headers were already streamed, so the failure surfaces as a terminal
	// error event rather than an HTTP status.
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"type":"error"`)
	assert.Contains(t, body, "STREAM_PROTOCOL_VIOLATION")
	assert.NotContains(t, body, "data: [DONE]")
}
