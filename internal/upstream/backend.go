package upstream

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chat-relay/internal/types"
)

// Backend issues streaming chat-completion requests to the configured
// upstream service.
type Backend struct {
	config       types.UpstreamConfig
	streamClient *http.Client
}

// NewBackend creates a backend bound to the configured upstream. The
// streaming client carries no overall request timeout, so a generation that
// outlives any fixed deadline is never severed mid-body. Dial, TLS and
// response-header timeouts still bound the failure cases, and the pool is
// sized up because streaming connections stay open far longer.
func NewBackend(configManager types.ConfigManager, clients *ClientManager) *Backend {
	config := configManager.GetUpstreamConfig()
	streamClient := clients.GetClient(&ClientConfig{
		ConnectTimeout:        time.Duration(config.ConnectTimeout) * time.Second,
		RequestTimeout:        0,
		IdleConnTimeout:       time.Duration(config.IdleConnTimeout) * time.Second,
		ResponseHeaderTimeout: time.Duration(config.ResponseHeaderTimeout) * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          max(config.MaxIdleConns*2, 50),
		MaxIdleConnsPerHost:   max(config.MaxIdleConnsPerHost*2, 20),
		ProxyURL:              config.ProxyURL,
	})
	return &Backend{
		config:       config,
		streamClient: streamClient,
	}
}

// BaseURL returns the configured upstream base URL.
func (b *Backend) BaseURL() string {
	return strings.TrimSuffix(b.config.URL, "/")
}

// Do sends the request body to the upstream path and returns the raw
// response. The caller owns the response body. clientAuth is the
// Authorization header received from the client, forwarded verbatim when no
// upstream API key is configured.
func (b *Backend) Do(ctx context.Context, path string, body []byte, clientAuth string) (*http.Response, error) {
	base := b.BaseURL()
	if base == "" {
		return nil, fmt.Errorf("upstream URL is not configured")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if b.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.config.APIKey)
	} else if clientAuth != "" {
		req.Header.Set("Authorization", clientAuth)
	}

	return b.streamClient.Do(req)
}
