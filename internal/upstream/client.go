// Package upstream manages HTTP clients and requests toward the
// chat-completion backend.
package upstream

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"chat-relay/internal/utils"

	"github.com/sirupsen/logrus"
)

// ClientConfig defines the parameters for creating an HTTP client. The struct
// doubles as the cache fingerprint so equal configurations share a client.
type ClientConfig struct {
	ConnectTimeout        time.Duration
	RequestTimeout        time.Duration
	IdleConnTimeout       time.Duration
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	ResponseHeaderTimeout time.Duration
	TLSHandshakeTimeout   time.Duration
	ProxyURL              string
}

// ClientManager creates and caches HTTP clients by configuration fingerprint.
type ClientManager struct {
	clients map[string]*http.Client
	lock    sync.RWMutex
}

// NewClientManager creates a new client manager.
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients: make(map[string]*http.Client),
	}
}

// GetClient returns an HTTP client matching the configuration, creating and
// caching one on first use.
func (m *ClientManager) GetClient(config *ClientConfig) *http.Client {
	fingerprint := config.fingerprint()

	m.lock.RLock()
	client, exists := m.clients[fingerprint]
	m.lock.RUnlock()
	if exists {
		return client
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	if client, exists = m.clients[fingerprint]; exists {
		return client
	}

	// 2x the idle pool allows temporary bursts without connection queuing,
	// with a floor so a low idle setting still permits concurrency.
	maxConnsPerHost := config.MaxIdleConnsPerHost * 2
	if maxConnsPerHost < 10 {
		maxConnsPerHost = 10
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   config.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		// The relay parses SSE frames itself; automatic gzip buffering would
		// add latency between upstream chunks.
		DisableCompression: true,
	}

	trimmedProxyURL := strings.TrimSpace(config.ProxyURL)
	if trimmedProxyURL != "" {
		proxyURL, err := url.Parse(trimmedProxyURL)
		if err != nil || (proxyURL.Scheme != "http" && proxyURL.Scheme != "https" && proxyURL.Scheme != "socks5") {
			logrus.Warnf("Invalid proxy URL '%s', falling back to environment settings", utils.SanitizeProxyString(trimmedProxyURL))
			transport.Proxy = http.ProxyFromEnvironment
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
			logrus.Debugf("Upstream client configured with proxy: %s", utils.SanitizeProxyURLForLog(proxyURL))
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	newClient := &http.Client{
		Transport: transport,
		Timeout:   config.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			return nil
		},
	}

	m.clients[fingerprint] = newClient
	logrus.WithFields(logrus.Fields{
		"fingerprint": fingerprint,
		"proxy_url":   utils.SanitizeProxyString(trimmedProxyURL),
		"timeout":     config.RequestTimeout,
	}).Debug("Created new upstream HTTP client")

	return newClient
}

// CloseIdleConnections closes idle connections for all managed clients.
func (m *ClientManager) CloseIdleConnections() {
	m.lock.RLock()
	defer m.lock.RUnlock()

	for _, client := range m.clients {
		if transport, ok := client.Transport.(*http.Transport); ok {
			transport.CloseIdleConnections()
		}
	}
	logrus.Debug("Closed idle connections for upstream HTTP clients")
}

// fingerprint generates a unique string representation of the configuration.
func (c *ClientConfig) fingerprint() string {
	return fmt.Sprintf(
		"ct:%.0fs|rt:%.0fs|it:%.0fs|mic:%d|mich:%d|rht:%.0fs|tlst:%.0fs|proxy:%s",
		c.ConnectTimeout.Seconds(),
		c.RequestTimeout.Seconds(),
		c.IdleConnTimeout.Seconds(),
		c.MaxIdleConns,
		c.MaxIdleConnsPerHost,
		c.ResponseHeaderTimeout.Seconds(),
		c.TLSHandshakeTimeout.Seconds(),
		strings.TrimSpace(c.ProxyURL),
	)
}
