// Package config provides environment-backed configuration management.
package config

import (
	"fmt"
	"strings"
	"sync"

	"chat-relay/internal/types"
	"chat-relay/internal/utils"
	"chat-relay/internal/version"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Constants for configuration validation
const (
	minPort                    = 1
	maxPort                    = 65535
	minGracefulShutdownTimeout = 10
)

// Config holds a full snapshot of configuration values.
type Config struct {
	Server      types.ServerConfig
	Auth        types.AuthConfig
	CORS        types.CORSConfig
	Performance types.PerformanceConfig
	Log         types.LogConfig
	Database    types.DatabaseConfig
	Upstream    types.UpstreamConfig
	Relay       types.RelayConfig

	EncryptionKey string
	DebugMode     bool
}

// Manager implements types.ConfigManager on top of environment variables.
type Manager struct {
	mu     sync.RWMutex
	config *Config
}

// NewManager creates a configuration manager from the environment. A .env
// file in the working directory is loaded first when present.
func NewManager() (*Manager, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using system environment variables")
	}

	m := &Manager{}
	if err := m.ReloadConfig(); err != nil {
		return nil, err
	}
	return m, nil
}

// ReloadConfig re-reads the environment and swaps in a validated snapshot.
func (m *Manager) ReloadConfig() error {
	config := &Config{
		Server: types.ServerConfig{
			Port:                    utils.ParseInteger(utils.GetEnvOrDefault("PORT", ""), 3001),
			Host:                    utils.GetEnvOrDefault("HOST", "0.0.0.0"),
			ReadTimeout:             utils.ParseInteger(utils.GetEnvOrDefault("SERVER_READ_TIMEOUT", ""), 60),
			WriteTimeout:            utils.ParseInteger(utils.GetEnvOrDefault("SERVER_WRITE_TIMEOUT", ""), 600),
			IdleTimeout:             utils.ParseInteger(utils.GetEnvOrDefault("SERVER_IDLE_TIMEOUT", ""), 120),
			GracefulShutdownTimeout: utils.ParseInteger(utils.GetEnvOrDefault("SERVER_GRACEFUL_SHUTDOWN_TIMEOUT", ""), 30),
		},
		Auth: types.AuthConfig{
			Key: utils.GetEnvOrDefault("AUTH_KEY", ""),
		},
		CORS: types.CORSConfig{
			Enabled:          utils.ParseBoolean(utils.GetEnvOrDefault("ENABLE_CORS", ""), false),
			AllowedOrigins:   utils.SplitAndTrim(utils.GetEnvOrDefault("ALLOWED_ORIGINS", ""), ","),
			AllowedMethods:   utils.SplitAndTrim(utils.GetEnvOrDefault("ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"), ","),
			AllowedHeaders:   utils.SplitAndTrim(utils.GetEnvOrDefault("ALLOWED_HEADERS", "*"), ","),
			AllowCredentials: utils.ParseBoolean(utils.GetEnvOrDefault("ALLOW_CREDENTIALS", ""), false),
		},
		Performance: types.PerformanceConfig{
			MaxConcurrentRequests: utils.ParseInteger(utils.GetEnvOrDefault("MAX_CONCURRENT_REQUESTS", ""), 100),
		},
		Log: types.LogConfig{
			Level:      utils.GetEnvOrDefault("LOG_LEVEL", "info"),
			Format:     utils.GetEnvOrDefault("LOG_FORMAT", "text"),
			EnableFile: utils.ParseBoolean(utils.GetEnvOrDefault("LOG_ENABLE_FILE", ""), false),
			FilePath:   utils.GetEnvOrDefault("LOG_FILE_PATH", "./data/logs/chat-relay.log"),
		},
		Database: types.DatabaseConfig{
			DSN: utils.GetEnvOrDefault("DATABASE_DSN", "./data/chat-relay.db"),
		},
		Upstream: types.UpstreamConfig{
			URL:                   utils.GetEnvOrDefault("UPSTREAM_URL", ""),
			APIKey:                utils.GetEnvOrDefault("UPSTREAM_API_KEY", ""),
			ConnectTimeout:        utils.ParseInteger(utils.GetEnvOrDefault("UPSTREAM_CONNECT_TIMEOUT", ""), 15),
			IdleConnTimeout:       utils.ParseInteger(utils.GetEnvOrDefault("UPSTREAM_IDLE_CONN_TIMEOUT", ""), 120),
			ResponseHeaderTimeout: utils.ParseInteger(utils.GetEnvOrDefault("UPSTREAM_RESPONSE_HEADER_TIMEOUT", ""), 600),
			MaxIdleConns:          utils.ParseInteger(utils.GetEnvOrDefault("UPSTREAM_MAX_IDLE_CONNS", ""), 100),
			MaxIdleConnsPerHost:   utils.ParseInteger(utils.GetEnvOrDefault("UPSTREAM_MAX_IDLE_CONNS_PER_HOST", ""), 50),
			ProxyURL:              utils.GetEnvOrDefault("PROXY_URL", ""),
		},
		Relay: types.RelayConfig{
			EnableSessionLogging:     utils.ParseBoolean(utils.GetEnvOrDefault("ENABLE_SESSION_LOGGING", ""), true),
			EnableRequestBodyLogging: utils.ParseBoolean(utils.GetEnvOrDefault("ENABLE_REQUEST_BODY_LOGGING", ""), false),
			MaxRequestBodyBytes:      int64(utils.ParseInteger(utils.GetEnvOrDefault("MAX_REQUEST_BODY_SIZE_MB", ""), 32)) << 20,
			SessionLogRetentionDays:  utils.ParseInteger(utils.GetEnvOrDefault("SESSION_LOG_RETENTION_DAYS", ""), 7),
		},
		EncryptionKey: utils.GetEnvOrDefault("ENCRYPTION_KEY", ""),
		DebugMode:     utils.ParseBoolean(utils.GetEnvOrDefault("DEBUG_MODE", ""), false),
	}

	if config.Server.GracefulShutdownTimeout < minGracefulShutdownTimeout {
		config.Server.GracefulShutdownTimeout = minGracefulShutdownTimeout
	}

	if err := validateConfig(config); err != nil {
		return err
	}

	m.mu.Lock()
	m.config = config
	m.mu.Unlock()
	return nil
}

// validateConfig checks a snapshot for invalid values.
func validateConfig(config *Config) error {
	var validationErrors []string

	if config.Server.Port < minPort || config.Server.Port > maxPort {
		validationErrors = append(validationErrors, fmt.Sprintf("port must be between %d and %d", minPort, maxPort))
	}

	if config.Auth.Key == "" {
		validationErrors = append(validationErrors, "AUTH_KEY is required")
	}

	if config.Performance.MaxConcurrentRequests < 1 {
		validationErrors = append(validationErrors, "max concurrent requests cannot be less than 1")
	}

	if config.CORS.Enabled {
		if len(config.CORS.AllowedOrigins) == 0 {
			validationErrors = append(validationErrors, "ALLOWED_ORIGINS is required when CORS is enabled")
		}
		for _, origin := range config.CORS.AllowedOrigins {
			if origin == "*" && config.CORS.AllowCredentials {
				logrus.Warn("CORS wildcard origin with credentials enabled blocks all credentialed requests")
			}
		}
	}

	if config.Database.DSN == "" {
		validationErrors = append(validationErrors, "DATABASE_DSN is required")
	}

	if config.Upstream.URL == "" {
		validationErrors = append(validationErrors, "UPSTREAM_URL is required")
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(validationErrors, "; "))
	}
	return nil
}

// Validate re-checks the current snapshot.
func (m *Manager) Validate() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return validateConfig(m.config)
}

// GetAuthConfig returns authentication configuration
func (m *Manager) GetAuthConfig() types.AuthConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Auth
}

// GetCORSConfig returns CORS configuration
func (m *Manager) GetCORSConfig() types.CORSConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.CORS
}

// GetPerformanceConfig returns performance configuration
func (m *Manager) GetPerformanceConfig() types.PerformanceConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Performance
}

// GetLogConfig returns logging configuration
func (m *Manager) GetLogConfig() types.LogConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Log
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() types.DatabaseConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Database
}

// GetUpstreamConfig returns upstream connection configuration
func (m *Manager) GetUpstreamConfig() types.UpstreamConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Upstream
}

// GetRelayConfig returns relay behavior configuration
func (m *Manager) GetRelayConfig() types.RelayConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Relay
}

// GetEncryptionKey returns the payload encryption key, empty when disabled.
func (m *Manager) GetEncryptionKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.EncryptionKey
}

// GetEffectiveServerConfig returns the HTTP server configuration.
func (m *Manager) GetEffectiveServerConfig() types.ServerConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Server
}

// IsDebugMode reports whether verbose diagnostics are enabled.
func (m *Manager) IsDebugMode() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.DebugMode || m.config.Log.Level == "debug"
}

// DisplayServerConfig logs the effective configuration at startup.
func (m *Manager) DisplayServerConfig() {
	m.mu.RLock()
	config := m.config
	m.mu.RUnlock()

	logrus.Info("")
	logrus.Info("======= Chat Relay Configuration =======")
	logrus.Infof("  Version:     %s", version.Version)
	logrus.Infof("  Listen:      %s:%d", config.Server.Host, config.Server.Port)
	logrus.Infof("  Upstream:    %s", utils.SanitizeRequestURLForLog(config.Upstream.URL))
	if config.Upstream.APIKey != "" {
		logrus.Infof("  Upstream key: %s", utils.MaskAPIKey(config.Upstream.APIKey))
	}
	logrus.Infof("  Database:    %s", utils.SanitizeRequestURLForLog(config.Database.DSN))
	logrus.Infof("  Log level:   %s", config.Log.Level)
	logrus.Infof("  CORS:        %t", config.CORS.Enabled)
	logrus.Infof("  Session log: %t (body capture: %t)", config.Relay.EnableSessionLogging, config.Relay.EnableRequestBodyLogging)
	logrus.Info("========================================")
	logrus.Info("")
}
