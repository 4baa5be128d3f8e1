// Package types defines the shared configuration contracts of the relay.
package types

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetAuthConfig() AuthConfig
	GetCORSConfig() CORSConfig
	GetPerformanceConfig() PerformanceConfig
	GetLogConfig() LogConfig
	GetDatabaseConfig() DatabaseConfig
	GetUpstreamConfig() UpstreamConfig
	GetRelayConfig() RelayConfig
	GetEncryptionKey() string
	GetEffectiveServerConfig() ServerConfig
	IsDebugMode() bool
	Validate() error
	DisplayServerConfig()
	ReloadConfig() error
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port                    int    `json:"port"`
	Host                    string `json:"host"`
	ReadTimeout             int    `json:"read_timeout"`
	WriteTimeout            int    `json:"write_timeout"`
	IdleTimeout             int    `json:"idle_timeout"`
	GracefulShutdownTimeout int    `json:"graceful_shutdown_timeout"`
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Key string `json:"key"`
}

// CORSConfig represents CORS configuration
type CORSConfig struct {
	Enabled          bool     `json:"enabled"`
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
}

// PerformanceConfig represents performance configuration
type PerformanceConfig struct {
	MaxConcurrentRequests int `json:"max_concurrent_requests"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	EnableFile bool   `json:"enable_file"`
	FilePath   string `json:"file_path"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	DSN string `json:"dsn"`
}

// UpstreamConfig represents the connection settings for the chat-completion
// backend the relay forwards to.
type UpstreamConfig struct {
	URL                   string `json:"url"`
	APIKey                string `json:"-"`
	ConnectTimeout        int    `json:"connect_timeout"`
	IdleConnTimeout       int    `json:"idle_conn_timeout"`
	ResponseHeaderTimeout int    `json:"response_header_timeout"`
	MaxIdleConns          int    `json:"max_idle_conns"`
	MaxIdleConnsPerHost   int    `json:"max_idle_conns_per_host"`
	ProxyURL              string `json:"proxy_url"`
}

// RelayConfig represents decode and session-capture behavior.
type RelayConfig struct {
	// EnableSessionLogging persists a per-request summary row.
	EnableSessionLogging bool `json:"enable_session_logging"`
	// EnableRequestBodyLogging stores the (encrypted) client request body with
	// the session row.
	EnableRequestBodyLogging bool `json:"enable_request_body_logging"`
	// MaxRequestBodyBytes bounds the accepted client request size.
	MaxRequestBodyBytes int64 `json:"max_request_body_bytes"`
	// SessionLogRetentionDays controls how long session rows are kept.
	SessionLogRetentionDays int `json:"session_log_retention_days"`
}
