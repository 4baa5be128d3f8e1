package handler

import (
	"testing"

	"chat-relay/internal/encryption"
	"chat-relay/internal/models"
	"chat-relay/internal/services"
	"chat-relay/internal/types"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testConfig implements types.ConfigManager with static values.
type testConfig struct{}

func (testConfig) GetAuthConfig() types.AuthConfig { return types.AuthConfig{Key: "test-auth-key"} }
func (testConfig) GetCORSConfig() types.CORSConfig { return types.CORSConfig{} }
func (testConfig) GetPerformanceConfig() types.PerformanceConfig {
	return types.PerformanceConfig{MaxConcurrentRequests: 100}
}
func (testConfig) GetLogConfig() types.LogConfig           { return types.LogConfig{Level: "info"} }
func (testConfig) GetDatabaseConfig() types.DatabaseConfig { return types.DatabaseConfig{} }
func (testConfig) GetUpstreamConfig() types.UpstreamConfig { return types.UpstreamConfig{} }
func (testConfig) GetRelayConfig() types.RelayConfig {
	return types.RelayConfig{EnableSessionLogging: true, SessionLogRetentionDays: 7}
}
func (testConfig) GetEncryptionKey() string                     { return "" }
func (testConfig) GetEffectiveServerConfig() types.ServerConfig { return types.ServerConfig{} }
func (testConfig) IsDebugMode() bool                            { return false }
func (testConfig) Validate() error                              { return nil }
func (testConfig) DisplayServerConfig()                         {}
func (testConfig) ReloadConfig() error                          { return nil }

// setupTestDB creates an in-memory SQLite database for testing (pure Go, no CGO)
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.SessionLog{})
	require.NoError(t, err)

	return db
}

// setupTestServer creates a test server with minimal dependencies
func setupTestServer(t *testing.T) *Server {
	t.Helper()

	db := setupTestDB(t)

	encSvc, err := encryption.NewService("")
	require.NoError(t, err)

	cfg := testConfig{}
	return NewServer(db, cfg, services.NewSessionLogService(db, cfg, encSvc))
}
