package app

import (
	"context"
	"testing"
	"time"

	"chat-relay/internal/encryption"
	"chat-relay/internal/services"
	"chat-relay/internal/types"
	"chat-relay/internal/upstream"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type appTestConfig struct{}

func (appTestConfig) GetAuthConfig() types.AuthConfig { return types.AuthConfig{Key: "test-key"} }
func (appTestConfig) GetCORSConfig() types.CORSConfig { return types.CORSConfig{} }
func (appTestConfig) GetPerformanceConfig() types.PerformanceConfig {
	return types.PerformanceConfig{MaxConcurrentRequests: 10}
}
func (appTestConfig) GetLogConfig() types.LogConfig           { return types.LogConfig{Level: "info"} }
func (appTestConfig) GetDatabaseConfig() types.DatabaseConfig { return types.DatabaseConfig{} }
func (appTestConfig) GetUpstreamConfig() types.UpstreamConfig { return types.UpstreamConfig{} }
func (appTestConfig) GetRelayConfig() types.RelayConfig       { return types.RelayConfig{} }
func (appTestConfig) GetEncryptionKey() string                { return "" }
func (appTestConfig) GetEffectiveServerConfig() types.ServerConfig {
	return types.ServerConfig{
		Host:                    "127.0.0.1",
		Port:                    0,
		ReadTimeout:             5,
		WriteTimeout:            5,
		IdleTimeout:             5,
		GracefulShutdownTimeout: 10,
	}
}
func (appTestConfig) IsDebugMode() bool    { return false }
func (appTestConfig) Validate() error      { return nil }
func (appTestConfig) DisplayServerConfig() {}
func (appTestConfig) ReloadConfig() error  { return nil }

// TestAppStartStop tests the full lifecycle: migrate, serve, shut down.
func TestAppStartStop(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	cfg := appTestConfig{}
	encSvc, err := encryption.NewService("")
	require.NoError(t, err)

	application := NewApp(AppParams{
		Engine:            gin.New(),
		ConfigManager:     cfg,
		SessionLogService: services.NewSessionLogService(db, cfg, encSvc),
		ClientManager:     upstream.NewClientManager(),
		DB:                db,
	})

	require.NoError(t, application.Start())

	// Migration ran
	require.True(t, db.Migrator().HasTable("session_logs"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	application.Stop(ctx)
}
