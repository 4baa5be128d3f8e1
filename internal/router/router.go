// Package router wires the HTTP routes of the relay.
package router

import (
	"net/http"
	"time"

	"chat-relay/internal/handler"
	"chat-relay/internal/middleware"
	"chat-relay/internal/proxy"
	"chat-relay/internal/types"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

func NewRouter(
	serverHandler *handler.Server,
	relayServer *proxy.Server,
	configManager types.ConfigManager,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Register global middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Logger(configManager.GetLogConfig()))
	router.Use(middleware.CORS(configManager.GetCORSConfig()))
	router.Use(middleware.RateLimiter(configManager.GetPerformanceConfig()))
	router.Use(middleware.SecurityHeaders())
	startTime := time.Now()
	router.Use(func(c *gin.Context) {
		c.Set("serverStartTime", startTime)
		c.Next()
	})

	registerSystemRoutes(router, serverHandler)
	registerAPIRoutes(router, serverHandler, configManager)
	registerRelayRoutes(router, relayServer, configManager)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
	})

	return router
}

// registerSystemRoutes registers system-level routes
func registerSystemRoutes(router *gin.Engine, serverHandler *handler.Server) {
	router.GET("/health", serverHandler.Health)
}

// registerAPIRoutes registers the management API routes
func registerAPIRoutes(
	router *gin.Engine,
	serverHandler *handler.Server,
	configManager types.ConfigManager,
) {
	api := router.Group("/api")
	// gzip stays off the relay route; buffering would defeat per-part SSE
	// flushing.
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	api.Use(middleware.Auth(configManager.GetAuthConfig()))

	sessions := api.Group("/sessions")
	{
		sessions.GET("", serverHandler.ListSessions)
		sessions.GET("/:session_id", serverHandler.GetSession)
	}
}

// registerRelayRoutes registers the chat-completion relay route
func registerRelayRoutes(router *gin.Engine, relayServer *proxy.Server, configManager types.ConfigManager) {
	relayConfig := configManager.GetRelayConfig()

	v1 := router.Group("/v1")
	v1.Use(middleware.RequestBodySizeLimit(relayConfig.MaxRequestBodyBytes))

	v1.POST("/chat/completions", relayServer.HandleChatCompletion)
}
