// Package handler contains the management API handlers.
package handler

import (
	"chat-relay/internal/services"
	"chat-relay/internal/types"

	"gorm.io/gorm"
)

// Server contains dependencies shared by the management API handlers.
type Server struct {
	DB                *gorm.DB
	config            types.ConfigManager
	SessionLogService *services.SessionLogService
}

// NewServer creates a new handler server instance.
func NewServer(
	db *gorm.DB,
	configManager types.ConfigManager,
	sessionLogService *services.SessionLogService,
) *Server {
	return &Server{
		DB:                db,
		config:            configManager,
		SessionLogService: sessionLogService,
	}
}
