// Package container wires the application dependencies with dig.
package container

import (
	"chat-relay/internal/app"
	"chat-relay/internal/config"
	"chat-relay/internal/db"
	"chat-relay/internal/encryption"
	"chat-relay/internal/handler"
	"chat-relay/internal/proxy"
	"chat-relay/internal/router"
	"chat-relay/internal/services"
	"chat-relay/internal/types"
	"chat-relay/internal/upstream"

	"go.uber.org/dig"
)

// BuildContainer creates and configures the DI container.
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	providers := []any{
		config.NewManager,
		func(m *config.Manager) types.ConfigManager { return m },
		db.NewDB,
		func(cm types.ConfigManager) (encryption.Service, error) {
			return encryption.NewService(cm.GetEncryptionKey())
		},
		services.NewSessionLogService,
		upstream.NewClientManager,
		upstream.NewBackend,
		proxy.NewServer,
		handler.NewServer,
		router.NewRouter,
		app.NewApp,
	}

	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	return container, nil
}
