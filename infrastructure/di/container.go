// Package di assembles the roster server from its parts.
package di

import (
	"context"

	"rhealth-backend/application/broadcast"
	"rhealth-backend/application/dispatch"
	"rhealth-backend/application/ports"
	"rhealth-backend/application/processor"
	"rhealth-backend/infrastructure/config"
	"rhealth-backend/interfaces/websocket"
	"rhealth-backend/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	LogLevel    zap.AtomicLevel
	Metrics     *observability.Collector
	Tracing     *observability.TracerProvider
	Store       ports.PatientStore
	Publisher   ports.EventPublisher
	Hub         *websocket.Hub
	Coordinator *broadcast.Coordinator
	Processor   *processor.Processor
	Dispatcher  *dispatch.Dispatcher
	Server      *websocket.Server
}

// Run starts the dispatch loop and serves until ctx is cancelled
func (c *Container) Run(ctx context.Context) error {
	dispatchErr := make(chan error, 1)
	go func() { dispatchErr <- c.Dispatcher.Run(ctx) }()

	err := c.Server.StartWithContext(ctx, c.Config.ServerAddress)
	if err != nil {
		return err
	}
	return <-dispatchErr
}

// ApplyDynamicConfig applies a hot-reloaded config to the running container
func (c *Container) ApplyDynamicConfig(dc *config.DynamicConfig) {
	if level, err := zap.ParseAtomicLevel(dc.LogLevel); err == nil {
		c.LogLevel.SetLevel(level.Level())
	}
	c.Hub.SetMaxConnections(dc.MaxConnections)
}
