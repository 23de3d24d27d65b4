// Command server runs the live patient roster service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rhealth-backend/infrastructure/config"
	"rhealth-backend/infrastructure/di"
	"rhealth-backend/infrastructure/persistence/sqlite"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "rhealth-server",
		Short:         "Live patient roster sync server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", os.Getenv("CONFIG_FILE"), "YAML config file (hot-reloads logLevel and websocket.maxConnections)")

	serveCmd := newServeCmd(&configFile)
	rootCmd.AddCommand(serveCmd, newMigrateCmd(&configFile))
	rootCmd.RunE = serveCmd.RunE

	return rootCmd
}

func newServeCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the roster WebSocket endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfigFrom(*configFile)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	logger := container.Logger
	logger.Info("Starting roster server",
		zap.String("address", cfg.ServerAddress),
		zap.String("environment", cfg.Environment),
		zap.String("store", cfg.StoreDriver),
		zap.Bool("auth", cfg.AuthEnabled),
	)
	if cfg.IsDevelopment() && !cfg.AuthEnabled {
		logger.Warn("Authentication is disabled; every session connects as anonymous")
	}

	if cfg.ConfigFile != "" {
		watcher, err := config.NewConfigWatcher(cfg.ConfigFile, logger)
		if err != nil {
			logger.Warn("Config hot reload disabled", zap.Error(err))
		} else {
			watcher.OnChange(container.ApplyDynamicConfig)
			watcher.Start()
			defer watcher.Stop()
		}
	}

	if err := container.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Server stopped", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}

func newMigrateCmd(configFile *string) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the SQLite schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				cfg, err := config.LoadConfigFrom(*configFile)
				if err != nil {
					return fmt.Errorf("invalid configuration: %w", err)
				}
				if cfg.StoreDriver != config.StoreSQLite {
					return fmt.Errorf("migrate only applies to the sqlite store (STORE_DRIVER=%s)", cfg.StoreDriver)
				}
				path = cfg.SQLitePath
			}

			store, err := sqlite.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			version, err := store.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d\n", path, version)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "SQLite file (defaults to SQLITE_PATH)")
	return cmd
}
