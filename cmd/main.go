package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"codes-api/internal/di"
	"codes-api/internal/gateway/config"
	"codes-api/internal/shared/logger"

	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run())
}

// run drives the process lifecycle and returns the exit status.
func run() int {
	appLogger := logger.NewLogger()

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		appLogger.Warnf("Warning: Could not load .env file: %v", err)
	}
	// Re-read LOG_* and NODE_ENV now that .env may have set them
	appLogger = logger.NewLogger()
	// Stdout sync reports EINVAL on terminals and pipes
	defer func() { _ = logger.Sync(appLogger) }()

	cfg, err := config.LoadConfig()
	if err != nil {
		appLogger.Errorf("Failed to load configuration: %v", err)
		return 1
	}

	container := di.NewContainer(cfg, appLogger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := container.Close(ctx); err != nil {
			appLogger.Errorf("Failed to close container: %v", err)
		}
	}()

	if err := container.InitializeStore(context.Background()); err != nil {
		appLogger.WithFields(map[string]interface{}{"error": err.Error()}).Error("Erro ao conectar no MongoDB")
		return 1
	}
	appLogger.Info("Conectado ao MongoDB com sucesso!")

	if err := container.InitializeRateLimitStore(context.Background()); err != nil {
		appLogger.Errorf("Failed to initialize rate limit storage: %v", err)
		return 1
	}

	if err := container.InitializeGateway(); err != nil {
		appLogger.Errorf("Failed to initialize gateway: %v", err)
		return 1
	}

	app := container.GetGatewayModule().Build()

	// Start server in a goroutine for graceful shutdown
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.Listen(cfg.ListenAddr())
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			appLogger.Errorf("Server failed: %v", err)
			return 1
		}
	case sig := <-quit:
		appLogger.Infof("Received shutdown signal: %v", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			appLogger.Errorf("Server forced to shutdown: %v", err)
		}
		appLogger.Info("HTTP server stopped")
	}

	return 0
}
