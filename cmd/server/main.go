package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lodestar-hq/lodestar/internal/api"
	"github.com/lodestar-hq/lodestar/internal/assistant"
	"github.com/lodestar-hq/lodestar/internal/auth"
	"github.com/lodestar-hq/lodestar/internal/config"
	"github.com/lodestar-hq/lodestar/internal/email"
	"github.com/lodestar-hq/lodestar/internal/logging"
	"github.com/lodestar-hq/lodestar/internal/mcp"
	"github.com/lodestar-hq/lodestar/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	logger := logging.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	// Initialize database
	db, err := storage.NewDatabase(cfg.Database)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	// Run migrations
	if err := db.Migrate(); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Email delivery
	sender := email.NewSender(cfg.Email, logger)

	// Tool executor and assistant client
	executor := assistant.NewExecutor(db, sender, logger)
	assistantClient := assistant.NewClient(db, executor, logger, assistant.ClientConfig{
		CLIPath:      cfg.Assistant.CLIPath,
		CLIUrl:       cfg.Assistant.CLIUrl,
		Model:        cfg.Assistant.Model,
		LogLevel:     cfg.Assistant.LogLevel,
		MaxToolSteps: cfg.Assistant.MaxToolSteps,
	})
	if err := assistantClient.Start(); err != nil {
		slog.Warn("Assistant client not started; chat will retry on first use", "error", err)
	}
	defer func() { _ = assistantClient.Stop() }()

	// Session token validation
	jwtManager, err := auth.NewJWTManager(cfg.Auth.SessionSecret, cfg.Auth.SessionDurationHours)
	if err != nil {
		slog.Error("Failed to initialize session tokens", "error", err)
		os.Exit(1)
	}
	middleware := auth.NewMiddleware(jwtManager, logger)

	// Optional MCP server for external agents
	var mcpServer *mcp.Server
	if cfg.MCP.Enabled {
		mcpServer = mcp.NewServer(db, executor, logger, mcp.Config{Address: cfg.MCP.Address})
		go func() {
			if err := mcpServer.Start(); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	// API server
	server := api.NewServer(cfg, db, assistantClient, middleware, logger)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if mcpServer != nil {
		if err := mcpServer.Stop(ctx); err != nil {
			slog.Error("Failed to stop MCP server", "error", err)
		}
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}
