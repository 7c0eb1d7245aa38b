package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mkitahara/idreg/internal/config"
	"github.com/mkitahara/idreg/internal/core"
	"github.com/mkitahara/idreg/internal/logging"
	"github.com/mkitahara/idreg/internal/session"
	"github.com/mkitahara/idreg/internal/storage"
	"github.com/mkitahara/idreg/internal/storage/dropbox"
	"github.com/mkitahara/idreg/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"dropbox_configured", cfg.Dropbox.Configured(),
		"registry_path", cfg.Dropbox.RegistryPath,
		"session_ttl", cfg.Session.TTL,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	// Remote storage is optional: without credentials the editor still
	// serves uploads and CSV downloads, it just cannot reach Dropbox.
	var remote storage.Client
	if cfg.Dropbox.Configured() {
		remote = dropbox.New(dropbox.Config{
			AppKey:       cfg.Dropbox.AppKey,
			AppSecret:    cfg.Dropbox.AppSecret,
			RefreshToken: cfg.Dropbox.RefreshToken,
			Timeout:      cfg.Dropbox.Timeout,
		})
		slog.Info("dropbox storage configured")
	} else {
		slog.Warn("dropbox credentials not set, remote load and save disabled")
	}
	core.StorageTimeout = cfg.Dropbox.Timeout

	sessions := session.NewStore(cfg.Session.TTL, cfg.Session.CleanupInterval)
	limiter := core.NewLoadLimiter(cfg.Load.MaxConcurrent, cfg.Load.MaxWaitTime)

	service := core.NewService(remote, sessions, limiter)
	service.SetDefaultRemotePath(cfg.Dropbox.RegistryPath)

	// Create server with config
	server := web.NewServer(service, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for in-flight file loads to complete (with timeout)
		if active := service.Limiter().ActiveCount(); active > 0 {
			slog.Info("waiting for loads to complete", "active", active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("loads did not complete in time", "error", err)
			} else {
				slog.Info("all loads completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	// Start server (uses addr from config internally)
	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
