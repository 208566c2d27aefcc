package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkessler/libmirror/internal/api"
	"github.com/mkessler/libmirror/internal/api/handler"
	"github.com/mkessler/libmirror/internal/config"
	"github.com/mkessler/libmirror/internal/repository"
	"github.com/mkessler/libmirror/internal/service"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("libmirror-server %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting libmirror server",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Server.APIKey == "" {
		logger.Error("API_KEY is required for the server")
		os.Exit(1)
	}

	// Initialize dependencies
	opener := repository.SnapshotOpener{DBPath: cfg.Library.DatabasePath()}
	exportSvc := service.NewExportService(opener, cfg, logger)

	// Initialize handlers
	exportHandler := handler.NewExportHandler(exportSvc, logger)
	collectionsHandler := handler.NewCollectionsHandler(opener, cfg, logger)
	healthHandler := handler.NewHealthHandler(cfg.Library.DatabasePath())

	// Setup router
	router := api.NewRouter(exportHandler, collectionsHandler, healthHandler, cfg.Server.APIKey)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Stop any in-flight export between collection visits
	if err := exportSvc.Cancel(); err != nil && err != service.ErrNoActiveRun {
		logger.Error("export cancel error", "error", err)
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
