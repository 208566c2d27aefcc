package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/mkessler/libmirror/internal/config"
	"github.com/mkessler/libmirror/internal/domain"
	"github.com/mkessler/libmirror/internal/repository"
	"github.com/mkessler/libmirror/internal/service"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	collection := flag.String("collection", "", "Root collection to export (defaults to DEFAULT_COLLECTION)")
	out := flag.String("out", "", "Output directory root (overrides config)")
	libraryDir := flag.String("library-dir", "", "Library data directory containing the database and storage pool")
	maskPath := flag.String("mask", "", "Path to a YAML file restricting which subcollections are descended into")
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("libmirror-export %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if *libraryDir != "" {
		cfg.Library.DataDir = *libraryDir
	}
	if *out != "" {
		cfg.Export.OutputRoot = *out
	}

	rootName := *collection
	if rootName == "" {
		rootName = flag.Arg(0)
	}
	if rootName == "" {
		rootName = cfg.Export.DefaultCollection
	}
	if rootName == "" {
		fmt.Fprintln(os.Stderr, "Error: a root collection is required (--collection or DEFAULT_COLLECTION)")
		flag.PrintDefaults()
		os.Exit(1)
	}

	var mask domain.PathMask
	if *maskPath != "" {
		data, err := os.ReadFile(*maskPath)
		if err != nil {
			logger.Error("failed to read mask file", "path", *maskPath, "error", err)
			os.Exit(1)
		}
		if err := yaml.Unmarshal(data, &mask); err != nil {
			logger.Error("failed to parse mask file", "path", *maskPath, "error", err)
			os.Exit(1)
		}
	}

	logger.Info("libmirror export",
		"version", Version,
		"database", cfg.Library.DatabasePath(),
		"storage_root", cfg.Library.StorageRoot(),
		"output_root", cfg.Export.OutputRoot,
		"collection", rootName,
	)

	opener := repository.SnapshotOpener{DBPath: cfg.Library.DatabasePath()}
	exportSvc := service.NewExportService(opener, cfg, logger)

	// Ctrl-C cancels between collection visits.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := exportSvc.Export(ctx, service.ExportOptions{
		RootCollection: rootName,
		Mask:           mask,
	})
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}

	logger.Info("export finished",
		"items_processed", summary.ItemsProcessed,
		"files_copied", summary.FilesCopied,
		"warnings", len(summary.Warnings),
	)
}
