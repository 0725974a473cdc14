package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/emmett/streamvox/internal/app"
	"github.com/emmett/streamvox/internal/config"
	"github.com/emmett/streamvox/internal/models"
	grpcserver "github.com/emmett/streamvox/internal/server/grpc"
	"github.com/emmett/streamvox/internal/telemetry"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file (default: ~/.streamvoxrc or /etc/streamvox/config.yaml)")
	host        = flag.String("host", "", "Listen address (default from config: localhost)")
	port        = flag.Int("port", 0, "gRPC server port (default from config: 50051)")
	modelName   = flag.String("model", "", "Model bundle to serve (default: the store's default model)")
	modelsDir   = flag.String("models-dir", "", "Model store directory (default: ./models)")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("StreamVox gRPC Server v%s\n", Version)
		fmt.Printf("  Commit:  %s\n", GitCommit)
		fmt.Printf("  Branch:  %s\n", GitBranch)
		fmt.Printf("  Built:   %s\n", BuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		return err
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *modelsDir != "" {
		cfg.Model.Dir = *modelsDir
	}

	logger := cfg.NewLogger()
	logger.Info("starting", "version", Version, "commit", GitCommit)

	store, err := models.NewStore(cfg.Model.Dir)
	if err != nil {
		return err
	}
	rec, err := app.OpenRecognizer(cfg, store, *modelName, logger)
	if err != nil {
		return err
	}

	recorder := telemetry.NewRecorder(logger)
	server := grpcserver.NewServer(grpcserver.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, rec, recorder, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = server.ListenAndServe(ctx)

	snap := recorder.Snapshot()
	logger.Info("server stopped",
		"sessions", snap.TotalSessions,
		"segments", snap.TotalSegments,
		"failures", snap.TotalFailures,
	)
	return err
}
