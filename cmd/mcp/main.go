package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/emmett/streamvox/internal/config"
	"github.com/emmett/streamvox/internal/models"
	"github.com/emmett/streamvox/internal/server/mcp"
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
	modelName   = flag.String("model", "", "Default model bundle (default: the store's default model)")
	modelsDir   = flag.String("models-dir", "", "Model store directory (default: ./models)")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("StreamVox MCP v%s\n", Version)
		fmt.Printf("  Commit:  %s\n", GitCommit)
		fmt.Printf("  Branch:  %s\n", GitBranch)
		fmt.Printf("  Built:   %s\n", BuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		return err
	}
	if *modelsDir != "" {
		cfg.Model.Dir = *modelsDir
	}
	// stdout carries the protocol; NewLogger writes to stderr
	logger := cfg.NewLogger()

	store, err := models.NewStore(cfg.Model.Dir)
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(mcp.Config{
		ServerName:    "streamvox",
		ServerVersion: Version,
		DefaultModel:  *modelName,
	}, cfg, store, telemetry.NewRecorder(logger), logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	printClientConfig(store.Dir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("MCP server ready on stdio", "version", Version, "commit", GitCommit)
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// printClientConfig shows how to register this binary with an MCP client
func printClientConfig(modelsDir string) {
	execPath, err := os.Executable()
	if err != nil {
		execPath = "./build/streamvox-mcp"
	}

	args := []string{"--models-dir", modelsDir}
	if *modelName != "" {
		args = append(args, "--model", *modelName)
	}

	type serverConfig struct {
		Command string   `json:"command"`
		Args    []string `json:"args"`
	}
	clientConfig := struct {
		MCPServers map[string]serverConfig `json:"mcpServers"`
	}{
		MCPServers: map[string]serverConfig{
			"streamvox": {Command: execPath, Args: args},
		},
	}

	data, err := json.MarshalIndent(clientConfig, "", "  ")
	if err == nil {
		fmt.Fprintf(os.Stderr, "MCP Client Configuration:\n%s\n\n", data)
	}
}
